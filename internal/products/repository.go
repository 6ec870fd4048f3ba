package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastella/fabrica-backend/pkg/db/models"
)

// Repository covers product rows and their dependent collections. WithTx
// rebinds the repository onto a transaction handle so the orchestrator can
// run every statement of one invocation on the same connection.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	UpdateProductColumns(ctx context.Context, id uuid.UUID, columns map[string]any) (int64, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	GetAggregate(ctx context.Context, id uuid.UUID) (*models.Product, error)

	FindProcessByID(ctx context.Context, id uuid.UUID) (*models.Process, error)
	FindMaterialByID(ctx context.Context, id uuid.UUID) (*models.Material, error)

	CreateMaterialAssignment(ctx context.Context, row *models.ProductMaterial) (*models.ProductMaterial, error)
	FindMaterialAssignmentByID(ctx context.Context, id uuid.UUID) (*models.ProductMaterial, error)
	ResolveMaterialAssignment(ctx context.Context, productID, materialID uuid.UUID) (*models.ProductMaterial, error)
	UpdateMaterialAssignmentColumns(ctx context.Context, id uuid.UUID, columns map[string]any) (int64, error)
	DeleteMaterialAssignment(ctx context.Context, id uuid.UUID) error

	CreateProcessAssignment(ctx context.Context, row *models.ProductProcess) (*models.ProductProcess, error)
	FindProcessAssignmentByID(ctx context.Context, id uuid.UUID) (*models.ProductProcess, error)
	UpdateProcessAssignmentColumns(ctx context.Context, id uuid.UUID, columns map[string]any) (int64, error)
	DeleteProcessAssignment(ctx context.Context, id uuid.UUID) error

	CreateConsumption(ctx context.Context, row *models.MaterialConsumption) (*models.MaterialConsumption, error)
	FindConsumptionByID(ctx context.Context, id uuid.UUID) (*models.MaterialConsumption, error)
	UpdateConsumptionColumns(ctx context.Context, id uuid.UUID, columns map[string]any) (int64, error)
	DeleteConsumption(ctx context.Context, id uuid.UUID) error

	CreateBand(ctx context.Context, row *models.ProductDiscountBand) (*models.ProductDiscountBand, error)
	FindBandByID(ctx context.Context, id uuid.UUID) (*models.ProductDiscountBand, error)
	ListBands(ctx context.Context, productID uuid.UUID) ([]models.ProductDiscountBand, error)
	UpdateBandColumns(ctx context.Context, id uuid.UUID, columns map[string]any) (int64, error)
	DeleteBand(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) UpdateProductColumns(ctx context.Context, id uuid.UUID, columns map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(columns)
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id).Error
}

// GetAggregate loads a product with every dependent collection attached.
// Consumptions hang off their process assignment; readers see them nested.
func (r *repository) GetAggregate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("MaterialAssignments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("ProcessAssignments", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Preload("ProcessAssignments.Consumptions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("DiscountBands", func(db *gorm.DB) *gorm.DB {
			return db.Order("min_qty ASC")
		}).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindProcessByID(ctx context.Context, id uuid.UUID) (*models.Process, error) {
	var process models.Process
	if err := r.db.WithContext(ctx).First(&process, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &process, nil
}

func (r *repository) FindMaterialByID(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	var material models.Material
	if err := r.db.WithContext(ctx).First(&material, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &material, nil
}

func (r *repository) CreateMaterialAssignment(ctx context.Context, row *models.ProductMaterial) (*models.ProductMaterial, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *repository) FindMaterialAssignmentByID(ctx context.Context, id uuid.UUID) (*models.ProductMaterial, error) {
	var row models.ProductMaterial
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ResolveMaterialAssignment maps (product, material) onto the assignment row
// consumptions must reference. When the same material is assigned twice the
// oldest row wins.
func (r *repository) ResolveMaterialAssignment(ctx context.Context, productID, materialID uuid.UUID) (*models.ProductMaterial, error) {
	var row models.ProductMaterial
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND material_id = ?", productID, materialID).
		Order("created_at ASC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpdateMaterialAssignmentColumns(ctx context.Context, id uuid.UUID, columns map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProductMaterial{}).
		Where("id = ?", id).
		Updates(columns)
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteMaterialAssignment(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ProductMaterial{}, "id = ?", id).Error
}

func (r *repository) CreateProcessAssignment(ctx context.Context, row *models.ProductProcess) (*models.ProductProcess, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *repository) FindProcessAssignmentByID(ctx context.Context, id uuid.UUID) (*models.ProductProcess, error) {
	var row models.ProductProcess
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpdateProcessAssignmentColumns(ctx context.Context, id uuid.UUID, columns map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProductProcess{}).
		Where("id = ?", id).
		Updates(columns)
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteProcessAssignment(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ProductProcess{}, "id = ?", id).Error
}

func (r *repository) CreateConsumption(ctx context.Context, row *models.MaterialConsumption) (*models.MaterialConsumption, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *repository) FindConsumptionByID(ctx context.Context, id uuid.UUID) (*models.MaterialConsumption, error) {
	var row models.MaterialConsumption
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpdateConsumptionColumns(ctx context.Context, id uuid.UUID, columns map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.MaterialConsumption{}).
		Where("id = ?", id).
		Updates(columns)
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteConsumption(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.MaterialConsumption{}, "id = ?", id).Error
}

func (r *repository) CreateBand(ctx context.Context, row *models.ProductDiscountBand) (*models.ProductDiscountBand, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *repository) FindBandByID(ctx context.Context, id uuid.UUID) (*models.ProductDiscountBand, error) {
	var row models.ProductDiscountBand
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListBands(ctx context.Context, productID uuid.UUID) ([]models.ProductDiscountBand, error) {
	var rows []models.ProductDiscountBand
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("min_qty ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateBandColumns(ctx context.Context, id uuid.UUID, columns map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProductDiscountBand{}).
		Where("id = ?", id).
		Updates(columns)
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteBand(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ProductDiscountBand{}, "id = ?", id).Error
}
