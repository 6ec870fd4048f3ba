package locations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastella/fabrica-backend/pkg/db/models"
)

type Repository interface {
	List(ctx context.Context) ([]models.Location, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Location, error)
	Create(ctx context.Context, row *models.Location) (*models.Location, error)
	UpdateColumns(ctx context.Context, id uuid.UUID, columns map[string]any) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]models.Location, error) {
	var rows []models.Location
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	var row models.Location
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Create(ctx context.Context, row *models.Location) (*models.Location, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *repository) UpdateColumns(ctx context.Context, id uuid.UUID, columns map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Location{}).
		Where("id = ?", id).
		Updates(columns)
	return res.RowsAffected, res.Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Location{}, "id = ?", id).Error
}
