package products

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/dcastella/fabrica-backend/pkg/db/models"
	pkgerrors "github.com/dcastella/fabrica-backend/pkg/errors"
	"github.com/dcastella/fabrica-backend/pkg/logger"
)

// Service is the product aggregate orchestrator: one call creates or updates
// a product together with its material assignments, process assignments,
// per-process consumptions and discount bands.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTxOptions(ctx context.Context, opts *sql.TxOptions, fn func(tx *gorm.DB) error) error
}

// PhotoStore is the object-storage port the orchestrator drives. Uploads land
// under a temp prefix; attaching one to a product moves it under the
// product's directory.
type PhotoStore interface {
	IsTemp(key string) bool
	ProductDir(productID uuid.UUID) string
	MoveToProductDir(ctx context.Context, tempKey string, productID uuid.UUID) (string, error)
	RemoveIfExists(ctx context.Context, key string) error
	Download(ctx context.Context, key string) ([]byte, error)
}

// CleanupScheduler accepts a storage prefix for deferred removal. It must
// never block or fail the caller.
type CleanupScheduler interface {
	Schedule(prefix string)
}

// processCreator lets the orchestrator create a process inline while staying
// on the caller's transaction.
type processCreator interface {
	CreateInTx(ctx context.Context, tx *gorm.DB, name string, description *string) (*models.Process, error)
}

type CreateProductInput struct {
	SKU         string   `json:"sku" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
	PriceCents  *int     `json:"price_cents"`
	CostCents   *int     `json:"cost_cents"`
	IsActive    bool     `json:"is_active"`
	IsDraft     bool     `json:"is_draft"`
	PhotoKey    *string  `json:"photo"`

	Materials []MaterialAssignmentInput `json:"materials"`
	Processes []ProcessAssignmentInput  `json:"-"`
	Bands     []BandInput               `json:"discount_bands"`
}

// PhotoChange is the tri-state photo field: not set means keep, set with nil
// key means remove, set with a temp key means relocate-and-attach.
type PhotoChange struct {
	Set bool
	Key *string
}

type UpdateProductInput struct {
	SKU         *string
	Name        *string
	Description *string
	Tags        *[]string
	PriceCents  *int
	CostCents   *int
	IsActive    *bool
	IsDraft     *bool
	Photo       PhotoChange

	Materials MaterialManager
	Processes ProcessManager
	Bands     BandManager
}

type service struct {
	repo      Repository
	tx        txRunner
	processes processCreator
	photos    PhotoStore
	cleanup   CleanupScheduler
	logg      *logger.Logger
}

func NewService(repo Repository, tx txRunner, processes processCreator, photos PhotoStore, cleanup CleanupScheduler, logg *logger.Logger) Service {
	return &service{
		repo:      repo,
		tx:        tx,
		processes: processes,
		photos:    photos,
		cleanup:   cleanup,
		logg:      logg,
	}
}

var editableProductColumns = []string{
	"sku", "name", "description", "tags",
	"price_cents", "cost_cents", "is_active", "is_draft", "photo_key",
}

// CreateProduct builds the aggregate sequentially on the shared connection.
// There is deliberately no enclosing transaction here: a mid-sequence failure
// leaves earlier rows behind, matching the long-standing create semantics.
// The update path is the transactional one.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if strings.TrimSpace(input.SKU) == "" || strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku and name are required")
	}
	if err := ensureBandRanges(bandInputRanges(input.Bands)); err != nil {
		return nil, err
	}

	product := &models.Product{
		SKU:         input.SKU,
		Name:        input.Name,
		Description: input.Description,
		Tags:        pq.StringArray(input.Tags),
		PriceCents:  input.PriceCents,
		CostCents:   input.CostCents,
		IsActive:    input.IsActive,
		IsDraft:     input.IsDraft,
	}

	product, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating product")
	}
	ctx = s.logg.WithProductID(ctx, product.ID.String())

	for _, m := range input.Materials {
		if err := s.createMaterialAssignment(ctx, s.repo, product.ID, m); err != nil {
			return nil, err
		}
	}

	for _, p := range input.Processes {
		if err := s.createProcessAssignment(ctx, s.repo, nil, product.ID, p); err != nil {
			return nil, err
		}
	}

	for _, b := range input.Bands {
		if _, err := s.repo.CreateBand(ctx, &models.ProductDiscountBand{
			ProductID:      product.ID,
			MinQty:         b.MinQty,
			MaxQty:         b.MaxQty,
			UnitPriceCents: b.UnitPriceCents,
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating discount band")
		}
	}

	if input.PhotoKey != nil && s.photos.IsTemp(*input.PhotoKey) {
		finalKey, err := s.photos.MoveToProductDir(ctx, *input.PhotoKey, product.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attaching photo")
		}
		if _, err := s.repo.UpdateProductColumns(ctx, product.ID, map[string]any{"photo_key": finalKey}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting photo key")
		}
	}

	aggregate, err := s.repo.GetAggregate(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading aggregate")
	}

	s.logg.Info(ctx, "product created")
	return buildProductDTO(aggregate, s.downloadPhoto(ctx, aggregate.PhotoKey)), nil
}

// UpdateProduct applies the client's delta managers and the scalar diff in a
// single repeatable-read transaction, then finishes the photo handover after
// commit. On failure everything persisted rolls back, any already-relocated
// file is removed best-effort, and a cleanup of the product's storage
// directory is scheduled.
func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	ctx = s.logg.WithProductID(ctx, productID.String())

	var (
		aggregate    *models.Product
		oldPhotoKey  *string
		newPhotoKey  *string
		relocatedKey string
	)

	txErr := s.tx.WithTxOptions(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead}, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := repo.FindProductByID(ctx, productID)
		if err != nil {
			return notFoundOr(err, "product not found", "loading product")
		}
		oldPhotoKey = product.PhotoKey

		relocate, scalarCols, err := s.resolvePhotoIntent(product, input)
		if err != nil {
			return err
		}

		if len(scalarCols) > 0 {
			affected, err := repo.UpdateProductColumns(ctx, productID, scalarCols)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating product")
			}
			if affected == 0 {
				return pkgerrors.New(pkgerrors.CodeInternal, "product row vanished mid-update")
			}
		}

		if err := s.applyBandManager(ctx, repo, productID, input.Bands); err != nil {
			return err
		}
		if err := s.applyMaterialManager(ctx, repo, productID, input.Materials); err != nil {
			return err
		}
		if err := s.applyProcessManager(ctx, repo, tx, productID, input.Processes); err != nil {
			return err
		}

		if relocate != "" {
			finalKey, err := s.photos.MoveToProductDir(ctx, relocate, productID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "relocating photo")
			}
			relocatedKey = finalKey
			newPhotoKey = &finalKey
			if _, err := repo.UpdateProductColumns(ctx, productID, map[string]any{"photo_key": finalKey}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting photo key")
			}
		}

		aggregate, err = repo.GetAggregate(ctx, productID)
		if err != nil {
			// The row existed moments ago; an unreadable aggregate here is
			// integrity breakage, not a 404.
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregate unreadable after update")
		}
		return nil
	})

	if txErr != nil {
		if relocatedKey != "" {
			if err := s.photos.RemoveIfExists(ctx, relocatedKey); err != nil {
				s.logg.Warn(ctx, "failed to remove relocated photo after rollback")
			}
		}
		s.cleanup.Schedule(s.photos.ProductDir(productID))
		return nil, txErr
	}

	s.finishPhotoHandover(ctx, oldPhotoKey, newPhotoKey, input.Photo)

	s.logg.Info(ctx, "product updated")
	return buildProductDTO(aggregate, s.downloadPhoto(ctx, aggregate.PhotoKey)), nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	aggregate, err := s.repo.GetAggregate(ctx, productID)
	if err != nil {
		return nil, notFoundOr(err, "product not found", "loading product")
	}
	return buildProductDTO(aggregate, s.downloadPhoto(ctx, aggregate.PhotoKey)), nil
}

func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	ctx = s.logg.WithProductID(ctx, productID.String())

	if _, err := s.repo.FindProductByID(ctx, productID); err != nil {
		return notFoundOr(err, "product not found", "loading product")
	}
	if err := s.repo.DeleteProduct(ctx, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting product")
	}

	// Dependent rows cascade in the database; files go through the broker.
	s.cleanup.Schedule(s.photos.ProductDir(productID))
	s.logg.Info(ctx, "product deleted")
	return nil
}

// resolvePhotoIntent splits the photo field into the scalar column set and a
// pending relocation. Temp keys never reach the scalar diff; they are only
// persisted once the file sits under the product directory.
func (s *service) resolvePhotoIntent(product *models.Product, input UpdateProductInput) (relocate string, cols map[string]any, err error) {
	proposed := map[string]any{}
	if input.SKU != nil {
		proposed["sku"] = *input.SKU
	}
	if input.Name != nil {
		proposed["name"] = *input.Name
	}
	if input.Description != nil {
		proposed["description"] = *input.Description
	}
	if input.Tags != nil {
		proposed["tags"] = pq.StringArray(*input.Tags)
	}
	if input.PriceCents != nil {
		proposed["price_cents"] = *input.PriceCents
	}
	if input.CostCents != nil {
		proposed["cost_cents"] = *input.CostCents
	}
	if input.IsActive != nil {
		proposed["is_active"] = *input.IsActive
	}
	if input.IsDraft != nil {
		proposed["is_draft"] = *input.IsDraft
	}

	if input.Photo.Set {
		switch {
		case input.Photo.Key == nil:
			proposed["photo_key"] = nil
		case s.photos.IsTemp(*input.Photo.Key):
			relocate = *input.Photo.Key
		default:
			proposed["photo_key"] = *input.Photo.Key
		}
	}

	current := map[string]any{
		"sku":         product.SKU,
		"name":        product.Name,
		"description": product.Description,
		"tags":        product.Tags,
		"price_cents": product.PriceCents,
		"cost_cents":  product.CostCents,
		"is_active":   product.IsActive,
		"is_draft":    product.IsDraft,
		"photo_key":   product.PhotoKey,
	}

	return relocate, changedColumns(current, proposed, editableProductColumns), nil
}

func (s *service) finishPhotoHandover(ctx context.Context, oldKey, newKey *string, change PhotoChange) {
	if oldKey == nil {
		return
	}
	replaced := newKey != nil && *newKey != *oldKey
	removed := change.Set && change.Key == nil
	if !replaced && !removed {
		return
	}
	if err := s.photos.RemoveIfExists(ctx, *oldKey); err != nil {
		s.logg.Warn(ctx, "failed to remove replaced photo")
	}
}

// applyBandManager runs deletions, updates, then additions, and re-validates
// the complete surviving set before the transaction may commit.
func (s *service) applyBandManager(ctx context.Context, repo Repository, productID uuid.UUID, mgr BandManager) error {
	if mgr.empty() {
		return nil
	}

	for _, id := range mgr.Deleted {
		if _, err := repo.FindBandByID(ctx, id); err != nil {
			return notFoundOr(err, "discount band not found", "loading discount band")
		}
		if err := repo.DeleteBand(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting discount band")
		}
	}

	for _, upd := range mgr.Updated {
		band, err := repo.FindBandByID(ctx, upd.ID)
		if err != nil {
			return notFoundOr(err, "discount band not found", "loading discount band")
		}
		proposed := map[string]any{}
		if upd.MinQty != nil {
			proposed["min_qty"] = *upd.MinQty
		}
		if upd.MaxQty != nil {
			proposed["max_qty"] = *upd.MaxQty
		}
		if upd.UnitPriceCents != nil {
			proposed["unit_price_cents"] = *upd.UnitPriceCents
		}
		current := map[string]any{
			"min_qty":          band.MinQty,
			"max_qty":          band.MaxQty,
			"unit_price_cents": band.UnitPriceCents,
		}
		cols := changedColumns(current, proposed, []string{"min_qty", "max_qty", "unit_price_cents"})
		if len(cols) == 0 {
			continue
		}
		if _, err := repo.UpdateBandColumns(ctx, upd.ID, cols); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating discount band")
		}
	}

	for _, add := range mgr.Added {
		if _, err := repo.CreateBand(ctx, &models.ProductDiscountBand{
			ProductID:      productID,
			MinQty:         add.MinQty,
			MaxQty:         add.MaxQty,
			UnitPriceCents: add.UnitPriceCents,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating discount band")
		}
	}

	final, err := repo.ListBands(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing discount bands")
	}
	return ensureBandRanges(bandRowRanges(final))
}

func (s *service) applyMaterialManager(ctx context.Context, repo Repository, productID uuid.UUID, mgr MaterialManager) error {
	if mgr.empty() {
		return nil
	}

	for _, id := range mgr.Deleted {
		if _, err := repo.FindMaterialAssignmentByID(ctx, id); err != nil {
			return notFoundOr(err, "material assignment not found", "loading material assignment")
		}
		if err := repo.DeleteMaterialAssignment(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting material assignment")
		}
	}

	for _, upd := range mgr.Updated {
		row, err := repo.FindMaterialAssignmentByID(ctx, upd.ID)
		if err != nil {
			return notFoundOr(err, "material assignment not found", "loading material assignment")
		}
		if upd.Equivalence == nil {
			continue
		}
		cols := changedColumns(
			map[string]any{"equivalence": row.Equivalence},
			map[string]any{"equivalence": *upd.Equivalence},
			[]string{"equivalence"},
		)
		if len(cols) == 0 {
			continue
		}
		if _, err := repo.UpdateMaterialAssignmentColumns(ctx, upd.ID, cols); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating material assignment")
		}
	}

	for _, add := range mgr.Added {
		if err := s.createMaterialAssignment(ctx, repo, productID, add); err != nil {
			return err
		}
	}

	return nil
}

func (s *service) applyProcessManager(ctx context.Context, repo Repository, tx *gorm.DB, productID uuid.UUID, mgr ProcessManager) error {
	if mgr.empty() {
		return nil
	}

	for _, id := range mgr.Deleted {
		if _, err := repo.FindProcessAssignmentByID(ctx, id); err != nil {
			return notFoundOr(err, "process assignment not found", "loading process assignment")
		}
		if err := repo.DeleteProcessAssignment(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting process assignment")
		}
	}

	for _, upd := range mgr.Updated {
		assignment, err := repo.FindProcessAssignmentByID(ctx, upd.ID)
		if err != nil {
			return notFoundOr(err, "process assignment not found", "loading process assignment")
		}
		if upd.SortOrder != nil && *upd.SortOrder != assignment.SortOrder {
			if _, err := repo.UpdateProcessAssignmentColumns(ctx, upd.ID, map[string]any{"sort_order": *upd.SortOrder}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating process assignment")
			}
		}
		if err := s.applyConsumptionManager(ctx, repo, productID, assignment.ID, upd.Consumptions); err != nil {
			return err
		}
	}

	for _, add := range mgr.Added {
		if err := s.createProcessAssignment(ctx, repo, tx, productID, add); err != nil {
			return err
		}
	}

	return nil
}

func (s *service) applyConsumptionManager(ctx context.Context, repo Repository, productID, assignmentID uuid.UUID, mgr ConsumptionManager) error {
	if mgr.empty() {
		return nil
	}

	for _, id := range mgr.Deleted {
		if _, err := repo.FindConsumptionByID(ctx, id); err != nil {
			return notFoundOr(err, "consumption not found", "loading consumption")
		}
		if err := repo.DeleteConsumption(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting consumption")
		}
	}

	for _, upd := range mgr.Updated {
		row, err := repo.FindConsumptionByID(ctx, upd.ID)
		if err != nil {
			return notFoundOr(err, "consumption not found", "loading consumption")
		}
		if upd.Qty == nil {
			continue
		}
		cols := changedColumns(
			map[string]any{"qty": row.Qty},
			map[string]any{"qty": *upd.Qty},
			[]string{"qty"},
		)
		if len(cols) == 0 {
			continue
		}
		if _, err := repo.UpdateConsumptionColumns(ctx, upd.ID, cols); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating consumption")
		}
	}

	for _, add := range mgr.Added {
		if err := s.createConsumption(ctx, repo, productID, assignmentID, add); err != nil {
			return err
		}
	}

	return nil
}

func (s *service) createMaterialAssignment(ctx context.Context, repo Repository, productID uuid.UUID, input MaterialAssignmentInput) error {
	if _, err := repo.FindMaterialByID(ctx, input.MaterialID); err != nil {
		return notFoundOr(err, "material not found", "loading material")
	}
	_, err := repo.CreateMaterialAssignment(ctx, &models.ProductMaterial{
		ProductID:   productID,
		MaterialID:  input.MaterialID,
		Equivalence: input.Equivalence,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating material assignment")
	}
	return nil
}

func (s *service) createProcessAssignment(ctx context.Context, repo Repository, tx *gorm.DB, productID uuid.UUID, input ProcessAssignmentInput) error {
	var processID uuid.UUID

	switch src := input.Source.(type) {
	case ExistingProcess:
		process, err := repo.FindProcessByID(ctx, src.ID)
		if err != nil {
			return notFoundOr(err, "process not found", "loading process")
		}
		processID = process.ID
	case NewProcess:
		process, err := s.processes.CreateInTx(ctx, tx, src.Name, src.Description)
		if err != nil {
			return err
		}
		processID = process.ID
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "process assignment needs a process reference or definition")
	}

	assignment, err := repo.CreateProcessAssignment(ctx, &models.ProductProcess{
		ProductID: productID,
		ProcessID: processID,
		SortOrder: input.SortOrder,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating process assignment")
	}

	for _, c := range input.Consumptions {
		if err := s.createConsumption(ctx, repo, productID, assignment.ID, c); err != nil {
			return err
		}
	}
	return nil
}

// createConsumption resolves (product, material) to the material assignment
// the row must reference. A consumption for an unassigned material is a 404,
// never an implicit assignment.
func (s *service) createConsumption(ctx context.Context, repo Repository, productID, assignmentID uuid.UUID, input ConsumptionInput) error {
	assignment, err := repo.ResolveMaterialAssignment(ctx, productID, input.MaterialID)
	if err != nil {
		return notFoundOr(err, "material is not assigned to this product", "resolving material assignment")
	}
	_, err = repo.CreateConsumption(ctx, &models.MaterialConsumption{
		ProductID:         productID,
		ProductMaterialID: assignment.ID,
		ProductProcessID:  assignmentID,
		Qty:               input.Qty,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating consumption")
	}
	return nil
}

func (s *service) downloadPhoto(ctx context.Context, key *string) []byte {
	if key == nil || *key == "" {
		return nil
	}
	data, err := s.photos.Download(ctx, *key)
	if err != nil {
		s.logg.Warn(ctx, "failed to download product photo")
		return nil
	}
	return data
}

func bandInputRanges(bands []BandInput) []qtyRange {
	ranges := make([]qtyRange, 0, len(bands))
	for _, b := range bands {
		ranges = append(ranges, qtyRange{Min: b.MinQty, Max: b.MaxQty})
	}
	return ranges
}

func bandRowRanges(bands []models.ProductDiscountBand) []qtyRange {
	ranges := make([]qtyRange, 0, len(bands))
	for _, b := range bands {
		ranges = append(ranges, qtyRange{Min: b.MinQty, Max: b.MaxQty})
	}
	return ranges
}

func notFoundOr(err error, notFoundMsg, wrapMsg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMsg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, wrapMsg)
}
