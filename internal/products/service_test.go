package products

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dcastella/fabrica-backend/internal/processes"
	"github.com/dcastella/fabrica-backend/pkg/db/models"
)

const tempPrefix = "uploads/tmp/"

type fakePhotoStore struct {
	objects map[string][]byte
	moveErr error
	removed []string
}

func newFakePhotoStore() *fakePhotoStore {
	return &fakePhotoStore{objects: map[string][]byte{}}
}

func (f *fakePhotoStore) IsTemp(key string) bool {
	return strings.HasPrefix(key, tempPrefix)
}

func (f *fakePhotoStore) ProductDir(productID uuid.UUID) string {
	return "entities/products/" + productID.String() + "/"
}

func (f *fakePhotoStore) MoveToProductDir(_ context.Context, tempKey string, productID uuid.UUID) (string, error) {
	if f.moveErr != nil {
		return "", f.moveErr
	}
	finalKey := f.ProductDir(productID) + strings.TrimPrefix(tempKey, tempPrefix)
	f.objects[finalKey] = f.objects[tempKey]
	delete(f.objects, tempKey)
	return finalKey, nil
}

func (f *fakePhotoStore) RemoveIfExists(_ context.Context, key string) error {
	delete(f.objects, key)
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakePhotoStore) Download(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object missing")
	}
	return data, nil
}

type fakeCleanup struct {
	prefixes []string
}

func (f *fakeCleanup) Schedule(prefix string) {
	f.prefixes = append(f.prefixes, prefix)
}

type testEnv struct {
	db      *gorm.DB
	photos  *fakePhotoStore
	cleanup *fakeCleanup
	svc     Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	photos := newFakePhotoStore()
	cleanup := &fakeCleanup{}
	procSvc := processes.NewService(processes.NewRepository(db), testLogger())
	svc := NewService(NewRepository(db), testTxRunner{db: db}, procSvc, photos, cleanup, testLogger())
	return &testEnv{db: db, photos: photos, cleanup: cleanup, svc: svc}
}

func (e *testEnv) loadProduct(t *testing.T, id uuid.UUID) *models.Product {
	t.Helper()
	var row models.Product
	if err := e.db.First(&row, "id = ?", id).Error; err != nil {
		t.Fatalf("loading product row: %v", err)
	}
	return &row
}

func TestCreateProductBuildsFullAggregate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	steel := seedMaterial(t, env.db, "steel")
	cutting := seedProcess(t, env.db, "cutting")

	dto, err := env.svc.CreateProduct(ctx, CreateProductInput{
		SKU:  "BRK-100",
		Name: "Bracket",
		Materials: []MaterialAssignmentInput{
			{MaterialID: steel.ID, Equivalence: decimal.NewFromFloat(2.5)},
		},
		Processes: []ProcessAssignmentInput{
			{Source: ExistingProcess{ID: cutting.ID}, SortOrder: 2},
			{
				Source:    NewProcess{Name: "welding"},
				SortOrder: 1,
				Consumptions: []ConsumptionInput{
					{MaterialID: steel.ID, Qty: decimal.NewFromInt(3)},
				},
			},
		},
		Bands: []BandInput{
			{MinQty: 11, MaxQty: 20, UnitPriceCents: 90},
			{MinQty: 1, MaxQty: 10, UnitPriceCents: 100},
		},
	})
	if err != nil {
		t.Fatalf("creating product: %v", err)
	}

	if len(dto.Materials) != 1 || dto.Materials[0].MaterialID != steel.ID {
		t.Fatalf("unexpected materials: %+v", dto.Materials)
	}
	if !dto.Materials[0].Equivalence.Equal(decimal.NewFromFloat(2.5)) {
		t.Fatalf("equivalence mangled: %s", dto.Materials[0].Equivalence)
	}

	if len(dto.Processes) != 2 {
		t.Fatalf("expected 2 process assignments, got %d", len(dto.Processes))
	}
	if dto.Processes[0].SortOrder != 1 || dto.Processes[1].SortOrder != 2 {
		t.Fatalf("process assignments out of order: %+v", dto.Processes)
	}
	welding := dto.Processes[0]
	if len(welding.Consumptions) != 1 {
		t.Fatalf("expected a consumption on the inline process, got %+v", welding.Consumptions)
	}
	if welding.Consumptions[0].ProductMaterialID != dto.Materials[0].ID {
		t.Fatal("consumption does not reference the material assignment")
	}
	if !welding.Consumptions[0].Qty.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("qty mangled: %s", welding.Consumptions[0].Qty)
	}

	// The inline definition must have landed in the processes table.
	var processCount int64
	if err := env.db.Model(&models.Process{}).Where("name = ?", "welding").Count(&processCount).Error; err != nil {
		t.Fatalf("counting processes: %v", err)
	}
	if processCount != 1 {
		t.Fatalf("expected inline process row, got %d", processCount)
	}

	if len(dto.Bands) != 2 || dto.Bands[0].MinQty != 1 || dto.Bands[1].MinQty != 11 {
		t.Fatalf("bands out of order: %+v", dto.Bands)
	}
}

func TestCreateProductValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.CreateProduct(ctx, CreateProductInput{SKU: " ", Name: "x"})
	if codeOf(t, err) != "VALIDATION_ERROR" {
		t.Fatalf("blank sku should be a validation error, got %v", err)
	}

	_, err = env.svc.CreateProduct(ctx, CreateProductInput{
		SKU: "S", Name: "N",
		Bands: []BandInput{{MinQty: 10, MaxQty: 1}},
	})
	if codeOf(t, err) != "VALIDATION_ERROR" {
		t.Fatalf("inverted band should be a validation error, got %v", err)
	}

	_, err = env.svc.CreateProduct(ctx, CreateProductInput{
		SKU: "S", Name: "N",
		Bands: []BandInput{{MinQty: 1, MaxQty: 10}, {MinQty: 5, MaxQty: 15}},
	})
	if codeOf(t, err) != "CONFLICT" {
		t.Fatalf("overlapping bands should conflict, got %v", err)
	}

	_, err = env.svc.CreateProduct(ctx, CreateProductInput{
		SKU: "S", Name: "N",
		Materials: []MaterialAssignmentInput{{MaterialID: uuid.New()}},
	})
	if codeOf(t, err) != "NOT_FOUND" {
		t.Fatalf("unknown material should be not found, got %v", err)
	}
}

func TestCreateProductMovesTempPhoto(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.photos.objects[tempPrefix+"shot.png"] = []byte("img-bytes")

	dto, err := env.svc.CreateProduct(ctx, CreateProductInput{
		SKU: "PHO-1", Name: "Widget",
		PhotoKey: ptr(tempPrefix + "shot.png"),
	})
	if err != nil {
		t.Fatalf("creating product: %v", err)
	}

	row := env.loadProduct(t, dto.ID)
	wantKey := env.photos.ProductDir(dto.ID) + "shot.png"
	if row.PhotoKey == nil || *row.PhotoKey != wantKey {
		t.Fatalf("photo key not relocated: %v", row.PhotoKey)
	}
	if _, stillTemp := env.photos.objects[tempPrefix+"shot.png"]; stillTemp {
		t.Fatal("temp object should be gone after the move")
	}
	if dto.Photo == nil {
		t.Fatal("expected inline photo in response")
	}
	decoded, err := base64.StdEncoding.DecodeString(*dto.Photo)
	if err != nil || string(decoded) != "img-bytes" {
		t.Fatalf("photo payload mangled: %q %v", decoded, err)
	}
}

func TestUpdateProductScalarDiff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.CreateProduct(ctx, CreateProductInput{SKU: "SCL-1", Name: "Before"})
	if err != nil {
		t.Fatalf("creating product: %v", err)
	}

	dto, err := env.svc.UpdateProduct(ctx, created.ID, UpdateProductInput{
		Name:       ptr("After"),
		PriceCents: ptr(1250),
	})
	if err != nil {
		t.Fatalf("updating product: %v", err)
	}
	if dto.Name != "After" || dto.PriceCents == nil || *dto.PriceCents != 1250 {
		t.Fatalf("scalar changes not applied: %+v", dto)
	}
	if dto.SKU != "SCL-1" {
		t.Fatalf("untouched column changed: %s", dto.SKU)
	}
}

func TestUpdateProductNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.UpdateProduct(context.Background(), uuid.New(), UpdateProductInput{Name: ptr("x")})
	if codeOf(t, err) != "NOT_FOUND" {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateProductRollsBackOnBandConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.CreateProduct(ctx, CreateProductInput{
		SKU: "RBK-1", Name: "Original",
		Bands: []BandInput{{MinQty: 1, MaxQty: 10, UnitPriceCents: 100}},
	})
	if err != nil {
		t.Fatalf("creating product: %v", err)
	}

	_, err = env.svc.UpdateProduct(ctx, created.ID, UpdateProductInput{
		Name: ptr("Renamed"),
		Bands: BandManager{
			Added: []BandInput{{MinQty: 5, MaxQty: 15, UnitPriceCents: 80}},
		},
	})
	if codeOf(t, err) != "CONFLICT" {
		t.Fatalf("expected band conflict, got %v", err)
	}

	// The scalar rename ran inside the same transaction and must roll back
	// with the band change.
	row := env.loadProduct(t, created.ID)
	if row.Name != "Original" {
		t.Fatalf("rename survived a failed transaction: %s", row.Name)
	}
	var bandCount int64
	if err := env.db.Model(&models.ProductDiscountBand{}).Where("product_id = ?", created.ID).Count(&bandCount).Error; err != nil {
		t.Fatalf("counting bands: %v", err)
	}
	if bandCount != 1 {
		t.Fatalf("expected 1 surviving band, got %d", bandCount)
	}

	if len(env.cleanup.prefixes) != 1 || env.cleanup.prefixes[0] != env.photos.ProductDir(created.ID) {
		t.Fatalf("expected cleanup of the product directory, got %v", env.cleanup.prefixes)
	}
}

func TestUpdateProductBandDeleteRunsBeforeAdd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.CreateProduct(ctx, CreateProductInput{
		SKU: "ORD-1", Name: "Ordered",
		Bands: []BandInput{{MinQty: 1, MaxQty: 10, UnitPriceCents: 100}},
	})
	if err != nil {
		t.Fatalf("creating product: %v", err)
	}

	// The replacement overlaps the old band; it only validates because the
	// deletion is applied first.
	dto, err := env.svc.UpdateProduct(ctx, created.ID, UpdateProductInput{
		Bands: BandManager{
			Deleted: []uuid.UUID{created.Bands[0].ID},
			Added:   []BandInput{{MinQty: 5, MaxQty: 15, UnitPriceCents: 80}},
		},
	})
	if err != nil {
		t.Fatalf("replacing band: %v", err)
	}
	if len(dto.Bands) != 1 || dto.Bands[0].MinQty != 5 || dto.Bands[0].MaxQty != 15 {
		t.Fatalf("unexpected band set after replacement: %+v", dto.Bands)
	}
}

func TestUpdateProductConsumptionRequiresAssignment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cutting := seedProcess(t, env.db, "cutting")
	loose := seedMaterial(t, env.db, "unassigned")

	created, err := env.svc.CreateProduct(ctx, CreateProductInput{
		SKU: "CON-1", Name: "Widget",
		Processes: []ProcessAssignmentInput{{Source: ExistingProcess{ID: cutting.ID}}},
	})
	if err != nil {
		t.Fatalf("creating product: %v", err)
	}

	_, err = env.svc.UpdateProduct(ctx, created.ID, UpdateProductInput{
		Processes: ProcessManager{
			Updated: []ProcessAssignmentUpdate{{
				ID: created.Processes[0].ID,
				Consumptions: ConsumptionManager{
					Added: []ConsumptionInput{{MaterialID: loose.ID, Qty: decimal.NewFromInt(1)}},
				},
			}},
		},
	})
	if codeOf(t, err) != "NOT_FOUND" {
		t.Fatalf("consumption of unassigned material should be not found, got %v", err)
	}

	var consumptionCount int64
	if err := env.db.Model(&models.MaterialConsumption{}).Count(&consumptionCount).Error; err != nil {
		t.Fatalf("counting consumptions: %v", err)
	}
	if consumptionCount != 0 {
		t.Fatalf("expected rollback to remove consumptions, found %d", consumptionCount)
	}
}

func TestUpdateProductMaterialThenConsumptionInOneCall(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cutting := seedProcess(t, env.db, "cutting")
	steel := seedMaterial(t, env.db, "steel")

	created, err := env.svc.CreateProduct(ctx, CreateProductInput{
		SKU: "ONE-1", Name: "Widget",
		Processes: []ProcessAssignmentInput{{Source: ExistingProcess{ID: cutting.ID}}},
	})
	if err != nil {
		t.Fatalf("creating product: %v", err)
	}

	// Material managers apply before process managers, so an assignment and a
	// consumption of it can arrive in the same request.
	dto, err := env.svc.UpdateProduct(ctx, created.ID, UpdateProductInput{
		Materials: MaterialManager{
			Added: []MaterialAssignmentInput{{MaterialID: steel.ID, Equivalence: decimal.NewFromInt(1)}},
		},
		Processes: ProcessManager{
			Updated: []ProcessAssignmentUpdate{{
				ID: created.Processes[0].ID,
				Consumptions: ConsumptionManager{
					Added: []ConsumptionInput{{MaterialID: steel.ID, Qty: decimal.NewFromInt(2)}},
				},
			}},
		},
	})
	if err != nil {
		t.Fatalf("updating product: %v", err)
	}
	if len(dto.Materials) != 1 || len(dto.Processes[0].Consumptions) != 1 {
		t.Fatalf("aggregate missing new rows: %+v", dto)
	}
	if dto.Processes[0].Consumptions[0].ProductMaterialID != dto.Materials[0].ID {
		t.Fatal("consumption not wired to the new assignment")
	}
}

func TestUpdateProductPhotoReplaceRemovesOld(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.photos.objects[tempPrefix+"old.png"] = []byte("old")

	created, err := env.svc.CreateProduct(ctx, CreateProductInput{
		SKU: "PHR-1", Name: "Widget",
		PhotoKey: ptr(tempPrefix + "old.png"),
	})
	if err != nil {
		t.Fatalf("creating product: %v", err)
	}
	oldKey := env.photos.ProductDir(created.ID) + "old.png"

	env.photos.objects[tempPrefix+"new.png"] = []byte("new")
	_, err = env.svc.UpdateProduct(ctx, created.ID, UpdateProductInput{
		Photo: PhotoChange{Set: true, Key: ptr(tempPrefix + "new.png")},
	})
	if err != nil {
		t.Fatalf("updating product: %v", err)
	}

	row := env.loadProduct(t, created.ID)
	wantKey := env.photos.ProductDir(created.ID) + "new.png"
	if row.PhotoKey == nil || *row.PhotoKey != wantKey {
		t.Fatalf("photo key not replaced: %v", row.PhotoKey)
	}
	if _, exists := env.photos.objects[oldKey]; exists {
		t.Fatal("replaced photo should be removed after commit")
	}
}

func TestUpdateProductPhotoRemoval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.photos.objects[tempPrefix+"gone.png"] = []byte("bytes")

	created, err := env.svc.CreateProduct(ctx, CreateProductInput{
		SKU: "PHX-1", Name: "Widget",
		PhotoKey: ptr(tempPrefix + "gone.png"),
	})
	if err != nil {
		t.Fatalf("creating product: %v", err)
	}
	oldKey := env.photos.ProductDir(created.ID) + "gone.png"

	_, err = env.svc.UpdateProduct(ctx, created.ID, UpdateProductInput{
		Photo: PhotoChange{Set: true, Key: nil},
	})
	if err != nil {
		t.Fatalf("removing photo: %v", err)
	}

	row := env.loadProduct(t, created.ID)
	if row.PhotoKey != nil {
		t.Fatalf("photo key should be cleared, got %v", *row.PhotoKey)
	}
	if _, exists := env.photos.objects[oldKey]; exists {
		t.Fatal("stored photo should be removed after commit")
	}
}

func TestUpdateProductPhotoMoveFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.CreateProduct(ctx, CreateProductInput{SKU: "PHF-1", Name: "Original"})
	if err != nil {
		t.Fatalf("creating product: %v", err)
	}

	env.photos.moveErr = errors.New("storage down")
	_, err = env.svc.UpdateProduct(ctx, created.ID, UpdateProductInput{
		Name:  ptr("Renamed"),
		Photo: PhotoChange{Set: true, Key: ptr(tempPrefix + "x.png")},
	})
	if codeOf(t, err) != "DEPENDENCY_ERROR" {
		t.Fatalf("expected dependency error, got %v", err)
	}

	row := env.loadProduct(t, created.ID)
	if row.Name != "Original" {
		t.Fatalf("rename survived a failed photo move: %s", row.Name)
	}
	if len(env.cleanup.prefixes) == 0 {
		t.Fatal("expected cleanup of the product directory")
	}
}

func TestDeleteProductCascadesAndSchedulesCleanup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	steel := seedMaterial(t, env.db, "steel")

	created, err := env.svc.CreateProduct(ctx, CreateProductInput{
		SKU: "DEL-1", Name: "Widget",
		Materials: []MaterialAssignmentInput{{MaterialID: steel.ID, Equivalence: decimal.NewFromInt(1)}},
		Bands:     []BandInput{{MinQty: 1, MaxQty: 10, UnitPriceCents: 100}},
	})
	if err != nil {
		t.Fatalf("creating product: %v", err)
	}

	if err := env.svc.DeleteProduct(ctx, created.ID); err != nil {
		t.Fatalf("deleting product: %v", err)
	}

	var productCount, bandCount, assignmentCount int64
	env.db.Model(&models.Product{}).Where("id = ?", created.ID).Count(&productCount)
	env.db.Model(&models.ProductDiscountBand{}).Where("product_id = ?", created.ID).Count(&bandCount)
	env.db.Model(&models.ProductMaterial{}).Where("product_id = ?", created.ID).Count(&assignmentCount)
	if productCount != 0 || bandCount != 0 || assignmentCount != 0 {
		t.Fatalf("dependent rows survived delete: product=%d bands=%d assignments=%d", productCount, bandCount, assignmentCount)
	}

	if len(env.cleanup.prefixes) != 1 || env.cleanup.prefixes[0] != env.photos.ProductDir(created.ID) {
		t.Fatalf("expected cleanup of the product directory, got %v", env.cleanup.prefixes)
	}

	err = env.svc.DeleteProduct(ctx, created.ID)
	if codeOf(t, err) != "NOT_FOUND" {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}

func TestGetProductNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GetProduct(context.Background(), uuid.New())
	if codeOf(t, err) != "NOT_FOUND" {
		t.Fatalf("expected not found, got %v", err)
	}
}
