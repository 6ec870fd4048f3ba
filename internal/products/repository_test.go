package products

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcastella/fabrica-backend/pkg/db/models"
)

func TestGetAggregateOrdersCollections(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := seedProduct(t, db, "AGG-1")
	cutting := seedProcess(t, db, "cutting")
	welding := seedProcess(t, db, "welding")

	// Assignments inserted out of sort order; the aggregate must come back
	// ordered by sort_order.
	_, err := repo.CreateProcessAssignment(ctx, &models.ProductProcess{
		ProductID: product.ID, ProcessID: welding.ID, SortOrder: 2,
	})
	require.NoError(t, err)
	first, err := repo.CreateProcessAssignment(ctx, &models.ProductProcess{
		ProductID: product.ID, ProcessID: cutting.ID, SortOrder: 1,
	})
	require.NoError(t, err)

	for _, band := range []models.ProductDiscountBand{
		{ProductID: product.ID, MinQty: 11, MaxQty: 20, UnitPriceCents: 90},
		{ProductID: product.ID, MinQty: 1, MaxQty: 10, UnitPriceCents: 100},
	} {
		b := band
		_, err := repo.CreateBand(ctx, &b)
		require.NoError(t, err)
	}

	material := seedMaterial(t, db, "steel")
	assignment := seedAssignment(t, db, product.ID, material.ID, time.Now())
	_, err = repo.CreateConsumption(ctx, &models.MaterialConsumption{
		ProductID:         product.ID,
		ProductMaterialID: assignment.ID,
		ProductProcessID:  first.ID,
	})
	require.NoError(t, err)

	aggregate, err := repo.GetAggregate(ctx, product.ID)
	require.NoError(t, err)

	require.Len(t, aggregate.ProcessAssignments, 2)
	assert.Equal(t, 1, aggregate.ProcessAssignments[0].SortOrder)
	assert.Equal(t, 2, aggregate.ProcessAssignments[1].SortOrder)
	assert.Len(t, aggregate.ProcessAssignments[0].Consumptions, 1)
	require.Len(t, aggregate.DiscountBands, 2)
	assert.Equal(t, 1, aggregate.DiscountBands[0].MinQty)
	assert.Len(t, aggregate.MaterialAssignments, 1)
}

func TestResolveMaterialAssignmentOldestWins(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := seedProduct(t, db, "RES-1")
	material := seedMaterial(t, db, "steel")

	older := seedAssignment(t, db, product.ID, material.ID, time.Now().Add(-time.Hour))
	seedAssignment(t, db, product.ID, material.ID, time.Now())

	resolved, err := repo.ResolveMaterialAssignment(ctx, product.ID, material.ID)
	require.NoError(t, err)
	assert.Equal(t, older.ID, resolved.ID)
}

func TestUpdateProductColumnsReportsRowsAffected(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := seedProduct(t, db, "UPD-1")

	affected, err := repo.UpdateProductColumns(ctx, product.ID, map[string]any{"name": "renamed"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = repo.UpdateProductColumns(ctx, uuid.New(), map[string]any{"name": "ghost"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}
