package products

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dcastella/fabrica-backend/pkg/db/models"
)

var testDBSeq atomic.Int64

// The production schema lives in the goose migrations; tests mirror it in
// sqlite form so the repository and orchestrator run against real SQL.
var testSchema = []string{
	`CREATE TABLE products (
		id text PRIMARY KEY,
		sku text NOT NULL,
		name text NOT NULL,
		description text,
		tags text,
		price_cents integer,
		cost_cents integer,
		is_active integer NOT NULL DEFAULT 1,
		is_draft integer NOT NULL DEFAULT 0,
		photo_key text,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE materials (
		id text PRIMARY KEY,
		name text NOT NULL,
		unit text NOT NULL,
		cost_cents integer NOT NULL DEFAULT 0,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE processes (
		id text PRIMARY KEY,
		name text NOT NULL,
		description text,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE product_materials (
		id text PRIMARY KEY,
		product_id text NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		material_id text NOT NULL REFERENCES materials(id),
		equivalence text NOT NULL,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE product_processes (
		id text PRIMARY KEY,
		product_id text NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		process_id text NOT NULL REFERENCES processes(id),
		sort_order integer NOT NULL DEFAULT 0,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE material_consumptions (
		id text PRIMARY KEY,
		product_id text NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		product_material_id text NOT NULL REFERENCES product_materials(id) ON DELETE CASCADE,
		product_process_id text NOT NULL REFERENCES product_processes(id) ON DELETE CASCADE,
		qty text NOT NULL,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE product_discount_bands (
		id text PRIMARY KEY,
		product_id text NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		min_qty integer NOT NULL,
		max_qty integer NOT NULL,
		unit_price_cents integer NOT NULL,
		created_at datetime,
		updated_at datetime
	)`,
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:products_test_%d?mode=memory&cache=shared&_foreign_keys=on", testDBSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("unwrapping sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range testSchema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("applying schema: %v", err)
		}
	}
	return conn
}

// testTxRunner satisfies the orchestrator's transaction port. Sqlite has no
// repeatable-read mode, so the options variant falls back to a plain
// transaction.
type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r testTxRunner) WithTxOptions(ctx context.Context, _ *sql.TxOptions, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func seedMaterial(t *testing.T, db *gorm.DB, name string) *models.Material {
	t.Helper()
	row := &models.Material{ID: uuid.New(), Name: name, Unit: "kg", CostCents: 150}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seeding material: %v", err)
	}
	return row
}

func seedProcess(t *testing.T, db *gorm.DB, name string) *models.Process {
	t.Helper()
	row := &models.Process{ID: uuid.New(), Name: name}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seeding process: %v", err)
	}
	return row
}

func seedProduct(t *testing.T, db *gorm.DB, sku string) *models.Product {
	t.Helper()
	row := &models.Product{ID: uuid.New(), SKU: sku, Name: "product " + sku, IsActive: true}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seeding product: %v", err)
	}
	return row
}

func seedAssignment(t *testing.T, db *gorm.DB, productID, materialID uuid.UUID, createdAt time.Time) *models.ProductMaterial {
	t.Helper()
	row := &models.ProductMaterial{
		ID:         uuid.New(),
		ProductID:  productID,
		MaterialID: materialID,
		CreatedAt:  createdAt,
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("seeding material assignment: %v", err)
	}
	return row
}
