package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaterialConsumption records how much of an assigned material a process step
// consumes. It references the product's material assignment, not the material
// itself.
type MaterialConsumption struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID         uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductMaterialID uuid.UUID       `gorm:"column:product_material_id;type:uuid;not null"`
	ProductProcessID  uuid.UUID       `gorm:"column:product_process_id;type:uuid;not null"`
	Qty               decimal.Decimal `gorm:"column:qty;type:numeric(12,4);not null"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
