package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductMaterial links a material to a product with its conversion factor.
// There is deliberately no uniqueness constraint on (product_id, material_id);
// repeated assignments of the same material are allowed.
type ProductMaterial struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	MaterialID  uuid.UUID       `gorm:"column:material_id;type:uuid;not null"`
	Equivalence decimal.Decimal `gorm:"column:equivalence;type:numeric(12,4);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
