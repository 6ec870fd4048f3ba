package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductDiscountBand captures tiered pricing per product over an inclusive
// quantity range. Bands for one product must not overlap.
type ProductDiscountBand struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	MinQty         int       `gorm:"column:min_qty;not null"`
	MaxQty         int       `gorm:"column:max_qty;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
