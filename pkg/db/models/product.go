package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product is the catalog aggregate root. Material assignments, process
// assignments, consumptions and discount bands hang off it and cascade on
// delete at the database layer.
type Product struct {
	ID                  uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU                 string                `gorm:"column:sku;not null"`
	Name                string                `gorm:"column:name;not null"`
	Description         *string               `gorm:"column:description"`
	Tags                pq.StringArray        `gorm:"column:tags;type:text[]"`
	PriceCents          *int                  `gorm:"column:price_cents"`
	CostCents           *int                  `gorm:"column:cost_cents"`
	IsActive            bool                  `gorm:"column:is_active;not null;default:true"`
	IsDraft             bool                  `gorm:"column:is_draft;not null;default:false"`
	PhotoKey            *string               `gorm:"column:photo_key"`
	MaterialAssignments []ProductMaterial     `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	ProcessAssignments  []ProductProcess      `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	DiscountBands       []ProductDiscountBand `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
