package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductProcess assigns a process to a product at a sort position.
// Sort order ties are allowed; readers order by sort_order, created_at.
type ProductProcess struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID    uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	ProcessID    uuid.UUID             `gorm:"column:process_id;type:uuid;not null"`
	SortOrder    int                   `gorm:"column:sort_order;not null;default:0"`
	Consumptions []MaterialConsumption `gorm:"foreignKey:ProductProcessID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
