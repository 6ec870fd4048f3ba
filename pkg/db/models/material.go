package models

import (
	"time"

	"github.com/google/uuid"
)

// Material is a raw input that products consume.
type Material struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Unit      string    `gorm:"column:unit;not null"`
	CostCents int       `gorm:"column:cost_cents;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
