package products

import (
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dcastella/fabrica-backend/pkg/db/models"
)

// ProductDTO is the aggregate response shape. The photo travels inline as
// base64 content; raw storage keys never leave the service.
type ProductDTO struct {
	ID          uuid.UUID `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Tags        []string  `json:"tags"`
	PriceCents  *int      `json:"price_cents"`
	CostCents   *int      `json:"cost_cents"`
	IsActive    bool      `json:"is_active"`
	IsDraft     bool      `json:"is_draft"`
	Photo       *string   `json:"photo,omitempty"`

	Materials []MaterialAssignmentDTO `json:"materials"`
	Processes []ProcessAssignmentDTO  `json:"processes"`
	Bands     []DiscountBandDTO       `json:"discount_bands"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MaterialAssignmentDTO struct {
	ID          uuid.UUID       `json:"id"`
	MaterialID  uuid.UUID       `json:"material_id"`
	Equivalence decimal.Decimal `json:"equivalence"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ProcessAssignmentDTO struct {
	ID           uuid.UUID        `json:"id"`
	ProcessID    uuid.UUID        `json:"process_id"`
	SortOrder    int              `json:"sort_order"`
	Consumptions []ConsumptionDTO `json:"consumptions"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type ConsumptionDTO struct {
	ID                uuid.UUID       `json:"id"`
	ProductMaterialID uuid.UUID       `json:"product_material_id"`
	Qty               decimal.Decimal `json:"qty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type DiscountBandDTO struct {
	ID             uuid.UUID `json:"id"`
	MinQty         int       `json:"min_qty"`
	MaxQty         int       `json:"max_qty"`
	UnitPriceCents int       `json:"unit_price_cents"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func buildProductDTO(product *models.Product, photo []byte) *ProductDTO {
	dto := &ProductDTO{
		ID:          product.ID,
		SKU:         product.SKU,
		Name:        product.Name,
		Description: product.Description,
		Tags:        []string(product.Tags),
		PriceCents:  product.PriceCents,
		CostCents:   product.CostCents,
		IsActive:    product.IsActive,
		IsDraft:     product.IsDraft,
		Materials:   make([]MaterialAssignmentDTO, 0, len(product.MaterialAssignments)),
		Processes:   make([]ProcessAssignmentDTO, 0, len(product.ProcessAssignments)),
		Bands:       make([]DiscountBandDTO, 0, len(product.DiscountBands)),
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}

	if len(photo) > 0 {
		encoded := base64.StdEncoding.EncodeToString(photo)
		dto.Photo = &encoded
	}

	for _, row := range product.MaterialAssignments {
		dto.Materials = append(dto.Materials, MaterialAssignmentDTO{
			ID:          row.ID,
			MaterialID:  row.MaterialID,
			Equivalence: row.Equivalence,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
		})
	}

	for _, row := range product.ProcessAssignments {
		assignment := ProcessAssignmentDTO{
			ID:           row.ID,
			ProcessID:    row.ProcessID,
			SortOrder:    row.SortOrder,
			Consumptions: make([]ConsumptionDTO, 0, len(row.Consumptions)),
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
		}
		for _, c := range row.Consumptions {
			assignment.Consumptions = append(assignment.Consumptions, ConsumptionDTO{
				ID:                c.ID,
				ProductMaterialID: c.ProductMaterialID,
				Qty:               c.Qty,
				CreatedAt:         c.CreatedAt,
				UpdatedAt:         c.UpdatedAt,
			})
		}
		dto.Processes = append(dto.Processes, assignment)
	}

	for _, row := range product.DiscountBands {
		dto.Bands = append(dto.Bands, DiscountBandDTO{
			ID:             row.ID,
			MinQty:         row.MinQty,
			MaxQty:         row.MaxQty,
			UnitPriceCents: row.UnitPriceCents,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		})
	}

	return dto
}
