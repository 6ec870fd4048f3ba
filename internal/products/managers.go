package products

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Delta managers carry the client's declarative change set for one dependent
// collection. Deletions run first, then updates, then additions.

type BandInput struct {
	MinQty         int `json:"min_qty" validate:"gte=0"`
	MaxQty         int `json:"max_qty" validate:"gte=0"`
	UnitPriceCents int `json:"unit_price_cents" validate:"gte=0"`
}

type BandUpdate struct {
	ID             uuid.UUID `json:"id" validate:"required"`
	MinQty         *int      `json:"min_qty"`
	MaxQty         *int      `json:"max_qty"`
	UnitPriceCents *int      `json:"unit_price_cents"`
}

type BandManager struct {
	Added   []BandInput `json:"added"`
	Updated []BandUpdate `json:"updated"`
	Deleted []uuid.UUID `json:"deleted"`
}

type MaterialAssignmentInput struct {
	MaterialID  uuid.UUID       `json:"material_id" validate:"required"`
	Equivalence decimal.Decimal `json:"equivalence"`
}

type MaterialAssignmentUpdate struct {
	ID          uuid.UUID        `json:"id" validate:"required"`
	Equivalence *decimal.Decimal `json:"equivalence"`
}

type MaterialManager struct {
	Added   []MaterialAssignmentInput  `json:"added"`
	Updated []MaterialAssignmentUpdate `json:"updated"`
	Deleted []uuid.UUID                `json:"deleted"`
}

// ProcessSource names the process a new assignment points at: either an
// existing row or an inline definition created alongside the assignment.
// Exactly one of the two shapes is valid; the decode layer enforces that.
type ProcessSource interface {
	isProcessSource()
}

type ExistingProcess struct {
	ID uuid.UUID
}

type NewProcess struct {
	Name        string
	Description *string
}

func (ExistingProcess) isProcessSource() {}
func (NewProcess) isProcessSource()      {}

type ConsumptionInput struct {
	MaterialID uuid.UUID       `json:"material_id" validate:"required"`
	Qty        decimal.Decimal `json:"qty"`
}

type ConsumptionUpdate struct {
	ID  uuid.UUID        `json:"id" validate:"required"`
	Qty *decimal.Decimal `json:"qty"`
}

type ConsumptionManager struct {
	Added   []ConsumptionInput  `json:"added"`
	Updated []ConsumptionUpdate `json:"updated"`
	Deleted []uuid.UUID         `json:"deleted"`
}

type ProcessAssignmentInput struct {
	Source       ProcessSource
	SortOrder    int
	Consumptions []ConsumptionInput
}

type ProcessAssignmentUpdate struct {
	ID           uuid.UUID
	SortOrder    *int
	Consumptions ConsumptionManager
}

type ProcessManager struct {
	Added   []ProcessAssignmentInput
	Updated []ProcessAssignmentUpdate
	Deleted []uuid.UUID
}

func (m BandManager) empty() bool {
	return len(m.Added) == 0 && len(m.Updated) == 0 && len(m.Deleted) == 0
}

func (m MaterialManager) empty() bool {
	return len(m.Added) == 0 && len(m.Updated) == 0 && len(m.Deleted) == 0
}

func (m ProcessManager) empty() bool {
	return len(m.Added) == 0 && len(m.Updated) == 0 && len(m.Deleted) == 0
}

func (m ConsumptionManager) empty() bool {
	return len(m.Added) == 0 && len(m.Updated) == 0 && len(m.Deleted) == 0
}
