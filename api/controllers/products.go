package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dcastella/fabrica-backend/api/responses"
	"github.com/dcastella/fabrica-backend/api/validators"
	productsvc "github.com/dcastella/fabrica-backend/internal/products"
	pkgerrors "github.com/dcastella/fabrica-backend/pkg/errors"
	"github.com/dcastella/fabrica-backend/pkg/logger"
)

func CreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func UpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toUpdateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func DeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func parseProductID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "productId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return id, nil
}

type createProductRequest struct {
	SKU           string                       `json:"sku" validate:"required"`
	Name          string                       `json:"name" validate:"required"`
	Description   *string                      `json:"description"`
	Tags          []string                     `json:"tags"`
	PriceCents    *int                         `json:"price_cents" validate:"omitempty,gte=0"`
	CostCents     *int                         `json:"cost_cents" validate:"omitempty,gte=0"`
	IsActive      bool                         `json:"is_active"`
	IsDraft       bool                         `json:"is_draft"`
	Photo         *string                      `json:"photo"`
	Materials     []materialAssignmentRequest  `json:"materials" validate:"dive"`
	Processes     []processAssignmentRequest   `json:"processes" validate:"dive"`
	DiscountBands []productsvc.BandInput       `json:"discount_bands" validate:"dive"`
}

func (p createProductRequest) toCreateInput() (productsvc.CreateProductInput, error) {
	input := productsvc.CreateProductInput{
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Tags:        p.Tags,
		PriceCents:  p.PriceCents,
		CostCents:   p.CostCents,
		IsActive:    p.IsActive,
		IsDraft:     p.IsDraft,
		PhotoKey:    p.Photo,
		Bands:       p.DiscountBands,
	}

	for _, m := range p.Materials {
		input.Materials = append(input.Materials, m.toInput())
	}
	for _, pr := range p.Processes {
		assignment, err := pr.toInput()
		if err != nil {
			return productsvc.CreateProductInput{}, err
		}
		input.Processes = append(input.Processes, assignment)
	}
	return input, nil
}

type materialAssignmentRequest struct {
	MaterialID  uuid.UUID       `json:"material_id" validate:"required"`
	Equivalence decimal.Decimal `json:"equivalence"`
}

func (m materialAssignmentRequest) toInput() productsvc.MaterialAssignmentInput {
	return productsvc.MaterialAssignmentInput{
		MaterialID:  m.MaterialID,
		Equivalence: m.Equivalence,
	}
}

type inlineProcessRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
}

// processAssignmentRequest is a union: either process_id naming an existing
// process or an inline process definition, never both.
type processAssignmentRequest struct {
	ProcessID    *uuid.UUID            `json:"process_id"`
	Process      *inlineProcessRequest `json:"process"`
	SortOrder    int                   `json:"sort_order"`
	Consumptions []consumptionRequest  `json:"consumptions" validate:"dive"`
}

func (p processAssignmentRequest) toInput() (productsvc.ProcessAssignmentInput, error) {
	source, err := p.source()
	if err != nil {
		return productsvc.ProcessAssignmentInput{}, err
	}
	input := productsvc.ProcessAssignmentInput{
		Source:    source,
		SortOrder: p.SortOrder,
	}
	for _, c := range p.Consumptions {
		input.Consumptions = append(input.Consumptions, c.toInput())
	}
	return input, nil
}

func (p processAssignmentRequest) source() (productsvc.ProcessSource, error) {
	switch {
	case p.ProcessID != nil && p.Process != nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "process assignment takes process_id or process, not both")
	case p.ProcessID != nil:
		return productsvc.ExistingProcess{ID: *p.ProcessID}, nil
	case p.Process != nil:
		return productsvc.NewProcess{Name: p.Process.Name, Description: p.Process.Description}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "process assignment needs process_id or process")
	}
}

type consumptionRequest struct {
	MaterialID uuid.UUID       `json:"material_id" validate:"required"`
	Qty        decimal.Decimal `json:"qty"`
}

func (c consumptionRequest) toInput() productsvc.ConsumptionInput {
	return productsvc.ConsumptionInput{
		MaterialID: c.MaterialID,
		Qty:        c.Qty,
	}
}

// photoField distinguishes an absent photo field from an explicit null:
// absent keeps the current photo, null removes it, a key attaches it.
type photoField struct {
	set bool
	key *string
}

func (f *photoField) UnmarshalJSON(data []byte) error {
	f.set = true
	if string(data) == "null" {
		f.key = nil
		return nil
	}
	var key string
	if err := json.Unmarshal(data, &key); err != nil {
		return err
	}
	f.key = &key
	return nil
}

type updateProductRequest struct {
	SKU         *string   `json:"sku"`
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
	PriceCents  *int      `json:"price_cents" validate:"omitempty,gte=0"`
	CostCents   *int      `json:"cost_cents" validate:"omitempty,gte=0"`
	IsActive    *bool     `json:"is_active"`
	IsDraft     *bool     `json:"is_draft"`
	Photo       photoField `json:"photo"`

	Materials     productsvc.MaterialManager `json:"materials"`
	Processes     processManagerRequest      `json:"processes"`
	DiscountBands productsvc.BandManager     `json:"discount_bands"`
}

func (p updateProductRequest) toUpdateInput() (productsvc.UpdateProductInput, error) {
	input := productsvc.UpdateProductInput{
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Tags:        p.Tags,
		PriceCents:  p.PriceCents,
		CostCents:   p.CostCents,
		IsActive:    p.IsActive,
		IsDraft:     p.IsDraft,
		Photo:       productsvc.PhotoChange{Set: p.Photo.set, Key: p.Photo.key},
		Materials:   p.Materials,
		Bands:       p.DiscountBands,
	}

	manager, err := p.Processes.toManager()
	if err != nil {
		return productsvc.UpdateProductInput{}, err
	}
	input.Processes = manager
	return input, nil
}

type processManagerRequest struct {
	Added   []processAssignmentRequest       `json:"added" validate:"dive"`
	Updated []processAssignmentUpdateRequest `json:"updated" validate:"dive"`
	Deleted []uuid.UUID                      `json:"deleted"`
}

type processAssignmentUpdateRequest struct {
	ID           uuid.UUID                     `json:"id" validate:"required"`
	SortOrder    *int                          `json:"sort_order"`
	Consumptions productsvc.ConsumptionManager `json:"consumptions"`
}

func (p processManagerRequest) toManager() (productsvc.ProcessManager, error) {
	manager := productsvc.ProcessManager{Deleted: p.Deleted}

	for _, add := range p.Added {
		assignment, err := add.toInput()
		if err != nil {
			return productsvc.ProcessManager{}, err
		}
		manager.Added = append(manager.Added, assignment)
	}
	for _, upd := range p.Updated {
		manager.Updated = append(manager.Updated, productsvc.ProcessAssignmentUpdate{
			ID:           upd.ID,
			SortOrder:    upd.SortOrder,
			Consumptions: upd.Consumptions,
		})
	}
	return manager, nil
}
