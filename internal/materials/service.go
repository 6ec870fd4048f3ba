package materials

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastella/fabrica-backend/pkg/db/models"
	pkgerrors "github.com/dcastella/fabrica-backend/pkg/errors"
	"github.com/dcastella/fabrica-backend/pkg/logger"
)

type CreateMaterialInput struct {
	Name      string `json:"name" validate:"required"`
	Unit      string `json:"unit" validate:"required"`
	CostCents int    `json:"cost_cents" validate:"gte=0"`
}

type UpdateMaterialInput struct {
	Name      *string `json:"name"`
	Unit      *string `json:"unit"`
	CostCents *int    `json:"cost_cents" validate:"omitempty,gte=0"`
}

type Service interface {
	List(ctx context.Context) ([]models.Material, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Material, error)
	Create(ctx context.Context, input CreateMaterialInput) (*models.Material, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateMaterialInput) (*models.Material, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) Service {
	return &service{repo: repo, logg: logg}
}

func (s *service) List(ctx context.Context) ([]models.Material, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing materials")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, asNotFound(err, "material not found")
	}
	return row, nil
}

func (s *service) Create(ctx context.Context, input CreateMaterialInput) (*models.Material, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Unit) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and unit are required")
	}
	row, err := s.repo.Create(ctx, &models.Material{
		Name:      input.Name,
		Unit:      input.Unit,
		CostCents: input.CostCents,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating material")
	}
	s.logg.Info(s.logg.WithField(ctx, "material_id", row.ID.String()), "material created")
	return row, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateMaterialInput) (*models.Material, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, asNotFound(err, "material not found")
	}

	columns := map[string]any{}
	if input.Name != nil {
		columns["name"] = *input.Name
	}
	if input.Unit != nil {
		columns["unit"] = *input.Unit
	}
	if input.CostCents != nil {
		columns["cost_cents"] = *input.CostCents
	}
	if len(columns) > 0 {
		if _, err := s.repo.UpdateColumns(ctx, id, columns); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating material")
		}
	}

	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading material")
	}
	return row, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return asNotFound(err, "material not found")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting material")
	}
	return nil
}

func asNotFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading material")
}
