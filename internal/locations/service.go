package locations

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

type CreateLocationInput struct {
	Name    string  `json:"name" validate:"required"`
	Address *string `json:"address"`
}

type UpdateLocationInput struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
}

type Service interface {
	List(ctx context.Context) ([]models.Location, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Location, error)
	Create(ctx context.Context, input CreateLocationInput) (*models.Location, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateLocationInput) (*models.Location, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) Service {
	return &service{repo: repo, logg: logg}
}

func (s *service) List(ctx context.Context) ([]models.Location, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing locations")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, asNotFound(err, "location not found")
	}
	return row, nil
}

func (s *service) Create(ctx context.Context, input CreateLocationInput) (*models.Location, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	row, err := s.repo.Create(ctx, &models.Location{
		Name:    input.Name,
		Address: input.Address,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating location")
	}
	return row, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateLocationInput) (*models.Location, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, asNotFound(err, "location not found")
	}

	columns := map[string]any{}
	if input.Name != nil {
		columns["name"] = *input.Name
	}
	if input.Address != nil {
		columns["address"] = *input.Address
	}
	if len(columns) > 0 {
		if _, err := s.repo.UpdateColumns(ctx, id, columns); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating location")
		}
	}

	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading location")
	}
	return row, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return asNotFound(err, "location not found")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting location")
	}
	return nil
}

func asNotFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading location")
}
