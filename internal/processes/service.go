package processes

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

type CreateProcessInput struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
}

type UpdateProcessInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type Service interface {
	List(ctx context.Context) ([]models.Process, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Process, error)
	Create(ctx context.Context, input CreateProcessInput) (*models.Process, error)
	// CreateInTx creates a process on the supplied transaction handle; a nil
	// handle falls back to the shared connection. The product orchestrator
	// uses this for inline process definitions.
	CreateInTx(ctx context.Context, tx *gorm.DB, name string, description *string) (*models.Process, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProcessInput) (*models.Process, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) Service {
	return &service{repo: repo, logg: logg}
}

func (s *service) List(ctx context.Context) ([]models.Process, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing processes")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Process, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, asNotFound(err, "process not found")
	}
	return row, nil
}

func (s *service) Create(ctx context.Context, input CreateProcessInput) (*models.Process, error) {
	return s.CreateInTx(ctx, nil, input.Name, input.Description)
}

func (s *service) CreateInTx(ctx context.Context, tx *gorm.DB, name string, description *string) (*models.Process, error) {
	if strings.TrimSpace(name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "process name is required")
	}
	row, err := s.repo.WithTx(tx).Create(ctx, &models.Process{
		Name:        name,
		Description: description,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating process")
	}
	return row, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateProcessInput) (*models.Process, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, asNotFound(err, "process not found")
	}

	columns := map[string]any{}
	if input.Name != nil {
		columns["name"] = *input.Name
	}
	if input.Description != nil {
		columns["description"] = *input.Description
	}
	if len(columns) > 0 {
		if _, err := s.repo.UpdateColumns(ctx, id, columns); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating process")
		}
	}

	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading process")
	}
	return row, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return asNotFound(err, "process not found")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting process")
	}
	return nil
}

func asNotFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading process")
}
