package clients

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

type CreateClientInput struct {
	Name  string  `json:"name" validate:"required"`
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone"`
}

type UpdateClientInput struct {
	Name  *string `json:"name"`
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone"`
}

type Service interface {
	List(ctx context.Context) ([]models.Client, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Client, error)
	Create(ctx context.Context, input CreateClientInput) (*models.Client, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateClientInput) (*models.Client, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) Service {
	return &service{repo: repo, logg: logg}
}

func (s *service) List(ctx context.Context) ([]models.Client, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing clients")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, asNotFound(err, "client not found")
	}
	return row, nil
}

func (s *service) Create(ctx context.Context, input CreateClientInput) (*models.Client, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	row, err := s.repo.Create(ctx, &models.Client{
		Name:  input.Name,
		Email: input.Email,
		Phone: input.Phone,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating client")
	}
	return row, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateClientInput) (*models.Client, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, asNotFound(err, "client not found")
	}

	columns := map[string]any{}
	if input.Name != nil {
		columns["name"] = *input.Name
	}
	if input.Email != nil {
		columns["email"] = *input.Email
	}
	if input.Phone != nil {
		columns["phone"] = *input.Phone
	}
	if len(columns) > 0 {
		if _, err := s.repo.UpdateColumns(ctx, id, columns); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating client")
		}
	}

	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading client")
	}
	return row, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return asNotFound(err, "client not found")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting client")
	}
	return nil
}

func asNotFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading client")
}
