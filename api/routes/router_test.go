package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/dcastella/fabrica-backend/internal/clients"
	"github.com/dcastella/fabrica-backend/internal/locations"
	"github.com/dcastella/fabrica-backend/internal/materials"
	"github.com/dcastella/fabrica-backend/internal/processes"
	"github.com/dcastella/fabrica-backend/internal/products"
	"github.com/dcastella/fabrica-backend/pkg/config"
	"github.com/dcastella/fabrica-backend/pkg/db/models"
	"github.com/dcastella/fabrica-backend/pkg/logger"
)

type stubProducts struct {
	lastUpdate *products.UpdateProductInput
}

func (s *stubProducts) CreateProduct(_ context.Context, input products.CreateProductInput) (*products.ProductDTO, error) {
	return &products.ProductDTO{ID: uuid.New(), SKU: input.SKU, Name: input.Name}, nil
}

func (s *stubProducts) UpdateProduct(_ context.Context, id uuid.UUID, input products.UpdateProductInput) (*products.ProductDTO, error) {
	s.lastUpdate = &input
	return &products.ProductDTO{ID: id}, nil
}

func (s *stubProducts) GetProduct(_ context.Context, id uuid.UUID) (*products.ProductDTO, error) {
	return &products.ProductDTO{ID: id}, nil
}

func (s *stubProducts) DeleteProduct(context.Context, uuid.UUID) error {
	return nil
}

type stubMaterials struct{}

func (stubMaterials) List(context.Context) ([]models.Material, error) { return nil, nil }
func (stubMaterials) Get(_ context.Context, id uuid.UUID) (*models.Material, error) {
	return &models.Material{ID: id}, nil
}
func (stubMaterials) Create(_ context.Context, input materials.CreateMaterialInput) (*models.Material, error) {
	return &models.Material{ID: uuid.New(), Name: input.Name, Unit: input.Unit}, nil
}
func (stubMaterials) Update(_ context.Context, id uuid.UUID, _ materials.UpdateMaterialInput) (*models.Material, error) {
	return &models.Material{ID: id}, nil
}
func (stubMaterials) Delete(context.Context, uuid.UUID) error { return nil }

type stubProcesses struct{}

func (stubProcesses) List(context.Context) ([]models.Process, error) { return nil, nil }
func (stubProcesses) Get(_ context.Context, id uuid.UUID) (*models.Process, error) {
	return &models.Process{ID: id}, nil
}
func (stubProcesses) Create(_ context.Context, input processes.CreateProcessInput) (*models.Process, error) {
	return &models.Process{ID: uuid.New(), Name: input.Name}, nil
}
func (stubProcesses) CreateInTx(_ context.Context, _ *gorm.DB, name string, description *string) (*models.Process, error) {
	return &models.Process{ID: uuid.New(), Name: name, Description: description}, nil
}
func (stubProcesses) Update(_ context.Context, id uuid.UUID, _ processes.UpdateProcessInput) (*models.Process, error) {
	return &models.Process{ID: id}, nil
}
func (stubProcesses) Delete(context.Context, uuid.UUID) error { return nil }

type stubClients struct{}

func (stubClients) List(context.Context) ([]models.Client, error) { return nil, nil }
func (stubClients) Get(_ context.Context, id uuid.UUID) (*models.Client, error) {
	return &models.Client{ID: id}, nil
}
func (stubClients) Create(_ context.Context, input clients.CreateClientInput) (*models.Client, error) {
	return &models.Client{ID: uuid.New(), Name: input.Name}, nil
}
func (stubClients) Update(_ context.Context, id uuid.UUID, _ clients.UpdateClientInput) (*models.Client, error) {
	return &models.Client{ID: id}, nil
}
func (stubClients) Delete(context.Context, uuid.UUID) error { return nil }

type stubLocations struct{}

func (stubLocations) List(context.Context) ([]models.Location, error) { return nil, nil }
func (stubLocations) Get(_ context.Context, id uuid.UUID) (*models.Location, error) {
	return &models.Location{ID: id}, nil
}
func (stubLocations) Create(_ context.Context, input locations.CreateLocationInput) (*models.Location, error) {
	return &models.Location{ID: uuid.New(), Name: input.Name}, nil
}
func (stubLocations) Update(_ context.Context, id uuid.UUID, _ locations.UpdateLocationInput) (*models.Location, error) {
	return &models.Location{ID: id}, nil
}
func (stubLocations) Delete(context.Context, uuid.UUID) error { return nil }

type fakeIdemStore struct {
	data map[string]string
}

func (f *fakeIdemStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeIdemStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeIdemStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("test:%s:%s", scope, id)
}

func (f *fakeIdemStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *stubProducts) {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	productStub := &stubProducts{}
	handler := NewRouter(
		&config.Config{},
		logg,
		nil,
		&fakeIdemStore{data: map[string]string{}},
		nil,
		productStub,
		stubMaterials{},
		stubProcesses{},
		stubClients{},
		stubLocations{},
	)
	return handler, productStub
}

func doRequest(handler http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthLive(t *testing.T) {
	handler, _ := newTestRouter(t)
	rec := doRequest(handler, http.MethodGet, "/health/live", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestProductCreateRequiresIdempotencyKey(t *testing.T) {
	handler, _ := newTestRouter(t)

	rec := doRequest(handler, http.MethodPost, "/api/v1/products", `{"sku":"A","name":"B"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key, got %d", rec.Code)
	}

	rec = doRequest(handler, http.MethodPost, "/api/v1/products", `{"sku":"A","name":"B"}`, map[string]string{"Idempotency-Key": "k1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 with idempotency key, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestProductGetValidatesID(t *testing.T) {
	handler, _ := newTestRouter(t)

	rec := doRequest(handler, http.MethodGet, "/api/v1/products/not-a-uuid", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}

	rec = doRequest(handler, http.MethodGet, "/api/v1/products/"+uuid.NewString(), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCatalogListRoutes(t *testing.T) {
	handler, _ := newTestRouter(t)
	for _, path := range []string{
		"/api/v1/materials/",
		"/api/v1/processes/",
		"/api/v1/clients/",
		"/api/v1/locations/",
	} {
		rec := doRequest(handler, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestUpdateProductPhotoTriState(t *testing.T) {
	handler, stub := newTestRouter(t)
	productID := uuid.NewString()
	patch := func(key, body string) {
		t.Helper()
		rec := doRequest(handler, http.MethodPatch, "/api/v1/products/"+productID, body, map[string]string{"Idempotency-Key": key})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
		}
	}

	patch("k1", `{"name":"x"}`)
	if stub.lastUpdate.Photo.Set {
		t.Fatal("absent photo field must not count as set")
	}

	patch("k2", `{"photo":null}`)
	if !stub.lastUpdate.Photo.Set || stub.lastUpdate.Photo.Key != nil {
		t.Fatalf("explicit null should request removal: %+v", stub.lastUpdate.Photo)
	}

	patch("k3", `{"photo":"uploads/tmp/a.png"}`)
	if !stub.lastUpdate.Photo.Set || stub.lastUpdate.Photo.Key == nil || *stub.lastUpdate.Photo.Key != "uploads/tmp/a.png" {
		t.Fatalf("string photo should request attachment: %+v", stub.lastUpdate.Photo)
	}
}

func TestUpdateProductRejectsAmbiguousProcessSource(t *testing.T) {
	handler, _ := newTestRouter(t)
	body := `{"processes":{"added":[{"process_id":"` + uuid.NewString() + `","process":{"name":"x"}}]}}`
	rec := doRequest(handler, http.MethodPatch, "/api/v1/products/"+uuid.NewString(), body, map[string]string{"Idempotency-Key": "k9"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for ambiguous process source, got %d (%s)", rec.Code, rec.Body.String())
	}
}
