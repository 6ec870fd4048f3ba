package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/dcastella/fabrica-backend/pkg/config"
	"github.com/dcastella/fabrica-backend/pkg/storage/gcs"
)

// objectStore is the slice of the bucket API the photo store needs.
type objectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Copy(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// PhotoStore maps product-photo semantics onto the bucket: uploads live under
// the temp prefix until they are attached, attached files live under the
// product's entity directory.
type PhotoStore struct {
	objects objectStore
	cfg     config.StorageConfig
}

func NewPhotoStore(bucket *gcs.Bucket, cfg config.StorageConfig) *PhotoStore {
	return &PhotoStore{objects: bucket, cfg: cfg}
}

func newPhotoStoreWith(objects objectStore, cfg config.StorageConfig) *PhotoStore {
	return &PhotoStore{objects: objects, cfg: cfg}
}

// IsTemp reports whether key sits in the unattached-upload namespace.
func (s *PhotoStore) IsTemp(key string) bool {
	return strings.HasPrefix(key, s.cfg.TempPrefix)
}

// ProductDir returns the storage prefix holding everything a product owns.
func (s *PhotoStore) ProductDir(productID uuid.UUID) string {
	return fmt.Sprintf("%sproducts/%s/", s.cfg.EntityPrefix, productID)
}

// MoveToProductDir relocates a temp upload under the product directory and
// returns the final key. The temp copy is removed best-effort; a stale temp
// file is debris for the cleanup worker, not a failure.
func (s *PhotoStore) MoveToProductDir(ctx context.Context, tempKey string, productID uuid.UUID) (string, error) {
	if !s.IsTemp(tempKey) {
		return "", fmt.Errorf("key %q is not under the temp prefix", tempKey)
	}

	finalKey := s.ProductDir(productID) + path.Base(tempKey)
	if err := s.objects.Copy(ctx, tempKey, finalKey); err != nil {
		return "", fmt.Errorf("copying %s: %w", tempKey, err)
	}
	// Stale temp copies are debris for the retention sweep, not failures.
	_ = s.RemoveIfExists(ctx, tempKey)
	return finalKey, nil
}

// RemoveIfExists deletes the object at key, treating absence as success.
func (s *PhotoStore) RemoveIfExists(ctx context.Context, key string) error {
	err := s.objects.Delete(ctx, key)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return err
	}
	return nil
}

// Download returns the photo bytes at key.
func (s *PhotoStore) Download(ctx context.Context, key string) ([]byte, error) {
	return s.objects.Download(ctx, key)
}

// DeletePrefix removes everything under prefix, returning the deletion count.
func (s *PhotoStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	return s.objects.DeletePrefix(ctx, prefix)
}
