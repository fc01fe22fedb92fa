package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shelfsight/querydeck/internal/models"
	"github.com/shelfsight/querydeck/internal/storage"
)

// BrandService provides CRUD operations over brands.
type BrandService struct {
	repo storage.BrandRepo
}

// NewBrandService constructs a BrandService backed by the given repo.
func NewBrandService(repo storage.BrandRepo) *BrandService {
	return &BrandService{repo: repo}
}

// ListBrands returns all brands.
func (s *BrandService) ListBrands(ctx context.Context) ([]*models.Brand, error) {
	return s.repo.ListAll(ctx)
}

// GetBrand returns a brand by ID, or nil when not found.
func (s *BrandService) GetBrand(ctx context.Context, id string) (*models.Brand, error) {
	return s.repo.GetByID(ctx, id)
}

// UpsertBrand validates the brand, populates ID and timestamps and saves it.
func (s *BrandService) UpsertBrand(ctx context.Context, b *models.Brand) error {
	now := time.Now().UTC()
	if b.ID == "" {
		b.ID = uuid.NewString()
		b.CreatedAt = now
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	if err := b.Validate(); err != nil {
		return err
	}
	return s.repo.Upsert(ctx, b)
}

// DeleteBrand removes a brand by ID.
func (s *BrandService) DeleteBrand(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// ViewService provides CRUD operations over saved table views.
type ViewService struct {
	repo storage.ViewRepo
}

// NewViewService constructs a ViewService backed by the given repo.
func NewViewService(repo storage.ViewRepo) *ViewService {
	return &ViewService{repo: repo}
}

// ListViews returns all saved views.
func (s *ViewService) ListViews(ctx context.Context) ([]*models.SavedView, error) {
	return s.repo.ListAll(ctx)
}

// GetView returns a saved view by ID, or nil when not found.
func (s *ViewService) GetView(ctx context.Context, id string) (*models.SavedView, error) {
	return s.repo.GetByID(ctx, id)
}

// UpsertView validates the view, populates ID and timestamps and saves it.
func (s *ViewService) UpsertView(ctx context.Context, v *models.SavedView) error {
	now := time.Now().UTC()
	if v.ID == "" {
		v.ID = uuid.NewString()
		v.CreatedAt = now
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	if err := v.Validate(); err != nil {
		return err
	}
	return s.repo.Upsert(ctx, v)
}

// DeleteView removes a saved view by ID.
func (s *ViewService) DeleteView(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
