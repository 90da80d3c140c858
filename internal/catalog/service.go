package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nazeru/storefront-go/internal/domain"
)

// Store is the persistence surface the service needs; *PgxRepository
// implements it.
type Store interface {
	List(ctx context.Context) ([]Product, error)
	ListFeatured(ctx context.Context) ([]Product, error)
	ListByCategory(ctx context.Context, category string) ([]Product, error)
	Get(ctx context.Context, id uuid.UUID) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

const (
	keyAll      = "products:all"
	keyFeatured = "products:featured"
)

func keyProduct(id uuid.UUID) string { return "product:" + id.String() }

type Service struct {
	store Store
	cache *Cache // nil when Redis is not configured
	log   *logrus.Entry
}

func NewService(store Store, cache *Cache, log *logrus.Entry) *Service {
	return &Service{store: store, cache: cache, log: log}
}

func (s *Service) List(ctx context.Context) ([]Product, error) {
	if s.cache == nil {
		return s.store.List(ctx)
	}
	var products []Product
	err := s.cache.GetJSON(ctx, keyAll, &products, func(ctx context.Context) (any, error) {
		return s.store.List(ctx)
	})
	return products, err
}

func (s *Service) ListFeatured(ctx context.Context) ([]Product, error) {
	if s.cache == nil {
		return s.store.ListFeatured(ctx)
	}
	var products []Product
	err := s.cache.GetJSON(ctx, keyFeatured, &products, func(ctx context.Context) (any, error) {
		return s.store.ListFeatured(ctx)
	})
	return products, err
}

// ListByCategory reads straight through: the key space is caller
// controlled and not worth caching.
func (s *Service) ListByCategory(ctx context.Context, category string) ([]Product, error) {
	return s.store.ListByCategory(ctx, strings.TrimSpace(category))
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Product, error) {
	if s.cache == nil {
		return s.get(ctx, id)
	}
	var p Product
	err := s.cache.GetJSON(ctx, keyProduct(id), &p, func(ctx context.Context) (any, error) {
		return s.get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNoProduct) {
		return nil, domain.NotFoundf("product not found")
	}
	return p, err
}

// Create is admin-only; the transport layer enforces the role and the
// workflow validates the payload.
func (s *Service) Create(ctx context.Context, p *Product) (*Product, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	s.invalidate(ctx, p.ID)
	s.log.WithFields(logrus.Fields{"product_id": p.ID, "name": p.Name}).Info("product created")
	return p, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, p *Product) (*Product, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	p.ID = id
	if err := s.store.Update(ctx, p); err != nil {
		if errors.Is(err, ErrNoProduct) {
			return nil, domain.NotFoundf("product not found")
		}
		return nil, err
	}
	s.invalidate(ctx, id)
	return s.get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNoProduct) {
			return domain.NotFoundf("product not found")
		}
		return err
	}
	s.invalidate(ctx, id)
	s.log.WithField("product_id", id).Info("product deleted")
	return nil
}

// InvalidateProduct is called by the order workflow after a reservation
// commits, so cached stock counts do not outlive the decrement by more
// than a read.
func (s *Service) InvalidateProduct(ctx context.Context, id uuid.UUID) {
	s.invalidate(ctx, id)
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, keyProduct(id), keyAll, keyFeatured)
}

func validate(p *Product) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return domain.Invalidf("name is required")
	case strings.TrimSpace(p.Description) == "":
		return domain.Invalidf("description is required")
	case strings.TrimSpace(p.Image) == "":
		return domain.Invalidf("image is required")
	case strings.TrimSpace(p.Category) == "":
		return domain.Invalidf("category is required")
	case p.Price.IsNegative():
		return domain.Invalidf("price must not be negative")
	case p.Stock < 0:
		return domain.Invalidf("stock must not be negative")
	}
	return nil
}
