package catalog_test

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/storefront-go/internal/catalog"
	"github.com/nazeru/storefront-go/internal/domain"
)

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("component", "test")
}

type memStore struct {
	products map[uuid.UUID]*catalog.Product
	queries  []string
}

func newMemStore(products ...*catalog.Product) *memStore {
	s := &memStore{products: make(map[uuid.UUID]*catalog.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) List(ctx context.Context) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range s.products {
		out = append(out, *p)
	}
	return out, nil
}

func (s *memStore) ListFeatured(ctx context.Context) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range s.products {
		if p.Featured {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memStore) ListByCategory(ctx context.Context, category string) ([]catalog.Product, error) {
	s.queries = append(s.queries, category)
	var out []catalog.Product
	for _, p := range s.products {
		if p.Category == category {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memStore) Get(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNoProduct
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) Create(ctx context.Context, p *catalog.Product) error {
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *memStore) Update(ctx context.Context, p *catalog.Product) error {
	existing, ok := s.products[p.ID]
	if !ok {
		return catalog.ErrNoProduct
	}
	cp := *p
	cp.CreatedAt = existing.CreatedAt
	s.products[p.ID] = &cp
	return nil
}

func (s *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.products[id]; !ok {
		return catalog.ErrNoProduct
	}
	delete(s.products, id)
	return nil
}

func validProduct() *catalog.Product {
	return &catalog.Product{
		Name:        "Shin Ramyun Spicy",
		Description: "Korean spicy ramen",
		Price:       decimal.RequireFromString("2.99"),
		Image:       "https://example.com/shin.jpg",
		Category:    "Korean",
		Stock:       50,
		Featured:    true,
	}
}

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns id and timestamps", func(t *testing.T) {
		store := newMemStore()
		svc := catalog.NewService(store, nil, testLog())

		created, err := svc.Create(ctx, validProduct())
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Shin Ramyun Spicy", got.Name)
	})

	t.Run("validation", func(t *testing.T) {
		svc := catalog.NewService(newMemStore(), nil, testLog())
		mutate := []struct {
			name string
			fn   func(*catalog.Product)
		}{
			{"empty name", func(p *catalog.Product) { p.Name = " " }},
			{"empty description", func(p *catalog.Product) { p.Description = "" }},
			{"empty image", func(p *catalog.Product) { p.Image = "" }},
			{"empty category", func(p *catalog.Product) { p.Category = "" }},
			{"negative price", func(p *catalog.Product) { p.Price = decimal.RequireFromString("-0.01") }},
			{"negative stock", func(p *catalog.Product) { p.Stock = -1 }},
		}
		for _, tc := range mutate {
			t.Run(tc.name, func(t *testing.T) {
				p := validProduct()
				tc.fn(p)
				_, err := svc.Create(ctx, p)
				assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
			})
		}
	})
}

func TestGetProduct(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(newMemStore(), nil, testLog())

	_, err := svc.Get(ctx, uuid.New())
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestUpdateProduct(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := catalog.NewService(store, nil, testLog())

	created, err := svc.Create(ctx, validProduct())
	require.NoError(t, err)

	t.Run("updates in place", func(t *testing.T) {
		next := validProduct()
		next.Stock = 10
		updated, err := svc.Update(ctx, created.ID, next)
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, 10, updated.Stock)
	})

	t.Run("missing product", func(t *testing.T) {
		_, err := svc.Update(ctx, uuid.New(), validProduct())
		assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	})
}

func TestDeleteProduct(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := catalog.NewService(store, nil, testLog())

	created, err := svc.Create(ctx, validProduct())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(svc.Delete(ctx, created.ID)))
}

func TestListByCategoryTrims(t *testing.T) {
	store := newMemStore()
	svc := catalog.NewService(store, nil, testLog())

	_, err := svc.ListByCategory(context.Background(), "  Korean ")
	require.NoError(t, err)
	require.Len(t, store.queries, 1)
	assert.Equal(t, "Korean", store.queries[0])
}

func TestListFeatured(t *testing.T) {
	featured := validProduct()
	featured.ID = uuid.New()
	plain := validProduct()
	plain.ID = uuid.New()
	plain.Featured = false

	svc := catalog.NewService(newMemStore(featured, plain), nil, testLog())
	got, err := svc.ListFeatured(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, featured.ID, got[0].ID)
}
