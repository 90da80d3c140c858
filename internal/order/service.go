package order

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/nazeru/storefront-go/internal/catalog"
	"github.com/nazeru/storefront-go/internal/domain"
	"github.com/nazeru/storefront-go/internal/identity"
)

// Reservation is the transactional scope Place runs in. Product locks
// acquired through it hold until the whole unit commits or rolls back.
type Reservation interface {
	ProductForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error
	InsertOrder(ctx context.Context, o *Order) error
	BindIdempotencyKey(ctx context.Context, key string, orderID uuid.UUID) error
	AppendEvent(ctx context.Context, evt Event) error
}

type Repository interface {
	Reserve(ctx context.Context, fn func(Reservation) error) error
	OrderByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, evt Event) error
	StampPayment(ctx context.Context, id uuid.UUID, paymentID string, evt Event) (bool, error)
	AppendEvent(ctx context.Context, evt Event) error
	MarkEventProcessed(ctx context.Context, eventID string) (bool, error)
}

// StockObserver is notified after a committed reservation so cached
// product reads do not serve stale stock. The catalog service
// implements it.
type StockObserver interface {
	InvalidateProduct(ctx context.Context, id uuid.UUID)
}

type Service struct {
	repo     Repository
	observer StockObserver // may be nil
	log      *logrus.Entry
}

func NewService(repo Repository, observer StockObserver, log *logrus.Entry) *Service {
	return &Service{repo: repo, observer: observer, log: log}
}

// Place runs the checkout core: validate, reserve stock, capture
// prices, persist the pending order — all inside one transaction, so a
// failure on any line leaves every product untouched. Stock is held
// eagerly from this moment; an abandoned unpaid order keeps its
// reservation until an admin cancels it.
//
// The returned bool reports an idempotent replay: the idempotency key
// had already produced an order, which is returned unchanged.
func (s *Service) Place(ctx context.Context, caller identity.Capability, items []ItemRequest, addr Address, idemKey string) (*Order, bool, error) {
	if err := validatePlacement(items, addr); err != nil {
		return nil, false, err
	}

	if idemKey != "" {
		if existing, err := s.repo.OrderByIdempotencyKey(ctx, idemKey); err == nil {
			return existing, true, nil
		} else if !errors.Is(err, ErrNoOrder) {
			return nil, false, err
		}
	}

	now := time.Now().UTC()
	ord := &Order{
		ID:              uuid.New(),
		UserID:          caller.UserID,
		Status:          StatusPending,
		ShippingAddress: addr,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.repo.Reserve(ctx, func(tx Reservation) error {
		total := decimal.Zero
		for _, item := range items {
			p, err := tx.ProductForUpdate(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, catalog.ErrNoProduct) {
					return domain.NotFoundf("product %s not found", item.ProductID)
				}
				return err
			}
			if item.Quantity > p.Stock {
				return &domain.InsufficientStockError{
					ProductID:   p.ID.String(),
					ProductName: p.Name,
					Requested:   item.Quantity,
					Available:   p.Stock,
				}
			}
			ord.Lines = append(ord.Lines, Line{
				ProductID: p.ID,
				Name:      p.Name,
				Image:     p.Image,
				Quantity:  item.Quantity,
				UnitPrice: p.Price,
			})
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		ord.Total = total

		for _, item := range items {
			if err := tx.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if err := tx.InsertOrder(ctx, ord); err != nil {
			return err
		}
		if idemKey != "" {
			if err := tx.BindIdempotencyKey(ctx, idemKey, ord.ID); err != nil {
				return err
			}
		}
		return tx.AppendEvent(ctx, NewEvent(ord.ID, EventOrderCreated, map[string]any{
			"user_id": ord.UserID.String(),
			"total":   ord.Total.String(),
		}))
	})
	if err != nil {
		if errors.Is(err, ErrIdempotencyRace) && idemKey != "" {
			if existing, qerr := s.repo.OrderByIdempotencyKey(ctx, idemKey); qerr == nil {
				return existing, true, nil
			}
		}
		return nil, false, err
	}

	if s.observer != nil {
		for _, item := range items {
			s.observer.InvalidateProduct(ctx, item.ProductID)
		}
	}
	s.log.WithFields(logrus.Fields{
		"order_id": ord.ID,
		"user_id":  caller.UserID,
		"total":    ord.Total.String(),
		"lines":    len(ord.Lines),
	}).Info("order placed")
	return ord, false, nil
}

// SetStatus is the admin-forced transition. Only the enum is guarded;
// the admin is trusted to issue sane transitions.
func (s *Service) SetStatus(ctx context.Context, caller identity.Capability, orderID uuid.UUID, status Status) (*Order, error) {
	if !caller.Admin() {
		return nil, domain.Forbidden("admin access required")
	}
	if !status.Valid() {
		return nil, domain.Invalidf("invalid status %q", status)
	}

	evt := NewEvent(orderID, EventOrderStatusChanged, map[string]any{"status": string(status)})
	if err := s.repo.UpdateStatus(ctx, orderID, status, evt); err != nil {
		if errors.Is(err, ErrNoOrder) {
			return nil, domain.NotFoundf("order not found")
		}
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"order_id": orderID, "status": status}).Info("order status changed")
	return s.Get(ctx, caller, orderID)
}

// Get returns an order to its owner or to an admin.
func (s *Service) Get(ctx context.Context, caller identity.Capability, orderID uuid.UUID) (*Order, error) {
	ord, err := s.repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNoOrder) {
			return nil, domain.NotFoundf("order not found")
		}
		return nil, err
	}
	if !caller.Admin() && ord.UserID != caller.UserID {
		return nil, domain.Forbidden("access denied")
	}
	return ord, nil
}

// ListByUser returns a user's orders, newest first; self or admin only.
func (s *Service) ListByUser(ctx context.Context, caller identity.Capability, userID uuid.UUID) ([]Order, error) {
	if !caller.Admin() && caller.UserID != userID {
		return nil, domain.Forbidden("access denied")
	}
	return s.repo.ListByUser(ctx, userID)
}

// ListAll returns every order, newest first; admin only.
func (s *Service) ListAll(ctx context.Context, caller identity.Capability) ([]Order, error) {
	if !caller.Admin() {
		return nil, domain.Forbidden("admin access required")
	}
	return s.repo.ListAll(ctx)
}

func validatePlacement(items []ItemRequest, addr Address) error {
	if len(items) == 0 {
		return domain.Invalidf("items is required")
	}
	seen := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return domain.Invalidf("each item must name a product")
		}
		if item.Quantity < 1 {
			return domain.Invalidf("quantity must be at least 1")
		}
		if seen[item.ProductID] {
			return domain.Invalidf("duplicate product %s in items", item.ProductID)
		}
		seen[item.ProductID] = true
	}

	fields := map[string]string{
		"street":  addr.Street,
		"city":    addr.City,
		"state":   addr.State,
		"zipCode": addr.ZipCode,
		"country": addr.Country,
	}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return domain.Invalidf("shipping address %s is required", name)
		}
	}
	return nil
}
