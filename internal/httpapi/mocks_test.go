package httpapi_test

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nazeru/storefront-go/internal/catalog"
	"github.com/nazeru/storefront-go/internal/domain"
	"github.com/nazeru/storefront-go/internal/identity"
	"github.com/nazeru/storefront-go/internal/order"
	"github.com/nazeru/storefront-go/internal/payment"
)

type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]*identity.User
	byID    map[uuid.UUID]*identity.User
}

func newMemUsers() *memUsers {
	return &memUsers{
		byEmail: make(map[string]*identity.User),
		byID:    make(map[uuid.UUID]*identity.User),
	}
}

func (r *memUsers) Create(ctx context.Context, u *identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, exists := r.byEmail[email]; exists {
		return identity.ErrDuplicateEmail
	}
	cp := *u
	r.byEmail[email] = &cp
	r.byID[u.ID] = &cp
	return nil
}

func (r *memUsers) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, identity.ErrNoUser
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, identity.ErrNoUser
	}
	cp := *u
	return &cp, nil
}

type memStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]*catalog.Product
}

func newMemStore() *memStore {
	return &memStore{products: make(map[uuid.UUID]*catalog.Product)}
}

func (s *memStore) List(ctx context.Context) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Product
	for _, p := range s.products {
		out = append(out, *p)
	}
	return out, nil
}

func (s *memStore) ListFeatured(ctx context.Context) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Product
	for _, p := range s.products {
		if p.Featured {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memStore) ListByCategory(ctx context.Context, category string) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Product
	for _, p := range s.products {
		if strings.EqualFold(p.Category, category) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memStore) Get(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNoProduct
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) Create(ctx context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *memStore) Update(ctx context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return catalog.ErrNoProduct
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return catalog.ErrNoProduct
	}
	delete(s.products, id)
	return nil
}

// memOrders backs both the order workflow and the payment
// reconciliation path, sharing product stock with memStore.
type memOrders struct {
	mu          sync.Mutex
	products    *memStore
	orders      map[uuid.UUID]*order.Order
	idempotency map[string]uuid.UUID
	events      []order.Event
	processed   map[string]bool
}

func newMemOrders(products *memStore) *memOrders {
	return &memOrders{
		products:    products,
		orders:      make(map[uuid.UUID]*order.Order),
		idempotency: make(map[string]uuid.UUID),
		processed:   make(map[string]bool),
	}
}

type memReservation struct {
	repo   *memOrders
	stock  map[uuid.UUID]int
	order  *order.Order
	key    string
	events []order.Event
}

func (r *memOrders) Reserve(ctx context.Context, fn func(order.Reservation) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products.mu.Lock()
	defer r.products.mu.Unlock()

	tx := &memReservation{repo: r, stock: make(map[uuid.UUID]int)}
	for id, p := range r.products.products {
		tx.stock[id] = p.Stock
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, stock := range tx.stock {
		r.products.products[id].Stock = stock
	}
	if tx.order != nil {
		cp := *tx.order
		r.orders[cp.ID] = &cp
	}
	if tx.key != "" {
		r.idempotency[tx.key] = tx.order.ID
	}
	r.events = append(r.events, tx.events...)
	return nil
}

func (t *memReservation) ProductForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	p, ok := t.repo.products.products[id]
	if !ok {
		return nil, catalog.ErrNoProduct
	}
	cp := *p
	cp.Stock = t.stock[id]
	return &cp, nil
}

func (t *memReservation) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	t.stock[id] -= qty
	return nil
}

func (t *memReservation) InsertOrder(ctx context.Context, o *order.Order) error {
	t.order = o
	return nil
}

func (t *memReservation) BindIdempotencyKey(ctx context.Context, key string, orderID uuid.UUID) error {
	if _, exists := t.repo.idempotency[key]; exists {
		return order.ErrIdempotencyRace
	}
	t.key = key
	return nil
}

func (t *memReservation) AppendEvent(ctx context.Context, evt order.Event) error {
	t.events = append(t.events, evt)
	return nil
}

func (r *memOrders) OrderByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.idempotency[key]
	if !ok {
		return nil, order.ErrNoOrder
	}
	cp := *r.orders[id]
	return &cp, nil
}

func (r *memOrders) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNoOrder
	}
	cp := *o
	return &cp, nil
}

func (r *memOrders) ListByUser(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memOrders) ListAll(ctx context.Context) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Order
	for _, o := range r.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (r *memOrders) UpdateStatus(ctx context.Context, id uuid.UUID, status order.Status, evt order.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return order.ErrNoOrder
	}
	o.Status = status
	r.events = append(r.events, evt)
	return nil
}

func (r *memOrders) StampPayment(ctx context.Context, id uuid.UUID, paymentID string, evt order.Event) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != order.StatusPending {
		return false, nil
	}
	o.Status = order.StatusProcessing
	o.PaymentID = paymentID
	r.events = append(r.events, evt)
	return true, nil
}

func (r *memOrders) AppendEvent(ctx context.Context, evt order.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *memOrders) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed[eventID], nil
}

func (r *memOrders) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.processed[eventID] {
		return false, nil
	}
	r.processed[eventID] = true
	return true, nil
}

type stubGateway struct {
	mu      sync.Mutex
	intents map[string]*payment.Intent
}

func newStubGateway() *stubGateway {
	return &stubGateway{intents: make(map[string]*payment.Intent)}
}

func (g *stubGateway) setStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id] = &payment.Intent{ID: id, Status: status, Metadata: map[string]string{}}
}

func (g *stubGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent := &payment.Intent{
		ID:           "pi_" + uuid.NewString()[:8],
		ClientSecret: "secret_" + uuid.NewString()[:8],
		Status:       "requires_payment_method",
		Amount:       amountMinor,
		Currency:     currency,
		Metadata:     metadata,
	}
	g.intents[intent.ID] = intent
	return intent, nil
}

func (g *stubGateway) RetrieveIntent(ctx context.Context, id string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if !ok {
		return nil, domain.NotFoundf("no such intent")
	}
	cp := *intent
	return &cp, nil
}
