package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/nazeru/storefront-go/internal/catalog"
	"github.com/nazeru/storefront-go/pkg/outbox"
)

var (
	ErrNoOrder = errors.New("order does not exist")
	// ErrIdempotencyRace means another request bound the same
	// idempotency key first; the caller should replay that order.
	ErrIdempotencyRace = errors.New("idempotency key already bound")
)

type PgxRepository struct {
	pool  *pgxpool.Pool
	topic string
}

func NewPgxRepository(pool *pgxpool.Pool, topic string) *PgxRepository {
	return &PgxRepository{pool: pool, topic: topic}
}

// Reserve runs fn inside one transaction. Row locks taken by
// ProductForUpdate serialize concurrent reservations of the same
// product; any error from fn rolls the whole unit back.
func (r *PgxRepository) Reserve(ctx context.Context, fn func(Reservation) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin reservation")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgxReservation{tx: tx, topic: r.topic}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit reservation")
}

type pgxReservation struct {
	tx    pgx.Tx
	topic string
}

func (t *pgxReservation) ProductForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var p catalog.Product
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, description, price, image, category, stock, featured, created_at, updated_at
		 FROM products WHERE id=$1 FOR UPDATE`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Image, &p.Category, &p.Stock, &p.Featured, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNoProduct
		}
		return nil, errors.Wrap(err, "lock product")
	}
	return &p, nil
}

func (t *pgxReservation) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	// The CHECK (stock >= 0) constraint is a second fence behind the
	// row lock; it firing means a workflow bug, not a user error.
	_, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1`, id, qty)
	return errors.Wrap(err, "decrement stock")
}

func (t *pgxReservation) InsertOrder(ctx context.Context, o *Order) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO orders(id, user_id, total, status, street, city, state, zip_code, country)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.UserID, o.Total, o.Status,
		o.ShippingAddress.Street, o.ShippingAddress.City, o.ShippingAddress.State,
		o.ShippingAddress.ZipCode, o.ShippingAddress.Country,
	)
	if err != nil {
		return errors.Wrap(err, "insert order")
	}
	for _, line := range o.Lines {
		_, err = t.tx.Exec(ctx,
			`INSERT INTO order_items(order_id, product_id, name, image, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, line.ProductID, line.Name, line.Image, line.Quantity, line.UnitPrice,
		)
		if err != nil {
			return errors.Wrap(err, "insert order line")
		}
	}
	return nil
}

func (t *pgxReservation) BindIdempotencyKey(ctx context.Context, key string, orderID uuid.UUID) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO order_idempotency(idempotency_key, order_id) VALUES ($1, $2)`, key, orderID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrIdempotencyRace
		}
		return errors.Wrap(err, "bind idempotency key")
	}
	return nil
}

func (t *pgxReservation) AppendEvent(ctx context.Context, evt Event) error {
	return errors.Wrap(outbox.Insert(ctx, t.tx, evt.EventID, t.topic, evt.OrderID, evt), "append event")
}

func (r *PgxRepository) OrderByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	var orderID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT order_id FROM order_idempotency WHERE idempotency_key=$1`, key).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOrder
		}
		return nil, errors.Wrap(err, "lookup idempotency key")
	}
	return r.Get(ctx, orderID)
}

const orderColumns = `id, user_id, total, status, COALESCE(payment_id, ''), street, city, state, zip_code, country, created_at, updated_at`

func (r *PgxRepository) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	lines, err := r.linesFor(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[id]
	return o, nil
}

func (r *PgxRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

func (r *PgxRepository) ListAll(ctx context.Context) ([]Order, error) {
	return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

// UpdateStatus sets the order status and records the transition event
// in the same transaction.
func (r *PgxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, evt Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin status update")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, status)
	if err != nil {
		return errors.Wrap(err, "update status")
	}
	if tag.RowsAffected() == 0 {
		return ErrNoOrder
	}
	if err := outbox.Insert(ctx, tx, evt.EventID, r.topic, evt.OrderID, evt); err != nil {
		return errors.Wrap(err, "append event")
	}
	return errors.Wrap(tx.Commit(ctx), "commit status update")
}

// StampPayment performs the conditional pending→processing transition.
// The returned bool reports whether this call applied it; false means
// the order was not pending (already stamped, or further along).
func (r *PgxRepository) StampPayment(ctx context.Context, id uuid.UUID, paymentID string, evt Event) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, errors.Wrap(err, "begin payment stamp")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE orders SET payment_id=$2, status=$3, updated_at=now() WHERE id=$1 AND status=$4`,
		id, paymentID, StatusProcessing, StatusPending,
	)
	if err != nil {
		return false, errors.Wrap(err, "stamp payment")
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := outbox.Insert(ctx, tx, evt.EventID, r.topic, evt.OrderID, evt); err != nil {
		return false, errors.Wrap(err, "append event")
	}
	return true, errors.Wrap(tx.Commit(ctx), "commit payment stamp")
}

// AppendEvent records an event outside any order mutation, e.g. a
// failed-payment webhook.
func (r *PgxRepository) AppendEvent(ctx context.Context, evt Event) error {
	return errors.Wrap(outbox.Insert(ctx, r.pool, evt.EventID, r.topic, evt.OrderID, evt), "append event")
}

// EventProcessed reports whether eventID has already been applied.
func (r *PgxRepository) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id=$1)`, eventID).Scan(&exists)
	return exists, errors.Wrap(err, "check event processed")
}

// MarkEventProcessed dedupes at-least-once deliveries. It returns true
// when this call is the first sighting of eventID.
func (r *PgxRepository) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO processed_events(event_id) VALUES ($1) ON CONFLICT (event_id) DO NOTHING`, eventID)
	if err != nil {
		return false, errors.Wrap(err, "mark event processed")
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgxRepository) queryOrders(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	orders := []Order{}
	ids := []uuid.UUID{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	if len(ids) == 0 {
		return orders, nil
	}

	lines, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, nil
}

func (r *PgxRepository) linesFor(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]Line, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT order_id, product_id, name, image, quantity, unit_price
		 FROM order_items WHERE order_id = ANY($1) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, errors.Wrap(err, "list order lines")
	}
	defer rows.Close()

	lines := make(map[uuid.UUID][]Line, len(orderIDs))
	for rows.Next() {
		var orderID uuid.UUID
		var line Line
		if err := rows.Scan(&orderID, &line.ProductID, &line.Name, &line.Image, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, errors.Wrap(err, "scan order line")
		}
		lines[orderID] = append(lines[orderID], line)
	}
	return lines, errors.Wrap(rows.Err(), "list order lines")
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.PaymentID,
		&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.ZipCode, &o.ShippingAddress.Country,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOrder
		}
		return nil, errors.Wrap(err, "scan order")
	}
	return &o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
