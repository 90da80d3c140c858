package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// ErrNoProduct is the repository-level miss; the service translates it
// into the domain taxonomy.
var ErrNoProduct = errors.New("product does not exist")

const productColumns = `id, name, description, price, image, category, stock, featured, created_at, updated_at`

type PgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) *PgxRepository {
	return &PgxRepository{pool: pool}
}

func (r *PgxRepository) List(ctx context.Context) ([]Product, error) {
	return r.queryProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
}

func (r *PgxRepository) ListFeatured(ctx context.Context) ([]Product, error) {
	return r.queryProducts(ctx, `SELECT `+productColumns+` FROM products WHERE featured ORDER BY created_at DESC`)
}

func (r *PgxRepository) ListByCategory(ctx context.Context, category string) ([]Product, error) {
	// Substring, case-insensitive: "kor" matches "Korean".
	return r.queryProducts(ctx, `SELECT `+productColumns+` FROM products WHERE category ILIKE '%' || $1 || '%' ORDER BY created_at DESC`, category)
}

func (r *PgxRepository) Get(ctx context.Context, id uuid.UUID) (*Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoProduct
		}
		return nil, errors.Wrap(err, "get product")
	}
	return p, nil
}

func (r *PgxRepository) Create(ctx context.Context, p *Product) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products(id, name, description, price, image, category, stock, featured)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Name, p.Description, p.Price, p.Image, p.Category, p.Stock, p.Featured,
	)
	return errors.Wrap(err, "create product")
}

func (r *PgxRepository) Update(ctx context.Context, p *Product) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET name=$2, description=$3, price=$4, image=$5, category=$6, stock=$7, featured=$8, updated_at=now()
		 WHERE id=$1`,
		p.ID, p.Name, p.Description, p.Price, p.Image, p.Category, p.Stock, p.Featured,
	)
	if err != nil {
		return errors.Wrap(err, "update product")
	}
	if tag.RowsAffected() == 0 {
		return ErrNoProduct
	}
	return nil
}

func (r *PgxRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	if tag.RowsAffected() == 0 {
		return ErrNoProduct
	}
	return nil
}

func (r *PgxRepository) queryProducts(ctx context.Context, sql string, args ...any) ([]Product, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		products = append(products, *p)
	}
	return products, errors.Wrap(rows.Err(), "list products")
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Image, &p.Category, &p.Stock, &p.Featured, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
