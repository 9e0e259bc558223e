// Package catalog manages the global product catalog. Teams snapshot catalog
// entries at creation time; the catalog only tracks which teams linked each
// product.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewkit/crewkit/internal/fault"
)

// Product is a global catalog entry. TeamIDs is a set of teams that included
// the product in their snapshot.
type Product struct {
	ID          string   `json:"id"`
	ProductName string   `json:"product_name"`
	Description string   `json:"description"`
	TeamIDs     []string `json:"team_ids"`
}

// CreateProductInput holds the fields required to create a catalog entry.
type CreateProductInput struct {
	ProductName string `json:"product_name"`
	Description string `json:"description"`
}

// Store provides database operations for the product catalog.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new catalog store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const productColumns = `id, product_name, description, team_ids`

// notFoundOn converts no-rows and malformed-uuid errors into a not_found
// fault so bogus identifiers from the URL do not surface as server errors.
func notFoundOn(err error, message string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fault.New(fault.KindNotFound, message)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" { // invalid text representation
		return fault.New(fault.KindNotFound, message)
	}
	return nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	p := &Product{}
	if err := row.Scan(&p.ID, &p.ProductName, &p.Description, &p.TeamIDs); err != nil {
		return nil, err
	}
	if p.TeamIDs == nil {
		p.TeamIDs = []string{}
	}
	return p, nil
}

// Create inserts a new catalog product.
func (s *Store) Create(ctx context.Context, in CreateProductInput) (*Product, error) {
	if in.ProductName == "" {
		return nil, fault.New(fault.KindValidation, "product name is required")
	}
	p, err := scanProduct(s.pool.QueryRow(ctx,
		`INSERT INTO products (product_name, description)
		 VALUES ($1, $2)
		 RETURNING `+productColumns,
		in.ProductName, in.Description,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fault.Newf(fault.KindConflict, "product %q already exists", in.ProductName)
		}
		return nil, fmt.Errorf("creating product: %w", err)
	}
	return p, nil
}

// GetByID retrieves a product by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if nf := notFoundOn(err, "product not found"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("getting product: %w", err)
	}
	return p, nil
}

// List returns all catalog products ordered by name.
func (s *Store) List(ctx context.Context) ([]*Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY product_name`)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Delete removes a product by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if nf := notFoundOn(err, "product not found"); nf != nil {
			return nf
		}
		return fmt.Errorf("deleting product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.New(fault.KindNotFound, "product not found")
	}
	return nil
}
