package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"campuscart/internal/domain/cart"
	"campuscart/internal/ports"
)

// CartRepo persists carts using pgx and plain SQL.
type CartRepo struct {
	pool *pgxpool.Pool
}

// NewCartRepo constructs a new CartRepo.
func NewCartRepo(pool *pgxpool.Pool) ports.CartRepository {
	return &CartRepo{pool: pool}
}

const cartColumns = `
	id, created_at, updated_at, number, description, status,
	current_driver_id, last_maintenance`

func (repo *CartRepo) Create(ctx context.Context, c *cart.Cart) error {
	q := runner(ctx, repo.pool)

	_, err := q.Exec(ctx, `
		INSERT INTO carts (id, created_at, updated_at, number, description, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.CreatedAt, c.UpdatedAt, c.Number, c.Description, c.Status.String())
	if err != nil {
		if isUniqueViolation(err) {
			return cart.ErrDuplicateNumber
		}
		return fmt.Errorf("insert cart: %w", err)
	}
	return nil
}

func (repo *CartRepo) GetByID(ctx context.Context, id string) (*cart.Cart, error) {
	q := runner(ctx, repo.pool)

	row := q.QueryRow(ctx, `SELECT`+cartColumns+` FROM carts WHERE id = $1`, id)
	out, err := scanCart(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return out, nil
}

func (repo *CartRepo) List(ctx context.Context, status *cart.Status) ([]*cart.Cart, error) {
	q := runner(ctx, repo.pool)

	query := `SELECT` + cartColumns + ` FROM carts`
	var args []any
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, status.String())
	}
	query += ` ORDER BY number`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list carts: %w", err)
	}
	defer rows.Close()

	var out []*cart.Cart
	for rows.Next() {
		c, err := scanCart(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cart: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (repo *CartRepo) Save(ctx context.Context, c *cart.Cart) error {
	q := runner(ctx, repo.pool)

	tag, err := q.Exec(ctx, `
		UPDATE carts
		SET number = $2, description = $3, status = $4,
		    current_driver_id = $5, last_maintenance = $6, updated_at = $7
		WHERE id = $1
	`, c.ID, c.Number, c.Description, c.Status.String(), c.CurrentDriverID, c.LastMaintenance, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return cart.ErrDuplicateNumber
		}
		return fmt.Errorf("save cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

func scanCart(row pgx.Row) (*cart.Cart, error) {
	var (
		out    cart.Cart
		status string
	)
	err := row.Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt, &out.Number, &out.Description, &status,
		&out.CurrentDriverID, &out.LastMaintenance,
	)
	if err != nil {
		return nil, err
	}
	out.Status = cart.Status(status)
	return &out, nil
}

// isUniqueViolation reports a postgres 23505 error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
