package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campuscart/internal/domain/user"
	"campuscart/internal/ports"
)

// UserRepo persists users using pgx and plain SQL.
type UserRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo constructs a new UserRepo.
func NewUserRepo(pool *pgxpool.Pool) ports.UserRepository {
	return &UserRepo{pool: pool}
}

const userColumns = `
	id, created_at, updated_at, first_name, last_name, email, phone_number,
	role, is_on_duty, assigned_cart_id`

func (repo *UserRepo) Create(ctx context.Context, u *user.User) error {
	q := runner(ctx, repo.pool)

	_, err := q.Exec(ctx, `
		INSERT INTO users (
			id, created_at, updated_at, first_name, last_name,
			email, phone_number, role, is_on_duty
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.CreatedAt, u.UpdatedAt, u.FirstName, u.LastName,
		u.Email, u.PhoneNumber, u.Role.String(), u.IsOnDuty)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (repo *UserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	q := runner(ctx, repo.pool)

	row := q.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE id = $1`, id)
	out, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return out, nil
}

func (repo *UserRepo) ListDrivers(ctx context.Context, onDutyOnly bool) ([]*user.User, error) {
	q := runner(ctx, repo.pool)

	query := `SELECT` + userColumns + ` FROM users WHERE role = $1`
	args := []any{user.RoleDriver.String()}
	if onDutyOnly {
		query += ` AND is_on_duty`
	}
	query += ` ORDER BY id`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (repo *UserRepo) ListByRoles(ctx context.Context, roles ...user.Role) ([]*user.User, error) {
	q := runner(ctx, repo.pool)

	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.String())
	}

	rows, err := q.Query(ctx, `SELECT`+userColumns+` FROM users WHERE role = ANY($1) ORDER BY id`, names)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (repo *UserRepo) Save(ctx context.Context, u *user.User) error {
	q := runner(ctx, repo.pool)

	tag, err := q.Exec(ctx, `
		UPDATE users
		SET first_name = $2, last_name = $3, email = $4, phone_number = $5,
		    is_on_duty = $6, assigned_cart_id = $7, updated_at = $8
		WHERE id = $1
	`, u.ID, u.FirstName, u.LastName, u.Email, u.PhoneNumber,
		u.IsOnDuty, u.AssignedCartID, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		out  user.User
		role string
	)
	err := row.Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt, &out.FirstName, &out.LastName,
		&out.Email, &out.PhoneNumber, &role, &out.IsOnDuty, &out.AssignedCartID,
	)
	if err != nil {
		return nil, err
	}
	out.Role = user.Role(role)
	return &out, nil
}

func collectUsers(rows pgx.Rows) ([]*user.User, error) {
	var out []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
