package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ernit/be-reimbursements/internal/database"
	"github.com/ernit/be-reimbursements/internal/errors"
	"github.com/ernit/be-reimbursements/internal/flow"
)

// UserRepository reads user records. User provisioning happens through the
// identity provider sync, so no write operations are exposed here.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, email, role, sap_code_1, sap_code_2, created_at, updated_at`

// GetByID retrieves a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user", id)
	}
	return u, err
}

// List returns every user in the directory, ordered by (created_at, id).
func (r *UserRepository) List(ctx context.Context) ([]*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list users")
	}
	defer rows.Close()

	return scanUserRows(rows)
}

// ListApproversByRole returns every user holding the given role, ordered by
// (created_at, id) so directory lookups are deterministic.
func (r *UserRepository) ListApproversByRole(ctx context.Context, role flow.Role) ([]*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE role = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, role.String())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approvers")
	}
	defer rows.Close()

	return scanUserRows(rows)
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type userScanner interface {
	Scan(dest ...any) error
}

func scanUser(row userScanner) (*User, error) {
	u := &User{}
	var role string
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&role,
		&u.SapCode1,
		&u.SapCode2,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = flow.Role(role)
	return u, nil
}

func scanUserRows(rows pgx.Rows) ([]*User, error) {
	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan user")
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
