package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ernit/be-reimbursements/internal/database"
	"github.com/ernit/be-reimbursements/internal/errors"
	"github.com/ernit/be-reimbursements/internal/flow"
)

// SessionRepository resolves session tokens to users. Sessions are written
// by the identity provider's OAuth callback, which lives outside this
// service; only resolution and cleanup are exposed here.
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// ResolveToken returns the user owning a live session token.
func (r *SessionRepository) ResolveToken(ctx context.Context, token string) (*User, error) {
	query := `
		SELECT u.id, u.name, u.email, u.role, u.sap_code_1, u.sap_code_2,
		       u.created_at, u.updated_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1
		  AND s.expires_at > NOW()
	`

	u := &User{}
	var role string
	err := r.db.QueryRow(ctx, query, token).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&role,
		&u.SapCode1,
		&u.SapCode2,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.New(errors.ErrCodeUnauthorized, "invalid or expired session")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to resolve session")
	}
	u.Role = flow.Role(role)
	return u, nil
}

// DeleteExpired removes sessions past their expiry. Called from a periodic
// sweep in main.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to delete expired sessions")
	}
	return tag.RowsAffected(), nil
}
