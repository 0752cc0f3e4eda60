package repository

import (
	"context"

	"github.com/ernit/be-reimbursements/internal/database"
	"github.com/ernit/be-reimbursements/internal/errors"
)

// SapCodeRepository reads the organizational code registry shown in the
// admin and submission screens.
type SapCodeRepository struct {
	db *database.DB
}

// NewSapCodeRepository creates a new SapCodeRepository.
func NewSapCodeRepository(db *database.DB) *SapCodeRepository {
	return &SapCodeRepository{db: db}
}

// ListActive returns every active SAP code ordered by code.
func (r *SapCodeRepository) ListActive(ctx context.Context) ([]*SapCode, error) {
	query := `
		SELECT code, description, is_active, created_at, updated_at
		FROM sap_codes
		WHERE is_active
		ORDER BY code ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list sap codes")
	}
	defer rows.Close()

	var codes []*SapCode
	for rows.Next() {
		c := &SapCode{}
		if err := rows.Scan(&c.Code, &c.Description, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan sap code")
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// Exists reports whether a code is registered and active.
func (r *SapCodeRepository) Exists(ctx context.Context, code string) (bool, error) {
	var found bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM sap_codes WHERE code = $1 AND is_active)`, code,
	).Scan(&found)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to check sap code")
	}
	return found, nil
}
