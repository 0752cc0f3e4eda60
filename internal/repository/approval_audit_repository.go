package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/ernit/be-reimbursements/internal/database"
	"github.com/ernit/be-reimbursements/internal/errors"
)

// ApprovalAuditRepository appends and reads immutable approval audit log
// entries. The table has a delete-prevention trigger so Append is the only
// mutation operation exposed.
type ApprovalAuditRepository struct {
	db *database.DB
}

// NewApprovalAuditRepository creates a new ApprovalAuditRepository.
func NewApprovalAuditRepository(db *database.DB) *ApprovalAuditRepository {
	return &ApprovalAuditRepository{db: db}
}

// Append inserts one audit entry.
func (r *ApprovalAuditRepository) Append(ctx context.Context, entry *AuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal audit metadata")
		}
	}

	entry.ID = uuid.NewString()

	query := `
		INSERT INTO approval_audit_log
		    (id, reimbursement_id, step_id,
		     action, performed_by,
		     status_before, status_after,
		     metadata)
		VALUES ($1, $2, $3,
		        $4, $5,
		        $6, $7,
		        $8)
		RETURNING performed_at
	`

	return r.db.QueryRow(ctx, query,
		entry.ID,
		entry.ReimbursementID,
		entry.StepID,
		entry.Action,
		entry.PerformedBy,
		entry.StatusBefore,
		entry.StatusAfter,
		metadataJSON,
	).Scan(&entry.PerformedAt)
}

// GetByReimbursementID returns the full audit trail for a reimbursement,
// ordered oldest-first.
func (r *ApprovalAuditRepository) GetByReimbursementID(ctx context.Context, reimbursementID string) ([]*AuditEntry, error) {
	query := `
		SELECT id, reimbursement_id, step_id,
		       action, performed_by, performed_at,
		       status_before, status_after,
		       metadata
		FROM approval_audit_log
		WHERE reimbursement_id = $1
		ORDER BY performed_at ASC
	`

	rows, err := r.db.Query(ctx, query, reimbursementID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get audit log")
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		e := &AuditEntry{}
		var metadataJSON []byte
		err := rows.Scan(
			&e.ID,
			&e.ReimbursementID,
			&e.StepID,
			&e.Action,
			&e.PerformedBy,
			&e.PerformedAt,
			&e.StatusBefore,
			&e.StatusAfter,
			&metadataJSON,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit entry")
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal audit metadata")
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
