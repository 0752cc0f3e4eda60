package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ernit/be-reimbursements/internal/database"
	"github.com/ernit/be-reimbursements/internal/errors"
	"github.com/ernit/be-reimbursements/internal/flow"
)

// ApprovalStepsRepository applies approval decisions and serves the approver
// inbox. Step creation is handled by ReimbursementRepository.Create
// (transactionally).
type ApprovalStepsRepository struct {
	db *database.DB
}

// NewApprovalStepsRepository creates a new ApprovalStepsRepository.
func NewApprovalStepsRepository(db *database.DB) *ApprovalStepsRepository {
	return &ApprovalStepsRepository{db: db}
}

// ApplyDecision commits one approve/reject action atomically: the acted-on
// step, any cascade rejection, the optional next-step approver hint and the
// owning reimbursement all change in a single transaction.
//
// The step mutation is conditional on the step still being Pending, so of
// two concurrent decisions for the same role exactly one commits; the loser
// gets NO_PENDING_STEP.
func (r *ApprovalStepsRepository) ApplyDecision(ctx context.Context, d *ApprovalDecision) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		stepQuery := `
			UPDATE approval_steps
			SET status      = $3,
			    approver_id = $4,
			    remarks     = $5,
			    acted_at    = NOW(),
			    updated_at  = NOW()
			WHERE reimbursement_id = $1
			  AND approver_role    = $2
			  AND status           = 'Pending'
			RETURNING approval_level
		`

		var level int
		err := tx.QueryRow(ctx, stepQuery,
			d.ReimbursementID,
			d.ActingRole.String(),
			d.StepStatus,
			d.ActorID,
			d.Remarks,
		).Scan(&level)
		if err == pgx.ErrNoRows {
			return errors.New(errors.ErrCodeNoPendingStep, "no pending approval step for your role").
				WithDetail("role", d.ActingRole.String())
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update approval step")
		}

		if d.CascadeFromLevel > 0 {
			cascadeQuery := `
				UPDATE approval_steps
				SET status     = 'Rejected',
				    remarks    = $3,
				    updated_at = NOW()
				WHERE reimbursement_id = $1
				  AND status           = 'Pending'
				  AND approval_level   > $2
			`
			if _, err := tx.Exec(ctx, cascadeQuery, d.ReimbursementID, level, CascadeRemark); err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to cascade rejection")
			}
		}

		if d.NextApprover != nil && d.NextActorHint != nil {
			hintQuery := `
				UPDATE approval_steps
				SET approver_id = $3,
				    updated_at  = NOW()
				WHERE reimbursement_id = $1
				  AND approver_role    = $2
				  AND status           = 'Pending'
				  AND approver_id IS NULL
			`
			if _, err := tx.Exec(ctx, hintQuery, d.ReimbursementID, d.NextApprover.String(), d.NextActorHint); err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to assign next approver")
			}
		}

		var nextApprover *string
		if d.NextApprover != nil {
			s := d.NextApprover.String()
			nextApprover = &s
		}

		rbQuery := `
			UPDATE reimbursements
			SET status           = $2,
			    current_approver = $3,
			    approved_at      = COALESCE($4, approved_at),
			    updated_at       = NOW()
			WHERE id = $1
			RETURNING id
		`

		var returnedID string
		err = tx.QueryRow(ctx, rbQuery,
			d.ReimbursementID,
			d.RequestStatus,
			nextApprover,
			d.ApprovedAt,
		).Scan(&returnedID)
		if err == pgx.ErrNoRows {
			return errors.NotFound("reimbursement", d.ReimbursementID)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update reimbursement")
		}
		return nil
	})
}

// PendingForApprover returns the steps currently awaiting an approver: their
// role is the request's current approver, the step is Pending, and for
// SAP-scoped roles the request's code is one of theirs.
func (r *ApprovalStepsRepository) PendingForApprover(ctx context.Context, role flow.Role, sapCodes []string) ([]*ApprovalStep, error) {
	query := `
		SELECT s.id, s.reimbursement_id, s.approver_role, s.approval_level,
		       s.status, s.approver_id, s.remarks, s.acted_at,
		       s.created_at, s.updated_at
		FROM approval_steps s
		JOIN reimbursements r ON r.id = s.reimbursement_id
		WHERE s.status = 'Pending'
		  AND s.approver_role = $1
		  AND r.current_approver = s.approver_role
		  AND ($2::text[] IS NULL OR r.sap_code = ANY($2))
		ORDER BY r.submitted_at ASC
	`

	var codes []string
	if role.IsSapScoped() {
		codes = sapCodes
	}

	rows, err := r.db.Query(ctx, query, role.String(), codes)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get pending approvals")
	}
	defer rows.Close()

	var steps []*ApprovalStep
	for rows.Next() {
		s := &ApprovalStep{}
		var stepRole string
		err := rows.Scan(
			&s.ID,
			&s.ReimbursementID,
			&stepRole,
			&s.Level,
			&s.Status,
			&s.ApproverID,
			&s.Remarks,
			&s.ActedAt,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval step")
		}
		s.ApproverRole = flow.Role(stepRole)
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
