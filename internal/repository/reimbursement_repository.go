package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ernit/be-reimbursements/internal/database"
	"github.com/ernit/be-reimbursements/internal/errors"
	"github.com/ernit/be-reimbursements/internal/flow"
)

// ReimbursementRepository manages reimbursement requests and their ordered
// approval step chains. Request + step creation is always done together in a
// single transaction.
type ReimbursementRepository struct {
	db *database.DB
}

// NewReimbursementRepository creates a new ReimbursementRepository.
func NewReimbursementRepository(db *database.DB) *ReimbursementRepository {
	return &ReimbursementRepository{db: db}
}

// Create inserts a reimbursement and its full Pending step chain in one
// transaction. IDs are assigned here; steps must arrive ordered by level.
func (r *ReimbursementRepository) Create(ctx context.Context, rb *Reimbursement, steps []*ApprovalStep) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		rb.ID = uuid.NewString()

		rbQuery := `
			INSERT INTO reimbursements
			    (id, requester_id, sap_code, category, items, description,
			     total_amount, expense_date, status, current_approver)
			VALUES ($1, $2, $3, $4, $5, $6,
			        $7, $8, $9, $10)
			RETURNING submitted_at, created_at, updated_at
		`

		var currentApprover *string
		if rb.CurrentApprover != nil {
			s := rb.CurrentApprover.String()
			currentApprover = &s
		}

		err := tx.QueryRow(ctx, rbQuery,
			rb.ID,
			rb.RequesterID,
			rb.SapCode,
			rb.Category,
			rb.Items,
			rb.Description,
			rb.TotalAmount,
			rb.ExpenseDate,
			rb.Status,
			currentApprover,
		).Scan(&rb.SubmittedAt, &rb.CreatedAt, &rb.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create reimbursement")
		}

		stepQuery := `
			INSERT INTO approval_steps
			    (id, reimbursement_id, approver_role, approval_level, status, approver_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at
		`

		for _, step := range steps {
			step.ID = uuid.NewString()
			step.ReimbursementID = rb.ID

			err := tx.QueryRow(ctx, stepQuery,
				step.ID,
				step.ReimbursementID,
				step.ApproverRole.String(),
				step.Level,
				step.Status,
				step.ApproverID,
			).Scan(&step.CreatedAt, &step.UpdatedAt)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to create approval step")
			}
		}

		rb.Steps = steps
		return nil
	})
}

// GetByID retrieves a reimbursement with its requester and its full step
// chain, each step joined with its acting user when one is set.
func (r *ReimbursementRepository) GetByID(ctx context.Context, id string) (*Reimbursement, error) {
	query := `
		SELECT r.id, r.requester_id, r.sap_code, r.category, r.items, r.description,
		       r.total_amount, r.expense_date, r.status, r.current_approver,
		       r.submitted_at, r.approved_at, r.created_at, r.updated_at,
		       u.id, u.name, u.email, u.role, u.sap_code_1, u.sap_code_2,
		       u.created_at, u.updated_at
		FROM reimbursements r
		JOIN users u ON u.id = r.requester_id
		WHERE r.id = $1
	`

	rb := &Reimbursement{Requester: &User{}}
	var currentApprover *string
	var requesterRole string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rb.ID,
		&rb.RequesterID,
		&rb.SapCode,
		&rb.Category,
		&rb.Items,
		&rb.Description,
		&rb.TotalAmount,
		&rb.ExpenseDate,
		&rb.Status,
		&currentApprover,
		&rb.SubmittedAt,
		&rb.ApprovedAt,
		&rb.CreatedAt,
		&rb.UpdatedAt,
		&rb.Requester.ID,
		&rb.Requester.Name,
		&rb.Requester.Email,
		&requesterRole,
		&rb.Requester.SapCode1,
		&rb.Requester.SapCode2,
		&rb.Requester.CreatedAt,
		&rb.Requester.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("reimbursement", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get reimbursement")
	}
	rb.Requester.Role = flow.Role(requesterRole)
	if currentApprover != nil {
		role := flow.Role(*currentApprover)
		rb.CurrentApprover = &role
	}

	steps, err := r.getSteps(ctx, rb.ID)
	if err != nil {
		return nil, err
	}
	rb.Steps = steps
	return rb, nil
}

// ListByRequester returns a requester's own reimbursements, newest first.
func (r *ReimbursementRepository) ListByRequester(ctx context.Context, requesterID string) ([]*Reimbursement, error) {
	query := listQuery + ` WHERE r.requester_id = $1 ORDER BY r.submitted_at DESC`
	return r.list(ctx, query, requesterID)
}

// ListBySapCodes returns reimbursements scoped to any of the given SAP
// codes, newest first. Used for SUL and Account Manager listings.
func (r *ReimbursementRepository) ListBySapCodes(ctx context.Context, codes []string) ([]*Reimbursement, error) {
	query := listQuery + ` WHERE r.sap_code = ANY($1) ORDER BY r.submitted_at DESC`
	return r.list(ctx, query, codes)
}

// ListAll returns every reimbursement, newest first. Used for global
// approver roles and reporting exports.
func (r *ReimbursementRepository) ListAll(ctx context.Context) ([]*Reimbursement, error) {
	query := listQuery + ` ORDER BY r.submitted_at DESC`
	return r.list(ctx, query)
}

const listQuery = `
	SELECT r.id, r.requester_id, r.sap_code, r.category, r.items, r.description,
	       r.total_amount, r.expense_date, r.status, r.current_approver,
	       r.submitted_at, r.approved_at, r.created_at, r.updated_at,
	       u.id, u.name, u.email, u.role, u.sap_code_1, u.sap_code_2,
	       u.created_at, u.updated_at
	FROM reimbursements r
	JOIN users u ON u.id = r.requester_id
`

func (r *ReimbursementRepository) list(ctx context.Context, query string, args ...any) ([]*Reimbursement, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list reimbursements")
	}
	defer rows.Close()

	var out []*Reimbursement
	for rows.Next() {
		rb := &Reimbursement{Requester: &User{}}
		var currentApprover *string
		var requesterRole string
		err := rows.Scan(
			&rb.ID,
			&rb.RequesterID,
			&rb.SapCode,
			&rb.Category,
			&rb.Items,
			&rb.Description,
			&rb.TotalAmount,
			&rb.ExpenseDate,
			&rb.Status,
			&currentApprover,
			&rb.SubmittedAt,
			&rb.ApprovedAt,
			&rb.CreatedAt,
			&rb.UpdatedAt,
			&rb.Requester.ID,
			&rb.Requester.Name,
			&rb.Requester.Email,
			&requesterRole,
			&rb.Requester.SapCode1,
			&rb.Requester.SapCode2,
			&rb.Requester.CreatedAt,
			&rb.Requester.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan reimbursement")
		}
		rb.Requester.Role = flow.Role(requesterRole)
		if currentApprover != nil {
			role := flow.Role(*currentApprover)
			rb.CurrentApprover = &role
		}
		out = append(out, rb)
	}
	return out, rows.Err()
}

// getSteps loads a reimbursement's step chain ordered by level, each step
// joined with its acting user.
func (r *ReimbursementRepository) getSteps(ctx context.Context, reimbursementID string) ([]*ApprovalStep, error) {
	query := `
		SELECT s.id, s.reimbursement_id, s.approver_role, s.approval_level,
		       s.status, s.approver_id, s.remarks, s.acted_at,
		       s.created_at, s.updated_at,
		       u.id, u.name, u.email, u.role, u.sap_code_1, u.sap_code_2,
		       u.created_at, u.updated_at
		FROM approval_steps s
		LEFT JOIN users u ON u.id = s.approver_id
		WHERE s.reimbursement_id = $1
		ORDER BY s.approval_level ASC
	`

	rows, err := r.db.Query(ctx, query, reimbursementID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval steps")
	}
	defer rows.Close()

	var steps []*ApprovalStep
	for rows.Next() {
		s := &ApprovalStep{}
		var stepRole string
		var actorID, actorName, actorEmail, actorRole *string
		var actorCode1, actorCode2 *string
		var actorCreated, actorUpdated *time.Time
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
			&actorID,
			&actorName,
			&actorEmail,
			&actorRole,
			&actorCode1,
			&actorCode2,
			&actorCreated,
			&actorUpdated,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval step")
		}
		s.ApproverRole = flow.Role(stepRole)
		if actorID != nil {
			s.Approver = &User{
				ID:       *actorID,
				Name:     derefOr(actorName, ""),
				Email:    derefOr(actorEmail, ""),
				Role:     flow.Role(derefOr(actorRole, "")),
				SapCode1: actorCode1,
				SapCode2: actorCode2,
			}
			if actorCreated != nil {
				s.Approver.CreatedAt = *actorCreated
			}
			if actorUpdated != nil {
				s.Approver.UpdatedAt = *actorUpdated
			}
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
