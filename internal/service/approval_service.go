package service

import (
	"context"
	"strings"
	"time"

	"github.com/ernit/be-reimbursements/internal/errors"
	"github.com/ernit/be-reimbursements/internal/flow"
	"github.com/ernit/be-reimbursements/internal/logger"
	"github.com/ernit/be-reimbursements/internal/repository"
)

// ReimbursementStore reads and creates reimbursement requests with their
// step chains. Implemented by repository.ReimbursementRepository.
type ReimbursementStore interface {
	Create(ctx context.Context, rb *repository.Reimbursement, steps []*repository.ApprovalStep) error
	GetByID(ctx context.Context, id string) (*repository.Reimbursement, error)
	ListByRequester(ctx context.Context, requesterID string) ([]*repository.Reimbursement, error)
	ListBySapCodes(ctx context.Context, codes []string) ([]*repository.Reimbursement, error)
	ListAll(ctx context.Context) ([]*repository.Reimbursement, error)
}

// ApprovalLedger applies decisions atomically and serves the approver inbox.
// Implemented by repository.ApprovalStepsRepository.
type ApprovalLedger interface {
	ApplyDecision(ctx context.Context, d *repository.ApprovalDecision) error
	PendingForApprover(ctx context.Context, role flow.Role, sapCodes []string) ([]*repository.ApprovalStep, error)
}

// ApproverDirectory lists users and candidate approvers in a stable,
// documented order. Implemented by repository.UserRepository.
type ApproverDirectory interface {
	List(ctx context.Context) ([]*repository.User, error)
	ListApproversByRole(ctx context.Context, role flow.Role) ([]*repository.User, error)
}

// AuditLog appends immutable action records. Implemented by
// repository.ApprovalAuditRepository.
type AuditLog interface {
	Append(ctx context.Context, entry *repository.AuditEntry) error
	GetByReimbursementID(ctx context.Context, reimbursementID string) ([]*repository.AuditEntry, error)
}

// WorkflowNotifier fans out notifications after a committed transition.
// Implemented by notify.Notifier; every method is best-effort.
type WorkflowNotifier interface {
	Submitted(ctx context.Context, rb *repository.Reimbursement, firstApprover *flow.User)
	Progressed(ctx context.Context, rb *repository.Reimbursement, approver *repository.User, level int, nextRole flow.Role, nextApprover *flow.User)
	FinallyApproved(ctx context.Context, rb *repository.Reimbursement, approver *repository.User)
	Rejected(ctx context.Context, rb *repository.Reimbursement, approver *repository.User, remarks string, level int, cc []string)
}

// ApprovalService is the approval state machine. It validates that the
// acting user may take the current step, applies the transition atomically
// through the ledger, and fans out notifications after commit.
type ApprovalService struct {
	store     ReimbursementStore
	ledger    ApprovalLedger
	directory ApproverDirectory
	audit     AuditLog
	notifier  WorkflowNotifier
	log       *logger.Logger
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(
	store ReimbursementStore,
	ledger ApprovalLedger,
	directory ApproverDirectory,
	audit AuditLog,
	notifier WorkflowNotifier,
	log *logger.Logger,
) *ApprovalService {
	return &ApprovalService{
		store:     store,
		ledger:    ledger,
		directory: directory,
		audit:     audit,
		notifier:  notifier,
		log:       log,
	}
}

// ApprovalResult is returned from a successful approval.
type ApprovalResult struct {
	Reimbursement *repository.Reimbursement
	NextApprover  *flow.Role // nil when the request is now fully approved
}

// ── Approve ───────────────────────────────────────────────────────────────────

// Approve records the acting user's approval of the current step. When a
// later step remains the request advances to it; otherwise the request
// becomes Approved. Notification failures never affect the outcome.
func (s *ApprovalService) Approve(ctx context.Context, id string, actor *repository.User, remarks *string) (*ApprovalResult, error) {
	rb, step, err := s.validateTurn(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	decision := &repository.ApprovalDecision{
		ReimbursementID: rb.ID,
		ActingRole:      actor.Role,
		ActorID:         actor.ID,
		StepStatus:      repository.StatusApproved,
		Remarks:         remarks,
	}

	nextRole, hasNext := flow.NextApprover(rb.Requester.Role, actor.Role)
	var nextApprover *flow.User
	if hasNext {
		decision.RequestStatus = repository.StatusPending
		decision.NextApprover = &nextRole

		// Best-effort: a missing approver only skips one notification
		// and leaves the next step unassigned.
		nextApprover = s.lookupApprover(ctx, nextRole, rb.SapCode)
		if nextApprover != nil {
			decision.NextActorHint = &nextApprover.ID
		}
	} else {
		now := time.Now()
		decision.RequestStatus = repository.StatusApproved
		decision.ApprovedAt = &now
	}

	if err := s.ledger.ApplyDecision(ctx, decision); err != nil {
		return nil, err
	}

	statusAfter := decision.RequestStatus
	s.appendAudit(ctx, &repository.AuditEntry{
		ReimbursementID: rb.ID,
		StepID:          &step.ID,
		Action:          "approved",
		PerformedBy:     actor.ID,
		StatusBefore:    strPtr(repository.StatusPending),
		StatusAfter:     &statusAfter,
		Metadata: map[string]any{
			"level": step.Level,
			"role":  actor.Role.String(),
		},
	})

	updated := s.reload(ctx, rb)

	if hasNext {
		s.notifier.Progressed(ctx, updated, actor, step.Level, nextRole, nextApprover)
		s.log.Info().
			Str("reimbursement_id", rb.ID).
			Int("level", step.Level).
			Str("next_approver", nextRole.String()).
			Msg("Approval recorded, advancing to next level")
		return &ApprovalResult{Reimbursement: updated, NextApprover: &nextRole}, nil
	}

	s.notifier.FinallyApproved(ctx, updated, actor)
	s.log.Info().
		Str("reimbursement_id", rb.ID).
		Int("level", step.Level).
		Msg("Final approval recorded")
	return &ApprovalResult{Reimbursement: updated}, nil
}

// ── Reject ────────────────────────────────────────────────────────────────────

// Reject records the acting user's rejection of the current step, cascades
// the rejection to every still-pending later step, and terminates the
// request. Remarks are mandatory.
func (s *ApprovalService) Reject(ctx context.Context, id string, actor *repository.User, remarks string) (*repository.Reimbursement, error) {
	if actor != nil && strings.TrimSpace(remarks) == "" {
		return nil, errors.New(errors.ErrCodeMissingRemarks, "remarks are required for rejection")
	}

	rb, step, err := s.validateTurn(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	decision := &repository.ApprovalDecision{
		ReimbursementID:  rb.ID,
		ActingRole:       actor.Role,
		ActorID:          actor.ID,
		StepStatus:       repository.StatusRejected,
		Remarks:          &remarks,
		CascadeFromLevel: step.Level,
		RequestStatus:    repository.StatusRejected,
	}

	if err := s.ledger.ApplyDecision(ctx, decision); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &repository.AuditEntry{
		ReimbursementID: rb.ID,
		StepID:          &step.ID,
		Action:          "rejected",
		PerformedBy:     actor.ID,
		StatusBefore:    strPtr(repository.StatusPending),
		StatusAfter:     strPtr(repository.StatusRejected),
		Metadata: map[string]any{
			"level":   step.Level,
			"role":    actor.Role.String(),
			"remarks": remarks,
		},
	})

	// CC exactly the approvers who personally signed off at earlier levels.
	// Approvers never reached stay off the list.
	var cc []string
	for _, prev := range rb.Steps {
		if prev.Status != repository.StatusApproved || prev.Level >= step.Level {
			continue
		}
		if prev.Approver != nil && prev.Approver.Email != "" {
			cc = append(cc, prev.Approver.Email)
		}
	}

	updated := s.reload(ctx, rb)
	s.notifier.Rejected(ctx, updated, actor, remarks, step.Level, cc)

	s.log.Info().
		Str("reimbursement_id", rb.ID).
		Int("level", step.Level).
		Int("cc", len(cc)).
		Msg("Rejection recorded with cascade")
	return updated, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

// PendingFor returns the steps currently awaiting the acting user.
func (s *ApprovalService) PendingFor(ctx context.Context, actor *repository.User) ([]*repository.ApprovalStep, error) {
	if actor == nil {
		return nil, errors.New(errors.ErrCodeUnauthorized, "not authenticated")
	}
	return s.ledger.PendingForApprover(ctx, actor.Role, actor.SapCodes())
}

// History returns the audit trail for a reimbursement.
func (s *ApprovalService) History(ctx context.Context, actor *repository.User, id string) ([]*repository.AuditEntry, error) {
	if actor == nil {
		return nil, errors.New(errors.ErrCodeUnauthorized, "not authenticated")
	}
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.audit.GetByReimbursementID(ctx, id)
}

// ── Validation ────────────────────────────────────────────────────────────────

// validateTurn runs the shared approve/reject preconditions and returns the
// request with the acting user's pending step.
func (s *ApprovalService) validateTurn(ctx context.Context, id string, actor *repository.User) (*repository.Reimbursement, *repository.ApprovalStep, error) {
	if actor == nil {
		return nil, nil, errors.New(errors.ErrCodeUnauthorized, "not authenticated")
	}

	rb, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	// Terminal requests have no current approver, so they fail here too.
	if rb.CurrentApprover == nil || *rb.CurrentApprover != actor.Role {
		expected := "none"
		if rb.CurrentApprover != nil {
			expected = rb.CurrentApprover.String()
		}
		return nil, nil, errors.New(errors.ErrCodeWrongTurn, "not your approval step").
			WithDetail("currentApprover", expected).
			WithDetail("yourRole", actor.Role.String())
	}

	if actor.Role.IsSapScoped() {
		codes := actor.SapCodes()
		if !containsString(codes, rb.SapCode) {
			return nil, nil, errors.New(errors.ErrCodeCodeMismatch, "this reimbursement is not assigned to your SAP code").
				WithDetail("requestSapCode", rb.SapCode).
				WithDetail("yourSapCodes", codes)
		}
	}

	for _, step := range rb.Steps {
		if step.ApproverRole == actor.Role && step.Status == repository.StatusPending {
			return rb, step, nil
		}
	}

	// Integrity fault: current_approver points at a role with no pending
	// step. Also the outcome a race loser observes.
	return nil, nil, errors.New(errors.ErrCodeNoPendingStep, "no pending approval step for your role").
		WithDetail("role", actor.Role.String())
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// lookupApprover resolves the next approver through the directory, or nil.
func (s *ApprovalService) lookupApprover(ctx context.Context, role flow.Role, sapCode string) *flow.User {
	users, err := s.directory.ListApproversByRole(ctx, role)
	if err != nil {
		s.log.Warn().Err(err).Str("role", role.String()).Msg("Could not fetch users for role; next step unassigned")
		return nil
	}

	entries := make([]flow.User, 0, len(users))
	for _, u := range users {
		entries = append(entries, u.DirectoryEntry())
	}

	approver := flow.FindApprover(role, sapCode, entries)
	if approver == nil {
		s.log.Warn().
			Str("role", role.String()).
			Str("sap_code", sapCode).
			Msg("No approver found for role and SAP code")
	}
	return approver
}

// reload refreshes the request after commit; falls back to the pre-commit
// read when the refresh fails so callers still get a response body.
func (s *ApprovalService) reload(ctx context.Context, rb *repository.Reimbursement) *repository.Reimbursement {
	updated, err := s.store.GetByID(ctx, rb.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("reimbursement_id", rb.ID).Msg("Failed to reload reimbursement after decision")
		return rb
	}
	return updated
}

// appendAudit writes an audit entry, logging a warning on failure.
func (s *ApprovalService) appendAudit(ctx context.Context, entry *repository.AuditEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("reimbursement_id", entry.ReimbursementID).
			Str("action", entry.Action).
			Msg("Failed to write audit log entry")
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func strPtr(s string) *string {
	return &s
}
