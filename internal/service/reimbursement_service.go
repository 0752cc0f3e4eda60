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

// SapCodeRegistry validates organizational codes at submission time.
// Implemented by repository.SapCodeRepository.
type SapCodeRegistry interface {
	Exists(ctx context.Context, code string) (bool, error)
	ListActive(ctx context.Context) ([]*repository.SapCode, error)
}

// ReimbursementService handles submission and querying of reimbursement
// requests. Approval decisions live in ApprovalService.
type ReimbursementService struct {
	store     ReimbursementStore
	directory ApproverDirectory
	sapCodes  SapCodeRegistry
	audit     AuditLog
	notifier  WorkflowNotifier
	log       *logger.Logger
}

// NewReimbursementService creates a new ReimbursementService.
func NewReimbursementService(
	store ReimbursementStore,
	directory ApproverDirectory,
	sapCodes SapCodeRegistry,
	audit AuditLog,
	notifier WorkflowNotifier,
	log *logger.Logger,
) *ReimbursementService {
	return &ReimbursementService{
		store:     store,
		directory: directory,
		sapCodes:  sapCodes,
		audit:     audit,
		notifier:  notifier,
		log:       log,
	}
}

// SubmitRequest carries a new reimbursement submission.
type SubmitRequest struct {
	SapCode     string  `json:"sapCode"`
	Category    string  `json:"category"`
	Items       string  `json:"items"`
	Description *string `json:"description"`
	TotalAmount int64   `json:"totalAmount"` // cents
	ExpenseDate string  `json:"expenseDate"` // YYYY-MM-DD
}

// Submit creates a reimbursement with its full Pending step chain derived
// from the requester's role, sets the first approver, and notifies the
// requester and, when resolvable, the level-1 approver.
func (s *ReimbursementService) Submit(ctx context.Context, actor *repository.User, req *SubmitRequest) (*repository.Reimbursement, error) {
	if actor == nil {
		return nil, errors.New(errors.ErrCodeUnauthorized, "not authenticated")
	}
	if strings.TrimSpace(req.SapCode) == "" {
		return nil, errors.InvalidInput("sapCode", "SAP code is required")
	}
	if strings.TrimSpace(req.Category) == "" {
		return nil, errors.InvalidInput("category", "category is required")
	}
	if strings.TrimSpace(req.Items) == "" {
		return nil, errors.InvalidInput("items", "items are required")
	}
	if req.TotalAmount <= 0 {
		return nil, errors.InvalidInput("totalAmount", "amount must be positive")
	}
	expenseDate, err := time.Parse("2006-01-02", req.ExpenseDate)
	if err != nil {
		return nil, errors.InvalidInput("expenseDate", "invalid date format, expected YYYY-MM-DD")
	}

	known, err := s.sapCodes.Exists(ctx, req.SapCode)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, errors.InvalidInput("sapCode", "unknown or inactive SAP code").
			WithDetail("sapCode", req.SapCode)
	}

	chain := flow.ChainFor(actor.Role)
	if len(chain) == 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "role %s has no approval chain", actor.Role)
	}
	firstRole := chain[0]

	steps := make([]*repository.ApprovalStep, 0, len(chain))
	for i, role := range chain {
		steps = append(steps, &repository.ApprovalStep{
			ApproverRole: role,
			Level:        i + 1,
			Status:       repository.StatusPending,
		})
	}

	// Pre-assign the level-1 approver when the directory resolves one.
	var firstApprover *flow.User
	if users, err := s.directory.ListApproversByRole(ctx, firstRole); err != nil {
		s.log.Warn().Err(err).Str("role", firstRole.String()).Msg("Could not fetch users for role; first step unassigned")
	} else {
		entries := make([]flow.User, 0, len(users))
		for _, u := range users {
			entries = append(entries, u.DirectoryEntry())
		}
		firstApprover = flow.FindApprover(firstRole, req.SapCode, entries)
		if firstApprover != nil {
			steps[0].ApproverID = &firstApprover.ID
		}
	}

	rb := &repository.Reimbursement{
		RequesterID:     actor.ID,
		Requester:       actor,
		SapCode:         req.SapCode,
		Category:        req.Category,
		Items:           req.Items,
		Description:     req.Description,
		TotalAmount:     req.TotalAmount,
		ExpenseDate:     expenseDate,
		Status:          repository.StatusPending,
		CurrentApprover: &firstRole,
	}

	if err := s.store.Create(ctx, rb, steps); err != nil {
		return nil, err
	}

	if err := s.audit.Append(ctx, &repository.AuditEntry{
		ReimbursementID: rb.ID,
		Action:          "submitted",
		PerformedBy:     actor.ID,
		StatusAfter:     strPtr(repository.StatusPending),
		Metadata: map[string]any{
			"chain_length":   len(chain),
			"first_approver": firstRole.String(),
		},
	}); err != nil {
		s.log.Warn().Err(err).Str("reimbursement_id", rb.ID).Msg("Failed to write audit log entry")
	}

	s.notifier.Submitted(ctx, rb, firstApprover)

	s.log.Info().
		Str("reimbursement_id", rb.ID).
		Str("requester_role", actor.Role.String()).
		Int("chain_length", len(chain)).
		Msg("Reimbursement submitted")
	return rb, nil
}

// Get returns one reimbursement visible to the actor: requesters see their
// own, SAP-scoped approvers see requests for their codes, global roles see
// everything.
func (s *ReimbursementService) Get(ctx context.Context, actor *repository.User, id string) (*repository.Reimbursement, error) {
	if actor == nil {
		return nil, errors.New(errors.ErrCodeUnauthorized, "not authenticated")
	}

	rb, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if rb.RequesterID == actor.ID {
		return rb, nil
	}
	switch {
	case actor.Role == flow.RoleEmployee:
		return nil, errors.NotFound("reimbursement", id)
	case actor.Role.IsSapScoped() && !containsString(actor.SapCodes(), rb.SapCode):
		return nil, errors.NotFound("reimbursement", id)
	}
	return rb, nil
}

// List returns the reimbursements visible to the actor, newest first. With
// mine set, only the actor's own submissions are returned regardless of
// role.
func (s *ReimbursementService) List(ctx context.Context, actor *repository.User, mine bool) ([]*repository.Reimbursement, error) {
	if actor == nil {
		return nil, errors.New(errors.ErrCodeUnauthorized, "not authenticated")
	}
	if mine || actor.Role == flow.RoleEmployee {
		return s.store.ListByRequester(ctx, actor.ID)
	}
	if actor.Role.IsSapScoped() {
		return s.store.ListBySapCodes(ctx, actor.SapCodes())
	}
	return s.store.ListAll(ctx)
}

// Users returns the user directory, for approver selection in the UI.
func (s *ReimbursementService) Users(ctx context.Context, actor *repository.User) ([]*repository.User, error) {
	if actor == nil {
		return nil, errors.New(errors.ErrCodeUnauthorized, "not authenticated")
	}
	return s.directory.List(ctx)
}

// SapCodes returns the active organizational code registry.
func (s *ReimbursementService) SapCodes(ctx context.Context) ([]*repository.SapCode, error) {
	return s.sapCodes.ListActive(ctx)
}
