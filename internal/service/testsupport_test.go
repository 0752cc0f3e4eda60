package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ernit/be-reimbursements/internal/errors"
	"github.com/ernit/be-reimbursements/internal/flow"
	"github.com/ernit/be-reimbursements/internal/logger"
	"github.com/ernit/be-reimbursements/internal/repository"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

// ── in-memory fakes ───────────────────────────────────────────────────────────

type fakeStore struct {
	byID   map[string]*repository.Reimbursement
	nextID int
	getErr error
}

func newFakeStore(rbs ...*repository.Reimbursement) *fakeStore {
	s := &fakeStore{byID: map[string]*repository.Reimbursement{}}
	for _, rb := range rbs {
		s.byID[rb.ID] = rb
	}
	return s
}

func (f *fakeStore) Create(_ context.Context, rb *repository.Reimbursement, steps []*repository.ApprovalStep) error {
	f.nextID++
	rb.ID = fmt.Sprintf("rb-%d", f.nextID)
	rb.SubmittedAt = time.Now()
	for i, step := range steps {
		step.ID = fmt.Sprintf("%s-step-%d", rb.ID, i+1)
		step.ReimbursementID = rb.ID
	}
	rb.Steps = steps
	f.byID[rb.ID] = rb
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*repository.Reimbursement, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rb, ok := f.byID[id]
	if !ok {
		return nil, errors.NotFound("reimbursement", id)
	}
	return rb, nil
}

func (f *fakeStore) ListByRequester(_ context.Context, requesterID string) ([]*repository.Reimbursement, error) {
	var out []*repository.Reimbursement
	for _, rb := range f.byID {
		if rb.RequesterID == requesterID {
			out = append(out, rb)
		}
	}
	return out, nil
}

func (f *fakeStore) ListBySapCodes(_ context.Context, codes []string) ([]*repository.Reimbursement, error) {
	match := map[string]bool{}
	for _, c := range codes {
		match[c] = true
	}
	var out []*repository.Reimbursement
	for _, rb := range f.byID {
		if match[rb.SapCode] {
			out = append(out, rb)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAll(_ context.Context) ([]*repository.Reimbursement, error) {
	var out []*repository.Reimbursement
	for _, rb := range f.byID {
		out = append(out, rb)
	}
	return out, nil
}

// fakeLedger applies decisions against the fakeStore's data with the same
// semantics as the SQL implementation: the step mutation is conditional on
// the step still being Pending.
type fakeLedger struct {
	store   *fakeStore
	applied []*repository.ApprovalDecision
}

func (f *fakeLedger) ApplyDecision(_ context.Context, d *repository.ApprovalDecision) error {
	rb, ok := f.store.byID[d.ReimbursementID]
	if !ok {
		return errors.NotFound("reimbursement", d.ReimbursementID)
	}

	var acted *repository.ApprovalStep
	for _, step := range rb.Steps {
		if step.ApproverRole == d.ActingRole && step.Status == repository.StatusPending {
			acted = step
			break
		}
	}
	if acted == nil {
		return errors.New(errors.ErrCodeNoPendingStep, "no pending approval step for your role").
			WithDetail("role", d.ActingRole.String())
	}

	now := time.Now()
	acted.Status = d.StepStatus
	acted.ApproverID = &d.ActorID
	acted.Remarks = d.Remarks
	acted.ActedAt = &now

	if d.CascadeFromLevel > 0 {
		for _, step := range rb.Steps {
			if step.Status == repository.StatusPending && step.Level > acted.Level {
				step.Status = repository.StatusRejected
				remark := repository.CascadeRemark
				step.Remarks = &remark
			}
		}
	}

	if d.NextApprover != nil && d.NextActorHint != nil {
		for _, step := range rb.Steps {
			if step.ApproverRole == *d.NextApprover && step.Status == repository.StatusPending && step.ApproverID == nil {
				step.ApproverID = d.NextActorHint
			}
		}
	}

	rb.Status = d.RequestStatus
	rb.CurrentApprover = d.NextApprover
	if d.ApprovedAt != nil {
		rb.ApprovedAt = d.ApprovedAt
	}

	f.applied = append(f.applied, d)
	return nil
}

func (f *fakeLedger) PendingForApprover(_ context.Context, role flow.Role, sapCodes []string) ([]*repository.ApprovalStep, error) {
	match := map[string]bool{}
	for _, c := range sapCodes {
		match[c] = true
	}
	var out []*repository.ApprovalStep
	for _, rb := range f.store.byID {
		if rb.CurrentApprover == nil || *rb.CurrentApprover != role {
			continue
		}
		if role.IsSapScoped() && !match[rb.SapCode] {
			continue
		}
		for _, step := range rb.Steps {
			if step.ApproverRole == role && step.Status == repository.StatusPending {
				out = append(out, step)
			}
		}
	}
	return out, nil
}

type fakeDirectory struct {
	users map[flow.Role][]*repository.User
	err   error
}

func (f *fakeDirectory) List(_ context.Context) ([]*repository.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*repository.User
	for _, users := range f.users {
		out = append(out, users...)
	}
	return out, nil
}

func (f *fakeDirectory) ListApproversByRole(_ context.Context, role flow.Role) ([]*repository.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[role], nil
}

type fakeAudit struct {
	entries []*repository.AuditEntry
	err     error
}

func (f *fakeAudit) Append(_ context.Context, entry *repository.AuditEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) GetByReimbursementID(_ context.Context, id string) ([]*repository.AuditEntry, error) {
	var out []*repository.AuditEntry
	for _, e := range f.entries {
		if e.ReimbursementID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

type progressedCall struct {
	level        int
	nextRole     flow.Role
	nextApprover *flow.User
}

type rejectedCall struct {
	remarks string
	level   int
	cc      []string
}

type fakeNotifier struct {
	submissions []*flow.User
	progressed  []progressedCall
	finals      int
	rejections  []rejectedCall
}

func (f *fakeNotifier) Submitted(_ context.Context, _ *repository.Reimbursement, firstApprover *flow.User) {
	f.submissions = append(f.submissions, firstApprover)
}

func (f *fakeNotifier) Progressed(_ context.Context, _ *repository.Reimbursement, _ *repository.User, level int, nextRole flow.Role, nextApprover *flow.User) {
	f.progressed = append(f.progressed, progressedCall{level: level, nextRole: nextRole, nextApprover: nextApprover})
}

func (f *fakeNotifier) FinallyApproved(_ context.Context, _ *repository.Reimbursement, _ *repository.User) {
	f.finals++
}

func (f *fakeNotifier) Rejected(_ context.Context, _ *repository.Reimbursement, _ *repository.User, remarks string, level int, cc []string) {
	f.rejections = append(f.rejections, rejectedCall{remarks: remarks, level: level, cc: cc})
}

// ── fixtures ──────────────────────────────────────────────────────────────────

func strp(s string) *string { return &s }

func userFixture(id string, role flow.Role, codes ...string) *repository.User {
	u := &repository.User{
		ID:    id,
		Name:  id,
		Email: id + "@example.com",
		Role:  role,
	}
	if len(codes) > 0 {
		u.SapCode1 = strp(codes[0])
	}
	if len(codes) > 1 {
		u.SapCode2 = strp(codes[1])
	}
	return u
}

// employeeRequest builds a freshly submitted Employee reimbursement with the
// full three-level chain pending and the SUL up first.
func employeeRequest(id, sapCode string) *repository.Reimbursement {
	requester := userFixture("emp-1", flow.RoleEmployee)
	current := flow.RoleSUL
	rb := &repository.Reimbursement{
		ID:              id,
		RequesterID:     requester.ID,
		Requester:       requester,
		SapCode:         sapCode,
		Category:        "Travel",
		Items:           "Taxi to client site",
		TotalAmount:     12550,
		ExpenseDate:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Status:          repository.StatusPending,
		CurrentApprover: &current,
		SubmittedAt:     time.Now(),
	}
	chain := flow.ChainFor(flow.RoleEmployee)
	for i, role := range chain {
		rb.Steps = append(rb.Steps, &repository.ApprovalStep{
			ID:              fmt.Sprintf("%s-step-%d", id, i+1),
			ReimbursementID: id,
			ApproverRole:    role,
			Level:           i + 1,
			Status:          repository.StatusPending,
		})
	}
	return rb
}

// approveStepInFixture marks a step approved by the given user, as if that
// level had already been acted on.
func approveStepInFixture(rb *repository.Reimbursement, level int, by *repository.User) {
	now := time.Now()
	for _, step := range rb.Steps {
		if step.Level == level {
			step.Status = repository.StatusApproved
			step.ApproverID = &by.ID
			step.Approver = by
			step.ActedAt = &now
		}
	}
	if level < len(rb.Steps) {
		next := rb.Steps[level].ApproverRole
		rb.CurrentApprover = &next
	} else {
		rb.CurrentApprover = nil
		rb.Status = repository.StatusApproved
	}
}

func newApprovalHarness(rbs ...*repository.Reimbursement) (*ApprovalService, *fakeStore, *fakeLedger, *fakeDirectory, *fakeAudit, *fakeNotifier) {
	store := newFakeStore(rbs...)
	ledger := &fakeLedger{store: store}
	directory := &fakeDirectory{users: map[flow.Role][]*repository.User{}}
	audit := &fakeAudit{}
	notifier := &fakeNotifier{}
	svc := NewApprovalService(store, ledger, directory, audit, notifier, testLogger())
	return svc, store, ledger, directory, audit, notifier
}
