package repository

import (
	"time"

	"github.com/ernit/be-reimbursements/internal/flow"
)

// ── Domain types for the reimbursement approval workflow ─────────────────────

// Status values shared by reimbursements and approval steps. These are wire
// values; the UI renders them verbatim.
const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

// CascadeRemark is the synthetic remark written on steps force-rejected when
// an earlier level rejects.
const CascadeRemark = "Rejected in previous approval level"

// TerminalStatus reports whether a status admits no further transitions.
func TerminalStatus(status string) bool {
	return status == StatusApproved || status == StatusRejected
}

// User is an employee or approver. A user holds at most two SAP code
// assignments; both are nil for roles that are not code-scoped.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      flow.Role
	SapCode1  *string
	SapCode2  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SapCodes returns the user's non-empty code assignments.
func (u *User) SapCodes() []string {
	var codes []string
	if u.SapCode1 != nil && *u.SapCode1 != "" {
		codes = append(codes, *u.SapCode1)
	}
	if u.SapCode2 != nil && *u.SapCode2 != "" {
		codes = append(codes, *u.SapCode2)
	}
	return codes
}

// DirectoryEntry converts the user into the approver directory's view.
func (u *User) DirectoryEntry() flow.User {
	return flow.User{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		SapCodes: u.SapCodes(),
	}
}

// Session is an authenticated session issued by the identity provider
// callback. The service only reads sessions; it never creates them.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SapCode is one entry in the organizational code registry.
type SapCode struct {
	Code        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Reimbursement is one expense-reimbursement request together with its
// approval chain state.
//
// Invariant: CurrentApprover is non-nil exactly while Status is Pending and
// at least one step remains; it is nil once the request is Approved or
// Rejected.
type Reimbursement struct {
	ID              string
	RequesterID     string
	Requester       *User // populated on read-with-joins
	SapCode         string
	Category        string
	Items           string
	Description     *string
	TotalAmount     int64 // cents
	ExpenseDate     time.Time
	Status          string // Pending | Approved | Rejected
	CurrentApprover *flow.Role
	SubmittedAt     time.Time
	ApprovedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Steps           []*ApprovalStep // ordered by level
}

// ApprovalStep is one level in a reimbursement's approval chain.
//
// Invariant: for a given reimbursement at most one step is pending at any
// time, and its ApproverRole equals the reimbursement's CurrentApprover.
// Levels are 1-based and strictly increasing; a step that leaves Pending
// never returns to it.
type ApprovalStep struct {
	ID              string
	ReimbursementID string
	ApproverRole    flow.Role
	Level           int
	Status          string // Pending | Approved | Rejected
	ApproverID      *string
	Approver        *User // populated on read-with-joins
	Remarks         *string
	ActedAt         *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AuditEntry is one immutable record in the per-reimbursement action log.
type AuditEntry struct {
	ID              string
	ReimbursementID string
	StepID          *string
	Action          string // submitted | approved | rejected
	PerformedBy     string
	PerformedAt     time.Time
	StatusBefore    *string
	StatusAfter     *string
	Metadata        map[string]any
}

// ApprovalDecision is the atomic outcome of one approve or reject action.
// ApplyDecision writes the acted-on step, any cascade, and the owning
// reimbursement in a single transaction.
type ApprovalDecision struct {
	ReimbursementID string
	ActingRole      flow.Role
	ActorID         string
	StepStatus      string // Approved | Rejected
	Remarks         *string

	// CascadeFromLevel, when > 0, force-rejects every still-pending step
	// at a level strictly greater than it.
	CascadeFromLevel int

	RequestStatus string     // resulting aggregate status
	NextApprover  *flow.Role // nil when the request is now terminal
	ApprovedAt    *time.Time // stamped on final approval only

	// NextActorHint backfills the next pending step's approver, when the
	// directory resolved one. Best-effort; nil leaves the step unassigned.
	NextActorHint *string
}
