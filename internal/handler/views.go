package handler

import (
	"time"

	"github.com/ernit/be-reimbursements/internal/repository"
)

// JSON view shaping. Repository types stay tag-free; the wire format the UI
// consumes is built here.

func reimbursementJSON(rb *repository.Reimbursement) map[string]any {
	out := map[string]any{
		"id":              rb.ID,
		"sapCode":         rb.SapCode,
		"category":        rb.Category,
		"items":           rb.Items,
		"description":     rb.Description,
		"totalAmount":     rb.TotalAmount,
		"expenseDate":     rb.ExpenseDate.Format("2006-01-02"),
		"status":          rb.Status,
		"currentApprover": nil,
		"submittedAt":     rb.SubmittedAt.Format(time.RFC3339),
		"approvedAt":      nil,
	}
	if rb.CurrentApprover != nil {
		out["currentApprover"] = rb.CurrentApprover.String()
	}
	if rb.ApprovedAt != nil {
		out["approvedAt"] = rb.ApprovedAt.Format(time.RFC3339)
	}
	if rb.Requester != nil {
		out["requester"] = userJSON(rb.Requester)
	}
	if rb.Steps != nil {
		steps := make([]any, 0, len(rb.Steps))
		for _, s := range rb.Steps {
			steps = append(steps, stepJSON(s))
		}
		out["approvals"] = steps
	}
	return out
}

func stepJSON(s *repository.ApprovalStep) map[string]any {
	out := map[string]any{
		"id":              s.ID,
		"reimbursementId": s.ReimbursementID,
		"approverRole":    s.ApproverRole.String(),
		"level":           s.Level,
		"status":          s.Status,
		"remarks":         s.Remarks,
		"actedAt":         nil,
	}
	if s.ActedAt != nil {
		out["actedAt"] = s.ActedAt.Format(time.RFC3339)
	}
	if s.Approver != nil {
		out["approver"] = userJSON(s.Approver)
	}
	return out
}

func userJSON(u *repository.User) map[string]any {
	return map[string]any{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role.String(),
	}
}

func auditJSON(e *repository.AuditEntry) map[string]any {
	return map[string]any{
		"id":           e.ID,
		"action":       e.Action,
		"performedBy":  e.PerformedBy,
		"performedAt":  e.PerformedAt.Format(time.RFC3339),
		"statusBefore": e.StatusBefore,
		"statusAfter":  e.StatusAfter,
		"metadata":     e.Metadata,
	}
}
