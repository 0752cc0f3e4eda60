package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ernit/be-reimbursements/internal/flow"
	"github.com/ernit/be-reimbursements/internal/repository"
)

// Notifier fans out workflow notifications: templated emails via the
// dispatcher and workflow events via NATS. Every method is fire-and-forget.
type Notifier struct {
	dispatcher *Dispatcher
	events     *EventPublisher // may be nil
	log        zerolog.Logger
}

// NewNotifier creates a notifier. events may be nil to disable event
// publishing.
func NewNotifier(dispatcher *Dispatcher, events *EventPublisher, log zerolog.Logger) *Notifier {
	return &Notifier{dispatcher: dispatcher, events: events, log: log}
}

// Submitted notifies the requester that submission succeeded and alerts the
// level-1 approver, when the directory resolved one.
func (n *Notifier) Submitted(ctx context.Context, rb *repository.Reimbursement, firstApprover *flow.User) {
	view := viewOf(rb)

	firstRole := ""
	if rb.CurrentApprover != nil {
		firstRole = rb.CurrentApprover.String()
	}
	html, err := render("submitted", submittedData{
		RequesterName: rb.Requester.Name,
		FirstRole:     firstRole,
		Request:       view,
	})
	if err != nil {
		n.log.Warn().Err(err).Msg("failed to render submission confirmation")
	} else {
		n.dispatcher.Enqueue(&Email{
			To:      rb.Requester.Email,
			Subject: fmt.Sprintf("Reimbursement Submitted - %s", rb.SapCode),
			HTML:    html,
		})
	}

	recipients := []string{rb.Requester.Email}
	if firstApprover != nil {
		recipients = append(recipients, firstApprover.Email)

		html, err := render("next_approver", nextApproverData{
			ApproverName:  firstApprover.Name,
			RequesterName: rb.Requester.Name,
			RequesterRole: rb.Requester.Role.String(),
			PrevName:      rb.Requester.Name,
			PrevRole:      rb.Requester.Role.String(),
			Level:         1,
			Request:       view,
		})
		if err != nil {
			n.log.Warn().Err(err).Msg("failed to render submission notification")
		} else {
			n.dispatcher.Enqueue(&Email{
				To:      firstApprover.Email,
				Subject: "Reimbursement Ready for Your Approval - Level 1",
				HTML:    html,
			})
		}
	}

	n.publish(ctx, "submitted", rb, rb.RequesterID, recipients, nil)
}

// Progressed notifies the requester that one level approved and alerts the
// next approver, when the directory resolved one.
func (n *Notifier) Progressed(ctx context.Context, rb *repository.Reimbursement, approver *repository.User, level int, nextRole flow.Role, nextApprover *flow.User) {
	view := viewOf(rb)

	html, err := render("progress", progressData{
		RequesterName: rb.Requester.Name,
		ApproverName:  approver.Name,
		ApproverRole:  approver.Role.String(),
		NextRole:      nextRole.String(),
		Level:         level,
		Request:       view,
	})
	if err != nil {
		n.log.Warn().Err(err).Msg("failed to render progress notification")
	} else {
		n.dispatcher.Enqueue(&Email{
			To:      rb.Requester.Email,
			Subject: fmt.Sprintf("Reimbursement Approved - Level %d (%s)", level, approver.Role),
			HTML:    html,
		})
	}

	recipients := []string{rb.Requester.Email}
	if nextApprover != nil {
		recipients = append(recipients, nextApprover.Email)

		html, err := render("next_approver", nextApproverData{
			ApproverName:  nextApprover.Name,
			RequesterName: rb.Requester.Name,
			RequesterRole: rb.Requester.Role.String(),
			PrevName:      approver.Name,
			PrevRole:      approver.Role.String(),
			Level:         level + 1,
			Request:       view,
		})
		if err != nil {
			n.log.Warn().Err(err).Msg("failed to render next approver notification")
		} else {
			n.dispatcher.Enqueue(&Email{
				To:      nextApprover.Email,
				Subject: fmt.Sprintf("Reimbursement Ready for Your Approval - Level %d", level+1),
				HTML:    html,
			})
		}
	}

	n.publish(ctx, "approval_required", rb, approver.ID, recipients, map[string]any{
		"level":     level,
		"next_role": nextRole.String(),
	})
}

// FinallyApproved notifies the requester of the final approval.
func (n *Notifier) FinallyApproved(ctx context.Context, rb *repository.Reimbursement, approver *repository.User) {
	html, err := render("final", finalData{
		RequesterName: rb.Requester.Name,
		ApproverName:  approver.Name,
		ApproverRole:  approver.Role.String(),
		Request:       viewOf(rb),
	})
	if err != nil {
		n.log.Warn().Err(err).Msg("failed to render final approval notification")
	} else {
		n.dispatcher.Enqueue(&Email{
			To:      rb.Requester.Email,
			Subject: fmt.Sprintf("Reimbursement Fully Approved - %s", rb.SapCode),
			HTML:    html,
		})
	}

	n.publish(ctx, "approved", rb, approver.ID, []string{rb.Requester.Email}, nil)
}

// Rejected notifies the requester of a rejection, copying the approvers who
// personally signed off at earlier levels. An empty cc omits the CC header.
func (n *Notifier) Rejected(ctx context.Context, rb *repository.Reimbursement, approver *repository.User, remarks string, level int, cc []string) {
	html, err := render("rejection", rejectionData{
		RequesterName: rb.Requester.Name,
		ApproverName:  approver.Name,
		ApproverRole:  approver.Role.String(),
		Remarks:       remarks,
		Level:         level,
		Request:       viewOf(rb),
	})
	if err != nil {
		n.log.Warn().Err(err).Msg("failed to render rejection notification")
	} else {
		n.dispatcher.Enqueue(&Email{
			To:      rb.Requester.Email,
			Cc:      cc,
			Subject: fmt.Sprintf("Reimbursement Rejected - %s", rb.SapCode),
			HTML:    html,
		})
	}

	recipients := append([]string{rb.Requester.Email}, cc...)
	n.publish(ctx, "rejected", rb, approver.ID, recipients, map[string]any{
		"level":   level,
		"remarks": remarks,
	})
}

func (n *Notifier) publish(ctx context.Context, eventType string, rb *repository.Reimbursement, actorID string, recipients []string, payload map[string]any) {
	if n.events == nil {
		return
	}
	n.events.Publish(ctx, eventType, rb.ID, actorID, recipients, payload)
}

func viewOf(rb *repository.Reimbursement) requestView {
	desc := ""
	if rb.Description != nil {
		desc = *rb.Description
	}
	return requestView{
		SapCode:     rb.SapCode,
		Category:    rb.Category,
		Items:       rb.Items,
		Description: desc,
		Total:       formatAmount(rb.TotalAmount),
		ExpenseDate: formatDate(rb.ExpenseDate),
	}
}
