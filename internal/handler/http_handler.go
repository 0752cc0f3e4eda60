package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ernit/be-reimbursements/internal/errors"
	"github.com/ernit/be-reimbursements/internal/logger"
	"github.com/ernit/be-reimbursements/internal/middleware"
	"github.com/ernit/be-reimbursements/internal/service"
)

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	approvals      *service.ApprovalService
	reimbursements *service.ReimbursementService
	log            *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(approvals *service.ApprovalService, reimbursements *service.ReimbursementService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		approvals:      approvals,
		reimbursements: reimbursements,
		log:            log,
	}
}

// Register mounts all routes on the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/reimbursements", h.SubmitReimbursement)
	mux.HandleFunc("GET /api/v1/reimbursements", h.ListReimbursements)
	mux.HandleFunc("GET /api/v1/reimbursements/{id}", h.GetReimbursement)

	mux.HandleFunc("POST /api/v1/approvals/{id}/approve", h.Approve)
	mux.HandleFunc("POST /api/v1/approvals/{id}/reject", h.Reject)
	mux.HandleFunc("GET /api/v1/approvals/pending", h.PendingApprovals)
	mux.HandleFunc("GET /api/v1/approvals/{id}/history", h.ApprovalHistory)

	mux.HandleFunc("GET /api/v1/sap-codes", h.ListSapCodes)
	mux.HandleFunc("GET /api/v1/users", h.ListUsers)
}

// decisionRequest is the body of approve and reject calls.
type decisionRequest struct {
	Remarks string `json:"remarks"`
}

// Approve handles POST /api/v1/approvals/{id}/approve.
func (h *HTTPHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	id := r.PathValue("id")

	// Remarks are optional on approval; an empty or absent body is fine.
	var req decisionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	var remarks *string
	if req.Remarks != "" {
		remarks = &req.Remarks
	}

	result, err := h.approvals.Approve(r.Context(), id, actor, remarks)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	body := map[string]any{
		"ok":            true,
		"reimbursement": reimbursementJSON(result.Reimbursement),
	}
	if result.NextApprover != nil {
		body["nextApprover"] = result.NextApprover.String()
	} else {
		body["nextApprover"] = nil
	}
	h.respond(w, http.StatusOK, body)
}

// Reject handles POST /api/v1/approvals/{id}/reject.
func (h *HTTPHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	id := r.PathValue("id")

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, errors.InvalidInput("body", "invalid request body"))
		return
	}

	rb, err := h.approvals.Reject(r.Context(), id, actor, req.Remarks)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]any{
		"ok":            true,
		"reimbursement": reimbursementJSON(rb),
	})
}

// PendingApprovals handles GET /api/v1/approvals/pending.
func (h *HTTPHandler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())

	steps, err := h.approvals.PendingFor(r.Context(), actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out := make([]any, 0, len(steps))
	for _, s := range steps {
		out = append(out, stepJSON(s))
	}
	h.respond(w, http.StatusOK, map[string]any{"steps": out})
}

// ApprovalHistory handles GET /api/v1/approvals/{id}/history.
func (h *HTTPHandler) ApprovalHistory(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	id := r.PathValue("id")

	entries, err := h.approvals.History(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out := make([]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditJSON(e))
	}
	h.respond(w, http.StatusOK, map[string]any{"history": out})
}

// SubmitReimbursement handles POST /api/v1/reimbursements.
func (h *HTTPHandler) SubmitReimbursement(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())

	var req service.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, errors.InvalidInput("body", "invalid request body"))
		return
	}

	rb, err := h.reimbursements.Submit(r.Context(), actor, &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusCreated, map[string]any{
		"ok":            true,
		"reimbursement": reimbursementJSON(rb),
	})
}

// ListReimbursements handles GET /api/v1/reimbursements.
func (h *HTTPHandler) ListReimbursements(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	mine := r.URL.Query().Get("mine") == "true"

	list, err := h.reimbursements.List(r.Context(), actor, mine)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out := make([]any, 0, len(list))
	for _, rb := range list {
		out = append(out, reimbursementJSON(rb))
	}
	h.respond(w, http.StatusOK, map[string]any{"reimbursements": out})
}

// GetReimbursement handles GET /api/v1/reimbursements/{id}.
func (h *HTTPHandler) GetReimbursement(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	id := r.PathValue("id")

	rb, err := h.reimbursements.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"reimbursement": reimbursementJSON(rb)})
}

// ListSapCodes handles GET /api/v1/sap-codes.
func (h *HTTPHandler) ListSapCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.reimbursements.SapCodes(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out := make([]any, 0, len(codes))
	for _, c := range codes {
		out = append(out, map[string]any{
			"code":        c.Code,
			"description": c.Description,
		})
	}
	h.respond(w, http.StatusOK, map[string]any{"sapCodes": out})
}

// ListUsers handles GET /api/v1/users.
func (h *HTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())

	users, err := h.reimbursements.Users(r.Context(), actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out := make([]any, 0, len(users))
	for _, u := range users {
		entry := userJSON(u)
		entry["sapCodes"] = u.SapCodes()
		out = append(out, entry)
	}
	h.respond(w, http.StatusOK, map[string]any{"users": out})
}

// ── response helpers ──────────────────────────────────────────────────────────

func (h *HTTPHandler) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn().Err(err).Msg("failed to encode response")
	}
}

// respondError writes `{error, ...context}` with the status mapped from the
// error code. Detail keys surface at the top level for UI messaging.
func (h *HTTPHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	body := map[string]any{"error": errors.MessageOf(err)}
	for k, v := range errors.DetailsOf(err) {
		body[k] = v
	}

	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.RequestIDFrom(r.Context())).
			Msg("request failed")
	}
	h.respond(w, status, body)
}
