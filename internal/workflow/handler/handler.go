// Package handler exposes the workflow engine to the admin and applicant
// surfaces: submission, transitions, history, payments, certificates, and
// the on-demand reminder sweep.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"certflow/internal/ledger"
	"certflow/internal/platform/middleware"
	"certflow/internal/reminder"
	"certflow/internal/workflow"
	id "certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
)

// Handler handles workflow endpoints.
type Handler struct {
	logger       *slog.Logger
	engine       *workflow.Engine
	scheduler    *reminder.Scheduler
	jwtValidator middleware.JWTValidator
}

func New(engine *workflow.Engine, scheduler *reminder.Scheduler, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		engine:       engine,
		scheduler:    scheduler,
		jwtValidator: jwtValidator,
	}
}

// Register registers the workflow routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	router.Post("/requests", h.handleSubmitRequest)
	router.Post("/requests/{requestID}/transition", h.handleRequestTransition)
	router.Post("/requests/{requestID}/reject-evaluation", h.handleRejectEvaluation)
	router.Get("/requests/{requestID}/history", h.handleHistory)
	router.Post("/requests/{requestID}/payments", h.handleSubmitPayment)
	router.Post("/requests/{requestID}/certificate", h.handleIssueCertificate)
	router.Post("/payments/{paymentID}/transition", h.handlePaymentTransition)
	router.Post("/certificates/{certificateID}/transition", h.handleCertificateTransition)
	router.Post("/reminders/sweep", h.handleSweep)

	r.Mount("/", router)
}

type submitRequestBody struct {
	ApplicantName    string `json:"applicant_name"`
	ApplicantAddress string `json:"applicant_address"`
	ProjectName      string `json:"project_name"`
	ProjectLocation  string `json:"project_location"`
	ProjectPurpose   string `json:"project_purpose"`
}

type requestResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submitted_at"`
}

func (h *Handler) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body submitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	actor := h.actor(r)
	in := workflow.SubmitRequestInput{
		ApplicantName:    body.ApplicantName,
		ApplicantAddress: body.ApplicantAddress,
		ProjectName:      body.ProjectName,
		ProjectLocation:  body.ProjectLocation,
		ProjectPurpose:   body.ProjectPurpose,
		OwnerID:          actor,
	}
	req, err := h.engine.SubmitRequest(ctx, in)
	if err != nil {
		h.logError(r, "submit request failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, requestResponse{
		ID:          req.ID.String(),
		Status:      string(req.Status),
		SubmittedAt: req.SubmittedAt.Format(time.RFC3339),
	})
}

type transitionBody struct {
	Event string `json:"event"`
	Notes string `json:"notes"`
}

type transitionResponse struct {
	NewState string `json:"new_state"`
}

func (h *Handler) handleRequestTransition(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, workflow.KindRequest, chi.URLParam(r, "requestID"))
}

func (h *Handler) handlePaymentTransition(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, workflow.KindPayment, chi.URLParam(r, "paymentID"))
}

func (h *Handler) handleCertificateTransition(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, workflow.KindCertificate, chi.URLParam(r, "certificateID"))
}

func (h *Handler) handleRejectEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request id"))
		return
	}

	var body transitionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	newState, err := h.engine.Transition(ctx, workflow.KindReport, entityID, workflow.EventReject, h.actor(r), body.Notes)
	if err != nil {
		h.logError(r, "reject evaluation failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{NewState: newState})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, kind workflow.EntityKind, rawID string) {
	ctx := r.Context()

	entityID, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid entity id"))
		return
	}

	var body transitionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if body.Event == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "event is required"))
		return
	}

	newState, err := h.engine.Transition(ctx, kind, entityID, workflow.Event(body.Event), h.actor(r), body.Notes)
	if err != nil {
		h.logError(r, "transition failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{NewState: newState})
}

type historyEntry struct {
	ID         string  `json:"id"`
	StatusType string  `json:"status_type"`
	OldStatus  *string `json:"old_status"`
	NewStatus  string  `json:"new_status"`
	ChangedBy  *string `json:"changed_by"`
	Notes      string  `json:"notes,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request id"))
		return
	}

	entries, err := h.engine.ListHistory(ctx, requestID)
	if err != nil {
		h.logError(r, "list history failed", err)
		writeError(w, err)
		return
	}

	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, toHistoryEntry(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func toHistoryEntry(e ledger.Entry) historyEntry {
	entry := historyEntry{
		ID:         e.ID.String(),
		StatusType: string(e.Type),
		OldStatus:  e.OldStatus,
		NewStatus:  e.NewStatus,
		Notes:      e.Notes,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339Nano),
	}
	if e.ChangedBy != nil {
		s := e.ChangedBy.String()
		entry.ChangedBy = &s
	}
	return entry
}

type submitPaymentBody struct {
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
	ReceiptRef  string `json:"receipt_ref"`
}

type paymentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *Handler) handleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request id"))
		return
	}

	var body submitPaymentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	p, err := h.engine.SubmitPayment(ctx, requestID, workflow.SubmitPaymentInput{
		AmountCents: body.AmountCents,
		Method:      body.Method,
		ReceiptRef:  body.ReceiptRef,
	}, h.actor(r))
	if err != nil {
		h.logError(r, "submit payment failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, paymentResponse{
		ID:     p.ID.String(),
		Status: string(p.Status),
	})
}

func (h *Handler) handleIssueCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request id"))
		return
	}

	var body transitionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	newState, err := h.engine.Transition(ctx, workflow.KindCertificate, entityID, workflow.EventCreate, h.actor(r), body.Notes)
	if err != nil {
		h.logError(r, "issue certificate failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, transitionResponse{NewState: newState})
}

type sweepResponse struct {
	Processed int `json:"processed"`
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	processed, err := h.scheduler.Sweep(ctx, time.Now())
	if err != nil {
		h.logError(r, "sweep failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Processed: processed})
}

// actor resolves the acting user from the validated token; nil when the
// claim is absent or malformed, which the engine records as system-initiated.
func (h *Handler) actor(r *http.Request) *id.UserID {
	raw := middleware.GetUserID(r.Context())
	if raw == "" {
		return nil
	}
	userID, err := id.ParseUserID(raw)
	if err != nil {
		return nil
	}
	return &userID
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
}
