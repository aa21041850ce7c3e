package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kinlink/internal/family/models"
	"kinlink/internal/family/service"
	id "kinlink/pkg/domain"
	dErrors "kinlink/pkg/domain-errors"
	"kinlink/pkg/platform/httputil"
	"kinlink/pkg/requestcontext"
)

// Service defines the interface for family member operations.
type Service interface {
	AddMember(ctx context.Context, accountID id.AccountID, req models.AddMemberRequest) (service.AddResult, error)
	ListMembers(ctx context.Context, accountID id.AccountID) (map[string]models.MemberSummary, error)
	UpdateMember(ctx context.Context, accountID id.AccountID, memberID id.FamilyMemberID, req models.UpdateMemberRequest) (service.UpdateResult, error)
	RemoveMember(ctx context.Context, accountID id.AccountID, memberID id.FamilyMemberID) (service.RemoveResult, error)
}

// Handler wires family endpoints to the reconciliation service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a family handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts family endpoints on the router. All routes require an
// authenticated account id in the request context.
func (h *Handler) Register(r chi.Router) {
	r.Post("/family", h.HandleAddMember)
	r.Get("/family", h.HandleListMembers)
	r.Put("/family/{memberID}", h.HandleUpdateMember)
	r.Delete("/family/{memberID}", h.HandleRemoveMember)
}

// HandleAddMember handles POST /family requests.
func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	accountID, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[AddMemberRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.AddMember(ctx, accountID, req.ToDomain())
	if err != nil {
		h.logger.ErrorContext(ctx, "add family member failed",
			"request_id", requestID,
			"account_id", accountID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "family member submission applied",
		"request_id", requestID,
		"account_id", accountID,
		"member_id", result.Member.ID,
		"status", result.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	status := http.StatusOK
	if result.Status == service.StatusCreated {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, MutationResponse{
		Status: result.Status,
		Member: FromMember(result.Member),
	})
}

// HandleListMembers handles GET /family requests.
func (h *Handler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}

	family, err := h.service.ListMembers(ctx, accountID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list family members failed",
			"request_id", requestcontext.RequestID(ctx),
			"account_id", accountID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Family: family})
}

// HandleUpdateMember handles PUT /family/{memberID} requests.
func (h *Handler) HandleUpdateMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	accountID, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}
	memberID, err := id.ParseFamilyMemberID(chi.URLParam(r, "memberID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateMemberRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.UpdateMember(ctx, accountID, memberID, req.ToDomain())
	if err != nil {
		h.logger.ErrorContext(ctx, "update family member failed",
			"request_id", requestID,
			"account_id", accountID,
			"member_id", memberID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MutationResponse{
		Status: result.Status,
		Member: FromMember(result.Member),
	})
}

// HandleRemoveMember handles DELETE /family/{memberID} requests.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, ok := h.requireAccount(w, ctx)
	if !ok {
		return
	}
	memberID, err := id.ParseFamilyMemberID(chi.URLParam(r, "memberID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.RemoveMember(ctx, accountID, memberID)
	if err != nil {
		h.logger.ErrorContext(ctx, "remove family member failed",
			"request_id", requestcontext.RequestID(ctx),
			"account_id", accountID,
			"member_id", memberID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	status := "unlinked"
	if result.Deleted {
		status = "deleted"
	}
	httputil.WriteJSON(w, http.StatusOK, RemoveResponse{
		Status:  status,
		Deleted: result.Deleted,
	})
}

func (h *Handler) requireAccount(w http.ResponseWriter, ctx context.Context) (id.AccountID, bool) {
	accountID := requestcontext.AccountID(ctx)
	if accountID == (id.AccountID{}) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.AccountID{}, false
	}
	return accountID, true
}
