// Package handler wires the settlement engine to its HTTP surface.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"inspekta/internal/booking/models"
	"inspekta/internal/creditpass"
	"inspekta/internal/ledger"
	"inspekta/internal/platform/middleware"
	"inspekta/pkg/domain"
	dErrors "inspekta/pkg/domain-errors"
	"inspekta/pkg/platform/httputil"
	"inspekta/pkg/requestcontext"
)

// Service defines the engine operations the HTTP layer exposes.
type Service interface {
	CreateBooking(ctx context.Context, client domain.ClientRef, agent domain.AgentRef, property domain.PropertyRef, inspectionAt time.Time) (*models.Booking, error)
	VerifyCode(ctx context.Context, rawCode string) (*models.Booking, error)
	CancelBooking(ctx context.Context, id domain.BookingID, by models.CancelActor) error
	Balances(ctx context.Context, agent domain.AgentRef) (ledger.Balances, error)
	PassStatus(ctx context.Context, client domain.ClientRef) (remaining int, expiresAt time.Time, err error)
	IssuePass(ctx context.Context, client domain.ClientRef, totalCredits int, validity time.Duration) (*creditpass.CreditPass, error)
	Promote(ctx context.Context, agent domain.AgentRef, amount domain.Money) error
}

// Handler handles booking and settlement endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
	clock        func() time.Time

	// Platform defaults applied when an issue-pass request leaves the
	// fields unset.
	defaultPassCredits  int
	defaultPassValidity time.Duration
}

// New creates the settlement Handler.
func New(
	service Service,
	logger *slog.Logger,
	jwtValidator middleware.JWTValidator,
	defaultPassCredits int,
	defaultPassValidity time.Duration,
) *Handler {
	return &Handler{
		service:             service,
		logger:              logger,
		jwtValidator:        jwtValidator,
		clock:               time.Now,
		defaultPassCredits:  defaultPassCredits,
		defaultPassValidity: defaultPassValidity,
	}
}

// Register mounts the settlement routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	router.Post("/bookings", h.handleCreateBooking)
	router.Post("/bookings/{id}/cancel", h.handleCancelBooking)
	router.Post("/codes/verify", h.handleVerifyCode)
	router.Get("/agents/{ref}/ledger", h.handleLedger)
	router.Post("/agents/{ref}/promote", h.handlePromote)
	router.Get("/clients/{ref}/pass", h.handlePassStatus)
	router.Post("/clients/{ref}/pass", h.handleIssuePass)

	r.Mount("/", router)
}

func (h *Handler) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateBookingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	b, err := h.service.CreateBooking(ctx,
		domain.ClientRef(req.ClientRef),
		domain.AgentRef(req.AgentRef),
		domain.PropertyRef(req.PropertyRef),
		req.InspectionAt,
	)
	if err != nil {
		h.logError(ctx, "failed to create booking", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromBooking(b, h.clock()))
}

func (h *Handler) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyCodeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	b, err := h.service.VerifyCode(ctx, req.Code)
	if err != nil {
		h.logError(ctx, "failed to verify code", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromBooking(b, h.clock()))
}

func (h *Handler) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, err := domain.ParseBookingID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CancelBookingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.CancelBooking(ctx, id, req.Actor()); err != nil {
		h.logError(ctx, "failed to cancel booking", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agent := domain.AgentRef(chi.URLParam(r, "ref"))

	balances, err := h.service.Balances(ctx, agent)
	if err != nil {
		h.logError(ctx, "failed to load ledger", middleware.GetRequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromBalances(balances))
}

func (h *Handler) handlePromote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	// Promotion is the audit collaborator's verb, not an agent self-service
	// endpoint.
	if requestcontext.CallerRole(ctx) != requestcontext.RoleAdmin {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "promotion requires the audit role"))
		return
	}

	agent := domain.AgentRef(chi.URLParam(r, "ref"))
	req, ok := httputil.DecodeAndPrepare[PromoteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.Promote(ctx, agent, req.Money()); err != nil {
		h.logError(ctx, "failed to promote funds", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePassStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	client := domain.ClientRef(chi.URLParam(r, "ref"))

	remaining, expiresAt, err := h.service.PassStatus(ctx, client)
	if err != nil {
		h.logError(ctx, "failed to load pass status", middleware.GetRequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &PassStatusResponse{
		Remaining: remaining,
		ExpiresAt: expiresAt,
	})
}

func (h *Handler) handleIssuePass(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	client := domain.ClientRef(chi.URLParam(r, "ref"))
	req, ok := httputil.DecodeAndPrepare[IssuePassRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	credits := req.TotalCredits
	if credits == 0 {
		credits = h.defaultPassCredits
	}
	validity := req.Validity()
	if validity == 0 {
		validity = h.defaultPassValidity
	}

	pass, err := h.service.IssuePass(ctx, client, credits, validity)
	if err != nil {
		h.logError(ctx, "failed to issue pass", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, &PassStatusResponse{
		Remaining: pass.Remaining,
		ExpiresAt: pass.ExpiresAt,
	})
}

func (h *Handler) logError(ctx context.Context, msg, requestID string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err.Error())
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err.Error())
}
