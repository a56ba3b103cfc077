// Package handler wires ledger endpoints to the ledger service. It is a thin
// transport layer: request decoding, error translation and logging only.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"paylog/internal/ledger"
	"paylog/pkg/domain"
	dErrors "paylog/pkg/domain-errors"
	"paylog/pkg/platform/httputil"
	"paylog/pkg/platform/sentinel"
	"paylog/pkg/requestcontext"
)

// Service defines the ledger operations the handler exposes.
type Service interface {
	CreateRegistry(ctx context.Context, p ledger.InitParams) (*ledger.Registry, error)
	RequestRelease(ctx context.Context, registryID domain.RegistryID, milestoneID int, workHash domain.Hash32) error
	ConfirmPayment(ctx context.Context, registryID domain.RegistryID, milestoneID int, paidAmount *big.Int, paymentRef domain.Hash32) error
	ViewMilestone(ctx context.Context, registryID domain.RegistryID, milestoneID int) (*ledger.MilestoneView, error)
	GetRegistry(ctx context.Context, registryID domain.RegistryID) (*ledger.Registry, error)
	ListEvents(ctx context.Context, registryID domain.RegistryID) ([]ledger.Record, error)
}

// Handler holds the handler's dependencies.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts ledger endpoints. Mutating routes go through the supplied
// auth middleware; queries are open to any caller.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/registries", h.HandleCreateRegistry)
		r.Post("/registries/{registryID}/milestones/{milestoneID}/request-release", h.HandleRequestRelease)
		r.Post("/registries/{registryID}/milestones/{milestoneID}/confirm-payment", h.HandleConfirmPayment)
	})
	r.Get("/registries/{registryID}", h.HandleGetRegistry)
	r.Get("/registries/{registryID}/milestones/{milestoneID}", h.HandleViewMilestone)
	r.Get("/registries/{registryID}/events", h.HandleListEvents)
}

// HandleCreateRegistry handles POST /registries.
func (h *Handler) HandleCreateRegistry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRegistryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}
	params, err := req.ToParams()
	if err != nil {
		httputil.WriteError(w, toDomainError(err))
		return
	}

	reg, err := h.service.CreateRegistry(ctx, params)
	if err != nil {
		h.logError(ctx, "create registry failed", err)
		httputil.WriteError(w, toDomainError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromRegistry(reg))
}

// HandleRequestRelease handles the oracle's work attestation.
func (h *Handler) HandleRequestRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	registryID, milestoneID, err := pathIDs(r)
	if err != nil {
		httputil.WriteError(w, toDomainError(err))
		return
	}
	var req requestReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}
	workHash, err := domain.ParseHash32(req.WorkHash)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "work_hash must be a 32-byte hex digest"))
		return
	}

	if err := h.service.RequestRelease(ctx, registryID, milestoneID, workHash); err != nil {
		h.logError(ctx, "request release failed", err)
		httputil.WriteError(w, toDomainError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statusResponse{Status: "requested"})
}

// HandleConfirmPayment handles the client's payment attestation.
func (h *Handler) HandleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	registryID, milestoneID, err := pathIDs(r)
	if err != nil {
		httputil.WriteError(w, toDomainError(err))
		return
	}
	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}
	paidAmount, err := req.ParsedAmount()
	if err != nil {
		httputil.WriteError(w, toDomainError(err))
		return
	}
	paymentRef, err := domain.ParseHash32(req.PaymentReference)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "payment_reference must be a 32-byte hex digest"))
		return
	}

	if err := h.service.ConfirmPayment(ctx, registryID, milestoneID, paidAmount, paymentRef); err != nil {
		h.logError(ctx, "confirm payment failed", err)
		httputil.WriteError(w, toDomainError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statusResponse{Status: "released"})
}

// HandleViewMilestone serves the read-only milestone snapshot. An
// out-of-range id yields an empty result, not an error.
func (h *Handler) HandleViewMilestone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	registryID, milestoneID, err := pathIDs(r)
	if err != nil {
		httputil.WriteError(w, toDomainError(err))
		return
	}
	view, err := h.service.ViewMilestone(ctx, registryID, milestoneID)
	if err != nil {
		h.logError(ctx, "view milestone failed", err)
		httputil.WriteError(w, toDomainError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, milestoneResponse{Milestone: view})
}

// HandleGetRegistry serves the whole registry snapshot.
func (h *Handler) HandleGetRegistry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	registryID, err := pathRegistryID(r)
	if err != nil {
		httputil.WriteError(w, toDomainError(err))
		return
	}
	reg, err := h.service.GetRegistry(ctx, registryID)
	if err != nil {
		h.logError(ctx, "get registry failed", err)
		httputil.WriteError(w, toDomainError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromRegistry(reg))
}

// HandleListEvents serves the registry's append-only event trail.
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	registryID, err := pathRegistryID(r)
	if err != nil {
		httputil.WriteError(w, toDomainError(err))
		return
	}
	records, err := h.service.ListEvents(ctx, registryID)
	if err != nil {
		h.logError(ctx, "list events failed", err)
		httputil.WriteError(w, toDomainError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromRecords(records))
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}

// toDomainError translates ledger and store errors into coded errors for the
// HTTP envelope.
func toDomainError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrParse):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed parameters")
	case errors.Is(err, ledger.ErrUnauthorized):
		return dErrors.Wrap(err, dErrors.CodeForbidden, "caller not allowed for this action")
	case errors.Is(err, ledger.ErrInvalidMilestone):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "milestone id out of range")
	case errors.Is(err, ledger.ErrAlreadyRequested):
		return dErrors.Wrap(err, dErrors.CodeConflict, "release already requested")
	case errors.Is(err, ledger.ErrNotRequested):
		return dErrors.Wrap(err, dErrors.CodeConflict, "release not requested")
	case errors.Is(err, ledger.ErrAlreadyReleased):
		return dErrors.Wrap(err, dErrors.CodeConflict, "milestone already released")
	case errors.Is(err, ledger.ErrAmountMismatch):
		return dErrors.Wrap(err, dErrors.CodeUnprocessable, "paid amount does not match milestone amount")
	case errors.Is(err, ledger.ErrInvariantViolation):
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "stored state violates invariant")
	case errors.Is(err, ledger.ErrLog):
		return dErrors.Wrap(err, dErrors.CodeInternal, "event could not be appended")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "registry not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "registry already exists")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}
}
