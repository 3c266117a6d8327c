package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/earnforge/payments-core/internal/application"
	"github.com/earnforge/payments-core/internal/domain"
)

// Handler is the HTTP adapter entrypoint for the payments core.
// Keeping only the application dependency here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
	ready   func(ctx context.Context) error
}

// NewHandler constructs an HTTP handler bound to the application service.
// The ready probe reports downstream dependency state for readyz.
func NewHandler(service *application.Service, ready func(ctx context.Context) error) *Handler {
	return &Handler{service: service, ready: ready}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
			return
		}
	}
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
}

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

func parseUUIDField(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func respondDomainError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg := mapDomainError(err)
	logHTTPOperationError(ctx, operation, status, code, msg, err)
	writeError(w, status, code, msg)
}

func writeValidationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	code := "VALIDATION_ERROR"
	msg := err.Error()
	logHTTPOperationError(ctx, operation, http.StatusBadRequest, code, msg, err)
	writeError(w, http.StatusBadRequest, code, msg)
}

func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "insufficient available balance"
	case errors.Is(err, domain.ErrWithdrawalBelowMinimum):
		return http.StatusUnprocessableEntity, "BELOW_MINIMUM", err.Error()
	case errors.Is(err, domain.ErrWithdrawalNotCancellable):
		return http.StatusConflict, "NOT_CANCELLABLE", err.Error()
	case errors.Is(err, domain.ErrEscrowNotHeld):
		return http.StatusConflict, "ESCROW_NOT_HELD", err.Error()
	case errors.Is(err, domain.ErrEscrowExhausted):
		return http.StatusConflict, "ESCROW_EXHAUSTED", "all escrow slots released"
	case errors.Is(err, domain.ErrSelfReferral):
		return http.StatusBadRequest, "SELF_REFERRAL", err.Error()
	case errors.Is(err, domain.ErrAlreadyReferred):
		return http.StatusConflict, "ALREADY_REFERRED", err.Error()
	case errors.Is(err, domain.ErrInvalidPostbackSignature):
		return http.StatusUnauthorized, "INVALID_SIGNATURE", "postback signature mismatch"
	case errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusNotFound, "UNKNOWN_PROVIDER", "provider not registered"
	case errors.Is(err, domain.ErrProviderUnhealthy):
		return http.StatusServiceUnavailable, "PROVIDER_UNHEALTHY", err.Error()
	case errors.Is(err, domain.ErrGatewayTimeout), errors.Is(err, domain.ErrGatewayRejected):
		return http.StatusBadGateway, "GATEWAY_ERROR", err.Error()
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}
