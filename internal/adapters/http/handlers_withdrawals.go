package http

import (
	"net/http"

	"github.com/earnforge/payments-core/internal/application"
	"github.com/earnforge/payments-core/internal/domain"
)

type withdrawalRequest struct {
	UserID         string                `json:"user_id"`
	Amount         float64               `json:"amount"`
	Method         string                `json:"method"`
	AccountDetails domain.AccountDetails `json:"account_details"`
}

func (h *Handler) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "request_withdrawal", err)
		return
	}
	userID, err := parseUUIDField(req.UserID, "user_id")
	if err != nil {
		writeValidationError(r.Context(), w, "request_withdrawal", err)
		return
	}
	withdrawal, err := h.service.RequestWithdrawal(r.Context(), application.WithdrawalRequestInput{
		UserID:         userID,
		Amount:         req.Amount,
		Method:         req.Method,
		AccountDetails: req.AccountDetails,
	})
	if err != nil {
		respondDomainError(r.Context(), w, "request_withdrawal", err)
		return
	}
	writeSuccess(w, http.StatusCreated, withdrawal)
}

func (h *Handler) getWithdrawal(w http.ResponseWriter, r *http.Request) {
	withdrawalID, err := pathUUID(r, "withdrawal_id")
	if err != nil {
		writeValidationError(r.Context(), w, "get_withdrawal", err)
		return
	}
	withdrawal, err := h.service.GetWithdrawal(r.Context(), withdrawalID)
	if err != nil {
		respondDomainError(r.Context(), w, "get_withdrawal", err)
		return
	}
	writeSuccess(w, http.StatusOK, withdrawal)
}

func (h *Handler) listWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		writeValidationError(r.Context(), w, "list_withdrawals", err)
		return
	}
	status := r.URL.Query().Get("status")
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	items, total, err := h.service.ListWithdrawals(r.Context(), userID, status, page, limit)
	if err != nil {
		respondDomainError(r.Context(), w, "list_withdrawals", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (h *Handler) dispatchWithdrawal(w http.ResponseWriter, r *http.Request) {
	withdrawalID, err := pathUUID(r, "withdrawal_id")
	if err != nil {
		writeValidationError(r.Context(), w, "dispatch_withdrawal", err)
		return
	}
	withdrawal, err := h.service.DispatchWithdrawal(r.Context(), withdrawalID)
	if err != nil {
		respondDomainError(r.Context(), w, "dispatch_withdrawal", err)
		return
	}
	writeSuccess(w, http.StatusOK, withdrawal)
}

type cancelWithdrawalRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) cancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	withdrawalID, err := pathUUID(r, "withdrawal_id")
	if err != nil {
		writeValidationError(r.Context(), w, "cancel_withdrawal", err)
		return
	}
	var req cancelWithdrawalRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "cancel_withdrawal", err)
		return
	}
	userID, err := parseUUIDField(req.UserID, "user_id")
	if err != nil {
		writeValidationError(r.Context(), w, "cancel_withdrawal", err)
		return
	}
	withdrawal, err := h.service.CancelWithdrawal(r.Context(), withdrawalID, userID)
	if err != nil {
		respondDomainError(r.Context(), w, "cancel_withdrawal", err)
		return
	}
	writeSuccess(w, http.StatusOK, withdrawal)
}

type gatewayCallbackRequest struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
	Message   string `json:"message"`
}

func (h *Handler) resolveWithdrawal(w http.ResponseWriter, r *http.Request) {
	withdrawalID, err := pathUUID(r, "withdrawal_id")
	if err != nil {
		writeValidationError(r.Context(), w, "resolve_withdrawal", err)
		return
	}
	var req gatewayCallbackRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "resolve_withdrawal", err)
		return
	}
	withdrawal, err := h.service.ResolveGatewayResult(r.Context(), withdrawalID, domain.GatewayResult{
		Success:   req.Success,
		Reference: req.Reference,
		Message:   req.Message,
	})
	if err != nil {
		respondDomainError(r.Context(), w, "resolve_withdrawal", err)
		return
	}
	writeSuccess(w, http.StatusOK, withdrawal)
}
