package http

import (
	"net/http"

	"github.com/earnforge/payments-core/internal/application"
	"github.com/earnforge/payments-core/internal/domain"
)

type createWalletRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) createWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_wallet", err)
		return
	}
	userID, err := parseUUIDField(req.UserID, "user_id")
	if err != nil {
		writeValidationError(r.Context(), w, "create_wallet", err)
		return
	}
	wallet, err := h.service.CreateWallet(r.Context(), userID)
	if err != nil {
		respondDomainError(r.Context(), w, "create_wallet", err)
		return
	}
	writeSuccess(w, http.StatusCreated, wallet)
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		writeValidationError(r.Context(), w, "get_balance", err)
		return
	}
	wallet, err := h.service.Balance(r.Context(), userID)
	if err != nil {
		respondDomainError(r.Context(), w, "get_balance", err)
		return
	}
	writeSuccess(w, http.StatusOK, wallet)
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		writeValidationError(r.Context(), w, "get_history", err)
		return
	}
	kind := domain.TransactionKind(r.URL.Query().Get("kind"))
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	items, total, err := h.service.History(r.Context(), userID, kind, page, limit)
	if err != nil {
		respondDomainError(r.Context(), w, "get_history", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

type creditRequest struct {
	UserID      string  `json:"user_id"`
	Amount      float64 `json:"amount"`
	Kind        string  `json:"kind"`
	Reference   string  `json:"reference"`
	Description string  `json:"description"`
}

func (h *Handler) credit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "credit_wallet", err)
		return
	}
	userID, err := parseUUIDField(req.UserID, "user_id")
	if err != nil {
		writeValidationError(r.Context(), w, "credit_wallet", err)
		return
	}
	txn, err := h.service.Credit(r.Context(), application.CreditInput{
		UserID:      userID,
		Amount:      req.Amount,
		Kind:        domain.TransactionKind(req.Kind),
		Reference:   req.Reference,
		Description: req.Description,
	})
	if err != nil {
		respondDomainError(r.Context(), w, "credit_wallet", err)
		return
	}
	writeSuccess(w, http.StatusCreated, txn)
}

func (h *Handler) debit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "debit_wallet", err)
		return
	}
	userID, err := parseUUIDField(req.UserID, "user_id")
	if err != nil {
		writeValidationError(r.Context(), w, "debit_wallet", err)
		return
	}
	txn, err := h.service.Debit(r.Context(), application.DebitInput{
		UserID:      userID,
		Amount:      req.Amount,
		Kind:        domain.TransactionKind(req.Kind),
		Reference:   req.Reference,
		Description: req.Description,
	})
	if err != nil {
		respondDomainError(r.Context(), w, "debit_wallet", err)
		return
	}
	writeSuccess(w, http.StatusCreated, txn)
}
