package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter registers payments routes and the middleware stack.
// Centralizing routes here keeps error and logging behavior consistent
// across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	// Provider networks call these with query parameters; both verbs are in
	// the wild.
	r.Get("/api/postback/{provider_id}", handler.handlePostback)
	r.Post("/api/postback/{provider_id}", handler.handlePostback)

	r.Route("/payments/v1", func(r chi.Router) {
		r.Post("/wallets", handler.createWallet)
		r.Get("/wallets/{user_id}", handler.getBalance)
		r.Get("/wallets/{user_id}/transactions", handler.getHistory)
		r.Post("/wallets/credit", handler.credit)
		r.Post("/wallets/debit", handler.debit)

		r.Post("/escrows", handler.fundTask)
		r.Get("/escrows/{task_id}", handler.getEscrow)
		r.Post("/escrows/{task_id}/release", handler.releaseSlot)
		r.Post("/escrows/{task_id}/refund", handler.refundEscrow)

		r.Post("/withdrawals", handler.requestWithdrawal)
		r.Get("/withdrawals/{withdrawal_id}", handler.getWithdrawal)
		r.Get("/users/{user_id}/withdrawals", handler.listWithdrawals)
		r.Post("/withdrawals/{withdrawal_id}/dispatch", handler.dispatchWithdrawal)
		r.Post("/withdrawals/{withdrawal_id}/cancel", handler.cancelWithdrawal)
		r.Post("/withdrawals/{withdrawal_id}/gateway-result", handler.resolveWithdrawal)

		r.Post("/referrals", handler.applyReferral)
		r.Get("/users/{user_id}/referrals", handler.referralStats)

		r.Get("/providers", handler.listProviders)
		r.Get("/providers/{provider_id}/health", handler.providerHealth)
		r.Get("/providers/tasks", handler.aggregateTasks)
	})

	return r
}
