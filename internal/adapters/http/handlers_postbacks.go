package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handlePostback terminates provider completion callbacks. Networks expect a
// bare "1" body for accepted deliveries and "0" otherwise and keep retrying
// until they see "1", so duplicates answer "1" without crediting again.
func (h *Handler) handlePostback(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider_id")

	values := r.URL.Query()
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err == nil {
			values = r.Form
		}
	}

	result, err := h.service.ProcessPostback(r.Context(), providerID, values)
	w.Header().Set("Content-Type", "text/plain")
	if err != nil || !result.Accepted {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "process_postback", status, code, msg, err)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("0"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("1"))
}
