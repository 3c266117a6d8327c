package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/earnforge/payments-core/internal/domain"
)

func (h *Handler) listProviders(w http.ResponseWriter, r *http.Request) {
	enabledOnly := r.URL.Query().Get("enabled") != "false"
	providers, err := h.service.ListProviders(r.Context(), enabledOnly)
	if err != nil {
		respondDomainError(r.Context(), w, "list_providers", err)
		return
	}
	out := make([]map[string]any, 0, len(providers))
	for _, p := range providers {
		out = append(out, map[string]any{
			"provider_id":       p.Provider.ProviderID,
			"name":              p.Provider.Name,
			"category":          p.Provider.Category,
			"enabled":           p.Provider.Enabled,
			"health":            p.Health,
			"error_rate":        p.Counters.ErrorRate(),
			"total_completions": p.Provider.TotalCompletions,
			"total_revenue":     p.Provider.TotalRevenue,
			"last_sync_at":      p.Provider.LastSyncAt,
		})
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) providerHealth(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider_id")
	status, err := h.service.ProviderHealth(r.Context(), providerID)
	if err != nil {
		respondDomainError(r.Context(), w, "provider_health", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"provider_id": status.Provider.ProviderID,
		"health":      status.Health,
		"error_rate":  status.Counters.ErrorRate(),
		"successes":   status.Counters.Successes,
		"failures":    status.Counters.Failures,
	})
}

func (h *Handler) aggregateTasks(w http.ResponseWriter, r *http.Request) {
	filters := domain.TaskFilters{
		ProviderID: r.URL.Query().Get("provider"),
		Category:   r.URL.Query().Get("category"),
		Limit:      queryInt(r, "limit", 0),
	}
	if raw := r.URL.Query().Get("min_reward"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filters.MinReward = v
		}
	}
	tasks, err := h.service.AggregateTasks(r.Context(), filters)
	if err != nil {
		respondDomainError(r.Context(), w, "aggregate_tasks", err)
		return
	}
	writeSuccess(w, http.StatusOK, tasks)
}
