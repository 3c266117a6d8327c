package application

import (
	"context"
	"fmt"

	"github.com/earnforge/payments-core/internal/domain"
)

// ListProviders returns stored providers with derived health attached.
func (s *Service) ListProviders(ctx context.Context, enabledOnly bool) ([]ProviderStatus, error) {
	providers, err := s.providers.List(ctx, enabledOnly)
	if err != nil {
		return nil, err
	}
	now := s.nowFn()
	statuses := make([]ProviderStatus, 0, len(providers))
	for _, p := range providers {
		counters, err := s.health.Counters(ctx, p.ProviderID)
		if err != nil {
			s.logger.WarnContext(ctx, "health counters unavailable",
				"operation", "list_providers",
				"outcome", "degraded",
				"provider_id", p.ProviderID,
				"error", err,
			)
			counters = domain.HealthCounters{}
		}
		statuses = append(statuses, ProviderStatus{
			Provider: p,
			Health:   domain.DeriveProviderHealth(counters, p.LastSyncAt, now, s.cfg.ProviderStaleAfter),
			Counters: counters,
		})
	}
	return statuses, nil
}

// ProviderHealth derives the current health of one provider.
func (s *Service) ProviderHealth(ctx context.Context, providerID string) (ProviderStatus, error) {
	provider, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return ProviderStatus{}, err
	}
	counters, err := s.health.Counters(ctx, providerID)
	if err != nil {
		return ProviderStatus{}, fmt.Errorf("health counters for %s: %w", providerID, err)
	}
	return ProviderStatus{
		Provider: provider,
		Health:   domain.DeriveProviderHealth(counters, provider.LastSyncAt, s.nowFn(), s.cfg.ProviderStaleAfter),
		Counters: counters,
	}, nil
}

// AggregateTasks fans a fetch out to every registered, enabled adapter and
// merges the results. Unhealthy providers are skipped; a single provider
// failing never fails the aggregate, it just contributes nothing and takes
// the health hit. A filters.ProviderID turns the fan-out into a targeted
// fetch, which does report an unhealthy or unknown provider.
func (s *Service) AggregateTasks(ctx context.Context, filters domain.TaskFilters) ([]domain.ProviderTask, error) {
	statuses, err := s.ListProviders(ctx, true)
	if err != nil {
		return nil, err
	}

	var tasks []domain.ProviderTask
	matched := false
	for _, status := range statuses {
		if filters.ProviderID != "" && status.Provider.ProviderID != filters.ProviderID {
			continue
		}
		matched = true
		if status.Health == domain.ProviderHealthUnhealthy {
			// The fan-out tolerates an unhealthy provider; a targeted fetch
			// reports it.
			if filters.ProviderID != "" {
				return nil, fmt.Errorf("%w: %s error rate %.2f", domain.ErrProviderUnhealthy,
					status.Provider.ProviderID, status.Counters.ErrorRate())
			}
			s.logger.InfoContext(ctx, "skipping unhealthy provider",
				"operation", "aggregate_tasks",
				"outcome", "skipped",
				"provider_id", status.Provider.ProviderID,
			)
			continue
		}
		adapter, ok := s.registry.Get(status.Provider.ProviderID)
		if !ok {
			continue
		}

		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderFetchTimeout)
		fetched, fetchErr := adapter.FetchTasks(fetchCtx, filters)
		cancel()
		if fetchErr != nil {
			s.noteProviderFailure(ctx, status.Provider.ProviderID)
			s.logger.WarnContext(ctx, "provider fetch failed",
				"operation", "aggregate_tasks",
				"outcome", "provider_failure",
				"provider_id", status.Provider.ProviderID,
				"error", fetchErr,
			)
			continue
		}

		s.noteProviderSuccess(ctx, status.Provider.ProviderID)
		if err := s.providers.TouchSync(ctx, status.Provider.ProviderID, s.nowFn()); err != nil {
			s.logger.WarnContext(ctx, "sync timestamp update failed",
				"operation", "aggregate_tasks",
				"provider_id", status.Provider.ProviderID,
				"error", err,
			)
		}
		tasks = append(tasks, fetched...)
	}
	if filters.ProviderID != "" && !matched {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, filters.ProviderID)
	}
	return tasks, nil
}

// EvaluateProviderHealth probes every registered adapter, re-derives health
// for every stored provider and emits a change event for each provider whose
// status moved. Intended for the periodic health job.
func (s *Service) EvaluateProviderHealth(ctx context.Context, previous map[string]string) (map[string]string, error) {
	for _, adapter := range s.registry.All() {
		probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderFetchTimeout)
		probeErr := adapter.Health(probeCtx)
		cancel()
		if probeErr != nil {
			s.noteProviderFailure(ctx, adapter.ProviderID())
			s.logger.WarnContext(ctx, "provider probe failed",
				"operation", "evaluate_provider_health",
				"provider_id", adapter.ProviderID(),
				"error", probeErr,
			)
			continue
		}
		s.noteProviderSuccess(ctx, adapter.ProviderID())
	}

	statuses, err := s.ListProviders(ctx, false)
	if err != nil {
		return nil, err
	}
	current := make(map[string]string, len(statuses))
	for _, status := range statuses {
		current[status.Provider.ProviderID] = status.Health
		if prev, ok := previous[status.Provider.ProviderID]; ok && prev != status.Health {
			s.logger.WarnContext(ctx, "provider health changed",
				"operation", "evaluate_provider_health",
				"provider_id", status.Provider.ProviderID,
				"from", prev,
				"to", status.Health,
				"error_rate", status.Counters.ErrorRate(),
			)
			s.enqueueEvent(ctx, domain.EventProviderHealthChanged, status.Provider.ProviderID, map[string]any{
				"provider_id": status.Provider.ProviderID,
				"from":        prev,
				"to":          status.Health,
				"error_rate":  status.Counters.ErrorRate(),
			})
		}
	}
	return current, nil
}

func (s *Service) noteProviderSuccess(ctx context.Context, providerID string) {
	if err := s.health.RecordSuccess(ctx, providerID); err != nil {
		s.logger.WarnContext(ctx, "health window update failed",
			"provider_id", providerID, "error", err)
	}
}

func (s *Service) noteProviderFailure(ctx context.Context, providerID string) {
	if err := s.health.RecordFailure(ctx, providerID); err != nil {
		s.logger.WarnContext(ctx, "health window update failed",
			"provider_id", providerID, "error", err)
	}
}
