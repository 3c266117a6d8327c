package domain

import (
	"testing"
	"time"
)

func TestHealthCountersErrorRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		counters HealthCounters
		want     float64
	}{
		{"empty window", HealthCounters{}, 0},
		{"all successes", HealthCounters{Successes: 10}, 0},
		{"all failures", HealthCounters{Failures: 4}, 1},
		{"mixed", HealthCounters{Successes: 3, Failures: 1}, 0.25},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.counters.ErrorRate(); got != tt.want {
				t.Fatalf("ErrorRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeriveProviderHealth(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-time.Hour)
	old := now.Add(-48 * time.Hour)
	staleAfter := 24 * time.Hour

	tests := []struct {
		name       string
		counters   HealthCounters
		lastSyncAt *time.Time
		want       string
	}{
		{"never synced", HealthCounters{Successes: 100}, nil, ProviderHealthStale},
		{"synced too long ago", HealthCounters{Successes: 100}, &old, ProviderHealthStale},
		{"clean window", HealthCounters{Successes: 10}, &fresh, ProviderHealthHealthy},
		{"empty window counts healthy", HealthCounters{}, &fresh, ProviderHealthHealthy},
		{"error rate at degraded threshold", HealthCounters{Successes: 8, Failures: 2}, &fresh, ProviderHealthDegraded},
		{"error rate below degraded threshold", HealthCounters{Successes: 81, Failures: 19}, &fresh, ProviderHealthHealthy},
		{"error rate at unhealthy threshold", HealthCounters{Successes: 5, Failures: 5}, &fresh, ProviderHealthUnhealthy},
		{"total failure", HealthCounters{Failures: 7}, &fresh, ProviderHealthUnhealthy},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := DeriveProviderHealth(tt.counters, tt.lastSyncAt, now, staleAfter)
			if got != tt.want {
				t.Fatalf("DeriveProviderHealth() = %s, want %s", got, tt.want)
			}
		})
	}
}
