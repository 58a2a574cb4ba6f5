package domain

import "time"

// BreakerPhase is the three-state circuit breaker phase. It mirrors
// the state names gobreaker uses (Closed/HalfOpen/Open) so the persisted
// phase and the in-process gobreaker.State stay in lockstep.
type BreakerPhase string

const (
	PhaseClosed   BreakerPhase = "closed"
	PhaseOpen     BreakerPhase = "open"
	PhaseHalfOpen BreakerPhase = "half_open"
)

// GlobalBreakerState is the authoritative, persisted state for the single
// global breaker. TTL auto-heal is applied by internal/breaker's phase
// computation, not here or in the store: a row opened longer ago than the
// hard TTL reads as Closed.
type GlobalBreakerState struct {
	Failures  int
	OpenedAt  *time.Time
	ProbeHeld bool
	UpdatedAt time.Time
}

// ModuleBreakerState is one entry in the per-module breaker state map.
type ModuleBreakerState struct {
	Module    string
	Failures  int
	OpenedAt  *time.Time
	ProbeHeld bool
	UpdatedAt time.Time
}

// BatchOutcome is what a Scheduler iteration reports to a breaker
// after recording a batch outcome of (successes, failures).
type BatchOutcome struct {
	Successes int
	Failures  int
}

// IsFailed implements the "failed iff failures/(successes+failures) >= 0.8"
// rule shared by GlobalBreaker, ModuleBreaker, and FailureNotifier.
func (b BatchOutcome) IsFailed() bool {
	total := b.Successes + b.Failures
	if total == 0 {
		return false
	}
	return float64(b.Failures)/float64(total) >= 0.8
}
