package domain

import "time"

// Settings is the typed, validated live-tunable configuration.
// Every field is clamped when SettingsRepo reads it (Set stores the raw
// value) — this struct itself just carries the shape.
type Settings struct {
	BatchSize             int
	StaleLeaseTimeoutSec  int
	SchedulerBudgetSec    int
	SchedulerIterationCap int
	MemoryCapPercent      int

	GlobalBreakerFailureThreshold int
	GlobalBreakerRecoverySec      int
	ModuleBreakerFailureThreshold int
	ModuleBreakerRecoverySec      int

	FailureThreshold   int
	FailureCooldownSec int

	RetentionDays int
	LogLevel      string
}

// Clamp enforces sane bounds on every tunable, matching the style of the
// teacher's config validate tags but applied at runtime since Settings rows
// can be edited live without a process restart.
func (s Settings) Clamp() Settings {
	clamp := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}

	s.BatchSize = clamp(s.BatchSize, 1, 500)
	s.StaleLeaseTimeoutSec = clamp(s.StaleLeaseTimeoutSec, 10, 3600)
	s.SchedulerBudgetSec = clamp(s.SchedulerBudgetSec, 1, 55)
	s.SchedulerIterationCap = clamp(s.SchedulerIterationCap, 1, 20)
	s.MemoryCapPercent = clamp(s.MemoryCapPercent, 10, 95)
	s.GlobalBreakerFailureThreshold = clamp(s.GlobalBreakerFailureThreshold, 1, 50)
	s.GlobalBreakerRecoverySec = clamp(s.GlobalBreakerRecoverySec, 30, 3600)
	s.ModuleBreakerFailureThreshold = clamp(s.ModuleBreakerFailureThreshold, 1, 50)
	s.ModuleBreakerRecoverySec = clamp(s.ModuleBreakerRecoverySec, 30, 7200)
	s.FailureThreshold = clamp(s.FailureThreshold, 1, 100)
	s.FailureCooldownSec = clamp(s.FailureCooldownSec, 30, 86400)
	s.RetentionDays = clamp(s.RetentionDays, 1, 365)
	return s
}

// DefaultSettings holds the out-of-the-box operating numbers:
// batch size, 55s/20-iteration scheduler budget, 300s/600s breaker recovery,
// 3/5 breaker failure thresholds, etc.
func DefaultSettings() Settings {
	return Settings{
		BatchSize:             100,
		StaleLeaseTimeoutSec:  300,
		SchedulerBudgetSec:    55,
		SchedulerIterationCap: 20,
		MemoryCapPercent:      80,

		GlobalBreakerFailureThreshold: 3,
		GlobalBreakerRecoverySec:      300,
		ModuleBreakerFailureThreshold: 5,
		ModuleBreakerRecoverySec:      600,

		FailureThreshold:   3,
		FailureCooldownSec: 900,

		RetentionDays: 30,
		LogLevel:      "info",
	}.Clamp()
}

// GlobalBreakerTTL and ModuleBreakerTTL are the hard auto-heal TTLs of the
// global and per-module breakers: one opened longer ago than its TTL reads
// as Closed.
const (
	GlobalBreakerTTL = time.Hour
	ModuleBreakerTTL = 2 * time.Hour
)
