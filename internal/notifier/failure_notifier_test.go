package notifier_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/rediscache"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/notifier"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSender struct {
	mu    sync.Mutex
	sends int
	to    string
}

func (s *fakeSender) Send(_ context.Context, to, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends++
	s.to = to
	return nil
}

func settingsWithThreshold(threshold int) func() domain.Settings {
	return func() domain.Settings {
		s := domain.DefaultSettings()
		s.FailureThreshold = threshold
		s.FailureCooldownSec = 900
		return s.Clamp()
	}
}

func TestFailureNotifier_SendsOnceThresholdCrossed(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	n := notifier.New(sender, rediscache.NewLocalCache(), settingsWithThreshold(3), "ops@example.com", testLogger())

	failing := domain.BatchOutcome{Successes: 0, Failures: 10}
	for i := 0; i < 2; i++ {
		n.RecordBatch(ctx, "crm", failing)
	}
	if sender.sends != 0 {
		t.Fatalf("expected no alert before threshold crossed, got %d sends", sender.sends)
	}

	n.RecordBatch(ctx, "crm", failing)
	if sender.sends != 1 {
		t.Fatalf("expected exactly one alert once threshold crossed, got %d", sender.sends)
	}
	if sender.to != "ops@example.com" {
		t.Fatalf("alert sent to %q, want ops@example.com", sender.to)
	}
}

func TestFailureNotifier_CooldownSuppressesRepeats(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	n := notifier.New(sender, rediscache.NewLocalCache(), settingsWithThreshold(1), "ops@example.com", testLogger())

	failing := domain.BatchOutcome{Successes: 0, Failures: 10}
	n.RecordBatch(ctx, "crm", failing)
	n.RecordBatch(ctx, "crm", failing)
	n.RecordBatch(ctx, "crm", failing)

	if sender.sends != 1 {
		t.Fatalf("expected cooldown to suppress repeat alerts, got %d sends", sender.sends)
	}
}

func TestFailureNotifier_SuccessResetsCounter(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	n := notifier.New(sender, rediscache.NewLocalCache(), settingsWithThreshold(2), "ops@example.com", testLogger())

	failing := domain.BatchOutcome{Successes: 0, Failures: 10}
	succeeding := domain.BatchOutcome{Successes: 10, Failures: 0}

	n.RecordBatch(ctx, "crm", failing)
	n.RecordBatch(ctx, "crm", succeeding)
	n.RecordBatch(ctx, "crm", failing)

	if sender.sends != 0 {
		t.Fatalf("expected counter reset by the intervening success, got %d sends", sender.sends)
	}
}
