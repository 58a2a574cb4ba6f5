// Package notifier implements FailureNotifier: a throttled,
// out-of-band alert when a module's failure rate crosses a threshold. The
// cooldown key lives in rediscache so the gate is cluster-aware — two
// worker processes racing the same threshold only send one email.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/email"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/rediscache"
)

// FailureNotifier tracks consecutive-failure counts per module and fires a
// single alert email once both the failure threshold and the cooldown gate
// allow it.
type FailureNotifier struct {
	sender   email.Sender
	cache    rediscache.Cache
	logger   *slog.Logger
	settings func() domain.Settings
	alertTo  string

	mu       sync.Mutex
	failures map[string]int
}

func New(sender email.Sender, cache rediscache.Cache, settingsFn func() domain.Settings, alertTo string, logger *slog.Logger) *FailureNotifier {
	return &FailureNotifier{
		sender:   sender,
		cache:    cache,
		settings: settingsFn,
		alertTo:  alertTo,
		logger:   logger.With("component", "failure_notifier"),
		failures: make(map[string]int),
	}
}

// RecordBatch folds one scheduler iteration's outcome into the
// consecutive-failure counter and, once the threshold is crossed and the
// cooldown has elapsed, sends the alert.
func (n *FailureNotifier) RecordBatch(ctx context.Context, module string, outcome domain.BatchOutcome) {
	n.mu.Lock()
	if outcome.IsFailed() {
		n.failures[module]++
	} else {
		n.failures[module] = 0
	}
	count := n.failures[module]
	n.mu.Unlock()

	settings := n.settings()
	if count < settings.FailureThreshold {
		return
	}

	cooldownKey := fmt.Sprintf("wp4odoo:notifier:cooldown:%s", module)
	// SetNX both claims the cooldown window and gates the send — the
	// instance that wins the race is the only one that emails.
	won, err := n.cache.SetNX(ctx, cooldownKey, "1", time.Duration(settings.FailureCooldownSec)*time.Second)
	if err != nil {
		n.logger.ErrorContext(ctx, "cooldown check failed, sending anyway", "module", module, "error", err)
		won = true
	}
	if !won {
		return
	}

	subject := fmt.Sprintf("wp4odoo sync: module %s failing", module)
	body := fmt.Sprintf("Module %q has failed %d consecutive batches (successes=%d, failures=%d in last batch).",
		module, count, outcome.Successes, outcome.Failures)

	if err := n.sender.Send(ctx, n.alertTo, subject, body); err != nil {
		n.logger.ErrorContext(ctx, "failed to send failure alert", "module", module, "error", err)
	}
}
