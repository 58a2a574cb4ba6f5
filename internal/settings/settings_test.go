package settings_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/settings"
)

type fakeSettingsRepo struct {
	mu       sync.Mutex
	current  domain.Settings
	setCalls []string
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{current: domain.DefaultSettings()}
}

func (r *fakeSettingsRepo) Get(context.Context) (domain.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, nil
}

func (r *fakeSettingsRepo) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setCalls = append(r.setCalls, key+"="+value)
	if key == "BatchSize" {
		r.current.BatchSize = 250
	}
	return nil
}

func (r *fakeSettingsRepo) BatchSize(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.BatchSize, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_LoadsInitialSettingsSynchronously(t *testing.T) {
	repo := newFakeSettingsRepo()
	a, err := settings.New(context.Background(), repo, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Get().BatchSize != domain.DefaultSettings().BatchSize {
		t.Fatalf("Get() = %+v, want default settings loaded", a.Get())
	}
}

func TestAccessor_SetWritesThroughAndRefreshesCache(t *testing.T) {
	repo := newFakeSettingsRepo()
	a, err := settings.New(context.Background(), repo, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := a.Set(context.Background(), "BatchSize", "250"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := a.Get().BatchSize; got != 250 {
		t.Fatalf("Get().BatchSize = %d, want 250 after Set", got)
	}
}

func TestAccessor_RefreshNoopWhenNotStale(t *testing.T) {
	repo := newFakeSettingsRepo()
	a, err := settings.New(context.Background(), repo, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Mutate the repo directly without going through Set; a fresh Accessor
	// should not re-read until the refresh interval elapses.
	repo.mu.Lock()
	repo.current.BatchSize = 42
	repo.mu.Unlock()

	a.Refresh(context.Background())
	if got := a.Get().BatchSize; got == 42 {
		t.Fatalf("expected Refresh to be a no-op immediately after New, got BatchSize=%d", got)
	}
}
