package cli_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/breaker"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/cli"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/rediscache"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/moduleregistry"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/reconciler"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
)

type fakeQueueStore struct {
	stats      repository.QueueStats
	jobs       []*domain.Job
	retriedID  int64
	canceledID int64
	cleanedTo  time.Time
}

func (s *fakeQueueStore) Enqueue(context.Context, domain.JobSpec, string) (*domain.Job, bool, error) {
	return nil, false, nil
}
func (s *fakeQueueStore) GetByID(context.Context, int64) (*domain.Job, error) { return nil, nil }
func (s *fakeQueueStore) Claim(context.Context, string, string, int) ([]*domain.Job, error) {
	return nil, nil
}
func (s *fakeQueueStore) Complete(context.Context, int64) error     { return nil }
func (s *fakeQueueStore) Fail(context.Context, int64, string) error { return nil }
func (s *fakeQueueStore) Reschedule(context.Context, int64, string, time.Time) error {
	return nil
}
func (s *fakeQueueStore) RecoverStale(context.Context, time.Time, int) (int, error) { return 0, nil }
func (s *fakeQueueStore) Cancel(_ context.Context, jobID int64) error {
	s.canceledID = jobID
	return nil
}
func (s *fakeQueueStore) RetryFailed(_ context.Context, jobID int64) error {
	s.retriedID = jobID
	return nil
}
func (s *fakeQueueStore) Cleanup(_ context.Context, olderThan time.Time) (int, error) {
	s.cleanedTo = olderThan
	return 3, nil
}
func (s *fakeQueueStore) ListByStatus(context.Context, domain.Status, string, int, int) ([]*domain.Job, error) {
	return s.jobs, nil
}
func (s *fakeQueueStore) Stats(context.Context) (repository.QueueStats, error) { return s.stats, nil }

type fakeMappingStore struct{}

func (fakeMappingStore) GetRemoteID(context.Context, string, string, uint64) (uint64, bool, error) {
	return 0, false, nil
}
func (fakeMappingStore) GetLocalID(context.Context, string, string, uint64) (uint64, bool, error) {
	return 0, false, nil
}
func (fakeMappingStore) BatchGetRemoteIDs(context.Context, string, string, []uint64) (map[uint64]uint64, error) {
	return nil, nil
}
func (fakeMappingStore) Save(context.Context, domain.Mapping) error           { return nil }
func (fakeMappingStore) Remove(context.Context, string, string, uint64) error { return nil }
func (fakeMappingStore) MarkPolled(context.Context, string, string, uint64, time.Time) error {
	return nil
}
func (fakeMappingStore) GetStalePollMappings(context.Context, string, string, time.Time, int) ([]domain.Mapping, error) {
	return nil, nil
}
func (fakeMappingStore) GetModuleEntityMappings(context.Context, string, string) ([]domain.Mapping, error) {
	return nil, nil
}
func (fakeMappingStore) CleanupOrphans(context.Context, []domain.Mapping, bool) (domain.OrphanCleanupReport, error) {
	return domain.OrphanCleanupReport{}, nil
}

type fakeRPCClient struct{ companyID uint64 }

func (c *fakeRPCClient) Search(context.Context, string, []any) ([]uint64, error) { return nil, nil }
func (c *fakeRPCClient) SearchCount(context.Context, string, []any) (int, error) { return 0, nil }
func (c *fakeRPCClient) Read(context.Context, string, []uint64, []string) ([]map[string]any, error) {
	return nil, nil
}
func (c *fakeRPCClient) SearchRead(context.Context, string, []any, []string, int) ([]map[string]any, error) {
	return nil, nil
}
func (c *fakeRPCClient) Create(context.Context, string, map[string]any) (uint64, error) {
	return 0, nil
}
func (c *fakeRPCClient) CreateBatch(context.Context, string, []map[string]any) ([]uint64, error) {
	return nil, nil
}
func (c *fakeRPCClient) Write(context.Context, string, []uint64, map[string]any) error { return nil }
func (c *fakeRPCClient) Unlink(context.Context, string, []uint64) error                { return nil }
func (c *fakeRPCClient) Execute(context.Context, string, string, []any) (any, error)   { return nil, nil }
func (c *fakeRPCClient) GetCompanyID(context.Context) (uint64, error)                  { return c.companyID, nil }

type fakeBreakerStore struct {
	global  domain.GlobalBreakerState
	modules map[string]domain.ModuleBreakerState
}

func newFakeBreakerStore() *fakeBreakerStore {
	return &fakeBreakerStore{modules: make(map[string]domain.ModuleBreakerState)}
}
func (s *fakeBreakerStore) GetGlobal(context.Context) (domain.GlobalBreakerState, error) {
	return s.global, nil
}
func (s *fakeBreakerStore) SaveGlobal(_ context.Context, st domain.GlobalBreakerState) error {
	s.global = st
	return nil
}
func (s *fakeBreakerStore) GetModule(_ context.Context, module string) (domain.ModuleBreakerState, bool, error) {
	st, ok := s.modules[module]
	return st, ok, nil
}
func (s *fakeBreakerStore) SaveModule(_ context.Context, st domain.ModuleBreakerState) error {
	s.modules[st.Module] = st
	return nil
}
func (s *fakeBreakerStore) ListOpenModules(context.Context) ([]domain.ModuleBreakerState, error) {
	return nil, nil
}
func (s *fakeBreakerStore) ResetGlobal(context.Context) error {
	s.global = domain.GlobalBreakerState{}
	return nil
}
func (s *fakeBreakerStore) ResetModule(_ context.Context, module string) error {
	delete(s.modules, module)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCLI(t *testing.T, out io.Writer) (*cli.CLI, *fakeQueueStore) {
	t.Helper()
	queue := &fakeQueueStore{stats: repository.QueueStats{Pending: 2, PerModule: map[string]int{"crm": 2}}}
	settingsFn := func() domain.Settings { return domain.DefaultSettings() }
	store := newFakeBreakerStore()
	cache := rediscache.NewLocalCache()
	registry := moduleregistry.New()

	return &cli.CLI{
		Queue:      queue,
		Mappings:   fakeMappingStore{},
		Registry:   registry,
		Reconciler: reconciler.New(fakeMappingStore{}, &fakeRPCClient{}, registry.Resolve, testLogger()),
		Global:     breaker.NewGlobal(store, cache, settingsFn, testLogger()),
		Module:     breaker.NewModule(store, cache, settingsFn, testLogger()),
		Cache:      cache,
		RPC:        &fakeRPCClient{companyID: 7},
		Out:        out,
	}, queue
}

func TestCLI_Status(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newTestCLI(t, &buf)

	if err := c.Run(context.Background(), []string{"status"}); err != nil {
		t.Fatalf("Run(status): %v", err)
	}
	if !strings.Contains(buf.String(), "pending jobs: 2") {
		t.Fatalf("unexpected status output: %q", buf.String())
	}
}

func TestCLI_Test(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newTestCLI(t, &buf)

	if err := c.Run(context.Background(), []string{"test"}); err != nil {
		t.Fatalf("Run(test): %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "database: ok") || !strings.Contains(out, "odoo rpc: ok") {
		t.Fatalf("unexpected test output: %q", out)
	}
}

func TestCLI_QueueStats(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newTestCLI(t, &buf)

	if err := c.Run(context.Background(), []string{"queue", "stats"}); err != nil {
		t.Fatalf("Run(queue stats): %v", err)
	}
	if !strings.Contains(buf.String(), "crm") {
		t.Fatalf("expected crm row in output: %q", buf.String())
	}
}

func TestCLI_QueueRetryAndCancel(t *testing.T) {
	var buf bytes.Buffer
	c, queue := newTestCLI(t, &buf)

	if err := c.Run(context.Background(), []string{"queue", "retry", "42"}); err != nil {
		t.Fatalf("Run(queue retry): %v", err)
	}
	if queue.retriedID != 42 {
		t.Fatalf("retriedID = %d, want 42", queue.retriedID)
	}

	if err := c.Run(context.Background(), []string{"queue", "cancel", "7"}); err != nil {
		t.Fatalf("Run(queue cancel): %v", err)
	}
	if queue.canceledID != 7 {
		t.Fatalf("canceledID = %d, want 7", queue.canceledID)
	}
}

func TestCLI_QueueRetryInvalidID(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newTestCLI(t, &buf)

	if err := c.Run(context.Background(), []string{"queue", "retry", "notanumber"}); err == nil {
		t.Fatal("expected an error for a non-numeric job id")
	}
}

func TestCLI_QueueCleanup(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newTestCLI(t, &buf)

	if err := c.Run(context.Background(), []string{"queue", "cleanup", "--days=10"}); err != nil {
		t.Fatalf("Run(queue cleanup): %v", err)
	}
	if !strings.Contains(buf.String(), "removed 3 job(s)") {
		t.Fatalf("unexpected cleanup output: %q", buf.String())
	}
}

func TestCLI_SyncDryRun(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newTestCLI(t, &buf)

	if err := c.Run(context.Background(), []string{"sync", "run", "--dry-run"}); err != nil {
		t.Fatalf("Run(sync run --dry-run): %v", err)
	}
	if !strings.Contains(buf.String(), "dry run: 2 pending job(s)") {
		t.Fatalf("unexpected dry-run output: %q", buf.String())
	}
}

func TestCLI_ModuleListEnableDisable(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newTestCLI(t, &buf)

	if err := c.Run(context.Background(), []string{"module", "enable", "crm"}); err != nil {
		t.Fatalf("Run(module enable): %v", err)
	}
	if !strings.Contains(buf.String(), "crm enabled") {
		t.Fatalf("unexpected enable output: %q", buf.String())
	}

	buf.Reset()
	if err := c.Run(context.Background(), []string{"module", "disable", "crm"}); err != nil {
		t.Fatalf("Run(module disable): %v", err)
	}
	if !strings.Contains(buf.String(), "crm disabled") {
		t.Fatalf("unexpected disable output: %q", buf.String())
	}
}

func TestCLI_CacheFlush(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newTestCLI(t, &buf)

	if err := c.Run(context.Background(), []string{"cache", "flush"}); err != nil {
		t.Fatalf("Run(cache flush): %v", err)
	}
	if !strings.Contains(buf.String(), "cache flushed") {
		t.Fatalf("unexpected cache flush output: %q", buf.String())
	}
}

func TestCLI_UnknownCommand(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newTestCLI(t, &buf)

	if err := c.Run(context.Background(), []string{"bogus"}); err == nil {
		t.Fatal("expected an error for an unknown top-level command")
	}
}

func TestCLI_NoArgs(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newTestCLI(t, &buf)

	if err := c.Run(context.Background(), nil); err == nil {
		t.Fatal("expected a usage error when no command is given")
	}
}
