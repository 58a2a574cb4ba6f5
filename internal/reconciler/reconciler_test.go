package reconciler_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/module"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/reconciler"
)

type fakeMappingStore struct {
	mappings  []domain.Mapping
	cleanedUp []domain.Mapping
	dryRun    bool
}

func (s *fakeMappingStore) GetRemoteID(context.Context, string, string, uint64) (uint64, bool, error) {
	return 0, false, nil
}
func (s *fakeMappingStore) GetLocalID(context.Context, string, string, uint64) (uint64, bool, error) {
	return 0, false, nil
}
func (s *fakeMappingStore) BatchGetRemoteIDs(context.Context, string, string, []uint64) (map[uint64]uint64, error) {
	return nil, nil
}
func (s *fakeMappingStore) Save(context.Context, domain.Mapping) error           { return nil }
func (s *fakeMappingStore) Remove(context.Context, string, string, uint64) error { return nil }
func (s *fakeMappingStore) MarkPolled(context.Context, string, string, uint64, time.Time) error {
	return nil
}
func (s *fakeMappingStore) GetStalePollMappings(context.Context, string, string, time.Time, int) ([]domain.Mapping, error) {
	return nil, nil
}
func (s *fakeMappingStore) GetModuleEntityMappings(_ context.Context, _, _ string) ([]domain.Mapping, error) {
	return s.mappings, nil
}
func (s *fakeMappingStore) CleanupOrphans(_ context.Context, orphans []domain.Mapping, dryRun bool) (domain.OrphanCleanupReport, error) {
	s.cleanedUp = orphans
	s.dryRun = dryRun
	removed := 0
	if !dryRun {
		removed = len(orphans)
	}
	return domain.OrphanCleanupReport{Removed: removed}, nil
}

type fakeRPCClient struct {
	existingIDs map[uint64]bool
}

func (c *fakeRPCClient) Search(_ context.Context, _ string, _ []any) ([]uint64, error) {
	var ids []uint64
	for id, ok := range c.existingIDs {
		if ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
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
func (c *fakeRPCClient) GetCompanyID(context.Context) (uint64, error)                  { return 0, nil }

type fakeModule struct{}

func (fakeModule) ID() string { return "crm" }
func (fakeModule) RemoteModel(entityType string) (string, bool) {
	if entityType == "contact" {
		return "res.partner", true
	}
	return "", false
}
func (fakeModule) LoadLocal(context.Context, string, uint64) (module.Data, error) { return nil, nil }
func (fakeModule) SaveLocal(context.Context, string, module.Data, uint64) (uint64, error) {
	return 0, nil
}
func (fakeModule) DeleteLocal(context.Context, string, uint64) (bool, error) { return true, nil }
func (fakeModule) MapToRemote(context.Context, string, module.Data) (module.Data, error) {
	return nil, nil
}
func (fakeModule) MapFromRemote(context.Context, string, module.Data) (module.Data, error) {
	return nil, nil
}

func resolveFake(id string) (module.Module, bool) {
	if id == "crm" {
		return fakeModule{}, true
	}
	return nil, false
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReconcile_FindsOrphansWithoutRemoving(t *testing.T) {
	store := &fakeMappingStore{
		mappings: []domain.Mapping{
			{Module: "crm", EntityType: "contact", LocalID: 1, RemoteID: 100},
			{Module: "crm", EntityType: "contact", LocalID: 2, RemoteID: 200},
		},
	}
	rpcc := &fakeRPCClient{existingIDs: map[uint64]bool{100: true}}
	r := reconciler.New(store, rpcc, resolveFake, testLogger())

	report, err := r.Reconcile(context.Background(), "crm", "contact", false)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Scanned != 2 {
		t.Fatalf("Scanned = %d, want 2", report.Scanned)
	}
	if len(report.Orphans) != 1 || report.Orphans[0].RemoteID != 200 {
		t.Fatalf("unexpected orphans: %+v", report.Orphans)
	}
	if !store.dryRun {
		t.Fatal("expected dryRun=true when fix=false")
	}
}

func TestReconcile_FixRemovesOrphans(t *testing.T) {
	store := &fakeMappingStore{
		mappings: []domain.Mapping{
			{Module: "crm", EntityType: "contact", LocalID: 1, RemoteID: 100},
			{Module: "crm", EntityType: "contact", LocalID: 2, RemoteID: 200},
		},
	}
	rpcc := &fakeRPCClient{existingIDs: map[uint64]bool{100: true}}
	r := reconciler.New(store, rpcc, resolveFake, testLogger())

	report, err := r.Reconcile(context.Background(), "crm", "contact", true)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Removed != 1 {
		t.Fatalf("Removed = %d, want 1", report.Removed)
	}
	if store.dryRun {
		t.Fatal("expected dryRun=false when fix=true")
	}
}

func TestReconcile_UnknownModuleErrors(t *testing.T) {
	r := reconciler.New(&fakeMappingStore{}, &fakeRPCClient{}, resolveFake, testLogger())
	if _, err := r.Reconcile(context.Background(), "nope", "contact", false); err == nil {
		t.Fatal("expected an error for an unregistered module")
	}
}

func TestReconcile_UnknownEntityTypeErrors(t *testing.T) {
	r := reconciler.New(&fakeMappingStore{}, &fakeRPCClient{}, resolveFake, testLogger())
	if _, err := r.Reconcile(context.Background(), "crm", "not-owned", false); err == nil {
		t.Fatal("expected an error for an entity type the module doesn't own")
	}
}

func TestReconcile_NoMappingsIsANoop(t *testing.T) {
	r := reconciler.New(&fakeMappingStore{}, &fakeRPCClient{}, resolveFake, testLogger())
	report, err := r.Reconcile(context.Background(), "crm", "contact", false)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Scanned != 0 {
		t.Fatalf("Scanned = %d, want 0", report.Scanned)
	}
}
