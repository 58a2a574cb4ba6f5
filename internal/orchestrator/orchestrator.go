// Package orchestrator is the per-job driver: it resolves a
// job's module and entity type, maps local<->remote data, talks to the RPC
// transport, and maintains the mapping/identity invariants under
// concurrency (dedup-before-create, hash guard, import-guard).
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/postgres"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/module"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/rpc"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Resolver is the injected (moduleID) -> (Module, found) closure that
// breaks the module<->orchestrator cyclic dependency.
type Resolver func(moduleID string) (module.Module, bool)

const translationBufferCap = 500

// Orchestrator drives single jobs and is shared across a Scheduler's whole
// run; ResetBatchCache must be called once per batch.
type Orchestrator struct {
	pool     *pgxpool.Pool
	mappings repository.MappingStore
	rpcc     rpc.Client
	resolve  Resolver
	logger   *slog.Logger

	companyMu sync.Mutex
	companyID *uint64

	importGuard sync.Map // key: module|entityType|remoteID -> struct{}

	transMu      sync.Mutex
	translations map[string]map[uint64]uint64 // remoteModel -> remoteID -> localID
}

func New(pool *pgxpool.Pool, mappings repository.MappingStore, rpcc rpc.Client, resolve Resolver, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		pool:         pool,
		mappings:     mappings,
		rpcc:         rpcc,
		resolve:      resolve,
		logger:       logger.With("component", "orchestrator"),
		translations: make(map[string]map[uint64]uint64),
	}
}

// ResetBatchCache clears the per-batch companyID cache.
func (o *Orchestrator) ResetBatchCache() {
	o.companyMu.Lock()
	o.companyID = nil
	o.companyMu.Unlock()
}

func (o *Orchestrator) companyIDFor(ctx context.Context) (uint64, error) {
	o.companyMu.Lock()
	defer o.companyMu.Unlock()
	if o.companyID != nil {
		return *o.companyID, nil
	}
	id, err := o.rpcc.GetCompanyID(ctx)
	if err != nil {
		return 0, err
	}
	o.companyID = &id
	return id, nil
}

// PushToRemote is the Push procedure.
func (o *Orchestrator) PushToRemote(ctx context.Context, job *domain.Job) domain.Result {
	mod, ok := o.resolve(job.Module)
	if !ok {
		return domain.Result{Kind: domain.Permanent, Message: domain.ErrEntityTypeNotRegistered.Error()}
	}
	remoteModel, ok := mod.RemoteModel(job.EntityType)
	if !ok {
		return domain.Result{Kind: domain.Permanent, Message: domain.ErrEntityTypeNotRegistered.Error()}
	}

	if job.Action == domain.ActionDelete {
		if job.RemoteID > 0 {
			if err := o.rpcc.Unlink(ctx, remoteModel, []uint64{job.RemoteID}); err != nil {
				return domain.Result{Kind: domain.Classify(err), Message: err.Error()}
			}
		}
		if err := o.mappings.Remove(ctx, job.Module, job.EntityType, job.LocalID); err != nil {
			o.logger.WarnContext(ctx, "remove mapping after delete failed", "error", err)
		}
		return domain.Result{OK: true}
	}

	local, err := o.loadLocal(ctx, mod, job)
	if err != nil {
		return domain.Result{Kind: domain.Classify(err), Message: err.Error()}
	}
	if len(local) == 0 {
		return domain.Result{Kind: domain.Permanent, Message: domain.ErrNoDataToPush.Error()}
	}

	values, err := mod.MapToRemote(ctx, job.EntityType, local)
	if err != nil {
		return domain.Result{Kind: domain.Classify(err), Message: err.Error()}
	}
	if _, hasCompany := values["company_id"]; !hasCompany {
		if companyID, err := o.companyIDFor(ctx); err == nil && companyID > 0 {
			values["company_id"] = companyID
		}
	}
	newHash := CanonicalHash(values)

	remoteID := job.RemoteID
	action := job.Action
	if action == domain.ActionCreate || remoteID == 0 {
		if existing, found, err := o.mappings.GetRemoteID(ctx, job.Module, job.EntityType, job.LocalID); err == nil && found {
			remoteID = existing
			action = domain.ActionUpdate
		}
	}

	if action == domain.ActionUpdate && remoteID > 0 {
		return o.pushUpdate(ctx, job, remoteModel, remoteID, values, newHash)
	}
	return o.pushCreate(ctx, mod, job, remoteModel, values, newHash)
}

func (o *Orchestrator) pushUpdate(ctx context.Context, job *domain.Job, remoteModel string, remoteID uint64, values map[string]any, newHash string) domain.Result {
	if err := o.rpcc.Write(ctx, remoteModel, []uint64{remoteID}, values); err != nil {
		return domain.Result{Kind: domain.Classify(err), Message: err.Error()}
	}
	m := domain.Mapping{
		Module: job.Module, EntityType: job.EntityType, LocalID: job.LocalID,
		RemoteID: remoteID, RemoteModel: remoteModel, SyncHash: newHash,
	}
	if err := o.mappings.Save(ctx, m); err != nil {
		// the remote mutation already happened; retry will reconcile.
		return domain.Result{OK: false, Kind: domain.Transient, Message: fmt.Sprintf("save mapping after write: %v", err), CreatedRemoteID: remoteID}
	}
	return domain.Result{OK: true, CreatedRemoteID: remoteID}
}

func (o *Orchestrator) pushCreate(ctx context.Context, mod module.Module, job *domain.Job, remoteModel string, values map[string]any, newHash string) domain.Result {
	lockName := pushLockName(job.Module, job.EntityType, job.LocalID)
	lock, acquired, err := postgres.TryAcquireAdvisoryLock(ctx, o.pool, lockName)
	if err != nil {
		return domain.Result{Kind: domain.Transient, Message: fmt.Sprintf("push lock error: %v", err)}
	}
	if !acquired {
		return domain.Result{Kind: domain.Transient, Message: "push lock timeout"}
	}
	defer func() { _ = lock.Release(ctx) }()

	// Double-check: another worker may have completed the create during the
	// lock wait.
	if existing, found, err := o.mappings.GetRemoteID(ctx, job.Module, job.EntityType, job.LocalID); err == nil && found {
		return o.pushUpdate(ctx, job, remoteModel, existing, values, newHash)
	}

	if dd, ok := mod.(module.DedupDomainer); ok {
		if expr, ok := dd.DedupDomain(ctx, job.EntityType, values); ok {
			if ids, err := o.rpcc.Search(ctx, remoteModel, expr); err == nil && len(ids) > 0 {
				return o.pushUpdate(ctx, job, remoteModel, ids[0], values, newHash)
			}
		}
	}

	remoteID, err := o.rpcc.Create(ctx, remoteModel, values)
	if err != nil {
		return domain.Result{Kind: domain.Classify(err), Message: err.Error()}
	}
	m := domain.Mapping{
		Module: job.Module, EntityType: job.EntityType, LocalID: job.LocalID,
		RemoteID: remoteID, RemoteModel: remoteModel, SyncHash: newHash,
	}
	if err := o.mappings.Save(ctx, m); err != nil {
		// remote record exists without a mapping — surface the id so the
		// retry switches to Update instead of creating a duplicate.
		return domain.Result{OK: false, Kind: domain.Transient, Message: fmt.Sprintf("save mapping after create: %v", err), CreatedRemoteID: remoteID}
	}
	return domain.Result{OK: true, CreatedRemoteID: remoteID}
}

func (o *Orchestrator) loadLocal(ctx context.Context, mod module.Module, job *domain.Job) (module.Data, error) {
	if len(job.Payload) > 0 {
		return decodePayload(job.Payload)
	}
	return mod.LoadLocal(ctx, job.EntityType, job.LocalID)
}

// PullFromRemote is the Pull procedure.
func (o *Orchestrator) PullFromRemote(ctx context.Context, job *domain.Job) domain.Result {
	mod, ok := o.resolve(job.Module)
	if !ok {
		return domain.Result{Kind: domain.Permanent, Message: domain.ErrEntityTypeNotRegistered.Error()}
	}
	remoteModel, ok := mod.RemoteModel(job.EntityType)
	if !ok {
		return domain.Result{Kind: domain.Permanent, Message: domain.ErrEntityTypeNotRegistered.Error()}
	}

	guardKey := fmt.Sprintf("%s|%s|%d", job.Module, job.EntityType, job.RemoteID)
	o.importGuard.Store(guardKey, struct{}{})
	defer o.importGuard.Delete(guardKey)

	records, err := o.rpcc.Read(ctx, remoteModel, []uint64{job.RemoteID}, nil)
	if err != nil {
		return domain.Result{Kind: domain.Classify(err), Message: err.Error()}
	}
	if len(records) == 0 {
		return domain.Result{Kind: domain.Permanent, Message: "remote record not found"}
	}
	remote := module.Data(records[0])

	local, err := mod.MapFromRemote(ctx, job.EntityType, remote)
	if err != nil {
		return domain.Result{Kind: domain.Classify(err), Message: err.Error()}
	}

	localID, err := mod.SaveLocal(ctx, job.EntityType, local, job.LocalID)
	if err != nil {
		return domain.Result{Kind: domain.Classify(err), Message: err.Error()}
	}

	if hook, ok := mod.(module.PostPullHook); ok {
		if err := hook.ApplyPullTranslation(ctx, job.EntityType, localID, remote); err != nil {
			o.logger.WarnContext(ctx, "post-pull hook failed", "module", job.Module, "error", err)
		}
	}

	newHash := CanonicalHash(remote)
	m := domain.Mapping{
		Module: job.Module, EntityType: job.EntityType, LocalID: localID,
		RemoteID: job.RemoteID, RemoteModel: remoteModel, SyncHash: newHash,
	}
	if err := o.mappings.Save(ctx, m); err != nil {
		return domain.Result{Kind: domain.Transient, Message: fmt.Sprintf("save mapping after pull: %v", err)}
	}

	o.bufferTranslation(ctx, job.Module, remoteModel, job.RemoteID, localID)
	return domain.Result{OK: true}
}

// IsImporting reports whether remoteID is mid-pull for (module, entityType)
// — a process-local, non-authoritative short-circuit; the queue dedup in
// §4.2 remains the authoritative guard.
func (o *Orchestrator) IsImporting(module, entityType string, remoteID uint64) bool {
	_, ok := o.importGuard.Load(fmt.Sprintf("%s|%s|%d", module, entityType, remoteID))
	return ok
}

func (o *Orchestrator) bufferTranslation(ctx context.Context, moduleID, remoteModel string, remoteID, localID uint64) {
	o.transMu.Lock()
	buf, ok := o.translations[remoteModel]
	if !ok {
		buf = make(map[uint64]uint64)
		o.translations[remoteModel] = buf
	}
	buf[remoteID] = localID
	overflow := len(buf) >= translationBufferCap
	o.transMu.Unlock()

	if overflow {
		o.FlushPullTranslations(ctx, moduleID)
	}
}

// FlushPullTranslations hands the accumulated remoteID->localID map for
// every buffered remote model to moduleID's TranslationFlusher, if it
// implements one, then clears the buffer.
func (o *Orchestrator) FlushPullTranslations(ctx context.Context, moduleID string) {
	mod, ok := o.resolve(moduleID)
	if !ok {
		return
	}
	flusher, ok := mod.(module.TranslationFlusher)

	o.transMu.Lock()
	snapshot := o.translations
	o.translations = make(map[string]map[uint64]uint64)
	o.transMu.Unlock()

	if !ok {
		return
	}
	for remoteModel, translations := range snapshot {
		if err := flusher.FlushPullTranslations(ctx, remoteModel, translations); err != nil {
			o.logger.WarnContext(ctx, "flush pull translations failed", "module", moduleID, "remote_model", remoteModel, "error", err)
		}
	}
}

// pushLockName names the per-entity create lock
// "wp4odoo_push_{sha256(module|entityType|localID)}"; the hash itself is
// computed by lockKey inside TryAcquireAdvisoryLock, so this just needs to be
// a stable, collision-free string.
func pushLockName(moduleID, entityType string, localID uint64) string {
	return fmt.Sprintf("wp4odoo_push_%s_%s_%d", moduleID, entityType, localID)
}

func decodePayload(raw []byte) (module.Data, error) {
	var data module.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode job payload: %w", err)
	}
	return data, nil
}
