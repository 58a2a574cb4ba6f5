package batch

import (
	"testing"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
)

func TestGroupCreates_FiltersByActionAndStatus(t *testing.T) {
	jobs := []*domain.Job{
		{ID: 1, Module: "crm", EntityType: "contact", Action: domain.ActionCreate, Status: domain.StatusProcessing},
		{ID: 2, Module: "crm", EntityType: "contact", Action: domain.ActionCreate, Status: domain.StatusProcessing},
		{ID: 3, Module: "crm", EntityType: "contact", Action: domain.ActionUpdate, Status: domain.StatusProcessing},
		{ID: 4, Module: "crm", EntityType: "contact", Action: domain.ActionCreate, Status: domain.StatusPending},
		{ID: 5, Module: "products", EntityType: "product", Action: domain.ActionCreate, Status: domain.StatusProcessing},
	}

	groups := groupCreates(jobs)

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	crmGroup := groups[groupKey{module: "crm", entityType: "contact"}]
	if len(crmGroup) != 2 {
		t.Fatalf("expected 2 jobs in crm/contact group (update and pending excluded), got %d", len(crmGroup))
	}
	productsGroup := groups[groupKey{module: "products", entityType: "product"}]
	if len(productsGroup) != 1 {
		t.Fatalf("expected 1 job in products/product group, got %d", len(productsGroup))
	}
}

func TestDedupByLocalID_KeepsMostRecent(t *testing.T) {
	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	jobs := []*domain.Job{
		{ID: 1, LocalID: 42, CreatedAt: older},
		{ID: 2, LocalID: 42, CreatedAt: newer},
		{ID: 3, LocalID: 99, CreatedAt: older},
	}

	out := dedupByLocalID(jobs)
	if len(out) != 2 {
		t.Fatalf("expected 2 deduped jobs, got %d", len(out))
	}

	byLocalID := make(map[uint64]*domain.Job, len(out))
	for _, j := range out {
		byLocalID[j.LocalID] = j
	}
	if byLocalID[42].ID != 2 {
		t.Fatalf("expected the newer job (ID 2) to win for localID 42, got ID %d", byLocalID[42].ID)
	}
	if byLocalID[99].ID != 3 {
		t.Fatalf("expected the only job for localID 99 to survive, got ID %d", byLocalID[99].ID)
	}
}

func TestDedupByLocalID_EmptyInput(t *testing.T) {
	if out := dedupByLocalID(nil); len(out) != 0 {
		t.Fatalf("expected empty output for empty input, got %d", len(out))
	}
}
