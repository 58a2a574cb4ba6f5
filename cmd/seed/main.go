// seed inserts sample sync jobs into the local dev database: pushes for
// every Action, and pull creates and updates.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/correlation"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/postgres"
)

type jobSpec struct {
	module     string
	entityType string
	direction  domain.Direction
	action     domain.Action
	localID    uint64
	remoteID   uint64
	payload    []byte
}

var jobs = []jobSpec{
	// Happy path pushes — local content changes waiting to reach Odoo.
	{"crm", "contact", domain.LocalToRemote, domain.ActionCreate, 101, 0, []byte(`{"name":"Ada Lovelace","email":"ada@example.com"}`)},
	{"crm", "contact", domain.LocalToRemote, domain.ActionCreate, 102, 0, []byte(`{"name":"Grace Hopper","email":"grace@example.com"}`)},
	{"crm", "contact", domain.LocalToRemote, domain.ActionUpdate, 103, 5001, []byte(`{"name":"Alan Turing","phone":"+44 20 7946 0101"}`)},
	{"products", "product", domain.LocalToRemote, domain.ActionCreate, 201, 0, []byte(`{"name":"Mechanical Keyboard","price":89.99}`)},
	{"products", "product", domain.LocalToRemote, domain.ActionCreate, 202, 0, []byte(`{"name":"Wireless Mouse","price":29.99}`)},
	{"products", "product", domain.LocalToRemote, domain.ActionDelete, 203, 5002, nil},

	// Batch-create candidates — same (module, entityType), enough of them
	// to exercise BatchCreateProcessor's minimum group size.
	{"products", "product", domain.LocalToRemote, domain.ActionCreate, 210, 0, []byte(`{"name":"USB-C Cable","price":9.99}`)},
	{"products", "product", domain.LocalToRemote, domain.ActionCreate, 211, 0, []byte(`{"name":"Laptop Stand","price":39.99}`)},
	{"products", "product", domain.LocalToRemote, domain.ActionCreate, 212, 0, []byte(`{"name":"Webcam Cover","price":4.99}`)},

	// Pulls — remote records waiting to be mirrored locally.
	{"crm", "contact", domain.RemoteToLocal, domain.ActionCreate, 0, 6001, nil},
	{"crm", "contact", domain.RemoteToLocal, domain.ActionUpdate, 301, 6002, nil},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	store := postgres.NewQueueRepository(pool)

	scheduledAt := time.Now().Add(10 * time.Second)
	corrID := correlation.New()

	var inserted, coalesced int
	for _, s := range jobs {
		spec := domain.JobSpec{
			Module:      s.module,
			Direction:   s.direction,
			EntityType:  s.entityType,
			Action:      s.action,
			LocalID:     s.localID,
			RemoteID:    s.remoteID,
			Payload:     s.payload,
			Priority:    5,
			ScheduledAt: &scheduledAt,
			MaxAttempts: 5,
		}
		job, created, err := store.Enqueue(ctx, spec, corrID)
		if err != nil {
			log.Fatalf("enqueue %s/%s id=%d: %v", s.module, s.entityType, s.localID, err)
		}
		if created {
			inserted++
		} else {
			coalesced++
		}
		fmt.Printf("  job #%d  %-10s %-10s %-8s local=%-6d remote=%-6d (%s)\n",
			job.ID, s.module, s.entityType, s.action, s.localID, s.remoteID, job.Status)
	}

	fmt.Println()
	fmt.Printf("Seed complete: %d inserted, %d coalesced into existing pending jobs\n", inserted, coalesced)
	fmt.Printf("Scheduled at:  %s (~10s from now)\n", scheduledAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("Run the scheduler against them:")
	fmt.Println("  go run ./cmd/cli sync run")
}
