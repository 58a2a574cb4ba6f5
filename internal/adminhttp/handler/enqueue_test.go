package handler_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/adminhttp/handler"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/enqueuer"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/rediscache"
	"github.com/gin-gonic/gin"
)

type noopSender struct{}

func (noopSender) Send(context.Context, string, string, string) error { return nil }

func newTestEnqueuer() *enqueuer.Enqueuer {
	store := &fakeQueueStore{}
	return enqueuer.New(store, rediscache.NewLocalCache(), noopSender{}, "ops@example.com", func() int { return 0 }, testLogger())
}

func TestEnqueueHandler_PushValid(t *testing.T) {
	h := handler.NewEnqueueHandler(newTestEnqueuer(), testLogger())

	body := `{"module":"crm","entity_type":"contact","local_id":1,"action":"create"}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/enqueue/push", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Push(c)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", w.Code, w.Body.String())
	}
}

func TestEnqueueHandler_PushMissingRequiredField(t *testing.T) {
	h := handler.NewEnqueueHandler(newTestEnqueuer(), testLogger())

	body := `{"entity_type":"contact","local_id":1,"action":"create"}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/enqueue/push", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Push(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestEnqueueHandler_PushInvalidAction(t *testing.T) {
	h := handler.NewEnqueueHandler(newTestEnqueuer(), testLogger())

	body := `{"module":"crm","entity_type":"contact","local_id":1,"action":"explode"}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/enqueue/push", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Push(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestEnqueueHandler_PullValid(t *testing.T) {
	h := handler.NewEnqueueHandler(newTestEnqueuer(), testLogger())

	body := `{"module":"crm","entity_type":"contact","remote_id":100,"action":"update"}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/enqueue/pull", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Pull(c)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", w.Code, w.Body.String())
	}
}
