package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/adminhttp/handler"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/rediscache"
	"github.com/gin-gonic/gin"
)

type nonFlushingCache struct{}

func (nonFlushingCache) Get(context.Context, string) (string, bool, error)        { return "", false, nil }
func (nonFlushingCache) Set(context.Context, string, string, time.Duration) error { return nil }
func (nonFlushingCache) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, nil
}
func (nonFlushingCache) Del(context.Context, string) error { return nil }

func TestCacheHandler_FlushSupported(t *testing.T) {
	h := handler.NewCacheHandler(rediscache.NewLocalCache(), testLogger())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/cache/flush", nil)

	h.Flush(c)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
}

func TestCacheHandler_FlushUnsupportedBackend(t *testing.T) {
	h := handler.NewCacheHandler(nonFlushingCache{}, testLogger())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/cache/flush", nil)

	h.Flush(c)

	if w.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", w.Code)
	}
}
