package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/adminhttp/handler"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/breaker"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/health"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/rediscache"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

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

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestStatusHandler() *handler.StatusHandler {
	store := newFakeBreakerStore()
	cache := rediscache.NewLocalCache()
	settingsFn := func() domain.Settings { return domain.DefaultSettings() }
	global := breaker.NewGlobal(store, cache, settingsFn, testLogger())
	moduleBreaker := breaker.NewModule(store, cache, settingsFn, testLogger())
	checker := health.NewChecker(fakePinger{}, nil, testLogger(), prometheus.NewRegistry())
	return handler.NewStatusHandler(&fakeQueueStore{}, global, moduleBreaker, checker, testLogger())
}

func TestStatusHandler_Status(t *testing.T) {
	h := newTestStatusHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/status", nil)

	h.Status(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
}

func TestStatusHandler_Livez(t *testing.T) {
	h := newTestStatusHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/livez", nil)

	h.Livez(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestStatusHandler_ReadyzUp(t *testing.T) {
	h := newTestStatusHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/readyz", nil)

	h.Readyz(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
