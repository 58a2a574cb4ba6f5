package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/adminhttp/middleware"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(token string) *gin.Engine {
	r := gin.New()
	r.GET("/status", middleware.Auth(token), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuth_RejectsMissingHeader(t *testing.T) {
	r := newAuthRouter("secret")
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_RejectsWrongToken(t *testing.T) {
	r := newAuthRouter("secret")
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_RejectsNonBearerScheme(t *testing.T) {
	r := newAuthRouter("secret")
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Basic secret")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_AcceptsCorrectToken(t *testing.T) {
	r := newAuthRouter("secret")
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
