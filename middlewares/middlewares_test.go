package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/mmdatafocus/agromate_backend/utils"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCorrelationMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CorrelationMiddleware())
	r.GET("/", func(c *gin.Context) {
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.String(http.StatusOK, cid)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Body.String() != "abc-123" || rec.Header().Get(CorrelationHeader) != "abc-123" {
		t.Fatalf("expected caller correlation id, got body=%q header=%q", rec.Body.String(), rec.Header().Get(CorrelationHeader))
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(rec.Body.String()) != 36 {
		t.Fatalf("expected generated uuid, got %q", rec.Body.String())
	}
}

func TestReadinessMiddleware(t *testing.T) {
	ready := false
	r := gin.New()
	r.Use(ReadinessMiddleware(func() bool { return ready }))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/api", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		path  string
		ready bool
		want  int
	}{
		{"/healthz", false, http.StatusNoContent},
		{"/api", false, http.StatusServiceUnavailable},
		{"/api", true, http.StatusOK},
	}
	for _, tt := range tests {
		ready = tt.ready
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Fatalf("%s ready=%v: status %d, want %d", tt.path, tt.ready, rec.Code, tt.want)
		}
	}
}
