package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func idempotencyTestRouter() (*gin.Engine, *int) {
	gin.SetMode(gin.TestMode)
	calls := 0
	router := gin.New()
	// A nil client is safe on the passthrough paths: the middleware
	// only talks to Redis once a key is present on a POST.
	router.Use(IdempotencyMiddleware(nil))
	router.POST("/sync", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/status", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router, &calls
}

func TestIdempotencyMiddleware_NoKey_PassesThrough(t *testing.T) {
	router, calls := idempotencyTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if *calls != 1 {
		t.Errorf("expected handler invoked once, got %d", *calls)
	}
}

func TestIdempotencyMiddleware_IgnoresReads(t *testing.T) {
	router, calls := idempotencyTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Idempotency-Key", "abc-123")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if *calls != 1 {
		t.Errorf("expected handler invoked once, got %d", *calls)
	}
}
