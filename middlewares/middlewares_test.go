package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JayKadi/ecommerce-project/utils"
	"github.com/gin-gonic/gin"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), PrometheusMiddleware())
	api := r.Group("/api", AuthMiddleware("secret"))
	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(ContextUserID), "operator": IsOperator(c)})
	})
	api.GET("/admin", OperatorOnly(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func request(t *testing.T, r *gin.Engine, path string, id utils.Identity) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if id.UserID != "" {
		token, err := utils.GenerateToken(id, "secret")
		if err != nil {
			t.Fatalf("Expected token, got %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()

	if w := request(t, r, "/api/me", utils.Identity{}); w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", w.Code)
	}
	w := request(t, r, "/api/me", utils.Identity{UserID: "5", Role: utils.RoleCustomer})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("Expected a request id header")
	}
}

func TestOperatorOnly(t *testing.T) {
	r := newRouter()

	if w := request(t, r, "/api/admin", utils.Identity{UserID: "5", Role: utils.RoleCustomer}); w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for a customer, got %d", w.Code)
	}
	if w := request(t, r, "/api/admin", utils.Identity{UserID: "1", Role: utils.RoleOperator}); w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 for an operator, got %d", w.Code)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	r := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "req-123" {
		t.Fatalf("Expected req-123, got %q", got)
	}
}
