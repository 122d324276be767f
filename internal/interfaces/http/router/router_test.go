package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pharmacy/backend/internal/interfaces/http/handler"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.Register(group).Setup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup(t *testing.T) {
	t.Run("creates group with name and prefix", func(t *testing.T) {
		g := NewDomainGroup("stock", "/stock")
		assert.Equal(t, "stock", g.Name())
		assert.Equal(t, "/stock", g.Prefix())
	})

	t.Run("registers every method", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("test", "/test")
		g.GET("/a", func(c *gin.Context) { c.String(http.StatusOK, "a") }).
			POST("/b", func(c *gin.Context) { c.String(http.StatusCreated, "b") }).
			DELETE("/c/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
		g.RegisterRoutes(engine.Group("/api/v1"))

		tests := []struct {
			method string
			path   string
			status int
		}{
			{http.MethodGet, "/api/v1/test/a", http.StatusOK},
			{http.MethodPost, "/api/v1/test/b", http.StatusCreated},
			{http.MethodDelete, "/api/v1/test/c/42", http.StatusOK},
		}
		for _, tt := range tests {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code, "%s %s", tt.method, tt.path)
		}
	})

	t.Run("applies group middleware", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("test", "/test")
		g.Use(func(c *gin.Context) {
			c.Header("X-Group", "test")
			c.Next()
		})
		g.GET("/a", func(c *gin.Context) { c.String(http.StatusOK, "a") })
		g.RegisterRoutes(engine.Group("/api/v1"))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/test/a", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, "test", w.Header().Get("X-Group"))
	})

	t.Run("nests subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("stock", "/stock")
		g.Group("items", "/items").GET("/:item_id", func(c *gin.Context) {
			c.String(http.StatusOK, c.Param("item_id"))
		})
		g.RegisterRoutes(engine.Group("/api/v1"))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/stock/items/abc", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "abc", w.Body.String())
	})
}

func TestRouteTable(t *testing.T) {
	var routes []string
	routes = append(routes, StockRoutes(&handler.StockHandler{}).Routes()...)
	routes = append(routes, SalesRoutes(&handler.SalesHandler{}).Routes()...)
	routes = append(routes, AlertRoutes(&handler.AlertHandler{}).Routes()...)

	assert.ElementsMatch(t, []string{
		"POST /stock/inbound",
		"POST /stock/outbound",
		"GET /stock/items/:item_id",
		"GET /stock/items/:item_id/lots",
		"GET /stock/items/:item_id/available",
		"GET /stock/items/:item_id/movements",
		"DELETE /stock/items/:item_id",
		"POST /sales",
		"GET /sales",
		"GET /sales/:id",
		"GET /purchasers/:id/sales",
		"GET /alerts/low-stock",
		"GET /alerts/near-expiry",
	}, routes)
}

func TestMountRegistersOnEngine(t *testing.T) {
	engine := gin.New()
	Mount(engine, Handlers{
		Stock:  &handler.StockHandler{},
		Sales:  &handler.SalesHandler{},
		Alerts: &handler.AlertHandler{},
	})

	registered := make(map[string]bool)
	for _, info := range engine.Routes() {
		registered[info.Method+" "+info.Path] = true
	}

	assert.True(t, registered["POST /api/v1/sales"])
	assert.True(t, registered["GET /api/v1/stock/items/:item_id/available"])
	assert.True(t, registered["GET /api/v1/purchasers/:id/sales"])
	assert.False(t, registered["GET /health"], "health is only mounted with a handler")
}
