package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func request(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestMount(t *testing.T) {
	engine := gin.New()
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	orders := NewDomainGroup("orders", "/orders").
		GET("/:id", ok).
		POST("", ok).
		PUT("/:id", ok)
	routes := Mount(engine, "v2", orders)

	assert.Equal(t, []Route{
		{Domain: "orders", Method: http.MethodGet, Path: "/api/v2/orders/:id"},
		{Domain: "orders", Method: http.MethodPost, Path: "/api/v2/orders"},
		{Domain: "orders", Method: http.MethodPut, Path: "/api/v2/orders/:id"},
	}, routes)
	assert.Equal(t, http.StatusOK, request(engine, http.MethodGet, "/api/v2/orders/1").Code)
	assert.Equal(t, http.StatusOK, request(engine, http.MethodPost, "/api/v2/orders").Code)
	assert.Equal(t, http.StatusNotFound, request(engine, http.MethodDelete, "/api/v2/orders/1").Code)
}

func TestDomainGroup_SubgroupMiddleware(t *testing.T) {
	engine := gin.New()
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusForbidden) }
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	g := NewDomainGroup("inventory", "/inventory")
	g.GET("/batches/:id", ok)
	g.Group("writes", "").Use(deny).POST("/batches", ok)
	routes := Mount(engine, "v1", g)

	assert.Len(t, routes, 2)
	assert.Equal(t, "inventory", routes[1].Domain, "subgroup routes report their domain")
	assert.Equal(t, http.StatusOK, request(engine, http.MethodGet, "/api/v1/inventory/batches/1").Code)
	assert.Equal(t, http.StatusForbidden, request(engine, http.MethodPost, "/api/v1/inventory/batches").Code)
}
