package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// Route is one mounted endpoint, reported for startup logs and route tests
type Route struct {
	Domain string
	Method string
	Path   string
}

// Mount registers every group under /api/<version> and returns the routes it mounted
func Mount(engine *gin.Engine, version string, groups ...*DomainGroup) []Route {
	api := engine.Group("/api/" + version)
	var mounted []Route
	for _, g := range groups {
		mounted = append(mounted, g.mount(api, g.name)...)
	}
	return mounted
}

// DomainGroup collects the routes of one domain under a shared prefix and middleware
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	subgroups  []*DomainGroup
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a route group for one domain
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group and its subgroups
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, path, handlers)
}

func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, path, handlers)
}

func (dg *DomainGroup) PUT(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPut, path, handlers)
}

func (dg *DomainGroup) handle(method, path string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// Group creates a subgroup; middleware added to it does not leak into the parent
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	sub := NewDomainGroup(name, prefix)
	dg.subgroups = append(dg.subgroups, sub)
	return sub
}

func (dg *DomainGroup) mount(parent *gin.RouterGroup, domain string) []Route {
	group := parent.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}

	mounted := make([]Route, 0, len(dg.routes))
	for _, r := range dg.routes {
		group.Handle(r.method, r.path, r.handlers...)
		mounted = append(mounted, Route{
			Domain: domain,
			Method: r.method,
			Path:   path.Join(group.BasePath(), r.path),
		})
	}
	for _, sub := range dg.subgroups {
		mounted = append(mounted, sub.mount(group, domain)...)
	}
	return mounted
}
