// Package router mounts route groups on the gin engine. Versioned groups live
// under /api/<version> behind the API middleware; public groups (webhooks and
// health checks) are mounted at the root and never see that middleware.
package router

import (
	"net/http"
	"path"
	"sort"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar registers routes on a gin group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouteInfo describes one mounted route
type RouteInfo struct {
	Group  string `json:"group"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Public bool   `json:"public"`
}

type mount struct {
	registrar RouteRegistrar
	public    bool
}

// Router collects registrars and mounts them in one pass
type Router struct {
	engine        *gin.Engine
	apiVersion    string
	apiMiddleware []gin.HandlerFunc
	mounts        []mount
	manifest      []RouteInfo
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the version segment of the API prefix
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// APIPrefix returns the mount point of versioned groups
func (r *Router) APIPrefix() string {
	return "/api/" + r.apiVersion
}

// Use adds middleware applied to versioned groups only
func (r *Router) Use(middleware ...gin.HandlerFunc) *Router {
	r.apiMiddleware = append(r.apiMiddleware, middleware...)
	return r
}

// Register adds a versioned registrar
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.mounts = append(r.mounts, mount{registrar: registrar})
	return r
}

// RegisterPublic adds a registrar mounted at the engine root
func (r *Router) RegisterPublic(registrar RouteRegistrar) *Router {
	r.mounts = append(r.mounts, mount{registrar: registrar, public: true})
	return r
}

// Setup mounts every registrar and returns the resulting route manifest,
// public routes first. Calling it twice panics in gin on duplicate routes.
func (r *Router) Setup() []RouteInfo {
	api := r.engine.Group(r.APIPrefix())
	if len(r.apiMiddleware) > 0 {
		api.Use(r.apiMiddleware...)
	}

	r.manifest = r.manifest[:0]
	for _, m := range r.mounts {
		if !m.public {
			continue
		}
		m.registrar.RegisterRoutes(&r.engine.RouterGroup)
		r.record(m.registrar, "/", true)
	}
	for _, m := range r.mounts {
		if m.public {
			continue
		}
		m.registrar.RegisterRoutes(api)
		r.record(m.registrar, r.APIPrefix(), false)
	}
	return r.manifest
}

// Routes returns the manifest built by the last Setup
func (r *Router) Routes() []RouteInfo {
	return r.manifest
}

func (r *Router) record(registrar RouteRegistrar, base string, public bool) {
	dg, ok := registrar.(*DomainGroup)
	if !ok {
		return
	}
	for _, route := range dg.routes {
		r.manifest = append(r.manifest, RouteInfo{
			Group:  dg.name,
			Method: route.method,
			Path:   joinPath(base, dg.prefix, route.path),
			Public: public,
		})
	}
}

// CountByGroup tallies manifest entries per group name
func CountByGroup(routes []RouteInfo) map[string]int {
	counts := make(map[string]int)
	for _, route := range routes {
		counts[route.Group]++
	}
	return counts
}

// GroupNames returns the sorted distinct group names of routes
func GroupNames(routes []RouteInfo) []string {
	counts := CountByGroup(routes)
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DomainGroup collects the routes of one area under a prefix
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
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

func (dg *DomainGroup) handle(method, path string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
}

// joinPath joins route segments the way gin does, keeping a trailing slash
// only when the last non-empty segment has one
func joinPath(parts ...string) string {
	joined := path.Join(parts...)
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == "" {
			continue
		}
		if parts[i][len(parts[i])-1] == '/' && joined != "/" {
			joined += "/"
		}
		break
	}
	return joined
}
