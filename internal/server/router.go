// Package server exposes a read-only HTTP surface over the supervisor:
// process statuses, liveness, and Prometheus metrics. There is no mutation
// API; the process table is fixed at handoff.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/bootstrapr/internal/metrics"
	"github.com/loykin/bootstrapr/internal/supervise"
)

// StatusSource is what the router reads. Satisfied by *supervise.Supervisor.
type StatusSource interface {
	Statuses() []supervise.ChildStatus
}

// NewRouter builds the gin engine with routes mounted under basePath
// ("" or "/" mounts at the root).
func NewRouter(src StatusSource, basePath string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	RegisterRoutes(r.Group(normalizeBase(basePath)), src)
	return r
}

// RegisterRoutes mounts the endpoints on an existing router group, for
// embedding into a host application's own engine.
func RegisterRoutes(g *gin.RouterGroup, src StatusSource) {
	g.GET("/healthz", handleHealthz)
	g.GET("/status", handleStatus(src))
	g.GET("/status/:name", handleStatusOne(src))
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
}

func handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func handleStatus(src StatusSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"processes": src.Statuses()})
	}
}

func handleStatusOne(src StatusSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		for _, st := range src.Statuses() {
			if st.Name == name {
				c.JSON(http.StatusOK, st)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown process", "name": name})
	}
}

func normalizeBase(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || base == "/" {
		return "/"
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return strings.TrimSuffix(base, "/")
}

// Serve runs the HTTP server until the listener fails. Callers run it in a
// goroutine beside the supervisor; errors are returned, not fatal.
func Serve(addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}
