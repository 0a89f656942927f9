package health

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteInfo is the admin view of one registered handler item.
type RouteInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Publishers  int    `json:"publishers"`
}

// NewAdminServer exposes /health, /metrics and /routes on one port. The
// routes func is called per request so the view tracks live registrations.
func NewAdminServer(port int, registry *CheckerRegistry, routes func() []RouteInfo) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		h := registry.Check(c.Request.Context())
		status := http.StatusOK
		if h.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/routes", func(c *gin.Context) {
		if routes == nil {
			c.JSON(http.StatusOK, []RouteInfo{})
			return
		}
		c.JSON(http.StatusOK, routes())
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
}
