package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "github.com/vivekanand1101/statscache/server/apis/v1"
)

// Routes registers the query service on the given engine.
func Routes(r *gin.Engine, handler *v1.Handler) {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.ExposeHeaders = []string{"Link", "X-Link-Number", "X-Link-Count"}
	r.Use(cors.New(corsCfg))

	r.GET("/", handler.Index)
	r.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/livez", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", handler.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	v1Routes(r.Group("/api/v1"), handler)
}

func v1Routes(r gin.IRouter, handler *v1.Handler) {
	r.GET("/plugins", handler.ListPlugins)
	r.GET("/plugins/:ident", handler.GetPluginRows)
	r.GET("/plugins/:ident/layout", handler.GetPluginLayout)
	r.GET("/runners", handler.ListRunners)
}
