package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics serves the collectors of gatherer in the Prometheus text format.
func Metrics(gatherer prometheus.Gatherer) gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// Register mounts the ops routes on router.
func Register(router gin.IRouter, health *HealthHandler, gatherer prometheus.Gatherer) {
	router.GET("/health", health.Health)
	router.GET("/health/ready", health.Ready)
	router.GET("/metrics", Metrics(gatherer))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/info", health.Info)
	}
}
