package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/medisched/scheduling-api/internal/handler"
	"github.com/medisched/scheduling-api/internal/middleware"
)

// Handler is anything that can hang its routes off the API group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	MetricsPrefix string
}

type Router struct {
	engine       *gin.Engine
	h            *handler.Handler
	clinics      middleware.ClinicStore
	appointmentH Handler
	queueH       Handler
	scheduleH    Handler
	metrics      *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

func NewRouter(
	h *handler.Handler,
	clinics middleware.ClinicStore,
	appointmentH Handler,
	queueH Handler,
	scheduleH Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	r := &Router{
		engine:       engine,
		h:            h,
		clinics:      clinics,
		appointmentH: appointmentH,
		queueH:       queueH,
		scheduleH:    scheduleH,
		metrics:      initRouterMetrics(config.MetricsPrefix),
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		r.metricsMiddleware(),
	)

	return r
}

func (r *Router) Setup() {
	r.engine.GET("/health/live", r.h.LivenessCheck)
	r.engine.GET("/health/ready", r.h.ReadinessCheck)
	r.engine.GET("/metrics", r.h.MetricsHandler)

	api := r.engine.Group("/api/v1")
	api.Use(
		middleware.ClinicContext(r.clinics),
		middleware.Identity(),
	)

	r.scheduleH.RegisterRoutes(api)
	r.appointmentH.RegisterRoutes(api)
	r.queueH.RegisterRoutes(api)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path).Inc()
		}
	}
}
