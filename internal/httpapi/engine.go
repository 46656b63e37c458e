package httpapi

import (
	"net/http"

	"mission-control/pkg/config"
	"mission-control/pkg/health"
	"mission-control/pkg/httpapi"
	"mission-control/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("httpapi",
	fx.Provide(
		NewEngine,
		func(e *gin.Engine) http.Handler { return e },
	),
)

type EngineParams struct {
	fx.In
	Config *config.Config
	Health health.HealthService
	Routes []httpapi.Route `group:"routes"`
}

// NewEngine builds the gin engine and mounts every registered route.
func NewEngine(p EngineParams) *gin.Engine {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		middleware.Recovery(),
		middleware.RequestLog(),
		middleware.CORS(p.Config.Cors.AllowOrigin),
		middleware.Error(),
	)

	r.GET("/health", p.Health.Ping)
	r.GET("/healthz", p.Health.Liveness)
	r.GET("/readyz", p.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	for _, route := range p.Routes {
		route.RegisterRoutes(r)
	}

	zap.L().Info("http routes registered", zap.Int("groups", len(p.Routes)), zap.Int("routes", len(r.Routes())))
	return r
}
