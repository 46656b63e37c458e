package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"mission-control/pkg/config"
	"mission-control/pkg/db"
	"mission-control/pkg/embedding"
	"mission-control/pkg/gen"
	"mission-control/pkg/hashistack/secretmanager"
	"mission-control/pkg/logger"
	"mission-control/pkg/otelcol"
	"mission-control/pkg/profiling"
	"mission-control/pkg/redis"
	"mission-control/pkg/task"
	"mission-control/services/agent"
	"mission-control/services/memory"
)

func main() {
	opts := []fx.Option{
		config.Select(),
		secretmanager.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		gen.Module,
		task.Client,
		task.Server,
		embedding.Module,
		agent.Store,
		memory.Worker,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.IsProduction() {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
})
