package profiling

import (
	"context"
	"runtime"

	"mission-control/pkg/config"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("profiling", fx.Invoke(Start))

var baseProfiles = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocObjects,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseObjects,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
}

// profileTypes adds lock contention profiles outside production, where the
// sampling overhead is acceptable.
func profileTypes(c *config.Config) []pyroscope.ProfileType {
	types := append([]pyroscope.ProfileType{}, baseProfiles...)
	if !c.IsProduction() {
		types = append(types,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileMutexDuration,
			pyroscope.ProfileBlockCount,
			pyroscope.ProfileBlockDuration,
		)
	}
	return types
}

// Start begins continuous profiling when PYROSCOPE.ADDR is set.
func Start(lc fx.Lifecycle, c *config.Config) error {
	if c.Pyroscope.Addr == "" {
		return nil
	}

	if !c.IsProduction() {
		runtime.SetMutexProfileFraction(5)
		runtime.SetBlockProfileRate(5)
	}

	zap.L().Info("starting pyroscope",
		zap.String("app_name", c.AppName),
		zap.String("pyroscope_addr", c.Pyroscope.Addr),
	)
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: c.AppName,
		ServerAddress:   c.Pyroscope.Addr,
		ProfileTypes:    profileTypes(c),
		Tags: map[string]string{
			"service_name": c.AppName,
			"env":          c.AppEnv,
			"version":      c.AppVersion,
		},
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			zap.L().Info("stopping pyroscope")
			return profiler.Stop()
		},
	})
	return nil
}
