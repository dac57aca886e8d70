package app

import (
	"github.com/Avi18971911/telemetry-core/internal/config"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var Module = fx.Module("telemetry",
	fx.Provide(
		provideLogger,
		provideMetrics,
		provideBackends,
		provideAggregator,
		provideEventBus,
		provideSpanRecorder,
		provideQueueManager,
		provideQueryService,
		provideServers,
	),
	fx.Invoke(registerSpanExporter),
	fx.Invoke(func(*Servers) {}),
)

// Options assembles the application for cfg. fx lifecycle events are logged through zap.
func Options(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		Module,
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.StopTimeout(cfg.Server.ShutdownTimeout),
	)
}

func New(cfg *config.Config) *fx.App {
	return fx.New(Options(cfg))
}
