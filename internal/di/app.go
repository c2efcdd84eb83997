package di

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/jrjohn/railscron-go/internal/config"
)

// AppModule aggregates every module the coordinator daemon needs.
var AppModule = fx.Options(
	ConfigModule,
	LoggerModule,
	ObservabilityModule,
	DatabaseModule,
	BackendsModule,
	CoordinatorModule,
	HTTPServerModule,
)

// PrintBanner logs the startup banner.
func PrintBanner(cfg *config.Config, logger *zap.Logger) {
	logger.Info("=================================")
	logger.Info("        railscron-go            ")
	logger.Info("=================================")
	logger.Info("coordinator config",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("namespace", cfg.Coordinator.Namespace),
		zap.Duration("tick_interval", cfg.Coordinator.TickInterval),
		zap.String("lease_backend", string(cfg.Coordinator.LeaseBackend)),
		zap.String("audit_backend", string(cfg.Coordinator.AuditBackend)),
	)
}
