package di

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/jrjohn/railscron-go/internal/audit"
	"github.com/jrjohn/railscron-go/internal/clock"
	"github.com/jrjohn/railscron-go/internal/config"
	"github.com/jrjohn/railscron-go/internal/coordinator"
	"github.com/jrjohn/railscron-go/internal/lease"
	"github.com/jrjohn/railscron-go/internal/observability"
	"github.com/jrjohn/railscron-go/internal/registry"
	"github.com/jrjohn/railscron-go/internal/resilience"
)

// CoordinatorModule provides the job registry, circuit breakers, and the
// coordinator itself, and wires its Start/Stop into the fx lifecycle.
var CoordinatorModule = fx.Module("coordinator",
	fx.Provide(
		registry.New,
		provideCircuitBreakerRegistry,
		provideCoordinator,
	),
	fx.Invoke(registerCoordinatorLifecycle),
)

func provideCircuitBreakerRegistry(logger *zap.Logger) *resilience.CircuitBreakerRegistry {
	return resilience.NewCircuitBreakerRegistry(logger)
}

func provideCoordinator(
	cfg *config.CoordinatorConfig,
	clk clock.Clock,
	reg *registry.Registry,
	leaseBackend lease.Backend,
	auditBackend audit.Backend,
	metrics *observability.MetricsProvider,
	breakers *resilience.CircuitBreakerRegistry,
	logger *zap.Logger,
) (*coordinator.Coordinator, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	opts := []coordinator.Option{
		coordinator.WithMetrics(metrics),
		coordinator.WithCircuitBreakers(breakers),
	}
	if leaseBackend != nil {
		opts = append(opts, coordinator.WithLeaseBackend(leaseBackend))
	}
	if auditBackend != nil {
		opts = append(opts, coordinator.WithAuditBackend(auditBackend))
	}

	coordCfg := coordinator.Config{
		TickInterval:           cfg.TickInterval,
		WindowLookback:         cfg.WindowLookback,
		WindowLookahead:        cfg.WindowLookahead,
		LeaseTTL:               cfg.LeaseTTL,
		Namespace:              cfg.Namespace,
		EnableAudit:            cfg.EnableAudit,
		EnableDispatchRecovery: cfg.EnableDispatchRecovery,
		RecoveryWindow:         cfg.RecoveryWindow,
		RecoveryStartupJitter:  cfg.RecoveryStartupJitter,
		ShutdownTimeout:        cfg.ShutdownTimeout,
	}

	return coordinator.New(coordCfg, clk, reg, loc, logger, opts...), nil
}

func registerCoordinatorLifecycle(lc fx.Lifecycle, c *coordinator.Coordinator, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting coordinator", zap.String("node_id", c.NodeID()))
			return c.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping coordinator")
			return c.Stop(ctx)
		},
	})
}
