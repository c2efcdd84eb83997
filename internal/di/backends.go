package di

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/jrjohn/railscron-go/internal/audit"
	"github.com/jrjohn/railscron-go/internal/clock"
	"github.com/jrjohn/railscron-go/internal/config"
	"github.com/jrjohn/railscron-go/internal/lease"
)

// BackendsModule provides the lease and audit backends selected by
// coordinator config, plus the process clock they and the coordinator
// itself read time through.
var BackendsModule = fx.Module("backends",
	fx.Provide(
		provideClock,
		provideLeaseBackend,
		provideAuditBackend,
	),
)

func provideClock(cfg *config.CoordinatorConfig) (clock.Clock, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve time zone: %w", err)
	}
	return clock.New(loc), nil
}

func provideLeaseBackend(cfg *config.CoordinatorConfig, sqlDB *SQLDatabase, redisClient *redis.Client, clk clock.Clock, logger *zap.Logger) (lease.Backend, error) {
	switch cfg.LeaseBackend {
	case config.LeaseBackendNone:
		logger.Info("no lease backend configured, coordinator will always acquire")
		return nil, nil
	case config.LeaseBackendMemory:
		return lease.NewMemory(clk), nil
	case config.LeaseBackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("lease_backend=redis requires redis configuration")
		}
		return lease.NewRedis(redisClient), nil
	case config.LeaseBackendSQLAdvisory:
		if sqlDB.DB == nil {
			return nil, fmt.Errorf("lease_backend=sql_advisory requires a database connection")
		}
		return lease.NewSQLAdvisory(sqlDB.DB), nil
	case config.LeaseBackendSQLNamedLock:
		if sqlDB.DB == nil {
			return nil, fmt.Errorf("lease_backend=sql_namedlock requires a database connection")
		}
		return lease.NewSQLNamedLock(sqlDB.DB, cfg.Namespace), nil
	case config.LeaseBackendSQLRow:
		if sqlDB.DB == nil {
			return nil, fmt.Errorf("lease_backend=sql_row requires a database connection")
		}
		if err := sqlDB.DB.AutoMigrate(&lease.LockRow{}); err != nil {
			return nil, fmt.Errorf("migrate lock table: %w", err)
		}
		return lease.NewSQLRow(sqlDB.DB, clk), nil
	default:
		return nil, fmt.Errorf("unknown lease_backend: %s", cfg.LeaseBackend)
	}
}

func provideAuditBackend(cfg *config.CoordinatorConfig, sqlDB *SQLDatabase, redisClient *redis.Client, clk clock.Clock, logger *zap.Logger) (audit.Backend, error) {
	if !cfg.EnableAudit {
		logger.Info("audit disabled")
		return nil, nil
	}

	switch cfg.AuditBackend {
	case config.AuditBackendNone:
		logger.Warn("enable_audit is true but audit_backend is none, audit is a no-op")
		return nil, nil
	case config.AuditBackendMemory:
		return audit.NewMemory(clk), nil
	case config.AuditBackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("audit_backend=redis requires redis configuration")
		}
		return audit.NewRedis(redisClient, cfg.Namespace, cfg.RecoveryWindow+time.Hour), nil
	case config.AuditBackendSQL:
		if sqlDB.DB == nil {
			return nil, fmt.Errorf("audit_backend=sql requires a database connection")
		}
		if err := sqlDB.DB.AutoMigrate(&audit.DispatchRow{}); err != nil {
			return nil, fmt.Errorf("migrate dispatch table: %w", err)
		}
		return audit.NewSQL(sqlDB.DB), nil
	default:
		return nil, fmt.Errorf("unknown audit_backend: %s", cfg.AuditBackend)
	}
}
