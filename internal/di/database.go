package di

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jrjohn/railscron-go/internal/config"
	"github.com/jrjohn/railscron-go/internal/resilience"
)

// SQLDatabase wraps *gorm.DB. DB is nil when no SQL-backed lease/audit
// backend is configured, since a SQL connection is only needed then.
type SQLDatabase struct {
	DB *gorm.DB
}

// DatabaseModule provides the SQL and Redis connections that lease/audit
// backends are built from.
var DatabaseModule = fx.Module("database",
	fx.Provide(
		provideSQLDatabase,
		provideRedisClient,
	),
)

func needsSQL(cfg *config.CoordinatorConfig) bool {
	switch cfg.LeaseBackend {
	case config.LeaseBackendSQLAdvisory, config.LeaseBackendSQLNamedLock, config.LeaseBackendSQLRow:
		return true
	}
	return cfg.AuditBackend == config.AuditBackendSQL
}

func needsRedis(cfg *config.CoordinatorConfig) bool {
	return cfg.LeaseBackend == config.LeaseBackendRedis || cfg.AuditBackend == config.AuditBackendRedis
}

func provideSQLDatabase(lc fx.Lifecycle, dbCfg *config.DatabaseConfig, coordCfg *config.CoordinatorConfig, logger *zap.Logger) (*SQLDatabase, error) {
	if !needsSQL(coordCfg) {
		return &SQLDatabase{}, nil
	}

	var dialector gorm.Dialector
	switch dbCfg.Driver {
	case string(config.DriverMySQL):
		dialector = mysql.Open(dbCfg.DSN())
	case string(config.DriverPostgres):
		dialector = postgres.Open(dbCfg.DSN())
	case string(config.DriverSQLite):
		dialector = sqlite.Open(dbCfg.Name)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", dbCfg.Driver)
	}

	logger.Info("connecting to database", zap.String("driver", dbCfg.Driver))

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if !dbCfg.IsSQLite() {
		sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
				return sqlDB.PingContext(ctx)
			})
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing database connection")
			return sqlDB.Close()
		},
	})

	return &SQLDatabase{DB: db}, nil
}

func provideRedisClient(lc fx.Lifecycle, cfg *config.RedisConfig, coordCfg *config.CoordinatorConfig, logger *zap.Logger) (*redis.Client, error) {
	if !needsRedis(coordCfg) {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("connecting to redis", zap.String("addr", client.Options().Addr))
			return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			})
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing redis connection")
			return client.Close()
		},
	})

	return client, nil
}
