package di

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/jrjohn/railscron-go/internal/config"
	"github.com/jrjohn/railscron-go/pkg/logger"
)

// LoggerModule provides the process-wide zap logger.
var LoggerModule = fx.Module("logger",
	fx.Provide(provideLogger),
)

func provideLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	encoding := "console"
	if cfg.Environment == "production" {
		encoding = "json"
	}
	return logger.New(logger.Config{
		Level:       "debug",
		Development: cfg.Debug,
		Encoding:    encoding,
	})
}
