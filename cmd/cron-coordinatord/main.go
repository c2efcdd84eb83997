// Command cron-coordinatord runs the distributed cron coordination kernel:
// it ticks on an interval, enumerates due firings for every registered
// job, and dispatches each exactly once across the fleet via a pluggable
// lease backend.
package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/jrjohn/railscron-go/internal/di"
)

func main() {
	app := fx.New(
		di.AppModule,

		fx.Invoke(di.PrintBanner),

		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
	)

	app.Run()
}
