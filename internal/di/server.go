package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/jrjohn/railscron-go/internal/config"
	"github.com/jrjohn/railscron-go/internal/coordinator"
	"github.com/jrjohn/railscron-go/internal/middleware"
	"github.com/jrjohn/railscron-go/internal/observability"
	"github.com/jrjohn/railscron-go/internal/registry"
	"github.com/jrjohn/railscron-go/internal/resilience"
)

// jobsEndpointRateLimit bounds the /jobs status endpoint: it walks the
// full registry on every call, so it is the one handler worth guarding
// against a hot polling loop.
func jobsEndpointRateLimit() gin.HandlerFunc {
	limiter := resilience.NewTokenBucketLimiter(resilience.DefaultRateLimiterConfig("http.jobs"))
	return func(ctx *gin.Context) {
		if !limiter.Allow() {
			ctx.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// HTTPServerModule provides the minimal HTTP surface: liveness,
// readiness, Prometheus scrape, and read-only job status.
var HTTPServerModule = fx.Module("http_server",
	fx.Provide(
		provideGinEngine,
		provideHTTPServer,
	),
	fx.Invoke(
		registerHTTPRoutes,
		startHTTPServer,
	),
)

func provideGinEngine(cfg *config.AppConfig, logger *zap.Logger) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	return router
}

func provideHTTPServer(cfg *config.ServerConfig, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func registerHTTPRoutes(router *gin.Engine, reg *registry.Registry, c *coordinator.Coordinator, metrics *observability.MetricsProvider) {
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(ctx *gin.Context) {
		state := c.State()
		if state != coordinator.StateRunning {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": state.String()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": state.String()})
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.GET("/jobs", jobsEndpointRateLimit(), func(ctx *gin.Context) {
		jobs := reg.All()
		out := make([]gin.H, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, gin.H{"key": j.Key, "expression": j.Expression})
		}
		ctx.JSON(http.StatusOK, gin.H{"jobs": out, "node_id": c.NodeID(), "state": c.State().String()})
	})
}

func startHTTPServer(lc fx.Lifecycle, server *http.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting http server", zap.String("address", server.Addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping http server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}
