package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	PrometheusPath string `mapstructure:"prometheus_path"`
}

// DefaultMetricsConfig returns default metrics configuration
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:        true,
		ServiceName:    "railscron",
		PrometheusPath: "/metrics",
	}
}

// MetricsProvider manages OpenTelemetry metrics
type MetricsProvider struct {
	config        *MetricsConfig
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	logger        *zap.Logger
	registry      *prometheus.Registry
	handler       http.Handler

	// Coordinator tick metrics
	ticksTotal    metric.Int64Counter
	tickDuration  metric.Float64Histogram

	// Dispatch metrics
	firingsEnumeratedTotal metric.Int64Counter
	leaseAcquiredTotal     metric.Int64Counter
	leaseDeniedTotal       metric.Int64Counter
	dispatchesTotal        metric.Int64Counter
	callbackFailuresTotal  metric.Int64Counter
	callbackDuration       metric.Float64Histogram

	// Backend-call metrics
	backendOperationsTotal   metric.Int64Counter
	backendOperationDuration metric.Float64Histogram

	// Recovery metrics
	recoveryRunsTotal     metric.Int64Counter
	recoveryFiringsTotal  metric.Int64Counter
	activeJobs            metric.Int64UpDownCounter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(config *MetricsConfig, logger *zap.Logger) (*MetricsProvider, error) {
	if !config.Enabled {
		return &MetricsProvider{
			config: config,
			meter:  otel.Meter(config.ServiceName),
			logger: logger,
		}, nil
	}

	registry := prometheus.NewRegistry()

	exporter, err := otelprometheus.New(
		otelprometheus.WithRegisterer(registry),
	)
	if err != nil {
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(config.ServiceName)

	mp := &MetricsProvider{
		config:        config,
		meterProvider: meterProvider,
		meter:         meter,
		logger:        logger,
		registry:      registry,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	if err := mp.initMetrics(); err != nil {
		return nil, err
	}

	logger.Info("OpenTelemetry metrics initialized",
		zap.String("service", config.ServiceName),
		zap.String("prometheus_path", config.PrometheusPath),
	)

	return mp, nil
}

// initMetrics initializes the coordinator's metrics
func (mp *MetricsProvider) initMetrics() error {
	var err error

	mp.ticksTotal, err = mp.meter.Int64Counter(
		"cron_ticks_total",
		metric.WithDescription("Total number of coordinator ticks"),
	)
	if err != nil {
		return err
	}

	mp.tickDuration, err = mp.meter.Float64Histogram(
		"cron_tick_duration_seconds",
		metric.WithDescription("Duration of one coordinator tick"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	mp.firingsEnumeratedTotal, err = mp.meter.Int64Counter(
		"cron_firings_enumerated_total",
		metric.WithDescription("Total number of firings enumerated across all jobs"),
	)
	if err != nil {
		return err
	}

	mp.leaseAcquiredTotal, err = mp.meter.Int64Counter(
		"cron_lease_acquired_total",
		metric.WithDescription("Total number of successful lease acquisitions"),
	)
	if err != nil {
		return err
	}

	mp.leaseDeniedTotal, err = mp.meter.Int64Counter(
		"cron_lease_denied_total",
		metric.WithDescription("Total number of failed lease acquisitions"),
	)
	if err != nil {
		return err
	}

	mp.dispatchesTotal, err = mp.meter.Int64Counter(
		"cron_dispatches_total",
		metric.WithDescription("Total number of job callback invocations"),
	)
	if err != nil {
		return err
	}

	mp.callbackFailuresTotal, err = mp.meter.Int64Counter(
		"cron_callback_failures_total",
		metric.WithDescription("Total number of job callback failures"),
	)
	if err != nil {
		return err
	}

	mp.callbackDuration, err = mp.meter.Float64Histogram(
		"cron_callback_duration_seconds",
		metric.WithDescription("Duration of a job callback invocation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	mp.backendOperationsTotal, err = mp.meter.Int64Counter(
		"cron_backend_operations_total",
		metric.WithDescription("Total number of lease/audit backend operations"),
	)
	if err != nil {
		return err
	}

	mp.backendOperationDuration, err = mp.meter.Float64Histogram(
		"cron_backend_operation_duration_seconds",
		metric.WithDescription("Duration of a lease/audit backend operation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	mp.recoveryRunsTotal, err = mp.meter.Int64Counter(
		"cron_recovery_runs_total",
		metric.WithDescription("Total number of startup recovery passes"),
	)
	if err != nil {
		return err
	}

	mp.recoveryFiringsTotal, err = mp.meter.Int64Counter(
		"cron_recovery_firings_total",
		metric.WithDescription("Total number of firings redispatched by recovery"),
	)
	if err != nil {
		return err
	}

	mp.activeJobs, err = mp.meter.Int64UpDownCounter(
		"cron_registered_jobs",
		metric.WithDescription("Number of jobs currently registered"),
	)
	if err != nil {
		return err
	}

	return nil
}

// RecordTick records one coordinator tick.
func (mp *MetricsProvider) RecordTick(ctx context.Context, duration time.Duration) {
	if mp.ticksTotal == nil {
		return
	}
	mp.ticksTotal.Add(ctx, 1)
	mp.tickDuration.Record(ctx, duration.Seconds())
}

// RecordFiringsEnumerated records how many firings a tick found for jobKey.
func (mp *MetricsProvider) RecordFiringsEnumerated(ctx context.Context, jobKey string, count int) {
	if mp.firingsEnumeratedTotal == nil {
		return
	}
	mp.firingsEnumeratedTotal.Add(ctx, int64(count), metric.WithAttributes(AttrJobKey.String(jobKey)))
}

// RecordLeaseOutcome records whether a lease acquisition succeeded for jobKey.
func (mp *MetricsProvider) RecordLeaseOutcome(ctx context.Context, jobKey string, acquired bool) {
	attrs := metric.WithAttributes(AttrJobKey.String(jobKey))
	if acquired {
		if mp.leaseAcquiredTotal != nil {
			mp.leaseAcquiredTotal.Add(ctx, 1, attrs)
		}
		return
	}
	if mp.leaseDeniedTotal != nil {
		mp.leaseDeniedTotal.Add(ctx, 1, attrs)
	}
}

// RecordDispatch records one callback invocation and its outcome.
func (mp *MetricsProvider) RecordDispatch(ctx context.Context, jobKey string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(AttrJobKey.String(jobKey))
	if mp.dispatchesTotal != nil {
		mp.dispatchesTotal.Add(ctx, 1, attrs)
	}
	if mp.callbackDuration != nil {
		mp.callbackDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if !success && mp.callbackFailuresTotal != nil {
		mp.callbackFailuresTotal.Add(ctx, 1, attrs)
	}
}

// RecordBackendOperation records one call to a lease or audit backend.
func (mp *MetricsProvider) RecordBackendOperation(ctx context.Context, backend, operation string, success bool, duration time.Duration) {
	if mp.backendOperationsTotal == nil {
		return
	}
	status := "ok"
	if !success {
		status = "error"
	}
	attrs := metric.WithAttributes(
		AttrBackendName.String(backend),
		AttrBackendOperation.String(operation),
		AttrBackendStatus.String(status),
	)
	mp.backendOperationsTotal.Add(ctx, 1, attrs)
	mp.backendOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRecoveryRun records one startup recovery pass and the number of
// firings it redispatched.
func (mp *MetricsProvider) RecordRecoveryRun(ctx context.Context, firingsRedispatched int) {
	if mp.recoveryRunsTotal == nil {
		return
	}
	mp.recoveryRunsTotal.Add(ctx, 1)
	mp.recoveryFiringsTotal.Add(ctx, int64(firingsRedispatched))
}

// SetRegisteredJobs adjusts the registered-jobs gauge by delta (it adds to
// the gauge rather than replacing its value).
func (mp *MetricsProvider) SetRegisteredJobs(ctx context.Context, delta int64) {
	if mp.activeJobs == nil {
		return
	}
	mp.activeJobs.Add(ctx, delta)
}

// Handler returns an HTTP handler for Prometheus metrics
func (mp *MetricsProvider) Handler() http.Handler {
	if mp.handler != nil {
		return mp.handler
	}
	return http.NotFoundHandler()
}

// Meter returns the meter for creating custom metrics
func (mp *MetricsProvider) Meter() metric.Meter {
	return mp.meter
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}
