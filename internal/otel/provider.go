// Package otel sets up the OpenTelemetry pipelines of the referee: logs
// through the slog bridge and metrics from the dispatcher and the referee.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultMetricInterval is how often metrics are exported when Config leaves it unset.
const DefaultMetricInterval = 30 * time.Second

// Config holds OTel configuration
type Config struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	// LogWriter receives exported logs, and metrics unless MetricWriter is set.
	LogWriter      io.Writer
	MetricWriter   io.Writer
	MetricInterval time.Duration
	Endpoint       string // OTLP log endpoint, optional
	Insecure       bool
}

// Provider owns the log and meter providers of one referee run.
type Provider struct {
	logProvider   *sdklog.LoggerProvider
	meterProvider *sdkmetric.MeterProvider
	config        Config
}

// New builds the providers. A disabled config yields a provider whose
// methods are no-ops. The meter provider is registered globally so that
// instruments created through otel.Meter are exported.
func New(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	ctx := context.Background()
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if p.logProvider, err = newLoggerProvider(ctx, cfg, res); err != nil {
		return nil, err
	}
	if p.meterProvider, err = newMeterProvider(cfg, res); err != nil {
		return nil, err
	}
	if p.meterProvider != nil {
		otel.SetMeterProvider(p.meterProvider)
	}
	return p, nil
}

// LoggerProvider returns the log provider for the otelslog bridge, nil when disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logProvider
}

// Meter returns a meter of the SDK provider, or of the global provider when
// metrics are not exported.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meterProvider != nil {
		return p.meterProvider.Meter(name)
	}
	return otel.GetMeterProvider().Meter(name)
}

// Flush exports pending logs and the current metric values.
// Called at the end of a match so the export covers it.
func (p *Provider) Flush(ctx context.Context) error {
	var errs []error
	if p.logProvider != nil {
		if err := p.logProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log flush failed: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric flush failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.logProvider != nil {
		if err := p.logProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log shutdown failed: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric shutdown failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Enabled returns whether OTel is enabled
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}
