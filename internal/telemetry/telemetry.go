// Package telemetry настраивает экспорт трасс, метрик и логов по OTLP/gRPC.
// Без адреса коллектора экспорт выключен, и сервис пишет только локальные логи.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zapcore"
)

// DefaultMetricInterval — период выгрузки метрик в коллектор.
const DefaultMetricInterval = time.Minute

// Config содержит параметры экспорта.
type Config struct {
	// Endpoint — адрес OTLP/gRPC коллектора, например http://otel-collector:4317.
	// Пустая строка выключает экспорт.
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	MetricInterval time.Duration
}

// Provider держит провайдеры трасс, метрик и логов.
// Нулевое значение соответствует выключенному экспорту.
type Provider struct {
	name   string
	traces *sdktrace.TracerProvider
	meters *sdkmetric.MeterProvider
	logs   *sdklog.LoggerProvider
}

// Setup создаёт экспортёры. Соединение с коллектором устанавливается лениво,
// поэтому недоступный коллектор не мешает запуску.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Endpoint == "" {
		return &Provider{name: cfg.ServiceName}, nil
	}

	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = DefaultMetricInterval
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create metric exporter: %w", err), traceExporter.Shutdown(ctx))
	}

	logExporter, err := otlploggrpc.New(ctx, otlploggrpc.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("create log exporter: %w", err),
			traceExporter.Shutdown(ctx),
			metricExporter.Shutdown(ctx),
		)
	}

	return &Provider{
		name: cfg.ServiceName,
		traces: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(traceExporter),
		),
		meters: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
		),
		logs: sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		),
	}, nil
}

// Enabled сообщает, включён ли экспорт.
func (p *Provider) Enabled() bool {
	return p != nil && p.traces != nil
}

// Install делает провайдеры глобальными, их подхватывает otelhttp.
func (p *Provider) Install() {
	if !p.Enabled() {
		return
	}
	otel.SetTracerProvider(p.traces)
	otel.SetMeterProvider(p.meters)
	global.SetLoggerProvider(p.logs)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Core возвращает zap-ядро, отправляющее записи в коллектор, или nil, если экспорт выключен.
func (p *Provider) Core() zapcore.Core {
	if !p.Enabled() {
		return nil
	}
	return otelzap.NewCore(p.name, otelzap.WithLoggerProvider(p.logs))
}

// Shutdown выгружает накопленные данные и останавливает экспортёры.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return errors.Join(
		p.traces.Shutdown(ctx),
		p.meters.Shutdown(ctx),
		p.logs.Shutdown(ctx),
	)
}
