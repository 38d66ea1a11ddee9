package cache

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/mxcd/go-formcache"

const (
	cacheNameValue     = "value"
	cacheNameFormState = "form_state"
)

type telemetry struct {
	tracer trace.Tracer
	meter  metric.Meter

	hits      metric.Int64Counter
	misses    metric.Int64Counter
	evictions metric.Int64Counter
	size      metric.Int64ObservableGauge

	registration metric.Registration
}

func newTelemetry(options *Options) *telemetry {
	meterProvider := options.MeterProvider
	if meterProvider == nil {
		meterProvider = otel.GetMeterProvider()
	}
	tracerProvider := options.TracerProvider
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}

	t := &telemetry{
		tracer: tracerProvider.Tracer(instrumentationName),
		meter:  meterProvider.Meter(instrumentationName),
	}

	var err error
	t.hits, err = t.meter.Int64Counter(
		"formcache.hits",
		metric.WithDescription("Number of cache lookups served from memory"),
	)
	if err != nil {
		otel.Handle(err)
	}

	t.misses, err = t.meter.Int64Counter(
		"formcache.misses",
		metric.WithDescription("Number of cache lookups that ran the compute function"),
	)
	if err != nil {
		otel.Handle(err)
	}

	t.evictions, err = t.meter.Int64Counter(
		"formcache.evictions",
		metric.WithDescription("Number of entries dropped to respect the size bound"),
	)
	if err != nil {
		otel.Handle(err)
	}

	t.size, err = t.meter.Int64ObservableGauge(
		"formcache.size",
		metric.WithDescription("Number of entries currently held"),
	)
	if err != nil {
		otel.Handle(err)
	}

	return t
}

// observeSize registers sizes as the callback feeding the size gauge.
func (t *telemetry) observeSize(sizes func() (value, formState int)) {
	if t.size == nil {
		return
	}
	registration, err := t.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		value, formState := sizes()
		o.ObserveInt64(t.size, int64(value), metric.WithAttributes(cacheAttribute(cacheNameValue)))
		o.ObserveInt64(t.size, int64(formState), metric.WithAttributes(cacheAttribute(cacheNameFormState)))
		return nil
	}, t.size)
	if err != nil {
		otel.Handle(err)
		return
	}
	t.registration = registration
}

func (t *telemetry) unregister() error {
	if t.registration == nil {
		return nil
	}
	err := t.registration.Unregister()
	t.registration = nil
	return err
}

func (t *telemetry) hit(ctx context.Context, cache string) {
	if t.hits != nil {
		t.hits.Add(ctx, 1, metric.WithAttributes(cacheAttribute(cache)))
	}
}

func (t *telemetry) miss(ctx context.Context, cache string) {
	if t.misses != nil {
		t.misses.Add(ctx, 1, metric.WithAttributes(cacheAttribute(cache)))
	}
}

func (t *telemetry) evict(ctx context.Context, cache string) {
	if t.evictions != nil {
		t.evictions.Add(ctx, 1, metric.WithAttributes(cacheAttribute(cache)))
	}
}

// compute runs fn inside a formcache.compute span.
func (t *telemetry) compute(ctx context.Context, cache, key string, fn ComputeFunc) (any, error) {
	ctx, span := t.tracer.Start(ctx, "formcache.compute", trace.WithAttributes(
		cacheAttribute(cache),
		attribute.String("formcache.key", key),
	))
	defer span.End()

	value, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return value, nil
}

func cacheAttribute(cache string) attribute.KeyValue {
	return attribute.String("cache", cache)
}
