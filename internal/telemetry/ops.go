package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// 指标名称与标签
const (
	MetricOperations        = "promstore_storage_operations_total"
	MetricOperationDuration = "promstore_storage_operation_duration_seconds"

	LabelBackend   = "backend"
	LabelOperation = "operation"
	LabelOutcome   = "outcome"

	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// TracerName 后端操作 span 使用的 tracer 名称
const TracerName = "github.com/ceyewan/promstore"

// Ops 记录后端操作的次数、耗时与 span
type Ops struct {
	backend  string
	total    Counter
	duration Histogram
	tracer   oteltrace.Tracer
}

// NewOps 为指定后端创建操作记录器，meter 为 nil 时使用 noop。
// span 使用全局 TracerProvider，未初始化追踪时为 noop。
func NewOps(meter Meter, backend string) (*Ops, error) {
	if meter == nil {
		meter = Noop()
	}
	total, err := meter.Counter(MetricOperations, "Number of storage operations")
	if err != nil {
		return nil, err
	}
	duration, err := meter.Histogram(MetricOperationDuration, "Duration of storage operations", "s")
	if err != nil {
		return nil, err
	}
	return &Ops{
		backend:  backend,
		total:    total,
		duration: duration,
		tracer:   otel.Tracer(TracerName),
	}, nil
}

// Start 开始一次操作，返回携带 span 的上下文与结束函数。
//
//	ctx, end := ops.Start(ctx, "collect")
//	defer func() { end(err) }()
func (o *Ops) Start(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, o.backend+"."+op,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String("promstore."+LabelBackend, o.backend),
			attribute.String("promstore."+LabelOperation, op),
		))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		o.Observe(ctx, op, start, err)
	}
}

// Observe 记录一次操作的次数与耗时
func (o *Ops) Observe(ctx context.Context, op string, start time.Time, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	labels := []Label{L(LabelBackend, o.backend), L(LabelOperation, op), L(LabelOutcome, outcome)}
	o.total.Inc(ctx, labels...)
	o.duration.Record(ctx, time.Since(start).Seconds(), labels...)
}
