package tracer

import "context"

// Tracer abstracts distributed tracing so domain packages do not depend on
// OpenTelemetry's APIs directly.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Span is a single traced operation.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Attribute is a key/value pair attached to spans and events.
type Attribute struct {
	Key   string
	Value any
}

// String constructs a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int constructs an integer attribute.
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool constructs a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Float64 constructs a float attribute.
func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Noop returns a tracer that records nothing. Used as the default when no
// tracer is injected.
func Noop() Tracer {
	return noopTracer{}
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error)                        {}
func (noopSpan) SetAttributes(...Attribute)       {}
func (noopSpan) AddEvent(string, ...Attribute)    {}
