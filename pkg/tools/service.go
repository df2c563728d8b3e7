// Package tools exposes the knowledge base as named tool operations. Every
// operation validates its parameters, reads one immutable snapshot and
// returns either a result or an *Error.
package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dd0wney/cluso-attackgraph/pkg/loader"
	"github.com/dd0wney/cluso-attackgraph/pkg/logging"
	"github.com/dd0wney/cluso-attackgraph/pkg/metrics"
	"github.com/dd0wney/cluso-attackgraph/pkg/model"
	"github.com/dd0wney/cluso-attackgraph/pkg/snapshot"
	"github.com/dd0wney/cluso-attackgraph/pkg/validation"
)

// Options configures a Service
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Registry
	Tracer  trace.Tracer

	// Mode controls reads that arrive during the first load
	Mode loader.Mode

	// DefaultDepth is used when a relationship request omits depth
	DefaultDepth int
}

// Service runs tool operations against the manager's current snapshot
type Service struct {
	manager      *loader.Manager
	logger       logging.Logger
	metrics      *metrics.Registry
	tracer       trace.Tracer
	mode         loader.Mode
	defaultDepth int
}

// NewService creates a tool service bound to manager
func NewService(manager *loader.Manager, opts Options) *Service {
	s := &Service{
		manager:      manager,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		tracer:       opts.Tracer,
		mode:         opts.Mode,
		defaultDepth: opts.DefaultDepth,
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	s.logger = s.logger.With(logging.Component("tools"))
	if s.tracer == nil {
		s.tracer = otel.Tracer("github.com/dd0wney/cluso-attackgraph/pkg/tools")
	}
	if s.defaultDepth < validation.MinDepth || s.defaultDepth > validation.MaxDepth {
		s.defaultDepth = validation.DefaultDepth
	}
	return s
}

// Manager returns the manager the service reads from
func (s *Service) Manager() *loader.Manager {
	return s.manager
}

// invoke wraps one operation with a span, metrics, panic recovery and error
// classification. The returned error is always nil or an *Error.
func invoke[T any](ctx context.Context, s *Service, tool string, fn func(context.Context) (T, error)) (result T, err error) {
	ctx, span := s.tracer.Start(ctx, "tool."+tool, trace.WithAttributes(attribute.String("tool.name", tool)))
	start := time.Now()
	if s.metrics != nil {
		s.metrics.ToolCallsInFlight.Inc()
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool panicked",
				logging.Tool(tool),
				logging.Any("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
			)
			var zero T
			result = zero
			err = model.NewError(tool).Cause(fmt.Errorf("internal error: %v", r)).Err()
		}

		outcome := "ok"
		if err != nil {
			te := AsError(err)
			err = te
			outcome = string(te.Kind)
			span.RecordError(te)
			span.SetStatus(codes.Error, te.Message)
			span.SetAttributes(attribute.String("error.kind", outcome))
			if te.Kind == model.KindInternal {
				s.logger.Error("tool call failed", logging.Tool(tool), logging.Error(te))
			} else {
				s.logger.Debug("tool call rejected", logging.Tool(tool), logging.Error(te))
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}

		if s.metrics != nil {
			s.metrics.ToolCallsInFlight.Dec()
			s.metrics.RecordToolCall(tool, outcome, time.Since(start))
		}
		span.End()
	}()

	return fn(ctx)
}

// snapshot acquires the current snapshot and tags the active span with its id
func (s *Service) snapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	snap, err := s.manager.Snapshot(ctx, s.mode)
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("snapshot.id", snap.ID))
	return snap, nil
}
