// Package gateway implements the tool-call dispatcher.
//
// Handle runs a fixed sequence for every call: validate the request, verify
// the bearer token, look up the tool, validate arguments against its schema,
// authorize, and finally invoke the handler under a timeout. The first step
// that fails ends the call. Whatever the exit path, exactly one terminal
// event is reported to the telemetry sink.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth"
	"github.com/jamesprial/mcp-tool-gateway/internal/policy"
	"github.com/jamesprial/mcp-tool-gateway/internal/registry"
	"github.com/jamesprial/mcp-tool-gateway/internal/telemetry"
)

const (
	// DefaultTimeout bounds a handler when neither the tool nor Config sets one.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxConcurrency bounds in-flight handlers when Config leaves it unset.
	DefaultMaxConcurrency = 16

	// unknownToolLabel replaces unvalidated tool names in metrics labels.
	unknownToolLabel = "unknown"

	// maxEchoedName caps how much of an unknown tool name is echoed back or logged.
	maxEchoedName = 128

	tracerName = "github.com/jamesprial/mcp-tool-gateway/internal/gateway"

	internalErrorMessage = "internal error"
)

// Tools resolves tool names. *registry.Registry satisfies it.
type Tools interface {
	Lookup(name string) (*registry.Tool, bool)
}

// Authorizer decides whether a verified caller may make a call.
// *policy.Store satisfies it.
type Authorizer interface {
	Authorize(req policy.Request) policy.Decision
}

// Config tunes a Dispatcher. Zero values select defaults.
type Config struct {
	// DefaultTimeout bounds handlers whose tool has no timeout of its own.
	DefaultTimeout time.Duration

	// MaxConcurrency bounds handlers running at once across all callers.
	MaxConcurrency int

	Tracer trace.Tracer
	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

// Dispatcher executes tool calls.
type Dispatcher struct {
	verifier   auth.Verifier
	tools      Tools
	authorizer Authorizer
	sink       telemetry.Sink

	sem     *semaphore.Weighted
	timeout time.Duration
	tracer  trace.Tracer
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewDispatcher creates a dispatcher. All collaborators are required.
func NewDispatcher(verifier auth.Verifier, tools Tools, authorizer Authorizer, sink telemetry.Sink, cfg Config) *Dispatcher {
	if verifier == nil {
		panic("verifier cannot be nil")
	}
	if tools == nil {
		panic("tools cannot be nil")
	}
	if authorizer == nil {
		panic("authorizer cannot be nil")
	}
	if sink == nil {
		panic("sink cannot be nil")
	}

	d := &Dispatcher{
		verifier:   verifier,
		tools:      tools,
		authorizer: authorizer,
		sink:       sink,
		timeout:    cfg.DefaultTimeout,
		tracer:     cfg.Tracer,
		logger:     cfg.Logger,
		now:        cfg.Now,
		newID:      cfg.NewID,
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	limit := cfg.MaxConcurrency
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}
	d.sem = semaphore.NewWeighted(int64(limit))
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.newID == nil {
		d.newID = uuid.NewString
	}
	return d
}

// Handle runs one tool call to completion. It never returns nil and never
// panics on handler failure.
func (d *Dispatcher) Handle(ctx context.Context, req *ToolCallRequest) *ToolResult {
	c := &call{d: d, start: d.now(), tool: unknownToolLabel}
	if req != nil {
		c.id = req.ID
		c.requested = req.ToolName
	}
	if c.id == "" {
		c.id = RequestIDFromContext(ctx)
	}
	if c.id == "" {
		c.id = d.newID()
	}

	ctx, c.span = d.tracer.Start(ctx, "tools/call",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("mcp.request_id", c.id)),
	)
	defer c.span.End()

	// 1. Request shape.
	if req == nil {
		return c.fail(KindMalformedRequest, "request is missing or malformed", telemetry.EventMalformedRequest, nil)
	}
	if strings.TrimSpace(req.ToolName) == "" {
		return c.fail(KindMalformedRequest, "tool name is required", telemetry.EventMalformedRequest, nil)
	}
	if req.Arguments == nil {
		return c.fail(KindMalformedRequest, "arguments are required", telemetry.EventMalformedRequest, nil)
	}

	// 2. Authentication.
	claims, err := d.verifier.Verify(ctx, req.Token)
	if err != nil {
		return d.authFailure(ctx, c, err)
	}
	c.claims = claims

	// 3. Lookup.
	tool, ok := d.tools.Lookup(req.ToolName)
	if !ok {
		return c.fail(KindUnknownTool, fmt.Sprintf("unknown tool: %s", truncate(req.ToolName, maxEchoedName)), telemetry.EventUnknownTool, nil)
	}
	c.tool = tool.Name()

	// 4. Arguments.
	if err := tool.ValidateArguments(req.Arguments); err != nil {
		var details map[string]any
		var verr *registry.ValidationError
		if errors.As(err, &verr) {
			details = verr.Details()
		}
		c.details = details
		return c.fail(KindValidationError, "arguments do not match the tool input schema", telemetry.EventValidationFailed,
			map[string]any{"error": err.Error()})
	}

	// 5. Authorization.
	decision := d.authorizer.Authorize(policy.Request{
		Claims:     claims,
		Tool:       tool.Name(),
		Capability: tool.RequiredCapability(),
		Arguments:  req.Arguments,
	})
	if !decision.Allowed {
		return c.fail(KindForbidden, "not permitted: "+decision.Reason, telemetry.EventAuthzDenied,
			map[string]any{"reason": decision.Reason})
	}

	// 6. Invocation.
	return d.invoke(ctx, c, tool, req.Arguments)
}

func (d *Dispatcher) authFailure(ctx context.Context, c *call, err error) *ToolResult {
	fields := map[string]any{"error": err.Error()}
	if ctx.Err() != nil {
		return c.fail(KindCancelled, "request was cancelled", telemetry.EventCallCancelled, fields)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return c.fail(KindTimeout, "timed out fetching signing keys", telemetry.EventCallTimeout, fields)
	}

	reason, ok := auth.ReasonOf(err)
	if !ok {
		reason = auth.ReasonInvalidSignature
	}
	fields["reason"] = string(reason)
	return c.fail(KindUnauthorized, reason.Message(), telemetry.EventAuthFailed, fields)
}

type handlerOutcome struct {
	payload map[string]any
	err     error
	stack   []byte
}

// invoke runs the handler on its own goroutine so a handler that ignores
// cancellation cannot hold the caller past its deadline. The concurrency slot
// is released only when the handler actually returns.
func (d *Dispatcher) invoke(ctx context.Context, c *call, tool *registry.Tool, args map[string]any) *ToolResult {
	timeout := tool.Timeout()
	if timeout <= 0 {
		timeout = d.timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := d.sem.Acquire(runCtx, 1); err != nil {
		return d.interrupted(ctx, c, timeout)
	}

	done := make(chan handlerOutcome, 1)
	cc := registry.CallContext{RequestID: c.id, Claims: c.claims}
	go func() {
		defer d.sem.Release(1)
		done <- runHandler(runCtx, tool.Handler(), args, cc)
	}()

	out, ok := await(runCtx, done)
	if !ok {
		return d.interrupted(ctx, c, timeout)
	}
	if out.err == nil {
		return c.succeed(out.payload)
	}
	if runCtx.Err() != nil && (errors.Is(out.err, context.DeadlineExceeded) || errors.Is(out.err, context.Canceled)) {
		return d.interrupted(ctx, c, timeout)
	}
	if out.stack != nil {
		d.logger.Error("tool handler panicked",
			slog.String("tool", c.tool),
			slog.String("request_id", c.id),
			slog.String("panic", out.err.Error()),
			slog.String("stack", string(out.stack)),
		)
	}
	return c.fail(KindInternalError, internalErrorMessage, telemetry.EventCallFailed,
		map[string]any{"error": out.err.Error()})
}

// await waits for the handler's outcome until runCtx ends. An outcome that is
// already available when the deadline fires still wins.
func await(runCtx context.Context, done <-chan handlerOutcome) (handlerOutcome, bool) {
	select {
	case out := <-done:
		return out, true
	case <-runCtx.Done():
		select {
		case out := <-done:
			return out, true
		default:
			return handlerOutcome{}, false
		}
	}
}

// interrupted distinguishes a caller cancellation from an expired budget.
func (d *Dispatcher) interrupted(ctx context.Context, c *call, timeout time.Duration) *ToolResult {
	if ctx.Err() != nil {
		return c.fail(KindCancelled, "request was cancelled", telemetry.EventCallCancelled, nil)
	}
	return c.fail(KindTimeout, fmt.Sprintf("tool did not complete within %s", timeout), telemetry.EventCallTimeout,
		map[string]any{"timeout_ms": timeout.Milliseconds()})
}

func runHandler(ctx context.Context, h registry.Handler, args map[string]any, cc registry.CallContext) (out handlerOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = handlerOutcome{err: fmt.Errorf("panic: %v", r), stack: debug.Stack()}
		}
	}()
	payload, err := h(ctx, args, cc)
	return handlerOutcome{payload: payload, err: err}
}

// call tracks one Handle invocation and reports its single terminal event.
type call struct {
	d         *Dispatcher
	span      trace.Span
	start     time.Time
	id        string
	requested string
	tool      string
	claims    *auth.Claims
	details   map[string]any
	finished  bool
}

func (c *call) succeed(payload map[string]any) *ToolResult {
	return c.finish(success(c.id, payload), telemetry.EventCallSucceeded, nil)
}

func (c *call) fail(kind Kind, message, event string, fields map[string]any) *ToolResult {
	return c.finish(failure(c.id, kind, message, c.details), event, fields)
}

func (c *call) finish(result *ToolResult, event string, extra map[string]any) *ToolResult {
	if c.finished {
		panic("gateway: call finished twice")
	}
	c.finished = true

	duration := c.d.now().Sub(c.start)
	outcome := result.Outcome()

	fields := map[string]any{
		"request_id":  c.id,
		"tool":        c.tool,
		"outcome":     outcome,
		"duration_ms": duration.Milliseconds(),
	}
	if c.tool == unknownToolLabel && c.requested != "" {
		fields["requested_tool"] = truncate(c.requested, maxEchoedName)
	}
	if c.claims != nil {
		fields["subject"] = c.claims.Subject
		fields["roles"] = c.claims.Roles
	}
	for k, v := range extra {
		fields[k] = v
	}

	c.d.sink.RecordCall(c.tool, outcome, duration)
	c.d.sink.Log(event, fields)

	c.span.SetAttributes(
		attribute.String("mcp.tool", c.tool),
		attribute.String("mcp.outcome", outcome),
	)
	if result.Failure != nil {
		c.span.SetStatus(codes.Error, outcome)
	} else {
		c.span.SetStatus(codes.Ok, "")
	}
	return result
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
