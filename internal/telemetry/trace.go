package telemetry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type traceKey struct{}

// TraceContext carries correlation IDs through the consolidation pipeline.
type TraceContext struct {
	JobID     string `json:"job_id"`
	TraceID   string `json:"trace_id"`
	SpanID    string `json:"span_id"`
	ParentID  string `json:"parent_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// NewTraceContext creates a root trace context with a fresh TraceID and SpanID.
func NewTraceContext(jobID string) *TraceContext {
	return &TraceContext{
		JobID:   jobID,
		TraceID: randomID(),
		SpanID:  randomID(),
	}
}

// ChildSpan creates a child trace context inheriting the TraceID and JobID.
func (tc *TraceContext) ChildSpan() *TraceContext {
	return &TraceContext{
		JobID:     tc.JobID,
		TraceID:   tc.TraceID,
		SpanID:    randomID(),
		ParentID:  tc.SpanID,
		UserID:    tc.UserID,
		SessionID: tc.SessionID,
	}
}

// WithUser returns a copy with the UserID set.
func (tc *TraceContext) WithUser(userID string) *TraceContext {
	child := *tc
	child.UserID = userID
	return &child
}

// WithSession returns a copy with the SessionID set.
func (tc *TraceContext) WithSession(sessionID string) *TraceContext {
	child := *tc
	child.SessionID = sessionID
	return &child
}

// Fields returns key-value pairs suitable for structured logging.
func (tc *TraceContext) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"job_id":   tc.JobID,
		"trace_id": tc.TraceID,
		"span_id":  tc.SpanID,
	}
	if tc.ParentID != "" {
		fields["parent_id"] = tc.ParentID
	}
	if tc.UserID != "" {
		fields["user"] = tc.UserID
	}
	if tc.SessionID != "" {
		fields["session"] = tc.SessionID
	}
	return fields
}

// ContextWithTrace stores a TraceContext in the context.
func ContextWithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceKey{}, tc)
}

// TraceFromContext extracts a TraceContext from the context, or nil.
func TraceFromContext(ctx context.Context) *TraceContext {
	tc, _ := ctx.Value(traceKey{}).(*TraceContext)
	return tc
}

// WithTrace returns a logger enriched with trace fields from the context.
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	tc := TraceFromContext(ctx)
	if tc == nil {
		return l
	}
	return l.WithFields(tc.Fields())
}

func randomID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
