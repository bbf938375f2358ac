package telemetry

import (
	"context"
	"testing"
)

func TestTraceContext_NewAndChild(t *testing.T) {
	root := NewTraceContext("job-123")

	if root.JobID != "job-123" {
		t.Errorf("expected JobID 'job-123', got %q", root.JobID)
	}
	if root.TraceID == "" {
		t.Error("expected non-empty TraceID")
	}
	if root.SpanID == "" {
		t.Error("expected non-empty SpanID")
	}
	if root.ParentID != "" {
		t.Error("expected empty ParentID for root")
	}

	child := root.ChildSpan()
	if child.TraceID != root.TraceID {
		t.Error("child should inherit TraceID")
	}
	if child.ParentID != root.SpanID {
		t.Error("child ParentID should be parent's SpanID")
	}
	if child.SpanID == root.SpanID {
		t.Error("child should have a different SpanID")
	}
}

func TestTraceContext_WithUserSession(t *testing.T) {
	tc := NewTraceContext("job-1")
	withUser := tc.WithUser("user-7")
	withSession := withUser.WithSession("sess-42")

	if withUser.UserID != "user-7" {
		t.Errorf("expected user 'user-7', got %q", withUser.UserID)
	}
	if withSession.SessionID != "sess-42" {
		t.Errorf("expected session 'sess-42', got %q", withSession.SessionID)
	}
	// Original unchanged
	if tc.UserID != "" {
		t.Error("original should not be modified")
	}
}

func TestTraceContext_ContextPropagation(t *testing.T) {
	tc := NewTraceContext("job-2")
	ctx := ContextWithTrace(context.Background(), tc)

	extracted := TraceFromContext(ctx)
	if extracted == nil {
		t.Fatal("expected trace in context")
	}
	if extracted.JobID != "job-2" {
		t.Errorf("expected JobID 'job-2', got %q", extracted.JobID)
	}

	// nil context returns nil
	if TraceFromContext(context.Background()) != nil {
		t.Error("expected nil trace from empty context")
	}
}

func TestTraceContext_Fields(t *testing.T) {
	tc := NewTraceContext("job-3")
	tc = tc.WithUser("user-1").WithSession("sess-1")

	fields := tc.Fields()
	if fields["job_id"] != "job-3" {
		t.Error("expected job_id in fields")
	}
	if fields["user"] != "user-1" {
		t.Error("expected user in fields")
	}
	if fields["session"] != "sess-1" {
		t.Error("expected session in fields")
	}
}

func TestLogger_WithTrace(t *testing.T) {
	logger := NewLogger(true)
	tc := NewTraceContext("job-4")
	ctx := ContextWithTrace(context.Background(), tc)

	traced := logger.WithTrace(ctx)
	if traced == nil {
		t.Fatal("expected non-nil logger")
	}

	// Should not panic with nil trace
	noTrace := logger.WithTrace(context.Background())
	if noTrace == nil {
		t.Fatal("expected non-nil logger even without trace")
	}
}
