package types

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	if _, ok := RequestID(ctx); ok {
		t.Fatalf("empty context must not carry a request id")
	}

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithReviewerID(ctx, "rev-7")
	ctx = WithReviewerName(ctx, "Dana Vet")
	ctx = WithRoles(ctx, []string{"reviewer", "admin"})

	if v, ok := RequestID(ctx); !ok || v != "req-1" {
		t.Fatalf("request id: got %q, %v", v, ok)
	}
	if v, ok := ReviewerID(ctx); !ok || v != "rev-7" {
		t.Fatalf("reviewer id: got %q, %v", v, ok)
	}
	if v, ok := ReviewerName(ctx); !ok || v != "Dana Vet" {
		t.Fatalf("reviewer name: got %q, %v", v, ok)
	}
	if roles, ok := Roles(ctx); !ok || len(roles) != 2 {
		t.Fatalf("roles: got %v, %v", roles, ok)
	}
	if v, ok := RequestID(WithRequestID(context.Background(), "")); ok || v != "" {
		t.Fatalf("blank value must read as absent")
	}
}
