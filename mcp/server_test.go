package mcp

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cadencehq/cadence"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	client, err := cadence.New(cadence.Config{
		DBPath: filepath.Join(t.TempDir(), "cadence.db"),
	})
	if err != nil {
		t.Fatalf("New client failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewServer(client)
}

func TestListTools(t *testing.T) {
	server := newTestServer(t)

	tools := server.ListTools()
	if len(tools) != 5 {
		t.Fatalf("got %d tools, want 5", len(tools))
	}

	want := []string{"cadence_review", "cadence_due", "cadence_stats", "cadence_audit", "cadence_health"}
	for i, name := range want {
		if tools[i].Name != name {
			t.Errorf("tool %d = %s, want %s", i, tools[i].Name, name)
		}
		if tools[i].Description == "" {
			t.Errorf("tool %s has no description", name)
		}
	}
}

func TestCallTool_UnknownTool(t *testing.T) {
	server := newTestServer(t)

	result, err := server.CallTool(context.Background(), "cadence_nope", nil)
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if !result.IsError {
		t.Error("unknown tool did not return IsError")
	}
	if !strings.Contains(result.Content, "unknown tool") {
		t.Errorf("Content = %q, want mention of unknown tool", result.Content)
	}
}

func TestCallTool_Review(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, err := server.CallTool(ctx, "cadence_review", map[string]any{
		"user_id": "alice",
		"card_id": "card-1",
		"rating":  float64(3),
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("review errored: %s", result.Content)
	}
	if !strings.Contains(result.Content, "Stability:") {
		t.Errorf("Content = %q, want stability line", result.Content)
	}
	if !strings.Contains(result.Content, "Next review:") {
		t.Errorf("Content = %q, want next review line", result.Content)
	}
}

func TestCallTool_Review_MissingArgs(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	cases := []struct {
		name string
		args map[string]any
		want string
	}{
		{"no user", map[string]any{"card_id": "c", "rating": float64(3)}, "user_id is required"},
		{"no card", map[string]any{"user_id": "u", "rating": float64(3)}, "card_id is required"},
		{"no rating", map[string]any{"user_id": "u", "card_id": "c"}, "rating is required"},
	}
	for _, tc := range cases {
		result, err := server.CallTool(ctx, "cadence_review", tc.args)
		if err != nil {
			t.Fatalf("%s: CallTool failed: %v", tc.name, err)
		}
		if !result.IsError || !strings.Contains(result.Content, tc.want) {
			t.Errorf("%s: result = %+v, want error containing %q", tc.name, result, tc.want)
		}
	}
}

func TestCallTool_Review_InvalidRating(t *testing.T) {
	server := newTestServer(t)

	result, err := server.CallTool(context.Background(), "cadence_review", map[string]any{
		"user_id": "alice",
		"card_id": "card-1",
		"rating":  float64(9),
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if !result.IsError {
		t.Errorf("rating 9 accepted: %s", result.Content)
	}
}

func TestCallTool_Due(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, err := server.CallTool(ctx, "cadence_due", map[string]any{"user_id": "alice"})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("due errored: %s", result.Content)
	}
	if result.Content != "No cards due." {
		t.Errorf("Content = %q, want no cards due on empty store", result.Content)
	}
}

func TestCallTool_Stats(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	if _, err := server.CallTool(ctx, "cadence_review", map[string]any{
		"user_id": "alice", "card_id": "c1", "rating": float64(3),
	}); err != nil {
		t.Fatalf("seed review failed: %v", err)
	}

	result, err := server.CallTool(ctx, "cadence_stats", map[string]any{"user_id": "alice"})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("stats errored: %s", result.Content)
	}
	if !strings.Contains(result.Content, "Reviews: 1") {
		t.Errorf("Content = %q, want review count 1", result.Content)
	}

	// An unknown category is a tool error, not empty stats.
	result, err = server.CallTool(ctx, "cadence_stats", map[string]any{
		"user_id": "alice", "category_id": "nope",
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if !result.IsError {
		t.Errorf("unknown category did not error: %s", result.Content)
	}
}

func TestCallTool_Audit(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	if _, err := server.CallTool(ctx, "cadence_review", map[string]any{
		"user_id": "alice", "card_id": "c1", "rating": float64(3),
	}); err != nil {
		t.Fatalf("seed review failed: %v", err)
	}

	result, err := server.CallTool(ctx, "cadence_audit", map[string]any{"user_id": "alice"})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("audit errored: %s", result.Content)
	}
	if !strings.Contains(result.Content, "Health: healthy") {
		t.Errorf("Content = %q, want healthy classification", result.Content)
	}
}

func TestCallTool_Health(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, err := server.CallTool(ctx, "cadence_health", map[string]any{
		"user_id":        "alice",
		"reuse_detected": float64(1),
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("health errored: %s", result.Content)
	}
	if !strings.Contains(result.Content, "Highest severity: critical") {
		t.Errorf("Content = %q, want critical severity from token reuse", result.Content)
	}
}
