// Package mcp exposes the cadence engine as Model Context Protocol tools
// over stdio, so coding agents can drive reviews and read the derived
// statistics.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cadencehq/cadence"
	"github.com/cadencehq/cadence/metrics"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with cadence tools.
type Server struct {
	client    *cadence.Client
	mcpServer *server.MCPServer
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo represents a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server with cadence tools registered.
func NewServer(client *cadence.Client) *Server {
	s := &Server{client: client}

	s.mcpServer = server.NewMCPServer(
		"cadence",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// Run starts the MCP server, reading from stdin and writing to stdout.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a raw JSON-RPC message and returns a response.
// This is primarily for testing the MCP protocol layer.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "cadence_review", Description: "Submit a card rating and get the updated schedule"},
		{Name: "cadence_due", Description: "List cards due for review"},
		{Name: "cadence_stats", Description: "Get the calibration summary for a period"},
		{Name: "cadence_audit", Description: "Check event-log consistency"},
		{Name: "cadence_health", Description: "Evaluate the health alert rules"},
	}
}

// CallTool executes a tool by name with the given arguments.
// This is used for testing and direct invocation.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case "cadence_review":
		return s.handleReview(ctx, args)
	case "cadence_due":
		return s.handleDue(ctx, args)
	case "cadence_stats":
		return s.handleStats(ctx, args)
	case "cadence_audit":
		return s.handleAudit(ctx, args)
	case "cadence_health":
		return s.handleHealth(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func (s *Server) registerTools() {
	// cadence_review
	s.mcpServer.AddTool(mcp.NewTool("cadence_review",
		mcp.WithDescription("Submit one rating for a card. Updates the card's memory state and returns the new stability, difficulty, and next review date."),
		mcp.WithString("user_id",
			mcp.Description("User the card belongs to"),
			mcp.Required(),
		),
		mcp.WithString("card_id",
			mcp.Description("Card being rated"),
			mcp.Required(),
		),
		mcp.WithNumber("rating",
			mcp.Description("Rating: 1=again, 2=hard, 3=good, 4=easy"),
			mcp.Required(),
		),
		mcp.WithNumber("review_time_ms",
			mcp.Description("Review duration in milliseconds"),
		),
		mcp.WithString("category_id",
			mcp.Description("Category the card belongs to"),
		),
	), s.mcpHandleReview)

	// cadence_due
	s.mcpServer.AddTool(mcp.NewTool("cadence_due",
		mcp.WithDescription("List the cards whose next review date has passed, soonest first."),
		mcp.WithString("user_id",
			mcp.Description("User to list due cards for"),
			mcp.Required(),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum cards to return (default: 20)"),
		),
	), s.mcpHandleDue)

	// cadence_stats
	s.mcpServer.AddTool(mcp.NewTool("cadence_stats",
		mcp.WithDescription("Get the calibration summary for the trailing period: recall rate, predicted recall, Brier score, and deltas against the previous period."),
		mcp.WithString("user_id",
			mcp.Description("User to summarize"),
			mcp.Required(),
		),
		mcp.WithNumber("period_days",
			mcp.Description("Period length in days (default: 7)"),
		),
		mcp.WithString("category_id",
			mcp.Description("Restrict the summary to one category"),
		),
	), s.mcpHandleStats)

	// cadence_audit
	s.mcpServer.AddTool(mcp.NewTool("cadence_audit",
		mcp.WithDescription("Cross-check the journey-event log against the review log and report the mismatch rate with its health classification."),
		mcp.WithString("user_id",
			mcp.Description("User to audit"),
			mcp.Required(),
		),
		mcp.WithNumber("window_days",
			mcp.Description("Audit window in days (default: 30)"),
		),
	), s.mcpHandleAudit)

	// cadence_health
	s.mcpServer.AddTool(mcp.NewTool("cadence_health",
		mcp.WithDescription("Evaluate the health alert rule catalog against the latest snapshot. Auth refresh statistics may be passed in when an auth subsystem is attached."),
		mcp.WithString("user_id",
			mcp.Description("User to evaluate"),
			mcp.Required(),
		),
		mcp.WithNumber("refresh_failures",
			mcp.Description("Auth token refresh failure count"),
		),
		mcp.WithNumber("refresh_attempts",
			mcp.Description("Auth token refresh attempt count"),
		),
		mcp.WithNumber("reuse_detected",
			mcp.Description("Auth token reuse detection count"),
		),
	), s.mcpHandleHealth)
}

// MCP handlers that wrap internal handlers

func (s *Server) mcpHandleReview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleReview(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func (s *Server) mcpHandleDue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleDue(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func (s *Server) mcpHandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleStats(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func (s *Server) mcpHandleAudit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleAudit(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func (s *Server) mcpHandleHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleHealth(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: r.Content,
			},
		},
	}
	if r.IsError {
		result.IsError = true
	}
	return result
}

// Internal handlers

func (s *Server) handleReview(ctx context.Context, args map[string]any) (*ToolResult, error) {
	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return &ToolResult{Content: "user_id is required", IsError: true}, nil
	}
	cardID, ok := args["card_id"].(string)
	if !ok || cardID == "" {
		return &ToolResult{Content: "card_id is required", IsError: true}, nil
	}
	rating, ok := args["rating"].(float64)
	if !ok {
		return &ToolResult{Content: "rating is required", IsError: true}, nil
	}

	params := cadence.SubmitParams{
		UserID: userID,
		CardID: cardID,
		Rating: cadence.Rating(int(rating)),
	}
	if ms, ok := args["review_time_ms"].(float64); ok {
		params.ReviewTimeMs = int(ms)
	}
	if cat, ok := args["category_id"].(string); ok {
		params.CategoryID = cat
	}

	result, err := s.client.SubmitReview(ctx, params)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("review failed: %v", err), IsError: true}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Card %s rated %s.\n", cardID, params.Rating)
	fmt.Fprintf(&b, "Stability: %.2f days\n", result.NewState.Stability)
	fmt.Fprintf(&b, "Difficulty: %.2f\n", result.NewState.Difficulty)
	fmt.Fprintf(&b, "Pre-review recall estimate: %.1f%%\n", result.RetrievabilityBefore*100)
	fmt.Fprintf(&b, "Next review: %s (%.1f days)", result.NewState.NextReviewAt.Format("2006-01-02"), result.NextIntervalDays)
	return &ToolResult{Content: b.String()}, nil
}

func (s *Server) handleDue(ctx context.Context, args map[string]any) (*ToolResult, error) {
	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return &ToolResult{Content: "user_id is required", IsError: true}, nil
	}

	limit := 20
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	states, err := s.client.Due(userID, limit)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("due lookup failed: %v", err), IsError: true}, nil
	}

	if len(states) == 0 {
		return &ToolResult{Content: "No cards due."}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d cards due:\n", len(states))
	for _, st := range states {
		fmt.Fprintf(&b, "- %s (due %s, stability %.1fd, %s)\n",
			st.CardID, st.NextReviewAt.Format("2006-01-02"), st.Stability, st.ReviewState)
	}
	return &ToolResult{Content: strings.TrimRight(b.String(), "\n")}, nil
}

func (s *Server) handleStats(ctx context.Context, args map[string]any) (*ToolResult, error) {
	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return &ToolResult{Content: "user_id is required", IsError: true}, nil
	}

	periodDays := 7
	if p, ok := args["period_days"].(float64); ok && p > 0 {
		periodDays = int(p)
	}

	var (
		summary *metrics.Summary
		err     error
	)
	if cat, ok := args["category_id"].(string); ok && cat != "" {
		summary, err = s.client.CategorySummary(userID, cat, periodDays)
	} else {
		summary, err = s.client.Summary(userID, periodDays)
	}
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("stats failed: %v", err), IsError: true}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last %d days (vs previous %d):\n", periodDays, periodDays)
	fmt.Fprintf(&b, "Reviews: %d (%+d)\n", summary.Current.ReviewCount, summary.Deltas.ReviewCount)
	fmt.Fprintf(&b, "Recall rate: %.1f%% (%+.1f)\n",
		summary.Current.ObservedRecallRate*100, summary.Deltas.ObservedRecallRate*100)
	fmt.Fprintf(&b, "Predicted recall: %.1f%%\n", summary.Current.AvgPredictedRecall*100)
	fmt.Fprintf(&b, "Brier score: %.4f (%+.4f)\n", summary.Current.AvgBrierScore, summary.Deltas.AvgBrierScore)
	fmt.Fprintf(&b, "Reliability: %s", summary.Current.Reliability)
	return &ToolResult{Content: b.String()}, nil
}

func (s *Server) handleAudit(ctx context.Context, args map[string]any) (*ToolResult, error) {
	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return &ToolResult{Content: "user_id is required", IsError: true}, nil
	}

	windowDays := 30
	if w, ok := args["window_days"].(float64); ok && w > 0 {
		windowDays = int(w)
	}

	report, err := s.client.Audit(userID, windowDays, 10)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("audit failed: %v", err), IsError: true}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Event log audit over %d days:\n", windowDays)
	fmt.Fprintf(&b, "Reviews: %d, journey events: %d\n", report.ReviewLogCount, report.JourneyEventCount)
	fmt.Fprintf(&b, "Missing: %d, duplicates: %d, ordering issues: %d\n",
		report.MissingCount, report.DuplicateCount, report.OrderingIssueCount)
	fmt.Fprintf(&b, "Mismatch rate: %.2f%%\n", report.MismatchRate*100)
	fmt.Fprintf(&b, "Health: %s", report.HealthLevel)
	return &ToolResult{Content: b.String()}, nil
}

func (s *Server) handleHealth(ctx context.Context, args map[string]any) (*ToolResult, error) {
	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return &ToolResult{Content: "user_id is required", IsError: true}, nil
	}

	var auth cadence.AuthStats
	if v, ok := args["refresh_failures"].(float64); ok {
		auth.RefreshFailureCount = int(v)
	}
	if v, ok := args["refresh_attempts"].(float64); ok {
		auth.RefreshAttemptCount = int(v)
	}
	if v, ok := args["reuse_detected"].(float64); ok {
		auth.ReuseDetectedCount = int(v)
	}

	result, err := s.client.Health(userID, auth)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("health evaluation failed: %v", err), IsError: true}, nil
	}

	var b strings.Builder
	b.WriteString("Health alerts:\n")
	for _, alert := range result.Alerts {
		status := "ok"
		if alert.Triggered {
			status = string(alert.Severity)
		}
		fmt.Fprintf(&b, "- %s: %s (value %.4f, threshold %.4f)\n",
			alert.ID, status, alert.Value, alert.Threshold)
	}
	if result.HighestSeverity != "" {
		fmt.Fprintf(&b, "Highest severity: %s", result.HighestSeverity)
	} else {
		b.WriteString("All clear.")
	}
	return &ToolResult{Content: b.String()}, nil
}
