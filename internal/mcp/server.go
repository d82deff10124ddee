// Package mcp implements the Model Context Protocol server for brain-access.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ajitpratap0/brain-access/internal/brainaccess"
	"github.com/ajitpratap0/brain-access/internal/catalog"
	"github.com/ajitpratap0/brain-access/internal/entitlement"
	"github.com/ajitpratap0/brain-access/internal/models"
	"github.com/ajitpratap0/brain-access/internal/quota"
	"github.com/ajitpratap0/brain-access/internal/sharing"
	"github.com/ajitpratap0/brain-access/internal/store"
)

// Server wraps an MCPServer with brain-access dependencies.
type Server struct {
	mcp      *mcpserver.MCPServer
	engine   entitlement.Engine
	users    store.UserStore
	checker  *quota.Checker
	workflow *brainaccess.Workflow
	logger   *slog.Logger
}

// NewServer creates a new MCP server. If users, checker or wf are nil, the
// tool calls needing them return an error response instead of panicking.
// Catalog tools always work.
func NewServer(users store.UserStore, checker *quota.Checker, wf *brainaccess.Workflow, logger *slog.Logger) *Server {
	s := &Server{
		engine:   entitlement.NewEngine(),
		users:    users,
		checker:  checker,
		workflow: wf,
		logger:   logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"brain-access",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildListPlansTool(), s.handleListPlans)
	mcpSrv.AddTool(buildCheckFeatureTool(), s.handleCheckFeature)
	mcpSrv.AddTool(buildSharingOptionsTool(), s.handleSharingOptions)
	mcpSrv.AddTool(buildUserContextTool(), s.handleUserContext)
	mcpSrv.AddTool(buildUploadQuotaTool(), s.handleUploadQuota)
	mcpSrv.AddTool(buildBrainAccessStatusTool(), s.handleBrainAccessStatus)
	mcpSrv.AddTool(buildRequestBrainAccessTool(), s.handleRequestBrainAccess)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleListPlans is the exported handler for the "list_plans" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleListPlans(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleListPlans(ctx, req)
}

// HandleCheckFeature is the exported handler for the "check_feature" tool.
func (s *Server) HandleCheckFeature(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleCheckFeature(ctx, req)
}

// HandleSharingOptions is the exported handler for the "sharing_options" tool.
func (s *Server) HandleSharingOptions(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleSharingOptions(ctx, req)
}

// HandleUserContext is the exported handler for the "user_context" tool.
func (s *Server) HandleUserContext(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleUserContext(ctx, req)
}

// HandleUploadQuota is the exported handler for the "upload_quota" tool.
func (s *Server) HandleUploadQuota(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleUploadQuota(ctx, req)
}

// HandleBrainAccessStatus is the exported handler for the "brain_access_status" tool.
func (s *Server) HandleBrainAccessStatus(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleBrainAccessStatus(ctx, req)
}

// HandleRequestBrainAccess is the exported handler for the "request_brain_access" tool.
func (s *Server) HandleRequestBrainAccess(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleRequestBrainAccess(ctx, req)
}

// --- helpers ---

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// requiredString returns the trimmed argument or an error result.
func requiredString(req mcpgo.CallToolRequest, name string) (string, *mcpgo.CallToolResult) {
	v := strings.TrimSpace(req.GetString(name, ""))
	if v == "" {
		return "", mcpgo.NewToolResultErrorf("%s is required and must not be empty", name)
	}
	return v, nil
}

// --- tool definitions ---

func buildListPlansTool() mcpgo.Tool {
	return mcpgo.NewTool("list_plans",
		mcpgo.WithDescription("List subscription plans in rank order with their quotas and features."),
	)
}

func buildCheckFeatureTool() mcpgo.Tool {
	return mcpgo.NewTool("check_feature",
		mcpgo.WithDescription("Check whether a plan grants a feature, and which plan would unlock it."),
		mcpgo.WithString("plan",
			mcpgo.Required(),
			mcpgo.Description("Plan: free, solo, team, or enterprise"),
		),
		mcpgo.WithString("feature",
			mcpgo.Required(),
			mcpgo.Description("Feature key, e.g. upload_photos or organization_sharing"),
		),
	)
}

func buildSharingOptionsTool() mcpgo.Tool {
	return mcpgo.NewTool("sharing_options",
		mcpgo.WithDescription("Get the sharing destinations a plan may use and whether community is forced."),
		mcpgo.WithString("plan",
			mcpgo.Required(),
			mcpgo.Description("Plan: free, solo, team, or enterprise"),
		),
	)
}

func buildUserContextTool() mcpgo.Tool {
	return mcpgo.NewTool("user_context",
		mcpgo.WithDescription("Resolve a user's plan, features, sharing policy and limits."),
		mcpgo.WithString("user_id",
			mcpgo.Required(),
			mcpgo.Description("The user ID"),
		),
	)
}

func buildUploadQuotaTool() mcpgo.Tool {
	return mcpgo.NewTool("upload_quota",
		mcpgo.WithDescription("Check whether a user may upload now and how many uploads remain this period."),
		mcpgo.WithString("user_id",
			mcpgo.Required(),
			mcpgo.Description("The user ID"),
		),
	)
}

func buildBrainAccessStatusTool() mcpgo.Tool {
	return mcpgo.NewTool("brain_access_status",
		mcpgo.WithDescription("Get a user's Brain provisioning status: none, requested, approved, or rejected."),
		mcpgo.WithString("user_id",
			mcpgo.Required(),
			mcpgo.Description("The user ID"),
		),
	)
}

func buildRequestBrainAccessTool() mcpgo.Tool {
	return mcpgo.NewTool("request_brain_access",
		mcpgo.WithDescription("Request Brain provisioning for a user. Fails if a request is already on record."),
		mcpgo.WithString("user_id",
			mcpgo.Required(),
			mcpgo.Description("The user ID"),
		),
		mcpgo.WithString("name",
			mcpgo.Required(),
			mcpgo.Description("Requester display name"),
		),
		mcpgo.WithString("email",
			mcpgo.Required(),
			mcpgo.Description("Requester email address"),
		),
		mcpgo.WithString("organization",
			mcpgo.Description("Requester organization"),
		),
	)
}

// --- tool handlers ---

func (s *Server) handleListPlans(_ context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	type planEntry struct {
		catalog.PlanInfo
		Features []models.Feature `json:"features"`
	}
	plans := catalog.Plans()
	out := make([]planEntry, 0, len(plans))
	for _, p := range plans {
		out = append(out, planEntry{PlanInfo: p, Features: catalog.FeaturesFor(p.Plan)})
	}
	return toolResultJSON(map[string]any{"plans": out})
}

func (s *Server) handleCheckFeature(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	plan, errResult := requiredString(req, "plan")
	if errResult != nil {
		return errResult, nil
	}
	feature, errResult := requiredString(req, "feature")
	if errResult != nil {
		return errResult, nil
	}

	result := map[string]any{
		"plan":        plan,
		"feature":     feature,
		"allowed":     s.engine.HasFeatureAccess(plan, feature),
		"can_upgrade": s.engine.CanUpgradeForFeature(plan, feature),
	}
	if required, ok := s.engine.RequiredPlan(feature); ok {
		result["required_plan"] = required
	}
	if p, ok := s.engine.UpgradePrompt(plan, feature); ok {
		result["upgrade_prompt"] = p
	}
	return toolResultJSON(result)
}

func (s *Server) handleSharingOptions(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	plan, errResult := requiredString(req, "plan")
	if errResult != nil {
		return errResult, nil
	}
	opts := sharing.ForPlan(plan)
	return toolResultJSON(map[string]any{
		"plan":         plan,
		"options":      opts,
		"destinations": opts.Destinations(),
	})
}

func (s *Server) handleUserContext(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.users == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}
	userID, errResult := requiredString(req, "user_id")
	if errResult != nil {
		return errResult, nil
	}
	c, err := entitlement.ContextForUser(ctx, s.users, userID)
	if err != nil {
		s.logger.Warn("mcp: user_context on degraded state", "user_id", userID, "error", err)
	}
	return toolResultJSON(map[string]any{"context": c, "degraded": err != nil})
}

func (s *Server) handleUploadQuota(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.checker == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}
	userID, errResult := requiredString(req, "user_id")
	if errResult != nil {
		return errResult, nil
	}
	d, err := s.checker.Check(ctx, userID)
	if err != nil {
		s.logger.Warn("mcp: upload_quota on degraded state", "user_id", userID, "error", err)
	}
	return toolResultJSON(d)
}

func (s *Server) handleBrainAccessStatus(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.workflow == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}
	userID, errResult := requiredString(req, "user_id")
	if errResult != nil {
		return errResult, nil
	}
	rec, err := s.workflow.GetStatus(ctx, userID)
	return toolResultJSON(map[string]any{"brain_access": rec, "degraded": err != nil})
}

func (s *Server) handleRequestBrainAccess(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.workflow == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}
	userID, errResult := requiredString(req, "user_id")
	if errResult != nil {
		return errResult, nil
	}
	name, errResult := requiredString(req, "name")
	if errResult != nil {
		return errResult, nil
	}
	email, errResult := requiredString(req, "email")
	if errResult != nil {
		return errResult, nil
	}
	if !strings.Contains(email, "@") {
		return mcpgo.NewToolResultErrorf("invalid email %q", email), nil
	}

	res, err := s.workflow.RequestAccess(ctx, userID, models.RequesterInfo{
		Name:         name,
		Email:        email,
		Organization: req.GetString("organization", ""),
	})
	if err != nil {
		var already *brainaccess.AlreadyRequestedError
		if errors.As(err, &already) {
			return mcpgo.NewToolResultErrorf("brain access already %s for this user", already.Status), nil
		}
		return mcpgo.NewToolResultErrorf("request failed: %s", err.Error()), nil
	}

	s.logger.Info("mcp: brain access requested", "user_id", userID, "request_id", res.Request.RequestID)
	return toolResultJSON(res)
}
