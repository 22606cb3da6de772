package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/liftledger/internal/insights"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Options carries the configured insight defaults. Tool parameters override
// them per call.
type Options struct {
	DayStartHour int
	RollingWeeks int
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, opts Options, log *slog.Logger) *server.MCPServer {
	if opts.RollingWeeks <= 0 {
		opts.RollingWeeks = insights.DefaultRollingWeeks
	}

	s := server.NewMCPServer("LiftLedger", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("LiftLedger training data server. Query logged sets, plan adherence, per-machine progression, and muscle group balance. All data is scoped to the authenticated user."),
	)

	h := &handlers{ds: ds, opts: opts, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetDayAdherence, Handler: h.getDayAdherence},
		server.ServerTool{Tool: toolGetWeekAdherence, Handler: h.getWeekAdherence},
		server.ServerTool{Tool: toolGetProgression, Handler: h.getProgression},
		server.ServerTool{Tool: toolGetMuscleBalance, Handler: h.getMuscleBalance},
		server.ServerTool{Tool: toolGetWeeklyConsistency, Handler: h.getWeeklyConsistency},
		server.ServerTool{Tool: toolGetTrainingBuckets, Handler: h.getTrainingBuckets},
		server.ServerTool{Tool: toolListMachines, Handler: h.listMachines},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resToday, Handler: h.today},
		server.ServerResource{Resource: resWeekPlanProgress, Handler: h.weekPlanProgress},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds   DataSource
	opts Options
	log  *slog.Logger
}

// --- Resource definitions ---

var resToday = mcp.NewResource(
	"liftledger://today",
	"Today",
	mcp.WithResourceDescription("Adherence for the current training day: plan items, completed sets, and the matched set count"),
	mcp.WithMIMEType("application/json"),
)

var resWeekPlanProgress = mcp.NewResource(
	"liftledger://week_plan_progress",
	"Week Plan Progress",
	mcp.WithResourceDescription("Day-by-day adherence for the current training week against the active plan"),
	mcp.WithMIMEType("application/json"),
)
