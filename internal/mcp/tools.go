package mcp

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/liftledger/internal/insights"
	"github.com/claude/liftledger/internal/models"
)

// defaultTimeRange returns start/end defaulting to the last 7 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -7)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

func parseSetTypesCSV(raw string) []models.SetType {
	if raw == "" {
		return nil
	}
	var types []models.SetType
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			types = append(types, models.SetType(part))
		}
	}
	return types
}

// --- Tool definitions ---

var toolGetDayAdherence = mcp.NewTool("get_day_adherence",
	mcp.WithDescription("Score one training day against the active plan: planned vs completed sets per item, completion ratio, and the raw matched set count."),
	mcp.WithString("day", mcp.Description("Day key (YYYY-MM-DD). Defaults to the current training day.")),
	mcp.WithNumber("day_start_hour", mcp.Description("Hour (0-23) at which a training day begins. Defaults to the configured boundary.")),
)

var toolGetWeekAdherence = mcp.NewTool("get_week_adherence",
	mcp.WithDescription("Day-by-day adherence for the Monday-anchored week containing the anchor date, plus week totals and the completion mode (set targets vs exercise touch)."),
	mcp.WithString("anchor", mcp.Description("Any date inside the week (YYYY-MM-DD). Defaults to today.")),
	mcp.WithNumber("day_start_hour", mcp.Description("Hour (0-23) at which a training day begins. Defaults to the configured boundary.")),
)

var toolGetProgression = mcp.NewTool("get_progression",
	mcp.WithDescription("Per-session metrics series for one machine: volume, top set, estimated 1RM, and hard sets per training session."),
	mcp.WithString("machine", mcp.Required(), mcp.Description("Machine ID or movement name (e.g. 'Bench Press')")),
	mcp.WithString("set_types", mcp.Description("Comma-separated set types to include (e.g. 'working,top'). Defaults to all.")),
	mcp.WithString("window", mcp.Description("Trend window. Defaults to the full history."), mcp.Enum("1d", "1w", "1m")),
)

var toolGetMuscleBalance = mcp.NewTool("get_muscle_balance",
	mcp.WithDescription("Normalized workload per muscle group plus the entropy-based balance index. Includes a warning when the sample is too small to be meaningful."),
)

var toolGetWeeklyConsistency = mcp.NewTool("get_weekly_consistency",
	mcp.WithDescription("Training days per week over a rolling window of full weeks, plus the current partial week."),
	mcp.WithNumber("weeks", mcp.Description("Number of full weeks to look back. Defaults to the configured window.")),
)

var toolGetTrainingBuckets = mcp.NewTool("get_training_buckets",
	mcp.WithDescription("Logged sets grouped into training sessions, with per-machine breakdowns. Sessions are explicit buckets where tagged, calendar days otherwise."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Omit both dates for the full history.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now when start is given.")),
)

var toolListMachines = mcp.NewTool("list_machines",
	mcp.WithDescription("List the equipment library: movement names, muscle groups, and equipment types."),
)

// --- Shared fetch helpers ---

func (h *handlers) dayStartHour(req mcp.CallToolRequest) int {
	return insights.NormalizeDayStartHour(req.GetInt("day_start_hour", h.opts.DayStartHour))
}

func (h *handlers) history(ctx context.Context, uid int) ([]models.LoggedSet, []models.Machine, error) {
	sets, err := h.ds.QueryLoggedSets(ctx, uid)
	if err != nil {
		return nil, nil, err
	}
	machines, err := h.ds.ListMachines(ctx, uid)
	if err != nil {
		return nil, nil, err
	}
	return sets, machines, nil
}

// activePlan loads the user's active plan days and items. No active plan is
// not an error: adherence over an empty plan is still well defined.
func (h *handlers) activePlan(ctx context.Context, uid int) ([]models.PlanDay, []models.PlanItem, error) {
	planID, ok, err := h.ds.ActivePlanID(ctx, uid)
	if err != nil || !ok {
		return nil, nil, err
	}
	days, err := h.ds.ListPlanDays(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	items, err := h.ds.ListPlanItems(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	return days, items, nil
}

// planForDayKey resolves the plan day scheduled for the given day key.
func (h *handlers) planForDayKey(ctx context.Context, uid int, dayKey string) (models.PlanDay, []models.PlanItem, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(dayKey))
	if err != nil {
		return models.PlanDay{}, nil, nil
	}

	days, _, planErr := h.activePlan(ctx, uid)
	if planErr != nil {
		return models.PlanDay{}, nil, planErr
	}
	for _, day := range days {
		if day.Weekday == parsed.Weekday() {
			items, err := h.ds.ListPlanItemsForDay(ctx, day.ID)
			if err != nil {
				return models.PlanDay{}, nil, err
			}
			return day, items, nil
		}
	}
	return models.PlanDay{}, nil, nil
}

// resolveMachine accepts a machine ID or a movement name (case-insensitive).
func (h *handlers) resolveMachine(ctx context.Context, uid int, ref string) (models.Machine, bool, error) {
	machines, err := h.ds.ListMachines(ctx, uid)
	if err != nil {
		return models.Machine{}, false, err
	}
	if id, err := uuid.Parse(ref); err == nil {
		for _, m := range machines {
			if m.ID == id {
				return m, true, nil
			}
		}
		return models.Machine{}, false, nil
	}
	for _, m := range machines {
		if strings.EqualFold(m.Movement, ref) {
			return m, true, nil
		}
	}
	return models.Machine{}, false, nil
}

// --- Tool handlers ---

func (h *handlers) getDayAdherence(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hour := h.dayStartHour(req)
	dayKey := req.GetString("day", "")
	if dayKey == "" {
		dayKey = insights.EffectiveDayKey(time.Now(), hour)
	}

	uid := UserIDFromContext(ctx)
	planDay, items, err := h.planForDayKey(ctx, uid, dayKey)
	if err != nil {
		h.log.Error("mcp get_day_adherence plan", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	sets, err := h.ds.QueryLoggedSets(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_day_adherence sets", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	day := insights.ComputeDayAdherence(items, sets, insights.DayOptions{
		DayKey:       dayKey,
		DayStartHour: hour,
	})
	day.PlanDayID = planDay.ID
	day.Label = planDay.Label

	result, err := mcp.NewToolResultJSON(day)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWeekAdherence(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hour := h.dayStartHour(req)
	anchor := time.Now()
	if a := req.GetString("anchor", ""); a != "" {
		parsed, err := time.Parse("2006-01-02", a)
		if err != nil {
			return mcp.NewToolResultError("invalid anchor date (YYYY-MM-DD)"), nil
		}
		// Noon keeps the anchor clear of the day-start boundary shift.
		anchor = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 12, 0, 0, 0, time.Local)
	}

	uid := UserIDFromContext(ctx)
	days, items, err := h.activePlan(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_week_adherence plan", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	sets, err := h.ds.QueryLoggedSets(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_week_adherence sets", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	week := insights.ComputeWeekAdherence(days, items, sets, insights.WeekOptions{
		DayStartHour: hour,
		AnchorDate:   anchor,
	})

	result, err := mcp.NewToolResultJSON(week)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getProgression(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("machine")
	if err != nil {
		return mcp.NewToolResultError("machine parameter is required"), nil
	}

	uid := UserIDFromContext(ctx)
	machine, found, err := h.resolveMachine(ctx, uid, ref)
	if err != nil {
		h.log.Error("mcp get_progression machines", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if !found {
		return mcp.NewToolResultError("unknown machine: " + ref), nil
	}

	sets, machines, err := h.history(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_progression history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	buckets := insights.BuildTrainingBuckets(sets, machines)
	points := insights.BuildProgression(buckets, machine.ID, parseSetTypesCSV(req.GetString("set_types", "")))

	if window := req.GetString("window", ""); window != "" {
		tf, ok := insights.TimeframeByKey(window)
		if !ok {
			return mcp.NewToolResultError("unknown window: " + window), nil
		}
		points = insights.FilterProgressionSince(points, tf, time.Now())
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"machine_id": machine.ID,
		"movement":   machine.Movement,
		"points":     points,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getMuscleBalance(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)
	sets, machines, err := h.history(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_muscle_balance", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	workload := insights.ComputeWorkloadByMuscleGroup(sets, machines)
	balance := insights.ComputeWorkloadBalanceIndex(workload.Groups)
	warning := insights.BuildSampleWarning(insights.SampleStats{
		ContributingSetCount: workload.ContributingSetCount,
		ActiveGroups:         balance.ActiveGroups,
		TrainingDays:         insights.CountTrainingDays(sets),
		RollingWeeks:         h.opts.RollingWeeks,
	})

	result, err := mcp.NewToolResultJSON(map[string]any{
		"workload": workload,
		"balance":  balance,
		"warning":  warning,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWeeklyConsistency(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	weeks := req.GetInt("weeks", h.opts.RollingWeeks)
	if weeks <= 0 {
		return mcp.NewToolResultError("weeks must be a positive integer"), nil
	}

	uid := UserIDFromContext(ctx)
	sets, err := h.ds.QueryLoggedSets(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_weekly_consistency", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"consistency":  insights.ComputeWeeklyConsistency(sets, insights.ConsistencyOptions{RollingWeeks: weeks}),
		"current_week": insights.ComputeCurrentWeekConsistency(sets, time.Now()),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTrainingBuckets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)
	sets, machines, err := h.history(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_training_buckets", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	startStr := req.GetString("start", "")
	endStr := req.GetString("end", "")
	if startStr != "" || endStr != "" {
		start, end, err := defaultTimeRange(startStr, endStr)
		if err != nil {
			return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
		}
		filtered := make([]models.LoggedSet, 0, len(sets))
		for _, s := range sets {
			if !s.LoggedAt.Before(start) && s.LoggedAt.Before(end) {
				filtered = append(filtered, s)
			}
		}
		sets = filtered
	}

	result, err := mcp.NewToolResultJSON(insights.BuildTrainingBuckets(sets, machines))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listMachines(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	machines, err := h.ds.ListMachines(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp list_machines", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(machines)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
