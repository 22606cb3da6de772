package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/liftledger/internal/insights"
)

func (h *handlers) today(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid := UserIDFromContext(ctx)
	hour := insights.NormalizeDayStartHour(h.opts.DayStartHour)
	dayKey := insights.EffectiveDayKey(time.Now(), hour)

	planDay, items, err := h.planForDayKey(ctx, uid, dayKey)
	if err != nil {
		return nil, err
	}
	sets, err := h.ds.QueryLoggedSets(ctx, uid)
	if err != nil {
		return nil, err
	}

	day := insights.ComputeDayAdherence(items, sets, insights.DayOptions{
		DayKey:       dayKey,
		DayStartHour: hour,
	})
	day.PlanDayID = planDay.ID
	day.Label = planDay.Label

	data, err := json.Marshal(day)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (h *handlers) weekPlanProgress(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid := UserIDFromContext(ctx)

	days, items, err := h.activePlan(ctx, uid)
	if err != nil {
		return nil, err
	}
	sets, err := h.ds.QueryLoggedSets(ctx, uid)
	if err != nil {
		return nil, err
	}

	week := insights.ComputeWeekAdherence(days, items, sets, insights.WeekOptions{
		DayStartHour: insights.NormalizeDayStartHour(h.opts.DayStartHour),
		AnchorDate:   time.Now(),
	})

	data, err := json.Marshal(week)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
