package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/claude/liftledger/internal/insights"
	"github.com/claude/liftledger/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleLogSet(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)

	var set models.LoggedSet
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if set.MachineID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "machine_id is required"})
		return
	}
	if set.Reps <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reps must be positive"})
		return
	}
	if set.Weight < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "weight must not be negative"})
		return
	}

	if set.ID == uuid.Nil {
		set.ID = uuid.New()
	}
	if set.LoggedAt.IsZero() {
		set.LoggedAt = time.Now()
	}
	set.UserID = uid
	set.SetType = models.NormalizeSetType(set.SetType)

	if err := s.db.InsertLoggedSet(r.Context(), set); err != nil {
		s.log.Error("log set failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid set ID"})
		return
	}

	deleted, err := s.db.DeleteLoggedSet(r.Context(), id, uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "set not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSets(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)

	var sets []models.LoggedSet
	var err error
	if r.URL.Query().Get("start") != "" || r.URL.Query().Get("end") != "" {
		var start, end time.Time
		start, end, err = parseTimeRange(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		sets, err = s.db.QueryLoggedSetsRange(r.Context(), start, end, uid)
	} else {
		sets, err = s.db.QueryLoggedSets(r.Context(), uid)
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

func (s *Server) handleUpsertMachine(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)

	var m models.Machine
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if m.Movement == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "movement is required"})
		return
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.EquipmentType == "" {
		m.EquipmentType = models.EquipmentMachine
	}
	m.UserID = uid

	if err := s.db.UpsertMachine(r.Context(), m); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListMachines(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)
	machines, err := s.db.ListMachines(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, machines)
}

func (s *Server) handleDeleteMachine(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid machine ID"})
		return
	}

	deleted, err := s.db.DeleteMachine(r.Context(), id, uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "machine not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActivePlan(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)

	planID, ok, err := s.db.ActivePlanID(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"plan_id": nil,
			"days":    []models.PlanDay{},
			"items":   []models.PlanItem{},
		})
		return
	}

	days, err := s.db.ListPlanDays(r.Context(), planID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	items, err := s.db.ListPlanItems(r.Context(), planID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plan_id": planID,
		"days":    days,
		"items":   items,
	})
}

func (s *Server) handleTrainingBuckets(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)
	sets, machines, err := s.fetchHistory(r, uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, insights.BuildTrainingBuckets(sets, machines))
}

func (s *Server) handleDayAdherence(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)

	hour := s.parseDayStartHour(r)
	dayKey := r.URL.Query().Get("day")
	if dayKey == "" {
		dayKey = insights.EffectiveDayKey(time.Now(), hour)
	}

	planDay, items, err := s.planForDayKey(r, uid, dayKey)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	sets, err := s.db.QueryLoggedSets(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	day := insights.ComputeDayAdherence(items, sets, insights.DayOptions{
		DayKey:       dayKey,
		DayStartHour: hour,
	})
	day.PlanDayID = planDay.ID
	day.Label = planDay.Label
	writeJSON(w, http.StatusOK, day)
}

func (s *Server) handleWeekAdherence(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)

	hour := s.parseDayStartHour(r)
	anchor := time.Now()
	if a := r.URL.Query().Get("anchor"); a != "" {
		parsed, err := time.Parse("2006-01-02", a)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid anchor date (YYYY-MM-DD)"})
			return
		}
		// Noon keeps the anchor clear of the day-start boundary shift.
		anchor = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 12, 0, 0, 0, time.Local)
	}

	days, items, err := s.activePlan(r, uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	sets, err := s.db.QueryLoggedSets(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, insights.ComputeWeekAdherence(days, items, sets, insights.WeekOptions{
		DayStartHour: hour,
		AnchorDate:   anchor,
	}))
}

func (s *Server) handleProgression(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)
	machineID, err := uuid.Parse(chi.URLParam(r, "machineID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid machine ID"})
		return
	}

	sets, machines, err := s.fetchHistory(r, uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	buckets := insights.BuildTrainingBuckets(sets, machines)
	points := insights.BuildProgression(buckets, machineID, parseSetTypes(r))

	if window := r.URL.Query().Get("window"); window != "" {
		tf, ok := insights.TimeframeByKey(window)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown window: " + window})
			return
		}
		points = insights.FilterProgressionSince(points, tf, time.Now())
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)

	weeks := s.rollingWeeks
	if v := r.URL.Query().Get("weeks"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "weeks must be a positive integer"})
			return
		}
		weeks = parsed
	}

	sets, machines, err := s.fetchHistory(r, uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	workload := insights.ComputeWorkloadByMuscleGroup(sets, machines)
	balance := insights.ComputeWorkloadBalanceIndex(workload.Groups)
	consistency := insights.ComputeWeeklyConsistency(sets, insights.ConsistencyOptions{RollingWeeks: weeks})

	warning := insights.BuildSampleWarning(insights.SampleStats{
		ContributingSetCount: workload.ContributingSetCount,
		ActiveGroups:         balance.ActiveGroups,
		TrainingDays:         insights.CountTrainingDays(sets),
		RollingWeeks:         weeks,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"workload":    workload,
		"balance":     balance,
		"consistency": consistency,
		"currentWeek": insights.ComputeCurrentWeekConsistency(sets, time.Now()),
		"warning":     warning,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)
	stats, err := s.db.GetDataStats(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := s.db.QueryImportLogs(r.Context(), uid, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// fetchHistory loads the full set history and machine catalog the insight
// handlers share.
func (s *Server) fetchHistory(r *http.Request, uid int) ([]models.LoggedSet, []models.Machine, error) {
	sets, err := s.db.QueryLoggedSets(r.Context(), uid)
	if err != nil {
		return nil, nil, err
	}
	machines, err := s.db.ListMachines(r.Context(), uid)
	if err != nil {
		return nil, nil, err
	}
	return sets, machines, nil
}

// activePlan loads the user's active plan days and items. No active plan is
// not an error: adherence over an empty plan is still well defined.
func (s *Server) activePlan(r *http.Request, uid int) ([]models.PlanDay, []models.PlanItem, error) {
	planID, ok, err := s.db.ActivePlanID(r.Context(), uid)
	if err != nil || !ok {
		return nil, nil, err
	}
	days, err := s.db.ListPlanDays(r.Context(), planID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.db.ListPlanItems(r.Context(), planID)
	if err != nil {
		return nil, nil, err
	}
	return days, items, nil
}

// planForDayKey resolves the plan day scheduled for the given day key.
func (s *Server) planForDayKey(r *http.Request, uid int, dayKey string) (models.PlanDay, []models.PlanItem, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(dayKey))
	if err != nil {
		// Malformed day keys degrade to an empty plan; the insight layer
		// reports zero matches for them.
		return models.PlanDay{}, nil, nil
	}

	days, _, planErr := s.activePlan(r, uid)
	if planErr != nil {
		return models.PlanDay{}, nil, planErr
	}
	for _, day := range days {
		if day.Weekday == parsed.Weekday() {
			items, err := s.db.ListPlanItemsForDay(r.Context(), day.ID)
			if err != nil {
				return models.PlanDay{}, nil, err
			}
			return day, items, nil
		}
	}
	return models.PlanDay{}, nil, nil
}

func (s *Server) parseDayStartHour(r *http.Request) int {
	if v := r.URL.Query().Get("dayStartHour"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return insights.NormalizeDayStartHour(parsed)
		}
	}
	return insights.NormalizeDayStartHour(s.dayStartHour)
}

func parseSetTypes(r *http.Request) []models.SetType {
	raw := r.URL.Query().Get("setTypes")
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" {
		// Default: last 7 days
		end = time.Now()
		start = end.AddDate(0, 0, -7)
		return
	}

	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	if endStr == "" {
		end = time.Now()
	} else {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.Parse("2006-01-02", endStr)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			// End of day for date-only
			end = end.Add(24 * time.Hour)
		}
	}
	return
}
