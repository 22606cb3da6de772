package insights

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/claude/liftledger/internal/models"
	"github.com/google/uuid"
)

// DefaultRollingWeeks is the consistency lookback window.
const DefaultRollingWeeks = 6

// minStableSessionsPerGroup is how many observed sessions a muscle group
// needs before its normalized score stands on its own median; below that
// the score is shrunk toward 1.0.
const minStableSessionsPerGroup = 3

// muscleBaselineCoefficient scales the global per-session median into a
// prior baseline for each group. Big movers tolerate more volume than
// small accessory groups.
var muscleBaselineCoefficient = map[string]float64{
	"Chest":      1,
	"Back":       1.1,
	"Shoulders":  0.8,
	"Biceps":     0.55,
	"Triceps":    0.55,
	"Legs":       1.35,
	"Core":       0.6,
	"Glutes":     1,
	"Calves":     0.5,
	"Forearms":   0.45,
	"Hamstrings": 0.8,
	"Quadriceps": 0.95,
}

const defaultBaselineCoefficient = 1

// MuscleGroupWorkload is one muscle group's accumulated workload with its
// session-normalized score.
type MuscleGroupWorkload struct {
	MuscleGroup      string  `json:"muscleGroup"`
	Workload         float64 `json:"workload"`
	RawVolume        float64 `json:"rawVolume"`
	NormalizedScore  float64 `json:"normalizedScore"`
	BaselineVolume   float64 `json:"baselineVolume"`
	ObservedSessions int     `json:"observedSessions"`
	SparseData       bool    `json:"sparseData"`
}

// WorkloadNormalization describes how normalized scores were derived.
type WorkloadNormalization struct {
	Method                    string  `json:"method"`
	MinStableSessionsPerGroup int     `json:"minStableSessionsPerGroup"`
	GlobalGroupSessionMedian  float64 `json:"globalGroupSessionMedian"`
}

// WorkloadSummary is the cross-exercise muscle-group distribution.
type WorkloadSummary struct {
	Groups               []MuscleGroupWorkload `json:"groups"`
	TotalWorkload        float64               `json:"totalWorkload"`
	ContributingSetCount int                   `json:"contributingSetCount"`
	Normalization        WorkloadNormalization `json:"normalization"`
}

// ComputeWorkloadByMuscleGroup splits each set's volume evenly across its
// machine's muscle groups and accumulates per-group totals. Sets without a
// resolvable machine, with an empty muscle-group list, or with degenerate
// reps/weight are excluded entirely, including from ContributingSetCount.
// Groups come back sorted descending by workload.
func ComputeWorkloadByMuscleGroup(sets []models.LoggedSet, machines []models.Machine) WorkloadSummary {
	machineByID := make(map[uuid.UUID]models.Machine, len(machines))
	for _, m := range machines {
		machineByID[m.ID] = m
	}

	totals := make(map[string]float64)
	var groupOrder []string
	sessionVolumes := make(map[string]map[string]float64)
	summary := WorkloadSummary{}

	for _, set := range sets {
		if set.Reps <= 0 || set.Weight < 0 || math.IsNaN(set.Weight) || math.IsInf(set.Weight, 0) {
			continue
		}
		machine, ok := machineByID[set.MachineID]
		if !ok {
			continue
		}
		groups := nonEmptyGroups(machine.MuscleGroups)
		if len(groups) == 0 {
			continue
		}

		setVolume := float64(set.Reps) * set.Weight
		perGroup := setVolume / float64(len(groups))
		sessionKey := trainingSessionKey(set)

		for _, group := range groups {
			if _, seen := totals[group]; !seen {
				groupOrder = append(groupOrder, group)
			}
			totals[group] += perGroup

			if sessionKey == "" {
				continue
			}
			sessions := sessionVolumes[group]
			if sessions == nil {
				sessions = make(map[string]float64)
				sessionVolumes[group] = sessions
			}
			sessions[sessionKey] += perGroup
		}

		summary.TotalWorkload += setVolume
		summary.ContributingSetCount++
	}

	var allSessionVolumes []float64
	for _, group := range groupOrder {
		for _, v := range sessionVolumes[group] {
			allSessionVolumes = append(allSessionVolumes, v)
		}
	}
	globalMedian := median(allSessionVolumes)

	summary.Groups = make([]MuscleGroupWorkload, 0, len(groupOrder))
	for _, group := range groupOrder {
		perSession := make([]float64, 0, len(sessionVolumes[group]))
		for _, v := range sessionVolumes[group] {
			perSession = append(perSession, v)
		}
		sort.Float64s(perSession)

		observed := len(perSession)
		observedMedian := median(perSession)

		coefficient, ok := muscleBaselineCoefficient[group]
		if !ok {
			coefficient = defaultBaselineCoefficient
		}
		prior := globalMedian
		if prior == 0 {
			prior = 1
		}
		prior *= coefficient

		sparseWeight := math.Min(1, float64(observed)/minStableSessionsPerGroup)
		baseline := observedMedian*sparseWeight + prior*(1-sparseWeight)
		rawScore := totals[group] / math.Max(baseline, 1)
		score := rawScore
		if observed < minStableSessionsPerGroup {
			score = 1 + (rawScore-1)*sparseWeight
		}

		summary.Groups = append(summary.Groups, MuscleGroupWorkload{
			MuscleGroup:      group,
			Workload:         totals[group],
			RawVolume:        totals[group],
			NormalizedScore:  score,
			BaselineVolume:   baseline,
			ObservedSessions: observed,
			SparseData:       observed < minStableSessionsPerGroup,
		})
	}

	sort.SliceStable(summary.Groups, func(i, j int) bool {
		return summary.Groups[i].Workload > summary.Groups[j].Workload
	})

	summary.Normalization = WorkloadNormalization{
		Method:                    "blended_group_session_median",
		MinStableSessionsPerGroup: minStableSessionsPerGroup,
		GlobalGroupSessionMedian:  globalMedian,
	}
	return summary
}

// WeekConsistency is one week's trained-day count.
type WeekConsistency struct {
	WeekStart     string  `json:"weekStart"`
	CompletedDays int     `json:"completedDays"`
	PossibleDays  int     `json:"possibleDays"`
	Ratio         float64 `json:"ratio"`
}

// ConsistencySummary is the rolling trained-day ratio.
type ConsistencySummary struct {
	Weeks         []WeekConsistency `json:"weeks"`
	CompletedDays int               `json:"completedDays"`
	PossibleDays  int               `json:"possibleDays"`
	Ratio         float64           `json:"ratio"`
}

// ConsistencyOptions configures ComputeWeeklyConsistency. RollingWeeks <= 0
// means DefaultRollingWeeks; a zero Now falls back to the wall clock.
type ConsistencyOptions struct {
	RollingWeeks int
	Now          time.Time
}

// ComputeWeeklyConsistency counts trained calendar days per week over the
// rolling window ending at the current (Monday-anchored) week.
func ComputeWeeklyConsistency(sets []models.LoggedSet, opts ConsistencyOptions) ConsistencySummary {
	weeks := opts.RollingWeeks
	if weeks <= 0 {
		weeks = DefaultRollingWeeks
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	currentWeekStart := startOfWeek(now)
	trainingDays := trainingDaySet(sets)

	summary := ConsistencySummary{Weeks: make([]WeekConsistency, 0, weeks)}
	for i := 0; i < weeks; i++ {
		weekStart := currentWeekStart.AddDate(0, 0, -(weeks-1-i)*7)
		week := countWeek(weekStart, trainingDays)
		summary.Weeks = append(summary.Weeks, week)
		summary.CompletedDays += week.CompletedDays
	}

	summary.PossibleDays = weeks * 7
	if summary.PossibleDays > 0 {
		summary.Ratio = float64(summary.CompletedDays) / float64(summary.PossibleDays)
	}
	return summary
}

// ComputeCurrentWeekConsistency is the single-week special case used by the
// home screen's "this week" chip.
func ComputeCurrentWeekConsistency(sets []models.LoggedSet, now time.Time) WeekConsistency {
	if now.IsZero() {
		now = time.Now()
	}
	return countWeek(startOfWeek(now), trainingDaySet(sets))
}

// BalanceIndex is the normalized-entropy balance score.
type BalanceIndex struct {
	Index         float64 `json:"index"`
	ActiveGroups  int     `json:"activeGroups"`
	TotalWorkload float64 `json:"totalWorkload"`
}

// ComputeWorkloadBalanceIndex scores how evenly workload spreads across
// active muscle groups: Shannon entropy of the workload proportions,
// normalized by the maximum possible entropy. 1 is perfectly even; fewer
// than two active groups cannot be balanced and score 0.
func ComputeWorkloadBalanceIndex(groups []MuscleGroupWorkload) BalanceIndex {
	var positive []float64
	for _, g := range groups {
		if g.Workload > 0 {
			positive = append(positive, g.Workload)
		}
	}

	result := BalanceIndex{ActiveGroups: len(positive)}
	if len(positive) == 0 {
		return result
	}
	for _, v := range positive {
		result.TotalWorkload += v
	}
	if result.TotalWorkload == 0 || len(positive) == 1 {
		return result
	}

	var entropy float64
	for _, v := range positive {
		p := v / result.TotalWorkload
		if p > 0 {
			entropy -= p * math.Log(p)
		}
	}
	if maxEntropy := math.Log(float64(len(positive))); maxEntropy > 0 {
		result.Index = entropy / maxEntropy
	}
	return result
}

// SampleStats feeds BuildSampleWarning.
type SampleStats struct {
	ContributingSetCount int
	ActiveGroups         int
	TrainingDays         int
	RollingWeeks         int
}

// BuildSampleWarning returns a caveat for dashboards built on thin data, or
// an empty string when the sample is large enough to trust.
func BuildSampleWarning(stats SampleStats) string {
	if stats.ContributingSetCount == 0 {
		return "No set volume data yet."
	}
	if stats.ActiveGroups < 2 {
		return "Need at least 2 active muscle groups for meaningful balance."
	}
	weeks := stats.RollingWeeks
	if weeks <= 0 {
		weeks = DefaultRollingWeeks
	}
	if minDays := min(weeks, 3); stats.TrainingDays < minDays {
		return fmt.Sprintf("Consistency may be noisy with fewer than %d training days.", minDays)
	}
	return ""
}

// CountTrainingDays returns the number of distinct calendar days with at
// least one logged set.
func CountTrainingDays(sets []models.LoggedSet) int {
	return len(trainingDaySet(sets))
}

// nonEmptyGroups filters out blank muscle-group entries.
func nonEmptyGroups(groups []string) []string {
	filtered := make([]string, 0, len(groups))
	for _, group := range groups {
		if strings.TrimSpace(group) != "" {
			filtered = append(filtered, group)
		}
	}
	return filtered
}

// trainingSessionKey identifies the session a set belongs to for per-session
// volume statistics: explicit bucket, valid precomputed day, or the logged
// instant's calendar day. Empty means the set cannot be placed in a session.
func trainingSessionKey(set models.LoggedSet) string {
	if set.TrainingBucketID != "" {
		return "bucket:" + set.TrainingBucketID
	}
	if _, ok := parseDayKey(set.TrainingDate); ok {
		return "day:" + set.TrainingDate
	}
	if set.LoggedAt.IsZero() {
		return ""
	}
	return "day:" + formatDayKey(set.LoggedAt)
}

// trainingDayKey is the calendar day a set counts toward for consistency.
func trainingDayKey(set models.LoggedSet) (string, bool) {
	if _, ok := parseDayKey(set.TrainingDate); ok {
		return set.TrainingDate, true
	}
	if set.LoggedAt.IsZero() {
		return "", false
	}
	return formatDayKey(set.LoggedAt), true
}

func trainingDaySet(sets []models.LoggedSet) map[string]bool {
	days := make(map[string]bool)
	for _, set := range sets {
		if key, ok := trainingDayKey(set); ok {
			days[key] = true
		}
	}
	return days
}

// startOfWeek returns local midnight of the Monday on or before t.
func startOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
}

func countWeek(weekStart time.Time, trainingDays map[string]bool) WeekConsistency {
	week := WeekConsistency{
		WeekStart:    formatDayKey(weekStart),
		PossibleDays: 7,
	}
	for offset := 0; offset < 7; offset++ {
		if trainingDays[formatDayKey(weekStart.AddDate(0, 0, offset))] {
			week.CompletedDays++
		}
	}
	week.Ratio = float64(week.CompletedDays) / 7
	return week
}

// median of already-arbitrary values; sorts a copy.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
