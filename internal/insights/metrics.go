package insights

import (
	"time"

	"github.com/claude/liftledger/internal/models"
	"github.com/google/uuid"
)

// Standardized-weight rep range. Top weight comparisons are normalized to
// sets in this range when any exist, so a 3-rep grinder and a 12-rep pump
// set don't distort session-over-session strength comparisons.
const (
	standardizedRepsMin = 5
	standardizedRepsMax = 8
)

// hardSetRepCeiling and hardSetWeightFraction define the high-effort
// heuristic: few reps, or a load near the collection's top weight.
const (
	hardSetRepCeiling     = 8
	hardSetWeightFraction = 0.9
)

// MetricsSummary aggregates a collection of sets.
type MetricsSummary struct {
	TotalSets        int        `json:"totalSets"`
	TotalReps        int        `json:"totalReps"`
	TotalVolume      float64    `json:"totalVolume"`
	AvgLoad          float64    `json:"avgLoad"`
	AvgRepsPerSet    float64    `json:"avgRepsPerSet"`
	MaxWeight        float64    `json:"maxWeight"`
	MaxStandardized  float64    `json:"maxStandardized"`
	EstOneRM         float64    `json:"estOneRm"`
	BestSet          *BucketSet `json:"bestSet"`
	HardSets         int        `json:"hardSets"`
	TimedSetCount    int        `json:"timedSetCount"`
	AvgTimedDuration *float64   `json:"avgTimedDuration"`
}

// estimateOneRM applies the Epley formula: weight * (1 + reps/30).
func estimateOneRM(weight float64, reps int) float64 {
	return weight * (1 + float64(reps)/30)
}

// BuildMetrics computes aggregate metrics over a set collection. Empty input
// yields a zeroed summary with nil BestSet and AvgTimedDuration. Ratios
// guard their denominators; the summary never carries NaN or Inf.
func BuildMetrics(sets []BucketSet) MetricsSummary {
	summary := MetricsSummary{TotalSets: len(sets)}
	if len(sets) == 0 {
		return summary
	}

	var timedTotal float64
	standardizedSeen := false
	bestIdx := -1

	for i := range sets {
		set := &sets[i]
		summary.TotalReps += set.Reps
		summary.TotalVolume += float64(set.Reps) * set.Weight

		if set.Weight > summary.MaxWeight {
			summary.MaxWeight = set.Weight
		}
		if set.Reps >= standardizedRepsMin && set.Reps <= standardizedRepsMax && (!standardizedSeen || set.Weight > summary.MaxStandardized) {
			summary.MaxStandardized = set.Weight
			standardizedSeen = true
		}

		if est := estimateOneRM(set.Weight, set.Reps); bestIdx == -1 || est > summary.EstOneRM {
			summary.EstOneRM = est
			bestIdx = i
		}

		if set.DurationSeconds != nil {
			summary.TimedSetCount++
			timedTotal += *set.DurationSeconds
		}
	}

	if !standardizedSeen {
		summary.MaxStandardized = summary.MaxWeight
	}
	if bestIdx >= 0 {
		best := sets[bestIdx]
		summary.BestSet = &best
	}
	if summary.TotalReps > 0 {
		summary.AvgLoad = summary.TotalVolume / float64(summary.TotalReps)
	}
	summary.AvgRepsPerSet = float64(summary.TotalReps) / float64(summary.TotalSets)
	if summary.TimedSetCount > 0 {
		avg := timedTotal / float64(summary.TimedSetCount)
		summary.AvgTimedDuration = &avg
	}

	// Hard sets need the final MaxWeight, so a second pass.
	threshold := hardSetWeightFraction * summary.MaxWeight
	for i := range sets {
		if sets[i].Reps <= hardSetRepCeiling || sets[i].Weight >= threshold {
			summary.HardSets++
		}
	}

	return summary
}

// FilterSetsByType retains sets whose (working-defaulted) set type appears
// in setTypes. An empty filter is an identity passthrough.
func FilterSetsByType(sets []BucketSet, setTypes []models.SetType) []BucketSet {
	if len(setTypes) == 0 {
		return sets
	}
	wanted := make(map[models.SetType]bool, len(setTypes))
	for _, t := range setTypes {
		wanted[models.NormalizeSetType(t)] = true
	}
	out := make([]BucketSet, 0, len(sets))
	for _, set := range sets {
		if wanted[models.NormalizeSetType(set.SetType)] {
			out = append(out, set)
		}
	}
	return out
}

// ProgressionPoint is one session's metrics snapshot for a single machine.
type ProgressionPoint struct {
	TrainingBucketID string         `json:"trainingBucketId"`
	TrainingDate     string         `json:"trainingDate"`
	StartedAt        time.Time      `json:"startedAt"`
	EndedAt          time.Time      `json:"endedAt"`
	Metrics          MetricsSummary `json:"metrics"`
}

// BuildProgression derives a machine's progression series from a bucket
// sequence: one snapshot per bucket containing the machine, in bucket order
// (ascending by start time when the buckets came from BuildTrainingBuckets).
// setTypes optionally narrows which sets feed each snapshot; a bucket that
// contains the machine still yields a snapshot even if the filter empties it,
// so consumers see the session happened.
func BuildProgression(buckets []TrainingBucket, machineID uuid.UUID, setTypes []models.SetType) []ProgressionPoint {
	var points []ProgressionPoint
	for _, bucket := range buckets {
		var machineSets []BucketSet
		for _, set := range bucket.Sets {
			if set.MachineID == machineID {
				machineSets = append(machineSets, set)
			}
		}
		if len(machineSets) == 0 {
			continue
		}
		points = append(points, ProgressionPoint{
			TrainingBucketID: bucket.TrainingBucketID,
			TrainingDate:     bucket.TrainingDate,
			StartedAt:        bucket.StartedAt,
			EndedAt:          bucket.EndedAt,
			Metrics:          BuildMetrics(FilterSetsByType(machineSets, setTypes)),
		})
	}
	return points
}

// Timeframe is a named elapsed-time window for trend views.
type Timeframe struct {
	Key    string        `json:"key"`
	Window time.Duration `json:"-"`
}

// Timeframes are the supported trend windows. The month window is a fixed
// 30 days, not a calendar month.
var Timeframes = []Timeframe{
	{Key: "1d", Window: 24 * time.Hour},
	{Key: "1w", Window: 7 * 24 * time.Hour},
	{Key: "1m", Window: 30 * 24 * time.Hour},
}

// TimeframeByKey looks up a trend window by its key.
func TimeframeByKey(key string) (Timeframe, bool) {
	for _, tf := range Timeframes {
		if tf.Key == key {
			return tf, true
		}
	}
	return Timeframe{}, false
}

// FilterProgressionSince keeps snapshots whose session started at or after
// now minus the timeframe's window. A zero now falls back to the wall clock.
func FilterProgressionSince(points []ProgressionPoint, tf Timeframe, now time.Time) []ProgressionPoint {
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := now.Add(-tf.Window)
	out := make([]ProgressionPoint, 0, len(points))
	for _, p := range points {
		if !p.StartedAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}
