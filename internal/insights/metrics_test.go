package insights

import (
	"math"
	"testing"
	"time"

	"github.com/claude/liftledger/internal/models"
	"github.com/google/go-cmp/cmp"
)

func sample(reps int, weight float64) BucketSet {
	return BucketSet{Reps: reps, Weight: weight, SetType: models.SetTypeWorking}
}

func timedSample(reps int, weight, duration float64) BucketSet {
	s := sample(reps, weight)
	s.DurationSeconds = &duration
	return s
}

// TestBuildMetricsEmpty verifies the zero-case contract: all counters zero,
// BestSet and AvgTimedDuration nil, no NaN anywhere.
func TestBuildMetricsEmpty(t *testing.T) {
	got := BuildMetrics(nil)
	want := MetricsSummary{}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildMetrics(nil) mismatch (-want +got):\n%s", diff)
	}
}

// TestBuildMetricsTotals verifies the aggregate arithmetic on a small fixed
// collection.
func TestBuildMetricsTotals(t *testing.T) {
	sets := []BucketSet{
		sample(10, 60), // volume 600
		sample(8, 70),  // volume 560
		sample(6, 80),  // volume 480
	}

	got := BuildMetrics(sets)

	if got.TotalSets != 3 {
		t.Errorf("TotalSets = %d, want 3", got.TotalSets)
	}
	if got.TotalReps != 24 {
		t.Errorf("TotalReps = %d, want 24", got.TotalReps)
	}
	if got.TotalVolume != 1640 {
		t.Errorf("TotalVolume = %v, want 1640", got.TotalVolume)
	}
	if want := 1640.0 / 24; math.Abs(got.AvgLoad-want) > 1e-9 {
		t.Errorf("AvgLoad = %v, want %v", got.AvgLoad, want)
	}
	if want := 8.0; got.AvgRepsPerSet != want {
		t.Errorf("AvgRepsPerSet = %v, want %v", got.AvgRepsPerSet, want)
	}
	if got.MaxWeight != 80 {
		t.Errorf("MaxWeight = %v, want 80", got.MaxWeight)
	}
	// 8-rep 70kg and 6-rep 80kg fall in the standardized 5-8 range.
	if got.MaxStandardized != 80 {
		t.Errorf("MaxStandardized = %v, want 80", got.MaxStandardized)
	}
}

// TestBuildMetricsStandardizedFallback verifies MaxStandardized falls back
// to MaxWeight when no set lands in the 5-8 rep range.
func TestBuildMetricsStandardizedFallback(t *testing.T) {
	sets := []BucketSet{sample(12, 50), sample(15, 40), sample(3, 90)}
	got := BuildMetrics(sets)
	if got.MaxStandardized != got.MaxWeight {
		t.Errorf("MaxStandardized = %v, want fallback to MaxWeight %v", got.MaxStandardized, got.MaxWeight)
	}
	if got.MaxWeight != 90 {
		t.Errorf("MaxWeight = %v, want 90", got.MaxWeight)
	}
}

// TestBuildMetricsOneRM verifies the Epley estimate is monotonic in weight
// for fixed reps and that BestSet is the set achieving the maximum, first
// one winning ties.
func TestBuildMetricsOneRM(t *testing.T) {
	prev := 0.0
	for _, weight := range []float64{40, 60, 80, 100} {
		got := BuildMetrics([]BucketSet{sample(8, weight)})
		if got.EstOneRM < prev {
			t.Errorf("EstOneRM decreased at weight %v: %v < %v", weight, got.EstOneRM, prev)
		}
		prev = got.EstOneRM
	}

	sets := []BucketSet{
		sample(10, 60), // est 80
		sample(5, 100), // est ~116.7 — the best
		sample(5, 100), // identical estimate, must not displace the first
		sample(2, 110), // est ~117.3 — actually higher
	}
	got := BuildMetrics(sets)
	wantEst := 110 * (1 + 2.0/30)
	if math.Abs(got.EstOneRM-wantEst) > 1e-9 {
		t.Errorf("EstOneRM = %v, want %v", got.EstOneRM, wantEst)
	}
	if got.BestSet == nil || got.BestSet.Weight != 110 {
		t.Errorf("BestSet = %+v, want the 110kg double", got.BestSet)
	}

	// Tie case: identical sets, first encountered wins.
	tie := []BucketSet{sample(5, 100), sample(5, 100)}
	tie[0].MachineName = "first"
	tie[1].MachineName = "second"
	got = BuildMetrics(tie)
	if got.BestSet == nil || got.BestSet.MachineName != "first" {
		t.Errorf("BestSet on tie = %+v, want the first set", got.BestSet)
	}
}

// TestBuildMetricsHardSets verifies the high-effort heuristic: low reps or
// near-top weight.
func TestBuildMetricsHardSets(t *testing.T) {
	sets := []BucketSet{
		sample(8, 50),  // hard: reps <= 8
		sample(12, 95), // hard: >= 90% of max (100)
		sample(12, 100), // hard: is the max
		sample(15, 40), // easy
	}
	got := BuildMetrics(sets)
	if got.HardSets != 3 {
		t.Errorf("HardSets = %d, want 3", got.HardSets)
	}
}

// TestBuildMetricsTimedSets verifies the timed-duration average covers only
// explicitly timed sets and stays nil when none exist.
func TestBuildMetricsTimedSets(t *testing.T) {
	got := BuildMetrics([]BucketSet{sample(10, 60)})
	if got.AvgTimedDuration != nil || got.TimedSetCount != 0 {
		t.Errorf("untimed collection: avg = %v count = %d, want nil/0", got.AvgTimedDuration, got.TimedSetCount)
	}

	got = BuildMetrics([]BucketSet{
		timedSample(10, 0, 30),
		timedSample(10, 0, 60),
		sample(10, 60),
	})
	if got.TimedSetCount != 2 {
		t.Errorf("TimedSetCount = %d, want 2", got.TimedSetCount)
	}
	if got.AvgTimedDuration == nil || *got.AvgTimedDuration != 45 {
		t.Errorf("AvgTimedDuration = %v, want 45", got.AvgTimedDuration)
	}
}

// TestFilterSetsByType verifies the empty filter is an identity passthrough
// and the working-set default applies on both sides.
func TestFilterSetsByType(t *testing.T) {
	working := sample(10, 60)
	warmup := sample(15, 20)
	warmup.SetType = models.SetTypeWarmup
	untyped := sample(8, 60)
	untyped.SetType = ""

	sets := []BucketSet{working, warmup, untyped}

	if got := FilterSetsByType(sets, nil); len(got) != 3 {
		t.Errorf("empty filter returned %d sets, want 3", len(got))
	}

	got := FilterSetsByType(sets, []models.SetType{models.SetTypeWorking})
	if len(got) != 2 {
		t.Fatalf("working filter returned %d sets, want 2 (untyped defaults to working)", len(got))
	}

	got = FilterSetsByType(sets, []models.SetType{models.SetTypeWarmup})
	if len(got) != 1 || got[0].SetType != models.SetTypeWarmup {
		t.Errorf("warmup filter returned %+v, want just the warmup set", got)
	}
}

// TestBuildProgression verifies one snapshot per bucket containing the
// machine, in ascending time order, with other machines' sets excluded.
func TestBuildProgression(t *testing.T) {
	day1 := time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 12, 17, 0, 0, 0, time.UTC)
	day3 := time.Date(2024, 3, 14, 17, 0, 0, 0, time.UTC)

	sets := []models.LoggedSet{
		loggedSet(chestPressID, 10, 60, day1),
		loggedSet(chestPressID, 10, 62.5, day2),
		loggedSet(latPullID, 10, 50, day2),
		loggedSet(latPullID, 10, 55, day3), // bucket without chest press
	}
	buckets := BuildTrainingBuckets(sets, testMachines())

	points := BuildProgression(buckets, chestPressID, nil)
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if !points[0].StartedAt.Before(points[1].StartedAt) {
		t.Error("progression points out of time order")
	}
	if points[0].Metrics.MaxWeight != 60 || points[1].Metrics.MaxWeight != 62.5 {
		t.Errorf("max weights = %v, %v; want 60, 62.5", points[0].Metrics.MaxWeight, points[1].Metrics.MaxWeight)
	}
	if points[1].Metrics.TotalSets != 1 {
		t.Errorf("day2 snapshot includes foreign sets: TotalSets = %d, want 1", points[1].Metrics.TotalSets)
	}
}

// TestFilterProgressionSince verifies the trend-window cutoff semantics:
// keep snapshots with StartedAt >= now - window.
func TestFilterProgressionSince(t *testing.T) {
	now := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	points := []ProgressionPoint{
		{StartedAt: now.AddDate(0, 0, -40)},
		{StartedAt: now.AddDate(0, 0, -10)},
		{StartedAt: now.AddDate(0, 0, -2)},
	}

	week, ok := TimeframeByKey("1w")
	if !ok {
		t.Fatal("1w timeframe missing")
	}
	if got := FilterProgressionSince(points, week, now); len(got) != 1 {
		t.Errorf("1w window kept %d points, want 1", len(got))
	}

	month, _ := TimeframeByKey("1m")
	if got := FilterProgressionSince(points, month, now); len(got) != 2 {
		t.Errorf("1m window kept %d points, want 2", len(got))
	}

	if _, ok := TimeframeByKey("1y"); ok {
		t.Error("unexpected timeframe 1y")
	}
}
