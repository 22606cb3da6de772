package insights

import (
	"sort"
	"strings"
	"time"

	"github.com/claude/liftledger/internal/models"
	"github.com/google/uuid"
)

// derivedBucketPrefix marks bucket ids synthesized from a calendar day when
// a set carries no explicit session grouping key.
const derivedBucketPrefix = "training_day:"

// BucketSet is a logged set projected into a training bucket, enriched with
// the resolved machine name.
type BucketSet struct {
	MachineID        uuid.UUID      `json:"machine_id"`
	MachineName      string         `json:"machine_name"`
	Reps             int            `json:"reps"`
	Weight           float64        `json:"weight"`
	SetType          models.SetType `json:"set_type"`
	DurationSeconds  *float64       `json:"duration_seconds"`
	RestSeconds      *float64       `json:"rest_seconds"`
	LoggedAt         time.Time      `json:"logged_at"`
	WorkoutClusterID string         `json:"workout_cluster_id,omitempty"`
}

// TrainingBucket is one training session: the group of sets sharing a bucket
// id, or a calendar day's worth of sets when no explicit id exists. Buckets
// are recomputed from scratch on every call and never persisted.
type TrainingBucket struct {
	TrainingBucketID string      `json:"training_bucket_id"`
	TrainingDate     string      `json:"training_date"`
	WorkoutClusterID string      `json:"workout_cluster_id,omitempty"`
	StartedAt        time.Time   `json:"started_at"`
	EndedAt          time.Time   `json:"ended_at"`
	Sets             []BucketSet `json:"sets"`
}

// BuildTrainingBuckets groups logged sets into sessions. Grouping key is the
// set's explicit TrainingBucketID, else training_day:<UTC date of LoggedAt>.
// Buckets partition the input exactly and come back sorted ascending by
// StartedAt. Sets with a zero LoggedAt are skipped: a session boundary
// cannot be placed without an instant.
func BuildTrainingBuckets(sets []models.LoggedSet, machines []models.Machine) []TrainingBucket {
	names := machineNames(machines)

	buckets := make(map[string]*bucketAccumulator)
	var order []string

	for _, set := range sets {
		if set.LoggedAt.IsZero() {
			continue
		}

		id := set.TrainingBucketID
		if id == "" {
			id = derivedBucketPrefix + set.LoggedAt.UTC().Format(dayKeyFormat)
		}

		acc, ok := buckets[id]
		if !ok {
			trainingDate := set.TrainingDate
			if trainingDate == "" {
				trainingDate = strings.TrimPrefix(id, derivedBucketPrefix)
			}
			acc = &bucketAccumulator{
				bucket: TrainingBucket{
					TrainingBucketID: id,
					TrainingDate:     trainingDate,
					StartedAt:        set.LoggedAt,
					EndedAt:          set.LoggedAt,
				},
			}
			buckets[id] = acc
			order = append(order, id)
		}

		acc.observeCluster(set.WorkoutClusterID)
		acc.bucket.Sets = append(acc.bucket.Sets, projectSet(set, names))

		if set.LoggedAt.Before(acc.bucket.StartedAt) {
			acc.bucket.StartedAt = set.LoggedAt
		}
		if set.LoggedAt.After(acc.bucket.EndedAt) {
			acc.bucket.EndedAt = set.LoggedAt
		}
	}

	result := make([]TrainingBucket, 0, len(order))
	for _, id := range order {
		result = append(result, buckets[id].bucket)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result
}

// ProjectSets converts raw logged sets into bucket-set projections without
// grouping them, resolving machine names from the catalog.
func ProjectSets(sets []models.LoggedSet, machines []models.Machine) []BucketSet {
	names := machineNames(machines)
	out := make([]BucketSet, 0, len(sets))
	for _, set := range sets {
		out = append(out, projectSet(set, names))
	}
	return out
}

type bucketAccumulator struct {
	bucket     TrainingBucket
	clusterIDs []string
}

// observeCluster adopts a single distinct workout cluster id; two or more
// distinct values make the bucket's cluster ambiguous and it stays empty.
func (a *bucketAccumulator) observeCluster(clusterID string) {
	if clusterID != "" && !containsString(a.clusterIDs, clusterID) {
		a.clusterIDs = append(a.clusterIDs, clusterID)
	}
	if len(a.clusterIDs) == 1 {
		a.bucket.WorkoutClusterID = a.clusterIDs[0]
	} else {
		a.bucket.WorkoutClusterID = ""
	}
}

func projectSet(set models.LoggedSet, names map[uuid.UUID]string) BucketSet {
	name, ok := names[set.MachineID]
	if !ok {
		name = "Unknown"
	}
	return BucketSet{
		MachineID:        set.MachineID,
		MachineName:      name,
		Reps:             set.Reps,
		Weight:           set.Weight,
		SetType:          models.NormalizeSetType(set.SetType),
		DurationSeconds:  set.DurationSeconds,
		RestSeconds:      set.RestSeconds,
		LoggedAt:         set.LoggedAt,
		WorkoutClusterID: set.WorkoutClusterID,
	}
}

func machineNames(machines []models.Machine) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(machines))
	for _, m := range machines {
		names[m.ID] = m.Movement
	}
	return names
}

func containsString(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
