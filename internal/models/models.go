package models

import (
	"time"

	"github.com/google/uuid"
)

// SetType classifies a logged set's role within a session.
type SetType string

const (
	SetTypeWarmup  SetType = "warmup"
	SetTypeWorking SetType = "working"
	SetTypeTop     SetType = "top"
	SetTypeDrop    SetType = "drop"
	SetTypeBackoff SetType = "backoff"
	SetTypeFailure SetType = "failure"
)

// NormalizeSetType returns the set type with the working-set default applied.
func NormalizeSetType(t SetType) SetType {
	if t == "" {
		return SetTypeWorking
	}
	return t
}

// EquipmentType categorizes how load is applied.
type EquipmentType string

const (
	EquipmentMachine    EquipmentType = "machine"
	EquipmentFreeweight EquipmentType = "freeweight"
	EquipmentBodyweight EquipmentType = "bodyweight"
	EquipmentCable      EquipmentType = "cable"
	EquipmentBand       EquipmentType = "band"
	EquipmentOther      EquipmentType = "other"
)

// LoggedSet is one recorded set. Immutable once written; LoggedAt is the
// authoritative ordering key.
type LoggedSet struct {
	ID        uuid.UUID `json:"id"`
	UserID    int       `json:"user_id"`
	MachineID uuid.UUID `json:"machine_id"`
	Reps      int       `json:"reps"`
	// Weight is kilograms. For bodyweight equipment it is additional load;
	// the analytics treat it as an opaque magnitude either way.
	Weight          float64   `json:"weight"`
	SetType         SetType   `json:"set_type"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	RestSeconds     *float64  `json:"rest_seconds,omitempty"`
	LoggedAt        time.Time `json:"logged_at"`
	// TrainingDate is a precomputed YYYY-MM-DD day key. Empty means derive
	// from LoggedAt.
	TrainingDate string `json:"training_date,omitempty"`
	// TrainingBucketID is an explicit session grouping key. Empty means the
	// session is derived from the calendar day.
	TrainingBucketID string `json:"training_bucket_id,omitempty"`
	WorkoutClusterID string `json:"workout_cluster_id,omitempty"`
}

// Machine is one entry in a user's equipment library.
type Machine struct {
	ID       uuid.UUID `json:"id"`
	UserID   int       `json:"user_id"`
	Movement string    `json:"movement"`
	// MuscleGroups lists targeted groups; by convention the first entry is
	// the primary mover.
	MuscleGroups  []string      `json:"muscle_groups"`
	EquipmentType EquipmentType `json:"equipment_type"`
}

// PlanDay is one weekday row of a weekly training template.
type PlanDay struct {
	ID     uuid.UUID `json:"id"`
	PlanID uuid.UUID `json:"plan_id"`
	// Weekday uses time.Weekday numbering (Sunday = 0).
	Weekday time.Weekday `json:"weekday"`
	Label   string       `json:"label"`
}

// PlanItem is one exercise target within a plan day.
type PlanItem struct {
	ID            uuid.UUID `json:"id"`
	PlanDayID     uuid.UUID `json:"plan_day_id"`
	EquipmentID   uuid.UUID `json:"equipment_id"`
	TargetSetType SetType   `json:"target_set_type"`
	// TargetSets <= 0 means "touch only": the item completes as soon as any
	// matching set is logged, and it never contributes to set-count ratios.
	TargetSets int `json:"target_sets"`
	OrderIndex int `json:"order_index"`
}
