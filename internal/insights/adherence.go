package insights

import (
	"sort"
	"time"

	"github.com/claude/liftledger/internal/models"
	"github.com/google/uuid"
)

// CompletionMode says how a plan's ratio was scored: quantitatively against
// explicit set targets, or by touch-completion when no targets exist.
type CompletionMode string

const (
	CompletionSetTargets    CompletionMode = "set_targets"
	CompletionExerciseTouch CompletionMode = "exercise_touch"
)

// ItemAdherence annotates one plan item with its allocation outcome.
type ItemAdherence struct {
	ItemID        uuid.UUID      `json:"itemId"`
	MachineID     uuid.UUID      `json:"machineId"`
	TargetSetType models.SetType `json:"targetSetType"`
	OrderIndex    int            `json:"orderIndex"`
	PlannedSets   int            `json:"plannedSets"`
	CompletedSets int            `json:"completedSets"`
	Touched       bool           `json:"touched"`
	IsComplete    bool           `json:"isComplete"`
	IsPartial     bool           `json:"isPartial"`
}

// DayAdherence scores one training day against its plan items.
type DayAdherence struct {
	DayKey       string       `json:"dayKey"`
	Weekday      time.Weekday `json:"weekday"`
	PlanDayID    uuid.UUID    `json:"planDayId"`
	Label        string       `json:"label,omitempty"`
	DayStartHour int          `json:"dayStartHour"`

	PlannedSets   int     `json:"plannedSets"`
	CompletedSets int     `json:"completedSets"`
	TouchedItems  int     `json:"touchedItems"`
	CompleteItems int     `json:"completeItems"`
	PartialItems  int     `json:"partialItems"`
	TotalItems    int     `json:"totalItems"`
	Ratio         float64 `json:"ratio"`

	Items []ItemAdherence `json:"items"`
	// MatchedSetCount is the raw number of sets inside the day's time
	// window, whether or not any plan item matched them.
	MatchedSetCount int `json:"matchedSetCount"`
}

// PlanProgressSummary aggregates day adherence entries, normally a week.
type PlanProgressSummary struct {
	Days           []DayAdherence `json:"days"`
	PlannedSets    int            `json:"plannedSets"`
	CompletedSets  int            `json:"completedSets"`
	PlannedItems   int            `json:"plannedItems"`
	TouchedItems   int            `json:"touchedItems"`
	PartialItems   int            `json:"partialItems"`
	Ratio          float64        `json:"ratio"`
	CompletionMode CompletionMode `json:"completionMode"`
}

// DayOptions configures ComputeDayAdherence. An empty DayKey derives the day
// from Now and the day boundary; a zero Now falls back to the wall clock.
// Callers own the DayStartHour default (DefaultDayStartHour); the zero value
// here means an actual midnight boundary.
type DayOptions struct {
	DayKey       string
	DayStartHour int
	Now          time.Time
}

// WeekOptions configures ComputeWeekAdherence.
type WeekOptions struct {
	DayStartHour int
	AnchorDate   time.Time
}

// normalizedItem is a plan item reduced to the fields the allocator needs,
// with the working-set default and non-positive targets collapsed to zero.
type normalizedItem struct {
	id          uuid.UUID
	orderIndex  int
	machineID   uuid.UUID
	setType     models.SetType
	plannedSets int
}

func (it normalizedItem) matchKey() string {
	return buildMatchKey(it.machineID, it.setType)
}

func buildMatchKey(machineID uuid.UUID, setType models.SetType) string {
	id := ""
	if machineID != uuid.Nil {
		id = machineID.String()
	}
	return id + "::" + string(models.NormalizeSetType(setType))
}

// ComputeDayAdherence matches logged sets against a day's plan items and
// scores completion. Sets are selected into the day by their precomputed
// TrainingDate when present, else by LoggedAt falling inside the day's
// boundary-shifted time window. A malformed day key resolves to no window:
// zero matches, never an error, since this is a display path.
func ComputeDayAdherence(planItems []models.PlanItem, loggedSets []models.LoggedSet, opts DayOptions) DayAdherence {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	hour := NormalizeDayStartHour(opts.DayStartHour)

	dayKey := opts.DayKey
	if dayKey == "" {
		dayKey = EffectiveDayKey(now, hour)
	}

	setsInWindow := selectSetsForDay(loggedSets, dayKey, hour, now.Location())

	matchedCounts := make(map[string]int)
	for _, set := range setsInWindow {
		matchedCounts[buildMatchKey(set.MachineID, set.SetType)]++
	}

	items := normalizeItems(planItems)
	allocated := allocateSets(items, matchedCounts)

	day := DayAdherence{
		DayKey:       dayKey,
		DayStartHour: hour,
		TotalItems:   len(items),
		Items:        make([]ItemAdherence, 0, len(items)),

		MatchedSetCount: len(setsInWindow),
	}
	if wd, ok := weekdayOfDayKey(dayKey); ok {
		day.Weekday = wd
	}

	for _, item := range items {
		completed := allocated[item.id]
		touched := completed > 0

		var isComplete, isPartial bool
		if item.plannedSets > 0 {
			isComplete = completed >= item.plannedSets
			isPartial = completed > 0 && completed < item.plannedSets
		} else {
			isComplete = touched
		}

		day.Items = append(day.Items, ItemAdherence{
			ItemID:        item.id,
			MachineID:     item.machineID,
			TargetSetType: item.setType,
			OrderIndex:    item.orderIndex,
			PlannedSets:   item.plannedSets,
			CompletedSets: completed,
			Touched:       touched,
			IsComplete:    isComplete,
			IsPartial:     isPartial,
		})

		if item.plannedSets > 0 {
			day.PlannedSets += item.plannedSets
			day.CompletedSets += min(completed, item.plannedSets)
		}
		if touched {
			day.TouchedItems++
		}
		if isComplete {
			day.CompleteItems++
		}
		if isPartial {
			day.PartialItems++
		}
	}

	day.Ratio = dualModeRatio(day.PlannedSets, day.CompletedSets, day.TotalItems, day.TouchedItems)
	return day
}

// ComputeWeekAdherence scores the Monday-anchored week containing the
// anchor's effective training day. Every day receives the full set list;
// the day-window filter inside ComputeDayAdherence scopes it.
func ComputeWeekAdherence(planDays []models.PlanDay, planItems []models.PlanItem, loggedSets []models.LoggedSet, opts WeekOptions) PlanProgressSummary {
	anchor := opts.AnchorDate
	if anchor.IsZero() {
		anchor = time.Now()
	}
	hour := NormalizeDayStartHour(opts.DayStartHour)

	anchorKey := EffectiveDayKey(anchor, hour)
	mondayOffset := 0
	if wd, ok := weekdayOfDayKey(anchorKey); ok {
		mondayOffset = (int(wd) + 6) % 7
	}
	mondayKey, _ := shiftDayKey(anchorKey, -mondayOffset)

	planByWeekday := make(map[time.Weekday]models.PlanDay, len(planDays))
	for _, pd := range planDays {
		planByWeekday[pd.Weekday] = pd
	}
	itemsByDayID := make(map[uuid.UUID][]models.PlanItem)
	for _, item := range planItems {
		if item.PlanDayID == uuid.Nil {
			continue
		}
		itemsByDayID[item.PlanDayID] = append(itemsByDayID[item.PlanDayID], item)
	}

	days := make([]DayAdherence, 0, 7)
	for i := 0; i < 7; i++ {
		dayKey, _ := shiftDayKey(mondayKey, i)

		var dayItems []models.PlanItem
		var planDay models.PlanDay
		if wd, ok := weekdayOfDayKey(dayKey); ok {
			if pd, exists := planByWeekday[wd]; exists {
				planDay = pd
				dayItems = itemsByDayID[pd.ID]
			}
		}

		day := ComputeDayAdherence(dayItems, loggedSets, DayOptions{
			DayKey:       dayKey,
			DayStartHour: hour,
			Now:          anchor,
		})
		day.PlanDayID = planDay.ID
		day.Label = planDay.Label
		days = append(days, day)
	}

	return SummarizePlanProgress(days)
}

// SummarizePlanProgress rolls day entries up into plan-level progress with
// the same dual-mode ratio rule applied at aggregate scope.
func SummarizePlanProgress(days []DayAdherence) PlanProgressSummary {
	summary := PlanProgressSummary{Days: days}
	for _, day := range days {
		summary.PlannedSets += day.PlannedSets
		summary.CompletedSets += day.CompletedSets
		summary.PlannedItems += day.TotalItems
		summary.TouchedItems += day.TouchedItems
		summary.PartialItems += day.PartialItems
	}

	summary.Ratio = dualModeRatio(summary.PlannedSets, summary.CompletedSets, summary.PlannedItems, summary.TouchedItems)
	if summary.PlannedSets > 0 {
		summary.CompletionMode = CompletionSetTargets
	} else {
		summary.CompletionMode = CompletionExerciseTouch
	}
	return summary
}

// selectSetsForDay picks the sets belonging to a training day. A set with a
// precomputed TrainingDate matches only on exact day-key equality; other
// sets fall back to the instant window, since precomputed dates may encode
// bucket semantics that diverge slightly from a pure time check.
func selectSetsForDay(sets []models.LoggedSet, dayKey string, dayStartHour int, loc *time.Location) []models.LoggedSet {
	start, end, ok := windowForDayKey(dayKey, dayStartHour, loc)
	if !ok {
		return nil
	}

	var selected []models.LoggedSet
	for _, set := range sets {
		if set.TrainingDate != "" {
			if set.TrainingDate == dayKey {
				selected = append(selected, set)
			}
			continue
		}
		if set.LoggedAt.IsZero() {
			continue
		}
		if !set.LoggedAt.Before(start) && set.LoggedAt.Before(end) {
			selected = append(selected, set)
		}
	}
	return selected
}

func normalizeItems(planItems []models.PlanItem) []normalizedItem {
	items := make([]normalizedItem, 0, len(planItems))
	for _, item := range planItems {
		planned := item.TargetSets
		if planned < 0 {
			planned = 0
		}
		items = append(items, normalizedItem{
			id:          item.ID,
			orderIndex:  item.OrderIndex,
			machineID:   item.EquipmentID,
			setType:     models.NormalizeSetType(item.TargetSetType),
			plannedSets: planned,
		})
	}
	return items
}

// allocateSets distributes each match key's counted sets across the plan
// items that share the key. First pass: items with explicit targets consume
// greedily in (orderIndex, id) order, so earlier items are fully satisfied
// before later ones receive anything. Second pass: leftover sets go to
// zero-target items, one unit each, in a single forward walk over the same
// order, stopping when nothing remains.
func allocateSets(items []normalizedItem, matchedCounts map[string]int) map[uuid.UUID]int {
	grouped := make(map[string][]normalizedItem)
	var keyOrder []string
	for _, item := range items {
		key := item.matchKey()
		if _, seen := grouped[key]; !seen {
			keyOrder = append(keyOrder, key)
		}
		grouped[key] = append(grouped[key], item)
	}

	allocated := make(map[uuid.UUID]int, len(items))
	for _, key := range keyOrder {
		group := append([]normalizedItem(nil), grouped[key]...)
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].orderIndex != group[j].orderIndex {
				return group[i].orderIndex < group[j].orderIndex
			}
			return group[i].id.String() < group[j].id.String()
		})

		remaining := matchedCounts[key]
		for _, item := range group {
			if item.plannedSets > 0 {
				take := min(item.plannedSets, remaining)
				allocated[item.id] = take
				remaining -= take
			} else {
				allocated[item.id] = 0
			}
		}

		if remaining > 0 {
			for _, item := range group {
				if remaining <= 0 {
					break
				}
				if item.plannedSets > 0 {
					continue
				}
				allocated[item.id]++
				remaining--
			}
		}
	}
	return allocated
}

// dualModeRatio scores quantitatively against planned sets when any exist,
// else by touched-item fraction. Both denominators are guarded so the
// result is a plain 0 instead of NaN on empty input.
func dualModeRatio(plannedSets, completedSets, totalItems, touchedItems int) float64 {
	if plannedSets > 0 {
		return float64(completedSets) / float64(plannedSets)
	}
	if totalItems > 0 {
		return float64(touchedItems) / float64(totalItems)
	}
	return 0
}
