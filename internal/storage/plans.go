package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/liftledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ActivePlanID returns the user's active weekly plan, or ok=false when no
// plan is active.
func (db *DB) ActivePlanID(ctx context.Context, userID int) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := db.Pool.QueryRow(ctx,
		`SELECT id FROM plans WHERE user_id = $1 AND active ORDER BY created_at DESC LIMIT 1`,
		userID).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("querying active plan: %w", err)
	}
	return id, true, nil
}

// ListPlanDays returns the weekday rows of a plan ordered by weekday.
func (db *DB) ListPlanDays(ctx context.Context, planID uuid.UUID) ([]models.PlanDay, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, plan_id, weekday, label FROM plan_days
		 WHERE plan_id = $1 ORDER BY weekday ASC`,
		planID)
	if err != nil {
		return nil, fmt.Errorf("querying plan days: %w", err)
	}
	defer rows.Close()

	var result []models.PlanDay
	for rows.Next() {
		var d models.PlanDay
		var weekday int
		if err := rows.Scan(&d.ID, &d.PlanID, &weekday, &d.Label); err != nil {
			return nil, fmt.Errorf("scanning plan day: %w", err)
		}
		d.Weekday = time.Weekday(weekday)
		result = append(result, d)
	}
	return result, rows.Err()
}

// ListPlanItems returns every item of a plan, joined through its days,
// ordered by order_index within each day.
func (db *DB) ListPlanItems(ctx context.Context, planID uuid.UUID) ([]models.PlanItem, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT i.id, i.plan_day_id, i.equipment_id, i.target_set_type, i.target_sets, i.order_index
		 FROM plan_items i
		 JOIN plan_days d ON d.id = i.plan_day_id
		 WHERE d.plan_id = $1
		 ORDER BY d.weekday ASC, i.order_index ASC, i.id ASC`,
		planID)
	if err != nil {
		return nil, fmt.Errorf("querying plan items: %w", err)
	}
	defer rows.Close()

	return scanPlanItems(rows)
}

// ListPlanItemsForDay returns the items of a single plan day ordered by
// order_index.
func (db *DB) ListPlanItemsForDay(ctx context.Context, planDayID uuid.UUID) ([]models.PlanItem, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, plan_day_id, equipment_id, target_set_type, target_sets, order_index
		 FROM plan_items WHERE plan_day_id = $1 ORDER BY order_index ASC, id ASC`,
		planDayID)
	if err != nil {
		return nil, fmt.Errorf("querying plan day items: %w", err)
	}
	defer rows.Close()

	return scanPlanItems(rows)
}

func scanPlanItems(rows pgx.Rows) ([]models.PlanItem, error) {
	var result []models.PlanItem
	for rows.Next() {
		var item models.PlanItem
		var setType string
		if err := rows.Scan(&item.ID, &item.PlanDayID, &item.EquipmentID,
			&setType, &item.TargetSets, &item.OrderIndex); err != nil {
			return nil, fmt.Errorf("scanning plan item: %w", err)
		}
		item.TargetSetType = models.SetType(setType)
		result = append(result, item)
	}
	return result, rows.Err()
}
