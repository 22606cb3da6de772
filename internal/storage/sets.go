package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/claude/liftledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InsertLoggedSet stores a single set.
func (db *DB) InsertLoggedSet(ctx context.Context, set models.LoggedSet) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO logged_sets (id, user_id, machine_id, reps, weight, set_type,
		 duration_seconds, rest_seconds, logged_at, training_date, training_bucket_id, workout_cluster_id)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		set.ID, set.UserID, set.MachineID, set.Reps, set.Weight, string(set.SetType),
		set.DurationSeconds, set.RestSeconds, set.LoggedAt,
		set.TrainingDate, set.TrainingBucketID, set.WorkoutClusterID)
	if err != nil {
		return fmt.Errorf("inserting logged set: %w", err)
	}
	return nil
}

// InsertLoggedSets batch-inserts imported set data. Returns the number
// actually inserted (duplicates skipped via ON CONFLICT DO NOTHING).
func (db *DB) InsertLoggedSets(ctx context.Context, sets []models.LoggedSet) (int64, error) {
	if len(sets) == 0 {
		return 0, nil
	}

	query := `INSERT INTO logged_sets (id, user_id, machine_id, reps, weight, set_type,
		duration_seconds, rest_seconds, logged_at, training_date, training_bucket_id, workout_cluster_id) VALUES `
	args := make([]any, 0, len(sets)*12)
	valueStrings := make([]string, 0, len(sets))

	for i, s := range sets {
		base := i * 12
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
			base+7, base+8, base+9, base+10, base+11, base+12,
		))
		args = append(args, s.ID, s.UserID, s.MachineID, s.Reps, s.Weight, string(s.SetType),
			s.DurationSeconds, s.RestSeconds, s.LoggedAt,
			s.TrainingDate, s.TrainingBucketID, s.WorkoutClusterID)
	}

	query += strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING"

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting logged sets: %w", err)
	}
	return tag.RowsAffected(), nil
}

// QueryLoggedSets retrieves every set for a user, oldest first.
func (db *DB) QueryLoggedSets(ctx context.Context, userID int) ([]models.LoggedSet, error) {
	rows, err := db.Pool.Query(ctx,
		loggedSetColumns+` FROM logged_sets WHERE user_id = $1 ORDER BY logged_at ASC, id ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying logged sets: %w", err)
	}
	defer rows.Close()

	return scanLoggedSets(rows)
}

// QueryLoggedSetsRange retrieves a user's sets logged in [start, end).
func (db *DB) QueryLoggedSetsRange(ctx context.Context, start, end time.Time, userID int) ([]models.LoggedSet, error) {
	rows, err := db.Pool.Query(ctx,
		loggedSetColumns+` FROM logged_sets
		 WHERE logged_at >= $1 AND logged_at < $2 AND user_id = $3
		 ORDER BY logged_at ASC, id ASC`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying logged sets range: %w", err)
	}
	defer rows.Close()

	return scanLoggedSets(rows)
}

// DeleteLoggedSet removes a set owned by the user. Returns whether a row
// was deleted.
func (db *DB) DeleteLoggedSet(ctx context.Context, id uuid.UUID, userID int) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM logged_sets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("deleting logged set: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const loggedSetColumns = `SELECT id, user_id, machine_id, reps, weight, set_type,
	 duration_seconds, rest_seconds, logged_at, training_date, training_bucket_id, workout_cluster_id`

func scanLoggedSets(rows pgx.Rows) ([]models.LoggedSet, error) {
	var result []models.LoggedSet
	for rows.Next() {
		var s models.LoggedSet
		var setType string
		if err := rows.Scan(&s.ID, &s.UserID, &s.MachineID, &s.Reps, &s.Weight, &setType,
			&s.DurationSeconds, &s.RestSeconds, &s.LoggedAt,
			&s.TrainingDate, &s.TrainingBucketID, &s.WorkoutClusterID); err != nil {
			return nil, fmt.Errorf("scanning logged set: %w", err)
		}
		s.SetType = models.SetType(setType)
		result = append(result, s)
	}
	return result, rows.Err()
}
