package storage

import (
	"context"
	"fmt"
	"time"
)

// DataStats holds aggregate statistics about a user's stored data.
type DataStats struct {
	TotalSets     int64              `json:"total_sets"`
	TotalMachines int64              `json:"total_machines"`
	EarliestSet   *time.Time         `json:"earliest_set"`
	LatestSet     *time.Time         `json:"latest_set"`
	SetsByMachine []MachineSetsStat  `json:"sets_by_machine"`
}

// MachineSetsStat holds summary stats for a single machine.
type MachineSetsStat struct {
	Movement    string  `json:"movement"`
	Count       int64   `json:"count"`
	TotalVolume float64 `json:"total_volume"`
	MaxWeight   float64 `json:"max_weight"`
}

// GetDataStats returns aggregate statistics for a user's stored data.
func (db *DB) GetDataStats(ctx context.Context, userID int) (*DataStats, error) {
	stats := &DataStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), MIN(logged_at), MAX(logged_at)
		 FROM logged_sets WHERE user_id = $1`, userID,
	).Scan(&stats.TotalSets, &stats.EarliestSet, &stats.LatestSet)
	if err != nil {
		return nil, fmt.Errorf("counting logged sets: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM machines WHERE user_id = $1`, userID,
	).Scan(&stats.TotalMachines)
	if err != nil {
		return nil, fmt.Errorf("counting machines: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT m.movement, COUNT(*), COALESCE(SUM(s.reps * s.weight), 0), COALESCE(MAX(s.weight), 0)
		 FROM logged_sets s
		 JOIN machines m ON m.id = s.machine_id
		 WHERE s.user_id = $1
		 GROUP BY m.movement
		 ORDER BY COUNT(*) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sets by machine: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s MachineSetsStat
		if err := rows.Scan(&s.Movement, &s.Count, &s.TotalVolume, &s.MaxWeight); err != nil {
			return nil, fmt.Errorf("scanning machine stat: %w", err)
		}
		stats.SetsByMachine = append(stats.SetsByMachine, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
