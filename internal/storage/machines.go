package storage

import (
	"context"
	"fmt"

	"github.com/claude/liftledger/internal/models"
	"github.com/google/uuid"
)

// UpsertMachine creates or updates an equipment library entry.
func (db *DB) UpsertMachine(ctx context.Context, m models.Machine) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO machines (id, user_id, movement, muscle_groups, equipment_type)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (id) DO UPDATE
			SET movement = $3, muscle_groups = $4, equipment_type = $5
		 WHERE machines.user_id = $2`,
		m.ID, m.UserID, m.Movement, m.MuscleGroups, string(m.EquipmentType))
	if err != nil {
		return fmt.Errorf("upserting machine: %w", err)
	}
	return nil
}

// ListMachines returns a user's equipment library ordered by movement name.
func (db *DB) ListMachines(ctx context.Context, userID int) ([]models.Machine, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, movement, muscle_groups, equipment_type
		 FROM machines WHERE user_id = $1 ORDER BY movement ASC, id ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying machines: %w", err)
	}
	defer rows.Close()

	var result []models.Machine
	for rows.Next() {
		var m models.Machine
		var equipmentType string
		if err := rows.Scan(&m.ID, &m.UserID, &m.Movement, &m.MuscleGroups, &equipmentType); err != nil {
			return nil, fmt.Errorf("scanning machine: %w", err)
		}
		m.EquipmentType = models.EquipmentType(equipmentType)
		result = append(result, m)
	}
	return result, rows.Err()
}

// GetMachineByMovement finds a user's machine by its movement name. Used by
// the importer to map exercise names onto the equipment library.
func (db *DB) GetMachineByMovement(ctx context.Context, userID int, movement string) (models.Machine, bool, error) {
	var m models.Machine
	var equipmentType string
	err := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, movement, muscle_groups, equipment_type
		 FROM machines WHERE user_id = $1 AND movement = $2`,
		userID, movement).Scan(&m.ID, &m.UserID, &m.Movement, &m.MuscleGroups, &equipmentType)
	if err != nil {
		if isNoRows(err) {
			return models.Machine{}, false, nil
		}
		return models.Machine{}, false, fmt.Errorf("querying machine by movement: %w", err)
	}
	m.EquipmentType = models.EquipmentType(equipmentType)
	return m, true, nil
}

// DeleteMachine removes a machine owned by the user. Returns whether a row
// was deleted. Logged sets referencing the machine are kept; the analytics
// treat them as unresolvable.
func (db *DB) DeleteMachine(ctx context.Context, id uuid.UUID, userID int) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM machines WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("deleting machine: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
