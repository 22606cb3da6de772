package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/claude/liftledger/internal/models"
	"github.com/google/uuid"
)

// Result holds the outcome of an import operation.
type Result struct {
	SessionsParsed  int    `json:"sessions_parsed"`
	SetsParsed      int    `json:"sets_parsed"`
	SetsInserted    int64  `json:"sets_inserted"`
	SetsSkipped     int64  `json:"sets_skipped"`
	MachinesCreated int    `json:"machines_created"`
	Message         string `json:"message,omitempty"`
}

// Store is the storage surface the importer needs.
type Store interface {
	GetMachineByMovement(ctx context.Context, userID int, movement string) (models.Machine, bool, error)
	UpsertMachine(ctx context.Context, m models.Machine) error
	InsertLoggedSets(ctx context.Context, sets []models.LoggedSet) (int64, error)
}

// Provider converts CSV set-history exports into logged sets, creating
// equipment library entries for movements it has not seen before.
type Provider struct {
	db  Store
	log *slog.Logger
}

// NewProvider creates a new CSV import provider.
func NewProvider(db Store, log *slog.Logger) *Provider {
	return &Provider{db: db, log: log}
}

// Ingest parses a CSV export and stores the set data. Set IDs are derived
// from the session and set coordinates, so re-importing the same file is a
// no-op at the database layer.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, userID int) (*Result, error) {
	sessions, err := ParseCSV(r)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}

	result := &Result{SessionsParsed: len(sessions)}
	var rows []models.LoggedSet

	for _, s := range sessions {
		bucketID := fmt.Sprintf("csv:%s:%s", s.Date.Format("2006-01-02"), s.Name)
		for _, ex := range s.Exercises {
			machine, err := p.machineFor(ctx, userID, ex, result)
			if err != nil {
				return nil, err
			}
			for _, set := range ex.Sets {
				rows = append(rows, models.LoggedSet{
					ID:               setID(userID, s, ex, set),
					UserID:           userID,
					MachineID:        machine.ID,
					Reps:             set.Reps,
					Weight:           set.WeightKg,
					SetType:          setTypeFor(set),
					LoggedAt:         s.Date,
					TrainingDate:     s.Date.Format("2006-01-02"),
					TrainingBucketID: bucketID,
				})
			}
		}
	}

	result.SetsParsed = len(rows)
	if len(rows) > 0 {
		inserted, err := p.db.InsertLoggedSets(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("inserting sets: %w", err)
		}
		result.SetsInserted = inserted
		result.SetsSkipped = int64(len(rows)) - inserted
	}

	p.log.Info("csv import done",
		"sessions", result.SessionsParsed,
		"sets", result.SetsParsed,
		"inserted", result.SetsInserted,
		"machines_created", result.MachinesCreated,
	)
	return result, nil
}

// machineFor resolves the exercise's movement to an equipment library entry,
// creating one when missing. New entries carry no muscle groups; the
// analytics exclude them from workload until the user fills them in.
func (p *Provider) machineFor(ctx context.Context, userID int, ex Exercise, result *Result) (models.Machine, error) {
	machine, found, err := p.db.GetMachineByMovement(ctx, userID, ex.Name)
	if err != nil {
		return models.Machine{}, fmt.Errorf("resolving machine for %q: %w", ex.Name, err)
	}
	if found {
		return machine, nil
	}

	machine = models.Machine{
		ID:            uuid.New(),
		UserID:        userID,
		Movement:      ex.Name,
		EquipmentType: equipmentTypeFor(ex.Equipment),
	}
	if err := p.db.UpsertMachine(ctx, machine); err != nil {
		return models.Machine{}, fmt.Errorf("creating machine for %q: %w", ex.Name, err)
	}
	result.MachinesCreated++
	return machine, nil
}

func setTypeFor(set Set) models.SetType {
	if set.IsWarmup {
		return models.SetTypeWarmup
	}
	return models.SetTypeWorking
}

// setID derives a stable UUID from the set's coordinates in the export.
func setID(userID int, s Session, ex Exercise, set Set) uuid.UUID {
	key := fmt.Sprintf("%d|%s|%s|%d|%s|%t|%d",
		userID, s.Date.Format(time.RFC3339), s.Name, ex.Number, ex.Name, set.IsWarmup, set.Number)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key))
}
