package mcp

import (
	"context"

	"github.com/google/uuid"

	"github.com/claude/liftledger/internal/models"
	"github.com/claude/liftledger/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface. The tools fetch
// raw history and plans through it and run the insight computations themselves,
// so local and remote mode produce identical answers.
type DataSource interface {
	QueryLoggedSets(ctx context.Context, userID int) ([]models.LoggedSet, error)
	ListMachines(ctx context.Context, userID int) ([]models.Machine, error)
	ActivePlanID(ctx context.Context, userID int) (uuid.UUID, bool, error)
	ListPlanDays(ctx context.Context, planID uuid.UUID) ([]models.PlanDay, error)
	ListPlanItems(ctx context.Context, planID uuid.UUID) ([]models.PlanItem, error)
	ListPlanItemsForDay(ctx context.Context, planDayID uuid.UUID) ([]models.PlanItem, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
