package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/liftledger/internal/ingest"
	"github.com/claude/liftledger/internal/models"
	"github.com/claude/liftledger/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"tailscale.com/client/local"
)

// Store is the storage surface the handlers need. *storage.DB satisfies it;
// tests substitute a stub.
type Store interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)

	InsertLoggedSet(ctx context.Context, set models.LoggedSet) error
	QueryLoggedSets(ctx context.Context, userID int) ([]models.LoggedSet, error)
	QueryLoggedSetsRange(ctx context.Context, start, end time.Time, userID int) ([]models.LoggedSet, error)
	DeleteLoggedSet(ctx context.Context, id uuid.UUID, userID int) (bool, error)

	UpsertMachine(ctx context.Context, m models.Machine) error
	ListMachines(ctx context.Context, userID int) ([]models.Machine, error)
	DeleteMachine(ctx context.Context, id uuid.UUID, userID int) (bool, error)

	ActivePlanID(ctx context.Context, userID int) (uuid.UUID, bool, error)
	ListPlanDays(ctx context.Context, planID uuid.UUID) ([]models.PlanDay, error)
	ListPlanItems(ctx context.Context, planID uuid.UUID) ([]models.PlanItem, error)
	ListPlanItemsForDay(ctx context.Context, planDayID uuid.UUID) ([]models.PlanItem, error)

	GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error)
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	UpdateImportLog(ctx context.Context, id int64, log storage.ImportLog) error
	QueryImportLogs(ctx context.Context, userID, limit int) ([]storage.ImportLog, error)
}

// Importer ingests a CSV set-history export for a user.
type Importer interface {
	Ingest(ctx context.Context, r io.Reader, userID int) (*ingest.Result, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	db           Store
	importer     Importer
	log          *slog.Logger
	apiKey       string
	dayStartHour int
	rollingWeeks int
	tsClient     *local.Client
	router       chi.Router
}

// New creates a new Server with all routes configured. dayStartHour and
// rollingWeeks are the configured defaults; query parameters override them
// per request.
func New(db Store, importer Importer, apiKey string, dayStartHour, rollingWeeks int, log *slog.Logger) *Server {
	s := &Server{
		db:           db,
		importer:     importer,
		log:          log,
		apiKey:       apiKey,
		dayStartHour: dayStartHour,
		rollingWeeks: rollingWeeks,
		router:       chi.NewRouter(),
	}
	s.routes()
	return s
}

// SetTailscale enables identity resolution through the tsnet local client.
// Without it every request maps to the local dev user.
func (s *Server) SetTailscale(lc *local.Client) {
	s.tsClient = lc
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Get("/api/v1/me", s.handleMe)

	// Mutating endpoints (API key required on top of tsnet access)
	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/api/v1/sets", s.handleLogSet)
		r.Delete("/api/v1/sets/{id}", s.handleDeleteSet)
		r.Post("/api/v1/machines", s.handleUpsertMachine)
		r.Delete("/api/v1/machines/{id}", s.handleDeleteMachine)
		r.Post("/api/v1/import", s.handleImportCSV)
	})

	// Read endpoints (no extra auth — tsnet handles access)
	s.router.Get("/api/v1/sets", s.handleListSets)
	s.router.Get("/api/v1/machines", s.handleListMachines)
	s.router.Get("/api/v1/plan", s.handleActivePlan)
	s.router.Get("/api/v1/history/buckets", s.handleTrainingBuckets)
	s.router.Get("/api/v1/insights/day", s.handleDayAdherence)
	s.router.Get("/api/v1/insights/week", s.handleWeekAdherence)
	s.router.Get("/api/v1/insights/progression/{machineID}", s.handleProgression)
	s.router.Get("/api/v1/insights/dashboard", s.handleDashboard)
	s.router.Get("/api/v1/stats", s.handleStats)
	s.router.Get("/api/v1/import-logs", s.handleImportLogs)
}
