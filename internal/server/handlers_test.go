package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/liftledger/internal/ingest"
	"github.com/claude/liftledger/internal/insights"
	"github.com/claude/liftledger/internal/models"
	"github.com/claude/liftledger/internal/storage"
	"github.com/google/uuid"
)

// stubStore is an in-memory Store for handler tests.
type stubStore struct {
	sets     []models.LoggedSet
	machines []models.Machine
	planID   uuid.UUID
	days     []models.PlanDay
	items    []models.PlanItem

	inserted   []models.LoggedSet
	upserted   []models.Machine
	deleted    []uuid.UUID
	importLogs []storage.ImportLog
}

func (st *stubStore) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	return 1, nil
}

func (st *stubStore) InsertLoggedSet(ctx context.Context, set models.LoggedSet) error {
	st.inserted = append(st.inserted, set)
	return nil
}

func (st *stubStore) QueryLoggedSets(ctx context.Context, userID int) ([]models.LoggedSet, error) {
	return st.sets, nil
}

func (st *stubStore) QueryLoggedSetsRange(ctx context.Context, start, end time.Time, userID int) ([]models.LoggedSet, error) {
	var result []models.LoggedSet
	for _, s := range st.sets {
		if !s.LoggedAt.Before(start) && s.LoggedAt.Before(end) {
			result = append(result, s)
		}
	}
	return result, nil
}

func (st *stubStore) DeleteLoggedSet(ctx context.Context, id uuid.UUID, userID int) (bool, error) {
	for _, s := range st.sets {
		if s.ID == id {
			st.deleted = append(st.deleted, id)
			return true, nil
		}
	}
	return false, nil
}

func (st *stubStore) UpsertMachine(ctx context.Context, m models.Machine) error {
	st.upserted = append(st.upserted, m)
	return nil
}

func (st *stubStore) ListMachines(ctx context.Context, userID int) ([]models.Machine, error) {
	return st.machines, nil
}

func (st *stubStore) DeleteMachine(ctx context.Context, id uuid.UUID, userID int) (bool, error) {
	for _, m := range st.machines {
		if m.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (st *stubStore) ActivePlanID(ctx context.Context, userID int) (uuid.UUID, bool, error) {
	return st.planID, st.planID != uuid.Nil, nil
}

func (st *stubStore) ListPlanDays(ctx context.Context, planID uuid.UUID) ([]models.PlanDay, error) {
	return st.days, nil
}

func (st *stubStore) ListPlanItems(ctx context.Context, planID uuid.UUID) ([]models.PlanItem, error) {
	return st.items, nil
}

func (st *stubStore) ListPlanItemsForDay(ctx context.Context, planDayID uuid.UUID) ([]models.PlanItem, error) {
	var result []models.PlanItem
	for _, item := range st.items {
		if item.PlanDayID == planDayID {
			result = append(result, item)
		}
	}
	return result, nil
}

func (st *stubStore) GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error) {
	return &storage.DataStats{TotalSets: int64(len(st.sets))}, nil
}

func (st *stubStore) InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error) {
	st.importLogs = append(st.importLogs, log)
	return int64(len(st.importLogs)), nil
}

func (st *stubStore) UpdateImportLog(ctx context.Context, id int64, log storage.ImportLog) error {
	st.importLogs[id-1] = log
	return nil
}

func (st *stubStore) QueryImportLogs(ctx context.Context, userID, limit int) ([]storage.ImportLog, error) {
	return st.importLogs, nil
}

// The stub also backs the CSV importer in tests.
func (st *stubStore) GetMachineByMovement(ctx context.Context, userID int, movement string) (models.Machine, bool, error) {
	for _, m := range st.machines {
		if m.Movement == movement {
			return m, true, nil
		}
	}
	return models.Machine{}, false, nil
}

func (st *stubStore) InsertLoggedSets(ctx context.Context, sets []models.LoggedSet) (int64, error) {
	st.inserted = append(st.inserted, sets...)
	return int64(len(sets)), nil
}

func newTestServer(st *stubStore) *Server {
	return New(st, ingest.NewProvider(st, slog.Default()), "test-key", insights.DefaultDayStartHour, insights.DefaultRollingWeeks, slog.Default())
}

var (
	benchPressID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	rowID        = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func testStore() *stubStore {
	planID := uuid.MustParse("33333333-3333-3333-3333-333333333333")
	dayID := uuid.MustParse("44444444-4444-4444-4444-444444444444")
	return &stubStore{
		machines: []models.Machine{
			{ID: benchPressID, UserID: 1, Movement: "Bench Press", MuscleGroups: []string{"Chest", "Triceps"}, EquipmentType: models.EquipmentFreeweight},
			{ID: rowID, UserID: 1, Movement: "Seated Row", MuscleGroups: []string{"Back"}, EquipmentType: models.EquipmentCable},
		},
		sets: []models.LoggedSet{
			{ID: uuid.MustParse("55555555-5555-5555-5555-555555555555"), UserID: 1, MachineID: benchPressID, Reps: 8, Weight: 60, SetType: models.SetTypeWorking, LoggedAt: time.Date(2024, 3, 11, 18, 0, 0, 0, time.UTC), TrainingDate: "2024-03-11"},
			{ID: uuid.MustParse("66666666-6666-6666-6666-666666666666"), UserID: 1, MachineID: rowID, Reps: 10, Weight: 50, SetType: models.SetTypeWorking, LoggedAt: time.Date(2024, 3, 11, 18, 10, 0, 0, time.UTC), TrainingDate: "2024-03-11"},
		},
		planID: planID,
		days: []models.PlanDay{
			{ID: dayID, PlanID: planID, Weekday: time.Monday, Label: "Push"},
		},
		items: []models.PlanItem{
			{ID: uuid.MustParse("77777777-7777-7777-7777-777777777777"), PlanDayID: dayID, EquipmentID: benchPressID, TargetSetType: models.SetTypeWorking, TargetSets: 3, OrderIndex: 0},
		},
	}
}

func TestHandleMeDefault(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	ctx := context.WithValue(req.Context(), userInfoKey, UserInfo{Login: "local", DisplayName: "Local Dev User"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	s.handleMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "local" {
		t.Errorf("login = %q, want %q", info.Login, "local")
	}
	if info.DisplayName != "Local Dev User" {
		t.Errorf("display_name = %q, want %q", info.DisplayName, "Local Dev User")
	}
}

func TestHandleMeTailscaleUser(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	ctx := context.WithValue(req.Context(), userInfoKey, UserInfo{Login: "alice@example.com", DisplayName: "Alice"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	s.handleMe(rec, req)

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "alice@example.com" {
		t.Errorf("login = %q, want %q", info.Login, "alice@example.com")
	}
}

// TestHandleLogSet verifies ID and timestamp defaults and that the stored set
// carries the authenticated user.
func TestHandleLogSet(t *testing.T) {
	st := testStore()
	s := newTestServer(st)

	body := `{"machine_id":"11111111-1111-1111-1111-111111111111","reps":5,"weight":80}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sets", strings.NewReader(body))
	req.Header.Set("X-API-Key", "test-key")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if len(st.inserted) != 1 {
		t.Fatalf("inserted %d sets, want 1", len(st.inserted))
	}
	got := st.inserted[0]
	if got.ID == uuid.Nil {
		t.Error("set ID was not generated")
	}
	if got.LoggedAt.IsZero() {
		t.Error("LoggedAt was not defaulted")
	}
	if got.UserID != 1 {
		t.Errorf("userID = %d, want 1", got.UserID)
	}
	if got.SetType != models.SetTypeWorking {
		t.Errorf("setType = %q, want working default", got.SetType)
	}
}

func TestHandleLogSetValidation(t *testing.T) {
	s := newTestServer(testStore())

	tests := []struct {
		name string
		body string
	}{
		{"missing machine", `{"reps":5,"weight":80}`},
		{"zero reps", `{"machine_id":"11111111-1111-1111-1111-111111111111","reps":0,"weight":80}`},
		{"negative weight", `{"machine_id":"11111111-1111-1111-1111-111111111111","reps":5,"weight":-1}`},
		{"bad json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sets", strings.NewReader(tt.body))
			req.Header.Set("X-API-Key", "test-key")
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleLogSetRequiresAPIKey(t *testing.T) {
	s := newTestServer(testStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sets", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing key: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/sets", strings.NewReader(`{}`))
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong key: status = %d, want 403", rec.Code)
	}
}

func TestHandleDeleteSetNotFound(t *testing.T) {
	s := newTestServer(testStore())

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sets/99999999-9999-9999-9999-999999999999", nil)
	req.Header.Set("X-API-Key", "test-key")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleTrainingBuckets(t *testing.T) {
	s := newTestServer(testStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history/buckets", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var buckets []insights.TrainingBucket
	if err := json.NewDecoder(rec.Body).Decode(&buckets); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("got %d buckets, want 1", len(buckets))
	}
	if len(buckets[0].Sets) != 2 {
		t.Errorf("bucket has %d sets, want 2", len(buckets[0].Sets))
	}
}

// TestHandleImportCSV posts a small export and checks the ingest result and
// the recorded import log.
func TestHandleImportCSV(t *testing.T) {
	st := testStore()
	s := newTestServer(st)

	csv := `"Push · Day 1";"2024-03-11 6:10 h";"0:45 hr"
"1. Bench Press · Barbell · 8 reps"
#;KG;REPS;RIR
1;80;8;1
2;80;8;0
`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", strings.NewReader(csv))
	req.Header.Set("X-API-Key", "test-key")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var result ingest.Result
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.SessionsParsed != 1 || result.SetsInserted != 2 {
		t.Errorf("sessions/inserted = %d/%d, want 1/2", result.SessionsParsed, result.SetsInserted)
	}
	if len(st.importLogs) != 1 {
		t.Fatalf("got %d import logs, want 1", len(st.importLogs))
	}
	if st.importLogs[0].Status != "success" {
		t.Errorf("import log status = %q, want success", st.importLogs[0].Status)
	}
}

func TestHandleImportCSVRequiresAPIKey(t *testing.T) {
	s := newTestServer(testStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", strings.NewReader(""))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestHandleActivePlan(t *testing.T) {
	s := newTestServer(testStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plan", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var payload struct {
		PlanID *uuid.UUID        `json:"plan_id"`
		Days   []models.PlanDay  `json:"days"`
		Items  []models.PlanItem `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.PlanID == nil {
		t.Fatal("plan_id missing")
	}
	if len(payload.Days) != 1 || payload.Days[0].Label != "Push" {
		t.Errorf("days = %+v, want one Push day", payload.Days)
	}
	if len(payload.Items) != 1 {
		t.Errorf("got %d items, want 1", len(payload.Items))
	}
}

func TestHandleActivePlanNone(t *testing.T) {
	s := newTestServer(&stubStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plan", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var payload struct {
		PlanID *uuid.UUID       `json:"plan_id"`
		Days   []models.PlanDay `json:"days"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.PlanID != nil {
		t.Errorf("plan_id = %v, want null", payload.PlanID)
	}
	if len(payload.Days) != 0 {
		t.Errorf("got %d days, want 0", len(payload.Days))
	}
}

// TestHandleDayAdherence requests the Monday the plan targets and checks the
// plan day resolution and item scoring.
func TestHandleDayAdherence(t *testing.T) {
	s := newTestServer(testStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights/day?day=2024-03-11", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var day insights.DayAdherence
	if err := json.NewDecoder(rec.Body).Decode(&day); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if day.Label != "Push" {
		t.Errorf("label = %q, want Push", day.Label)
	}
	if day.TotalItems != 1 {
		t.Fatalf("totalItems = %d, want 1", day.TotalItems)
	}
	if day.CompletedSets != 1 {
		t.Errorf("completedSets = %d, want 1 (one bench set logged)", day.CompletedSets)
	}
	if day.MatchedSetCount != 2 {
		t.Errorf("matchedSetCount = %d, want 2", day.MatchedSetCount)
	}
}

func TestHandleWeekAdherence(t *testing.T) {
	s := newTestServer(testStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights/week?anchor=2024-03-13", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var week insights.PlanProgressSummary
	if err := json.NewDecoder(rec.Body).Decode(&week); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(week.Days) != 7 {
		t.Fatalf("got %d days, want 7", len(week.Days))
	}
	if week.Days[0].DayKey != "2024-03-11" {
		t.Errorf("week starts %s, want Monday 2024-03-11", week.Days[0].DayKey)
	}
	if week.PlannedSets != 3 || week.CompletedSets != 1 {
		t.Errorf("planned/completed = %d/%d, want 3/1", week.PlannedSets, week.CompletedSets)
	}
}

func TestHandleWeekAdherenceBadAnchor(t *testing.T) {
	s := newTestServer(testStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights/week?anchor=march-11", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleProgression(t *testing.T) {
	s := newTestServer(testStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights/progression/"+benchPressID.String(), nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var points []insights.ProgressionPoint
	if err := json.NewDecoder(rec.Body).Decode(&points); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d points, want 1", len(points))
	}
}

func TestHandleProgressionUnknownWindow(t *testing.T) {
	s := newTestServer(testStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights/progression/"+benchPressID.String()+"?window=1y", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleDashboard(t *testing.T) {
	s := newTestServer(testStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights/dashboard", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var payload struct {
		Workload    insights.WorkloadSummary    `json:"workload"`
		Balance     insights.BalanceIndex       `json:"balance"`
		Consistency insights.ConsistencySummary `json:"consistency"`
		Warning     string                      `json:"warning"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Workload.ContributingSetCount != 2 {
		t.Errorf("contributingSetCount = %d, want 2", payload.Workload.ContributingSetCount)
	}
	if len(payload.Consistency.Weeks) != insights.DefaultRollingWeeks {
		t.Errorf("got %d weeks, want %d", len(payload.Consistency.Weeks), insights.DefaultRollingWeeks)
	}
}

func TestHandleDashboardBadWeeks(t *testing.T) {
	s := newTestServer(testStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights/dashboard?weeks=-2", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
