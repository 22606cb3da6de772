package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/liftledger/internal/storage"
)

// handleImportCSV ingests a set-history CSV export. The body is either the
// raw CSV or a multipart form with a "file" part. Every run leaves an
// import_logs row, success or not.
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)
	if s.importer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "import not configured"})
		return
	}

	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file part: " + err.Error()})
			return
		}
		defer file.Close()
		body = file
	}

	started := time.Now()
	logID, err := s.db.InsertImportLog(r.Context(), storage.ImportLog{
		UserID: uid,
		Source: "csv",
		Status: "running",
	})
	if err != nil {
		s.log.Error("failed to create import log", "error", err)
	}

	result, err := s.importer.Ingest(r.Context(), body, uid)
	durationMs := int(time.Since(started).Milliseconds())
	if err != nil {
		msg := err.Error()
		s.finishImportLog(r.Context(), logID, storage.ImportLog{
			Status:       "error",
			DurationMs:   &durationMs,
			ErrorMessage: &msg,
		})
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	s.finishImportLog(r.Context(), logID, storage.ImportLog{
		Status:          "success",
		SessionsParsed:  result.SessionsParsed,
		SetsParsed:      result.SetsParsed,
		SetsInserted:    result.SetsInserted,
		MachinesCreated: result.MachinesCreated,
		DurationMs:      &durationMs,
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) finishImportLog(ctx context.Context, id int64, log storage.ImportLog) {
	if id == 0 {
		return
	}
	if err := s.db.UpdateImportLog(ctx, id, log); err != nil {
		s.log.Error("failed to finalize import log", "log_id", id, "error", err)
	}
}
