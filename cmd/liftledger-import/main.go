package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/claude/liftledger/internal/config"
	"github.com/claude/liftledger/internal/ingest"
	"github.com/claude/liftledger/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	importPath := flag.String("path", "", "CSV export file or directory of exports (required)")
	userID := flag.Int("user", 1, "user ID to import for")
	stateDir := flag.String("state-dir", "", "state directory for file dedup (default ~/.liftledger-import)")
	dryRun := flag.Bool("dry-run", false, "parse and report counts without inserting into database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *importPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: liftledger-import -config config.yaml -path /path/to/export.csv [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	files, err := collectFiles(*importPath)
	if err != nil {
		log.Error("failed to resolve import path", "path", *importPath, "error", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		log.Info("no CSV files found", "path", *importPath)
		return
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()

	// Run migrations
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode — no data will be written to the database")
	}

	// Connect database
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	// Open state database for file dedup
	dir := *stateDir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Error("failed to get home directory", "error", err)
			os.Exit(1)
		}
		dir = filepath.Join(homeDir, ".liftledger-import")
	}
	state, err := ingest.OpenStateDB(dir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	provider := ingest.NewProvider(db, log)

	var filesImported, filesSkipped, filesErrored int
	var totals ingest.Result

	for _, path := range files {
		if err := importFile(ctx, db, provider, state, path, *userID, *dryRun, log, &totals); err != nil {
			switch err {
			case errAlreadyImported:
				filesSkipped++
			default:
				log.Error("import failed", "file", path, "error", err)
				filesErrored++
			}
			continue
		}
		filesImported++
	}

	log.Info("import complete",
		"files_imported", filesImported,
		"files_skipped", filesSkipped,
		"files_errored", filesErrored,
		"sessions_parsed", totals.SessionsParsed,
		"sets_parsed", totals.SetsParsed,
		"sets_inserted", totals.SetsInserted,
		"sets_skipped", totals.SetsSkipped,
		"machines_created", totals.MachinesCreated,
	)
	if filesErrored > 0 {
		os.Exit(1)
	}
}

var errAlreadyImported = fmt.Errorf("already imported")

func importFile(ctx context.Context, db *storage.DB, provider *ingest.Provider, state *ingest.StateDB, path string, userID int, dryRun bool, log *slog.Logger, totals *ingest.Result) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hash, err := ingest.HashFile(path)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", path, err)
	}

	name := filepath.Base(path)
	done, err := state.IsImported(name, info.Size(), hash)
	if err != nil {
		return err
	}
	if done {
		log.Info("skipping already imported file", "file", name)
		return errAlreadyImported
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if dryRun {
		sessions, err := ingest.ParseCSV(f)
		if err != nil {
			return err
		}
		sets := 0
		for _, s := range sessions {
			for _, ex := range s.Exercises {
				sets += len(ex.Sets)
			}
		}
		log.Info("parsed", "file", name, "sessions", len(sessions), "sets", sets)
		totals.SessionsParsed += len(sessions)
		totals.SetsParsed += sets
		return nil
	}

	started := time.Now()
	logID, logErr := db.InsertImportLog(ctx, storage.ImportLog{
		UserID: userID,
		Source: "csv",
		Status: "running",
	})
	if logErr != nil {
		log.Error("failed to create import log", "error", logErr)
	}

	result, err := provider.Ingest(ctx, f, userID)
	durationMs := int(time.Since(started).Milliseconds())
	if err != nil {
		if logID != 0 {
			msg := err.Error()
			_ = db.UpdateImportLog(ctx, logID, storage.ImportLog{
				Status:       "error",
				DurationMs:   &durationMs,
				ErrorMessage: &msg,
			})
		}
		return err
	}

	if logID != 0 {
		if err := db.UpdateImportLog(ctx, logID, storage.ImportLog{
			Status:          "success",
			SessionsParsed:  result.SessionsParsed,
			SetsParsed:      result.SetsParsed,
			SetsInserted:    result.SetsInserted,
			MachinesCreated: result.MachinesCreated,
			DurationMs:      &durationMs,
		}); err != nil {
			log.Error("failed to finalize import log", "log_id", logID, "error", err)
		}
	}

	if err := state.MarkImported(name, info.Size(), hash); err != nil {
		log.Error("failed to record imported file", "file", name, "error", err)
	}

	totals.SessionsParsed += result.SessionsParsed
	totals.SetsParsed += result.SetsParsed
	totals.SetsInserted += result.SetsInserted
	totals.SetsSkipped += result.SetsSkipped
	totals.MachinesCreated += result.MachinesCreated
	return nil
}

// collectFiles resolves the import path into a list of CSV files.
func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".csv") {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}
