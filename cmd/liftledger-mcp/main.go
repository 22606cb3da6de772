package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/liftledger/internal/config"
	"github.com/claude/liftledger/internal/insights"
	"github.com/claude/liftledger/internal/mcp"
	"github.com/claude/liftledger/internal/storage"
)

// Version is set via ldflags during build.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	remoteURL := flag.String("remote", "", "base URL of a running liftledger server (remote mode)")
	userID := flag.Int("user", 1, "user ID to serve data for")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("liftledger-mcp %s\n", Version)
		return
	}

	// Stdout carries the MCP protocol, so logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds mcp.DataSource
	var opts mcp.Options

	if *remoteURL != "" {
		ds = mcp.NewHTTPClient(*remoteURL)
		opts.DayStartHour = insights.DefaultDayStartHour
		opts.RollingWeeks = insights.DefaultRollingWeeks
		log.Info("using remote data source", "url", *remoteURL)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		db, err := storage.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ds = db
		opts.DayStartHour = cfg.Insights.DayStartHour
		opts.RollingWeeks = cfg.Insights.RollingWeeks
		log.Info("using local database", "host", cfg.Database.Host)
	}

	s := mcp.New(ds, Version, opts, log)

	log.Info("starting MCP server on stdio", "version", Version, "user", *userID)
	if err := server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return mcp.WithUserID(ctx, *userID)
	})); err != nil {
		log.Error("MCP server exited", "error", err)
		os.Exit(1)
	}
}
