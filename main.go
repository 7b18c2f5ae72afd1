package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/danielhkuo/municipal-results/audit"
	"github.com/danielhkuo/municipal-results/blob"
	"github.com/danielhkuo/municipal-results/cliparse"
	"github.com/danielhkuo/municipal-results/db"
	"github.com/danielhkuo/municipal-results/ledger"
	"github.com/danielhkuo/municipal-results/router"
	"github.com/danielhkuo/municipal-results/stats"
)

func main() {
	// A missing .env is fine; real deployments use the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the database
	dbConn, dialect, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	store, err := blob.Open(ctx, cfg)
	if err != nil {
		slog.Error("blob store setup failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Blob store ready", "driver", store.Driver())

	sink, closeSink, err := openAuditSink(ctx, cfg, dbConn)
	if err != nil {
		slog.Error("audit sink setup failed", "error", err)
		os.Exit(1)
	}
	defer closeSink()
	recorder := audit.NewRecorder(sink)

	publicBase := cfg.BlobPublicURL
	if store.Driver() == blob.DriverS3 {
		publicBase = strings.TrimSuffix(store.URL(""), "/")
	}
	svc := ledger.New(dbConn, dialect, func(url string) bool {
		return blob.ValidateProofURL(url, publicBase)
	})

	handler := router.NewRouter(router.Deps{
		Ledger: svc,
		Stats:  stats.New(dbConn),
		Blob:   store,
		Audit:  recorder,
	}, cfg)

	server := http.Server{
		Handler:           handler,
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		// Open stats streams end when their request context is cancelled
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("graceful shutdown incomplete", "error", err)
			server.Close()
		}
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed")
	}

	recorder.Close()
	slog.Info("Audit events flushed")
}

func setupLogging(cfg cliparse.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// openAuditSink returns the configured sink and a function releasing it.
func openAuditSink(ctx context.Context, cfg cliparse.Config, dbConn *sql.DB) (audit.Sink, func(), error) {
	switch cfg.AuditSink {
	case "log":
		return audit.LogSink{}, func() {}, nil
	case "sql":
		return audit.NewSQLSink(dbConn), func() {}, nil
	case "mongo":
		sink, err := audit.NewMongoSink(ctx, cfg.AuditMongoURI, cfg.AuditMongoDB)
		if err != nil {
			return nil, nil, err
		}
		return sink, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			sink.Close(closeCtx)
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown audit sink %q", cfg.AuditSink)
}
