package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/api"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/asset"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/auth"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/config"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/engine"
	mw "github.com/arkonsolutions/clearway-test-ann-viewer/internal/middleware"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/persist"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/session"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/source"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	documents := documentSource(cfg)

	sink, snapshots, closeSink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	storeOpts := []store.Option{store.WithSink(sink)}
	if snapshots != nil {
		storeOpts = append(storeOpts, store.WithSnapshots(snapshots))
	}
	layout := engine.Layout{PageWidth: cfg.PageWidth, PageHeight: cfg.PageHeight, Gap: cfg.PageGap}
	newEngine := func() *engine.Engine {
		return engine.New(documents, engine.WithLayout(layout), engine.WithStoreOptions(storeOpts...))
	}

	authService := auth.NewService(cfg.JWTSecret, auth.DefaultTokenTTL)
	var tokens session.TokenValidator
	if cfg.AuthRequired {
		tokens = authService
	}

	hub := session.NewHub()
	assetHandler := asset.NewHandler(cfg.DocumentDir, "/documents")
	apiHandler := api.NewHandler(api.NewService(documents, snapshots))
	wsHandler := session.NewHandler(hub, newEngine, tokens, auth.TokenFromRequest, cfg.OriginHosts())

	r := mux.NewRouter()

	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Document files are public so page images load in plain <img> tags.
	r.PathPrefix("/documents/").Handler(assetHandler.Serve()).Methods("GET")

	apiRouter := r.PathPrefix("/api").Subrouter()
	if cfg.AuthRequired {
		apiRouter.Use(authService.AuthMiddleware)
	}
	apiHandler.Register(apiRouter)
	apiRouter.HandleFunc("/documents/{documentId}/pages", assetHandler.UploadPage).Methods("POST", "OPTIONS")

	r.Handle("/ws/documents/{documentId}", wsHandler)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	g.Go(func() error { return hub.Run(hubCtx) })

	g.Go(func() error {
		slog.Info("server starting", "addr", addr, "sink", cfg.Sink, "auth", cfg.AuthRequired)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Save open sessions before their connections are torn down.
		slog.Info("saving all documents...", "sessions", hub.Count())
		if err := hub.SaveAll(shutdownCtx); err != nil {
			slog.Error("save sessions", "error", err)
		}

		err := srv.Shutdown(shutdownCtx)
		stopHub()
		return err
	})

	return g.Wait()
}

func documentSource(cfg *config.Config) store.Source {
	if cfg.DocumentBaseURL != "" {
		slog.Info("loading documents over http", "base", cfg.DocumentBaseURL)
		return source.NewHTTP(cfg.DocumentBaseURL, &http.Client{Timeout: 15 * time.Second})
	}
	slog.Info("loading documents from directory", "dir", cfg.DocumentDir)
	return source.NewDir(cfg.DocumentDir)
}

// openSink returns the configured sink, the snapshot reader backed by the
// same storage (nil for the log sink) and a close function.
func openSink(ctx context.Context, cfg *config.Config) (store.Sink, persist.SnapshotReader, func(), error) {
	switch cfg.Sink {
	case config.SinkSQLite:
		db, err := persist.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return db, db, func() { db.Close() }, nil

	case config.SinkPostgres:
		pg, err := persist.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return pg, pg, pg.Close, nil

	default:
		return persist.NewLog(os.Stdout), nil, func() {}, nil
	}
}
