package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"galley/internal/api"
	"galley/internal/config"
	"galley/internal/fidelity"
	"galley/internal/generate"
	"galley/internal/pipeline"
	"galley/internal/state"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		log.Error("invalid book profile", "path", cfg.ProfilePath, "error", err)
		os.Exit(1)
	}

	bp, err := fidelity.NewBoilerplate(profile.PageNumberPatterns, profile.RunningHeaderPatterns)
	if err != nil {
		log.Error("invalid boilerplate patterns", "error", err)
		os.Exit(1)
	}

	store, err := state.NewStore(cfg.StateDir)
	if err != nil {
		log.Error("state store init failed", "dir", cfg.StateDir, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The generator is optional: validate-only deployments leave the
	// URL empty and inline candidates are all the pipeline accepts.
	var gen generate.Generator
	if cfg.GeneratorURL != "" {
		gen = generate.NewHTTPGenerator(cfg.GeneratorURL, cfg.GeneratorAPIKey, cfg.GeneratorTimeout)
		log.Info("rendering generator configured", "url", cfg.GeneratorURL)
	}

	orch := pipeline.NewOrchestrator(cfg, profile, store, gen, bp, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, store, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if gen != nil {
			gen.Close()
		}
	}()

	log.Info("starting galley", "port", cfg.Port, "state_dir", cfg.StateDir)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
