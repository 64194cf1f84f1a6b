package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taoeli/maxlink/internal/checkpoint"
	"github.com/taoeli/maxlink/internal/config"
	"github.com/taoeli/maxlink/internal/database"
	"github.com/taoeli/maxlink/internal/database/repositories"
	"github.com/taoeli/maxlink/internal/modules/driver"
	"github.com/taoeli/maxlink/internal/modules/ehrenfest"
	"github.com/taoeli/maxlink/internal/modules/trajectory"
	"github.com/taoeli/maxlink/internal/scheduler"
	"github.com/taoeli/maxlink/internal/server"
	"github.com/taoeli/maxlink/internal/services"
	"github.com/taoeli/maxlink/pkg/logger"
	"github.com/taoeli/maxlink/pkg/units"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting MaxLink")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	runRepo := repositories.NewRunRepository(db.Conn(), log)
	diagRepo := repositories.NewDiagnosticsRepository(db.Conn(), log)
	history := trajectory.NewHistoryDB(cfg.HistoryDir, log)

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	flushJob := scheduler.NewTrajectoryFlushJob(history, log)
	if err := sched.AddJob("@every 10s", flushJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	var store *checkpoint.Store
	if cfg.Checkpoint {
		store, err = checkpoint.NewStore(cfg.CheckpointDir, "maxlink", log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create checkpoint store")
		}
	}

	// A Gaussian pulse centered early in the run, resonant with the
	// double-well electronic gap.
	pulse := &services.GaussianPulse{
		Amplitude: 5e-3,
		Center:    20 * units.FsToAU,
		Width:     3 * units.FsToAU,
		Omega:     0.08,
		Axis:      2,
	}

	sim, err := services.NewSimulationService(services.SimulationConfig{
		Dt:          cfg.DtAU,
		Source:      pulse,
		Runs:        runRepo,
		Diagnostics: diagRepo,
		History:     history,
		RecordEvery: cfg.RecordEvery,
		Log:         log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create simulation service")
	}

	if err := sched.AddJob("@every 30s", scheduler.NewProgressJob(sim, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register progress job")
	}

	model, err := ehrenfest.NewModel(ehrenfest.Config{
		RInitial:    -2.0,
		Orientation: 2,
		Hooks:       ehrenfest.DoubleWellHooks(),
		Log:         log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build molecule model")
	}

	if err := sim.AddMolecule(0, model, driver.Options{
		Checkpoints: store,
		Restart:     cfg.Restart,
		Log:         log,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to attach molecule")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:        cfg.Port,
		Log:         log,
		Simulation:  sim,
		Runs:        runRepo,
		Diagnostics: diagRepo,
		History:     history,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Run the simulation in the background; the HTTP server keeps serving
	// diagnostics after the run finishes.
	simCtx, simCancel := context.WithCancel(context.Background())
	defer simCancel()

	go func() {
		if err := sim.Run(simCtx, cfg.Steps); err != nil {
			log.Error().Err(err).Msg("Simulation run failed")
			return
		}
		log.Info().Int64("steps", cfg.Steps).Msg("Simulation run complete")
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	simCancel()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := sched.RunNow(flushJob); err != nil {
		log.Error().Err(err).Msg("Failed to flush trajectory history")
	}

	log.Info().Msg("Server stopped")
}
