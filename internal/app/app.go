package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"newsroom/internal/config"
	"newsroom/internal/domain"
	"newsroom/internal/editorial"
	"newsroom/internal/httpapi"
	"newsroom/internal/infrastructure/fixtures"
	"newsroom/internal/infrastructure/imaging"
	"newsroom/internal/infrastructure/objectstore"
	"newsroom/internal/infrastructure/scheduler"
	"newsroom/internal/infrastructure/scrape"
	"newsroom/internal/infrastructure/storage"
	"newsroom/internal/infrastructure/telegram"
	"newsroom/internal/infrastructure/textgen"
	"newsroom/internal/logging"
	"newsroom/internal/ports"
	"newsroom/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *storage.Store
	pipeline   *usecase.Pipeline
	reconciler *usecase.Reconciler
	server     *httpapi.Server
}

// New builds a runnable application instance: storage, generation, image
// handling, the orchestrator, and the trigger surface.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.New(ctx, cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	var images ports.ImageProcessor
	objects, err := objectstore.New(ctx, cfg.Storage)
	if err != nil {
		// Image handling is best effort end to end; run without it rather
		// than refusing to start.
		baseLogger.Warn("object store unavailable, images disabled", "error", err)
		images = disabledImages{}
	} else {
		images = imaging.New(objects, cfg.Images, baseLogger.With("component", "images"))
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" {
		notifier = telegram.New(cfg.Notifications.Telegram)
	}

	fetcher := scrape.NewFetcher(baseLogger.With("component", "scrape"))
	assembler := editorial.NewAssembler(fetcher, cfg.Pipeline.ContextCharBudget, cfg.Pipeline.MinContextChars, baseLogger.With("component", "assembler"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Items:      store.Items,
		Content:    store.Content,
		Settings:   store.Settings,
		Generator:  textgen.New(cfg.Generation, baseLogger.With("component", "textgen")),
		Assembler:  assembler,
		Images:     images,
		Fixtures:   fixtures.New(cfg.Fixtures),
		Notifier:   notifier,
		Logger:     baseLogger.With("component", "pipeline"),
		Generation: cfg.Generation,
		Pipeline:   cfg.Pipeline,
	})

	var reconciler *usecase.Reconciler
	if cfg.Reconciler.Enabled {
		driver := scheduler.NewInterval(time.Duration(cfg.Reconciler.IntervalMin) * time.Minute)
		reconciler = usecase.NewReconciler(store.Items, driver, cfg.Reconciler, baseLogger.With("component", "reconciler"))
	}

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		store:      store,
		pipeline:   pipeline,
		reconciler: reconciler,
		server:     httpapi.NewServer(pipeline, baseLogger.With("component", "http")),
	}, nil
}

// Run serves the trigger API and the reconciler until the context is
// canceled, then shuts both down gracefully.
func (a *Application) Run(ctx context.Context) error {
	if a.reconciler != nil {
		if err := a.reconciler.Start(ctx); err != nil {
			return fmt.Errorf("start reconciler: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("trigger api listening", "addr", a.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", "error", err)
	}
	if a.reconciler != nil {
		_ = a.reconciler.Stop(shutdownCtx)
	}
	return a.Close(shutdownCtx)
}

// ProcessOne runs the pipeline once for a single source item, for the CLI
// command.
func (a *Application) ProcessOne(ctx context.Context, req usecase.RunRequest) (*usecase.RunResult, error) {
	return a.pipeline.Run(ctx, req)
}

// Close releases storage connections.
func (a *Application) Close(ctx context.Context) error {
	return a.store.Close(ctx)
}

// disabledImages satisfies the port when no object store is configured.
type disabledImages struct{}

func (disabledImages) Process(context.Context, string, string) *domain.ImageRef {
	return nil
}
