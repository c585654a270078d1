package usecase

import (
	"context"
	"log/slog"
	"time"

	"newsroom/internal/config"
	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

const staleReason = "processing timed out"

// Reconciler sweeps items stuck in processing, typically after a crash
// between claiming the flag and writing a terminal status, and moves them to
// error so operators can re-trigger them.
type Reconciler struct {
	items      ports.SourceItemRepository
	driver     ports.Scheduler
	logger     *slog.Logger
	staleAfter time.Duration
	batchSize  int
}

// NewReconciler wires the sweep with its interval driver.
func NewReconciler(items ports.SourceItemRepository, driver ports.Scheduler, cfg config.ReconcilerConfig, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		items:      items,
		driver:     driver,
		logger:     logger,
		staleAfter: time.Duration(cfg.StaleAfterMin) * time.Minute,
		batchSize:  cfg.BatchSize,
	}
}

// Start registers the sweep with the driver.
func (r *Reconciler) Start(ctx context.Context) error {
	if r.driver == nil {
		return nil
	}
	return r.driver.Start(ctx, func(time.Time) {
		r.Sweep(ctx)
	})
}

// Stop tears down the driver.
func (r *Reconciler) Stop(ctx context.Context) error {
	if r.driver == nil {
		return nil
	}
	return r.driver.Stop(ctx)
}

// Sweep finishes every stale processing item with an error status. One
// failed item does not stop the rest of the batch.
func (r *Reconciler) Sweep(ctx context.Context) {
	items, err := r.items.StaleProcessing(ctx, r.staleAfter, r.batchSize)
	if err != nil {
		r.logger.Error("stale sweep failed", "error", err)
		return
	}
	if len(items) == 0 {
		return
	}

	r.logger.Warn("reconciling stale processing items", "count", len(items))
	for _, item := range items {
		if err := r.items.Finish(ctx, item.ID, domain.StatusError, "", staleReason); err != nil {
			r.logger.Error("reconcile item failed", "item", item.ID, "error", err)
			continue
		}
		r.logger.Info("stale item moved to error", "item", item.ID, "claimed_at", item.ProcessingAt)
	}
}
