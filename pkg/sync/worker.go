package sync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crewsync/crewsync/pkg/observability"
)

// WorkerConfig tunes the drain loop.
type WorkerConfig struct {
	// BatchSize bounds how many events one cycle drains. Bounds per-cycle
	// latency and write amplification.
	BatchSize int

	// MaxAttempts bounds retries for transient failures before an event
	// goes to FAILED.
	MaxAttempts int

	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration

	// Interval is the polling cadence of Run.
	Interval time.Duration

	// Parallelism bounds concurrent applies within one batch. Conflict
	// resolution guarantees at most one event per (user, project) key per
	// batch, so parallel applies never interleave updates to one pair.
	Parallelism int

	// OpTimeout bounds each drain cycle.
	OpTimeout time.Duration
}

// withDefaults fills unset fields.
func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.Interval <= 0 {
		c.Interval = 15 * time.Second
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 4
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = 30 * time.Second
	}
	return c
}

// Worker drains the sync queue in bounded batches and applies winning
// events to the target context.
type Worker struct {
	store   EventStore
	applier Applier
	cfg     WorkerConfig
	logger  *observability.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewWorker creates a drain worker. logger and metrics may be nil.
func NewWorker(store EventStore, applier Applier, cfg WorkerConfig, logger *observability.Logger, metrics *Metrics) *Worker {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Worker{
		store:   store,
		applier: applier,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled. Cancellation stops pulling new batches;
// the in-flight batch always finishes (it runs under its own timeout, not
// under ctx), so shutdown never leaves a half-applied batch.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.WithField("interval", w.cfg.Interval.String()).Info("sync worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sync worker stopping")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(context.Background()); err != nil {
				w.logger.WithError(err).Error("sync drain cycle failed")
			}
		}
	}
}

// RunOnce drains a single batch and returns how many events it settled.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.OpTimeout)
	defer cancel()

	start := w.now()
	batch, err := w.store.PendingBatch(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending batch: %w", err)
	}
	if len(batch) == 0 {
		w.updateDepth(ctx)
		return 0, nil
	}

	winners, superseded := resolveConflicts(batch)

	// Settle losers first: they never touch the target context, they just
	// complete as superseded audit records.
	settled := 0
	for loserID, winnerID := range superseded {
		if err := w.store.MarkSuperseded(ctx, loserID, winnerID); err != nil {
			w.logger.WithError(err).WithField("event_id", loserID).Error("failed to mark event superseded")
			continue
		}
		w.metrics.observeSuperseded()
		settled++
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Parallelism)
	for _, e := range winners {
		e := e
		g.Go(func() error {
			w.processEvent(gctx, e)
			return nil
		})
	}
	_ = g.Wait()
	settled += len(winners)

	w.metrics.observeBatch(w.now().Sub(start))
	w.updateDepth(ctx)
	return settled, nil
}

// processEvent walks one event through PROCESSING to a settled state.
// Failures here are logged, never returned: an event that cannot even be
// marked stays PENDING and is picked up by a later cycle.
func (w *Worker) processEvent(ctx context.Context, e *SyncEvent) {
	log := w.logger.WithFields(map[string]interface{}{
		"event_id":   e.ID,
		"event_type": string(e.Type),
		"user_id":    e.UserID,
		"project_id": e.ProjectID,
		"attempt":    e.Attempt,
	})

	if err := w.store.MarkProcessing(ctx, e.ID); err != nil {
		log.WithError(err).Error("failed to mark event processing")
		return
	}

	// Idempotency: a crash after apply but before completion must not
	// double-apply on the next cycle.
	applied, err := w.store.WasApplied(ctx, e.ID)
	if err != nil {
		w.retryOrFail(ctx, e, fmt.Errorf("idempotency check failed: %w", err), log)
		return
	}
	if applied {
		if err := w.store.MarkCompleted(ctx, e.ID); err != nil {
			log.WithError(err).Error("failed to complete already-applied event")
			return
		}
		log.Info("sync event already applied, completed without re-applying")
		return
	}

	if err := e.Validate(); err != nil {
		w.fail(ctx, e, err, log)
		return
	}

	if err := w.applier.Apply(ctx, e); err != nil {
		if IsPermanent(err) {
			w.fail(ctx, e, err, log)
		} else {
			w.retryOrFail(ctx, e, err, log)
		}
		return
	}

	if err := w.store.MarkApplied(ctx, e.ID); err != nil {
		// The apply itself succeeded; re-applying is safe because role
		// mapping writes are whole-value replaces. Retry the bookkeeping.
		w.retryOrFail(ctx, e, fmt.Errorf("failed to record applied event: %w", err), log)
		return
	}
	if err := w.store.MarkCompleted(ctx, e.ID); err != nil {
		log.WithError(err).Error("failed to mark event completed")
		return
	}
	w.metrics.observeProcessed()
	log.Info("sync event applied")
}

// retryOrFail schedules a transient failure for another attempt, or fails
// the event once attempts are exhausted.
func (w *Worker) retryOrFail(ctx context.Context, e *SyncEvent, cause error, log *observability.Logger) {
	attempt := e.Attempt + 1
	if attempt >= w.cfg.MaxAttempts {
		w.fail(ctx, e, fmt.Errorf("attempts exhausted: %w", cause), log)
		return
	}
	next := w.now().Add(w.backoff(attempt))
	if err := w.store.MarkRetry(ctx, e.ID, attempt, next, cause.Error()); err != nil {
		log.WithError(err).Error("failed to schedule retry")
		return
	}
	w.metrics.observeRetried()
	log.WithError(cause).WithField("next_attempt_at", next.Format(time.RFC3339)).Warn("sync event scheduled for retry")
}

// fail moves an event to FAILED. Terminal; surfaced through the audit view,
// never silently dropped.
func (w *Worker) fail(ctx context.Context, e *SyncEvent, cause error, log *observability.Logger) {
	if err := w.store.MarkFailed(ctx, e.ID, cause.Error()); err != nil {
		log.WithError(err).Error("failed to mark event failed")
		return
	}
	w.metrics.observeFailed()
	log.WithError(cause).Error("sync event failed permanently")
}

// backoff returns the delay before the given attempt: base * 2^(attempt-1).
func (w *Worker) backoff(attempt int) time.Duration {
	d := w.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

func (w *Worker) updateDepth(ctx context.Context) {
	depth, err := w.store.CountByStatus(ctx, StatusPending)
	if err != nil {
		return
	}
	w.metrics.setQueueDepth(depth)
}
