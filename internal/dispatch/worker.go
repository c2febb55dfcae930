package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Worker runs the dispatch cycle: evaluate the due set for the current
// window, send each candidate, and record every successful send in the
// ledger. Ticks are strictly sequential; the job runner enforces that.
type Worker struct {
	evaluator   *Evaluator
	store       Store
	notifier    Notifier
	logger      *slog.Logger
	catchUp     time.Duration
	sendTimeout time.Duration

	mu       sync.Mutex
	lastTick time.Time
}

// NewWorker creates a Worker. catchUp bounds how far back a tick looks
// for missed work after downtime; sendTimeout bounds each delivery.
func NewWorker(evaluator *Evaluator, store Store, notifier Notifier, catchUp, sendTimeout time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		evaluator:   evaluator,
		store:       store,
		notifier:    notifier,
		logger:      logger.With("component", "dispatch_worker"),
		catchUp:     catchUp,
		sendTimeout: sendTimeout,
	}
}

// Tick runs one dispatch cycle at the given instant.
//
// The previous tick instant only bounds the lookback window; dedup is
// entirely the ledger's job. On the first tick after startup lastTick
// is zero, so the window is capped at the catch-up horizon and a long
// outage cannot replay its whole backlog.
//
// Individual delivery failures are logged and skipped, never returned:
// one unreachable chat must not stall every other notification. A
// failed send keeps the window from advancing so it is retried on the
// next tick. The ledger row is written strictly after a successful
// send, so a crash between the two can duplicate at most that one
// notification.
func (w *Worker) Tick(ctx context.Context, now time.Time) error {
	w.mu.Lock()
	windowStart := now.Add(-w.catchUp)
	if w.lastTick.After(windowStart) {
		windowStart = w.lastTick
	}
	w.mu.Unlock()

	candidates, err := w.evaluator.Evaluate(ctx, now, windowStart)
	if err != nil {
		// lastTick is not advanced, so the next tick re-covers this window.
		return fmt.Errorf("dispatch evaluation failed: %w", err)
	}

	var sent, failed int
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := w.deliver(ctx, candidate, now); err != nil {
			failed++
			var deliveryErr *DeliveryError
			if errors.As(err, &deliveryErr) {
				w.logger.WarnContext(ctx, "Notification delivery failed, will retry next tick",
					"kind", candidate.Kind, "subject_id", candidate.SubjectID,
					"user_id", candidate.UserID, "error", err)
			} else {
				w.logger.ErrorContext(ctx, "Notification dispatch failed",
					"kind", candidate.Kind, "subject_id", candidate.SubjectID,
					"user_id", candidate.UserID, "error", err)
			}
			continue
		}
		sent++
	}

	// Advance the window only when every send landed. A failed send
	// left no ledger row, so re-covering the window next tick retries
	// exactly the failures; the ledger filters out the successes.
	if failed == 0 {
		w.mu.Lock()
		w.lastTick = now
		w.mu.Unlock()
	}

	if sent > 0 || failed > 0 {
		w.logger.InfoContext(ctx, "Dispatch cycle completed",
			"candidates", len(candidates), "sent", sent, "failed", failed)
	}
	return nil
}

// deliver sends one candidate and records it. The ledger write comes
// after the send; a failure there is logged by the caller and the next
// tick may send the notification once more.
func (w *Worker) deliver(ctx context.Context, candidate Candidate, now time.Time) error {
	sendCtx := ctx
	if w.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, w.sendTimeout)
		defer cancel()
	}

	if err := w.notifier.Send(sendCtx, candidate.TelegramID, candidate.Text); err != nil {
		return err
	}

	if err := w.store.RecordDispatch(ctx, candidate.Kind, candidate.SubjectID, candidate.UserID, now); err != nil {
		return fmt.Errorf("sent but failed to record dispatch: %w", err)
	}
	return nil
}
