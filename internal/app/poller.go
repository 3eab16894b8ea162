package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"circle_notifier/internal/domain/event"
	"circle_notifier/internal/domain/notification"
	"circle_notifier/internal/infra/metrics"
)

const (
	pollMaxRetries = 3
	pollBackoff    = time.Second
)

// BatchHandler consumes one batch of ledger events. Implemented by Fanout.
type BatchHandler interface {
	HandleBatch(ctx context.Context, b *event.Batch) error
}

// Poller is the checkpointed ingestion loop. RunOnce is invoked on a fixed
// interval plus once at startup; overlapping invocations are skipped via a
// try-lock, never queued. The cursor only advances after a batch has been
// fully handled, so processing is at-least-once.
type Poller struct {
	source      event.Source
	checkpoints notification.CheckpointStore
	handler     BatchHandler
	log         *logrus.Entry

	running atomic.Bool

	mu           sync.Mutex
	cursor       int64
	cursorLoaded bool

	// retryBackoff is the base of the exponential backoff (1x, 2x, 4x).
	// Overridden in tests.
	retryBackoff time.Duration
	now          func() time.Time
}

func NewPoller(source event.Source, checkpoints notification.CheckpointStore, handler BatchHandler, log *logrus.Entry) *Poller {
	return &Poller{
		source:       source,
		checkpoints:  checkpoints,
		handler:      handler,
		log:          log,
		retryBackoff: pollBackoff,
		now:          time.Now,
	}
}

// RunOnce executes one poll cycle. Safe to call from overlapping timers: if a
// cycle is already in flight the call is a no-op.
func (p *Poller) RunOnce(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.log.Debug("Poll cycle already in flight; skipping tick")
		metrics.PollRuns.WithLabelValues("skipped").Inc()
		return
	}
	defer p.running.Store(false)

	start := time.Now()
	defer func() { metrics.PollDuration.Observe(time.Since(start).Seconds()) }()

	if !p.cursorLoadedLocked() {
		if err := p.initCursor(ctx); err != nil {
			p.log.WithError(err).Error("Could not initialize ledger cursor")
			metrics.PollRuns.WithLabelValues("failed").Inc()
		}
		// First cycle only establishes the cursor; history is not replayed.
		return
	}

	cursor := p.Cursor()
	batch, err := p.queryWithRetry(ctx, cursor)
	if err != nil {
		p.log.WithError(err).WithField("cursor", cursor).
			Error("Ledger query failed after retries; cursor unchanged")
		metrics.PollRuns.WithLabelValues("failed").Inc()
		return
	}

	if !batch.Empty() {
		p.log.WithFields(logrus.Fields{"events": batch.Size(), "cursor": cursor}).
			Info("Processing ledger events")
		if err := p.handler.HandleBatch(ctx, batch); err != nil {
			// Cursor stays put: the next cycle re-fetches the same window and
			// the handlers run again (at-least-once).
			p.log.WithError(err).Error("Batch processing failed; cursor unchanged")
			metrics.PollRuns.WithLabelValues("failed").Inc()
			return
		}
	}

	p.advanceCursor(ctx, batch.LatestTimestamp)
	metrics.PollRuns.WithLabelValues("ok").Inc()
}

// initCursor loads the persisted cursor, or initializes it to now when the
// service has never run before.
func (p *Poller) initCursor(ctx context.Context) error {
	cursor, err := p.checkpoints.LoadCursor(ctx)
	switch {
	case err == nil:
		p.setCursor(cursor)
		p.log.WithField("cursor", cursor).Info("Resuming from persisted ledger cursor")
		return nil
	case err == notification.ErrCursorNotFound:
		cursor = p.now().Unix()
		if saveErr := p.checkpoints.SaveCursor(ctx, cursor); saveErr != nil {
			return fmt.Errorf("persisting initial cursor: %w", saveErr)
		}
		p.setCursor(cursor)
		p.log.WithField("cursor", cursor).Info("No persisted cursor; starting from current time")
		return nil
	default:
		return fmt.Errorf("loading cursor: %w", err)
	}
}

// queryWithRetry fetches the next batch, retrying transient source failures
// up to pollMaxRetries times with exponential backoff. The in-flight flag is
// held for the whole attempt sequence, so the interval timer cannot start a
// concurrent cycle while we back off.
func (p *Poller) queryWithRetry(ctx context.Context, cursor int64) (*event.Batch, error) {
	var lastErr error
	for attempt := 0; attempt <= pollMaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.retryBackoff << (attempt - 1)
			p.log.WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).
				Warn("Ledger query failed; retrying")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		batch, err := p.source.EventsSince(ctx, cursor)
		if err == nil {
			return batch, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// advanceCursor moves to max(cursor, latest) and persists the new value. The
// in-memory cursor advances even if persistence fails; a crash before the next
// successful save only causes reprocessing, never loss.
func (p *Poller) advanceCursor(ctx context.Context, latest int64) {
	p.mu.Lock()
	if latest > p.cursor {
		p.cursor = latest
	}
	cursor := p.cursor
	p.mu.Unlock()

	if err := p.checkpoints.SaveCursor(ctx, cursor); err != nil {
		p.log.WithError(err).WithField("cursor", cursor).Error("Could not persist ledger cursor")
	}
}

// Cursor returns the current in-memory cursor.
func (p *Poller) Cursor() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// IsPolling reports whether a cycle is currently in flight.
func (p *Poller) IsPolling() bool {
	return p.running.Load()
}

func (p *Poller) cursorLoadedLocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursorLoaded
}

func (p *Poller) setCursor(cursor int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = cursor
	p.cursorLoaded = true
}
