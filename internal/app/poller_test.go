package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circle_notifier/internal/domain/event"
)

func newTestPoller(source *fakeSource, cp *memCheckpoint, h *staticHandler) *Poller {
	p := NewPoller(source, cp, h, testLog())
	p.retryBackoff = time.Millisecond
	return p
}

func TestFirstRunInitializesCursorWithoutProcessing(t *testing.T) {
	source := &fakeSource{}
	cp := &memCheckpoint{}
	h := &staticHandler{}
	p := newTestPoller(source, cp, h)
	p.now = func() time.Time { return time.Unix(5000, 0) }

	p.RunOnce(context.Background())

	assert.Equal(t, int64(5000), p.Cursor())
	assert.Equal(t, []int64{5000}, cp.saves)
	assert.Zero(t, source.calls, "first cycle must not query events")
	assert.Empty(t, h.batches)
}

func TestResumesFromPersistedCursor(t *testing.T) {
	source := &fakeSource{}
	cp := &memCheckpoint{cursor: 4000, set: true}
	p := newTestPoller(source, cp, &staticHandler{})

	p.RunOnce(context.Background())
	assert.Equal(t, int64(4000), p.Cursor())

	p.RunOnce(context.Background())
	assert.Equal(t, 1, source.calls, "second cycle queries from the persisted cursor")
}

func TestCursorAdvancesAfterSuccessfulBatch(t *testing.T) {
	batch := &event.Batch{
		MembersJoined:   []event.MemberJoined{{Member: "0xa", CircleID: "c1", Timestamp: 4500}},
		LatestTimestamp: 4600,
	}
	source := &fakeSource{responses: []sourceResponse{{batch: batch}}}
	cp := &memCheckpoint{cursor: 4000, set: true}
	h := &staticHandler{}
	p := newTestPoller(source, cp, h)

	p.RunOnce(context.Background()) // loads cursor
	p.RunOnce(context.Background()) // processes

	assert.Equal(t, int64(4600), p.Cursor())
	require.Len(t, h.batches, 1)
	assert.Equal(t, int64(4600), cp.cursor)
}

func TestCursorWithheldWhenProcessingFails(t *testing.T) {
	batch := &event.Batch{
		MembersJoined:   []event.MemberJoined{{Member: "0xa", CircleID: "c1", Timestamp: 4500}},
		LatestTimestamp: 4600,
	}
	source := &fakeSource{responses: []sourceResponse{{batch: batch}}}
	cp := &memCheckpoint{cursor: 4000, set: true}
	h := &staticHandler{err: errors.New("resolver failed")}
	p := newTestPoller(source, cp, h)

	p.RunOnce(context.Background())
	p.RunOnce(context.Background())

	assert.Equal(t, int64(4000), p.Cursor(), "cursor must not advance past an unprocessed batch")
	assert.Equal(t, int64(4000), cp.cursor)
}

func TestRetryRecoversFromTransientOutage(t *testing.T) {
	batch := &event.Batch{
		MembersJoined:   []event.MemberJoined{{Member: "0xa", CircleID: "c1", Timestamp: 4500}},
		LatestTimestamp: 4600,
	}
	source := &fakeSource{responses: []sourceResponse{
		{err: errors.New("tls handshake failed")},
		{err: errors.New("tls handshake failed")},
		{batch: batch},
	}}
	cp := &memCheckpoint{cursor: 4000, set: true}
	h := &staticHandler{}
	p := newTestPoller(source, cp, h)

	p.RunOnce(context.Background())
	p.RunOnce(context.Background())

	assert.Equal(t, 3, source.calls, "two failures then success within one cycle")
	require.Len(t, h.batches, 1, "no events lost across the outage")
	assert.Equal(t, int64(4600), p.Cursor(), "no cursor regression")
}

func TestRetriesExhaustedLeavesCursorUntouched(t *testing.T) {
	boom := errors.New("connection refused")
	source := &fakeSource{responses: []sourceResponse{
		{err: boom}, {err: boom}, {err: boom}, {err: boom},
	}}
	cp := &memCheckpoint{cursor: 4000, set: true}
	p := newTestPoller(source, cp, &staticHandler{})

	p.RunOnce(context.Background())
	p.RunOnce(context.Background())

	assert.Equal(t, 4, source.calls, "initial attempt plus three retries")
	assert.Equal(t, int64(4000), p.Cursor())
	assert.Empty(t, cp.saves, "no state persisted")
}

func TestCursorNeverDecreases(t *testing.T) {
	// A batch whose latest timestamp is behind the cursor (stale indexer view)
	// must not move the cursor backwards.
	source := &fakeSource{responses: []sourceResponse{
		{batch: &event.Batch{LatestTimestamp: 3000}},
	}}
	cp := &memCheckpoint{cursor: 4000, set: true}
	p := newTestPoller(source, cp, &staticHandler{})

	p.RunOnce(context.Background())
	p.RunOnce(context.Background())

	assert.Equal(t, int64(4000), p.Cursor())
}

func TestOverlappingRunsAreSkipped(t *testing.T) {
	release := make(chan struct{})
	source := &fakeSource{}
	cp := &memCheckpoint{cursor: 4000, set: true}
	h := &staticHandler{}
	p := newTestPoller(source, cp, h)
	p.RunOnce(context.Background()) // load cursor

	blocking := &blockingSource{release: release, entered: make(chan struct{})}
	p.source = blocking

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.RunOnce(context.Background())
	}()

	// Wait until the first run is inside the source call, then tick again.
	<-blocking.entered
	assert.True(t, p.IsPolling())
	p.RunOnce(context.Background()) // must be a no-op skip, not queued
	close(release)
	wg.Wait()

	assert.Equal(t, 1, blocking.calls, "second tick skipped while first in flight")
	assert.False(t, p.IsPolling())
}

type blockingSource struct {
	release chan struct{}
	entered chan struct{}
	calls   int
	once    sync.Once
}

func (b *blockingSource) EventsSince(context.Context, int64) (*event.Batch, error) {
	b.calls++
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return &event.Batch{}, nil
}
