package app

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"circle_notifier/internal/domain/circle"
	"circle_notifier/internal/domain/event"
	"circle_notifier/internal/domain/notification"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

// recorderDispatcher captures every dispatch. When failAll is set it reports
// every recipient as failed without recording a send as delivered. A nonzero
// delay holds each dispatch open to widen race windows.
type recorderDispatcher struct {
	mu      sync.Mutex
	sends   []dispatchRecord
	failAll bool
	delay   time.Duration
}

type dispatchRecord struct {
	Recipients []string
	Payload    *notification.Payload
}

func (d *recorderDispatcher) Send(_ context.Context, recipients []string, payload *notification.Payload) *DeliveryResult {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sends = append(d.sends, dispatchRecord{Recipients: append([]string(nil), recipients...), Payload: payload})
	if d.failAll {
		return &DeliveryResult{Failed: len(recipients)}
	}
	return &DeliveryResult{Sent: len(recipients)}
}

func (d *recorderDispatcher) records() []dispatchRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchRecord(nil), d.sends...)
}

// byType returns dispatches carrying the given notification type.
func (d *recorderDispatcher) byType(t notification.Type) []dispatchRecord {
	var out []dispatchRecord
	for _, r := range d.records() {
		if r.Payload.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// fakeCircleRepo serves canned ledger state.
type fakeCircleRepo struct {
	members       map[string][]string
	creators      map[string]string
	membersErr    error
	goals         []circle.Goal
	dueCircles    []circle.Circle
	memberships   []circle.Membership
	contributions []circle.Contribution
	bulkCalls     int
}

func (f *fakeCircleRepo) CircleMembers(_ context.Context, circleID string) ([]string, string, error) {
	if f.membersErr != nil {
		return nil, "", f.membersErr
	}
	return f.members[circleID], f.creators[circleID], nil
}

func (f *fakeCircleRepo) ActiveGoals(context.Context) ([]circle.Goal, error) {
	return f.goals, nil
}

func (f *fakeCircleRepo) ActiveCirclesWithDeadlines(context.Context, time.Duration) ([]circle.Circle, error) {
	return f.dueCircles, nil
}

func (f *fakeCircleRepo) MembersAndContributions(context.Context, []string) ([]circle.Membership, []circle.Contribution, error) {
	f.bulkCalls++
	return f.memberships, f.contributions, nil
}

// fakeSource replays a scripted sequence of responses, one per call.
type fakeSource struct {
	mu        sync.Mutex
	responses []sourceResponse
	calls     int
}

type sourceResponse struct {
	batch *event.Batch
	err   error
}

func (f *fakeSource) EventsSince(context.Context, int64) (*event.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.responses) == 0 {
		return &event.Batch{}, nil
	}
	r := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return r.batch, r.err
}

// memCheckpoint is an in-memory CheckpointStore.
type memCheckpoint struct {
	mu     sync.Mutex
	cursor int64
	set    bool
	saves  []int64
}

func (m *memCheckpoint) LoadCursor(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return 0, notification.ErrCursorNotFound
	}
	return m.cursor, nil
}

func (m *memCheckpoint) SaveCursor(_ context.Context, cursor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor = cursor
	m.set = true
	m.saves = append(m.saves, cursor)
	return nil
}

// staticHandler counts batches and optionally fails.
type staticHandler struct {
	mu      sync.Mutex
	batches []*event.Batch
	err     error
}

func (h *staticHandler) HandleBatch(_ context.Context, b *event.Batch) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.batches = append(h.batches, b)
	return h.err
}
