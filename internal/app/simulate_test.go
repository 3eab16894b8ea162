package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circle_notifier/internal/domain/notification"
)

func TestSimulateRoutesToHandler(t *testing.T) {
	repo := &fakeCircleRepo{
		members:  map[string][]string{"c1": {"0xa", "0xb"}},
		creators: map[string]string{"c1": "0xa"},
	}
	fanout, d := newTestFanout(repo)
	sim := NewSimulator(fanout)

	raw := json.RawMessage(`{"recipient":"0xa","circleId":"c1","amount":"2000000000000000000","round":3}`)
	require.NoError(t, sim.Simulate(context.Background(), "PayoutDistributed", raw))

	assert.Len(t, d.byType(notification.TypePayoutReceived), 1)
	assert.Len(t, d.byType(notification.TypeCirclePayout), 1)
}

func TestSimulateUnknownType(t *testing.T) {
	fanout, _ := newTestFanout(&fakeCircleRepo{})
	sim := NewSimulator(fanout)

	err := sim.Simulate(context.Background(), "Nonsense", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownEventType)
	assert.Contains(t, err.Error(), "Nonsense")
}

func TestSimulateBadPayload(t *testing.T) {
	fanout, _ := newTestFanout(&fakeCircleRepo{})
	sim := NewSimulator(fanout)

	err := sim.Simulate(context.Background(), "MemberJoined", json.RawMessage(`{broken`))
	assert.Error(t, err)
}

func TestStatusSnapshot(t *testing.T) {
	cp := &memCheckpoint{cursor: 7000, set: true}
	p := newTestPoller(&fakeSource{}, cp, &staticHandler{})
	p.RunOnce(context.Background())
	registry := notification.NewKeyRegistry()
	registry.Insert("k1")

	st := StatusOf(p, registry)
	assert.Equal(t, int64(7000), st.Cursor)
	assert.False(t, st.IsPolling)
	assert.Equal(t, 1, st.DedupKeys)
}
