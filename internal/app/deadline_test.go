package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circle_notifier/internal/domain/circle"
	"circle_notifier/internal/domain/notification"
)

func newTestDeadlineService(repo *fakeCircleRepo, d *recorderDispatcher, at time.Time) (*DeadlineService, *notification.KeyRegistry) {
	registry := notification.NewKeyRegistry()
	s := NewDeadlineService(repo, d, registry, testLog())
	s.now = func() time.Time { return at }
	return s, registry
}

func TestOverlappingSweepsFireMilestoneOnce(t *testing.T) {
	now := time.Unix(100000, 0)
	repo := &fakeCircleRepo{goals: []circle.Goal{{
		ID: "g1", Owner: "0xa", Name: "laptop", Current: "52", Target: "100",
		Deadline: now.Add(30 * 24 * time.Hour).Unix(),
	}}}
	d := &recorderDispatcher{delay: 50 * time.Millisecond}
	s, _ := newTestDeadlineService(repo, d, now)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.CheckGoalDeadlines(context.Background())
		}()
	}
	wg.Wait()

	assert.Len(t, d.byType(notification.TypeGoalMilestone), 1)
}

func TestGoalDeadlineReminders(t *testing.T) {
	now := time.Unix(100000, 0)
	cases := []struct {
		name         string
		deadline     int64
		wantType     notification.Type
		wantPriority notification.Priority
	}{
		{
			name:         "due within a day is high priority",
			deadline:     now.Add(20 * time.Hour).Unix(),
			wantType:     notification.TypeGoalDeadline,
			wantPriority: notification.PriorityHigh,
		},
		{
			name:         "due within two days is medium priority",
			deadline:     now.Add(40 * time.Hour).Unix(),
			wantType:     notification.TypeGoalDeadline,
			wantPriority: notification.PriorityMedium,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeCircleRepo{goals: []circle.Goal{{
				ID: "g1", Owner: "0xa", Name: "vacation", Current: "0", Target: "100", Deadline: tc.deadline,
			}}}
			d := &recorderDispatcher{}
			s, _ := newTestDeadlineService(repo, d, now)

			s.CheckGoalDeadlines(context.Background())

			recs := d.byType(tc.wantType)
			require.Len(t, recs, 1)
			assert.Equal(t, []string{"0xa"}, recs[0].Recipients)
			assert.Equal(t, tc.wantPriority, recs[0].Payload.Priority)
		})
	}
}

func TestGoalFarFromDeadlineIsQuiet(t *testing.T) {
	now := time.Unix(100000, 0)
	repo := &fakeCircleRepo{goals: []circle.Goal{{
		ID: "g1", Owner: "0xa", Name: "vacation", Current: "0", Target: "100",
		Deadline: now.Add(90 * time.Hour).Unix(),
	}}}
	d := &recorderDispatcher{}
	s, _ := newTestDeadlineService(repo, d, now)

	s.CheckGoalDeadlines(context.Background())
	assert.Empty(t, d.records())
}

func TestGoalMilestoneFiresOncePerEpoch(t *testing.T) {
	now := time.Unix(100000, 0)
	repo := &fakeCircleRepo{goals: []circle.Goal{{
		ID: "g1", Owner: "0xa", Name: "vacation", Current: "52", Target: "100",
		Deadline: now.Add(400 * time.Hour).Unix(),
	}}}
	d := &recorderDispatcher{}
	s, _ := newTestDeadlineService(repo, d, now)

	// Three consecutive sweeps within one epoch: the 50% milestone dedup key
	// must fire exactly once.
	s.CheckGoalDeadlines(context.Background())
	s.CheckGoalDeadlines(context.Background())
	s.CheckGoalDeadlines(context.Background())
	assert.Len(t, d.byType(notification.TypeGoalMilestone), 1)

	// After a registry reset it may fire once more.
	s.ResetRegistry()
	s.CheckGoalDeadlines(context.Background())
	assert.Len(t, d.byType(notification.TypeGoalMilestone), 2)
}

func TestGoalMilestoneBandDoesNotRefirePastBand(t *testing.T) {
	now := time.Unix(100000, 0)
	repo := &fakeCircleRepo{goals: []circle.Goal{{
		ID: "g1", Owner: "0xa", Name: "vacation", Current: "57", Target: "100",
		Deadline: now.Add(400 * time.Hour).Unix(),
	}}}
	d := &recorderDispatcher{}
	s, _ := newTestDeadlineService(repo, d, now)

	// 57% is past the [50,55) band: no milestone notification.
	s.CheckGoalDeadlines(context.Background())
	assert.Empty(t, d.byType(notification.TypeGoalMilestone))
}

func TestGoalCompletion(t *testing.T) {
	now := time.Unix(100000, 0)
	repo := &fakeCircleRepo{goals: []circle.Goal{{
		ID: "g1", Owner: "0xa", Name: "vacation", Current: "120", Target: "100",
		Deadline: now.Add(400 * time.Hour).Unix(),
	}}}
	d := &recorderDispatcher{}
	s, _ := newTestDeadlineService(repo, d, now)

	s.CheckGoalDeadlines(context.Background())
	recs := d.byType(notification.TypeGoalCompleted)
	require.Len(t, recs, 1)
	assert.Equal(t, notification.PriorityMedium, recs[0].Payload.Priority)
}

func TestGoalZeroTargetDoesNotPanic(t *testing.T) {
	now := time.Unix(100000, 0)
	repo := &fakeCircleRepo{goals: []circle.Goal{{
		ID: "g1", Owner: "0xa", Name: "broken", Current: "50", Target: "0",
		Deadline: now.Add(400 * time.Hour).Unix(),
	}}}
	d := &recorderDispatcher{}
	s, _ := newTestDeadlineService(repo, d, now)

	s.CheckGoalDeadlines(context.Background())
	assert.Empty(t, d.byType(notification.TypeGoalMilestone))
	assert.Empty(t, d.byType(notification.TypeGoalCompleted))
}

func TestFailedDispatchLeavesConditionArmed(t *testing.T) {
	now := time.Unix(100000, 0)
	repo := &fakeCircleRepo{goals: []circle.Goal{{
		ID: "g1", Owner: "0xa", Name: "vacation", Current: "52", Target: "100",
		Deadline: now.Add(400 * time.Hour).Unix(),
	}}}
	d := &recorderDispatcher{failAll: true}
	s, registry := newTestDeadlineService(repo, d, now)

	s.CheckGoalDeadlines(context.Background())
	assert.Zero(t, registry.Len(), "failed dispatch must not record the key")

	// Delivery recovers: the condition fires on the next sweep.
	d.failAll = false
	s.CheckGoalDeadlines(context.Background())
	assert.Equal(t, 1, registry.Len())
	assert.Len(t, d.byType(notification.TypeGoalMilestone), 2)
}

func circleFixture(deadline int64) circle.Circle {
	return circle.Circle{
		ID: "c1", Name: "friends", Creator: "0xa", Status: circle.StatusActive,
		CurrentRound: 2, RoundDeadline: deadline,
	}
}

func TestCircleDeadlineNotifiesOnlyPendingMembers(t *testing.T) {
	now := time.Unix(100000, 0)
	repo := &fakeCircleRepo{
		dueCircles: []circle.Circle{circleFixture(now.Add(10 * time.Hour).Unix())},
		memberships: []circle.Membership{
			{CircleID: "c1", Member: "0xa", Joined: true},
			{CircleID: "c1", Member: "0xb", Joined: true},
			{CircleID: "c1", Member: "0xc", Joined: true},
			{CircleID: "c1", Member: "0xd", Joined: false},
		},
		contributions: []circle.Contribution{
			{CircleID: "c1", Contributor: "0xA", Round: 2, Amount: "1"},
			{CircleID: "c1", Contributor: "0xb", Round: 1, Amount: "1"}, // old round
		},
	}
	d := &recorderDispatcher{}
	s, _ := newTestDeadlineService(repo, d, now)

	s.CheckCircleDeadlines(context.Background())

	recs := d.byType(notification.TypeCircleDeadline)
	require.Len(t, recs, 1)
	assert.ElementsMatch(t, []string{"0xb", "0xc"}, recs[0].Recipients,
		"0xa paid this round, 0xd never joined")
	assert.Equal(t, 1, repo.bulkCalls, "one bulk fetch for all due circles")
	assert.Empty(t, d.byType(notification.TypeCircleFinalWarning))
}

func TestCircleFinalWarningHasDistinctKey(t *testing.T) {
	now := time.Unix(100000, 0)
	repo := &fakeCircleRepo{
		dueCircles: []circle.Circle{circleFixture(now.Add(30 * time.Minute).Unix())},
		memberships: []circle.Membership{
			{CircleID: "c1", Member: "0xb", Joined: true},
		},
	}
	d := &recorderDispatcher{}
	s, registry := newTestDeadlineService(repo, d, now)

	s.CheckCircleDeadlines(context.Background())

	// Both the standard reminder and the final warning fire once each for the
	// same round, under separate dedup keys.
	require.Len(t, d.byType(notification.TypeCircleDeadline), 1)
	warnings := d.byType(notification.TypeCircleFinalWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, notification.PriorityHigh, warnings[0].Payload.Priority)
	assert.Equal(t, 2, registry.Len())

	// Re-running the sweep sends nothing new.
	s.CheckCircleDeadlines(context.Background())
	assert.Len(t, d.records(), 2)
}

func TestCircleAllMembersPaidIsQuiet(t *testing.T) {
	now := time.Unix(100000, 0)
	repo := &fakeCircleRepo{
		dueCircles: []circle.Circle{circleFixture(now.Add(10 * time.Hour).Unix())},
		memberships: []circle.Membership{
			{CircleID: "c1", Member: "0xa", Joined: true},
		},
		contributions: []circle.Contribution{
			{CircleID: "c1", Contributor: "0xa", Round: 2, Amount: "1"},
		},
	}
	d := &recorderDispatcher{}
	s, _ := newTestDeadlineService(repo, d, now)

	s.CheckCircleDeadlines(context.Background())
	assert.Empty(t, d.records())
}

func TestCirclePastDeadlineIsSkipped(t *testing.T) {
	now := time.Unix(100000, 0)
	repo := &fakeCircleRepo{
		dueCircles: []circle.Circle{circleFixture(now.Add(-time.Hour).Unix())},
		memberships: []circle.Membership{
			{CircleID: "c1", Member: "0xb", Joined: true},
		},
	}
	d := &recorderDispatcher{}
	s, _ := newTestDeadlineService(repo, d, now)

	s.CheckCircleDeadlines(context.Background())
	assert.Empty(t, d.records())
}
