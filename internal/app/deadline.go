package app

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"circle_notifier/internal/domain/circle"
	"circle_notifier/internal/domain/notification"
	"circle_notifier/internal/infra/metrics"
)

// Progress milestones announced once each per goal per dedup epoch. Each is
// checked as a narrow band [m, m+5) so a goal does not re-fire on every sweep
// once past the threshold.
var goalMilestones = []int{25, 50, 75}

const milestoneBand = 5

// DeadlineService evaluates goal and circle-contribution deadline conditions
// on a timer and emits each condition's notification at most once per dedup
// epoch. Sweeps never overlap: the daily and hourly cron schedules can
// coincide, and a concurrent sweep would race Contains against Insert in
// fireOnce, so a second sweep arriving while one runs is skipped.
type DeadlineService struct {
	circles    circle.Repository
	dispatcher PayloadDispatcher
	registry   *notification.KeyRegistry
	log        *logrus.Entry
	now        func() time.Time

	sweeping atomic.Bool
}

func NewDeadlineService(circles circle.Repository, dispatcher PayloadDispatcher, registry *notification.KeyRegistry, log *logrus.Entry) *DeadlineService {
	return &DeadlineService{
		circles:    circles,
		dispatcher: dispatcher,
		registry:   registry,
		log:        log,
		now:        time.Now,
	}
}

// CheckGoalDeadlines evaluates every active goal against its deadline and
// progress conditions. Conditions are independent: a goal can fire several of
// them across different sweeps.
func (s *DeadlineService) CheckGoalDeadlines(ctx context.Context) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.log.Debug("Deadline sweep already running, skipping goal check")
		return
	}
	defer s.sweeping.Store(false)

	goals, err := s.circles.ActiveGoals(ctx)
	if err != nil {
		s.log.WithError(err).Error("Could not fetch active goals")
		return
	}
	now := s.now()

	for _, g := range goals {
		remaining := time.Unix(g.Deadline, 0).Sub(now)

		if remaining > 0 && remaining <= 24*time.Hour {
			s.fireOnce(ctx, fmt.Sprintf("goal-deadline-1day:%s", g.ID), []string{g.Owner},
				notification.NewPayload(notification.TypeGoalDeadline, notification.PriorityHigh,
					"Goal Deadline Tomorrow",
					fmt.Sprintf("Your goal %q is due in less than a day", g.Name)))
		} else if remaining > 24*time.Hour && remaining <= 48*time.Hour {
			s.fireOnce(ctx, fmt.Sprintf("goal-deadline-2days:%s", g.ID), []string{g.Owner},
				notification.NewPayload(notification.TypeGoalDeadline, notification.PriorityMedium,
					"Goal Deadline Approaching",
					fmt.Sprintf("Your goal %q is due in 2 days", g.Name)))
		}

		progress := Progress(g.Current, g.Target)
		for _, m := range goalMilestones {
			if progress >= m && progress < m+milestoneBand {
				s.fireOnce(ctx, fmt.Sprintf("goal-milestone-%d:%s", m, g.ID), []string{g.Owner},
					notification.NewPayload(notification.TypeGoalMilestone, notification.PriorityLow,
						"Goal Milestone Reached",
						fmt.Sprintf("Your goal %q is %d%% funded", g.Name, progress)))
			}
		}
		if progress >= 100 {
			s.fireOnce(ctx, fmt.Sprintf("goal-completed:%s", g.ID), []string{g.Owner},
				notification.NewPayload(notification.TypeGoalCompleted, notification.PriorityMedium,
					"Goal Completed",
					fmt.Sprintf("Congratulations! Your goal %q is fully funded", g.Name)))
		}
	}
	metrics.DedupKeys.Set(float64(s.registry.Len()))
}

// CheckCircleDeadlines reminds members who have not yet contributed in the
// current round of any active circle whose deadline falls within 24 hours.
// Memberships and contributions for all due circles are fetched in two bulk
// queries, not one pair per circle.
func (s *DeadlineService) CheckCircleDeadlines(ctx context.Context) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.log.Debug("Deadline sweep already running, skipping circle check")
		return
	}
	defer s.sweeping.Store(false)

	circles, err := s.circles.ActiveCirclesWithDeadlines(ctx, 24*time.Hour)
	if err != nil {
		s.log.WithError(err).Error("Could not fetch circles with due deadlines")
		return
	}
	if len(circles) == 0 {
		return
	}

	ids := make([]string, 0, len(circles))
	for _, c := range circles {
		ids = append(ids, c.ID)
	}
	memberships, contributions, err := s.circles.MembersAndContributions(ctx, ids)
	if err != nil {
		s.log.WithError(err).Error("Could not fetch memberships and contributions")
		return
	}

	membersByCircle := make(map[string][]string)
	for _, m := range memberships {
		if m.Joined {
			membersByCircle[m.CircleID] = append(membersByCircle[m.CircleID], strings.ToLower(m.Member))
		}
	}
	contributed := make(map[string]map[string]bool) // circleID -> member -> round paid
	for _, c := range contributions {
		if contributed[c.CircleID] == nil {
			contributed[c.CircleID] = make(map[string]bool)
		}
		contributed[c.CircleID][strings.ToLower(c.Contributor)+":"+fmt.Sprint(c.Round)] = true
	}

	now := s.now()
	for _, c := range circles {
		remaining := time.Unix(c.RoundDeadline, 0).Sub(now)
		if remaining <= 0 {
			continue
		}

		var pending []string
		for _, member := range membersByCircle[c.ID] {
			if !contributed[c.ID][member+":"+fmt.Sprint(c.CurrentRound)] {
				pending = append(pending, member)
			}
		}
		if len(pending) == 0 {
			continue
		}

		hoursLeft := int(remaining / time.Hour)
		reminder := notification.NewPayload(notification.TypeCircleDeadline, notification.PriorityMedium,
			"Contribution Due Soon",
			fmt.Sprintf("Your round %d contribution to %s is due in %d hours", c.CurrentRound, c.Name, hoursLeft))
		reminder.Data = map[string]any{"circleId": c.ID, "round": c.CurrentRound}
		reminder.ActionURL = circleURL(c.ID)
		s.fireOnce(ctx, fmt.Sprintf("circle-deadline-24h:%s:%d", c.ID, c.CurrentRound), pending, reminder)

		// The final warning has its own key so both conditions fire once each
		// for the same round.
		if remaining <= time.Hour {
			warning := notification.NewPayload(notification.TypeCircleFinalWarning, notification.PriorityHigh,
				"Final Warning",
				fmt.Sprintf("Your round %d contribution to %s is due in less than an hour", c.CurrentRound, c.Name))
			warning.Data = map[string]any{"circleId": c.ID, "round": c.CurrentRound}
			warning.ActionURL = circleURL(c.ID)
			s.fireOnce(ctx, fmt.Sprintf("circle-late-warning:%s:%d", c.ID, c.CurrentRound), pending, warning)
		}
	}
	metrics.DedupKeys.Set(float64(s.registry.Len()))
}

// ResetRegistry clears the dedup registry wholesale. Scheduled weekly; any
// still-active condition may notify once more afterwards, which is accepted.
func (s *DeadlineService) ResetRegistry() {
	n := s.registry.Reset()
	metrics.DedupKeys.Set(0)
	s.log.WithField("cleared", n).Info("Dedup key registry reset")
}

// fireOnce dispatches payload to recipients unless key already fired this
// epoch. The key is recorded only after a dispatch that delivered to at least
// one recipient; a failed dispatch leaves the condition armed for the next
// sweep.
func (s *DeadlineService) fireOnce(ctx context.Context, key string, recipients []string, payload *notification.Payload) {
	if s.registry.Contains(key) {
		return
	}
	res := s.dispatcher.Send(ctx, recipients, payload)
	if res.Sent > 0 {
		s.registry.Insert(key)
		return
	}
	s.log.WithFields(logrus.Fields{"key": key, "failed": res.Failed}).
		Debug("Condition dispatch delivered nothing; will retry next sweep")
}
