package circle

import (
	"context"
	"time"
)

// Repository reads circle and goal state from the external ledger. The ledger
// is the single source of truth; nothing here is cached or written back.
type Repository interface {
	// CircleMembers returns the joined member addresses of a circle plus its
	// creator. Membership is re-queried per call; staleness is bounded by the
	// indexer, not by this service.
	CircleMembers(ctx context.Context, circleID string) (members []string, creator string, err error)

	// ActiveGoals returns every goal that has not been closed out.
	ActiveGoals(ctx context.Context) ([]Goal, error)

	// ActiveCirclesWithDeadlines returns active circles whose current round
	// deadline falls within the given window from now.
	ActiveCirclesWithDeadlines(ctx context.Context, within time.Duration) ([]Circle, error)

	// MembersAndContributions batch-fetches memberships and current-round
	// contributions for the given circles in two ledger queries total, not one
	// pair per circle.
	MembersAndContributions(ctx context.Context, circleIDs []string) ([]Membership, []Contribution, error)
}
