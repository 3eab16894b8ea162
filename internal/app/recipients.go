package app

import (
	"context"
	"fmt"
	"strings"

	"circle_notifier/internal/domain/circle"
)

// RecipientResolver turns a circle ID into the set of addresses to notify.
// Membership is re-queried from the ledger on every call.
type RecipientResolver struct {
	circles circle.Repository
}

func NewRecipientResolver(circles circle.Repository) *RecipientResolver {
	return &RecipientResolver{circles: circles}
}

// Resolve returns the circle's joined members unioned with its creator,
// lowercased and deduplicated. When exclude is non-empty that address is
// removed from the result (case-insensitive), so an acting user never receives
// their own broadcast.
func (r *RecipientResolver) Resolve(ctx context.Context, circleID, exclude string) ([]string, error) {
	members, creator, err := r.circles.CircleMembers(ctx, circleID)
	if err != nil {
		return nil, fmt.Errorf("resolving members of circle %s: %w", circleID, err)
	}

	seen := make(map[string]struct{}, len(members)+1)
	out := make([]string, 0, len(members)+1)
	excluded := strings.ToLower(exclude)
	add := func(addr string) {
		a := strings.ToLower(strings.TrimSpace(addr))
		if a == "" || a == excluded {
			return
		}
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	for _, m := range members {
		add(m)
	}
	add(creator)
	return out, nil
}
