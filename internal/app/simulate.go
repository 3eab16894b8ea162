package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"circle_notifier/internal/domain/event"
	"circle_notifier/internal/domain/notification"
)

// ErrUnknownEventType is returned by Simulate for event type names that match
// no ledger event variant.
var ErrUnknownEventType = errors.New("unknown event type")

// Simulator routes synthetic event payloads into the matching fan-out handler
// for operational testing, bypassing the ledger entirely.
type Simulator struct {
	fanout *Fanout
}

func NewSimulator(fanout *Fanout) *Simulator {
	return &Simulator{fanout: fanout}
}

// Simulate decodes raw into the named event variant and invokes its handler.
// Variant names match the ledger event names, e.g. "PayoutDistributed".
func (s *Simulator) Simulate(ctx context.Context, eventType string, raw json.RawMessage) error {
	decode := func(v any) error {
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("decoding %s payload: %w", eventType, err)
		}
		return nil
	}

	switch eventType {
	case "MemberJoined":
		var ev event.MemberJoined
		if err := decode(&ev); err != nil {
			return err
		}
		return s.fanout.HandleMemberJoined(ctx, ev)
	case "PayoutDistributed":
		var ev event.PayoutDistributed
		if err := decode(&ev); err != nil {
			return err
		}
		return s.fanout.HandlePayoutDistributed(ctx, ev)
	case "ContributionMade":
		var ev event.ContributionMade
		if err := decode(&ev); err != nil {
			return err
		}
		return s.fanout.HandleContributionMade(ctx, ev)
	case "CollateralWithdrawn":
		var ev event.CollateralWithdrawn
		if err := decode(&ev); err != nil {
			return err
		}
		return s.fanout.HandleCollateralWithdrawn(ctx, ev)
	case "MemberInvited":
		var ev event.MemberInvited
		if err := decode(&ev); err != nil {
			return err
		}
		s.fanout.HandleMemberInvited(ctx, ev)
		return nil
	case "VotingInitiated":
		var ev event.VotingInitiated
		if err := decode(&ev); err != nil {
			return err
		}
		return s.fanout.HandleVotingInitiated(ctx, ev)
	case "VoteExecuted":
		var ev event.VoteExecuted
		if err := decode(&ev); err != nil {
			return err
		}
		return s.fanout.HandleVoteExecuted(ctx, ev)
	case "MemberForfeited":
		var ev event.MemberForfeited
		if err := decode(&ev); err != nil {
			return err
		}
		return s.fanout.HandleMemberForfeited(ctx, ev)
	case "ReputationChanged":
		var ev event.ReputationChanged
		if err := decode(&ev); err != nil {
			return err
		}
		s.fanout.HandleReputationChanged(ctx, ev)
		return nil
	case "CategoryChanged":
		var ev event.CategoryChanged
		if err := decode(&ev); err != nil {
			return err
		}
		return s.fanout.HandleCategoryChanged(ctx, ev)
	case "ReferralPaid":
		var ev event.ReferralPaid
		if err := decode(&ev); err != nil {
			return err
		}
		s.fanout.HandleReferralPaid(ctx, ev)
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownEventType, eventType)
	}
}

// Status is a read-only health snapshot of the core loops.
type Status struct {
	Cursor    int64 `json:"cursor"`
	IsPolling bool  `json:"isPolling"`
	DedupKeys int   `json:"dedupKeyCount"`
}

// StatusOf assembles a snapshot from the poller and dedup registry.
func StatusOf(p *Poller, registry *notification.KeyRegistry) Status {
	return Status{
		Cursor:    p.Cursor(),
		IsPolling: p.IsPolling(),
		DedupKeys: registry.Len(),
	}
}
