package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"circle_notifier/internal/domain/event"
	"circle_notifier/internal/domain/notification"
	"circle_notifier/internal/infra/metrics"
)

// Fanout translates ledger events into notifications. One handler per event
// variant; each handler guards against malformed input, resolves its audience,
// builds the payload and hands it to the dispatcher. Handlers never return an
// error for delivery failures, only for ledger-read failures (so the poller
// can withhold the cursor and reprocess).
type Fanout struct {
	resolver   *RecipientResolver
	dispatcher PayloadDispatcher
	log        *logrus.Entry
}

func NewFanout(resolver *RecipientResolver, dispatcher PayloadDispatcher, log *logrus.Entry) *Fanout {
	return &Fanout{resolver: resolver, dispatcher: dispatcher, log: log}
}

// HandleBatch dispatches every event in the batch, one variant at a time in a
// stable order. The first ledger-read failure aborts the batch so the caller
// does not advance the cursor past unprocessed events.
func (f *Fanout) HandleBatch(ctx context.Context, b *event.Batch) error {
	for _, ev := range b.ContributionsMade {
		if err := f.HandleContributionMade(ctx, ev); err != nil {
			return err
		}
	}
	for _, ev := range b.PayoutsDistributed {
		if err := f.HandlePayoutDistributed(ctx, ev); err != nil {
			return err
		}
	}
	for _, ev := range b.MembersJoined {
		if err := f.HandleMemberJoined(ctx, ev); err != nil {
			return err
		}
	}
	for _, ev := range b.MembersInvited {
		f.HandleMemberInvited(ctx, ev)
	}
	for _, ev := range b.VotesInitiated {
		if err := f.HandleVotingInitiated(ctx, ev); err != nil {
			return err
		}
	}
	for _, ev := range b.VotesExecuted {
		if err := f.HandleVoteExecuted(ctx, ev); err != nil {
			return err
		}
	}
	for _, ev := range b.MembersForfeited {
		if err := f.HandleMemberForfeited(ctx, ev); err != nil {
			return err
		}
	}
	for _, ev := range b.CollateralWithdrawal {
		if err := f.HandleCollateralWithdrawn(ctx, ev); err != nil {
			return err
		}
	}
	for _, ev := range b.ReputationChanges {
		f.HandleReputationChanged(ctx, ev)
	}
	for _, ev := range b.CategoryChanges {
		if err := f.HandleCategoryChanged(ctx, ev); err != nil {
			return err
		}
	}
	for _, ev := range b.ReferralsPaid {
		f.HandleReferralPaid(ctx, ev)
	}
	return nil
}

// HandleMemberJoined broadcasts the arrival to the rest of the circle.
func (f *Fanout) HandleMemberJoined(ctx context.Context, ev event.MemberJoined) error {
	if ev.Member == "" || ev.CircleID == "" {
		f.skipMalformed("MemberJoined", ev)
		return nil
	}
	metrics.EventsProcessed.WithLabelValues("member_joined").Inc()

	recipients, err := f.resolver.Resolve(ctx, ev.CircleID, ev.Member)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}
	p := notification.NewPayload(notification.TypeMemberJoined, notification.PriorityHigh,
		"New Member Joined",
		fmt.Sprintf("%s joined your savings circle", shortAddress(ev.Member)))
	p.Data = map[string]any{"circleId": ev.CircleID, "member": ev.Member}
	p.ActionURL = circleURL(ev.CircleID)
	f.dispatcher.Send(ctx, recipients, p)
	return nil
}

// HandlePayoutDistributed sends a confirmation to the payee and a broadcast to
// the remaining members. The two dispatches are independent: either may fail
// without affecting the other.
func (f *Fanout) HandlePayoutDistributed(ctx context.Context, ev event.PayoutDistributed) error {
	if ev.Recipient == "" || ev.CircleID == "" {
		f.skipMalformed("PayoutDistributed", ev)
		return nil
	}
	metrics.EventsProcessed.WithLabelValues("payout_distributed").Inc()
	amount := FormatAmount(ev.Amount)

	confirm := notification.NewPayload(notification.TypePayoutReceived, notification.PriorityHigh,
		"Payment Received",
		fmt.Sprintf("You received %s in round %d", amount, ev.Round))
	confirm.Data = map[string]any{"circleId": ev.CircleID, "round": ev.Round, "amount": ev.Amount}
	confirm.ActionURL = circleURL(ev.CircleID)
	f.dispatcher.Send(ctx, []string{ev.Recipient}, confirm)

	recipients, err := f.resolver.Resolve(ctx, ev.CircleID, ev.Recipient)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}
	broadcast := notification.NewPayload(notification.TypeCirclePayout, notification.PriorityMedium,
		"Circle Payout Completed",
		fmt.Sprintf("%s received the round %d payout of %s", shortAddress(ev.Recipient), ev.Round, amount))
	broadcast.Data = map[string]any{"circleId": ev.CircleID, "round": ev.Round}
	broadcast.ActionURL = circleURL(ev.CircleID)
	f.dispatcher.Send(ctx, recipients, broadcast)
	return nil
}

// HandleContributionMade confirms to the contributor and tells the rest of
// the circle.
func (f *Fanout) HandleContributionMade(ctx context.Context, ev event.ContributionMade) error {
	if ev.Contributor == "" || ev.CircleID == "" {
		f.skipMalformed("ContributionMade", ev)
		return nil
	}
	metrics.EventsProcessed.WithLabelValues("contribution_made").Inc()
	amount := FormatAmount(ev.Amount)

	confirm := notification.NewPayload(notification.TypeContributionConfirmed, notification.PriorityHigh,
		"Contribution Successful",
		fmt.Sprintf("Your contribution of %s for round %d was received", amount, ev.Round))
	confirm.Data = map[string]any{"circleId": ev.CircleID, "round": ev.Round, "amount": ev.Amount}
	confirm.ActionURL = circleURL(ev.CircleID)
	f.dispatcher.Send(ctx, []string{ev.Contributor}, confirm)

	recipients, err := f.resolver.Resolve(ctx, ev.CircleID, ev.Contributor)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}
	broadcast := notification.NewPayload(notification.TypeCircleContribution, notification.PriorityMedium,
		"New Contribution",
		fmt.Sprintf("%s contributed %s in round %d", shortAddress(ev.Contributor), amount, ev.Round))
	broadcast.Data = map[string]any{"circleId": ev.CircleID, "round": ev.Round}
	broadcast.ActionURL = circleURL(ev.CircleID)
	f.dispatcher.Send(ctx, recipients, broadcast)
	return nil
}

// HandleCollateralWithdrawn confirms to the withdrawing member and notifies
// the rest of the circle.
func (f *Fanout) HandleCollateralWithdrawn(ctx context.Context, ev event.CollateralWithdrawn) error {
	if ev.Member == "" || ev.CircleID == "" {
		f.skipMalformed("CollateralWithdrawn", ev)
		return nil
	}
	metrics.EventsProcessed.WithLabelValues("collateral_withdrawn").Inc()
	amount := FormatAmount(ev.Amount)

	confirm := notification.NewPayload(notification.TypeCollateralWithdrawn, notification.PriorityHigh,
		"Collateral Withdrawn",
		fmt.Sprintf("Your collateral of %s was withdrawn", amount))
	confirm.Data = map[string]any{"circleId": ev.CircleID, "amount": ev.Amount}
	f.dispatcher.Send(ctx, []string{ev.Member}, confirm)

	recipients, err := f.resolver.Resolve(ctx, ev.CircleID, ev.Member)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}
	broadcast := notification.NewPayload(notification.TypeCollateralWithdrawn, notification.PriorityMedium,
		"Member Withdrew Collateral",
		fmt.Sprintf("%s withdrew their collateral of %s", shortAddress(ev.Member), amount))
	broadcast.Data = map[string]any{"circleId": ev.CircleID}
	broadcast.ActionURL = circleURL(ev.CircleID)
	f.dispatcher.Send(ctx, recipients, broadcast)
	return nil
}

// HandleMemberInvited notifies only the invitee.
func (f *Fanout) HandleMemberInvited(ctx context.Context, ev event.MemberInvited) {
	if ev.Invitee == "" || ev.CircleID == "" {
		f.skipMalformed("MemberInvited", ev)
		return
	}
	metrics.EventsProcessed.WithLabelValues("member_invited").Inc()

	p := notification.NewPayload(notification.TypeMemberInvited, notification.PriorityHigh,
		"Circle Invitation",
		fmt.Sprintf("%s invited you to join their savings circle", shortAddress(ev.Inviter)))
	p.Data = map[string]any{"circleId": ev.CircleID, "inviter": ev.Inviter}
	p.ActionURL = circleURL(ev.CircleID)
	f.dispatcher.Send(ctx, []string{ev.Invitee}, p)
}

// HandleVotingInitiated asks every member except the initiator to vote.
func (f *Fanout) HandleVotingInitiated(ctx context.Context, ev event.VotingInitiated) error {
	if ev.Initiator == "" || ev.CircleID == "" {
		f.skipMalformed("VotingInitiated", ev)
		return nil
	}
	metrics.EventsProcessed.WithLabelValues("voting_initiated").Inc()

	recipients, err := f.resolver.Resolve(ctx, ev.CircleID, ev.Initiator)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}
	p := notification.NewPayload(notification.TypeVotingInitiated, notification.PriorityHigh,
		"Vote Required",
		fmt.Sprintf("A vote on %q has started in your circle", ev.Subject))
	p.Data = map[string]any{"circleId": ev.CircleID, "subject": ev.Subject}
	p.ActionURL = circleURL(ev.CircleID)
	f.dispatcher.Send(ctx, recipients, p)
	return nil
}

// HandleVoteExecuted tells the circle the outcome, excluding the executor.
func (f *Fanout) HandleVoteExecuted(ctx context.Context, ev event.VoteExecuted) error {
	if ev.CircleID == "" {
		f.skipMalformed("VoteExecuted", ev)
		return nil
	}
	metrics.EventsProcessed.WithLabelValues("vote_executed").Inc()

	recipients, err := f.resolver.Resolve(ctx, ev.CircleID, ev.Executor)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}
	outcome := "rejected"
	if ev.Approved {
		outcome = "approved"
	}
	p := notification.NewPayload(notification.TypeVoteExecuted, notification.PriorityMedium,
		"Vote Executed",
		fmt.Sprintf("The vote on %q was %s", ev.Subject, outcome))
	p.Data = map[string]any{"circleId": ev.CircleID, "subject": ev.Subject, "approved": ev.Approved}
	p.ActionURL = circleURL(ev.CircleID)
	f.dispatcher.Send(ctx, recipients, p)
	return nil
}

// HandleMemberForfeited warns the slashed member and informs the others.
func (f *Fanout) HandleMemberForfeited(ctx context.Context, ev event.MemberForfeited) error {
	if ev.Member == "" || ev.CircleID == "" {
		f.skipMalformed("MemberForfeited", ev)
		return nil
	}
	metrics.EventsProcessed.WithLabelValues("member_forfeited").Inc()
	amount := FormatAmount(ev.Amount)

	victim := notification.NewPayload(notification.TypeMemberForfeited, notification.PriorityHigh,
		"Stake Forfeited",
		fmt.Sprintf("Your stake of %s was forfeited in round %d", amount, ev.Round))
	victim.Data = map[string]any{"circleId": ev.CircleID, "round": ev.Round, "amount": ev.Amount}
	victim.ActionURL = circleURL(ev.CircleID)
	f.dispatcher.Send(ctx, []string{ev.Member}, victim)

	recipients, err := f.resolver.Resolve(ctx, ev.CircleID, ev.Member)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}
	broadcast := notification.NewPayload(notification.TypeCircleForfeiture, notification.PriorityMedium,
		"Member Forfeited",
		fmt.Sprintf("%s forfeited their stake in round %d", shortAddress(ev.Member), ev.Round))
	broadcast.Data = map[string]any{"circleId": ev.CircleID, "round": ev.Round}
	broadcast.ActionURL = circleURL(ev.CircleID)
	f.dispatcher.Send(ctx, recipients, broadcast)
	return nil
}

// HandleReputationChanged notifies only the affected user.
func (f *Fanout) HandleReputationChanged(ctx context.Context, ev event.ReputationChanged) {
	if ev.Member == "" {
		f.skipMalformed("ReputationChanged", ev)
		return
	}
	metrics.EventsProcessed.WithLabelValues("reputation_changed").Inc()

	p := notification.NewPayload(notification.TypeReputationChanged, notification.PriorityLow,
		"Reputation Updated",
		fmt.Sprintf("Your reputation score is now %d", ev.NewScore))
	p.Data = map[string]any{"newScore": ev.NewScore}
	f.dispatcher.Send(ctx, []string{ev.Member}, p)
}

// HandleCategoryChanged tells the circle about its new category.
func (f *Fanout) HandleCategoryChanged(ctx context.Context, ev event.CategoryChanged) error {
	if ev.CircleID == "" {
		f.skipMalformed("CategoryChanged", ev)
		return nil
	}
	metrics.EventsProcessed.WithLabelValues("category_changed").Inc()

	recipients, err := f.resolver.Resolve(ctx, ev.CircleID, ev.ChangedBy)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}
	p := notification.NewPayload(notification.TypeCategoryChanged, notification.PriorityLow,
		"Circle Category Changed",
		fmt.Sprintf("Your circle's category changed from %s to %s", ev.OldCategory, ev.NewCategory))
	p.Data = map[string]any{"circleId": ev.CircleID, "newCategory": ev.NewCategory}
	f.dispatcher.Send(ctx, recipients, p)
	return nil
}

// HandleReferralPaid notifies only the referrer.
func (f *Fanout) HandleReferralPaid(ctx context.Context, ev event.ReferralPaid) {
	if ev.Referrer == "" {
		f.skipMalformed("ReferralPaid", ev)
		return
	}
	metrics.EventsProcessed.WithLabelValues("referral_paid").Inc()

	p := notification.NewPayload(notification.TypeReferralPaid, notification.PriorityHigh,
		"Referral Bonus",
		fmt.Sprintf("You earned %s for referring %s", FormatAmount(ev.Amount), shortAddress(ev.Referee)))
	p.Data = map[string]any{"referee": ev.Referee, "amount": ev.Amount}
	f.dispatcher.Send(ctx, []string{ev.Referrer}, p)
}

func (f *Fanout) skipMalformed(variant string, ev any) {
	metrics.EventsSkipped.Inc()
	f.log.WithFields(logrus.Fields{"variant": variant, "event": fmt.Sprintf("%+v", ev)}).
		Warn("Skipping malformed ledger event")
}

// shortAddress abbreviates a ledger address for display: 0x1234...abcd.
func shortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func circleURL(circleID string) string {
	return "/circles/" + circleID
}
