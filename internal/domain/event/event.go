// Package event defines the ledger event variants consumed by the fan-out
// engine. Events are immutable facts read from the external ledger; they are
// never mutated, only handled.
package event

// MemberJoined is emitted when a user joins a circle.
type MemberJoined struct {
	Member    string `json:"member"`
	CircleID  string `json:"circleId"`
	Timestamp int64  `json:"timestamp"`
}

// PayoutDistributed is emitted when a round's pot is paid to one member.
// Amount is a base-10 integer string in the token's smallest unit.
type PayoutDistributed struct {
	Recipient string `json:"recipient"`
	CircleID  string `json:"circleId"`
	Amount    string `json:"amount"`
	Round     int    `json:"round"`
	Timestamp int64  `json:"timestamp"`
}

// ContributionMade is emitted when a member pays into the current round.
type ContributionMade struct {
	Contributor string `json:"contributor"`
	CircleID    string `json:"circleId"`
	Amount      string `json:"amount"`
	Round       int    `json:"round"`
	Timestamp   int64  `json:"timestamp"`
}

// CollateralWithdrawn is emitted when a member pulls their collateral out.
type CollateralWithdrawn struct {
	Member    string `json:"member"`
	CircleID  string `json:"circleId"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

// MemberInvited is emitted when an existing member invites an address.
type MemberInvited struct {
	Inviter   string `json:"inviter"`
	Invitee   string `json:"invitee"`
	CircleID  string `json:"circleId"`
	Timestamp int64  `json:"timestamp"`
}

// VotingInitiated is emitted when a governance vote opens on a circle.
type VotingInitiated struct {
	Initiator string `json:"initiator"`
	CircleID  string `json:"circleId"`
	Subject   string `json:"subject"`
	Timestamp int64  `json:"timestamp"`
}

// VoteExecuted is emitted when a concluded vote's outcome is applied.
type VoteExecuted struct {
	Executor  string `json:"executor"`
	CircleID  string `json:"circleId"`
	Subject   string `json:"subject"`
	Approved  bool   `json:"approved"`
	Timestamp int64  `json:"timestamp"`
}

// MemberForfeited is emitted when a member's stake is slashed for missing
// their obligations.
type MemberForfeited struct {
	Member    string `json:"member"`
	CircleID  string `json:"circleId"`
	Amount    string `json:"amount"`
	Round     int    `json:"round"`
	Timestamp int64  `json:"timestamp"`
}

// ReputationChanged is emitted when a user's reputation score is recomputed.
type ReputationChanged struct {
	Member    string `json:"member"`
	NewScore  int64  `json:"newScore"`
	Timestamp int64  `json:"timestamp"`
}

// CategoryChanged is emitted when a circle's category is reassigned.
type CategoryChanged struct {
	CircleID    string `json:"circleId"`
	ChangedBy   string `json:"changedBy"`
	OldCategory string `json:"oldCategory"`
	NewCategory string `json:"newCategory"`
	Timestamp   int64  `json:"timestamp"`
}

// ReferralPaid is emitted when a referral bonus is paid out.
type ReferralPaid struct {
	Referrer  string `json:"referrer"`
	Referee   string `json:"referee"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

// Batch is one incremental read from the ledger: every event with timestamp
// strictly greater than the query cursor, grouped by variant and ordered
// ascending by timestamp within each variant. LatestTimestamp is the ledger's
// most recent observed timestamp, used to advance the cursor after the whole
// batch has been handled.
type Batch struct {
	MembersJoined        []MemberJoined
	PayoutsDistributed   []PayoutDistributed
	ContributionsMade    []ContributionMade
	CollateralWithdrawal []CollateralWithdrawn
	MembersInvited       []MemberInvited
	VotesInitiated       []VotingInitiated
	VotesExecuted        []VoteExecuted
	MembersForfeited     []MemberForfeited
	ReputationChanges    []ReputationChanged
	CategoryChanges      []CategoryChanged
	ReferralsPaid        []ReferralPaid

	LatestTimestamp int64
}

// Size returns the total number of events across all variants.
func (b *Batch) Size() int {
	return len(b.MembersJoined) +
		len(b.PayoutsDistributed) +
		len(b.ContributionsMade) +
		len(b.CollateralWithdrawal) +
		len(b.MembersInvited) +
		len(b.VotesInitiated) +
		len(b.VotesExecuted) +
		len(b.MembersForfeited) +
		len(b.ReputationChanges) +
		len(b.CategoryChanges) +
		len(b.ReferralsPaid)
}

// Empty reports whether the batch carries no events at all.
func (b *Batch) Empty() bool {
	return b.Size() == 0
}
