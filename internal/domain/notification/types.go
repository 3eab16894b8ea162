package notification

// Type identifies the kind of notification being sent. The enumeration is
// closed: every event variant and scheduler condition maps to exactly one Type.
type Type string

const (
	TypeMemberJoined          Type = "MEMBER_JOINED"
	TypeMemberInvited         Type = "MEMBER_INVITED"
	TypePayoutReceived        Type = "PAYOUT_RECEIVED"
	TypeCirclePayout          Type = "CIRCLE_PAYOUT"
	TypeContributionConfirmed Type = "CONTRIBUTION_CONFIRMED"
	TypeCircleContribution    Type = "CIRCLE_CONTRIBUTION"
	TypeCollateralWithdrawn   Type = "COLLATERAL_WITHDRAWN"
	TypeVotingInitiated       Type = "VOTING_INITIATED"
	TypeVoteExecuted          Type = "VOTE_EXECUTED"
	TypeMemberForfeited       Type = "MEMBER_FORFEITED"
	TypeCircleForfeiture      Type = "CIRCLE_FORFEITURE"
	TypeReputationChanged     Type = "REPUTATION_CHANGED"
	TypeCategoryChanged       Type = "CATEGORY_CHANGED"
	TypeReferralPaid          Type = "REFERRAL_PAID"
	TypeGoalDeadline          Type = "GOAL_DEADLINE"
	TypeGoalMilestone         Type = "GOAL_MILESTONE"
	TypeGoalCompleted         Type = "GOAL_COMPLETED"
	TypeCircleDeadline        Type = "CIRCLE_DEADLINE"
	TypeCircleFinalWarning    Type = "CIRCLE_FINAL_WARNING"
)

// AllTypes returns every notification type. Used by tests to assert the
// category table is total.
func AllTypes() []Type {
	return []Type{
		TypeMemberJoined,
		TypeMemberInvited,
		TypePayoutReceived,
		TypeCirclePayout,
		TypeContributionConfirmed,
		TypeCircleContribution,
		TypeCollateralWithdrawn,
		TypeVotingInitiated,
		TypeVoteExecuted,
		TypeMemberForfeited,
		TypeCircleForfeiture,
		TypeReputationChanged,
		TypeCategoryChanged,
		TypeReferralPaid,
		TypeGoalDeadline,
		TypeGoalMilestone,
		TypeGoalCompleted,
		TypeCircleDeadline,
		TypeCircleFinalWarning,
	}
}

// Priority controls how the push transport flags the notification.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)
