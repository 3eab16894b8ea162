package notification

// Category groups notification types into the preference flags a user can
// actually toggle. Stored as one row per (address, category).
type Category string

const (
	CategoryMembership    Category = "membership"
	CategoryPayouts       Category = "payouts"
	CategoryContributions Category = "contributions"
	CategoryCollateral    Category = "collateral"
	CategoryVoting        Category = "voting"
	CategoryReputation    Category = "reputation"
	CategoryReferrals     Category = "referrals"
	CategoryGoals         Category = "goals"
	CategoryDeadlines     Category = "deadlines"
)

// categoryByType maps every notification type to its preference category.
// The table must stay total over AllTypes; TestCategoryTableIsTotal enforces it.
var categoryByType = map[Type]Category{
	TypeMemberJoined:          CategoryMembership,
	TypeMemberInvited:         CategoryMembership,
	TypePayoutReceived:        CategoryPayouts,
	TypeCirclePayout:          CategoryPayouts,
	TypeContributionConfirmed: CategoryContributions,
	TypeCircleContribution:    CategoryContributions,
	TypeCollateralWithdrawn:   CategoryCollateral,
	TypeVotingInitiated:       CategoryVoting,
	TypeVoteExecuted:          CategoryVoting,
	TypeMemberForfeited:       CategoryMembership,
	TypeCircleForfeiture:      CategoryMembership,
	TypeReputationChanged:     CategoryReputation,
	TypeCategoryChanged:       CategoryReputation,
	TypeReferralPaid:          CategoryReferrals,
	TypeGoalDeadline:          CategoryGoals,
	TypeGoalMilestone:         CategoryGoals,
	TypeGoalCompleted:         CategoryGoals,
	TypeCircleDeadline:        CategoryDeadlines,
	TypeCircleFinalWarning:    CategoryDeadlines,
}

// CategoryFor returns the preference category for a notification type.
func CategoryFor(t Type) (Category, bool) {
	c, ok := categoryByType[t]
	return c, ok
}

// Preferences is a user's notification settings, read-only from this service's
// perspective. A category missing from Categories means the user never touched
// that toggle and counts as enabled.
type Preferences struct {
	PushEnabled bool
	Categories  map[Category]bool
}

// Allows reports whether a notification of type t may be delivered to the
// owner of these preferences. The global PushEnabled switch wins over any
// per-category flag; an absent category flag defaults to enabled.
func (p *Preferences) Allows(t Type) bool {
	if p == nil || !p.PushEnabled {
		return false
	}
	cat, ok := categoryByType[t]
	if !ok {
		return true
	}
	enabled, ok := p.Categories[cat]
	if !ok {
		return true
	}
	return enabled
}
