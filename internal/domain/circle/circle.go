// Package circle holds the group-savings entities read from the ledger:
// circles, their memberships and contributions, and personal goals.
package circle

// Circle is a savings group with rotating rounds and a per-round contribution
// deadline. Amounts are base-10 integer strings in the token's smallest unit.
type Circle struct {
	ID            string
	Name          string
	Creator       string
	Status        string
	CurrentRound  int
	RoundDeadline int64 // Unix seconds
}

// StatusActive is the only circle state whose deadlines are evaluated.
const StatusActive = "active"

// Membership links an address to a circle.
type Membership struct {
	CircleID string
	Member   string
	Joined   bool
}

// Contribution is one member's payment into one round of a circle.
type Contribution struct {
	CircleID    string
	Contributor string
	Round       int
	Amount      string
}
