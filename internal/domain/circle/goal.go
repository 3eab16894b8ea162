package circle

// Goal is a personal savings goal with a deadline. Current and Target are
// base-10 integer strings in the token's smallest unit.
type Goal struct {
	ID       string
	Owner    string
	Name     string
	Current  string
	Target   string
	Deadline int64 // Unix seconds
}
