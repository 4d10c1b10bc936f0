package domain

// User is created via add_user and never destroyed during a run;
// reset_simulation clears portfolios but preserves users.
type User struct {
	ID       UserID
	Username string
}
