package domain

// Status is the lifecycle position of a permit application.
type Status string

const (
	StatusUnsubmitted     Status = "Unsubmitted"
	StatusSubmitted       Status = "Submitted"
	StatusUnderReview     Status = "Under Review"
	StatusManagerReviewed Status = "Manager Reviewed"
	StatusApproved        Status = "Approved"
	StatusRejected        Status = "Rejected"
)

var statusRank = map[Status]int{
	StatusUnsubmitted:     0,
	StatusSubmitted:       1,
	StatusUnderReview:     2,
	StatusManagerReviewed: 3,
	StatusApproved:        4,
	StatusRejected:        4,
}

// AllStatuses lists statuses in workflow order.
func AllStatuses() []Status {
	return []Status{
		StatusUnsubmitted,
		StatusSubmitted,
		StatusUnderReview,
		StatusManagerReviewed,
		StatusApproved,
		StatusRejected,
	}
}

// ParseStatus converts a string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", NewValidationError("status", "unknown status %q", s)
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank orders statuses along the workflow. Approved and Rejected share the final rank.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s Status) String() string { return string(s) }
