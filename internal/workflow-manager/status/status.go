package status

// Status of a cycle task; groups and cycles carry the reduced form of their
// children's statuses.
type Status string

const (
	StatusAssigned   Status = "Assigned"
	StatusInProgress Status = "InProgress"
	StatusDeclined   Status = "Declined"
	StatusFinished   Status = "Finished"
	StatusVerified   Status = "Verified"
	StatusDeprecated Status = "Deprecated"
)

// progressRank orders statuses by how far along they are. Deprecated sits
// outside the ordering; cascade and reduction treat it separately.
var progressRank = map[Status]int{
	"":               0,
	StatusAssigned:   1,
	StatusInProgress: 2,
	StatusDeclined:   3,
	StatusFinished:   4,
	StatusVerified:   5,
}

// Rank returns the progress rank of s; unknown statuses rank 0.
func Rank(s Status) int { return progressRank[s] }

// Valid reports whether s is a known status value.
func Valid(s Status) bool {
	switch s {
	case StatusAssigned, StatusInProgress, StatusDeclined,
		StatusFinished, StatusVerified, StatusDeprecated:
		return true
	}
	return false
}

// Done reports whether a status counts as resolved. When verification is
// required only Verified closes a task; otherwise Finished does too.
// Deprecated always counts as resolved.
func Done(s Status, verificationNeeded bool) bool {
	switch s {
	case StatusDeprecated, StatusVerified:
		return true
	case StatusFinished:
		return !verificationNeeded
	}
	return false
}
