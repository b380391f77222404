package store

import "fmt"

// Status is the OCG lifecycle state. The set is closed; transitions only
// ever move forward through the rank order below.
type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusPublished   Status = "PUBLISHED"
	StatusNegotiating Status = "NEGOTIATING"
	StatusSigned      Status = "SIGNED"
)

var statusRank = map[Status]int{
	StatusDraft:       0,
	StatusPublished:   1,
	StatusNegotiating: 2,
	StatusSigned:      3,
}

// ParseStatus rejects any value outside the four defined states.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := statusRank[s]; !ok {
		return "", fmt.Errorf("unknown ocg status %q", raw)
	}
	return s, nil
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Predecessor returns the only status an OCG may hold immediately
// before moving to s. StatusDraft has none.
func (s Status) Predecessor() (Status, bool) {
	rank, ok := statusRank[s]
	if !ok || rank == 0 {
		return "", false
	}
	for prev, r := range statusRank {
		if r == rank-1 {
			return prev, true
		}
	}
	return "", false
}

// CanTransitionTo reports whether moving from s to next is a forward
// step. Equal or backward moves are rejected.
func (s Status) CanTransitionTo(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}
