// Package runstate defines the lifecycle states of a run and the allowed
// transitions between them.
package runstate

import "fmt"

type Status string

const (
	Init       Status = "init"
	InProgress Status = "in_progress"
	Finished   Status = "finished"
)

// Parse accepts only the three known states.
func Parse(s string) (Status, error) {
	switch st := Status(s); st {
	case Init, InProgress, Finished:
		return st, nil
	}
	return "", fmt.Errorf("unknown run status %q", s)
}

// Next returns the single state reachable from s, or false for Finished.
func (s Status) Next() (Status, bool) {
	switch s {
	case Init:
		return InProgress, true
	case InProgress:
		return Finished, true
	}
	return "", false
}

// CanTransition reports whether s moves directly to target.
func (s Status) CanTransition(target Status) bool {
	next, ok := s.Next()
	return ok && next == target
}

func (s Status) String() string {
	return string(s)
}
