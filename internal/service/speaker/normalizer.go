// Package speaker maps provider speaker identifiers to interview roles.
package speaker

import "fmt"

// Role is the canonical speaker role within a session.
type Role int

const (
	// RoleUnknown - no speaker id was supplied with the event.
	RoleUnknown Role = iota
	// RoleInterviewer - the first speaker observed in the session.
	RoleInterviewer
	// RoleOther - any speaker id different from the interviewer's.
	RoleOther
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case RoleUnknown:
		return "unknown"
	case RoleInterviewer:
		return "interviewer"
	case RoleOther:
		return "other"
	default:
		return fmt.Sprintf("role(%d)", r)
	}
}

// Known reports whether the role was derived from a speaker id.
func (r Role) Known() bool {
	return r == RoleInterviewer || r == RoleOther
}

// Normalizer holds the session-scoped speaker map.
//
// The first non-nil id observed becomes the interviewer and stays the
// interviewer until Reset. Not safe for concurrent use; the session reactor
// is its only caller.
type Normalizer struct {
	interviewer *int
}

// NewNormalizer creates an empty normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize maps a raw provider speaker id to a role.
func (n *Normalizer) Normalize(raw *int) Role {
	if raw == nil {
		return RoleUnknown
	}
	if n.interviewer == nil {
		id := *raw
		n.interviewer = &id
		return RoleInterviewer
	}
	if *raw == *n.interviewer {
		return RoleInterviewer
	}
	return RoleOther
}

// InterviewerID returns the id fixed as interviewer, if any.
func (n *Normalizer) InterviewerID() (int, bool) {
	if n.interviewer == nil {
		return 0, false
	}
	return *n.interviewer, true
}

// Reset clears the speaker map. Called on session start and stop.
func (n *Normalizer) Reset() {
	n.interviewer = nil
}
