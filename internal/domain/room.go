package domain

import (
	"net/url"
	"strings"
)

// DefaultRoom is used whenever no explicit room name is given.
const DefaultRoom = "default"

// Role is the logical role of a participant. The string value is the
// form used in caption frames.
type Role string

const (
	RoleCandidate Role = "Candidate"
	RoleRecruiter Role = "Recruiter"
)

// ParseRole accepts the URL form ("candidate", "recruiter") or the wire
// form in any case. Anything else is a recruiter.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleCandidate)) {
		return RoleCandidate
	}
	return RoleRecruiter
}

// Polite reports whether this role yields when both peers send an offer
// at the same time.
func (r Role) Polite() bool {
	return r == RoleCandidate
}

// NormalizeRoom trims the name and substitutes DefaultRoom for blanks.
func NormalizeRoom(room string) string {
	room = strings.TrimSpace(room)
	if room == "" {
		return DefaultRoom
	}
	return room
}

// RoomFromLink extracts role and room from a shareable link such as
// https://host/?role=candidate&room=interview42. Missing values fall back
// to the recruiter role and DefaultRoom.
func RoomFromLink(rawURL string) (Role, string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return RoleRecruiter, DefaultRoom, err
	}
	q := u.Query()
	return ParseRole(q.Get("role")), NormalizeRoom(q.Get("room")), nil
}

// ShareLink builds the link a recruiter hands to the candidate.
func ShareLink(base, room string) string {
	q := url.Values{}
	q.Set("role", "candidate")
	q.Set("room", NormalizeRoom(room))
	return strings.TrimRight(base, "/") + "/?" + q.Encode()
}
