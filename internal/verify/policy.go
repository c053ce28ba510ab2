package verify

import (
	"crypto/subtle"
	"strings"
	"unicode"
)

// Policy decides caller identity checks. Implementations must be pure:
// no side effects, same answer for the same input.
//
// The IVR controller is the only caller. It never asks an upstream AI for
// a verification verdict.
type Policy interface {
	// ResolveUsername maps a raw utterance to an enrolled username.
	ResolveUsername(raw string) (username string, ok bool)
	// MatchesPIN reports whether pin is the secret for username.
	MatchesPIN(username, pin string) bool
}

// MatchesUsername reports whether raw names any enrolled user.
func MatchesUsername(p Policy, raw string) bool {
	_, ok := p.ResolveUsername(raw)
	return ok
}

// ExtractPIN returns the first run of decimal digits in raw, or the trimmed
// input if it has none. Speech transcripts like "1234 please" yield "1234".
func ExtractPIN(raw string) string {
	start := -1
	for i, r := range raw {
		isDigit := r >= '0' && r <= '9'
		if isDigit && start < 0 {
			start = i
		}
		if !isDigit && start >= 0 {
			return raw[start:i]
		}
	}
	if start >= 0 {
		return raw[start:]
	}
	return strings.TrimSpace(raw)
}

// Enrollment is one caller known to a StaticPolicy.
type Enrollment struct {
	Username string
	// Aliases are matched case-insensitively as substrings of the utterance.
	// Transcribers spell names differently, so list each common spelling.
	Aliases []string
	PIN     string
}

// StaticPolicy is a fixed in-memory enrollment list.
type StaticPolicy struct {
	enrollments []Enrollment
}

func NewStaticPolicy(enrollments ...Enrollment) *StaticPolicy {
	out := make([]Enrollment, 0, len(enrollments))
	for _, e := range enrollments {
		e.Username = strings.ToLower(strings.TrimSpace(e.Username))
		if e.Username == "" {
			continue
		}
		aliases := make([]string, 0, len(e.Aliases)+1)
		for _, a := range append([]string{e.Username}, e.Aliases...) {
			a = strings.ToLower(strings.TrimSpace(a))
			if a != "" {
				aliases = append(aliases, a)
			}
		}
		e.Aliases = aliases
		out = append(out, e)
	}
	return &StaticPolicy{enrollments: out}
}

// DemoPolicy enrolls the single demo caller.
func DemoPolicy() *StaticPolicy {
	return NewStaticPolicy(Enrollment{
		Username: "arvind",
		Aliases:  []string{"arvind", "aravind"},
		PIN:      "1234",
	})
}

func (p *StaticPolicy) ResolveUsername(raw string) (string, bool) {
	in := strings.ToLower(strings.TrimSpace(raw))
	if in == "" {
		return "", false
	}
	for _, e := range p.enrollments {
		for _, a := range e.Aliases {
			if strings.Contains(in, a) {
				return e.Username, true
			}
		}
	}
	return "", false
}

func (p *StaticPolicy) MatchesPIN(username, pin string) bool {
	username = strings.ToLower(strings.TrimSpace(username))
	pin = strings.TrimFunc(pin, unicode.IsSpace)
	if pin == "" {
		return false
	}
	for _, e := range p.enrollments {
		if e.Username != username {
			continue
		}
		return subtle.ConstantTimeCompare([]byte(e.PIN), []byte(pin)) == 1
	}
	return false
}
