// Package pwpolicy scores passwords against a fixed set of character-class
// rules and a deny-list of common passwords.
package pwpolicy

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultSpecialChars is the set a password must draw at least one
// character from to satisfy the special-character rule.
const DefaultSpecialChars = `!@#$%^&*(),.?":{}|<>`

// DefaultMinLength is the minimum password length in characters.
const DefaultMinLength = 8

// denyListPenalty is subtracted from the score of a deny-listed password.
const denyListPenalty = 2

// Violation messages, one per rule.
const (
	MsgTooShort      = "password must be at least 8 characters long"
	MsgNoUppercase   = "password must contain at least one uppercase letter"
	MsgNoLowercase   = "password must contain at least one lowercase letter"
	MsgNoDigit       = "password must contain at least one digit"
	MsgNoSpecial     = "password must contain at least one special character"
	MsgCommonPattern = "password is too common"
)

// DefaultDenyList holds passwords rejected regardless of composition.
// Matching is case-insensitive.
var DefaultDenyList = []string{
	"password", "password1", "password123", "passw0rd", "p@ssw0rd", "p@ssword1",
	"123456", "12345678", "123456789", "1234567890", "qwerty", "qwerty123",
	"abc123", "admin", "admin123", "letmein", "welcome", "welcome1",
	"monkey", "dragon", "iloveyou", "trustno1", "sunshine", "football",
	"changeme", "secret", "master",
}

// Result is the outcome of validating a single password.
type Result struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
	Score   int      `json:"score"`
}

// Policy is an immutable rule set. Build one with New and share it freely.
type Policy struct {
	minLength int
	specials  string
	deny      map[string]struct{}
}

// Option tweaks a Policy at construction time.
type Option func(*Policy)

// WithMinLength overrides DefaultMinLength.
func WithMinLength(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.minLength = n
		}
	}
}

// WithSpecialChars overrides DefaultSpecialChars.
func WithSpecialChars(chars string) Option {
	return func(p *Policy) {
		if chars != "" {
			p.specials = chars
		}
	}
}

// WithDenyList replaces DefaultDenyList.
func WithDenyList(words []string) Option {
	return func(p *Policy) {
		p.deny = buildDenySet(words)
	}
}

// New returns a policy with the default rules, adjusted by opts.
func New(opts ...Option) *Policy {
	p := &Policy{
		minLength: DefaultMinLength,
		specials:  DefaultSpecialChars,
		deny:      buildDenySet(DefaultDenyList),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate scores the password. Each of the five character-class rules adds a
// point when satisfied and an error when violated. A deny-listed password is
// always invalid and loses two points, floored at zero.
func (p *Policy) Validate(password string) Result {
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
		if strings.ContainsRune(p.specials, r) {
			hasSpecial = true
		}
	}

	res := Result{Errors: []string{}}
	check := func(ok bool, msg string) {
		if ok {
			res.Score++
			return
		}
		res.Errors = append(res.Errors, msg)
	}

	check(utf8.RuneCountInString(password) >= p.minLength, p.lengthMessage())
	check(hasUpper, MsgNoUppercase)
	check(hasLower, MsgNoLowercase)
	check(hasDigit, MsgNoDigit)
	check(hasSpecial, MsgNoSpecial)

	if p.IsCommon(password) {
		res.Errors = append(res.Errors, MsgCommonPattern)
		res.Score = max(res.Score-denyListPenalty, 0)
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

// IsCommon reports whether the password is on the deny-list.
func (p *Policy) IsCommon(password string) bool {
	_, ok := p.deny[strings.ToLower(password)]
	return ok
}

func (p *Policy) lengthMessage() string {
	if p.minLength == DefaultMinLength {
		return MsgTooShort
	}
	return "password must be at least " + strconv.Itoa(p.minLength) + " characters long"
}

func buildDenySet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}
