package pwpolicy_test

import (
	"strings"
	"testing"

	"github.com/aussiebroadwan/triage/pkg/pwpolicy"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	p := pwpolicy.New()

	tests := []struct {
		name      string
		password  string
		valid     bool
		score     int
		wantErrs  []string
		forbidErr []string
	}{
		{
			name:     "short lowercase only",
			password: "abc",
			valid:    false,
			score:    1,
			wantErrs: []string{
				pwpolicy.MsgTooShort,
				pwpolicy.MsgNoUppercase,
				pwpolicy.MsgNoDigit,
				pwpolicy.MsgNoSpecial,
			},
			forbidErr: []string{pwpolicy.MsgNoLowercase},
		},
		{
			name:     "strong password",
			password: "Secure#Pass99",
			valid:    true,
			score:    5,
		},
		{
			name:     "missing special",
			password: "Secure1Pass",
			valid:    false,
			score:    4,
			wantErrs: []string{pwpolicy.MsgNoSpecial},
		},
		{
			name:     "deny-listed but composed",
			password: "P@ssw0rd",
			valid:    false,
			score:    3,
			wantErrs: []string{pwpolicy.MsgCommonPattern},
		},
		{
			name:     "deny-listed case insensitive",
			password: "PASSWORD123",
			valid:    false,
			score:    1,
			wantErrs: []string{pwpolicy.MsgCommonPattern, pwpolicy.MsgNoLowercase},
		},
		{
			name:     "deny-list penalty floors at zero",
			password: "admin",
			valid:    false,
			score:    0,
			wantErrs: []string{pwpolicy.MsgCommonPattern, pwpolicy.MsgTooShort},
		},
		{
			name:     "exactly eight characters",
			password: "Ab1!efgh",
			valid:    true,
			score:    5,
		},
		{
			name:     "seven characters",
			password: "Ab1!efg",
			valid:    false,
			score:    4,
			wantErrs: []string{pwpolicy.MsgTooShort},
		},
		{
			name:     "empty",
			password: "",
			valid:    false,
			score:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Validate(tt.password)
			require.Equal(t, tt.valid, res.IsValid)
			require.Equal(t, tt.score, res.Score)
			for _, e := range tt.wantErrs {
				require.Contains(t, res.Errors, e)
			}
			for _, e := range tt.forbidErr {
				require.NotContains(t, res.Errors, e)
			}
			if tt.valid {
				require.Empty(t, res.Errors)
			}
		})
	}
}

func TestValidate_ValidIffAllRulesPass(t *testing.T) {
	p := pwpolicy.New()

	// Every combination of the five character-class rules; only the full set
	// may validate.
	parts := []struct {
		with    string
		without string
	}{
		{"xxxxxxxx", "x"}, // length
		{"Q", ""},         // upper
		{"q", ""},         // lower
		{"7", ""},         // digit
		{"%", ""},         // special
	}

	for mask := range 1 << len(parts) {
		var b strings.Builder
		for i, part := range parts {
			if mask&(1<<i) != 0 {
				b.WriteString(part.with)
			} else {
				b.WriteString(part.without)
			}
		}
		pw := b.String()

		// lowercase "x" padding satisfies the lowercase rule on its own
		res := p.Validate(pw)
		hasLen := mask&1 != 0
		hasUpper := mask&2 != 0
		hasLower := true
		hasDigit := mask&8 != 0
		hasSpecial := mask&16 != 0
		want := hasLen && hasUpper && hasLower && hasDigit && hasSpecial
		require.Equal(t, want, res.IsValid, "password %q", pw)
	}
}

func TestOptions(t *testing.T) {
	t.Run("min length", func(t *testing.T) {
		p := pwpolicy.New(pwpolicy.WithMinLength(12))
		res := p.Validate("Secure#Pass9")
		require.True(t, res.IsValid)

		res = p.Validate("Secure#Pas9")
		require.False(t, res.IsValid)
		require.Contains(t, res.Errors, "password must be at least 12 characters long")
	})

	t.Run("custom deny list", func(t *testing.T) {
		p := pwpolicy.New(pwpolicy.WithDenyList([]string{"Incident#2024"}))
		require.True(t, p.IsCommon("incident#2024"))
		require.False(t, p.IsCommon("password"))
		require.False(t, p.Validate("Incident#2024").IsValid)
	})

	t.Run("custom specials", func(t *testing.T) {
		p := pwpolicy.New(pwpolicy.WithSpecialChars("~"))
		require.False(t, p.Validate("Secure#Pass99").IsValid)
		require.True(t, p.Validate("Secure~Pass99").IsValid)
	})
}
