package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Keep bcrypt fast in tests; the cost is embedded in the hash so production
// hashes are unaffected.
const testCost = bcrypt.MinCost

func testHashers(t *testing.T) map[string]Hasher {
	t.Helper()
	bc, err := NewHasher(HasherConfig{Algorithm: AlgorithmBcrypt, BcryptCost: testCost})
	require.NoError(t, err)
	ar, err := NewHasher(HasherConfig{Algorithm: AlgorithmArgon2id, BcryptCost: testCost})
	require.NoError(t, err)
	return map[string]Hasher{AlgorithmBcrypt: bc, AlgorithmArgon2id: ar}
}

func TestHasher_RoundTrip(t *testing.T) {
	passwords := []string{
		"Secure#Pass99",
		"P@ssw0rd!#$%^&*()",
		"",
		"   spaces   ",
		"пароль🔒密码",
	}

	for name, h := range testHashers(t) {
		t.Run(name, func(t *testing.T) {
			for _, pw := range passwords {
				encoded, err := h.Hash(pw)
				require.NoError(t, err)
				require.True(t, h.Verify(pw, encoded), "password %q should verify", pw)
			}
		})
	}
}

func TestHasher_Salted(t *testing.T) {
	for name, h := range testHashers(t) {
		t.Run(name, func(t *testing.T) {
			a, err := h.Hash("samepassword")
			require.NoError(t, err)
			b, err := h.Hash("samepassword")
			require.NoError(t, err)

			require.NotEqual(t, a, b, "hashes should differ due to unique salts")
			require.True(t, h.Verify("samepassword", a))
			require.True(t, h.Verify("samepassword", b))
		})
	}
}

func TestHasher_WrongPassword(t *testing.T) {
	for name, h := range testHashers(t) {
		t.Run(name, func(t *testing.T) {
			encoded, err := h.Hash("correct-password")
			require.NoError(t, err)

			for _, wrong := range []string{"wrong-password", "Correct-Password", "correct-password ", "", "correct-passwor"} {
				require.False(t, h.Verify(wrong, encoded), "%q must not verify", wrong)
			}
		})
	}
}

func TestHasher_Formats(t *testing.T) {
	hs := testHashers(t)

	bc, err := hs[AlgorithmBcrypt].Hash("pw")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(bc, "$2a$"), "bcrypt hash should carry its scheme")
	cost, err := bcrypt.Cost([]byte(bc))
	require.NoError(t, err)
	require.Equal(t, testCost, cost)

	ar, err := hs[AlgorithmArgon2id].Hash("pw")
	require.NoError(t, err)
	parts := strings.Split(ar, "$")
	require.Len(t, parts, 6)
	require.Equal(t, "argon2id", parts[1])
	require.Equal(t, "v=19", parts[2])
	require.Equal(t, "m=19456,t=2,p=1", parts[3])
}

func TestHasher_CrossSchemeVerify(t *testing.T) {
	hs := testHashers(t)

	fromArgon, err := hs[AlgorithmArgon2id].Hash("migrate-me")
	require.NoError(t, err)
	fromBcrypt, err := hs[AlgorithmBcrypt].Hash("migrate-me")
	require.NoError(t, err)

	require.True(t, hs[AlgorithmBcrypt].Verify("migrate-me", fromArgon))
	require.True(t, hs[AlgorithmArgon2id].Verify("migrate-me", fromBcrypt))
}

func TestHasher_InvalidHash(t *testing.T) {
	h := testHashers(t)[AlgorithmBcrypt]

	for _, bad := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=19456",
		"$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$invalid$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA",
		"$2a$04$tooshort",
	} {
		require.False(t, h.Verify("whatever", bad), "hash %q must not verify", bad)
	}
}

func TestCompareArgon2_Errors(t *testing.T) {
	require.ErrorIs(t, compareArgon2("pw", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA"), ErrInvalidHash)

	encoded, err := Argon2Hasher{}.Hash("pw")
	require.NoError(t, err)
	require.ErrorIs(t, compareArgon2("other", encoded), ErrMismatch)
	require.NoError(t, compareArgon2("pw", encoded))
}

func TestNewHasher_Config(t *testing.T) {
	_, err := NewHasher(HasherConfig{Algorithm: "md5"})
	require.ErrorIs(t, err, ErrUnknownScheme)

	_, err = NewHasher(HasherConfig{BcryptCost: 99})
	require.Error(t, err)

	h, err := NewHasher(HasherConfig{})
	require.NoError(t, err)
	require.NotNil(t, h)
}
