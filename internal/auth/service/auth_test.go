package service_test

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/triage/internal/auth/domain"
	"github.com/aussiebroadwan/triage/internal/auth/service"
	"github.com/aussiebroadwan/triage/pkg/errcode"
	"github.com/aussiebroadwan/triage/pkg/jwtx"
	"github.com/aussiebroadwan/triage/pkg/revoke"
)

func register(t *testing.T, e *env, email, username string) domain.User {
	t.Helper()
	u, err := e.auth.Register(context.Background(), service.RegisterInput{
		Email:    email,
		Username: username,
		FullName: "Test User",
		Password: strongPassword,
	})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u := register(t, e, " Ada@Example.com ", "ada")
	require.Equal(t, "ada@example.com", u.Email)
	require.Equal(t, domain.RoleViewer, u.Role)
	require.True(t, u.IsActive)
	require.False(t, u.IsVerified)
	require.NotEqual(t, strongPassword, u.PasswordHash)
	require.NotNil(t, u.VerificationTokenHash)

	_, sent := e.mail.verify["ada@example.com"]
	require.True(t, sent)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := e.auth.Register(ctx, service.RegisterInput{Email: "ADA@example.com", Username: "ada2", Password: strongPassword})
		require.True(t, errcode.Is(err, errcode.EmailAlreadyRegistered), "got %v", err)
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := e.auth.Register(ctx, service.RegisterInput{Email: "other@example.com", Username: "ada", Password: strongPassword})
		require.True(t, errcode.Is(err, errcode.UsernameTaken), "got %v", err)
	})

	t.Run("weak password lists every failure", func(t *testing.T) {
		_, err := e.auth.Register(ctx, service.RegisterInput{Email: "weak@example.com", Username: "weak", Password: "abc"})
		require.True(t, errcode.Is(err, errcode.WeakPassword))

		resp := errcode.Describe(err)
		require.Contains(t, resp.Errors, "password must be at least 8 characters long")
		require.Contains(t, resp.Errors, "password must contain at least one digit")
	})

	t.Run("password longer than the hasher accepts", func(t *testing.T) {
		_, err := e.auth.Register(ctx, service.RegisterInput{Email: "long@example.com", Username: "long", Password: "Aa1!" + strings.Repeat("x", 96)})
		require.True(t, errcode.Is(err, errcode.WeakPassword), "got %v", err)
		require.Contains(t, errcode.Describe(err).Errors, "password must be at most 72 bytes")
	})
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := register(t, e, "ada@example.com", "ada")

	for _, identifier := range []string{"ada@example.com", "ADA@EXAMPLE.COM", "ada"} {
		t.Run(identifier, func(t *testing.T) {
			pair, got, err := e.auth.Login(ctx, identifier, strongPassword)
			require.NoError(t, err)
			require.Equal(t, u.ID, got.ID)
			require.Equal(t, "Bearer", pair.TokenType)
			require.EqualValues(t, 30*60, pair.ExpiresIn)

			sub, ok := e.tokens.Verify(ctx, pair.AccessToken, jwtx.PurposeAccess)
			require.True(t, ok)
			require.Equal(t, strconv.FormatInt(u.ID, 10), sub)

			_, ok = e.tokens.Verify(ctx, pair.RefreshToken, jwtx.PurposeRefresh)
			require.True(t, ok)
		})
	}

	stored, err := e.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)

	t.Run("wrong password and unknown account look the same", func(t *testing.T) {
		_, _, errWrong := e.auth.Login(ctx, "ada", "Wr0ng!Password")
		_, _, errUnknown := e.auth.Login(ctx, "nobody@example.com", strongPassword)
		require.True(t, errcode.Is(errWrong, errcode.InvalidCredentials))
		require.True(t, errcode.Is(errUnknown, errcode.InvalidCredentials))
		require.Equal(t, errcode.Describe(errWrong), errcode.Describe(errUnknown))
	})

	t.Run("inactive", func(t *testing.T) {
		require.NoError(t, e.store.Users().SetActive(ctx, u.ID, false))
		t.Cleanup(func() { _ = e.store.Users().SetActive(ctx, u.ID, true) })

		_, _, err := e.auth.Login(ctx, "ada", strongPassword)
		require.True(t, errcode.Is(err, errcode.AccountInactive))
	})
}

func TestRefreshRotates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	register(t, e, "ada@example.com", "ada")

	pair, _, err := e.auth.Login(ctx, "ada", strongPassword)
	require.NoError(t, err)

	next, err := e.auth.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, next.AccessToken)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The consumed refresh token is dead.
	_, err = e.auth.Refresh(ctx, pair.RefreshToken)
	require.True(t, errcode.Is(err, errcode.InvalidToken), "got %v", err)

	// An access token is the wrong family.
	_, err = e.auth.Refresh(ctx, next.AccessToken)
	require.True(t, errcode.Is(err, errcode.InvalidRefreshToken), "got %v", err)

	_, err = e.auth.Refresh(ctx, "")
	require.True(t, errcode.Is(err, errcode.AuthenticationRequired))
}

// Racing refreshes with one token yield exactly one new pair, whichever
// revocation backend records the spent token.
func TestRefreshIsSingleUseUnderConcurrency(t *testing.T) {
	backends := map[string]func(t *testing.T) *env{
		"sqlite": newEnv,
		"redis": func(t *testing.T) *env {
			mr := miniredis.RunT(t)
			rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return newEnvWith(t, revoke.NewRedis(rdb))
		},
	}

	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			e := build(t)
			ctx := context.Background()
			register(t, e, "ada@example.com", "ada")

			pair, _, err := e.auth.Login(ctx, "ada", strongPassword)
			require.NoError(t, err)

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
				codes     = map[string]int{}
			)
			for range 32 {
				wg.Go(func() {
					_, err := e.auth.Refresh(ctx, pair.RefreshToken)
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						succeeded++
						return
					}
					codes[errcode.Of(err)]++
				})
			}
			wg.Wait()

			require.Equal(t, 1, succeeded)
			require.Equal(t, map[string]int{errcode.InvalidToken: 31}, codes)
		})
	}
}

func TestDecoyHashSurvivesCancelledFirstCaller(t *testing.T) {
	e := newEnv(t)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	first := e.auth.DecoyHash(cancelled)
	require.NotEmpty(t, first)
	require.Equal(t, first, e.auth.DecoyHash(context.Background()))

	ok, err := e.hasher.Verify(context.Background(), strongPassword, first)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRefreshRejectsInactiveUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := register(t, e, "ada@example.com", "ada")

	pair, _, err := e.auth.Login(ctx, "ada", strongPassword)
	require.NoError(t, err)
	require.NoError(t, e.store.Users().SetActive(ctx, u.ID, false))

	_, err = e.auth.Refresh(ctx, pair.RefreshToken)
	require.True(t, errcode.Is(err, errcode.AccountInactive))
}

func TestLogoutRevokesTokens(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := register(t, e, "ada@example.com", "ada")

	pair, _, err := e.auth.Login(ctx, "ada", strongPassword)
	require.NoError(t, err)

	id, err := e.gate.Authenticate(ctx, "Bearer "+pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, id)

	require.NoError(t, e.auth.Logout(ctx, u.ID, pair.AccessToken, pair.RefreshToken))

	_, err = e.gate.Authenticate(ctx, "Bearer "+pair.AccessToken)
	require.True(t, errcode.Is(err, errcode.InvalidToken))

	_, err = e.auth.Refresh(ctx, pair.RefreshToken)
	require.True(t, errcode.Is(err, errcode.InvalidToken))
}

func TestChangePassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := register(t, e, "ada@example.com", "ada")

	err := e.auth.ChangePassword(ctx, u.ID, "Wr0ng!Password", "N3w!Password")
	require.True(t, errcode.Is(err, errcode.InvalidCredentials))

	err = e.auth.ChangePassword(ctx, u.ID, strongPassword, "weak")
	require.True(t, errcode.Is(err, errcode.WeakPassword))

	err = e.auth.ChangePassword(ctx, u.ID, strongPassword, "N3w!"+strings.Repeat("p", 69))
	require.True(t, errcode.Is(err, errcode.WeakPassword), "got %v", err)

	err = e.auth.ChangePassword(ctx, u.ID, strongPassword, strongPassword)
	require.True(t, errcode.Is(err, errcode.ValidationError))

	require.NoError(t, e.auth.ChangePassword(ctx, u.ID, strongPassword, "N3w!Password"))

	_, _, err = e.auth.Login(ctx, "ada", strongPassword)
	require.True(t, errcode.Is(err, errcode.InvalidCredentials))
	_, _, err = e.auth.Login(ctx, "ada", "N3w!Password")
	require.NoError(t, err)
}

func TestPasswordResetRequestIsUniform(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := register(t, e, "ada@example.com", "ada")
	inactive := register(t, e, "bob@example.com", "bob")
	require.NoError(t, e.store.Users().SetActive(ctx, inactive.ID, false))

	for _, email := range []string{"ada@example.com", "nobody@example.com", "bob@example.com", ""} {
		require.NoError(t, e.auth.RequestPasswordReset(ctx, email), email)
	}

	_, sent := e.mail.reset("ada@example.com")
	require.True(t, sent)
	for _, email := range []string{"nobody@example.com", "bob@example.com"} {
		_, sent := e.mail.reset(email)
		require.False(t, sent, email)
	}

	stored, err := e.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetTokenHash)
	require.NotNil(t, stored.ResetTokenExpiresAt)
}

func TestResetPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	register(t, e, "ada@example.com", "ada")

	require.NoError(t, e.auth.RequestPasswordReset(ctx, "ada@example.com"))
	token, ok := e.mail.reset("ada@example.com")
	require.True(t, ok)

	err := e.auth.ResetPassword(ctx, token, "weak")
	require.True(t, errcode.Is(err, errcode.WeakPassword))

	require.NoError(t, e.auth.ResetPassword(ctx, token, "N3w!Password"))

	_, _, err = e.auth.Login(ctx, "ada", "N3w!Password")
	require.NoError(t, err)

	// Single use.
	err = e.auth.ResetPassword(ctx, token, "An0ther!Password")
	require.True(t, errcode.Is(err, errcode.InvalidResetToken), "got %v", err)
}

func TestResetPasswordRejects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	register(t, e, "ada@example.com", "ada")

	t.Run("superseded token", func(t *testing.T) {
		require.NoError(t, e.auth.RequestPasswordReset(ctx, "ada@example.com"))
		first, _ := e.mail.reset("ada@example.com")
		require.NoError(t, e.auth.RequestPasswordReset(ctx, "ada@example.com"))

		err := e.auth.ResetPassword(ctx, first, "N3w!Password")
		require.True(t, errcode.Is(err, errcode.InvalidResetToken))
	})

	t.Run("verification token", func(t *testing.T) {
		tok, err := e.tokens.IssueVerify("ada@example.com")
		require.NoError(t, err)
		err = e.auth.ResetPassword(ctx, tok.Value, "N3w!Password")
		require.True(t, errcode.Is(err, errcode.InvalidResetToken))
	})

	t.Run("expired", func(t *testing.T) {
		require.NoError(t, e.auth.RequestPasswordReset(ctx, "ada@example.com"))
		token, _ := e.mail.reset("ada@example.com")
		e.clock.Advance(time.Hour + time.Second)

		err := e.auth.ResetPassword(ctx, token, "N3w!Password")
		require.True(t, errcode.Is(err, errcode.InvalidResetToken))
	})

	t.Run("garbage", func(t *testing.T) {
		err := e.auth.ResetPassword(ctx, "not-a-token", "N3w!Password")
		require.True(t, errcode.Is(err, errcode.InvalidResetToken))
	})
}

func TestVerifyEmail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := register(t, e, "ada@example.com", "ada")
	token := e.mail.verify["ada@example.com"]

	reset, err := e.tokens.IssueReset("ada@example.com")
	require.NoError(t, err)
	err = e.auth.VerifyEmail(ctx, reset.Value)
	require.True(t, errcode.Is(err, errcode.InvalidVerificationToken))

	require.NoError(t, e.auth.VerifyEmail(ctx, token))

	stored, err := e.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, stored.IsVerified)
	require.Nil(t, stored.VerificationTokenHash)

	err = e.auth.VerifyEmail(ctx, token)
	require.True(t, errcode.Is(err, errcode.InvalidVerificationToken))
}

func TestMeAndValidatePassword(t *testing.T) {
	e := newEnv(t)
	u := register(t, e, "ada@example.com", "ada")

	me, err := e.auth.Me(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, "ada", me.Username)

	_, err = e.auth.Me(context.Background(), u.ID+1)
	require.True(t, errcode.Is(err, errcode.InvalidToken))

	res := e.auth.ValidatePassword("password")
	require.False(t, res.IsValid)
	require.True(t, e.auth.ValidatePassword(strongPassword).IsValid)
}
