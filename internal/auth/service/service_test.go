package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aussiebroadwan/triage/internal/auth/gate"
	"github.com/aussiebroadwan/triage/internal/auth/service"
	"github.com/aussiebroadwan/triage/internal/auth/store"
	"github.com/aussiebroadwan/triage/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/triage/pkg/cryptox"
	"github.com/aussiebroadwan/triage/pkg/jwtx"
	"github.com/aussiebroadwan/triage/pkg/pwpolicy"
)

const strongPassword = "Sup3r!Secret"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// outbox records what would have been mailed.
type outbox struct {
	mu     sync.Mutex
	resets map[string]string
	verify map[string]string
}

func newOutbox() *outbox {
	return &outbox{resets: map[string]string{}, verify: map[string]string{}}
}

func (o *outbox) SendPasswordReset(_ context.Context, email, token string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resets[email] = token
	return nil
}

func (o *outbox) SendVerification(_ context.Context, email, token string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.verify[email] = token
	return nil
}

func (o *outbox) reset(email string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.resets[email]
	return t, ok
}

type env struct {
	store  store.Store
	tokens *jwtx.Service
	gate   *gate.Gate
	auth   *service.AuthService
	users  *service.UserService
	hasher *cryptox.Pool
	policy *pwpolicy.Policy
	clock  *clock
	mail   *outbox
}

// revocationList is what both the sqlite table and the Redis deny-list
// provide.
type revocationList interface {
	jwtx.RevocationList
	service.Revoker
}

func newEnv(t *testing.T) *env {
	return newEnvWith(t, nil)
}

// newEnvWith uses revocations in place of the sqlite table when non-nil.
func newEnvWith(t *testing.T, revocations revocationList) *env {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	c := &clock{now: time.Now().Truncate(time.Second)}
	if revocations == nil {
		revocations = store.NewRevocationListAdapter(st)
	}

	tokens, err := jwtx.NewService(
		jwtx.DefaultConfig([]byte("0123456789abcdef0123456789abcdef"), "triage-auth"),
		jwtx.WithClock(c.Now),
		jwtx.WithRevocationList(revocations),
	)
	require.NoError(t, err)

	h, err := cryptox.NewHasher(cryptox.HasherConfig{Algorithm: cryptox.AlgorithmBcrypt, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	pool := cryptox.NewPool(h, 4)
	policy := pwpolicy.New()
	g := gate.New(tokens, st.Users())
	mail := newOutbox()

	return &env{
		store:  st,
		tokens: tokens,
		gate:   g,
		hasher: pool,
		policy: policy,
		clock:  c,
		mail:   mail,
		auth: &service.AuthService{
			Store:    st,
			Tokens:   tokens,
			Gate:     g,
			Hasher:   pool,
			Policy:   policy,
			Revoker:  revocations,
			Notifier: mail,
			Now:      c.Now,
		},
		users: &service.UserService{Store: st},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
