package http_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	authhttp "github.com/aussiebroadwan/triage/internal/auth/http"
	"github.com/aussiebroadwan/triage/internal/auth/domain"
	"github.com/aussiebroadwan/triage/internal/auth/gate"
	"github.com/aussiebroadwan/triage/internal/auth/service"
	"github.com/aussiebroadwan/triage/internal/auth/store"
	"github.com/aussiebroadwan/triage/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/triage/pkg/authsdk"
	"github.com/aussiebroadwan/triage/pkg/cryptox"
	"github.com/aussiebroadwan/triage/pkg/jwtx"
	"github.com/aussiebroadwan/triage/pkg/pwpolicy"
	"github.com/aussiebroadwan/triage/pkg/ratelimit"
)

const password = "Sup3r!Secret"

// mailbox captures tokens that would have been emailed.
type mailbox struct {
	mu     sync.Mutex
	resets map[string]string
	verify map[string]string
}

func (m *mailbox) SendPasswordReset(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[email] = token
	return nil
}

func (m *mailbox) SendVerification(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verify[email] = token
	return nil
}

func (m *mailbox) get(box map[string]string, email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return box[email]
}

type testServer struct {
	*httptest.Server
	client *authsdk.SDKClient
	store  store.Store
	hasher *cryptox.Pool
	mail   *mailbox
}

// generous keeps ordinary tests clear of throttling.
func generous() ratelimit.Rules {
	r := ratelimit.Rule{Requests: 1000, Window: time.Minute}
	return ratelimit.Rules{Login: r, Register: r, Reset: r, Refresh: r, Verify: r}
}

func newServer(t *testing.T, configure func(*authhttp.Router)) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	revocations := store.NewRevocationListAdapter(st)
	tokens, err := jwtx.NewService(
		jwtx.DefaultConfig([]byte("0123456789abcdef0123456789abcdef"), "triage-auth"),
		jwtx.WithRevocationList(revocations),
	)
	require.NoError(t, err)

	h, err := cryptox.NewHasher(cryptox.HasherConfig{Algorithm: cryptox.AlgorithmBcrypt, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	pool := cryptox.NewPool(h, 4)
	g := gate.New(tokens, st.Users())
	mail := &mailbox{resets: map[string]string{}, verify: map[string]string{}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := authhttp.NewRouter("test", st, logger)
	router.Gate = g
	router.Limiter = ratelimit.NewMemory()
	router.Rules = generous()
	router.AuthService = &service.AuthService{
		Store:    st,
		Tokens:   tokens,
		Gate:     g,
		Hasher:   pool,
		Policy:   pwpolicy.New(),
		Revoker:  revocations,
		Notifier: mail,
	}
	router.UserService = &service.UserService{Store: st}
	if configure != nil {
		configure(router)
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{
		Server: srv,
		client: authsdk.NewSDKClient(srv.URL),
		store:  st,
		hasher: pool,
		mail:   mail,
	}
}

// seedUser inserts an active account directly.
func (s *testServer) seedUser(t *testing.T, username string, role domain.Role) int64 {
	t.Helper()
	hash, err := s.hasher.Hash(context.Background(), password)
	require.NoError(t, err)
	id, err := s.store.Users().CreateUser(context.Background(), domain.NewUser{
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	})
	require.NoError(t, err)
	return id
}

func (s *testServer) login(t *testing.T, username string) *authsdk.Session {
	t.Helper()
	sess, err := s.client.AuthenticateWithPassword(context.Background(), username, password)
	require.NoError(t, err)
	return sess
}

func requireCode(t *testing.T, err error, status int, code string) {
	t.Helper()
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, code, apiErr.Code, apiErr.Description)
	require.Equal(t, status, apiErr.StatusCode)
}

func rawRequest(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
