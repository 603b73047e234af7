package httpx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/triage/pkg/errcode"
	"github.com/aussiebroadwan/triage/pkg/httpx"
)

// stubGate accepts "Bearer good" as user 7 and grants only "users:read".
type stubGate struct{}

func (stubGate) Authenticate(_ context.Context, header string) (int64, error) {
	switch httpx.BearerToken(header) {
	case "":
		return 0, oops.Code(errcode.AuthenticationRequired).Errorf("missing bearer token")
	case "good":
		return 7, nil
	default:
		return 0, oops.Code(errcode.InvalidToken).Errorf("bad token")
	}
}

func (stubGate) RequirePermission(_ context.Context, _ int64, perm string) error {
	if perm == "users:read" {
		return nil
	}
	return oops.Code(errcode.InsufficientPermissions).Errorf("missing %s", perm)
}

func (g stubGate) RequireSelfOr(ctx context.Context, userID, targetID int64, perm string) error {
	if userID == targetID {
		return nil
	}
	if err := g.RequirePermission(ctx, userID, perm); err != nil {
		return oops.Code(errcode.AccessDenied).Errorf("not yours")
	}
	return nil
}

func serve(h http.Handler, method, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errcode.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Code
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"Bearer":         "",
		"Bearer abc":     "abc",
		"bearer abc":     "abc",
		"BEARER  abc  ":  "abc",
		"Basic dXNlcjpw": "",
		"Bearerabc":      "",
	}
	for in, want := range cases {
		require.Equal(t, want, httpx.BearerToken(in), in)
	}
}

func TestRequireAuth(t *testing.T) {
	var gotID int64
	var gotToken string
	h := httpx.RequireAuth(stubGate{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = httpx.UserIDFrom(r.Context())
		gotToken = httpx.TokenFrom(r.Context())
	}))

	rec := serve(h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, errcode.AuthenticationRequired, decodeCode(t, rec))
	require.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = serve(h, http.MethodGet, "/", "Bearer nope")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, errcode.InvalidToken, decodeCode(t, rec))

	rec = serve(h, http.MethodGet, "/", "Bearer good")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(7), gotID)
	require.Equal(t, "good", gotToken)
}

func TestRequirePermission(t *testing.T) {
	gate := stubGate{}
	mux := http.NewServeMux()
	mux.Handle("GET /users", httpx.Chain(okHandler,
		httpx.RequireAuth(gate),
		httpx.RequirePermission(gate, "users:read"),
	))
	mux.Handle("DELETE /users/{id}", httpx.Chain(okHandler,
		httpx.RequireAuth(gate),
		httpx.RequirePermission(gate, "users:delete"),
	))
	mux.Handle("GET /users/{id}", httpx.Chain(okHandler,
		httpx.RequireAuth(gate),
		httpx.RequireSelfOr(gate, "id", "users:delete"),
	))

	require.Equal(t, http.StatusOK, serve(mux, http.MethodGet, "/users", "Bearer good").Code)

	rec := serve(mux, http.MethodDelete, "/users/3", "Bearer good")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, errcode.InsufficientPermissions, decodeCode(t, rec))

	require.Equal(t, http.StatusOK, serve(mux, http.MethodGet, "/users/7", "Bearer good").Code)

	rec = serve(mux, http.MethodGet, "/users/8", "Bearer good")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, errcode.AccessDenied, decodeCode(t, rec))

	rec = serve(mux, http.MethodGet, "/users/abc", "Bearer good")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("a"), mark("b"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b", "handler"}, order)
}
