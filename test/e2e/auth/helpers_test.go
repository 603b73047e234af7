package auth_test

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/triage/pkg/authsdk"
)

/*
 * Common constants and helper functions for auth service end-to-end tests.
 * This includes container setup, account helpers and assertions.
 */

const (
	testImageName = "triage-auth-test:latest"

	testSecret    = "e2e-secret-key-0123456789abcdefghij"
	adminEmail    = "admin@triage.test"
	adminUsername = "admin"
	adminPassword = "Admin123!Secure"
	userPassword  = "Viewer123!Pass"
)

// TestMain manages the test lifecycle, builds the Docker image once before
// all tests and cleans it up after all tests complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building Auth Service Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up Auth Service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

// buildDockerImage builds the test Docker image.
func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/auth/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

// cleanupDockerImage removes the test Docker image.
func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // Ignore errors - image might not exist
}

// baseEnv is the container environment shared by every test. Rate limits
// are relaxed so tests that make many calls do not trip them.
func baseEnv() map[string]string {
	return map[string]string{
		"AUTH_SECRET_KEY":               testSecret,
		"AUTH_ISSUER":                   "triage-auth-e2e",
		"AUTH_BCRYPT_COST":              "4",
		"AUTH_BOOTSTRAP_ADMIN_EMAIL":    adminEmail,
		"AUTH_BOOTSTRAP_ADMIN_USERNAME": adminUsername,
		"AUTH_BOOTSTRAP_ADMIN_PASSWORD": adminPassword,
		"ENV":                           "test",
		"LOG_LEVEL":                     "info",
		"LOG_FORMAT":                    "json",

		"RATELIMIT_LOGIN_REQUESTS":    "1000",
		"RATELIMIT_REGISTER_REQUESTS": "1000",
		"RATELIMIT_RESET_REQUESTS":    "1000",
		"RATELIMIT_REFRESH_REQUESTS":  "1000",
		"RATELIMIT_VERIFY_REQUESTS":   "1000",
	}
}

// containerOption adjusts the request for a single test.
type containerOption func(*testcontainers.ContainerRequest)

// withEnv overrides environment variables. An empty value removes the
// variable so the service falls back to its default.
func withEnv(env map[string]string) containerOption {
	return func(req *testcontainers.ContainerRequest) {
		for k, v := range env {
			if v == "" {
				delete(req.Env, k)
				continue
			}
			req.Env[k] = v
		}
	}
}

// withDefaultRateLimits drops the relaxed limits.
func withDefaultRateLimits() containerOption {
	return withEnv(map[string]string{
		"RATELIMIT_LOGIN_REQUESTS":    "",
		"RATELIMIT_REGISTER_REQUESTS": "",
		"RATELIMIT_RESET_REQUESTS":    "",
		"RATELIMIT_REFRESH_REQUESTS":  "",
		"RATELIMIT_VERIFY_REQUESTS":   "",
	})
}

// withRedis points the service at a Redis container on the given network.
func withRedis(nw *testcontainers.DockerNetwork) containerOption {
	return func(req *testcontainers.ContainerRequest) {
		req.Networks = []string{nw.Name}
		req.Env["RATELIMIT_BACKEND"] = "redis"
		req.Env["REDIS_ADDR"] = "redis:6379"
	}
}

// setupAuthContainer starts the auth service in a container and returns the
// base URL. The container is terminated when the test ends.
func setupAuthContainer(t *testing.T, opts ...containerOption) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          maps.Clone(baseEnv()),
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}
	for _, opt := range opts {
		opt(&req)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
}

// setupRedis starts Redis on a fresh network, reachable from other
// containers on it as redis:6379.
func setupRedis(t *testing.T) *testcontainers.DockerNetwork {
	t.Helper()
	ctx := context.Background()

	nw, err := network.New(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nw.Remove(ctx) })

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          "redis:7-alpine",
			ExposedPorts:   []string{"6379/tcp"},
			Networks:       []string{nw.Name},
			NetworkAliases: map[string][]string{nw.Name: {"redis"}},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return nw
}

// loginAdmin signs in as the bootstrap administrator.
func loginAdmin(t *testing.T, client *authsdk.SDKClient) *authsdk.Session {
	t.Helper()
	session, err := client.AuthenticateWithPassword(t.Context(), adminEmail, adminPassword)
	require.NoError(t, err, "bootstrap admin should be able to log in")
	return session
}

// registerViewer creates an account and logs it in.
func registerViewer(t *testing.T, client *authsdk.SDKClient, name string) (*authsdk.UserResponse, *authsdk.Session) {
	t.Helper()
	ctx := t.Context()

	user, err := client.Register(ctx, authsdk.RegisterRequest{
		Email:    name + "@triage.test",
		Username: name,
		FullName: "Test " + name,
		Password: userPassword,
	})
	require.NoError(t, err, "registration should succeed")
	require.Equal(t, "viewer", user.Role)

	session, err := client.AuthenticateWithPassword(ctx, name, userPassword)
	require.NoError(t, err, "new account should be able to log in")
	return user, session
}

// assertTokenResponse verifies a token response has all required fields.
func assertTokenResponse(t *testing.T, resp *authsdk.TokenResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "Access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "Refresh token should not be empty")
	require.Equal(t, "Bearer", resp.TokenType, "Token type should be Bearer")
	require.Positive(t, resp.ExpiresIn)
}

// assertCode checks that err is an API error with the given code.
func assertCode(t *testing.T, err error, code string, context string) {
	t.Helper()
	require.Error(t, err, context)
	require.True(t, authsdk.IsCode(err, code), "%s - want %s, got: %v", context, code, err)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
