/*
Package authsdk provides a client SDK for the triage authentication service,
and the request and response types its HTTP API speaks.

# SDKClient vs Session

The package is organized around two main types:

  - SDKClient: Provides unauthenticated operations and creates authenticated sessions
  - Session: Provides authenticated operations with automatic token refresh

Create an SDKClient to interact with public endpoints:

	client := authsdk.NewSDKClient("https://auth.example.com")

	// Check service health
	health, err := client.GetLiveness(ctx)

	// Create an account
	user, err := client.Register(ctx, authsdk.RegisterRequest{...})

	// Authenticate to create a session
	session, err := client.AuthenticateWithPassword(ctx, "ada@example.com", password)

Use a Session for authenticated operations. When the access token is about
to expire the session spends its refresh token on a new pair; refresh tokens
are single use, so a Session must not be copied between processes.

	me, err := session.Me(ctx)

	// Requires users:read
	users, err := session.ListUsers(ctx, authsdk.ListUsersOptions{Role: "viewer"})

	// Revoke both tokens
	err = session.Logout(ctx)

# Errors

Every failed request returns an *APIError carrying the service's error code:

	_, err := client.Login(ctx, "ada", "wrong")
	if authsdk.IsCode(err, "INVALID_CREDENTIALS") {
		...
	}

Rate-limited requests fail with RATE_LIMIT_EXCEEDED and set RetryAfter.
*/
package authsdk
