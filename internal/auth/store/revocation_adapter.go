package store

import (
	"context"
	"time"
)

// RevocationListAdapter exposes a Store's revoked tokens as a jwtx
// revocation list, without jwtx depending on the store package.
type RevocationListAdapter struct {
	store Store
}

func NewRevocationListAdapter(s Store) *RevocationListAdapter {
	return &RevocationListAdapter{store: s}
}

func (a *RevocationListAdapter) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return a.store.RevokedTokens().IsRevoked(ctx, jti)
}

func (a *RevocationListAdapter) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	return a.store.RevokedTokens().Revoke(ctx, jti, expiresAt)
}

func (a *RevocationListAdapter) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return a.store.RevokedTokens().DeleteExpired(ctx, now)
}
