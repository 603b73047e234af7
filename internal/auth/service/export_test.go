package service

import "context"

// DecoyHash exposes the unknown-account hash to the external test package.
func (s *AuthService) DecoyHash(ctx context.Context) string { return s.decoyHash(ctx) }
