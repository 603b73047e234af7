package httpx

import "context"

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyToken  ctxKey = "token" // raw bearer token, kept for logout
)

// WithUserID stores the authenticated caller's id.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, CtxKeyUserID, id)
}

// UserIDFrom returns the authenticated caller's id.
func UserIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(CtxKeyUserID).(int64)
	return id, ok
}

func withToken(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, CtxKeyToken, raw)
}

// TokenFrom returns the bearer token the request authenticated with.
func TokenFrom(ctx context.Context) string {
	s, _ := ctx.Value(CtxKeyToken).(string)
	return s
}
