package core

import "context"

type ctxKey string

const (
	CtxKeyUsername ctxKey = ctxKey("username")
)

// Username returns the authenticated analyst stored on ctx, or "".
func Username(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyUsername).(string); ok {
		return v
	}
	return ""
}

func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, CtxKeyUsername, username)
}
