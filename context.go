package authcore

import "context"

type clientIPContextKey struct{}

// ContextWithClientIP attaches the caller's remote IP for throttling and
// audit metadata. Flows work without it; per-IP throttling is then skipped.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
