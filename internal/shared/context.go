package shared

import "context"

type principalContextKey struct{}

// ContextWithPrincipal stores the authenticated principal id in context.
func ContextWithPrincipal(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principalID)
}

// PrincipalFromContext extracts the principal id. The second result is false
// when the request carried no verified identity.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(principalContextKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
