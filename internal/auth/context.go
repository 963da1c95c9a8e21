package auth

import "context"

type contextKey string

const bearerContextKey contextKey = "bearer_token"

// ContextWithBearer stores the raw bearer token taken from the request.
// Verification happens later, inside the dispatcher.
func ContextWithBearer(ctx context.Context, token string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, bearerContextKey, token)
}

// BearerFromContext returns the raw bearer token, or "" when none was sent.
func BearerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	token, _ := ctx.Value(bearerContextKey).(string)
	return token
}
