package auth

import "context"

type requesterContextKey struct{}
type tokenContextKey struct{}

// ContextWithRequester attaches the authenticated user to the context.
func ContextWithRequester(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, requesterContextKey{}, &user)
}

// RequesterFromContext extracts the authenticated user from the context.
func RequesterFromContext(ctx context.Context) (User, bool) {
	if ctx == nil {
		return User{}, false
	}
	v, ok := ctx.Value(requesterContextKey{}).(*User)
	if !ok || v == nil {
		return User{}, false
	}
	return *v, true
}

// ContextWithToken stores the resolved session token inside the context.
func ContextWithToken(ctx context.Context, token Token) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, &token)
}

// TokenFromContext returns the session token if it was previously attached.
func TokenFromContext(ctx context.Context) (Token, bool) {
	if ctx == nil {
		return Token{}, false
	}
	v, ok := ctx.Value(tokenContextKey{}).(*Token)
	if !ok || v == nil {
		return Token{}, false
	}
	return *v, true
}
