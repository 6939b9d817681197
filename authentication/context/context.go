package authentication

import "context"

type ContextKeySessionIDType struct{}

var ContextKeySessionID = ContextKeySessionIDType{}

func SessionIDFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(ContextKeySessionID).(string)
	if !ok {
		return "", false
	}

	return sessionID, true
}

const (
	// Anonymous is the subject of requests without a logged in user.
	Anonymous = "system:anonymous"

	Authenticated   = "system:authenticated"
	Unauthenticated = "system:unauthenticated"

	// Owner matches whoever owns the resource an action is checked against.
	Owner = "system:owner"
)

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

type contextKeySubject struct{}

// GetSubject returns the username of the current user or Anonymous.
func GetSubject(ctx context.Context) string {
	username, ok := ctx.Value(contextKeySubject{}).(string)
	if !ok || username == "" {
		return Anonymous
	}

	return username
}

func WithSubject(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, contextKeySubject{}, username)
}

type contextKeyAccessToken struct{}

// AccessToken returns the API access token of the current user.
func AccessToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(contextKeyAccessToken{}).(string)
	if !ok || token == "" {
		return "", false
	}

	return token, true
}

func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKeyAccessToken{}, token)
}
