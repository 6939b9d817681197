package authentication_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nasermirzaei89/folio/authentication"
	authcontext "github.com/nasermirzaei89/folio/authentication/context"
	"github.com/nasermirzaei89/folio/authorization"
	"github.com/nasermirzaei89/folio/authorization/casbin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthAPI struct {
	tokens *authentication.Tokens
	err    error
	last   authentication.RegisterRequest
}

func (f *fakeAuthAPI) Login(_ context.Context, username, password string) (*authentication.Tokens, error) {
	if f.err != nil {
		return nil, f.err
	}

	if password != "secret-password" {
		return nil, authentication.ErrInvalidCredentials
	}

	tokens := *f.tokens
	if tokens.Username == "" {
		tokens.Username = username
	}

	return &tokens, nil
}

func (f *fakeAuthAPI) Register(_ context.Context, req authentication.RegisterRequest) (*authentication.Tokens, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.last = req

	tokens := *f.tokens

	return &tokens, nil
}

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]*authentication.Session
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[string]*authentication.Session)}
}

func (m *memorySessions) Insert(_ context.Context, session *authentication.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := *session
	m.sessions[session.ID] = &s

	return nil
}

func (m *memorySessions) Find(_ context.Context, id string) (*authentication.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, authentication.SessionNotFoundError{ID: id}
	}

	found := *s

	return &found, nil
}

func (m *memorySessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return authentication.SessionNotFoundError{ID: id}
	}

	delete(m.sessions, id)

	return nil
}

func (m *memorySessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64

	for id, s := range m.sessions {
		if s.ExpiresAt.Before(now) {
			delete(m.sessions, id)
			deleted++
		}
	}

	return deleted, nil
}

func newAuthzClient(t *testing.T) *authorization.Client {
	t.Helper()

	policyFile := filepath.Join(t.TempDir(), "policy.csv")

	err := os.WriteFile(policyFile, []byte("p, system:authenticated, folio, *, read\n"), 0o600)
	require.NoError(t, err)

	provider, err := casbin.NewAuthorizationProvider(fileadapter.NewAdapter(policyFile))
	require.NoError(t, err)

	authzSvc, err := authorization.NewService(provider)
	require.NoError(t, err)

	return authorization.NewClient(authzSvc)
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)

	return token
}

func TestService_Login(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)

	api := &fakeAuthAPI{tokens: &authentication.Tokens{
		AccessToken:  signedToken(t, jwt.MapClaims{"exp": exp.Unix()}),
		RefreshToken: "refresh",
	}}
	repo := newMemorySessions()
	authzClient := newAuthzClient(t)

	svc := authentication.NewService(api, repo, authzClient)

	session, err := svc.Login(ctx, authentication.LoginRequest{Username: " alice ", Password: "secret-password"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "alice", session.Username)
	assert.Equal(t, "refresh", session.RefreshToken)
	assert.True(t, session.ExpiresAt.Equal(exp))

	found, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.AccessToken, found.AccessToken)

	assert.True(t, authzClient.CanI(authcontext.WithSubject(ctx, "alice"), "folio", "x", "read"))

	err = svc.Logout(ctx, session.ID)
	require.NoError(t, err)

	_, err = svc.GetSession(ctx, session.ID)

	var notFoundErr authentication.SessionNotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestService_Login_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api := &fakeAuthAPI{tokens: &authentication.Tokens{AccessToken: "opaque"}}
	svc := authentication.NewService(api, newMemorySessions(), newAuthzClient(t))

	_, err := svc.Login(ctx, authentication.LoginRequest{Username: "alice", Password: "wrong"})
	require.ErrorIs(t, err, authentication.ErrInvalidCredentials)

	_, err = svc.Login(ctx, authentication.LoginRequest{Username: "", Password: "x"})

	var validationErr authentication.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Username", validationErr.Field)
	assert.Equal(t, "Username is required", validationErr.UserMessage())
}

func TestService_Login_OpaqueToken(t *testing.T) {
	t.Parallel()

	api := &fakeAuthAPI{tokens: &authentication.Tokens{AccessToken: "not-a-jwt"}}
	svc := authentication.NewService(api, newMemorySessions(), newAuthzClient(t))

	before := time.Now()

	session, err := svc.Login(context.Background(), authentication.LoginRequest{Username: "alice", Password: "secret-password"})
	require.NoError(t, err)

	assert.WithinDuration(t, before.Add(authentication.DefaultSessionDuration), session.ExpiresAt, time.Minute)
}

func TestService_GetSession_Expired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemorySessions()
	svc := authentication.NewService(&fakeAuthAPI{}, repo, newAuthzClient(t))

	err := repo.Insert(ctx, &authentication.Session{
		ID:        "old",
		Username:  "alice",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	_, err = svc.GetSession(ctx, "old")

	var expiredErr authentication.SessionExpiredError
	require.ErrorAs(t, err, &expiredErr)

	_, err = repo.Find(ctx, "old")

	var notFoundErr authentication.SessionNotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestService_PurgeExpiredSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemorySessions()
	svc := authentication.NewService(&fakeAuthAPI{}, repo, newAuthzClient(t))

	require.NoError(t, repo.Insert(ctx, &authentication.Session{ID: "old", ExpiresAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, repo.Insert(ctx, &authentication.Session{ID: "new", ExpiresAt: time.Now().Add(time.Hour)}))

	require.NoError(t, svc.PurgeExpiredSessions(ctx))

	_, err := repo.Find(ctx, "new")
	require.NoError(t, err)

	_, err = repo.Find(ctx, "old")
	require.Error(t, err)
}

func TestService_Register(t *testing.T) {
	t.Parallel()

	valid := authentication.RegisterRequest{
		Username:             "bob",
		Email:                "bob@example.com",
		Password:             "password1",
		PasswordConfirmation: "password1",
	}

	tests := []struct {
		name    string
		modify  func(req *authentication.RegisterRequest)
		field   string
		message string
	}{
		{name: "valid", modify: func(*authentication.RegisterRequest) {}},
		{
			name:    "passwords differ",
			modify:  func(req *authentication.RegisterRequest) { req.PasswordConfirmation = "password2" },
			field:   "PasswordConfirmation",
			message: "Passwords do not match",
		},
		{
			name:    "bad email",
			modify:  func(req *authentication.RegisterRequest) { req.Email = "bob" },
			field:   "Email",
			message: "Email is not valid",
		},
		{
			name: "short password",
			modify: func(req *authentication.RegisterRequest) {
				req.Password = "short"
				req.PasswordConfirmation = "short"
			},
			field:   "Password",
			message: "Password must be at least 8 characters",
		},
		{
			name:    "missing username",
			modify:  func(req *authentication.RegisterRequest) { req.Username = "  " },
			field:   "Username",
			message: "Username is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := &fakeAuthAPI{tokens: &authentication.Tokens{AccessToken: "opaque"}}
			svc := authentication.NewService(api, newMemorySessions(), newAuthzClient(t))

			req := valid
			tt.modify(&req)

			session, err := svc.Register(context.Background(), req)
			if tt.field == "" {
				require.NoError(t, err)
				assert.Equal(t, "bob", session.Username)
				assert.Equal(t, "bob@example.com", api.last.Email)

				return
			}

			var validationErr authentication.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
			assert.Equal(t, tt.message, validationErr.UserMessage())
		})
	}
}

func TestService_GetCurrentUser(t *testing.T) {
	t.Parallel()

	svc := authentication.NewService(&fakeAuthAPI{}, newMemorySessions(), nil)

	_, err := svc.GetCurrentUser(context.Background())
	require.ErrorIs(t, err, authentication.ErrCurrentUserNotFound)

	username, err := svc.GetCurrentUser(authcontext.WithSubject(context.Background(), "alice"))
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}
