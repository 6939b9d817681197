package authentication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	authcontext "github.com/nasermirzaei89/folio/authentication/context"
	"github.com/nasermirzaei89/folio/authorization"
)

// Tokens is what the API hands out on login and registration.
type Tokens struct {
	Username     string
	AccessToken  string
	RefreshToken string
}

type AuthAPI interface {
	Login(ctx context.Context, username, password string) (tokens *Tokens, err error)
	Register(ctx context.Context, req RegisterRequest) (tokens *Tokens, err error)
}

type RegisterRequest struct {
	Username             string `validate:"required,max=150"`
	Email                string `validate:"required,email"`
	Password             string `validate:"required,min=8"`
	PasswordConfirmation string `validate:"eqfield=Password"`
}

type LoginRequest struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrCurrentUserNotFound = errors.New("current user not found")
)

type ValidationError struct {
	Field string
	Rule  string
}

func (err ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: failed on %s", err.Field, err.Rule)
}

func (err ValidationError) UserMessage() string {
	switch {
	case err.Rule == "eqfield":
		return "Passwords do not match"
	case err.Rule == "required":
		return err.Field + " is required"
	case err.Field == "Email":
		return "Email is not valid"
	case err.Field == "Password" && err.Rule == "min":
		return "Password must be at least 8 characters"
	default:
		return err.Field + " is invalid"
	}
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			return ValidationError{Field: validationErrs[0].Field(), Rule: validationErrs[0].Tag()}
		}

		return fmt.Errorf("failed to validate request: %w", err)
	}

	return nil
}

const DefaultSessionDuration = 30 * 24 * time.Hour

type Service struct {
	api         AuthAPI
	sessionRepo SessionRepository
	authzClient *authorization.Client
	now         func() time.Time
}

func NewService(api AuthAPI, sessionRepo SessionRepository, authzClient *authorization.Client) *Service {
	return &Service{
		api:         api,
		sessionRepo: sessionRepo,
		authzClient: authzClient,
		now:         time.Now,
	}
}

// Register creates the account through the API and logs the new user in.
func (svc *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	err := validateStruct(req)
	if err != nil {
		return nil, err
	}

	tokens, err := svc.api.Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	if tokens.Username == "" {
		tokens.Username = req.Username
	}

	return svc.startSession(ctx, tokens)
}

func (svc *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	req.Username = strings.TrimSpace(req.Username)

	err := validateStruct(req)
	if err != nil {
		return nil, err
	}

	tokens, err := svc.api.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	if tokens.Username == "" {
		tokens.Username = req.Username
	}

	return svc.startSession(ctx, tokens)
}

func (svc *Service) startSession(ctx context.Context, tokens *Tokens) (*Session, error) {
	timeNow := svc.now()

	session := &Session{
		ID:           uuid.NewString(),
		Username:     tokens.Username,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		CreatedAt:    timeNow,
		ExpiresAt:    timeNow.Add(DefaultSessionDuration),
	}

	exp, ok, err := tokenExpiry(tokens.AccessToken)
	if err != nil {
		slog.DebugContext(ctx, "access token has no readable expiry", "username", tokens.Username, "error", err)
	} else if ok {
		session.ExpiresAt = exp
	}

	err = svc.sessionRepo.Insert(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	err = svc.authzClient.AddToGroup(ctx, session.Username, authcontext.Authenticated)
	if err != nil {
		return nil, fmt.Errorf("failed to add user to authenticated group: %w", err)
	}

	return session, nil
}

func (svc *Service) Logout(ctx context.Context, sessionID string) error {
	err := svc.sessionRepo.Delete(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

func (svc *Service) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := svc.sessionRepo.Find(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	if session.ExpiresAt.Before(svc.now()) {
		err = svc.sessionRepo.Delete(ctx, sessionID)
		if err != nil {
			slog.ErrorContext(ctx, "failed to delete expired session", "sessionId", sessionID, "error", err)
		}

		return nil, SessionExpiredError{ID: sessionID}
	}

	return session, nil
}

// PurgeExpiredSessions removes every session past its expiry.
func (svc *Service) PurgeExpiredSessions(ctx context.Context) error {
	deleted, err := svc.sessionRepo.DeleteExpired(ctx, svc.now())
	if err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	if deleted > 0 {
		slog.InfoContext(ctx, "expired sessions purged", "count", deleted)
	}

	return nil
}

// GetCurrentUser returns the username of the logged in user.
func (svc *Service) GetCurrentUser(ctx context.Context) (string, error) {
	sub := authcontext.GetSubject(ctx)
	if sub == authcontext.Anonymous {
		return "", ErrCurrentUserNotFound
	}

	return sub, nil
}
