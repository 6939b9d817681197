package folio

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/sessions"
	"github.com/nasermirzaei89/env"
	"github.com/nasermirzaei89/folio/apiclient"
	"github.com/nasermirzaei89/folio/authentication"
	"github.com/nasermirzaei89/folio/authorization"
	"github.com/nasermirzaei89/folio/authorization/casbin"
	"github.com/nasermirzaei89/folio/contents"
	"github.com/nasermirzaei89/folio/db/sqlite3"
	"github.com/nasermirzaei89/folio/discuss"
	"github.com/nasermirzaei89/folio/random"
	"github.com/nasermirzaei89/folio/reactions"
	"github.com/nasermirzaei89/folio/server"
	"github.com/nasermirzaei89/folio/web"
	"golang.org/x/time/rate"
)

const sessionPurgeInterval = time.Hour

type App struct {
	server        *server.Server
	handler       *web.Handler
	db            *sql.DB
	authSvc       *authentication.Service
	commentStores *discuss.Stores
}

//go:embed policy.csv
var defaultAuthorizationPolicyContent string

func NewApp(ctx context.Context) (*App, error) {
	db, err := sqlite3.NewDB(ctx, env.GetString("DB_DSN", "file:folio.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	err = sqlite3.MigrateUp(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	apiClient, err := apiclient.New(
		env.GetString("API_BASE_URL", "http://localhost:8000/"),
		durationFromEnv("API_TIMEOUT", apiclient.DefaultTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	sessionRepo := sqlite3.NewSessionRepository(db)

	authzProvider, err := newAuthorizationProvider(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization provider: %w", err)
	}

	authzSvc, err := authorization.NewService(authzProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization service: %w", err)
	}

	authzClient := authorization.NewClient(authzSvc)
	authSvc := authentication.NewService(apiClient, sessionRepo, authzClient)
	contentsSvc := contents.NewService(apiClient, authzClient)
	reactionsSvc := reactions.NewService(apiClient, authzClient)

	commentStores, err := discuss.NewStores(
		apiClient,
		authzClient,
		durationFromEnv("COMMENT_STORE_TTL", discuss.DefaultStoreTTL),
		discuss.WithRequestTimeout(durationFromEnv("COMMENT_REQUEST_TIMEOUT", discuss.DefaultRequestTimeout)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment stores: %w", err)
	}

	sessionName := env.GetString("SESSION_NAME", "folio-"+random.Hex(4))

	sessionKey, ok := random.KeyOrRandom(env.GetString("SESSION_KEY", ""), 32)
	if !ok {
		slog.WarnContext(ctx, "SESSION_KEY is not a 32 byte hex key, sessions will not survive a restart")
	}

	cookieStore := sessions.NewCookieStore(sessionKey)
	cookieStore.Options.HttpOnly = true
	cookieStore.Options.SameSite = http.SameSiteLaxMode

	csrfAuthKey, ok := random.KeyOrRandom(env.GetString("CSRF_AUTH_KEY", ""), 32)
	if !ok {
		slog.WarnContext(ctx, "CSRF_AUTH_KEY is not a 32 byte hex key, using a random one")
	}

	csrfTrustedOrigins := env.GetStringSlice("CSRF_TRUSTED_ORIGINS", []string{})

	httpHandler, err := web.NewHandler(
		authSvc,
		contentsSvc,
		reactionsSvc,
		commentStores,
		cookieStore,
		sessionName,
		csrfAuthKey,
		csrfTrustedOrigins,
		loginRateFromEnv(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP handler: %w", err)
	}

	app := &App{
		server:        newServer(),
		handler:       httpHandler,
		db:            db,
		authSvc:       authSvc,
		commentStores: commentStores,
	}

	return app, nil
}

func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer func() {
		app.commentStores.Close()

		if app.db != nil {
			err := app.db.Close()
			if err != nil {
				slog.ErrorContext(ctx, "failed to close database", "error", err)
			}
		}
	}()

	go app.purgeExpiredSessions(ctx)

	err := app.server.Run(ctx, app.handler)
	if err != nil {
		return fmt.Errorf("failed to run server: %w", err)
	}

	return nil
}

func (app *App) purgeExpiredSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		err := app.authSvc.PurgeExpiredSessions(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to purge expired sessions", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func newServer() *server.Server {
	server := &server.Server{
		Port: env.GetString("PORT", server.DefaultPort),
		Host: env.GetString("HOST", ""),
		TLS: server.ServerTLS{
			Enabled: env.GetBool("TLS_ENABLED", false),
			Mode:    env.GetString("TLS_MODE", server.DefaultTLSMode),
			AutoCert: &server.ServerTLSAutoCert{
				CacheDir: env.GetString("TLS_AUTOCERT_CACHE_DIR", "./cert-cache"),
				Domains:  env.GetStringSlice("TLS_AUTOCERT_DOMAINS", []string{}),
				Email:    env.GetString("TLS_AUTOCERT_EMAIL", ""),
			},
			CertFile: env.GetString("TLS_CERT_FILE", ""),
			KeyFile:  env.GetString("TLS_KEY_FILE", ""),
		},
	}

	return server
}

func GetLogLevelFromEnv() slog.Level {
	levelStr := env.GetString("LOG_LEVEL", "info")
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("unknown log level, defaulting to info", "level", levelStr)

		return slog.LevelInfo
	}
}

func durationFromEnv(key string, def time.Duration) time.Duration {
	value := env.GetString(key, "")
	if value == "" {
		return def
	}

	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", value, "default", def)

		return def
	}

	return d
}

// loginRateFromEnv reads LOGIN_RATE_LIMIT as attempts per minute.
func loginRateFromEnv() rate.Limit {
	value := env.GetString("LOGIN_RATE_LIMIT", "")
	if value == "" {
		return web.DefaultLoginRate
	}

	perMinute, err := strconv.ParseFloat(value, 64)
	if err != nil || perMinute <= 0 {
		slog.Warn("invalid login rate limit, using default", "value", value)

		return web.DefaultLoginRate
	}

	return rate.Limit(perMinute / 60)
}

func newAuthorizationProvider(ctx context.Context, db *sql.DB) (*casbin.AuthorizationProvider, error) {
	adapter, err := casbin.NewSQLAdapter(db, "sqlite3", "casbin_rule")
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization adapter: %w", err)
	}

	provider, err := casbin.NewAuthorizationProvider(adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization provider: %w", err)
	}

	policyContent, err := loadPolicyContent()
	if err != nil {
		return nil, fmt.Errorf("failed to load authorization policy content: %w", err)
	}

	err = provider.AddPolicyFromCSV(ctx, policyContent)
	if err != nil {
		return nil, fmt.Errorf("failed to add authorization policy from csv: %w", err)
	}

	return provider, nil
}

func loadPolicyContent() (string, error) {
	policyFilePath := env.GetString("AUTHORIZATION_POLICY_FILE", "")

	if policyFilePath == "" {
		return defaultAuthorizationPolicyContent, nil
	}

	content, err := os.ReadFile(policyFilePath) // nolint:gosec
	if err != nil {
		return "", fmt.Errorf("failed to read policy file %q: %w", policyFilePath, err)
	}

	return string(content), nil
}
