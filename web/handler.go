package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"maps"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
	"github.com/nasermirzaei89/folio/authentication"
	authcontext "github.com/nasermirzaei89/folio/authentication/context"
	"github.com/nasermirzaei89/folio/contents"
	"github.com/nasermirzaei89/folio/discuss"
	"github.com/nasermirzaei89/folio/reactions"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/time/rate"
)

var (
	//go:embed templates/*
	templatesFS embed.FS

	//go:embed static/*
	staticFS embed.FS
)

const (
	defaultSiteTitle = "Folio"
	hxRequestTrue    = "true"

	// DefaultLoginRate allows a burst of loginBurst attempts, then one every
	// twelve seconds per client address.
	DefaultLoginRate = rate.Limit(5.0 / 60.0)
	loginBurst       = 5
)

type Handler struct {
	mux           *http.ServeMux
	handler       http.Handler
	tpl           *template.Template
	static        fs.FS
	authSvc       *authentication.Service
	contentsSvc   *contents.Service
	reactionsSvc  *reactions.Service
	commentStores *discuss.Stores
	cookieStore   *sessions.CookieStore
	sessionName   string
	markdown      goldmark.Markdown
	loginLimiter  *ipRateLimiter
	now           func() time.Time
}

var _ http.Handler = (*Handler)(nil)

func NewHandler(
	authSvc *authentication.Service,
	contentsSvc *contents.Service,
	reactionsSvc *reactions.Service,
	commentStores *discuss.Stores,
	cookieStore *sessions.CookieStore,
	sessionName string,
	csrfAuthKeys []byte,
	csrfTrustedOrigins []string,
	loginRate rate.Limit,
) (*Handler, error) {
	if loginRate <= 0 {
		loginRate = DefaultLoginRate
	}

	h := &Handler{
		mux:           nil,
		handler:       nil,
		tpl:           nil,
		authSvc:       authSvc,
		contentsSvc:   contentsSvc,
		reactionsSvc:  reactionsSvc,
		commentStores: commentStores,
		cookieStore:   cookieStore,
		sessionName:   sessionName,
		markdown:      nil,
		loginLimiter:  newIPRateLimiter(loginRate, loginBurst),
		now:           time.Now,
	}

	// Raw HTML in user content is escaped, goldmark only renders it with html.WithUnsafe.
	h.markdown = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
	)

	{
		tpl, err := template.New("").Funcs(h.funcs()).ParseFS(templatesFS, "templates/*.gohtml")
		if err != nil {
			return nil, fmt.Errorf("failed to parse templates: %w", err)
		}

		h.tpl = tpl
	}

	{
		static, err := fs.Sub(staticFS, "static")
		if err != nil {
			return nil, fmt.Errorf("failed to sub static fs: %w", err)
		}

		h.static = static
	}

	{
		h.mux = &http.ServeMux{}
		h.handler = h.mux

		h.registerRoutes()
	}

	{
		h.handler = h.authMiddleware(h.handler)

		{
			csrfMiddleware := csrf.Protect(
				csrfAuthKeys,
				csrf.TrustedOrigins(csrfTrustedOrigins),
				csrf.Path("/"),
				csrf.SameSite(csrf.SameSiteLaxMode),
			)

			h.handler = plaintextMiddleware(csrfMiddleware(h.handler))
		}

		h.handler = recoverMiddleware(h.handler)
	}

	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("/", h.HandleIndex)

	h.mux.Handle("GET /register", h.HandleRegisterPage())
	h.mux.Handle("POST /register", h.HandleRegister())
	h.mux.Handle("GET /login", h.HandleLoginPage())
	h.mux.Handle("POST /login", h.HandleLogin())
	h.mux.Handle("GET /logout", h.HandleLogoutPage())
	h.mux.Handle("POST /logout", h.HandleLogout())

	h.mux.Handle("GET /create-post", h.HandleCreatePostPage())
	h.mux.Handle("POST /create-post", h.HandleCreatePost())
	h.mux.Handle("GET /p/{postId}", h.HandleViewPostPage())
	h.mux.Handle("GET /p/{postId}/edit", h.HandleEditPostPage())
	h.mux.Handle("POST /p/{postId}/edit", h.HandleEditPost())
	h.mux.Handle("POST /p/{postId}/delete", h.HandleDeletePost())
	h.mux.Handle("POST /p/{postId}/like", h.HandleToggleLike())

	h.mux.Handle("POST /p/{postId}/comments", h.HandleAddComment())
	h.mux.Handle("GET /p/{postId}/comments/{commentId}", h.HandleCommentNode())
	h.mux.Handle("GET /p/{postId}/comments/{commentId}/edit", h.HandleStartEdit())
	h.mux.Handle("POST /p/{postId}/comments/{commentId}/edit", h.HandleSaveEdit())
	h.mux.Handle("POST /p/{postId}/comments/{commentId}/edit/cancel", h.HandleCancelEdit())
	h.mux.Handle("GET /p/{postId}/comments/{commentId}/reply", h.HandleStartReply())
	h.mux.Handle("POST /p/{postId}/comments/{commentId}/reply", h.HandleSubmitReply())
	h.mux.Handle("POST /p/{postId}/comments/{commentId}/reply/cancel", h.HandleCancelReply())
	h.mux.Handle("POST /p/{postId}/comments/{commentId}/delete", h.HandleDeleteComment())
}

// plaintextMiddleware tells csrf which requests did not arrive over TLS, so
// that its referer check does not demand https for them.
func plaintextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") != "https" {
			r = csrf.PlaintextHTTPRequest(r)
		}

		next.ServeHTTP(w, r)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func(ctx context.Context) {
			if err := recover(); err != nil {
				slog.ErrorContext(
					ctx,
					"recovered from panic",
					"error",
					err,
					"stack",
					string(debug.Stack()),
				)

				http.Error(w, "internal error occurred", http.StatusInternalServerError)
			}
		}(r.Context())

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) funcs() template.FuncMap {
	return template.FuncMap{
		"markdown": h.renderMarkdown,
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}

			return t.Format("Jan 2, 2006 15:04")
		},
		"isoTime": func(t time.Time) string {
			return t.Format(time.RFC3339)
		},
	}
}

func (h *Handler) renderMarkdown(source string) template.HTML {
	var buf bytes.Buffer

	err := h.markdown.Convert([]byte(source), &buf)
	if err != nil {
		slog.Error("failed to render markdown", "error", err)

		return template.HTML(template.HTMLEscapeString(source)) // nolint:gosec
	}

	return template.HTML(buf.String()) // nolint:gosec
}

func (h *Handler) renderTemplate(w http.ResponseWriter, r *http.Request, name string, extraData map[string]any) {
	h.renderTemplateStatus(w, r, http.StatusOK, name, extraData)
}

func (h *Handler) renderTemplateStatus(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	name string,
	extraData map[string]any,
) {
	var currentUser string

	if isAuthenticated(r) {
		currentUser = authcontext.GetSubject(r.Context())
	}

	data := map[string]any{
		"CurrentPath":     r.URL.Path,
		"Lang":            "en",
		"Dir":             "ltr",
		"IsAuthenticated": isAuthenticated(r),
		"CurrentUser":     currentUser,
		"CSRFToken":       csrf.Token(r),
	}

	maps.Copy(data, extraData)

	data["SiteTitle"] = defaultSiteTitle

	if extraData["SiteTitle"] != nil {
		data["SiteTitle"] = fmt.Sprintf("%s | %s", extraData["SiteTitle"], data["SiteTitle"])
	}

	h.executeTemplate(w, r, status, name, data)
}

// executeTemplate renders into a buffer first so a failing template never
// leaves a half written page behind.
func (h *Handler) executeTemplate(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer

	err := h.tpl.ExecuteTemplate(&buf, name, data)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to render template", "name", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	_, err = buf.WriteTo(w)
	if err != nil {
		slog.DebugContext(r.Context(), "failed to write response", "name", name, "error", err)
	}
}

func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		h.HandleHomePage(w, r)

		return
	}

	h.HandleStatic(w, r)
}

// HandleStatic serves static files.
func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.FileServer(http.FS(h.static)).ServeHTTP(w, r)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.renderTemplateStatus(w, r, status, "error-page.gohtml", map[string]any{
		"SiteTitle": http.StatusText(status),
		"Status":    status,
		"Message":   message,
	})
}
