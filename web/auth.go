package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/csrf"
	"github.com/nasermirzaei89/folio/authentication"
	authcontext "github.com/nasermirzaei89/folio/authentication/context"
	"github.com/nasermirzaei89/folio/discuss"
)

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sessionValueNotFoundError SessionValueNotFoundError

		sessionID, err := h.getSessionString(r, sessionIDKey)
		if err != nil && !errors.As(err, &sessionValueNotFoundError) {
			slog.ErrorContext(
				r.Context(),
				"error on getting session value",
				"key",
				sessionIDKey,
				"error",
				err,
			)
			http.Error(w, "error on getting session value", http.StatusInternalServerError)

			return
		}

		if sessionID == "" {
			next.ServeHTTP(w, r)

			return
		}

		session, err := h.authSvc.GetSession(r.Context(), sessionID)
		if err != nil {
			var (
				sessionNotFoundError authentication.SessionNotFoundError
				sessionExpiredError  authentication.SessionExpiredError
			)

			if errors.As(err, &sessionNotFoundError) || errors.As(err, &sessionExpiredError) {
				err = h.deleteSessionValue(w, r, sessionIDKey)
				if err != nil {
					slog.ErrorContext(
						r.Context(),
						"error on deleting session value",
						"key",
						sessionIDKey,
						"error",
						err,
					)
					http.Error(w, "error on deleting session value", http.StatusInternalServerError)

					return
				}

				next.ServeHTTP(w, r)

				return
			}

			slog.ErrorContext(r.Context(), "error on getting session", "sessionId", sessionID, "error", err)
			http.Error(w, "error on getting session", http.StatusInternalServerError)

			return
		}

		ctx := authcontext.WithSessionID(r.Context(), session.ID)
		ctx = authcontext.WithSubject(ctx, session.Username)
		ctx = authcontext.WithAccessToken(ctx, session.AccessToken)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isAuthenticated(r *http.Request) bool {
	return authcontext.GetSubject(r.Context()) != authcontext.Anonymous
}

func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == hxRequestTrue
}

// loginURL sends the user back to the current page after logging in.
func loginURL(r *http.Request) string {
	returnTo := r.URL.RequestURI()
	if isHTMXRequest(r) {
		if current, err := url.Parse(r.Header.Get("HX-Current-URL")); err == nil {
			returnTo = current.RequestURI()
		}
	}

	return "/login?return_to=" + url.QueryEscape(sanitizeReturnToPath(returnTo))
}

func (h *Handler) AuthenticatedOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAuthenticated(r) {
			if isHTMXRequest(r) {
				w.Header().Set("HX-Redirect", loginURL(r))
				w.WriteHeader(http.StatusUnauthorized)

				return
			}

			http.Redirect(w, r, loginURL(r), http.StatusSeeOther)

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) GuestOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAuthenticated(r) {
			http.Redirect(w, r, "/", http.StatusSeeOther)

			return
		}

		next.ServeHTTP(w, r)
	})
}

// sanitizeReturnToPath only lets local absolute paths through.
func sanitizeReturnToPath(returnTo string) string {
	if returnTo == "" || !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") {
		return "/"
	}

	if strings.ContainsAny(returnTo, "\\\r\n") {
		return "/"
	}

	u, err := url.Parse(returnTo)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}

	return returnTo
}

func (h *Handler) HandleRegisterPage() http.Handler {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			csrf.TemplateTag: csrf.TemplateField(r),
			"SiteTitle":      "Register",
		}

		h.renderTemplate(w, r, "register-page.gohtml", data)
	})

	return h.GuestOnly(hf)
}

func (h *Handler) HandleRegister() http.Handler {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := r.ParseForm()
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to parse form", "error", err)
			http.Error(w, "Bad Request", http.StatusBadRequest)

			return
		}

		req := authentication.RegisterRequest{
			Username:             r.FormValue("username"),
			Email:                r.FormValue("email"),
			Password:             r.FormValue("password"),
			PasswordConfirmation: r.FormValue("password_confirmation"),
		}

		session, err := h.authSvc.Register(r.Context(), req)
		if err != nil {
			status := http.StatusUnprocessableEntity

			var validationErr authentication.ValidationError
			if !errors.As(err, &validationErr) {
				slog.ErrorContext(r.Context(), "failed to register user", "username", req.Username, "error", err)

				status = http.StatusBadRequest
			}

			h.renderTemplateStatus(w, r, status, "register-page.gohtml", map[string]any{
				csrf.TemplateTag: csrf.TemplateField(r),
				"SiteTitle":      "Register",
				"Error":          discuss.UserMessage(err, "Registration failed, please try again"),
				"Username":       req.Username,
				"Email":          req.Email,
			})

			return
		}

		err = h.setSessionValue(w, r, sessionIDKey, session.ID)
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to set session ID", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)

			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	return h.GuestOnly(hf)
}

func (h *Handler) HandleLoginPage() http.Handler {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			csrf.TemplateTag: csrf.TemplateField(r),
			"SiteTitle":      "Login",
			"ReturnTo":       sanitizeReturnToPath(r.URL.Query().Get("return_to")),
		}

		h.renderTemplate(w, r, "login-page.gohtml", data)
	})

	return h.GuestOnly(hf)
}

func (h *Handler) HandleLogin() http.Handler {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := r.ParseForm()
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to parse form", "error", err)
			http.Error(w, "Bad Request", http.StatusBadRequest)

			return
		}

		req := authentication.LoginRequest{
			Username: r.FormValue("username"),
			Password: r.FormValue("password"),
		}
		returnTo := sanitizeReturnToPath(r.FormValue("return_to"))

		renderError := func(status int, message string) {
			h.renderTemplateStatus(w, r, status, "login-page.gohtml", map[string]any{
				csrf.TemplateTag: csrf.TemplateField(r),
				"SiteTitle":      "Login",
				"Error":          message,
				"Username":       req.Username,
				"ReturnTo":       returnTo,
			})
		}

		if !h.loginLimiter.allow(clientIP(r), h.now()) {
			slog.WarnContext(r.Context(), "too many login attempts", "ip", clientIP(r))
			renderError(http.StatusTooManyRequests, "Too many login attempts, please try again later")

			return
		}

		session, err := h.authSvc.Login(r.Context(), req)
		if err != nil {
			var validationErr authentication.ValidationError

			switch {
			case errors.As(err, &validationErr):
				renderError(http.StatusUnprocessableEntity, validationErr.UserMessage())
			case errors.Is(err, authentication.ErrInvalidCredentials):
				renderError(http.StatusUnauthorized, "Invalid username or password")
			default:
				slog.ErrorContext(r.Context(), "failed to login user", "username", req.Username, "error", err)
				renderError(http.StatusBadGateway, discuss.UserMessage(err, "Login failed, please try again"))
			}

			return
		}

		err = h.setSessionValue(w, r, sessionIDKey, session.ID)
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to set session ID", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)

			return
		}

		http.Redirect(w, r, returnTo, http.StatusSeeOther)
	})

	return h.GuestOnly(hf)
}

func (h *Handler) HandleLogoutPage() http.Handler {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			csrf.TemplateTag: csrf.TemplateField(r),
			"SiteTitle":      "Logout",
		}

		h.renderTemplate(w, r, "logout-page.gohtml", data)
	})

	return h.AuthenticatedOnly(hf)
}

func (h *Handler) HandleLogout() http.Handler {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := authcontext.SessionIDFromContext(r.Context())
		if ok {
			err := h.authSvc.Logout(r.Context(), sessionID)
			if err != nil {
				var sessionNotFoundError authentication.SessionNotFoundError
				if !errors.As(err, &sessionNotFoundError) {
					slog.ErrorContext(r.Context(), "error on logout", "sessionId", sessionID, "error", err)
					http.Error(w, "error on logout", http.StatusInternalServerError)

					return
				}
			}
		}

		err := h.deleteSessionValue(w, r, sessionIDKey)
		if err != nil {
			slog.ErrorContext(
				r.Context(),
				"error on deleting session value",
				"key",
				sessionIDKey,
				"error",
				err,
			)
			http.Error(w, "error on deleting session value", http.StatusInternalServerError)

			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	return h.AuthenticatedOnly(hf)
}
