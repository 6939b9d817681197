package web

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
)

const sessionIDKey = "sessionId"

type SessionValueNotFoundError struct {
	Key string
}

func (err SessionValueNotFoundError) Error() string {
	return fmt.Sprintf("session value for key '%s' not found", err.Key)
}

// cookieSession returns the session of the request. A cookie that can not be
// decoded, e.g. after a key change, yields a new empty session.
func (h *Handler) cookieSession(r *http.Request) (*sessions.Session, error) {
	session, err := h.cookieStore.Get(r, h.sessionName)
	if err != nil {
		if session == nil {
			return nil, fmt.Errorf("error getting session: %w", err)
		}

		slog.DebugContext(r.Context(), "ignoring unreadable session cookie", "error", err)
	}

	return session, nil
}

func (h *Handler) getSessionValue(r *http.Request, key string) (any, error) {
	session, err := h.cookieSession(r)
	if err != nil {
		return nil, err
	}

	value, ok := session.Values[key]
	if !ok {
		return nil, SessionValueNotFoundError{Key: key}
	}

	return value, nil
}

func (h *Handler) getSessionString(r *http.Request, key string) (string, error) {
	value, err := h.getSessionValue(r, key)
	if err != nil {
		return "", err
	}

	s, ok := value.(string)
	if !ok {
		return "", SessionValueNotFoundError{Key: key}
	}

	return s, nil
}

func (h *Handler) setSessionValue(w http.ResponseWriter, r *http.Request, key string, value any) error {
	session, err := h.cookieSession(r)
	if err != nil {
		return err
	}

	session.Values[key] = value

	err = session.Save(r, w)
	if err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}

	return nil
}

func (h *Handler) deleteSessionValue(w http.ResponseWriter, r *http.Request, key string) error {
	session, err := h.cookieSession(r)
	if err != nil {
		return err
	}

	delete(session.Values, key)

	err = session.Save(r, w)
	if err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}

	return nil
}
