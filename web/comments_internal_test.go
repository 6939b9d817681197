package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	authcontext "github.com/nasermirzaei89/folio/authentication/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRequest struct {
	method string
	target string
	form   url.Values
	user   string
	htmx   bool
}

// serve skips the session and csrf middleware and runs the request as user.
func (env *testEnv) serve(t *testing.T, req testRequest) *httptest.ResponseRecorder {
	t.Helper()

	var body *strings.Reader
	if req.form != nil {
		body = strings.NewReader(req.form.Encode())
	} else {
		body = strings.NewReader("")
	}

	r := httptest.NewRequest(req.method, req.target, body)
	if req.form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if req.htmx {
		r.Header.Set("HX-Request", hxRequestTrue)
	}

	if req.user != "" {
		ctx := authcontext.WithSessionID(r.Context(), req.user+"-session")
		ctx = authcontext.WithSubject(ctx, req.user)
		r = r.WithContext(ctx)
	}

	rec := httptest.NewRecorder()
	env.handler.mux.ServeHTTP(rec, r)

	return rec
}

func TestHandler_ViewPostPage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.serve(t, testRequest{method: http.MethodGet, target: "/p/p1"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<strong>bold</strong>")
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, `id="comment-a"`)
	assert.Contains(t, body, `id="comment-b"`)
	assert.Contains(t, body, `<span id="comments-count">3</span>`)
	assert.NotContains(t, body, "/p/p1/comments/a/edit")
	assert.Contains(t, body, "to join the discussion")
}

func TestHandler_ViewPostPage_NotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.serve(t, testRequest{method: http.MethodGet, target: "/p/missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post not found")
}

func TestHandler_EditComment(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.serve(t, testRequest{method: http.MethodGet, target: "/p/p1/comments/a/edit", user: "alice", htmx: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ">first</textarea>")

	rec = env.serve(t, testRequest{
		method: http.MethodPost,
		target: "/p/p1/comments/a/edit",
		form:   url.Values{"content": {"updated"}},
		user:   "alice",
		htmx:   true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<p>updated</p>")
	assert.Contains(t, body, `id="comment-b"`)
	assert.NotContains(t, body, "<textarea")
}

func TestHandler_EditComment_Failure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.comments.updateErr = errors.New("boom")

	rec := env.serve(t, testRequest{
		method: http.MethodPost,
		target: "/p/p1/comments/a/edit",
		form:   url.Values{"content": {"my draft"}},
		user:   "alice",
		htmx:   true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Failed to update comment")
	assert.Contains(t, body, ">my draft</textarea>")
}

func TestHandler_EditComment_NotAuthor(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.serve(t, testRequest{method: http.MethodGet, target: "/p/p1/comments/a/edit", user: "bob", htmx: true})
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "You are not allowed to do that")
	assert.NotContains(t, body, "<textarea name=\"content\" rows=\"3\" required>first")
}

func TestHandler_StartEdit_WithoutHTMX(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.serve(t, testRequest{method: http.MethodGet, target: "/p/p1/comments/a/edit", user: "alice"})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/p/p1#comment-a", rec.Header().Get("Location"))

	rec = env.serve(t, testRequest{method: http.MethodGet, target: "/p/p1", user: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ">first</textarea>")
}

func TestHandler_DeleteComment(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.serve(t, testRequest{
		method: http.MethodPost,
		target: "/p/p1/comments/b/delete",
		form:   url.Values{},
		user:   "bob",
		htmx:   true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Delete this comment and its replies?")
	assert.Empty(t, env.comments.deleted)

	rec = env.serve(t, testRequest{
		method: http.MethodPost,
		target: "/p/p1/comments/b/delete",
		form:   url.Values{"confirmed": {"true"}},
		user:   "bob",
		htmx:   true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, `id="comment-b"`)
	assert.Contains(t, body, `<span id="comments-count" hx-swap-oob="true">2</span>`)
	assert.Equal(t, []string{"b"}, env.comments.deleted)
}

func TestHandler_DeleteComment_ConfirmPage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.serve(t, testRequest{
		method: http.MethodPost,
		target: "/p/p1/comments/c/delete",
		form:   url.Values{},
		user:   "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="confirmed" value="true"`)
	assert.Empty(t, env.comments.deleted)
}

func TestHandler_SubmitReply(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.serve(t, testRequest{method: http.MethodGet, target: "/p/p1/comments/b/reply", user: "alice", htmx: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `placeholder="Write a reply"`)

	rec = env.serve(t, testRequest{
		method: http.MethodPost,
		target: "/p/p1/comments/b/reply",
		form:   url.Values{"content": {"nested"}},
		user:   "alice",
		htmx:   true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `id="comment-n1"`)
	assert.Contains(t, body, "<p>nested</p>")
	assert.NotContains(t, body, `placeholder="Write a reply"`)
	assert.Contains(t, body, `<span id="comments-count" hx-swap-oob="true">4</span>`)
}

func TestHandler_AddComment(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.serve(t, testRequest{
		method: http.MethodPost,
		target: "/p/p1/comments",
		form:   url.Values{"content": {"third"}},
		user:   "bob",
		htmx:   true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<p>third</p>")
	assert.Contains(t, body, `<span id="comments-count">4</span>`)

	rec = env.serve(t, testRequest{
		method: http.MethodPost,
		target: "/p/p1/comments",
		form:   url.Values{"content": {"   "}},
		user:   "bob",
		htmx:   true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Comment can not be empty")
}

func TestHandler_CommentActions_RequireLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.serve(t, testRequest{
		method: http.MethodPost,
		target: "/p/p1/comments",
		form:   url.Values{"content": {"hi"}},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/login?return_to="))

	rec = env.serve(t, testRequest{
		method: http.MethodPost,
		target: "/p/p1/comments",
		form:   url.Values{"content": {"hi"}},
		htmx:   true,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("HX-Redirect"))
}
