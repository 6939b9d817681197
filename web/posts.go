package web

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/csrf"
	authcontext "github.com/nasermirzaei89/folio/authentication/context"
	"github.com/nasermirzaei89/folio/authorization"
	"github.com/nasermirzaei89/folio/contents"
	"github.com/nasermirzaei89/folio/discuss"
	"github.com/nasermirzaei89/folio/reactions"
)

// LikeWidgetData is rendered by like-widget.gohtml.
type LikeWidgetData struct {
	Post            *contents.Post
	IsAuthenticated bool
	CSRFField       template.HTML
	ReturnTo        string
	Error           string
}

type PostSummary struct {
	*contents.Post

	Like *LikeWidgetData
}

func (h *Handler) likeWidget(r *http.Request, post *contents.Post, returnTo string) *LikeWidgetData {
	return &LikeWidgetData{
		Post:            post,
		IsAuthenticated: isAuthenticated(r),
		CSRFField:       csrf.TemplateField(r),
		ReturnTo:        returnTo,
	}
}

func listPostsFilter(query url.Values) contents.ListPostsFilter {
	return contents.ListPostsFilter{
		Tag:           query.Get("tag"),
		Author:        query.Get("author"),
		Query:         query.Get("q"),
		PublishedOnly: query.Get("published") == "1",
	}
}

func (h *Handler) HandleHomePage(w http.ResponseWriter, r *http.Request) {
	filter := listPostsFilter(r.URL.Query())

	posts, err := h.contentsSvc.ListPosts(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list posts", "error", err)
		h.renderError(w, r, http.StatusBadGateway, discuss.UserMessage(err, "Failed to load posts"))

		return
	}

	all := posts
	if filter != (contents.ListPostsFilter{}) {
		all, err = h.contentsSvc.ListPosts(r.Context(), contents.ListPostsFilter{})
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to list posts for tags", "error", err)

			all = posts
		}
	}

	returnTo := sanitizeReturnToPath(r.URL.RequestURI())
	summaries := make([]*PostSummary, 0, len(posts))

	for _, post := range posts {
		summaries = append(summaries, &PostSummary{Post: post, Like: h.likeWidget(r, post, returnTo)})
	}

	data := map[string]any{
		"Posts":          summaries,
		"Filter":         filter,
		"Tags":           contents.Tags(all),
		csrf.TemplateTag: csrf.TemplateField(r),
	}

	h.renderTemplate(w, r, "home-page.gohtml", data)
}

func postInputFromForm(r *http.Request) contents.PostInput {
	return contents.PostInput{
		Title:       r.FormValue("title"),
		Content:     r.FormValue("content"),
		Tags:        contents.ParseTags(r.FormValue("tags")),
		IsPublished: r.FormValue("is_published") != "",
	}
}

func (h *Handler) HandleCreatePostPage() http.Handler {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			csrf.TemplateTag: csrf.TemplateField(r),
			"SiteTitle":      "Create Post",
			"Input":          contents.PostInput{IsPublished: true},
			"Action":         "/create-post",
		}

		h.renderTemplate(w, r, "post-form-page.gohtml", data)
	})

	return h.AuthenticatedOnly(hf)
}

func (h *Handler) HandleCreatePost() http.Handler {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := r.ParseForm()
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to parse form", "error", err)
			http.Error(w, "Bad Request", http.StatusBadRequest)

			return
		}

		input := postInputFromForm(r)

		post, err := h.contentsSvc.CreatePost(r.Context(), input)
		if err != nil {
			h.renderPostFormError(w, r, err, input, "/create-post", "Create Post")

			return
		}

		http.Redirect(w, r, "/p/"+url.PathEscape(post.ID), http.StatusSeeOther)
	})

	return h.AuthenticatedOnly(hf)
}

func (h *Handler) renderPostFormError(
	w http.ResponseWriter,
	r *http.Request,
	err error,
	input contents.PostInput,
	action string,
	title string,
) {
	status := http.StatusBadGateway

	var (
		validationErr contents.ValidationError
		deniedErr     authorization.AccessDeniedError
	)

	switch {
	case errors.As(err, &validationErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &deniedErr):
		status = http.StatusForbidden
	default:
		slog.ErrorContext(r.Context(), "failed to save post", "error", err)
	}

	h.renderTemplateStatus(w, r, status, "post-form-page.gohtml", map[string]any{
		csrf.TemplateTag: csrf.TemplateField(r),
		"SiteTitle":      title,
		"Input":          input,
		"Action":         action,
		"Error":          discuss.UserMessage(err, "Failed to save post"),
	})
}

// postError renders the failure of loading a post.
func (h *Handler) postError(w http.ResponseWriter, r *http.Request, postID string, err error) {
	var notFoundErr contents.PostNotFoundError
	if errors.As(err, &notFoundErr) {
		h.renderError(w, r, http.StatusNotFound, "Post not found")

		return
	}

	slog.ErrorContext(r.Context(), "failed to get post", "postId", postID, "error", err)
	h.renderError(w, r, http.StatusBadGateway, discuss.UserMessage(err, "Failed to load post"))
}

// viewerKey identifies whose comment store a request works on.
func viewerKey(r *http.Request) string {
	if sessionID, ok := authcontext.SessionIDFromContext(r.Context()); ok {
		return "session:" + sessionID
	}

	return authcontext.GetSubject(r.Context())
}

func (h *Handler) HandleViewPostPage() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		postID := r.PathValue("postId")
		returnTo := "/p/" + url.PathEscape(postID)

		post, err := h.contentsSvc.GetPost(r.Context(), postID)
		if err != nil {
			h.postError(w, r, postID, err)

			return
		}

		data := map[string]any{
			"SiteTitle":      post.Title,
			"Post":           post,
			"CanEditPost":    h.contentsSvc.CanEdit(r.Context(), post),
			"Like":           h.likeWidget(r, post, returnTo),
			csrf.TemplateTag: csrf.TemplateField(r),
		}

		store, err := h.commentStores.Refresh(r.Context(), viewerKey(r), post.ID)
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to load comments", "postId", post.ID, "error", err)

			data["CommentsError"] = discuss.UserMessage(err, "Failed to load comments")
		} else {
			data["Comments"] = h.commentsSection(r, store)
		}

		h.renderTemplate(w, r, "view-post-page.gohtml", data)
	})
}

// loadEditablePost returns the post when the current user may change it and
// renders the failure otherwise.
func (h *Handler) loadEditablePost(w http.ResponseWriter, r *http.Request) (*contents.Post, bool) {
	postID := r.PathValue("postId")

	post, err := h.contentsSvc.GetPost(r.Context(), postID)
	if err != nil {
		h.postError(w, r, postID, err)

		return nil, false
	}

	if !h.contentsSvc.CanEdit(r.Context(), post) {
		h.renderError(w, r, http.StatusForbidden, "You are not allowed to do that")

		return nil, false
	}

	return post, true
}

func (h *Handler) HandleEditPostPage() http.Handler {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		post, ok := h.loadEditablePost(w, r)
		if !ok {
			return
		}

		data := map[string]any{
			csrf.TemplateTag: csrf.TemplateField(r),
			"SiteTitle":      "Edit Post",
			"Post":           post,
			"Input": contents.PostInput{
				Title:       post.Title,
				Content:     post.Content,
				Tags:        post.Tags,
				IsPublished: post.IsPublished,
			},
			"Action": "/p/" + url.PathEscape(post.ID) + "/edit",
		}

		h.renderTemplate(w, r, "post-form-page.gohtml", data)
	})

	return h.AuthenticatedOnly(hf)
}

func (h *Handler) HandleEditPost() http.Handler {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		postID := r.PathValue("postId")

		err := r.ParseForm()
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to parse form", "error", err)
			http.Error(w, "Bad Request", http.StatusBadRequest)

			return
		}

		input := postInputFromForm(r)

		post, err := h.contentsSvc.UpdatePost(r.Context(), postID, input)
		if err != nil {
			var notFoundErr contents.PostNotFoundError
			if errors.As(err, &notFoundErr) {
				h.postError(w, r, postID, err)

				return
			}

			h.renderPostFormError(w, r, err, input, "/p/"+url.PathEscape(postID)+"/edit", "Edit Post")

			return
		}

		http.Redirect(w, r, "/p/"+url.PathEscape(post.ID), http.StatusSeeOther)
	})

	return h.AuthenticatedOnly(hf)
}

func (h *Handler) HandleDeletePost() http.Handler {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := r.ParseForm()
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to parse form", "error", err)
			http.Error(w, "Bad Request", http.StatusBadRequest)

			return
		}

		if r.FormValue("confirmed") != "true" {
			post, ok := h.loadEditablePost(w, r)
			if !ok {
				return
			}

			h.renderTemplate(w, r, "delete-post-page.gohtml", map[string]any{
				csrf.TemplateTag: csrf.TemplateField(r),
				"SiteTitle":      "Delete Post",
				"Post":           post,
			})

			return
		}

		postID := r.PathValue("postId")

		err = h.contentsSvc.DeletePost(r.Context(), postID)
		if err != nil {
			var deniedErr authorization.AccessDeniedError
			if errors.As(err, &deniedErr) {
				h.renderError(w, r, http.StatusForbidden, "You are not allowed to do that")

				return
			}

			h.postError(w, r, postID, err)

			return
		}

		h.commentStores.Forget(viewerKey(r), postID)

		if isHTMXRequest(r) {
			w.Header().Set("HX-Redirect", "/")
			w.WriteHeader(http.StatusNoContent)

			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	return h.AuthenticatedOnly(hf)
}

func (h *Handler) HandleToggleLike() http.Handler {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		postID := r.PathValue("postId")

		err := r.ParseForm()
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to parse like form", "error", err)
			http.Error(w, "Bad Request", http.StatusBadRequest)

			return
		}

		returnTo := sanitizeReturnToPath(r.FormValue("return_to"))

		post, err := h.contentsSvc.GetPost(r.Context(), postID)
		if err != nil {
			h.postError(w, r, postID, err)

			return
		}

		widget := h.likeWidget(r, post, returnTo)

		liked, err := h.reactionsSvc.ToggleLike(r.Context(), post)
		if err != nil {
			var deniedErr authorization.AccessDeniedError
			if !errors.As(err, &deniedErr) && !errors.Is(err, reactions.ErrAuthenticationRequired) {
				slog.ErrorContext(r.Context(), "failed to toggle like", "postId", postID, "error", err)
			}

			widget.Error = discuss.UserMessage(err, "Failed to update like")
		} else {
			widget.Post = liked
		}

		if !isHTMXRequest(r) {
			http.Redirect(w, r, returnTo, http.StatusSeeOther)

			return
		}

		h.executeTemplate(w, r, http.StatusOK, "like-widget", widget)
	})

	return h.AuthenticatedOnly(hf)
}
