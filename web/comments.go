package web

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/csrf"
	"github.com/nasermirzaei89/folio/discuss"
)

// CommentsSection is rendered by the comments-section template.
type CommentsSection struct {
	PostID          string
	Tree            *discuss.TreeView
	CSRFField       template.HTML
	IsAuthenticated bool
	LoginURL        string
}

// Node wraps a root comment of the section for the comment-node template.
func (s *CommentsSection) Node(node *discuss.NodeView) *CommentNode {
	return &CommentNode{PostID: s.PostID, Node: node, CSRFField: s.CSRFField}
}

// CommentNode is rendered by the comment-node template. Node is nil once the
// comment is gone.
type CommentNode struct {
	PostID        string
	Node          *discuss.NodeView
	CSRFField     template.HTML
	ConfirmDelete bool
	Flash         string
	Count         int
}

func (n *CommentNode) Child(node *discuss.NodeView) *CommentNode {
	return &CommentNode{PostID: n.PostID, Node: node, CSRFField: n.CSRFField}
}

// URL returns the address of an action on the comment.
func (n *CommentNode) URL(action string) string {
	u := "/p/" + url.PathEscape(n.PostID) + "/comments/" + url.PathEscape(n.Node.Comment.ID)
	if action != "" {
		u += "/" + action
	}

	return u
}

func (h *Handler) commentsSection(r *http.Request, store *discuss.Store) *CommentsSection {
	return &CommentsSection{
		PostID:          store.PostID(),
		Tree:            store.View(r.Context()),
		CSRFField:       csrf.TemplateField(r),
		IsAuthenticated: isAuthenticated(r),
		LoginURL:        "/login?return_to=" + url.QueryEscape("/p/"+url.PathEscape(store.PostID())),
	}
}

func (h *Handler) openCommentStore(w http.ResponseWriter, r *http.Request) (*discuss.Store, bool) {
	postID := r.PathValue("postId")

	store, err := h.commentStores.Open(r.Context(), viewerKey(r), postID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to open comment store", "postId", postID, "error", err)
		h.renderError(w, r, http.StatusBadGateway, discuss.UserMessage(err, "Failed to load comments"))

		return nil, false
	}

	return store, true
}

// logCommentError logs failures that are not the user's doing.
func logCommentError(ctx context.Context, msg, commentID string, err error) {
	var (
		validationErr discuss.ValidationError
		authzErr      discuss.AuthorizationError
		busyErr       discuss.BusyError
		notFoundErr   discuss.CommentNotFoundError
	)

	switch {
	case err == nil, errors.Is(err, discuss.ErrDeleteNotConfirmed):
		return
	case errors.As(err, &validationErr), errors.As(err, &busyErr), errors.As(err, &notFoundErr):
		slog.DebugContext(ctx, msg, "commentId", commentID, "error", err)
	case errors.As(err, &authzErr):
		slog.WarnContext(ctx, msg, "commentId", commentID, "error", err)
	default:
		slog.ErrorContext(ctx, msg, "commentId", commentID, "error", err)
	}
}

// respondNode answers a comment action. htmx requests get the comment's new
// markup, every other request goes back to the post page.
func (h *Handler) respondNode(
	w http.ResponseWriter,
	r *http.Request,
	store *discuss.Store,
	commentID string,
	actionErr error,
) {
	if !isHTMXRequest(r) {
		if errors.Is(actionErr, discuss.ErrDeleteNotConfirmed) {
			h.renderDeleteCommentPage(w, r, store, commentID)

			return
		}

		target := "/p/" + url.PathEscape(store.PostID()) + "#comments"
		if _, _, ok := discuss.Find(store.Comments(), commentID); ok {
			target = "/p/" + url.PathEscape(store.PostID()) + "#comment-" + commentID
		}

		http.Redirect(w, r, target, http.StatusSeeOther)

		return
	}

	data := &CommentNode{
		PostID:        store.PostID(),
		CSRFField:     csrf.TemplateField(r),
		ConfirmDelete: errors.Is(actionErr, discuss.ErrDeleteNotConfirmed),
		Count:         discuss.Count(store.Comments()),
	}

	node, err := store.NodeView(r.Context(), commentID)
	if err == nil {
		data.Node = node

		if actionErr != nil && node.State.Error == "" && !data.ConfirmDelete {
			data.Flash = discuss.UserMessage(actionErr, "Something went wrong, please try again")
		}
	}

	h.executeTemplate(w, r, http.StatusOK, "comment-response", data)
}

func (h *Handler) renderDeleteCommentPage(w http.ResponseWriter, r *http.Request, store *discuss.Store, commentID string) {
	node, err := store.NodeView(r.Context(), commentID)
	if err != nil {
		h.renderError(w, r, http.StatusNotFound, "Comment not found")

		return
	}

	h.renderTemplate(w, r, "delete-comment-page.gohtml", map[string]any{
		"SiteTitle": "Delete Comment",
		"Comment":   &CommentNode{PostID: store.PostID(), Node: node, CSRFField: csrf.TemplateField(r)},
	})
}

type commentAction func(ctx context.Context, store *discuss.Store, commentID string, r *http.Request) error

func (h *Handler) handleCommentAction(msg string, action commentAction) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		commentID := r.PathValue("commentId")

		if r.Method == http.MethodPost {
			err := r.ParseForm()
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to parse form", "error", err)
				http.Error(w, "Bad Request", http.StatusBadRequest)

				return
			}
		}

		store, ok := h.openCommentStore(w, r)
		if !ok {
			return
		}

		err := action(r.Context(), store, commentID, r)
		logCommentError(r.Context(), msg, commentID, err)

		h.respondNode(w, r, store, commentID, err)
	})
}

// HandleCommentNode renders one comment, used to restore a node after a
// failed swap.
func (h *Handler) HandleCommentNode() http.Handler {
	return h.handleCommentAction("failed to render comment",
		func(context.Context, *discuss.Store, string, *http.Request) error {
			return nil
		},
	)
}

func (h *Handler) HandleStartEdit() http.Handler {
	return h.AuthenticatedOnly(h.handleCommentAction("failed to start editing comment",
		func(ctx context.Context, store *discuss.Store, commentID string, _ *http.Request) error {
			return store.StartEdit(ctx, commentID)
		},
	))
}

func (h *Handler) HandleCancelEdit() http.Handler {
	return h.AuthenticatedOnly(h.handleCommentAction("failed to cancel editing comment",
		func(_ context.Context, store *discuss.Store, commentID string, _ *http.Request) error {
			return store.CancelEdit(commentID)
		},
	))
}

func (h *Handler) HandleSaveEdit() http.Handler {
	return h.AuthenticatedOnly(h.handleCommentAction("failed to save comment",
		func(ctx context.Context, store *discuss.Store, commentID string, r *http.Request) error {
			_, err := store.SaveEdit(ctx, commentID, r.FormValue("content"))

			return err
		},
	))
}

func (h *Handler) HandleStartReply() http.Handler {
	return h.AuthenticatedOnly(h.handleCommentAction("failed to open reply form",
		func(ctx context.Context, store *discuss.Store, commentID string, _ *http.Request) error {
			return store.StartReply(ctx, commentID)
		},
	))
}

func (h *Handler) HandleCancelReply() http.Handler {
	return h.AuthenticatedOnly(h.handleCommentAction("failed to close reply form",
		func(_ context.Context, store *discuss.Store, commentID string, r *http.Request) error {
			store.SetReplyDraft(commentID, r.FormValue("content"))

			return store.CancelReply(commentID)
		},
	))
}

func (h *Handler) HandleSubmitReply() http.Handler {
	return h.AuthenticatedOnly(h.handleCommentAction("failed to post reply",
		func(ctx context.Context, store *discuss.Store, commentID string, r *http.Request) error {
			_, err := store.SubmitReply(ctx, commentID, r.FormValue("content"))

			return err
		},
	))
}

func (h *Handler) HandleDeleteComment() http.Handler {
	return h.AuthenticatedOnly(h.handleCommentAction("failed to delete comment",
		func(ctx context.Context, store *discuss.Store, commentID string, r *http.Request) error {
			return store.Delete(ctx, commentID, r.FormValue("confirmed") == "true")
		},
	))
}

func (h *Handler) HandleAddComment() http.Handler {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := r.ParseForm()
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to parse form", "error", err)
			http.Error(w, "Bad Request", http.StatusBadRequest)

			return
		}

		store, ok := h.openCommentStore(w, r)
		if !ok {
			return
		}

		comment, err := store.AddComment(r.Context(), r.FormValue("content"))
		logCommentError(r.Context(), "failed to add comment", "", err)

		if !isHTMXRequest(r) {
			target := "/p/" + url.PathEscape(store.PostID()) + "#comments"
			if comment != nil {
				target = "/p/" + url.PathEscape(store.PostID()) + "#comment-" + comment.ID
			}

			http.Redirect(w, r, target, http.StatusSeeOther)

			return
		}

		h.executeTemplate(w, r, http.StatusOK, "comments-section", h.commentsSection(r, store))
	})

	return h.AuthenticatedOnly(hf)
}
