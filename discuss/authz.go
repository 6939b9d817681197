package discuss

import (
	"context"

	authcontext "github.com/nasermirzaei89/folio/authentication/context"
)

const ServiceName = "github.com/nasermirzaei89/folio/discuss"

const (
	ActionCreateComment = "createComment"
	ActionReplyComment  = "replyComment"
	ActionEditComment   = "editComment"
	ActionDeleteComment = "deleteComment"
)

// AccessChecker answers whether the subject in ctx may perform an action on
// an object owned by owner. *authorization.Client implements it.
type AccessChecker interface {
	CanIWithOwner(ctx context.Context, domain, object, owner, action string) bool
}

func currentUser(ctx context.Context) (string, bool) {
	sub := authcontext.GetSubject(ctx)
	if sub == authcontext.Anonymous {
		return "", false
	}

	return sub, true
}

func (s *Store) canEdit(ctx context.Context, comment *Comment) bool {
	username, ok := currentUser(ctx)
	if !ok || !comment.IsAuthor(username) {
		return false
	}

	return s.access.CanIWithOwner(ctx, ServiceName, comment.ID, comment.Author, ActionEditComment)
}

func (s *Store) canDelete(ctx context.Context, comment *Comment) bool {
	username, ok := currentUser(ctx)
	if !ok || !comment.IsAuthor(username) {
		return false
	}

	return s.access.CanIWithOwner(ctx, ServiceName, comment.ID, comment.Author, ActionDeleteComment)
}

func (s *Store) canReply(ctx context.Context, comment *Comment, depth int) bool {
	if depth >= MaxDepth {
		return false
	}

	if _, ok := currentUser(ctx); !ok {
		return false
	}

	return s.access.CanIWithOwner(ctx, ServiceName, comment.ID, comment.Author, ActionReplyComment)
}

func (s *Store) canComment(ctx context.Context) bool {
	if _, ok := currentUser(ctx); !ok {
		return false
	}

	return s.access.CanIWithOwner(ctx, ServiceName, s.postID, "", ActionCreateComment)
}
