package discuss

import (
	"context"
	"fmt"
	"time"
)

// MaxDepth is the deepest level at which a comment still accepts replies.
const MaxDepth = 5

// Comment is one node of a post's comment tree. A Comment is never modified
// after it has been handed out by a Store; changes produce new values.
type Comment struct {
	ID        string
	PostID    string
	ParentID  string
	Author    string
	Content   string
	CreatedAt time.Time
	Replies   []*Comment
}

// IsAuthor reports whether username wrote the comment.
func (c *Comment) IsAuthor(username string) bool {
	return username != "" && c.Author == username
}

// withContent returns a copy of c carrying the content of updated. Replies and
// the immutable fields stay as they are in c.
func (c *Comment) withContent(updated *Comment) *Comment {
	clone := *c
	clone.Content = updated.Content

	return &clone
}

// withReplies returns a copy of c with the given replies.
func (c *Comment) withReplies(replies []*Comment) *Comment {
	clone := *c
	clone.Replies = replies

	return &clone
}

// CreateCommentRequest asks for a new comment on PostID. An empty ParentID
// makes it a top level comment.
type CreateCommentRequest struct {
	PostID   string
	ParentID string
	Content  string
}

// CommentAPI is the remote comment store.
type CommentAPI interface {
	ListComments(ctx context.Context, postID string) (comments []*Comment, err error)
	CreateComment(ctx context.Context, req CreateCommentRequest) (comment *Comment, err error)
	UpdateComment(ctx context.Context, commentID string, content string) (comment *Comment, err error)
	DeleteComment(ctx context.Context, commentID string) (err error)
}

type CommentNotFoundError struct {
	ID string
}

func (err CommentNotFoundError) Error() string {
	return fmt.Sprintf("comment with id %q not found", err.ID)
}
