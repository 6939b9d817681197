package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nasermirzaei89/folio/discuss"
)

var _ discuss.CommentAPI = (*Client)(nil)

func postCommentsPath(postID string) string {
	return "posts/" + url.PathEscape(postID) + "/comments/"
}

func commentPath(commentID string) string {
	return "comments/" + url.PathEscape(commentID) + "/"
}

// toComment converts p without its replies.
func (p commentPayload) toComment(postID, parentID string) *discuss.Comment {
	if p.Post != "" {
		postID = string(p.Post)
	}

	switch {
	case p.ParentID != "":
		parentID = string(p.ParentID)
	case p.Parent != "":
		parentID = string(p.Parent)
	}

	author := string(p.Author)
	if author == "" {
		author = string(p.User)
	}

	return &discuss.Comment{
		ID:        string(p.ID),
		PostID:    postID,
		ParentID:  parentID,
		Author:    author,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
	}
}

// flattenComments turns nested payloads into a flat list where nesting is
// expressed by ParentID. A comment listed more than once is kept once.
func flattenComments(payloads []commentPayload, postID string) []*discuss.Comment {
	var (
		result []*discuss.Comment
		seen   = make(map[string]struct{})
	)

	var visit func(items []commentPayload, parentID string)

	visit = func(items []commentPayload, parentID string) {
		for _, item := range items {
			comment := item.toComment(postID, parentID)

			if _, ok := seen[comment.ID]; !ok {
				seen[comment.ID] = struct{}{}

				result = append(result, comment)
			}

			visit(item.Replies, comment.ID)
		}
	}

	visit(payloads, "")

	return result
}

func (c *Client) ListComments(ctx context.Context, postID string) ([]*discuss.Comment, error) {
	var payloads []commentPayload

	err := c.do(ctx, http.MethodGet, postCommentsPath(postID), nil, &payloads)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return flattenComments(payloads, postID), nil
}

type createCommentBody struct {
	Content  string `json:"content"`
	ParentID any    `json:"parent_id,omitempty"`
}

func (c *Client) CreateComment(ctx context.Context, req discuss.CreateCommentRequest) (*discuss.Comment, error) {
	body := createCommentBody{Content: req.Content}
	if req.ParentID != "" {
		body.ParentID = parseID(req.ParentID)
	}

	var payload commentPayload

	err := c.do(ctx, http.MethodPost, postCommentsPath(req.PostID), body, &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	return payload.toComment(req.PostID, req.ParentID), nil
}

type updateCommentBody struct {
	Content string `json:"content"`
}

func (c *Client) UpdateComment(ctx context.Context, commentID, content string) (*discuss.Comment, error) {
	var payload commentPayload

	err := c.do(ctx, http.MethodPut, commentPath(commentID), updateCommentBody{Content: content}, &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	comment := payload.toComment("", "")
	if comment.ID == "" {
		comment.ID = commentID
	}

	return comment, nil
}

func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	err := c.do(ctx, http.MethodDelete, commentPath(commentID), nil, nil)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	return nil
}
