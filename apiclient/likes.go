package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nasermirzaei89/folio/reactions"
)

var _ reactions.LikeAPI = (*Client)(nil)

func likePath(postID string) string {
	return "posts/" + url.PathEscape(postID) + "/like/"
}

func (c *Client) LikePost(ctx context.Context, postID string) error {
	err := c.do(ctx, http.MethodPost, likePath(postID), nil, nil)
	if err != nil {
		return fmt.Errorf("failed to like post: %w", err)
	}

	return nil
}

func (c *Client) UnlikePost(ctx context.Context, postID string) error {
	err := c.do(ctx, http.MethodDelete, likePath(postID), nil, nil)
	if err != nil {
		return fmt.Errorf("failed to unlike post: %w", err)
	}

	return nil
}
