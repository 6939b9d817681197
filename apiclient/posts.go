package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nasermirzaei89/folio/contents"
)

var _ contents.PostAPI = (*Client)(nil)

const postsPath = "api/posts/"

func postPath(postID string) string {
	return postsPath + url.PathEscape(postID) + "/"
}

func (p postPayload) toPost() *contents.Post {
	tags := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		tags = append(tags, string(t))
	}

	return &contents.Post{
		ID:            string(p.ID),
		Title:         p.Title,
		Content:       p.Content,
		Author:        string(p.Author),
		Tags:          tags,
		IsPublished:   p.IsPublished,
		LikesCount:    p.LikesCount,
		CommentsCount: p.CommentsCount,
		IsLiked:       p.IsLiked,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type postBody struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	IsPublished bool     `json:"is_published"`
	Tags        []string `json:"tags"`
}

func newPostBody(input contents.PostInput) postBody {
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}

	return postBody{
		Title:       input.Title,
		Content:     input.Content,
		IsPublished: input.IsPublished,
		Tags:        tags,
	}
}

func (c *Client) ListPosts(ctx context.Context) ([]*contents.Post, error) {
	var payloads []postPayload

	err := c.do(ctx, http.MethodGet, postsPath, nil, &payloads)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	posts := make([]*contents.Post, 0, len(payloads))
	for _, payload := range payloads {
		posts = append(posts, payload.toPost())
	}

	return posts, nil
}

func (c *Client) GetPost(ctx context.Context, postID string) (*contents.Post, error) {
	var payload postPayload

	err := c.do(ctx, http.MethodGet, postPath(postID), nil, &payload)
	if err != nil {
		if IsNotFound(err) {
			return nil, contents.PostNotFoundError{ID: postID}
		}

		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return payload.toPost(), nil
}

func (c *Client) CreatePost(ctx context.Context, input contents.PostInput) (*contents.Post, error) {
	var payload postPayload

	err := c.do(ctx, http.MethodPost, postsPath, newPostBody(input), &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	return payload.toPost(), nil
}

func (c *Client) UpdatePost(ctx context.Context, postID string, input contents.PostInput) (*contents.Post, error) {
	var payload postPayload

	err := c.do(ctx, http.MethodPut, postPath(postID), newPostBody(input), &payload)
	if err != nil {
		if IsNotFound(err) {
			return nil, contents.PostNotFoundError{ID: postID}
		}

		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	return payload.toPost(), nil
}

func (c *Client) DeletePost(ctx context.Context, postID string) error {
	err := c.do(ctx, http.MethodDelete, postPath(postID), nil, nil)
	if err != nil {
		if IsNotFound(err) {
			return contents.PostNotFoundError{ID: postID}
		}

		return fmt.Errorf("failed to delete post: %w", err)
	}

	return nil
}
