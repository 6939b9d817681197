package contents

import (
	"context"
	"slices"
	"strings"
	"time"
)

type Post struct {
	ID            string
	Title         string
	Content       string
	Author        string
	Tags          []string
	IsPublished   bool
	LikesCount    int
	CommentsCount int
	IsLiked       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsAuthor reports whether username wrote the post.
func (p *Post) IsAuthor(username string) bool {
	return username != "" && p.Author == username
}

// HasTag reports whether the post is tagged with tag, ignoring case.
func (p *Post) HasTag(tag string) bool {
	return slices.ContainsFunc(p.Tags, func(t string) bool {
		return strings.EqualFold(t, tag)
	})
}

type PostInput struct {
	Title       string   `validate:"required,max=200"`
	Content     string   `validate:"required"`
	Tags        []string `validate:"max=20,dive,required,max=50"`
	IsPublished bool
}

// PostAPI is the remote post store.
type PostAPI interface {
	ListPosts(ctx context.Context) (posts []*Post, err error)
	GetPost(ctx context.Context, postID string) (post *Post, err error)
	CreatePost(ctx context.Context, input PostInput) (post *Post, err error)
	UpdatePost(ctx context.Context, postID string, input PostInput) (post *Post, err error)
	DeletePost(ctx context.Context, postID string) (err error)
}

// NormalizeTags trims tags and drops empty and repeated ones, keeping the
// first spelling of each tag.
func NormalizeTags(tags []string) []string {
	result := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}

		if slices.ContainsFunc(result, func(t string) bool { return strings.EqualFold(t, tag) }) {
			continue
		}

		result = append(result, tag)
	}

	return result
}

// ParseTags splits a comma separated tag list as typed in the post form.
func ParseTags(s string) []string {
	return NormalizeTags(strings.Split(s, ","))
}
