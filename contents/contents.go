package contents

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	authcontext "github.com/nasermirzaei89/folio/authentication/context"
	"github.com/nasermirzaei89/folio/authorization"
)

const ServiceName = "github.com/nasermirzaei89/folio/contents"

const (
	ActionCreatePost = "createPost"
	ActionUpdatePost = "updatePost"
	ActionDeletePost = "deletePost"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Service struct {
	api         PostAPI
	authzClient *authorization.Client
}

func NewService(api PostAPI, authzClient *authorization.Client) *Service {
	return &Service{
		api:         api,
		authzClient: authzClient,
	}
}

// ListPostsFilter narrows down the post list. Zero values match everything.
type ListPostsFilter struct {
	Tag           string
	Author        string
	Query         string
	PublishedOnly bool
}

func (f ListPostsFilter) match(post *Post, viewer string) bool {
	if !post.IsPublished && (f.PublishedOnly || !post.IsAuthor(viewer)) {
		return false
	}

	if f.Tag != "" && !post.HasTag(f.Tag) {
		return false
	}

	if f.Author != "" && !strings.EqualFold(post.Author, f.Author) {
		return false
	}

	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(post.Title), q) && !strings.Contains(strings.ToLower(post.Content), q) {
			return false
		}
	}

	return true
}

// ListPosts returns the posts matching filter, newest first. Drafts are only
// listed for their author.
func (svc *Service) ListPosts(ctx context.Context, filter ListPostsFilter) ([]*Post, error) {
	posts, err := svc.api.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	filter.Tag = strings.TrimSpace(filter.Tag)
	filter.Author = strings.TrimSpace(filter.Author)
	filter.Query = strings.TrimSpace(filter.Query)

	viewer := authcontext.GetSubject(ctx)

	result := make([]*Post, 0, len(posts))

	for _, post := range posts {
		if filter.match(post, viewer) {
			result = append(result, post)
		}
	}

	slices.SortStableFunc(result, func(a, b *Post) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return result, nil
}

// Tags returns the distinct tags of posts in order of first appearance.
func Tags(posts []*Post) []string {
	var tags []string
	for _, post := range posts {
		tags = append(tags, post.Tags...)
	}

	return NormalizeTags(tags)
}

func (svc *Service) GetPost(ctx context.Context, postID string) (*Post, error) {
	post, err := svc.api.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	if !post.IsPublished && !post.IsAuthor(authcontext.GetSubject(ctx)) {
		return nil, PostNotFoundError{ID: postID}
	}

	return post, nil
}

func normalizeInput(input PostInput) (PostInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Content = strings.TrimSpace(input.Content)
	input.Tags = NormalizeTags(input.Tags)

	err := validate.Struct(input)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			return input, ValidationError{Field: validationErrs[0].Field(), Rule: validationErrs[0].Tag()}
		}

		return input, fmt.Errorf("failed to validate post: %w", err)
	}

	return input, nil
}

func (svc *Service) CreatePost(ctx context.Context, input PostInput) (*Post, error) {
	if authcontext.GetSubject(ctx) == authcontext.Anonymous {
		return nil, ErrAuthenticationRequired
	}

	err := svc.authzClient.CheckAccess(ctx, ServiceName, "", ActionCreatePost)
	if err != nil {
		return nil, fmt.Errorf("failed to check access: %w", err)
	}

	input, err = normalizeInput(input)
	if err != nil {
		return nil, err
	}

	post, err := svc.api.CreatePost(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	return post, nil
}

// UpdatePost replaces title, content, tags and the published flag of a post
// written by the current user.
func (svc *Service) UpdatePost(ctx context.Context, postID string, input PostInput) (*Post, error) {
	post, err := svc.api.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	err = svc.authzClient.CheckAccessWithOwner(ctx, ServiceName, post.ID, post.Author, ActionUpdatePost)
	if err != nil {
		return nil, fmt.Errorf("failed to check access: %w", err)
	}

	input, err = normalizeInput(input)
	if err != nil {
		return nil, err
	}

	updated, err := svc.api.UpdatePost(ctx, postID, input)
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	return updated, nil
}

func (svc *Service) DeletePost(ctx context.Context, postID string) error {
	post, err := svc.api.GetPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to get post: %w", err)
	}

	err = svc.authzClient.CheckAccessWithOwner(ctx, ServiceName, post.ID, post.Author, ActionDeletePost)
	if err != nil {
		return fmt.Errorf("failed to check access: %w", err)
	}

	err = svc.api.DeletePost(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	return nil
}

// CanEdit reports whether the current user may change post. It is used to
// show the edit and delete controls.
func (svc *Service) CanEdit(ctx context.Context, post *Post) bool {
	return post.IsAuthor(authcontext.GetSubject(ctx)) &&
		svc.authzClient.CanIWithOwner(ctx, ServiceName, post.ID, post.Author, ActionUpdatePost)
}
