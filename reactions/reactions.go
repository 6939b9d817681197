package reactions

import (
	"context"
	"errors"
	"fmt"

	authcontext "github.com/nasermirzaei89/folio/authentication/context"
	"github.com/nasermirzaei89/folio/authorization"
	"github.com/nasermirzaei89/folio/contents"
)

const ServiceName = "github.com/nasermirzaei89/folio/reactions"

const ActionLikePost = "likePost"

var ErrAuthenticationRequired = errors.New("authentication required")

// LikeAPI is the remote like store of posts.
type LikeAPI interface {
	LikePost(ctx context.Context, postID string) (err error)
	UnlikePost(ctx context.Context, postID string) (err error)
}

type Service struct {
	api         LikeAPI
	authzClient *authorization.Client
}

func NewService(api LikeAPI, authzClient *authorization.Client) *Service {
	return &Service{
		api:         api,
		authzClient: authzClient,
	}
}

// ToggleLike likes post, or unlikes it when the current user already does.
// The returned post carries the new like count and flag; post itself is not
// modified. On failure the returned error is set and post is left as it was.
func (svc *Service) ToggleLike(ctx context.Context, post *contents.Post) (*contents.Post, error) {
	if authcontext.GetSubject(ctx) == authcontext.Anonymous {
		return nil, ErrAuthenticationRequired
	}

	err := svc.authzClient.CheckAccessWithOwner(ctx, ServiceName, post.ID, post.Author, ActionLikePost)
	if err != nil {
		return nil, fmt.Errorf("failed to check access: %w", err)
	}

	updated := *post

	if post.IsLiked {
		err = svc.api.UnlikePost(ctx, post.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to unlike post: %w", err)
		}

		updated.IsLiked = false
		updated.LikesCount = max(post.LikesCount-1, 0)

		return &updated, nil
	}

	err = svc.api.LikePost(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to like post: %w", err)
	}

	updated.IsLiked = true
	updated.LikesCount = post.LikesCount + 1

	return &updated, nil
}
