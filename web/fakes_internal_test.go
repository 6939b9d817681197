package web

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/gorilla/sessions"
	"github.com/nasermirzaei89/folio/authentication"
	authcontext "github.com/nasermirzaei89/folio/authentication/context"
	"github.com/nasermirzaei89/folio/authorization"
	"github.com/nasermirzaei89/folio/authorization/casbin"
	"github.com/nasermirzaei89/folio/contents"
	"github.com/nasermirzaei89/folio/discuss"
	"github.com/nasermirzaei89/folio/reactions"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const testPolicy = `p, system:authenticated, github.com/nasermirzaei89/folio/discuss, *, createComment
p, system:authenticated, github.com/nasermirzaei89/folio/discuss, *, replyComment
p, system:owner, github.com/nasermirzaei89/folio/discuss, *, editComment
p, system:owner, github.com/nasermirzaei89/folio/discuss, *, deleteComment
p, system:authenticated, github.com/nasermirzaei89/folio/contents, -, createPost
p, system:owner, github.com/nasermirzaei89/folio/contents, *, updatePost
p, system:owner, github.com/nasermirzaei89/folio/contents, *, deletePost
p, system:authenticated, github.com/nasermirzaei89/folio/reactions, *, likePost
g, alice, system:authenticated
g, bob, system:authenticated
`

type fakeCommentAPI struct {
	mu        sync.Mutex
	comments  []*discuss.Comment
	nextID    int
	updateErr error
	deleted   []string
}

func (f *fakeCommentAPI) ListComments(_ context.Context, postID string) ([]*discuss.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]*discuss.Comment, 0, len(f.comments))

	for _, c := range f.comments {
		if c.PostID == postID {
			clone := *c
			result = append(result, &clone)
		}
	}

	return result, nil
}

func (f *fakeCommentAPI) CreateComment(ctx context.Context, req discuss.CreateCommentRequest) (*discuss.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++

	c := &discuss.Comment{
		ID:        "n" + strconv.Itoa(f.nextID),
		PostID:    req.PostID,
		ParentID:  req.ParentID,
		Author:    authcontext.GetSubject(ctx),
		Content:   req.Content,
		CreatedAt: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
	}
	f.comments = append(f.comments, c)

	clone := *c

	return &clone, nil
}

func (f *fakeCommentAPI) UpdateComment(_ context.Context, commentID, content string) (*discuss.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return nil, f.updateErr
	}

	for _, c := range f.comments {
		if c.ID == commentID {
			c.Content = content
			clone := *c

			return &clone, nil
		}
	}

	return nil, discuss.CommentNotFoundError{ID: commentID}
}

func (f *fakeCommentAPI) DeleteComment(_ context.Context, commentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, commentID)

	return nil
}

type fakePostAPI struct {
	mu    sync.Mutex
	posts map[string]*contents.Post
}

func (f *fakePostAPI) ListPosts(context.Context) ([]*contents.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]*contents.Post, 0, len(f.posts))
	for _, p := range f.posts {
		clone := *p
		result = append(result, &clone)
	}

	return result, nil
}

func (f *fakePostAPI) GetPost(_ context.Context, postID string) (*contents.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.posts[postID]
	if !ok {
		return nil, contents.PostNotFoundError{ID: postID}
	}

	clone := *p

	return &clone, nil
}

func (f *fakePostAPI) CreatePost(ctx context.Context, input contents.PostInput) (*contents.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := &contents.Post{
		ID:          "p" + strconv.Itoa(len(f.posts)+1),
		Title:       input.Title,
		Content:     input.Content,
		Tags:        input.Tags,
		IsPublished: input.IsPublished,
		Author:      authcontext.GetSubject(ctx),
	}
	f.posts[p.ID] = p

	return p, nil
}

func (f *fakePostAPI) UpdatePost(_ context.Context, postID string, input contents.PostInput) (*contents.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.posts[postID]
	if !ok {
		return nil, contents.PostNotFoundError{ID: postID}
	}

	p.Title = input.Title
	p.Content = input.Content
	p.Tags = input.Tags
	p.IsPublished = input.IsPublished

	return p, nil
}

func (f *fakePostAPI) DeletePost(_ context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.posts, postID)

	return nil
}

type fakeLikeAPI struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeLikeAPI) LikePost(_ context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, "like "+postID)

	return nil
}

func (f *fakeLikeAPI) UnlikePost(_ context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, "unlike "+postID)

	return nil
}

type fakeAuthAPI struct{}

func (fakeAuthAPI) Login(context.Context, string, string) (*authentication.Tokens, error) {
	return nil, authentication.ErrInvalidCredentials
}

func (fakeAuthAPI) Register(context.Context, authentication.RegisterRequest) (*authentication.Tokens, error) {
	return nil, authentication.ErrInvalidCredentials
}

type noSessions struct{}

func (noSessions) Insert(context.Context, *authentication.Session) error { return nil }

func (noSessions) Find(_ context.Context, id string) (*authentication.Session, error) {
	return nil, authentication.SessionNotFoundError{ID: id}
}

func (noSessions) Delete(_ context.Context, id string) error {
	return authentication.SessionNotFoundError{ID: id}
}

func (noSessions) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

type testEnv struct {
	handler  *Handler
	comments *fakeCommentAPI
	posts    *fakePostAPI
	likes    *fakeLikeAPI
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	provider, err := casbin.NewAuthorizationProvider(stringadapter.NewAdapter(testPolicy))
	require.NoError(t, err)

	authzSvc, err := authorization.NewService(provider)
	require.NoError(t, err)

	authzClient := authorization.NewClient(authzSvc)

	env := &testEnv{
		comments: &fakeCommentAPI{comments: []*discuss.Comment{
			{ID: "a", PostID: "p1", Author: "alice", Content: "first"},
			{ID: "b", PostID: "p1", ParentID: "a", Author: "bob", Content: "reply to first"},
			{ID: "c", PostID: "p1", Author: "alice", Content: "second"},
		}},
		posts: &fakePostAPI{posts: map[string]*contents.Post{
			"p1": {
				ID:          "p1",
				Title:       "Hello",
				Content:     "**bold** <script>alert(1)</script>",
				Author:      "alice",
				Tags:        []string{"go"},
				IsPublished: true,
				LikesCount:  2,
				CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		}},
		likes: &fakeLikeAPI{},
	}

	stores, err := discuss.NewStores(env.comments, authzClient, time.Minute)
	require.NoError(t, err)
	t.Cleanup(stores.Close)

	h, err := NewHandler(
		authentication.NewService(fakeAuthAPI{}, noSessions{}, authzClient),
		contents.NewService(env.posts, authzClient),
		reactions.NewService(env.likes, authzClient),
		stores,
		sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef")),
		"folio-test",
		[]byte("0123456789abcdef0123456789abcdef"),
		nil,
		rate.Every(time.Hour),
	)
	require.NoError(t, err)

	env.handler = h

	return env
}
