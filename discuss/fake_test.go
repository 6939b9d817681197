package discuss_test

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/nasermirzaei89/folio/discuss"
)

type fakeAPI struct {
	mu       sync.Mutex
	comments []*discuss.Comment
	nextID   int
	calls    []string

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	// when set, the matching call waits for it to be closed or for its
	// context to end.
	createBlock chan struct{}
	updateBlock chan struct{}

	listDelay time.Duration
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calls...)
}

func wait(ctx context.Context, block chan struct{}) error {
	if block == nil {
		return nil
	}

	select {
	case <-block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeAPI) ListComments(_ context.Context, postID string) ([]*discuss.Comment, error) {
	f.record("list " + postID)

	time.Sleep(f.listDelay)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}

	return append([]*discuss.Comment(nil), f.comments...), nil
}

func (f *fakeAPI) CreateComment(ctx context.Context, req discuss.CreateCommentRequest) (*discuss.Comment, error) {
	f.record("create " + req.ParentID)

	err := wait(ctx, f.createBlock)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}

	f.nextID++

	return &discuss.Comment{
		ID:      "new-" + strconv.Itoa(f.nextID),
		Author:  "alice",
		Content: req.Content,
	}, nil
}

func (f *fakeAPI) UpdateComment(ctx context.Context, commentID, content string) (*discuss.Comment, error) {
	f.record("update " + commentID)

	err := wait(ctx, f.updateBlock)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return nil, f.updateErr
	}

	// the API answers without replies
	return &discuss.Comment{ID: commentID, Content: content}, nil
}

func (f *fakeAPI) DeleteComment(_ context.Context, commentID string) error {
	f.record("delete " + commentID)

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.deleteErr
}

type allowAll struct{}

func (allowAll) CanIWithOwner(context.Context, string, string, string, string) bool {
	return true
}

type serverError struct {
	message string
}

func (err serverError) Error() string {
	return "server error: " + err.message
}

func (err serverError) UserMessage() string {
	return err.message
}
