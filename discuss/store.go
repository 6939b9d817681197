package discuss

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const DefaultRequestTimeout = 15 * time.Second

const (
	msgUpdateFailed  = "Failed to update comment"
	msgDeleteFailed  = "Failed to delete comment"
	msgReplyFailed   = "Failed to post reply"
	msgCommentFailed = "Failed to post comment"
)

// Store holds the comment tree of one post together with the interaction
// state of every comment. It is the only place the tree changes: each change
// swaps in a new tree value built by Replace, Remove or AppendReply.
//
// The lock is never held while a request to the CommentAPI is in flight.
type Store struct {
	mu       sync.Mutex
	postID   string
	api      CommentAPI
	access   AccessChecker
	timeout  time.Duration
	comments []*Comment
	states   map[string]*NodeState
	post     PostState
}

type StoreOption func(s *Store)

// WithRequestTimeout bounds every request the store makes to the API.
func WithRequestTimeout(timeout time.Duration) StoreOption {
	return func(s *Store) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func NewStore(postID string, comments []*Comment, api CommentAPI, access AccessChecker, opts ...StoreOption) *Store {
	s := &Store{
		postID:   postID,
		api:      api,
		access:   access,
		timeout:  DefaultRequestTimeout,
		comments: BuildTree(comments),
		states:   make(map[string]*NodeState),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// LoadStore fetches the comments of postID and returns a store holding them.
func LoadStore(ctx context.Context, postID string, api CommentAPI, access AccessChecker, opts ...StoreOption) (*Store, error) {
	s := NewStore(postID, nil, api, access, opts...)

	err := s.Reload(ctx)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) PostID() string {
	return s.postID
}

// Reload replaces the tree with the API's current version. State of comments
// that no longer exist is dropped.
func (s *Store) Reload(ctx context.Context) error {
	reqCtx, cancel := s.requestContext(ctx)
	defer cancel()

	comments, err := s.api.ListComments(reqCtx, s.postID)
	if err != nil {
		return fmt.Errorf("failed to list comments: %w", err)
	}

	tree := BuildTree(comments)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.comments = tree

	for id := range s.states {
		if _, _, ok := Find(tree, id); !ok {
			delete(s.states, id)
		}
	}

	return nil
}

// Comments returns the current tree. The returned value must not be modified.
func (s *Store) Comments() []*Comment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.comments
}

func (s *Store) State(commentID string) NodeState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[commentID]
	if !ok {
		return NodeState{}
	}

	return *st
}

func (s *Store) PostState() PostState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.post
}

// View renders the tree for the user in ctx.
func (s *Store) View(ctx context.Context) *TreeView {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &TreeView{
		PostID:     s.postID,
		Comments:   s.viewLocked(ctx, s.comments, 0),
		Count:      Count(s.comments),
		CanComment: s.canComment(ctx),
		Post:       s.post,
	}
}

// NodeView renders a single comment and its replies.
func (s *Store) NodeView(ctx context.Context, commentID string) (*NodeView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, depth, ok := Find(s.comments, commentID)
	if !ok {
		return nil, CommentNotFoundError{ID: commentID}
	}

	return s.nodeViewLocked(ctx, comment, depth), nil
}

func (s *Store) viewLocked(ctx context.Context, comments []*Comment, depth int) []*NodeView {
	views := make([]*NodeView, 0, len(comments))

	for _, comment := range comments {
		views = append(views, s.nodeViewLocked(ctx, comment, depth))
	}

	return views
}

func (s *Store) nodeViewLocked(ctx context.Context, comment *Comment, depth int) *NodeView {
	var state NodeState
	if st, ok := s.states[comment.ID]; ok {
		state = *st
	}

	return &NodeView{
		Comment:   comment,
		Depth:     depth,
		State:     state,
		CanEdit:   s.canEdit(ctx, comment),
		CanDelete: s.canDelete(ctx, comment),
		CanReply:  s.canReply(ctx, comment, depth),
		Replies:   s.viewLocked(ctx, comment.Replies, depth+1),
	}
}

func (s *Store) stateLocked(commentID string) *NodeState {
	st, ok := s.states[commentID]
	if !ok {
		st = &NodeState{}
		s.states[commentID] = st
	}

	return st
}

// requestContext detaches the request from ctx cancellation so a request
// always runs to completion or to the store's timeout.
func (s *Store) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

// StartEdit switches the comment to editing with its current content as draft.
func (s *Store) StartEdit(ctx context.Context, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.startEditLocked(ctx, commentID)
}

func (s *Store) startEditLocked(ctx context.Context, commentID string) error {
	comment, _, ok := Find(s.comments, commentID)
	if !ok {
		return CommentNotFoundError{ID: commentID}
	}

	if !s.canEdit(ctx, comment) {
		return s.denied(ctx, commentID, ActionEditComment)
	}

	st := s.stateLocked(commentID)
	if st.Busy {
		return BusyError{CommentID: commentID}
	}

	st.Editing = true
	st.EditDraft = comment.Content
	st.Error = ""

	return nil
}

// CancelEdit leaves editing mode without saving.
func (s *Store) CancelEdit(commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cancelEditLocked(commentID)
}

func (s *Store) cancelEditLocked(commentID string) error {
	if _, _, ok := Find(s.comments, commentID); !ok {
		return CommentNotFoundError{ID: commentID}
	}

	st := s.stateLocked(commentID)
	if st.Busy {
		return BusyError{CommentID: commentID}
	}

	st.Editing = false
	st.Error = ""

	return nil
}

// ToggleEdit starts editing the comment, or cancels it when already editing.
func (s *Store) ToggleEdit(ctx context.Context, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[commentID]; ok && st.Editing {
		return s.cancelEditLocked(commentID)
	}

	return s.startEditLocked(ctx, commentID)
}

func (s *Store) SetEditDraft(commentID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateLocked(commentID).EditDraft = content
}

// SaveEdit sends the new content of a comment to the API. The comment keeps
// its replies; only its content changes.
func (s *Store) SaveEdit(ctx context.Context, commentID, content string) (*Comment, error) {
	s.mu.Lock()

	comment, _, ok := Find(s.comments, commentID)
	if !ok {
		s.mu.Unlock()

		return nil, CommentNotFoundError{ID: commentID}
	}

	if !s.canEdit(ctx, comment) {
		err := s.denied(ctx, commentID, ActionEditComment)
		s.stateLocked(commentID).Error = UserMessage(err, msgUpdateFailed)
		s.mu.Unlock()

		return nil, err
	}

	st := s.stateLocked(commentID)
	if st.Busy {
		s.mu.Unlock()

		return nil, BusyError{CommentID: commentID}
	}

	st.Editing = true
	st.EditDraft = content

	if strings.TrimSpace(content) == "" {
		err := ValidationError{Field: "content", Reason: "must not be empty"}
		st.Error = UserMessage(err, msgUpdateFailed)
		s.mu.Unlock()

		return nil, err
	}

	st.Busy = true
	st.Error = ""
	s.mu.Unlock()

	reqCtx, cancel := s.requestContext(ctx)
	defer cancel()

	updated, err := s.api.UpdateComment(reqCtx, commentID, content)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, tracked := s.states[commentID]
	if tracked {
		st.Busy = false
	}

	if err != nil {
		if tracked {
			st.Error = UserMessage(err, msgUpdateFailed)
		}

		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	current, _, ok := Find(s.comments, commentID)
	if !ok {
		slog.DebugContext(ctx, "dropping update of removed comment", "commentId", commentID)

		return nil, CommentNotFoundError{ID: commentID}
	}

	if updated == nil {
		updated = &Comment{ID: commentID, Content: content}
	}

	next := current.withContent(updated)
	s.comments, _ = Replace(s.comments, next)

	if tracked {
		st.Editing = false
		st.EditDraft = next.Content
		st.Error = ""
	}

	return next, nil
}

// Delete removes a comment and its replies once the API confirms it. The
// caller must have asked the user for confirmation.
func (s *Store) Delete(ctx context.Context, commentID string, confirmed bool) error {
	s.mu.Lock()

	comment, _, ok := Find(s.comments, commentID)
	if !ok {
		s.mu.Unlock()

		return CommentNotFoundError{ID: commentID}
	}

	if !s.canDelete(ctx, comment) {
		err := s.denied(ctx, commentID, ActionDeleteComment)
		s.stateLocked(commentID).Error = UserMessage(err, msgDeleteFailed)
		s.mu.Unlock()

		return err
	}

	if !confirmed {
		s.mu.Unlock()

		return ErrDeleteNotConfirmed
	}

	st := s.stateLocked(commentID)
	if st.Busy {
		s.mu.Unlock()

		return BusyError{CommentID: commentID}
	}

	st.Busy = true
	st.Error = ""
	s.mu.Unlock()

	reqCtx, cancel := s.requestContext(ctx)
	defer cancel()

	err := s.api.DeleteComment(reqCtx, commentID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if st, tracked := s.states[commentID]; tracked {
			st.Busy = false
			st.Error = UserMessage(err, msgDeleteFailed)
		}

		return fmt.Errorf("failed to delete comment: %w", err)
	}

	current, _, ok := Find(s.comments, commentID)
	if !ok {
		return nil
	}

	Walk([]*Comment{current}, func(c *Comment, _ int) bool {
		delete(s.states, c.ID)

		return true
	})

	s.comments, _ = Remove(s.comments, commentID)

	return nil
}

// StartReply opens the reply form of a comment.
func (s *Store) StartReply(ctx context.Context, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.startReplyLocked(ctx, commentID)
}

func (s *Store) startReplyLocked(ctx context.Context, commentID string) error {
	comment, depth, ok := Find(s.comments, commentID)
	if !ok {
		return CommentNotFoundError{ID: commentID}
	}

	if !s.canReply(ctx, comment, depth) {
		return s.denied(ctx, commentID, ActionReplyComment)
	}

	st := s.stateLocked(commentID)
	if st.Busy {
		return BusyError{CommentID: commentID}
	}

	st.Replying = true
	st.Error = ""

	return nil
}

// CancelReply collapses the reply form. The draft is kept.
func (s *Store) CancelReply(commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cancelReplyLocked(commentID)
}

func (s *Store) cancelReplyLocked(commentID string) error {
	if _, _, ok := Find(s.comments, commentID); !ok {
		return CommentNotFoundError{ID: commentID}
	}

	st := s.stateLocked(commentID)
	if st.Busy {
		return BusyError{CommentID: commentID}
	}

	st.Replying = false
	st.Error = ""

	return nil
}

// ToggleReply opens the reply form of the comment, or collapses it when open.
func (s *Store) ToggleReply(ctx context.Context, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[commentID]; ok && st.Replying {
		return s.cancelReplyLocked(commentID)
	}

	return s.startReplyLocked(ctx, commentID)
}

func (s *Store) SetReplyDraft(commentID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateLocked(commentID).ReplyDraft = content
}

// SubmitReply posts content as a reply to commentID and appends the created
// comment to its replies.
func (s *Store) SubmitReply(ctx context.Context, commentID, content string) (*Comment, error) {
	s.mu.Lock()

	comment, depth, ok := Find(s.comments, commentID)
	if !ok {
		s.mu.Unlock()

		return nil, CommentNotFoundError{ID: commentID}
	}

	if !s.canReply(ctx, comment, depth) {
		err := s.denied(ctx, commentID, ActionReplyComment)
		s.stateLocked(commentID).Error = UserMessage(err, msgReplyFailed)
		s.mu.Unlock()

		return nil, err
	}

	st := s.stateLocked(commentID)
	if st.Busy {
		s.mu.Unlock()

		return nil, BusyError{CommentID: commentID}
	}

	st.Replying = true
	st.ReplyDraft = content

	if strings.TrimSpace(content) == "" {
		err := ValidationError{Field: "content", Reason: "must not be empty"}
		st.Error = UserMessage(err, msgReplyFailed)
		s.mu.Unlock()

		return nil, err
	}

	st.Busy = true
	st.Error = ""
	s.mu.Unlock()

	reqCtx, cancel := s.requestContext(ctx)
	defer cancel()

	created, err := s.api.CreateComment(reqCtx, CreateCommentRequest{
		PostID:   s.postID,
		ParentID: commentID,
		Content:  content,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	st, tracked := s.states[commentID]
	if tracked {
		st.Busy = false
	}

	if err == nil && created == nil {
		err = errEmptyResponse
	}

	if err != nil {
		if tracked {
			st.Error = UserMessage(err, msgReplyFailed)
		}

		return nil, fmt.Errorf("failed to create reply: %w", err)
	}

	reply := *created
	reply.PostID = s.postID
	reply.ParentID = commentID

	tree, ok := AppendReply(s.comments, commentID, &reply)
	if !ok {
		slog.DebugContext(ctx, "dropping reply to removed comment", "commentId", commentID)

		return nil, CommentNotFoundError{ID: commentID}
	}

	s.comments = tree

	if tracked {
		st.Replying = false
		st.ReplyDraft = ""
		st.Error = ""
	}

	return &reply, nil
}

func (s *Store) SetCommentDraft(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.post.Draft = content
}

// AddComment posts a top level comment on the post.
func (s *Store) AddComment(ctx context.Context, content string) (*Comment, error) {
	s.mu.Lock()

	if !s.canComment(ctx) {
		err := s.denied(ctx, "", ActionCreateComment)
		s.post.Error = UserMessage(err, msgCommentFailed)
		s.mu.Unlock()

		return nil, err
	}

	if s.post.Busy {
		s.mu.Unlock()

		return nil, BusyError{}
	}

	s.post.Draft = content

	if strings.TrimSpace(content) == "" {
		err := ValidationError{Field: "content", Reason: "must not be empty"}
		s.post.Error = UserMessage(err, msgCommentFailed)
		s.mu.Unlock()

		return nil, err
	}

	s.post.Busy = true
	s.post.Error = ""
	s.mu.Unlock()

	reqCtx, cancel := s.requestContext(ctx)
	defer cancel()

	created, err := s.api.CreateComment(reqCtx, CreateCommentRequest{
		PostID:  s.postID,
		Content: content,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.post.Busy = false

	if err == nil && created == nil {
		err = errEmptyResponse
	}

	if err != nil {
		s.post.Error = UserMessage(err, msgCommentFailed)

		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	comment := *created
	comment.PostID = s.postID
	comment.ParentID = ""

	s.comments = AppendRoot(s.comments, &comment)
	s.post.Draft = ""
	s.post.Error = ""

	return &comment, nil
}

func (s *Store) denied(ctx context.Context, commentID, action string) AuthorizationError {
	username, _ := currentUser(ctx)

	return AuthorizationError{Username: username, CommentID: commentID, Action: action}
}
