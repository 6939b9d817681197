package discuss

import (
	"context"
	"errors"
	"fmt"
)

// ErrDeleteNotConfirmed is returned by Store.Delete when the user has not confirmed.
var ErrDeleteNotConfirmed = errors.New("comment deletion was not confirmed")

var errEmptyResponse = errors.New("api returned no comment")

// ValidationError rejects content before any request is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (err ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", err.Field, err.Reason)
}

// AuthorizationError is returned when the current user may not act on a comment.
type AuthorizationError struct {
	Username  string
	CommentID string
	Action    string
}

func (err AuthorizationError) Error() string {
	if err.CommentID == "" {
		return fmt.Sprintf("user %q is not allowed to %s", err.Username, err.Action)
	}

	return fmt.Sprintf("user %q is not allowed to %s on comment %q", err.Username, err.Action, err.CommentID)
}

// BusyError is returned while a request on the same comment, or on the post
// level form when CommentID is empty, is still in flight.
type BusyError struct {
	CommentID string
}

func (err BusyError) Error() string {
	if err.CommentID == "" {
		return "another comment request is already in progress"
	}

	return fmt.Sprintf("comment %q has a request in progress", err.CommentID)
}

// UserMessager is implemented by errors that carry a message meant for the
// person who triggered the request.
type UserMessager interface {
	UserMessage() string
}

const timeoutMessage = "Request timed out, please try again"

// UserMessage turns err into the text shown next to the comment the action
// was made on. fallback is used when err has nothing better to offer.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutMessage
	}

	var messager UserMessager
	if errors.As(err, &messager) {
		msg := messager.UserMessage()
		if msg != "" {
			return msg
		}
	}

	var validationErr ValidationError
	if errors.As(err, &validationErr) {
		return "Comment can not be empty"
	}

	var authzErr AuthorizationError
	if errors.As(err, &authzErr) {
		return "You are not allowed to do that"
	}

	var busyErr BusyError
	if errors.As(err, &busyErr) {
		return "Please wait for the previous request to finish"
	}

	return fallback
}
