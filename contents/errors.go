package contents

import (
	"errors"
	"fmt"
)

var ErrAuthenticationRequired = errors.New("authentication required")

type ValidationError struct {
	Field string
	Rule  string
}

func (err ValidationError) Error() string {
	return fmt.Sprintf("invalid post %s: failed on %s", err.Field, err.Rule)
}

func (err ValidationError) UserMessage() string {
	switch err.Rule {
	case "required":
		return err.Field + " is required"
	case "max":
		return err.Field + " is too long"
	default:
		return err.Field + " is invalid"
	}
}

type PostNotFoundError struct {
	ID string
}

func (err PostNotFoundError) Error() string {
	return fmt.Sprintf("post with id '%s' not found", err.ID)
}
