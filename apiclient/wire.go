package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// flexID accepts both JSON numbers and strings.
type flexID string

func (i *flexID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*i = ""

		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*i = flexID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("failed to decode id %s: %w", b, err)
	}

	*i = flexID(n.String())

	return nil
}

// flexUser accepts a username string or an object carrying one.
type flexUser string

func (u *flexUser) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*u = ""

		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*u = flexUser(s)

		return nil
	}

	var obj struct {
		Username string `json:"username"`
	}

	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("failed to decode user %s: %w", b, err)
	}

	*u = flexUser(obj.Username)

	return nil
}

// flexTag accepts a tag name or an object carrying one.
type flexTag string

func (t *flexTag) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = flexTag(s)

		return nil
	}

	var obj struct {
		Name string `json:"name"`
	}

	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("failed to decode tag %s: %w", b, err)
	}

	*t = flexTag(obj.Name)

	return nil
}

func parseID(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}

	return s
}

type commentPayload struct {
	ID        flexID           `json:"id"`
	Post      flexID           `json:"post"`
	ParentID  flexID           `json:"parent_id"`
	Parent    flexID           `json:"parent"`
	Content   string           `json:"content"`
	Author    flexUser         `json:"author"`
	User      flexUser         `json:"user"`
	CreatedAt time.Time        `json:"created_at"`
	Replies   []commentPayload `json:"replies"`
}

type postPayload struct {
	ID            flexID    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Author        flexUser  `json:"author"`
	Tags          []flexTag `json:"tags"`
	IsPublished   bool      `json:"is_published"`
	LikesCount    int       `json:"likes_count"`
	CommentsCount int       `json:"comments_count"`
	IsLiked       bool      `json:"is_liked"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type tokensPayload struct {
	User         flexUser `json:"user"`
	Username     string   `json:"username"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	Access       string   `json:"access"`
	Refresh      string   `json:"refresh"`
}
