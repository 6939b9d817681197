package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nasermirzaei89/folio/authentication"
)

var _ authentication.AuthAPI = (*Client)(nil)

func (p tokensPayload) toTokens() (*authentication.Tokens, error) {
	tokens := &authentication.Tokens{
		Username:     string(p.User),
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	}

	if tokens.Username == "" {
		tokens.Username = p.Username
	}

	if tokens.AccessToken == "" {
		tokens.AccessToken = p.Access
	}

	if tokens.RefreshToken == "" {
		tokens.RefreshToken = p.Refresh
	}

	if tokens.AccessToken == "" {
		return nil, errors.New("api returned no access token")
	}

	return tokens, nil
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) Login(ctx context.Context, username, password string) (*authentication.Tokens, error) {
	var payload tokensPayload

	err := c.do(ctx, http.MethodPost, "auth/login/", loginBody{Username: username, Password: password}, &payload)
	if err != nil {
		var apiErr APIError
		if errors.As(err, &apiErr) &&
			(apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusUnauthorized) {
			return nil, fmt.Errorf("%w: %w", authentication.ErrInvalidCredentials, apiErr)
		}

		return nil, fmt.Errorf("failed to login: %w", err)
	}

	return payload.toTokens()
}

type registerBody struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, req authentication.RegisterRequest) (*authentication.Tokens, error) {
	var payload tokensPayload

	body := registerBody{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}

	err := c.do(ctx, http.MethodPost, "auth/register/", body, &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}

	return payload.toTokens()
}
