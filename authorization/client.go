package authorization

import (
	"context"
	"fmt"
	"log/slog"

	authcontext "github.com/nasermirzaei89/folio/authentication/context"
)

type Client struct {
	authzSvc *Service
}

func NewClient(authzSvc *Service) *Client {
	return &Client{
		authzSvc: authzSvc,
	}
}

// CheckAccess checks if the current user in the context has permission to perform the action on the object within the
// domain.
func (c *Client) CheckAccess(ctx context.Context, domain, object, action string) error {
	return c.CheckAccessWithOwner(ctx, domain, object, "", action)
}

// CheckAccessWithOwner is CheckAccess for objects owned by a user.
func (c *Client) CheckAccessWithOwner(ctx context.Context, domain, object, owner, action string) error {
	subject := authcontext.GetSubject(ctx)

	res, err := c.authzSvc.CheckAccess(ctx, CheckAccessRequest{
		Subject: subject,
		Domain:  domain,
		Object:  object,
		Owner:   owner,
		Action:  action,
	})
	if err != nil {
		return fmt.Errorf("error on check permission: %w", err)
	}

	if !res.Allowed {
		return AccessDeniedError{
			Subject: subject,
			Domain:  domain,
			Object:  object,
			Action:  action,
		}
	}

	return nil
}

func (c *Client) CanI(ctx context.Context, domain, object, action string) bool {
	return c.Can(ctx, authcontext.GetSubject(ctx), domain, object, "", action)
}

func (c *Client) CanIWithOwner(ctx context.Context, domain, object, owner, action string) bool {
	return c.Can(ctx, authcontext.GetSubject(ctx), domain, object, owner, action)
}

func (c *Client) Can(ctx context.Context, subject, domain, object, owner, action string) bool {
	res, err := c.authzSvc.CheckAccess(ctx, CheckAccessRequest{
		Subject: subject,
		Domain:  domain,
		Object:  object,
		Owner:   owner,
		Action:  action,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to check access", "subject", subject, "action", action, "error", err)

		return false
	}

	return res.Allowed
}

func (c *Client) AddToGroup(ctx context.Context, sub string, group ...string) error {
	err := c.authzSvc.AddToGroup(ctx, sub, group...)
	if err != nil {
		return fmt.Errorf("error on add to group: %w", err)
	}

	return nil
}
