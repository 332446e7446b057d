package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
	"github.com/Sentinel-Gate/storefront/internal/domain/session"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Login exchanges username and password for a credential pair. It does not
// store the pair; the caller hands it to the session.
// A 401 from the login endpoint is returned as is, without a refresh attempt.
func (c *Client) Login(ctx context.Context, username, password string) (session.Credentials, error) {
	var out loginResponse
	err := c.do(WithoutRefresh(ctx), http.MethodPost, c.loginPath,
		nil, loginRequest{Username: username, Password: password}, &out)
	if err != nil {
		return session.Credentials{}, err
	}
	if out.Access == "" {
		return session.Credentials{}, errors.New("login response without access token")
	}
	return session.Credentials{Access: out.Access, Refresh: out.Refresh}, nil
}

// Profile returns the signed-in user's account.
func (c *Client) Profile(ctx context.Context) (*catalog.Profile, error) {
	var p catalog.Profile
	if err := c.do(ctx, http.MethodGet, "api/auth/profile/", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile validates and saves the signed-in user's account details.
func (c *Client) UpdateProfile(ctx context.Context, p catalog.Profile) (*catalog.Profile, error) {
	if err := c.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	var out catalog.Profile
	if err := c.do(ctx, http.MethodPut, "api/auth/profile/", nil, p, &out); err != nil {
		return nil, err
	}
	if out.Username == "" {
		out = p
	}
	return &out, nil
}

// RequestPasswordReset asks the backend to mail a reset link to email.
// It needs no session and never triggers a refresh.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	if err := c.validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("invalid email: %w", err)
	}
	body := struct {
		Email string `json:"email"`
	}{Email: email}
	return c.do(WithoutRefresh(ctx), http.MethodPost, "accounts/password-reset-request/", nil, body, nil)
}

// ConfirmPasswordReset sets a new password using the uid and token of a
// reset link.
func (c *Client) ConfirmPasswordReset(ctx context.Context, uid, token, password string) error {
	if uid == "" || token == "" {
		return errors.New("invalid reset link: uid and token are required")
	}
	if err := c.validate.Var(password, "required"); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}
	body := struct {
		Password string `json:"password"`
	}{Password: password}
	path := "api/auth/password-reset-confirm/" + url.PathEscape(uid) + "/" + url.PathEscape(token) + "/"
	return c.do(WithoutRefresh(ctx), http.MethodPost, path, nil, body, nil)
}
