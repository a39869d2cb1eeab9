package apiclient

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/example/ec-storefront/internal/apperrors"
	"github.com/example/ec-storefront/internal/auth"
)

var errInvalidAuthResponse = errors.New("invalid response format")

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is the outcome of login or register
type AuthResult struct {
	Token   string    `json:"token"`
	User    auth.User `json:"user"`
	Message string    `json:"message,omitempty"`
}

type authEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Token string     `json:"token"`
		User  *auth.User `json:"user"`
	} `json:"data"`
}

func decodeAuth(body []byte) (*authEnvelope, error) {
	var env authEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperrors.Unexpected(errors.Wrap(err, "decode auth response"))
	}
	if !env.Success {
		return nil, apperrors.Unexpected(errInvalidAuthResponse)
	}
	return &env, nil
}

func (c *Client) authenticate(ctx context.Context, path string, payload any) (*AuthResult, error) {
	body, err := c.do(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return nil, err
	}
	env, err := decodeAuth(body)
	if err != nil {
		return nil, err
	}
	if env.Data.Token == "" {
		return nil, apperrors.Unexpected(errInvalidAuthResponse)
	}

	result := &AuthResult{Token: env.Data.Token, Message: env.Message}
	if env.Data.User != nil {
		result.User = *env.Data.User
	}
	return result, nil
}

// Register calls POST /auth/register
func (c *Client) Register(ctx context.Context, r Registration) (*AuthResult, error) {
	return c.authenticate(ctx, "/auth/register", r)
}

// Login calls POST /auth/login
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	return c.authenticate(ctx, "/auth/login", creds)
}

// Profile calls GET /auth/profile
func (c *Client) Profile(ctx context.Context) (*auth.User, error) {
	body, err := c.do(ctx, http.MethodGet, "/auth/profile", nil, nil)
	if err != nil {
		return nil, err
	}
	env, err := decodeAuth(body)
	if err != nil {
		return nil, err
	}
	if env.Data.User == nil {
		return nil, apperrors.Unexpected(errInvalidAuthResponse)
	}
	return env.Data.User, nil
}

// Logout calls POST /auth/logout
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	return err
}
