// Package auth talks to the external credential service. The analyzer only
// needs to know whether a bearer token belongs to a user.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnauthorized is returned when the credential service rejects a token
// or credentials
var ErrUnauthorized = errors.New("unauthorized")

// User is the identity behind a token
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Tokens is the pair issued on login and refresh
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
}

// Credentials are posted to login and signup
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Client is the credential service client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login exchanges credentials for tokens
func (c *Client) Login(ctx context.Context, creds Credentials) (*Tokens, error) {
	var tokens Tokens
	if err := c.do(ctx, http.MethodPost, "/login", "", creds, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Signup registers a new account
func (c *Client) Signup(ctx context.Context, creds Credentials) error {
	return c.do(ctx, http.MethodPost, "/signup", "", creds, nil)
}

// VerifyEmail confirms an address with the token mailed to it
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodGet, "/verify-email?token="+url.QueryEscape(token), "", nil, nil)
}

// CurrentUser resolves an access token to its user
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/me", accessToken, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Refresh issues a new access token for a refresh token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	var tokens Tokens
	if err := c.do(ctx, http.MethodPost, "/refresh", refreshToken, nil, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("credential service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("credential service status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
