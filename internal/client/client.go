// Package client is the network variant of the auth operations: it talks to
// a remote auth endpoint over HTTP instead of the local user store.
package client

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

	"github.com/sirupsen/logrus"

	"userauth/internal/domain"
	"userauth/internal/service"
)

var (
	ErrBadURL                 = errors.New("bad url")
	ErrBadServerResponse      = errors.New("bad server response")
	ErrAuthenticationRequired = errors.New("authentication required")
)

// maxErrorBody bounds how much of a failed response is kept for the message.
const maxErrorBody = 4 << 10

// StatusError reports a non-2xx response. It matches ErrAuthenticationRequired.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", ErrAuthenticationRequired, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrAuthenticationRequired, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrAuthenticationRequired }

// Endpoints lists the remote URLs. Empty entries make the matching call fail
// with ErrBadURL.
type Endpoints struct {
	LoginURL         string
	RegisterURL      string
	ResetPasswordURL string
}

// Client implements service.AuthService against a remote server.
type Client struct {
	endpoints Endpoints
	http      *http.Client
	logger    logrus.FieldLogger
}

func New(endpoints Endpoints, httpClient *http.Client, logger logrus.FieldLogger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		endpoints: endpoints,
		http:      httpClient,
		logger:    logger.WithField("component", "auth-client"),
	}
}

var _ service.AuthService = (*Client)(nil)

// Login sends a GET with HTTP Basic credentials.
func (c *Client) Login(ctx context.Context, username, password string) (*domain.User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoints.LoginURL, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(username, password)

	return c.doUser(req)
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// Register posts the new account as JSON.
func (c *Client) Register(ctx context.Context, username, password, email string) (*domain.User, error) {
	req, err := c.newJSONRequest(ctx, c.endpoints.RegisterURL, registerRequest{
		Username: username,
		Password: password,
		Email:    email,
	})
	if err != nil {
		return nil, err
	}

	return c.doUser(req)
}

type resetPasswordRequest struct {
	Username    string `json:"username"`
	NewPassword string `json:"new_password"`
}

func (c *Client) ResetPassword(ctx context.Context, username, newPassword string) error {
	req, err := c.newJSONRequest(ctx, c.endpoints.ResetPasswordURL, resetPasswordRequest{
		Username:    username,
		NewPassword: newPassword,
	})
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) newJSONRequest(ctx context.Context, rawURL string, body any) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	u, err := parseEndpoint(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out (skipped when out is nil).
// doUser sends req and decodes the account the server answers with.
func (c *Client) doUser(req *http.Request) (*domain.User, error) {
	var user domain.User
	if err := c.do(req, &user); err != nil {
		return nil, err
	}
	if user.ID == 0 || strings.TrimSpace(user.Name) == "" {
		return nil, fmt.Errorf("%w: user without id or name", ErrBadServerResponse)
	}
	return &user, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"method": req.Method,
		"url":    req.URL.Redacted(),
		"status": resp.StatusCode,
	}).Debug("auth request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode body: %v", ErrBadServerResponse, err)
	}
	return nil
}

func parseEndpoint(rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("%w: endpoint not configured", ErrBadURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadURL, rawURL)
	}
	return u, nil
}

// errorMessage extracts {"error": "..."} from a failed response, falling
// back to the raw text.
func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
