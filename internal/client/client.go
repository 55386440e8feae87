// Package client talks to the companion API. Client implements
// ports.IdentityProvider so a session.Manager can drive login, registration
// and session restore against a remote server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
)

const headerDeviceID = "X-Device-ID"

// APIError is a response the client has no specific mapping for.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

// Client is a thin JSON client for the companion API.
type Client struct {
	baseURL  string
	deviceID string
	http     *http.Client
}

var _ ports.IdentityProvider = (*Client)(nil)

// New creates a client for baseURL. deviceID identifies this install for
// anonymous chat. A nil httpClient gets a client with a 15s timeout.
func New(baseURL, deviceID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		deviceID: deviceID,
		http:     httpClient,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// VerifyCredential logs in with email and password.
func (c *Client) VerifyCredential(ctx context.Context, email, password string) (*domain.Authenticated, error) {
	var out domain.Authenticated
	err := c.do(ctx, http.MethodPost, "/auth/login", "", credentialsRequest{Email: email, Password: password}, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized, http.StatusBadRequest:
			return nil, &domain.AuthenticationError{Reason: apiErr.Message, Err: domain.ErrInvalidCredentials}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &out, nil
}

// CreateAccount registers a new account.
func (c *Client) CreateAccount(ctx context.Context, email, password, name string) (*domain.Authenticated, error) {
	var out domain.Authenticated
	err := c.do(ctx, http.MethodPost, "/auth/register", "", credentialsRequest{Email: email, Password: password, Name: name}, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusConflict:
			return nil, &domain.RegistrationError{Reason: apiErr.Message, Err: domain.ErrUserExists}
		case http.StatusBadRequest:
			return nil, &domain.RegistrationError{Reason: apiErr.Message, Err: domain.ErrInvalidInput}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &out, nil
}

// Resume fetches the identity a stored token belongs to.
func (c *Client) Resume(ctx context.Context, token string) (*domain.Authenticated, error) {
	var identity domain.Identity
	err := c.do(ctx, http.MethodGet, "/v1/me", token, nil, &identity)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return nil, &domain.AuthenticationError{Reason: apiErr.Message, Err: domain.ErrTokenRevoked}
	}
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	return &domain.Authenticated{Identity: identity, Token: token}, nil
}

// Logout revokes token on the server. A token the server already rejects
// counts as logged out.
func (c *Client) Logout(ctx context.Context, token string) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return nil
	}
	return err
}

// ChatReply is the answer to one chat turn. Remaining is nil for
// signed-in callers.
type ChatReply struct {
	UserMessage domain.Message `json:"user_message"`
	Reply       domain.Message `json:"reply"`
	Remaining   *int           `json:"remaining,omitempty"`
}

func (c *Client) Greeting(ctx context.Context) (domain.Message, error) {
	var msg domain.Message
	err := c.do(ctx, http.MethodGet, "/v1/chat/greeting", "", nil, &msg)
	return msg, err
}

// Chat sends one turn. token may be empty for anonymous use.
func (c *Client) Chat(ctx context.Context, token, text string) (*ChatReply, error) {
	var out ChatReply
	err := c.do(ctx, http.MethodPost, "/v1/chat", token, map[string]string{"text": text}, &out)
	if err != nil {
		return nil, mapCommon(err)
	}
	return &out, nil
}

// Allowance returns the anonymous turns the server will still accept from
// this device. unlimited is true for a valid token.
func (c *Client) Allowance(ctx context.Context, token string) (remaining int, unlimited bool, err error) {
	var out struct {
		Unlimited bool `json:"unlimited"`
		Remaining int  `json:"remaining"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/chat/allowance", token, nil, &out); err != nil {
		return 0, false, mapCommon(err)
	}
	return out.Remaining, out.Unlimited, nil
}

type plansResponse struct {
	Plans         []domain.Plan `json:"plans"`
	DefaultPlanID string        `json:"default_plan_id"`
}

// Plans returns the plan catalog and the preselected plan ID.
func (c *Client) Plans(ctx context.Context) ([]domain.Plan, string, error) {
	var out plansResponse
	if err := c.do(ctx, http.MethodGet, "/v1/plans", "", nil, &out); err != nil {
		return nil, "", err
	}
	return out.Plans, out.DefaultPlanID, nil
}

func (c *Client) SetRole(ctx context.Context, token string, role domain.Role) (*domain.Identity, error) {
	var out domain.Identity
	if err := c.do(ctx, http.MethodPut, "/v1/me/role", token, map[string]string{"role": string(role)}, &out); err != nil {
		return nil, mapCommon(err)
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, token string, patch domain.IdentityPatch) (*domain.Identity, error) {
	var out domain.Identity
	if err := c.do(ctx, http.MethodPatch, "/v1/me", token, patch, &out); err != nil {
		return nil, mapCommon(err)
	}
	return &out, nil
}

func (c *Client) CompleteIndividual(ctx context.Context, token string, profile domain.IndividualProfile) (*domain.Identity, error) {
	var out domain.Identity
	if err := c.do(ctx, http.MethodPost, "/v1/me/onboarding/individual", token, profile, &out); err != nil {
		return nil, mapCommon(err)
	}
	return &out, nil
}

func (c *Client) CompleteOrganization(ctx context.Context, token string, profile domain.OrganizationProfile) (*domain.Identity, error) {
	var out domain.Identity
	if err := c.do(ctx, http.MethodPost, "/v1/me/onboarding/organization", token, profile, &out); err != nil {
		return nil, mapCommon(err)
	}
	return &out, nil
}

// mapCommon turns status codes shared by several endpoints into domain errors.
func mapCommon(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrChatQuotaExceeded, apiErr.Message)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrForbidden, apiErr.Message)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, apiErr.Message)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrUserExists, apiErr.Message)
	case http.StatusUnauthorized:
		return &domain.AuthenticationError{Reason: apiErr.Message, Err: domain.ErrTokenRevoked}
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.deviceID != "" {
		req.Header.Set(headerDeviceID, c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope)
		return &APIError{Status: resp.StatusCode, Message: envelope.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
