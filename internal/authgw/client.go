package authgw

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
)

// ErrAuthFailed is returned for invalid credentials or a registration
// conflict. It surfaces inline near the form; the session never
// navigates away on it.
var ErrAuthFailed = errors.New("authentication failed")

// ErrAuthUnavailable is returned when the auth service cannot be
// reached at all.
var ErrAuthUnavailable = errors.New("auth service unavailable")

// Client talks to the external authentication service for both the
// patient and the hospital account flows.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientConfig holds client configuration
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new auth client
func NewClient(config *ClientConfig) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Credentials is an email/password pair.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult carries the bearer token and the identity strings kept
// for session continuity.
type LoginResult struct {
	Token string
	Email string
	Phone string
}

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"user"`
}

// PatientLogin authenticates a patient account.
func (c *Client) PatientLogin(ctx context.Context, creds Credentials) (*LoginResult, error) {
	return c.login(ctx, "/patients/login", creds)
}

// HospitalLogin authenticates a hospital staff account.
func (c *Client) HospitalLogin(ctx context.Context, creds Credentials) (*LoginResult, error) {
	return c.login(ctx, "/auth/login", creds)
}

func (c *Client) login(ctx context.Context, path string, creds Credentials) (*LoginResult, error) {
	body, err := c.post(ctx, path, creds)
	if err != nil {
		return nil, err
	}

	var parsed loginResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrAuthUnavailable, err)
	}
	if parsed.Token == "" {
		return nil, fmt.Errorf("%w: no token in response", ErrAuthFailed)
	}

	email := parsed.User.Email
	if email == "" {
		email = creds.Email
	}

	return &LoginResult{
		Token: parsed.Token,
		Email: email,
		Phone: parsed.User.Phone,
	}, nil
}

// PatientRegistration is the patient signup payload.
type PatientRegistration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// PatientRegister creates a patient account.
func (c *Client) PatientRegister(ctx context.Context, reg PatientRegistration) error {
	_, err := c.post(ctx, "/patients/register", reg)
	return err
}

// HospitalRegistration is the hospital signup payload.
type HospitalRegistration struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
}

// HospitalRegister creates a hospital account.
func (c *Client) HospitalRegister(ctx context.Context, reg HospitalRegistration) error {
	_, err := c.post(ctx, "/auth/register", reg)
	return err
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrAuthUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusConflict:
		return nil, fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: status %d", ErrAuthUnavailable, resp.StatusCode)
	}
}
