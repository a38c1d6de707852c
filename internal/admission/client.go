package admission

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

	"github.com/savegress/medroute/pkg/models"
)

// ErrSubmitFailed is returned when the admission-requests service
// rejects or fails a submission. The user may retry against the same
// or a different hospital.
var ErrSubmitFailed = errors.New("admission request submission failed")

// ErrStatusUnavailable is returned when a status check cannot reach
// the service. Poll loops treat it as transient and try again on the
// next tick.
var ErrStatusUnavailable = errors.New("request status unavailable")

// Client talks to the admission-requests service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientConfig holds client configuration
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new admission-requests client
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

// CreateRequest is the submission payload for a new admission attempt.
type CreateRequest struct {
	HospitalID         string `json:"hospitalId"`
	PatientName        string `json:"patientName"`
	ContactNumber      string `json:"contactNumber"`
	SymptomDescription string `json:"symptomDescription"`
}

// Submit creates an admission request and returns its identifier.
func (c *Client) Submit(ctx context.Context, req CreateRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/requests/create", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrSubmitFailed, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: status %d", ErrSubmitFailed, resp.StatusCode)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("%w: malformed response: %v", ErrSubmitFailed, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: missing request id", ErrSubmitFailed)
	}

	return created.ID, nil
}

// CheckStatus fetches the current status of a request.
func (c *Client) CheckStatus(ctx context.Context, requestID string) (models.RequestStatus, error) {
	endpoint := fmt.Sprintf("%s/requests/check-status/%s", c.baseURL, url.PathEscape(requestID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStatusUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrStatusUnavailable, resp.StatusCode)
	}

	var status struct {
		Status models.RequestStatus `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("%w: malformed response: %v", ErrStatusUnavailable, err)
	}

	return status.Status, nil
}

// UpdateStatus resolves a request from the hospital side. The service
// takes the new status as a raw string body.
func (c *Client) UpdateStatus(ctx context.Context, requestID string, status models.RequestStatus) error {
	endpoint := fmt.Sprintf("%s/requests/update-status/%s", c.baseURL, url.PathEscape(requestID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(status)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStatusUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: status %d", ErrStatusUnavailable, resp.StatusCode)
	}

	return nil
}

// HospitalRequests lists the requests currently addressed to a
// hospital, for the staff feed.
func (c *Client) HospitalRequests(ctx context.Context, hospitalID string) ([]models.AdmissionRequest, error) {
	endpoint := fmt.Sprintf("%s/requests/hospital/%s", c.baseURL, url.PathEscape(hospitalID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatusUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrStatusUnavailable, resp.StatusCode)
	}

	var requests []models.AdmissionRequest
	if err := json.NewDecoder(resp.Body).Decode(&requests); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrStatusUnavailable, err)
	}

	return requests, nil
}
