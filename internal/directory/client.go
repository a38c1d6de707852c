package directory

import (
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

// ErrDirectoryUnavailable is returned for any transport failure or
// non-success response from the hospital directory. The locator shows
// a status message and leaves the candidate list empty.
var ErrDirectoryUnavailable = errors.New("hospital directory unavailable")

// ErrHospitalNotFound is returned when no hospital matches a profile
// lookup.
var ErrHospitalNotFound = errors.New("hospital not found")

// Client queries the hospital directory service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientConfig holds client configuration
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new directory client
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

// Search returns candidates offering the given specialty, in server
// order. The directory is assumed to return nearest-first; the client
// never re-sorts.
func (c *Client) Search(ctx context.Context, specialty string) ([]models.HospitalCandidate, error) {
	endpoint := fmt.Sprintf("%s/hospitals/search?specialty=%s", c.baseURL, url.QueryEscape(specialty))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var candidates []models.HospitalCandidate
	if err := json.Unmarshal(body, &candidates); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrDirectoryUnavailable, err)
	}

	return candidates, nil
}

// HospitalProfile is the directory's record for an authenticated
// hospital's own account.
type HospitalProfile struct {
	HospitalID  string `json:"hospitalId"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
}

// ByEmail fetches the hospital profile registered under an email
// address. Used by the staff side to resolve its own identity after
// login.
func (c *Client) ByEmail(ctx context.Context, email string) (*HospitalProfile, error) {
	endpoint := fmt.Sprintf("%s/hospitals/by-email/%s", c.baseURL, url.PathEscape(email))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var profile HospitalProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrDirectoryUnavailable, err)
	}
	if profile.HospitalID == "" {
		return nil, ErrHospitalNotFound
	}

	return &profile, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrHospitalNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrDirectoryUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrDirectoryUnavailable, err)
	}

	return body, nil
}

// Routable splits candidates into those with parseable coordinates
// (map markers, routing targets) and those without (listed with a
// location-unknown marker). Server order is preserved in both.
func Routable(candidates []models.HospitalCandidate) (routable, unknown []models.HospitalCandidate) {
	for _, c := range candidates {
		if _, ok := c.Position(); ok {
			routable = append(routable, c)
		} else {
			unknown = append(unknown, c)
		}
	}
	return routable, unknown
}
