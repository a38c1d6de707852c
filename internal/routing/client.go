package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/savegress/medroute/pkg/geo"
	"github.com/savegress/medroute/pkg/models"
)

// ErrRoutingUnavailable is returned for any transport failure or
// non-success response from the routing provider. Routing failures
// leave the ETA blank but never block candidate selection or admission
// requests.
var ErrRoutingUnavailable = errors.New("routing provider unavailable")

// ErrNoRoute is returned when the provider answered but found no road
// route between the two points.
var ErrNoRoute = errors.New("no route found")

// Client requests turn-by-turn routes from an OSRM-compatible
// provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientConfig holds client configuration
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new routing client
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

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Duration float64 `json:"duration"`
		Distance float64 `json:"distance"`
	} `json:"routes"`
}

// Route computes a driving route between two points and returns its
// summary. Both points must be valid; the caller filters candidates
// with unknown positions before routing.
func (c *Client) Route(ctx context.Context, from, to geo.Point) (models.RouteSummary, error) {
	if !from.Valid() || !to.Valid() {
		return models.RouteSummary{}, fmt.Errorf("%w: invalid coordinates", ErrNoRoute)
	}

	// OSRM takes lng,lat pairs.
	endpoint := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=false",
		c.baseURL, from.Lng, from.Lat, to.Lng, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.RouteSummary{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.RouteSummary{}, fmt.Errorf("%w: %v", ErrRoutingUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.RouteSummary{}, fmt.Errorf("%w: reading response: %v", ErrRoutingUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return models.RouteSummary{}, fmt.Errorf("%w: status %d", ErrRoutingUnavailable, resp.StatusCode)
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.RouteSummary{}, fmt.Errorf("%w: malformed response: %v", ErrRoutingUnavailable, err)
	}

	if parsed.Code != "Ok" || len(parsed.Routes) == 0 {
		return models.RouteSummary{}, ErrNoRoute
	}

	return models.RouteSummary{
		TotalTime:     parsed.Routes[0].Duration,
		TotalDistance: parsed.Routes[0].Distance,
	}, nil
}
