package routing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/savegress/medroute/pkg/geo"
)

func TestClient_Route(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"code":"Ok","routes":[{"duration":720,"distance":8400}]}`))
	}))
	defer server.Close()

	client := NewClient(&ClientConfig{BaseURL: server.URL})
	summary, err := client.Route(context.Background(),
		geo.Point{Lat: 13.05, Lng: 80.25},
		geo.Point{Lat: 13.10, Lng: 80.28})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if !strings.HasPrefix(gotPath, "/route/v1/driving/") {
		t.Errorf("path = %s, want OSRM driving route path", gotPath)
	}
	// OSRM wants lng,lat ordering.
	if !strings.Contains(gotPath, "80.250000,13.050000;80.280000,13.100000") {
		t.Errorf("waypoints not lng,lat ordered: %s", gotPath)
	}
	if summary.TotalTime != 720 || summary.TotalDistance != 8400 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.ETA() != "12 min (8.4 km)" {
		t.Errorf("ETA() = %q", summary.ETA())
	}
}

func TestClient_Route_NoRoute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
	}))
	defer server.Close()

	client := NewClient(&ClientConfig{BaseURL: server.URL})
	_, err := client.Route(context.Background(), geo.Point{Lat: 1, Lng: 1}, geo.Point{Lat: 2, Lng: 2})
	if !errors.Is(err, ErrNoRoute) {
		t.Errorf("error = %v, want ErrNoRoute", err)
	}
}

func TestClient_Route_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(&ClientConfig{BaseURL: server.URL})
	_, err := client.Route(context.Background(), geo.Point{Lat: 1, Lng: 1}, geo.Point{Lat: 2, Lng: 2})
	if !errors.Is(err, ErrRoutingUnavailable) {
		t.Errorf("error = %v, want ErrRoutingUnavailable", err)
	}
}

func TestClient_Route_InvalidPoints(t *testing.T) {
	client := NewClient(&ClientConfig{BaseURL: "http://unused.example"})
	_, err := client.Route(context.Background(), geo.Point{Lat: 200, Lng: 0}, geo.Point{Lat: 2, Lng: 2})
	if !errors.Is(err, ErrNoRoute) {
		t.Errorf("error = %v, want ErrNoRoute", err)
	}
}
