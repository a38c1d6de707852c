package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/savegress/medroute/pkg/geo"
)

// TriageStatus is the severity classification returned by the analysis
// service.
type TriageStatus string

const (
	StatusCritical    TriageStatus = "Critical"
	StatusNonCritical TriageStatus = "NonCritical"
)

// DiseaseInfo carries the condition and department the analysis service
// predicted for a symptom description.
type DiseaseInfo struct {
	DiseasePrediction string `json:"disease_prediction"`
	TopDepartment     string `json:"top_department"`
}

// AnalysisResult is the normalized output of the analysis gateway.
// FinalStatus and DiseaseInfo.TopDepartment must both be present before
// a triage decision consumes the result; absence is an error, never a
// default.
type AnalysisResult struct {
	FinalStatus     TriageStatus `json:"final_status"`
	DiseaseInfo     DiseaseInfo  `json:"disease_info"`
	TranscribedText string       `json:"transcribed_text,omitempty"`
}

// MedicalContext is the routing decision carried across the session
// controller: which department to search for and whether the case
// bypasses authentication. It lives for a single triage episode.
type MedicalContext struct {
	Specialty  string `json:"specialty"`
	IsCritical bool   `json:"is_critical"`
}

// BodyRegion is a manual triage selection from the body map.
type BodyRegion string

const (
	RegionHead    BodyRegion = "Head"
	RegionChest   BodyRegion = "Chest"
	RegionAbdomen BodyRegion = "Abdomen"
	RegionArms    BodyRegion = "Arms"
	RegionLegs    BodyRegion = "Legs"

	// RegionGeneralEmergency bypasses specialty mapping entirely and
	// routes straight to the emergency map.
	RegionGeneralEmergency BodyRegion = "GeneralEmergency"
)

// HospitalCandidate is one row in the hospital directory's result set.
// Latitude and Longitude arrive as strings on the wire and may be
// malformed; use Position to obtain validated coordinates.
type HospitalCandidate struct {
	HospitalID  string `json:"hospitalId"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
}

// Position parses the candidate's coordinates. The second return is
// false when either coordinate is missing, unparseable or non-finite;
// such candidates stay in text listings with a "location unknown"
// marker but are excluded from map rendering and routing.
func (h HospitalCandidate) Position() (geo.Point, bool) {
	lat, err := strconv.ParseFloat(h.Latitude, 64)
	if err != nil {
		return geo.Point{}, false
	}
	lng, err := strconv.ParseFloat(h.Longitude, 64)
	if err != nil {
		return geo.Point{}, false
	}
	p := geo.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return geo.Point{}, false
	}
	return p, true
}

// RequestStatus is the server-authoritative state of an admission
// request. A request is created Pending and transitions exactly once to
// Accepted or Declined.
type RequestStatus string

const (
	RequestPending  RequestStatus = "Pending"
	RequestAccepted RequestStatus = "Accepted"
	RequestDeclined RequestStatus = "Declined"
)

// Terminal reports whether the status is final. Terminal states are not
// re-enterable.
func (s RequestStatus) Terminal() bool {
	return s == RequestAccepted || s == RequestDeclined
}

// AdmissionRequest is a single admission attempt against a hospital.
type AdmissionRequest struct {
	ID                 string        `json:"id"`
	HospitalID         string        `json:"hospitalId"`
	PatientName        string        `json:"patientName"`
	ContactNumber      string        `json:"contactNumber"`
	SymptomDescription string        `json:"symptomDescription"`
	Status             RequestStatus `json:"status"`
	CreatedAt          time.Time     `json:"createdAt,omitempty"`
}

// RouteSummary is the road-route summary returned by the routing
// provider.
type RouteSummary struct {
	TotalTime     float64 `json:"totalTime"`     // seconds
	TotalDistance float64 `json:"totalDistance"` // meters
}

// ETA renders the summary the way the emergency screen displays it,
// e.g. "12 min (8.4 km)".
func (r RouteSummary) ETA() string {
	minutes := int(r.TotalTime/60 + 0.5)
	return fmt.Sprintf("%d min (%.1f km)", minutes, r.TotalDistance/1000)
}
