package triage

import (
	"errors"
	"fmt"

	"github.com/savegress/medroute/pkg/models"
)

// ErrIncompleteResult is returned when an analysis result is missing
// the fields a decision needs. Missing data is never defaulted.
var ErrIncompleteResult = errors.New("analysis result missing required fields")

// regionSpecialties maps each body region to the department handling
// it. Unmapped regions fall through to General.
var regionSpecialties = map[models.BodyRegion]string{
	models.RegionHead:    "Neurology",
	models.RegionChest:   "Cardiology",
	models.RegionAbdomen: "Gastroenterology",
	models.RegionArms:    "Orthopedics",
	models.RegionLegs:    "Orthopedics",
}

// regionDescriptions are the symptom summaries attached to a manual
// selection, shown on the confirmation card.
var regionDescriptions = map[models.BodyRegion]string{
	models.RegionHead:    "Possible Head Trauma / Stroke",
	models.RegionChest:   "Chest Pain / Heart Issue",
	models.RegionAbdomen: "Severe Abdominal Pain",
	models.RegionArms:    "Bone Fracture / Limb Injury",
	models.RegionLegs:    "Bone Fracture / Limb Injury",
}

// Decide maps an analysis result to a medical context. It is a pure,
// total function over valid results: every valid result yields exactly
// one context, and a result without a final status or top department
// is rejected.
func Decide(result models.AnalysisResult) (models.MedicalContext, error) {
	if result.FinalStatus == "" {
		return models.MedicalContext{}, fmt.Errorf("%w: final status", ErrIncompleteResult)
	}
	if result.DiseaseInfo.TopDepartment == "" {
		return models.MedicalContext{}, fmt.Errorf("%w: top department", ErrIncompleteResult)
	}

	return models.MedicalContext{
		Specialty:  result.DiseaseInfo.TopDepartment,
		IsCritical: result.FinalStatus == models.StatusCritical,
	}, nil
}

// DecideFromBodyRegion maps a manual body-region selection to a
// medical context. All manual selections are treated as critical;
// there is no non-critical manual path. The GeneralEmergency region
// bypasses specialty mapping and goes straight to Emergency.
func DecideFromBodyRegion(region models.BodyRegion) models.MedicalContext {
	if region == models.RegionGeneralEmergency {
		return models.MedicalContext{Specialty: "Emergency", IsCritical: true}
	}

	specialty, ok := regionSpecialties[region]
	if !ok {
		specialty = "General"
	}

	return models.MedicalContext{Specialty: specialty, IsCritical: true}
}

// DescribeRegion returns the symptom summary for a manual selection,
// used as the prediction text on the decision card.
func DescribeRegion(region models.BodyRegion) string {
	if desc, ok := regionDescriptions[region]; ok {
		return desc
	}
	return "Manual Body Selection"
}

// CardFor builds the synthetic analysis result that backs the decision
// card for a manual body-region pick. GeneralEmergency selections skip
// the card entirely, so calling this for one is a caller bug.
func CardFor(region models.BodyRegion) models.AnalysisResult {
	ctx := DecideFromBodyRegion(region)
	return models.AnalysisResult{
		FinalStatus: models.StatusCritical,
		DiseaseInfo: models.DiseaseInfo{
			TopDepartment:     ctx.Specialty,
			DiseasePrediction: DescribeRegion(region),
		},
	}
}
