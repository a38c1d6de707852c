package triage

import (
	"errors"
	"testing"

	"github.com/savegress/medroute/pkg/models"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		result  models.AnalysisResult
		want    models.MedicalContext
		wantErr bool
	}{
		{
			name: "critical cardiology",
			result: models.AnalysisResult{
				FinalStatus: models.StatusCritical,
				DiseaseInfo: models.DiseaseInfo{TopDepartment: "Cardiology", DiseasePrediction: "Heart Attack"},
			},
			want: models.MedicalContext{Specialty: "Cardiology", IsCritical: true},
		},
		{
			name: "non-critical dermatology",
			result: models.AnalysisResult{
				FinalStatus: models.StatusNonCritical,
				DiseaseInfo: models.DiseaseInfo{TopDepartment: "Dermatology"},
			},
			want: models.MedicalContext{Specialty: "Dermatology", IsCritical: false},
		},
		{
			name: "missing status",
			result: models.AnalysisResult{
				DiseaseInfo: models.DiseaseInfo{TopDepartment: "Cardiology"},
			},
			wantErr: true,
		},
		{
			name: "missing department",
			result: models.AnalysisResult{
				FinalStatus: models.StatusCritical,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decide(tt.result)
			if tt.wantErr {
				if !errors.Is(err, ErrIncompleteResult) {
					t.Fatalf("error = %v, want ErrIncompleteResult", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decide() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Decide() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecide_Deterministic(t *testing.T) {
	result := models.AnalysisResult{
		FinalStatus: models.StatusCritical,
		DiseaseInfo: models.DiseaseInfo{TopDepartment: "Neurology"},
	}

	first, err := Decide(result)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Decide(result)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("Decide() not deterministic: %+v vs %+v", first, second)
	}
}

func TestDecideFromBodyRegion(t *testing.T) {
	tests := []struct {
		region    models.BodyRegion
		specialty string
	}{
		{models.RegionHead, "Neurology"},
		{models.RegionChest, "Cardiology"},
		{models.RegionAbdomen, "Gastroenterology"},
		{models.RegionArms, "Orthopedics"},
		{models.RegionLegs, "Orthopedics"},
		{models.BodyRegion("Torso"), "General"},
	}

	for _, tt := range tests {
		t.Run(string(tt.region), func(t *testing.T) {
			got := DecideFromBodyRegion(tt.region)
			if got.Specialty != tt.specialty {
				t.Errorf("Specialty = %s, want %s", got.Specialty, tt.specialty)
			}
			if !got.IsCritical {
				t.Error("manual selections must always be critical")
			}
		})
	}
}

func TestDecideFromBodyRegion_GeneralEmergency(t *testing.T) {
	got := DecideFromBodyRegion(models.RegionGeneralEmergency)
	want := models.MedicalContext{Specialty: "Emergency", IsCritical: true}
	if got != want {
		t.Errorf("DecideFromBodyRegion(GeneralEmergency) = %+v, want %+v", got, want)
	}
}

func TestCardFor(t *testing.T) {
	card := CardFor(models.RegionChest)
	if card.FinalStatus != models.StatusCritical {
		t.Errorf("FinalStatus = %s, want Critical", card.FinalStatus)
	}
	if card.DiseaseInfo.TopDepartment != "Cardiology" {
		t.Errorf("TopDepartment = %s, want Cardiology", card.DiseaseInfo.TopDepartment)
	}
	if card.DiseaseInfo.DiseasePrediction != "Chest Pain / Heart Issue" {
		t.Errorf("DiseasePrediction = %q", card.DiseaseInfo.DiseasePrediction)
	}
}
