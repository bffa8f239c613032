package flow

import (
	"testing"

	"github.com/FranckBG1/agentic-ia-agent/internal/models"
)

func neutralParams(intensity string) models.ParameterSet {
	return models.ParameterSet{
		models.ParamEmotion:   "ennui",
		models.ParamCauses:    "examens",
		models.ParamDuration:  "2 jours",
		models.ParamSymptoms:  "aucun",
		models.ParamIntensity: intensity,
	}
}

func TestAnalyzeSeverityBands(t *testing.T) {
	a := NewSeverityAnalyzer()

	tests := []struct {
		name         string
		intensity    string
		wantSeverity models.SeverityLevel
		wantDistress float64
	}{
		{"high at boundary 0.70", "7", models.SeverityHigh, 0.70},
		{"moderate at boundary 0.40", "4", models.SeverityModerate, 0.40},
		{"low below 0.40", "3", models.SeverityLow, 0.30},
		{"moderate just below high", "6", models.SeverityModerate, 0.60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := a.Analyze(neutralParams(tt.intensity), false, models.EmergencyLevelNone)
			if result.SeverityLevel != tt.wantSeverity {
				t.Errorf("severity = %s, want %s (distress %v)", result.SeverityLevel, tt.wantSeverity, result.DistressRatio)
			}
			if result.DistressRatio != tt.wantDistress {
				t.Errorf("distress = %v, want %v", result.DistressRatio, tt.wantDistress)
			}
		})
	}
}

func TestAnalyzeHighIntensityOverride(t *testing.T) {
	a := NewSeverityAnalyzer()

	result := a.Analyze(neutralParams("8"), false, models.EmergencyLevelNone)
	if result.SeverityLevel != models.SeverityHigh {
		t.Errorf("intensity 8 must force Élevé, got %s", result.SeverityLevel)
	}
}

func TestAnalyzeCriticalEmotionOverride(t *testing.T) {
	a := NewSeverityAnalyzer()

	params := neutralParams("3")
	params[models.ParamEmotion] = "désespoir"
	result := a.Analyze(params, false, models.EmergencyLevelNone)
	if result.SeverityLevel != models.SeverityHigh {
		t.Errorf("critical emotion must force Élevé, got %s", result.SeverityLevel)
	}
	if result.UrgencyScore != 10 {
		t.Errorf("critical emotion must force urgency 10, got %d", result.UrgencyScore)
	}
}

func TestAnalyzeEmergencyUrgencyFloor(t *testing.T) {
	a := NewSeverityAnalyzer()

	result := a.Analyze(neutralParams("3"), true, models.EmergencyLevelElevated)
	if result.UrgencyScore < 7 {
		t.Errorf("emergency must raise urgency to at least 7, got %d", result.UrgencyScore)
	}

	result = a.Analyze(neutralParams("3"), true, models.EmergencyLevelCritical)
	if result.UrgencyScore != 10 {
		t.Errorf("CRITIQUE emergency must force urgency 10, got %d", result.UrgencyScore)
	}
}

func TestAnalyzeChronicDurationRaisesDistress(t *testing.T) {
	a := NewSeverityAnalyzer()

	params := neutralParams("6")
	params[models.ParamDuration] = "plusieurs mois"
	result := a.Analyze(params, false, models.EmergencyLevelNone)
	if result.DistressRatio != 0.70 {
		t.Errorf("chronic duration should add 0.10, got %v", result.DistressRatio)
	}
	if result.SeverityLevel != models.SeverityHigh {
		t.Errorf("expected Élevé, got %s", result.SeverityLevel)
	}
}

func TestParseIntensity(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"8", 8},
		{"8/10", 8},
		{"15", 10},
		{"insupportable", 9},
		{"très fort", 8},
		{"un peu", 3},
		{"", 5},
		{"je ne sais pas", 5},
	}
	for _, tt := range tests {
		if got := ParseIntensity(tt.input); got != tt.want {
			t.Errorf("ParseIntensity(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestDurationIsChronic(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"3 semaines", true},
		{"2 semaines", false},
		{"depuis des mois", true},
		{"2 ans", true},
		{"depuis longtemps", true},
		{"quelques jours", false},
		{"pendant la semaine", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := DurationIsChronic(tt.input); got != tt.want {
			t.Errorf("DurationIsChronic(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
