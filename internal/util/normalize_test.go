package util

import "testing"

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "SUICIDE", "suicide"},
		{"strips accents", "Déprimé", "deprime"},
		{"mixed", "Je suis TRÈS Stressé", "je suis tres stresse"},
		{"cedilla", "Ça suffit", "ca suffit"},
		{"untouched ascii", "rien a signaler", "rien a signaler"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.input); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
