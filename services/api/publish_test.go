package api

import "testing"

func TestQuestionPreview(t *testing.T) {
	tests := []struct {
		name      string
		questions []string
		want      string
	}{
		{"empty", nil, ""},
		{"single", []string{"A"}, "A"},
		{"two", []string{"A", "B"}, "A · B"},
		{"truncated", []string{"A", "B", "C"}, "A · B …"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := questionPreview(tt.questions); got != tt.want {
				t.Fatalf("questionPreview() = %q, want %q", got, tt.want)
			}
		})
	}
}
