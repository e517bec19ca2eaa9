package api

import "testing"

func TestValidateQuestionTexts(t *testing.T) {
	tests := []struct {
		name    string
		inputs  []questionInput
		wantErr bool
	}{
		{"one question", []questionInput{{Text: "a"}}, false},
		{"five questions", []questionInput{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}, {Text: "e"}}, false},
		{"empty", nil, true},
		{"six questions", []questionInput{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}, {Text: "e"}, {Text: "f"}}, true},
		{"blank text", []questionInput{{Text: "   "}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateQuestionTexts(tt.inputs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateQuestionTexts() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
