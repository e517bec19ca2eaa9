package api

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// Catalog validation runs before any database work, so malformed input can be
// exercised without a connection.
func TestSeedStarterSetsRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name    string
		catalog string
	}{
		{"not yaml", "{{{"},
		{"empty catalog", "sets: []"},
		{"unnamed set", "sets:\n  - questions: [\"a\"]\n"},
		{"no questions", "sets:\n  - name: Childhood\n    questions: []\n"},
		{
			"too many questions",
			"sets:\n  - name: Childhood\n    questions: [a, b, c, d, e, f]\n",
		},
		{"blank question", "sets:\n  - name: Childhood\n    questions: [\"  \"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SeedStarterSets(context.Background(), nil, uuid.New(), strings.NewReader(tt.catalog))
			if err == nil {
				t.Fatal("SeedStarterSets() accepted a bad catalog")
			}
		})
	}
}
