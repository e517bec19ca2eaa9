package api

import (
	"testing"

	"github.com/google/uuid"
)

func TestRecipientStatus(t *testing.T) {
	tests := []struct {
		name     string
		answered int
		total    int
		want     string
	}{
		{"no answers", 0, 3, StatusNone},
		{"some answers", 1, 3, StatusPartial},
		{"all answered", 3, 3, StatusComplete},
		{"over-answered legacy rows", 4, 3, StatusComplete},
		{"empty set", 0, 0, StatusNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := recipientStatus(tt.answered, tt.total); got != tt.want {
				t.Fatalf("recipientStatus(%d, %d) = %q, want %q", tt.answered, tt.total, got, tt.want)
			}
		})
	}
}

func TestSetOwnedBy(t *testing.T) {
	owner := uuid.New()
	set := &QuestionSet{ID: uuid.New(), OwnerID: owner}

	if !setOwnedBy(set, owner) {
		t.Fatal("owner should pass the ownership check")
	}
	if setOwnedBy(set, uuid.New()) {
		t.Fatal("someone else's set must not pass the ownership check")
	}
	if setOwnedBy(nil, owner) {
		t.Fatal("missing set must not pass the ownership check")
	}
}
