package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidToken covers tokens that are absent, unknown, or belong to a
	// deactivated recipient. Handlers surface it as a generic "link not
	// found" so the endpoint cannot be used to enumerate tokens.
	ErrInvalidToken = errors.New("link not found")

	// ErrEditWindowClosed rejects mutation of an answer past its edit
	// window. Reads still succeed; the handler returns the stored answer
	// alongside this condition.
	ErrEditWindowClosed = errors.New("answer can no longer be edited")

	// ErrSetArchived rejects new dispatches from an archived set. Existing
	// tokens stay valid.
	ErrSetArchived = errors.New("question set is archived")

	// ErrNotFound is the generic missing-entity error for authenticated
	// surfaces.
	ErrNotFound = errors.New("not found")

	// errDuplicateRecipient signals a dispatch race lost to a concurrent
	// writer. Internal only: the dispatcher converts it into a reuse lookup
	// and the caller never sees it.
	errDuplicateRecipient = errors.New("recipient already active for this set and email")
)

// RowError names one invalid entry in a recipient batch.
type RowError struct {
	Index  int    `json:"index"`
	Email  string `json:"email,omitempty"`
	Reason string `json:"reason"`
}

// ValidationError rejects a whole recipient batch. No partial batch is ever
// committed; the rows identify every offending entry at once.
type ValidationError struct {
	Rows []RowError `json:"rows"`
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Rows) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Rows))
	for _, row := range e.Rows {
		parts = append(parts, fmt.Sprintf("row %d: %s", row.Index, row.Reason))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
