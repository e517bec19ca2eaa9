package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecipientInput is one entry of an inbound dispatch batch.
type RecipientInput struct {
	Email string `json:"email"`
	Alias string `json:"alias,omitempty"`
}

// DispatchedRecipient reports the outcome for one batch entry. Reused tells
// the caller whether to send a fresh notification or surface the existing
// link.
type DispatchedRecipient struct {
	Recipient Recipient `json:"recipient"`
	Token     string    `json:"token"`
	Reused    bool      `json:"reused"`
}

// DispatchResult is the full outcome of one send event.
type DispatchResult struct {
	Request    QuestionRequest       `json:"request"`
	Recipients []DispatchedRecipient `json:"recipients"`
}

// dispatchStore is the persistence surface the dispatcher needs.
type dispatchStore interface {
	// SetByID returns the set, or nil when no such set exists.
	SetByID(ctx context.Context, setID uuid.UUID) (*QuestionSet, error)
	// ActiveRecipient returns the live recipient for (set, normalized
	// email), or nil when none exists.
	ActiveRecipient(ctx context.Context, setID uuid.UUID, emailNormalized string) (*Recipient, error)
	// ResolveIdentity returns the identity for the email, provisioning a
	// placeholder when the address has never been seen.
	ResolveIdentity(ctx context.Context, email string) (Identity, error)
	CreateRequest(ctx context.Context, req *QuestionRequest) error
	// CreateRecipient persists a new recipient, returning
	// errDuplicateRecipient when the active-dedup constraint fires.
	CreateRecipient(ctx context.Context, rec *Recipient) error
	// InTransaction runs fn against a store bound to one transaction. A
	// failure anywhere in the batch leaves no partial send event behind.
	InTransaction(ctx context.Context, fn func(tx dispatchStore) error) error
}

// Dispatcher turns a question set plus a recipient list into a tokenized
// send event, reusing live tokens per (set, email).
type Dispatcher struct {
	store    dispatchStore
	now      func() time.Time
	newToken func() string
}

// NewDispatcher constructs a Dispatcher bound to the provided store.
func NewDispatcher(store dispatchStore) *Dispatcher {
	return &Dispatcher{
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: func() string { return uuid.New().String() },
	}
}

// validateRecipients checks the whole batch up front. Email is mandatory;
// alias-only entries are a legacy shape that can no longer be created.
func validateRecipients(inputs []RecipientInput) *ValidationError {
	var rows []RowError
	seen := make(map[string]int, len(inputs))

	for i, input := range inputs {
		email := normalizeEmail(input.Email)
		switch {
		case email == "":
			rows = append(rows, RowError{Index: i, Reason: "email is required"})
		case !validEmail(input.Email):
			rows = append(rows, RowError{Index: i, Email: input.Email, Reason: "email is not valid"})
		default:
			if first, dup := seen[email]; dup {
				rows = append(rows, RowError{Index: i, Email: input.Email, Reason: fmt.Sprintf("duplicates row %d", first)})
			} else {
				seen[email] = i
			}
		}
	}

	if len(rows) > 0 {
		return &ValidationError{Rows: rows}
	}
	return nil
}

// Dispatch creates one send event for the set and resolves a token for every
// recipient. The batch is rejected atomically on validation failure.
func (d *Dispatcher) Dispatch(ctx context.Context, askerID, setID uuid.UUID, message string, inputs []RecipientInput) (*DispatchResult, error) {
	if len(inputs) == 0 {
		return nil, &ValidationError{Rows: []RowError{{Index: 0, Reason: "at least one recipient is required"}}}
	}
	if ve := validateRecipients(inputs); ve != nil {
		return nil, ve
	}

	set, err := d.store.SetByID(ctx, setID)
	if err != nil {
		return nil, err
	}
	if set == nil || set.OwnerID != askerID {
		return nil, ErrNotFound
	}
	if set.ArchivedAt != nil {
		return nil, ErrSetArchived
	}

	request := QuestionRequest{
		ID:        uuid.New(),
		SetID:     setID,
		AskerID:   askerID,
		Message:   message,
		CreatedAt: d.now(),
	}

	// The request row and every recipient row commit together; an
	// infrastructure error mid-batch must not leave a half-dispatched send
	// event.
	results := make([]DispatchedRecipient, 0, len(inputs))
	err = d.store.InTransaction(ctx, func(tx dispatchStore) error {
		if err := tx.CreateRequest(ctx, &request); err != nil {
			return err
		}
		for _, input := range inputs {
			dispatched, err := d.resolveRecipient(ctx, tx, request, input)
			if err != nil {
				return err
			}
			results = append(results, dispatched)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &DispatchResult{Request: request, Recipients: results}, nil
}

// resolveRecipient applies the reuse-or-mint decision for a single entry.
func (d *Dispatcher) resolveRecipient(ctx context.Context, tx dispatchStore, request QuestionRequest, input RecipientInput) (DispatchedRecipient, error) {
	emailNorm := normalizeEmail(input.Email)

	existing, err := tx.ActiveRecipient(ctx, request.SetID, emailNorm)
	if err != nil {
		return DispatchedRecipient{}, err
	}
	if existing != nil {
		return DispatchedRecipient{Recipient: *existing, Token: existing.Token, Reused: true}, nil
	}

	// Bind the identity before the first write so every answer and upload
	// has a stable owner from the first moment.
	identity, err := tx.ResolveIdentity(ctx, input.Email)
	if err != nil {
		return DispatchedRecipient{}, err
	}

	recipient := Recipient{
		ID:              uuid.New(),
		RequestID:       request.ID,
		SetID:           request.SetID,
		Email:           input.Email,
		EmailNormalized: emailNorm,
		Alias:           input.Alias,
		Token:           d.newToken(),
		IdentityID:      identity.ID,
		Active:          true,
		CreatedAt:       d.now(),
	}

	err = tx.CreateRecipient(ctx, &recipient)
	switch {
	case errors.Is(err, errDuplicateRecipient):
		// Lost the race to a concurrent dispatch: the winner's recipient is
		// the live one, so fall back to reuse.
		winner, lookupErr := tx.ActiveRecipient(ctx, request.SetID, emailNorm)
		if lookupErr != nil {
			return DispatchedRecipient{}, lookupErr
		}
		if winner == nil {
			return DispatchedRecipient{}, err
		}
		return DispatchedRecipient{Recipient: *winner, Token: winner.Token, Reused: true}, nil
	case err != nil:
		return DispatchedRecipient{}, err
	}

	return DispatchedRecipient{Recipient: recipient, Token: recipient.Token, Reused: false}, nil
}
