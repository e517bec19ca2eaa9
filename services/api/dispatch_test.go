package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type dispatchStoreStub struct {
	setByID         func(ctx context.Context, setID uuid.UUID) (*QuestionSet, error)
	activeRecipient func(ctx context.Context, setID uuid.UUID, emailNormalized string) (*Recipient, error)
	resolveIdentity func(ctx context.Context, email string) (Identity, error)
	createRequest   func(ctx context.Context, req *QuestionRequest) error
	createRecipient func(ctx context.Context, rec *Recipient) error
	inTransaction   func(ctx context.Context, fn func(tx dispatchStore) error) error
}

func (s *dispatchStoreStub) SetByID(ctx context.Context, setID uuid.UUID) (*QuestionSet, error) {
	return s.setByID(ctx, setID)
}

func (s *dispatchStoreStub) ActiveRecipient(ctx context.Context, setID uuid.UUID, emailNormalized string) (*Recipient, error) {
	return s.activeRecipient(ctx, setID, emailNormalized)
}

func (s *dispatchStoreStub) ResolveIdentity(ctx context.Context, email string) (Identity, error) {
	return s.resolveIdentity(ctx, email)
}

func (s *dispatchStoreStub) CreateRequest(ctx context.Context, req *QuestionRequest) error {
	return s.createRequest(ctx, req)
}

func (s *dispatchStoreStub) CreateRecipient(ctx context.Context, rec *Recipient) error {
	return s.createRecipient(ctx, rec)
}

func (s *dispatchStoreStub) InTransaction(ctx context.Context, fn func(tx dispatchStore) error) error {
	if s.inTransaction != nil {
		return s.inTransaction(ctx, fn)
	}
	return fn(s)
}

func newTestDispatcher(store dispatchStore) *Dispatcher {
	d := NewDispatcher(store)
	d.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return d
}

func TestValidateRecipients(t *testing.T) {
	tests := []struct {
		name       string
		inputs     []RecipientInput
		wantRows   int
		wantReason string
	}{
		{
			name:   "valid batch",
			inputs: []RecipientInput{{Email: "a@example.com"}, {Email: "b@example.com"}},
		},
		{
			name:       "missing email",
			inputs:     []RecipientInput{{Alias: "Grandma"}},
			wantRows:   1,
			wantReason: "email is required",
		},
		{
			name:       "invalid email",
			inputs:     []RecipientInput{{Email: "not-an-email"}},
			wantRows:   1,
			wantReason: "email is not valid",
		},
		{
			name:       "duplicate emails differ only by case",
			inputs:     []RecipientInput{{Email: "a@example.com"}, {Email: "A@Example.com"}},
			wantRows:   1,
			wantReason: "duplicates row 0",
		},
		{
			name: "all failures reported at once",
			inputs: []RecipientInput{
				{Email: ""},
				{Email: "bad"},
				{Email: "ok@example.com"},
				{Email: "ok@example.com"},
			},
			wantRows: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ve := validateRecipients(tt.inputs)
			if tt.wantRows == 0 {
				if ve != nil {
					t.Fatalf("validateRecipients() = %v, want nil", ve)
				}
				return
			}
			if ve == nil {
				t.Fatal("validateRecipients() = nil, want error")
			}
			if len(ve.Rows) != tt.wantRows {
				t.Fatalf("got %d rows, want %d: %v", len(ve.Rows), tt.wantRows, ve)
			}
			if tt.wantReason != "" && ve.Rows[0].Reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q", ve.Rows[0].Reason, tt.wantReason)
			}
		})
	}
}

func TestDispatchRejectsWholeBatch(t *testing.T) {
	created := 0
	store := &dispatchStoreStub{
		createRequest: func(context.Context, *QuestionRequest) error {
			created++
			return nil
		},
	}
	d := newTestDispatcher(store)

	_, err := d.Dispatch(context.Background(), uuid.New(), uuid.New(), "", []RecipientInput{
		{Email: "ok@example.com"},
		{Email: "broken"},
	})
	if _, ok := AsValidationError(err); !ok {
		t.Fatalf("err = %v, want validation error", err)
	}
	if created != 0 {
		t.Fatalf("request created despite invalid batch")
	}
}

func TestDispatchOwnershipAndArchival(t *testing.T) {
	owner := uuid.New()
	setID := uuid.New()
	archivedAt := time.Now().UTC()

	tests := []struct {
		name    string
		set     *QuestionSet
		asker   uuid.UUID
		wantErr error
	}{
		{
			name:    "unknown set",
			set:     nil,
			asker:   owner,
			wantErr: ErrNotFound,
		},
		{
			name:    "someone else's set",
			set:     &QuestionSet{ID: setID, OwnerID: owner},
			asker:   uuid.New(),
			wantErr: ErrNotFound,
		},
		{
			name:    "archived set",
			set:     &QuestionSet{ID: setID, OwnerID: owner, ArchivedAt: &archivedAt},
			asker:   owner,
			wantErr: ErrSetArchived,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &dispatchStoreStub{
				setByID: func(context.Context, uuid.UUID) (*QuestionSet, error) {
					return tt.set, nil
				},
			}
			d := newTestDispatcher(store)
			_, err := d.Dispatch(context.Background(), tt.asker, setID, "", []RecipientInput{{Email: "a@example.com"}})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDispatchReusesActiveToken(t *testing.T) {
	owner := uuid.New()
	setID := uuid.New()
	existing := &Recipient{
		ID:              uuid.New(),
		SetID:           setID,
		Email:           "rose@example.com",
		EmailNormalized: "rose@example.com",
		Token:           "existing-token",
		Active:          true,
	}

	store := &dispatchStoreStub{
		setByID: func(context.Context, uuid.UUID) (*QuestionSet, error) {
			return &QuestionSet{ID: setID, OwnerID: owner}, nil
		},
		activeRecipient: func(_ context.Context, _ uuid.UUID, email string) (*Recipient, error) {
			if email == existing.EmailNormalized {
				return existing, nil
			}
			return nil, nil
		},
		resolveIdentity: func(_ context.Context, email string) (Identity, error) {
			return Identity{ID: uuid.New(), Email: email}, nil
		},
		createRequest:   func(context.Context, *QuestionRequest) error { return nil },
		createRecipient: func(context.Context, *Recipient) error { return nil },
	}
	d := newTestDispatcher(store)

	result, err := d.Dispatch(context.Background(), owner, setID, "hello", []RecipientInput{
		{Email: "Rose@Example.com"},
		{Email: "new@example.com"},
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(result.Recipients) != 2 {
		t.Fatalf("got %d recipients, want 2", len(result.Recipients))
	}

	reused := result.Recipients[0]
	if !reused.Reused || reused.Token != "existing-token" {
		t.Fatalf("first entry = %+v, want reuse of existing token", reused)
	}
	minted := result.Recipients[1]
	if minted.Reused || minted.Token == "" || minted.Token == "existing-token" {
		t.Fatalf("second entry = %+v, want fresh token", minted)
	}
}

func TestDispatchBatchIsTransactional(t *testing.T) {
	owner := uuid.New()
	setID := uuid.New()

	inTx := false
	created := 0
	store := &dispatchStoreStub{
		setByID: func(context.Context, uuid.UUID) (*QuestionSet, error) {
			return &QuestionSet{ID: setID, OwnerID: owner}, nil
		},
		activeRecipient: func(context.Context, uuid.UUID, string) (*Recipient, error) {
			return nil, nil
		},
		resolveIdentity: func(_ context.Context, email string) (Identity, error) {
			return Identity{ID: uuid.New(), Email: email}, nil
		},
		createRequest: func(context.Context, *QuestionRequest) error {
			if !inTx {
				t.Fatal("request created outside the batch transaction")
			}
			return nil
		},
		createRecipient: func(context.Context, *Recipient) error {
			if !inTx {
				t.Fatal("recipient created outside the batch transaction")
			}
			created++
			if created == 2 {
				return errors.New("connection reset")
			}
			return nil
		},
	}
	store.inTransaction = func(ctx context.Context, fn func(tx dispatchStore) error) error {
		inTx = true
		defer func() { inTx = false }()
		return fn(store)
	}
	d := newTestDispatcher(store)

	_, err := d.Dispatch(context.Background(), owner, setID, "", []RecipientInput{
		{Email: "a@example.com"},
		{Email: "b@example.com"},
	})
	if err == nil {
		t.Fatal("Dispatch() = nil, want the mid-batch error to surface")
	}
	if created != 2 {
		t.Fatalf("created = %d, want the loop to stop at the failing entry", created)
	}
}

func TestDispatchLostRaceFallsBackToReuse(t *testing.T) {
	owner := uuid.New()
	setID := uuid.New()
	winner := &Recipient{ID: uuid.New(), SetID: setID, Token: "winner-token", Active: true}

	lookups := 0
	store := &dispatchStoreStub{
		setByID: func(context.Context, uuid.UUID) (*QuestionSet, error) {
			return &QuestionSet{ID: setID, OwnerID: owner}, nil
		},
		activeRecipient: func(context.Context, uuid.UUID, string) (*Recipient, error) {
			lookups++
			// First lookup sees nothing; a concurrent dispatch lands before
			// our insert, so the retry finds the winner.
			if lookups == 1 {
				return nil, nil
			}
			return winner, nil
		},
		resolveIdentity: func(_ context.Context, email string) (Identity, error) {
			return Identity{ID: uuid.New(), Email: email}, nil
		},
		createRequest: func(context.Context, *QuestionRequest) error { return nil },
		createRecipient: func(context.Context, *Recipient) error {
			return errDuplicateRecipient
		},
	}
	d := newTestDispatcher(store)

	result, err := d.Dispatch(context.Background(), owner, setID, "", []RecipientInput{{Email: "rose@example.com"}})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	got := result.Recipients[0]
	if !got.Reused || got.Token != "winner-token" {
		t.Fatalf("got %+v, want reuse of the winner's token", got)
	}
}
