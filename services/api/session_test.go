package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type sessionStoreStub struct {
	recipientByToken    func(ctx context.Context, token string) (*Recipient, error)
	questionsForSet     func(ctx context.Context, setID uuid.UUID) ([]Question, error)
	answersForRecipient func(ctx context.Context, recipientID uuid.UUID) ([]Answer, error)
	answerFor           func(ctx context.Context, recipientID, questionID uuid.UUID) (*Answer, error)
	saveAnswer          func(ctx context.Context, answer *Answer, media []MediaAsset) error
	mediaByID           func(ctx context.Context, recipientID, mediaID uuid.UUID) (*MediaAsset, error)
	markMediaUploaded   func(ctx context.Context, mediaID uuid.UUID) error
}

func (s *sessionStoreStub) RecipientByToken(ctx context.Context, token string) (*Recipient, error) {
	return s.recipientByToken(ctx, token)
}

func (s *sessionStoreStub) QuestionsForSet(ctx context.Context, setID uuid.UUID) ([]Question, error) {
	return s.questionsForSet(ctx, setID)
}

func (s *sessionStoreStub) AnswersForRecipient(ctx context.Context, recipientID uuid.UUID) ([]Answer, error) {
	return s.answersForRecipient(ctx, recipientID)
}

func (s *sessionStoreStub) AnswerFor(ctx context.Context, recipientID, questionID uuid.UUID) (*Answer, error) {
	return s.answerFor(ctx, recipientID, questionID)
}

func (s *sessionStoreStub) SaveAnswer(ctx context.Context, answer *Answer, media []MediaAsset) error {
	return s.saveAnswer(ctx, answer, media)
}

func (s *sessionStoreStub) MediaByID(ctx context.Context, recipientID, mediaID uuid.UUID) (*MediaAsset, error) {
	return s.mediaByID(ctx, recipientID, mediaID)
}

func (s *sessionStoreStub) MarkMediaUploaded(ctx context.Context, mediaID uuid.UUID) error {
	return s.markMediaUploaded(ctx, mediaID)
}

func TestEditableAt(t *testing.T) {
	answered := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"immediately", answered, true},
		{"day six", answered.Add(6 * 24 * time.Hour), true},
		{"one second before expiry", answered.Add(7*24*time.Hour - time.Second), true},
		{"exactly at expiry", answered.Add(7 * 24 * time.Hour), false},
		{"day eight", answered.Add(8 * 24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := editableAt(answered, tt.now); got != tt.want {
				t.Fatalf("editableAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func sessionFixture() (*Session, *sessionStoreStub, *Recipient, Question) {
	rec := &Recipient{
		ID:         uuid.New(),
		SetID:      uuid.New(),
		IdentityID: uuid.New(),
		Token:      "token-1",
		Active:     true,
	}
	question := Question{ID: uuid.New(), SetID: rec.SetID, Text: "What was your first home like?"}

	store := &sessionStoreStub{
		recipientByToken: func(_ context.Context, token string) (*Recipient, error) {
			if token == rec.Token {
				return rec, nil
			}
			return nil, nil
		},
		questionsForSet: func(context.Context, uuid.UUID) ([]Question, error) {
			return []Question{question}, nil
		},
		answerFor: func(context.Context, uuid.UUID, uuid.UUID) (*Answer, error) {
			return nil, nil
		},
		saveAnswer: func(context.Context, *Answer, []MediaAsset) error { return nil },
	}

	session := NewSession(store, nil)
	session.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return session, store, rec, question
}

func TestSubmitRejectsUnknownToken(t *testing.T) {
	session, _, _, question := sessionFixture()

	_, err := session.Submit(context.Background(), "bogus", question.ID, SubmitInput{Body: "x"})
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestSubmitRejectsQuestionOutsideSet(t *testing.T) {
	session, _, _, _ := sessionFixture()

	_, err := session.Submit(context.Background(), "token-1", uuid.New(), SubmitInput{Body: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSubmitDefaultsDatePrecision(t *testing.T) {
	session, store, _, question := sessionFixture()

	var saved *Answer
	store.saveAnswer = func(_ context.Context, answer *Answer, _ []MediaAsset) error {
		saved = answer
		return nil
	}

	date := time.Date(1964, 6, 1, 0, 0, 0, 0, time.UTC)
	result, err := session.Submit(context.Background(), "token-1", question.ID, SubmitInput{
		Body:       "We lived above the bakery.",
		AnswerDate: &date,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if saved.DatePrecision != PrecisionExact {
		t.Fatalf("precision = %q, want %q", saved.DatePrecision, PrecisionExact)
	}
	if !result.Answer.Editable {
		t.Fatal("fresh answer should be editable")
	}
}

func TestSubmitRejectsUnknownPrecision(t *testing.T) {
	session, _, _, question := sessionFixture()

	_, err := session.Submit(context.Background(), "token-1", question.ID, SubmitInput{
		Body:          "x",
		DatePrecision: "fortnight",
	})
	if _, ok := AsValidationError(err); !ok {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestSubmitEditKeepsOriginalSubmissionTime(t *testing.T) {
	session, store, rec, question := sessionFixture()

	firstAnswered := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)
	existing := &Answer{
		ID:          uuid.New(),
		RecipientID: rec.ID,
		QuestionID:  question.ID,
		Body:        "first version",
		AnsweredAt:  firstAnswered,
	}
	store.answerFor = func(context.Context, uuid.UUID, uuid.UUID) (*Answer, error) {
		return existing, nil
	}

	var saved *Answer
	store.saveAnswer = func(_ context.Context, answer *Answer, _ []MediaAsset) error {
		saved = answer
		return nil
	}

	_, err := session.Submit(context.Background(), "token-1", question.ID, SubmitInput{Body: "second version"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if saved.ID != existing.ID {
		t.Fatalf("edit created a new answer row")
	}
	if !saved.AnsweredAt.Equal(firstAnswered) {
		t.Fatalf("answered_at = %v, want original %v", saved.AnsweredAt, firstAnswered)
	}
	if saved.Body != "second version" {
		t.Fatalf("body = %q", saved.Body)
	}
}

func TestSubmitRejectsEditAfterWindow(t *testing.T) {
	session, store, rec, question := sessionFixture()

	// Answered eight days before the fixture's clock.
	stale := &Answer{
		ID:          uuid.New(),
		RecipientID: rec.ID,
		QuestionID:  question.ID,
		AnsweredAt:  session.now().Add(-8 * 24 * time.Hour),
	}
	store.answerFor = func(context.Context, uuid.UUID, uuid.UUID) (*Answer, error) {
		return stale, nil
	}
	store.saveAnswer = func(context.Context, *Answer, []MediaAsset) error {
		t.Fatal("save must not be reached for a closed window")
		return nil
	}

	_, err := session.Submit(context.Background(), "token-1", question.ID, SubmitInput{Body: "too late"})
	if !errors.Is(err, ErrEditWindowClosed) {
		t.Fatalf("err = %v, want ErrEditWindowClosed", err)
	}

	// Reading still works and reports the answer as locked.
	got, err := session.ReadAnswer(context.Background(), "token-1", question.ID)
	if err != nil {
		t.Fatalf("ReadAnswer() error = %v", err)
	}
	if got == nil || got.Editable {
		t.Fatalf("got %+v, want locked answer", got)
	}
}

func TestOutstandingPairsAnswersWithQuestions(t *testing.T) {
	session, store, rec, question := sessionFixture()

	second := Question{ID: uuid.New(), SetID: rec.SetID, Text: "Who taught you to cook?"}
	store.questionsForSet = func(context.Context, uuid.UUID) ([]Question, error) {
		return []Question{question, second}, nil
	}
	store.answersForRecipient = func(context.Context, uuid.UUID) ([]Answer, error) {
		return []Answer{{
			ID:         uuid.New(),
			QuestionID: question.ID,
			Body:       "done",
			AnsweredAt: session.now().Add(-time.Hour),
		}}, nil
	}

	got, out, err := session.Outstanding(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("Outstanding() error = %v", err)
	}
	if got.ID != rec.ID {
		t.Fatalf("recipient = %v, want %v", got.ID, rec.ID)
	}
	if len(out) != 2 {
		t.Fatalf("got %d questions, want 2", len(out))
	}
	if out[0].Answer == nil || !out[0].Answer.Editable {
		t.Fatalf("first question should carry an editable answer, got %+v", out[0].Answer)
	}
	if out[1].Answer != nil {
		t.Fatalf("second question should be unanswered")
	}
}

func TestMediaAddressKeyIsIdentityStable(t *testing.T) {
	owner := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	content := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	file := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	want := "memories/11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222/33333333-3333-3333-3333-333333333333"
	if got := mediaAddressKey(owner, content, file); got != want {
		t.Fatalf("mediaAddressKey() = %q, want %q", got, want)
	}
}
