package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type reminderStoreStub struct {
	dueReminders   func(ctx context.Context, now time.Time, interval time.Duration) ([]ReminderCandidate, error)
	candidateByID  func(ctx context.Context, recipientID uuid.UUID) (*ReminderCandidate, error)
	claimReminder  func(ctx context.Context, recipientID uuid.UUID, expectedCount int, staleBefore time.Time) (bool, error)
	revertReminder func(ctx context.Context, recipientID uuid.UUID, lastReminderAt *time.Time) error
}

func (s *reminderStoreStub) DueReminders(ctx context.Context, now time.Time, interval time.Duration) ([]ReminderCandidate, error) {
	return s.dueReminders(ctx, now, interval)
}

func (s *reminderStoreStub) CandidateByID(ctx context.Context, recipientID uuid.UUID) (*ReminderCandidate, error) {
	return s.candidateByID(ctx, recipientID)
}

func (s *reminderStoreStub) ClaimReminder(ctx context.Context, recipientID uuid.UUID, expectedCount int, staleBefore time.Time) (bool, error) {
	return s.claimReminder(ctx, recipientID, expectedCount, staleBefore)
}

func (s *reminderStoreStub) RevertReminder(ctx context.Context, recipientID uuid.UUID, lastReminderAt *time.Time) error {
	return s.revertReminder(ctx, recipientID, lastReminderAt)
}

func reminderFixtureCandidate(now time.Time) ReminderCandidate {
	return ReminderCandidate{
		Recipient: Recipient{
			ID:     uuid.New(),
			Email:  "rose@example.com",
			Token:  "token-1",
			Active: true,
		},
		RequestCreatedAt:   now.Add(-8 * 24 * time.Hour),
		AskerID:            uuid.New(),
		RemainingQuestions: []string{"What was your first home like?"},
	}
}

func TestReminderEligible(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	interval := 24 * time.Hour
	recent := now.Add(-time.Hour)
	dayOld := now.Add(-25 * time.Hour)

	tests := []struct {
		name   string
		mutate func(c *ReminderCandidate)
		want   bool
	}{
		{"eligible", func(*ReminderCandidate) {}, true},
		{"deactivated", func(c *ReminderCandidate) { c.Recipient.Active = false }, false},
		{"already answered", func(c *ReminderCandidate) { c.AnswerCount = 1 }, false},
		{"at lifetime cap", func(c *ReminderCandidate) { c.Recipient.RemindersSent = 2 }, false},
		{"over lifetime cap", func(c *ReminderCandidate) { c.Recipient.RemindersSent = 3 }, false},
		{"request too fresh", func(c *ReminderCandidate) { c.RequestCreatedAt = now.Add(-2 * 24 * time.Hour) }, false},
		{"reminded within interval", func(c *ReminderCandidate) { c.Recipient.LastReminderAt = &recent }, false},
		{"reminded before interval", func(c *ReminderCandidate) {
			c.Recipient.RemindersSent = 1
			c.Recipient.LastReminderAt = &dayOld
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := reminderFixtureCandidate(now)
			tt.mutate(&candidate)
			if got := reminderEligible(candidate, now, interval); got != tt.want {
				t.Fatalf("reminderEligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func newTestSweeper(store reminderStore, publish func(ctx context.Context, c ReminderCandidate) error) *Sweeper {
	s := NewSweeper(store, 24*time.Hour, publish, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestSweepSendsOnlyClaimedReminders(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	first := reminderFixtureCandidate(now)
	second := reminderFixtureCandidate(now)

	claims := map[uuid.UUID]bool{first.Recipient.ID: true, second.Recipient.ID: false}
	var published []uuid.UUID

	store := &reminderStoreStub{
		dueReminders: func(context.Context, time.Time, time.Duration) ([]ReminderCandidate, error) {
			return []ReminderCandidate{first, second}, nil
		},
		claimReminder: func(_ context.Context, recipientID uuid.UUID, _ int, _ time.Time) (bool, error) {
			// The second claim simulates another instance winning the
			// conditional update.
			return claims[recipientID], nil
		},
		revertReminder: func(context.Context, uuid.UUID, *time.Time) error {
			t.Fatal("revert must not run for successful sends")
			return nil
		},
	}
	sweeper := newTestSweeper(store, func(_ context.Context, c ReminderCandidate) error {
		published = append(published, c.Recipient.ID)
		return nil
	})

	sent, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if len(published) != 1 || published[0] != first.Recipient.ID {
		t.Fatalf("published = %v, want only the claimed recipient", published)
	}
}

func TestSweepSkipsIneligibleCandidates(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	capped := reminderFixtureCandidate(now)
	capped.Recipient.RemindersSent = 2

	store := &reminderStoreStub{
		dueReminders: func(context.Context, time.Time, time.Duration) ([]ReminderCandidate, error) {
			return []ReminderCandidate{capped}, nil
		},
		claimReminder: func(context.Context, uuid.UUID, int, time.Time) (bool, error) {
			t.Fatal("capped recipient must not be claimed")
			return false, nil
		},
	}
	sweeper := newTestSweeper(store, func(context.Context, ReminderCandidate) error { return nil })

	sent, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if sent != 0 {
		t.Fatalf("sent = %d, want 0", sent)
	}
}

func TestSweepRevertsCounterOnFailedSend(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	candidate := reminderFixtureCandidate(now)

	reverted := false
	store := &reminderStoreStub{
		dueReminders: func(context.Context, time.Time, time.Duration) ([]ReminderCandidate, error) {
			return []ReminderCandidate{candidate}, nil
		},
		claimReminder: func(context.Context, uuid.UUID, int, time.Time) (bool, error) {
			return true, nil
		},
		revertReminder: func(_ context.Context, recipientID uuid.UUID, _ *time.Time) error {
			if recipientID != candidate.Recipient.ID {
				t.Fatalf("reverted %v, want %v", recipientID, candidate.Recipient.ID)
			}
			reverted = true
			return nil
		},
	}
	sweeper := newTestSweeper(store, func(context.Context, ReminderCandidate) error {
		return errors.New("broker unavailable")
	})

	sent, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if sent != 0 {
		t.Fatalf("sent = %d, want 0", sent)
	}
	if !reverted {
		t.Fatal("failed send did not revert the reminder counter")
	}
}

func TestSweepRevertRestoresPriorReminderTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	candidate := reminderFixtureCandidate(now)

	// The first reminder already went out; this failed send must not erase
	// its timestamp.
	firstSentAt := now.Add(-25 * time.Hour)
	candidate.Recipient.RemindersSent = 1
	candidate.Recipient.LastReminderAt = &firstSentAt

	var restored *time.Time
	store := &reminderStoreStub{
		dueReminders: func(context.Context, time.Time, time.Duration) ([]ReminderCandidate, error) {
			return []ReminderCandidate{candidate}, nil
		},
		claimReminder: func(context.Context, uuid.UUID, int, time.Time) (bool, error) {
			return true, nil
		},
		revertReminder: func(_ context.Context, _ uuid.UUID, lastReminderAt *time.Time) error {
			restored = lastReminderAt
			return nil
		},
	}
	sweeper := newTestSweeper(store, func(context.Context, ReminderCandidate) error {
		return errors.New("broker unavailable")
	})

	if _, err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if restored == nil || !restored.Equal(firstSentAt) {
		t.Fatalf("revert restored %v, want the earlier send time %v", restored, firstSentAt)
	}
}

func TestRemindOneWaivesRequestAgeOnly(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	fresh := reminderFixtureCandidate(now)
	fresh.RequestCreatedAt = now.Add(-time.Hour)

	claimed := false
	store := &reminderStoreStub{
		candidateByID: func(context.Context, uuid.UUID) (*ReminderCandidate, error) {
			copied := fresh
			return &copied, nil
		},
		claimReminder: func(context.Context, uuid.UUID, int, time.Time) (bool, error) {
			claimed = true
			return true, nil
		},
	}
	sweeper := newTestSweeper(store, func(context.Context, ReminderCandidate) error { return nil })

	sent, err := sweeper.RemindOne(context.Background(), fresh.Recipient.ID)
	if err != nil {
		t.Fatalf("RemindOne() error = %v", err)
	}
	if !sent || !claimed {
		t.Fatalf("sent = %v, claimed = %v; manual remind should bypass the age requirement", sent, claimed)
	}
}

func TestRemindOneStillEnforcesCap(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	capped := reminderFixtureCandidate(now)
	capped.Recipient.RemindersSent = 2

	store := &reminderStoreStub{
		candidateByID: func(context.Context, uuid.UUID) (*ReminderCandidate, error) {
			copied := capped
			return &copied, nil
		},
		claimReminder: func(context.Context, uuid.UUID, int, time.Time) (bool, error) {
			t.Fatal("capped recipient must not be claimed")
			return false, nil
		},
	}
	sweeper := newTestSweeper(store, func(context.Context, ReminderCandidate) error { return nil })

	sent, err := sweeper.RemindOne(context.Background(), capped.Recipient.ID)
	if err != nil {
		t.Fatalf("RemindOne() error = %v", err)
	}
	if sent {
		t.Fatal("capped recipient received a manual reminder")
	}
}

func TestRemindOneUnknownRecipient(t *testing.T) {
	store := &reminderStoreStub{
		candidateByID: func(context.Context, uuid.UUID) (*ReminderCandidate, error) {
			return nil, nil
		},
	}
	sweeper := newTestSweeper(store, func(context.Context, ReminderCandidate) error { return nil })

	_, err := sweeper.RemindOne(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
