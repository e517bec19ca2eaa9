package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// reminderMaxCount is the lifetime cap per recipient. Hard stop, not
	// configurable per call.
	reminderMaxCount = 2

	// reminderMinAge is how old a send event must be before its unanswered
	// recipients become reminder candidates.
	reminderMinAge = 7 * 24 * time.Hour
)

// ReminderCandidate is one recipient due a reminder, with everything the
// notification payload needs.
type ReminderCandidate struct {
	Recipient          Recipient
	RequestCreatedAt   time.Time
	AskerID            uuid.UUID
	AnswerCount        int
	RemainingQuestions []string
}

// reminderEligible applies the sweep policy to one candidate: active, no
// answers yet, send event old enough, under the lifetime cap, and the last
// reminder older than the sweep interval so a same-day re-run cannot
// double-send.
func reminderEligible(c ReminderCandidate, now time.Time, interval time.Duration) bool {
	if !c.Recipient.Active || c.AnswerCount > 0 {
		return false
	}
	if c.Recipient.RemindersSent >= reminderMaxCount {
		return false
	}
	if now.Sub(c.RequestCreatedAt) < reminderMinAge {
		return false
	}
	if last := c.Recipient.LastReminderAt; last != nil && now.Sub(*last) < interval {
		return false
	}
	return true
}

// reminderStore is the persistence surface of the sweep.
type reminderStore interface {
	DueReminders(ctx context.Context, now time.Time, interval time.Duration) ([]ReminderCandidate, error)
	CandidateByID(ctx context.Context, recipientID uuid.UUID) (*ReminderCandidate, error)
	// ClaimReminder performs the conditional check-then-increment that is
	// the sole coordination point between concurrent sweepers. It reports
	// false when another instance already claimed this reminder.
	ClaimReminder(ctx context.Context, recipientID uuid.UUID, expectedCount int, staleBefore time.Time) (bool, error)
	// RevertReminder undoes a claimed increment after a failed send so the
	// reminder is retried on the next run instead of silently dropped.
	// lastReminderAt is the pre-claim timestamp; restoring it keeps the
	// interval guard's history for earlier successful sends.
	RevertReminder(ctx context.Context, recipientID uuid.UUID, lastReminderAt *time.Time) error
}

// Sweeper finds stale, unanswered recipients and triggers capped reminder
// notifications. Safe to run from multiple instances concurrently.
type Sweeper struct {
	store    reminderStore
	publish  func(ctx context.Context, c ReminderCandidate) error
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewSweeper constructs a Sweeper. interval is the sweep cadence and doubles
// as the same-run double-send guard.
func NewSweeper(store reminderStore, interval time.Duration, publish func(ctx context.Context, c ReminderCandidate) error, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Sweeper{
		store:    store,
		publish:  publish,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// Sweep runs one pass and returns how many reminders were sent. Send
// failures are logged and left for the next run; they never block the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()

	candidates, err := s.store.DueReminders(ctx, now, s.interval)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, candidate := range candidates {
		if !reminderEligible(candidate, now, s.interval) {
			continue
		}
		ok, err := s.remind(ctx, candidate, now)
		if err != nil {
			s.logger.Error().Err(err).
				Str("recipient_id", candidate.Recipient.ID.String()).
				Msg("reminder send failed")
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

// RemindOne triggers a reminder for a single recipient outside the periodic
// sweep. The lifetime cap and the interval guard still apply; only the
// request-age requirement is waived.
func (s *Sweeper) RemindOne(ctx context.Context, recipientID uuid.UUID) (bool, error) {
	candidate, err := s.store.CandidateByID(ctx, recipientID)
	if err != nil {
		return false, err
	}
	if candidate == nil {
		return false, ErrNotFound
	}

	now := s.now()
	aged := *candidate
	aged.RequestCreatedAt = now.Add(-reminderMinAge)
	if !reminderEligible(aged, now, s.interval) {
		return false, nil
	}
	return s.remind(ctx, *candidate, now)
}

func (s *Sweeper) remind(ctx context.Context, candidate ReminderCandidate, now time.Time) (bool, error) {
	claimed, err := s.store.ClaimReminder(ctx, candidate.Recipient.ID, candidate.Recipient.RemindersSent, now.Add(-s.interval))
	if err != nil {
		return false, err
	}
	if !claimed {
		// Another instance got here first within this window.
		return false, nil
	}

	if err := s.publish(ctx, candidate); err != nil {
		if revertErr := s.store.RevertReminder(ctx, candidate.Recipient.ID, candidate.Recipient.LastReminderAt); revertErr != nil {
			s.logger.Error().Err(revertErr).
				Str("recipient_id", candidate.Recipient.ID.String()).
				Msg("reminder counter revert failed")
		}
		return false, err
	}
	return true, nil
}

// Run executes Sweep on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sent, err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("reminder sweep failed")
			} else if sent > 0 {
				s.logger.Info().Int("sent", sent).Msg("reminder sweep complete")
			}
		}
	}
}
