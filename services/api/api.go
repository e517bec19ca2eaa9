package api

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"

	"hearthside/pkg/ratelimit"
)

const (
	inviteTopic   = "hearthside.notify.invite"
	reminderTopic = "hearthside.notify.reminder"
	claimsTopic   = "hearthside.claims.completed"

	defaultReminderInterval  = 24 * time.Hour
	defaultManualRemindLimit = 5
	manualRemindWindow       = 24 * time.Hour
)

// Config controls runtime behaviour for the API handlers.
type Config struct {
	APIBase           string
	MediaBucket       string
	AllowedOrigins    []string
	ReminderInterval  time.Duration
	ManualRemindLimit int
}

// API wires the domain services, dependencies, and configuration for the
// HTTP layer.
type API struct {
	store      *Store
	config     Config
	logger     zerolog.Logger
	gdb        *gormStore
	dispatcher *Dispatcher
	session    *Session
	claims     *ClaimService
	sweeper    *Sweeper
	reporter   *Reporter
	media      *MediaService
	limiter    *ratelimit.Counter
}

// New initialises the API layer with sane defaults applied to the provided
// configuration.
func New(store *Store, cfg Config, logger zerolog.Logger) (*API, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if store.ORM == nil {
		return nil, errors.New("store ORM is required")
	}
	if store.DB == nil {
		return nil, errors.New("store DB is required")
	}

	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = defaultReminderInterval
	}
	if cfg.ManualRemindLimit <= 0 {
		cfg.ManualRemindLimit = defaultManualRemindLimit
	}
	if cfg.MediaBucket == "" {
		cfg.MediaBucket = os.Getenv("S3_BUCKET")
	}
	if cfg.MediaBucket == "" {
		return nil, errors.New("media bucket is required")
	}

	media, err := NewMediaService(store.S3, cfg.MediaBucket)
	if err != nil {
		return nil, err
	}

	gdb := newGormStore(store.ORM)

	a := &API{
		store:    store,
		config:   cfg,
		logger:   logger,
		gdb:      gdb,
		media:    media,
		reporter: NewReporter(store.DB),
		limiter:  ratelimit.New(store.DB),
	}
	a.dispatcher = NewDispatcher(gdb)
	a.session = NewSession(gdb, media)
	a.claims = NewClaimService(gdb)
	a.sweeper = NewSweeper(gdb, cfg.ReminderInterval, a.publishReminder, logger)

	return a, nil
}

// Sweeper exposes the reminder scheduler so the entrypoint can run it on a
// ticker.
func (a *API) Sweeper() *Sweeper {
	return a.sweeper
}

func (a *API) publishReminder(ctx context.Context, c ReminderCandidate) error {
	return a.publishJSON(ctx, reminderTopic, map[string]any{
		"recipient_email": c.Recipient.Email,
		"token":           c.Recipient.Token,
		"preview":         questionPreview(c.RemainingQuestions),
	})
}
