package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"hearthside/pkg/db"
)

// recipientStatus derives the none/partial/complete marker from answered
// versus total question counts.
func recipientStatus(answered, total int) string {
	switch {
	case answered <= 0:
		return StatusNone
	case answered >= total && total > 0:
		return StatusComplete
	default:
		return StatusPartial
	}
}

// setOwnedBy reports whether the set exists and belongs to the asker.
// Missing and foreign sets look the same to the caller.
func setOwnedBy(set *QuestionSet, askerID uuid.UUID) bool {
	return set != nil && set.OwnerID == askerID
}

// Reporter computes cross-send, cross-recipient response statistics for the
// asker's dashboard. The aggregation runs as raw SQL against the pool; the
// many-to-many joins are cheaper to express and tune there than through the
// ORM.
type Reporter struct {
	pool *pgxpool.Pool
}

// NewReporter constructs a Reporter using the provided pool.
func NewReporter(pool *pgxpool.Pool) *Reporter {
	return &Reporter{pool: pool}
}

type setSummaryRow struct {
	ID                 uuid.UUID  `db:"id"`
	OwnerIdentityID    uuid.UUID  `db:"owner_identity_id"`
	Name               string     `db:"name"`
	ArchivedAt         *time.Time `db:"archived_at"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
	TotalRecipients    int        `db:"total_recipients"`
	AnsweredRecipients int        `db:"answered_recipients"`
	LastActivityAt     *time.Time `db:"last_activity_at"`
	TotalQuestions     int        `db:"total_questions"`
}

// UnifiedSets returns one summary row per set the user authored. Recipients
// are counted by bound identity so a person re-invited after deactivation is
// not counted twice. Draft sets, which have no activity, sort last.
func (r *Reporter) UnifiedSets(ctx context.Context, ownerID uuid.UUID) ([]SetSummary, error) {
	query := `
        SELECT
            s.id, s.owner_identity_id, s.name, s.archived_at, s.created_at, s.updated_at,
            COUNT(DISTINCT rec.identity_id) AS total_recipients,
            COUNT(DISTINCT CASE WHEN a.id IS NOT NULL THEN rec.identity_id END) AS answered_recipients,
            GREATEST(MAX(a.answered_at), MAX(req.created_at)) AS last_activity_at,
            (SELECT COUNT(*) FROM questions q WHERE q.set_id = s.id) AS total_questions
        FROM question_sets s
        LEFT JOIN question_requests req ON req.set_id = s.id
        LEFT JOIN recipients rec ON rec.request_id = req.id
        LEFT JOIN answers a ON a.recipient_id = rec.id
        WHERE s.owner_identity_id = $1
        GROUP BY s.id
        ORDER BY last_activity_at DESC NULLS LAST, s.created_at DESC;
    `

	var rows []setSummaryRow
	if err := db.Select(ctx, r.pool, &rows, query, ownerID); err != nil {
		return nil, err
	}

	summaries := make([]SetSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, SetSummary{
			Set: QuestionSet{
				ID:         row.ID,
				OwnerID:    row.OwnerIdentityID,
				Name:       row.Name,
				ArchivedAt: row.ArchivedAt,
				CreatedAt:  row.CreatedAt,
				UpdatedAt:  row.UpdatedAt,
			},
			TotalRecipients:    row.TotalRecipients,
			AnsweredRecipients: row.AnsweredRecipients,
			LastActivityAt:     row.LastActivityAt,
			TotalQuestions:     row.TotalQuestions,
		})
	}
	return summaries, nil
}

type setDetailRow struct {
	RecipientID      uuid.UUID  `db:"recipient_id"`
	RequestID        uuid.UUID  `db:"request_id"`
	SetID            uuid.UUID  `db:"set_id"`
	Email            string     `db:"email"`
	Alias            string     `db:"alias"`
	IdentityID       uuid.UUID  `db:"identity_id"`
	Active           bool       `db:"active"`
	RemindersSent    int        `db:"reminders_sent"`
	LastReminderAt   *time.Time `db:"last_reminder_at"`
	RecipientCreated time.Time  `db:"recipient_created_at"`
	AskerIdentityID  uuid.UUID  `db:"asker_identity_id"`
	Message          string     `db:"message"`
	RequestCreatedAt time.Time  `db:"request_created_at"`
	IdentityName     string     `db:"identity_name"`
	ProfileCompleted bool       `db:"profile_completed"`
	AnsweredCount    int        `db:"answered_count"`
	TotalQuestions   int        `db:"total_questions"`
}

// SetDetail groups the set's recipients by originating send event, newest
// event first, with per-recipient completion status.
func (r *Reporter) SetDetail(ctx context.Context, setID uuid.UUID) ([]RequestGroup, error) {
	query := `
        SELECT
            rec.id AS recipient_id, rec.request_id, rec.set_id, rec.email, rec.alias,
            rec.identity_id, rec.active, rec.reminders_sent, rec.last_reminder_at,
            rec.created_at AS recipient_created_at,
            req.asker_identity_id, req.message, req.created_at AS request_created_at,
            i.name AS identity_name, i.profile_completed,
            (SELECT COUNT(*) FROM answers a WHERE a.recipient_id = rec.id) AS answered_count,
            (SELECT COUNT(*) FROM questions q WHERE q.set_id = rec.set_id) AS total_questions
        FROM recipients rec
        JOIN question_requests req ON req.id = rec.request_id
        JOIN identities i ON i.id = rec.identity_id
        WHERE req.set_id = $1
        ORDER BY req.created_at DESC, rec.created_at ASC;
    `

	var rows []setDetailRow
	if err := db.Select(ctx, r.pool, &rows, query, setID); err != nil {
		return nil, err
	}

	var groups []RequestGroup
	index := make(map[uuid.UUID]int)
	for _, row := range rows {
		idx, ok := index[row.RequestID]
		if !ok {
			groups = append(groups, RequestGroup{
				Request: QuestionRequest{
					ID:        row.RequestID,
					SetID:     row.SetID,
					AskerID:   row.AskerIdentityID,
					Message:   row.Message,
					CreatedAt: row.RequestCreatedAt,
				},
			})
			idx = len(groups) - 1
			index[row.RequestID] = idx
		}

		identity := Identity{
			ID:               row.IdentityID,
			Name:             row.IdentityName,
			ProfileCompleted: row.ProfileCompleted,
		}
		recipient := Recipient{
			ID:             row.RecipientID,
			RequestID:      row.RequestID,
			SetID:          row.SetID,
			Email:          row.Email,
			Alias:          row.Alias,
			IdentityID:     row.IdentityID,
			Active:         row.Active,
			RemindersSent:  row.RemindersSent,
			LastReminderAt: row.LastReminderAt,
			CreatedAt:      row.RecipientCreated,
		}

		groups[idx].Recipients = append(groups[idx].Recipients, RecipientStatus{
			Recipient:     recipient,
			DisplayName:   displayNameFor(row.Alias, &identity, row.Email),
			AnsweredCount: row.AnsweredCount,
			TotalCount:    row.TotalQuestions,
			Status:        recipientStatus(row.AnsweredCount, row.TotalQuestions),
		})
	}
	return groups, nil
}
