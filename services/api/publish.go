package api

import (
	"context"
	"strings"
)

// publishJSON emits a notification event. Delivery is fire-and-forget: a
// failed publish is logged and never fails the request, and the notification
// service owns retries.
func (a *API) publishJSON(ctx context.Context, subject string, payload map[string]any) error {
	if a.store.Bus == nil || subject == "" {
		return nil
	}
	if err := a.store.Bus.Publish(ctx, subject, payload); err != nil {
		a.logger.Error().Err(err).Str("subject", subject).Msg("publish failed")
		return err
	}
	return nil
}

// questionPreview renders a short teaser of the remaining questions for
// reminder notifications.
func questionPreview(questions []string) string {
	const maxPreview = 2
	if len(questions) == 0 {
		return ""
	}
	if len(questions) <= maxPreview {
		return strings.Join(questions, " · ")
	}
	return strings.Join(questions[:maxPreview], " · ") + " …"
}
