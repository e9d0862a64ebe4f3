package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sandeepkv93/nagd/internal/model"
)

// NotificationHistory records notification events as rows in the
// notifications table.
type NotificationHistory struct {
	Repo  Repository
	Now   func() time.Time
	NewID func() string
}

func (h NotificationHistory) RecordNotification(ctx context.Context, ev model.NotificationEvent, delivered bool) error {
	newID := h.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	sentAt := ev.At
	if sentAt.IsZero() {
		if h.Now != nil {
			sentAt = h.Now()
		} else {
			sentAt = time.Now()
		}
	}
	return h.Repo.RecordNotification(ctx, NotificationRecord{
		ID:        newID(),
		Kind:      string(ev.Kind),
		Title:     ev.Title,
		Message:   ev.Message,
		TaskIDs:   ev.TaskIDs,
		SentAt:    sentAt,
		Delivered: delivered,
	})
}
