package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("storage: not found")

// Repository is append-only: journal entries and notification records are
// never updated once written.
type Repository interface {
	AppendJournalEntry(ctx context.Context, in JournalRecord) error
	GetJournalEntry(ctx context.Context, id string) (JournalRecord, error)
	ListJournalEntries(ctx context.Context, filter JournalListFilter) ([]JournalRecord, error)

	RecordNotification(ctx context.Context, in NotificationRecord) error
	ListNotifications(ctx context.Context, filter NotificationListFilter) ([]NotificationRecord, error)
}
