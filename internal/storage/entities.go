package storage

import "time"

type JournalRecord struct {
	ID        string
	EntryDate string
	Text      string
	Source    string
	CreatedAt time.Time
}

type NotificationRecord struct {
	ID        string
	Kind      string
	Title     string
	Message   string
	TaskIDs   []string
	SentAt    time.Time
	Delivered bool
}

type JournalListFilter struct {
	EntryDate string
	Limit     int
	Offset    int
}

type NotificationListFilter struct {
	Kind   string
	Since  *time.Time
	Limit  int
	Offset int
}
