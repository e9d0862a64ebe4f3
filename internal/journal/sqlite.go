package journal

import (
	"context"
	"time"

	"github.com/sandeepkv93/nagd/internal/model"
	"github.com/sandeepkv93/nagd/internal/storage"
)

// SQLiteLog stores entries in the journal_entries table.
type SQLiteLog struct {
	repo storage.Repository
	loc  *time.Location
}

func NewSQLiteLog(repo storage.Repository, loc *time.Location) *SQLiteLog {
	if loc == nil {
		loc = time.Local
	}
	return &SQLiteLog{repo: repo, loc: loc}
}

func (l *SQLiteLog) Append(ctx context.Context, entry model.JournalEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	return l.repo.AppendJournalEntry(ctx, storage.JournalRecord{
		ID:        entry.ID,
		EntryDate: entry.DateKey(),
		Text:      entry.Text,
		Source:    string(entry.Source),
		CreatedAt: entry.CreatedAt,
	})
}

func (l *SQLiteLog) Entries(ctx context.Context) ([]model.JournalEntry, error) {
	records, err := l.repo.ListJournalEntries(ctx, storage.JournalListFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]model.JournalEntry, 0, len(records))
	for _, rec := range records {
		entry, err := fromRecord(rec.ID, rec.EntryDate, rec.Text, rec.Source, l.loc)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = rec.CreatedAt
		out = append(out, entry)
	}
	return out, nil
}

var (
	_ Log = (*FileLog)(nil)
	_ Log = (*SQLiteLog)(nil)
)
