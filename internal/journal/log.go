package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sandeepkv93/nagd/internal/model"
)

const FileName = "journal.jsonl"

// Log is an append-only journal.
type Log interface {
	Append(ctx context.Context, entry model.JournalEntry) error
	Entries(ctx context.Context) ([]model.JournalEntry, error)
}

type fileRecord struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Text      string `json:"text"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`
}

// FileLog keeps one JSON object per line in <folder>/journal.jsonl.
type FileLog struct {
	mu   sync.Mutex
	path string
	loc  *time.Location
}

func NewFileLog(folder string, loc *time.Location) *FileLog {
	if loc == nil {
		loc = time.Local
	}
	return &FileLog{path: filepath.Join(folder, FileName), loc: loc}
}

func (l *FileLog) Path() string {
	return l.path
}

func (l *FileLog) Append(ctx context.Context, entry model.JournalEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	line, err := json.Marshal(fileRecord{
		ID:        entry.ID,
		Date:      entry.DateKey(),
		Text:      entry.Text,
		Source:    string(entry.Source),
		CreatedAt: entry.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("journal: create folder: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("journal: write: %w", err)
	}
	return f.Close()
}

// Entries returns every entry in file order. A missing file is an empty log.
func (l *FileLog) Entries(ctx context.Context) ([]model.JournalEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.JournalEntry{}, nil
		}
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	defer f.Close()

	out := make([]model.JournalEntry, 0)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec fileRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("journal: line %d: %w", lineNo, err)
		}
		entry, err := fromRecord(rec.ID, rec.Date, rec.Text, rec.Source, l.loc)
		if err != nil {
			return nil, fmt.Errorf("journal: line %d: %w", lineNo, err)
		}
		if rec.CreatedAt != "" {
			created, err := time.Parse(time.RFC3339Nano, rec.CreatedAt)
			if err != nil {
				return nil, fmt.Errorf("journal: line %d: created_at: %w", lineNo, err)
			}
			entry.CreatedAt = created
		}
		out = append(out, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("journal: read: %w", err)
	}
	return out, nil
}

func fromRecord(id, date, text, source string, loc *time.Location) (model.JournalEntry, error) {
	day, err := time.ParseInLocation(model.DateLayout, date, loc)
	if err != nil {
		return model.JournalEntry{}, fmt.Errorf("date: %w", err)
	}
	return model.JournalEntry{
		ID:     id,
		Date:   day,
		Text:   text,
		Source: model.EntrySource(source),
	}, nil
}
