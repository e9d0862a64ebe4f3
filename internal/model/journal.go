package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidEntrySource = errors.New("model: invalid journal entry source")

type EntrySource string

const (
	EntrySourceLLM      EntrySource = "llm"
	EntrySourceFallback EntrySource = "fallback"
)

func (s EntrySource) IsValid() bool {
	switch s {
	case EntrySourceLLM, EntrySourceFallback:
		return true
	default:
		return false
	}
}

const DateLayout = "2006-01-02"

type JournalEntry struct {
	ID        string
	Date      time.Time
	Text      string
	Source    EntrySource
	CreatedAt time.Time
}

func (e JournalEntry) DateKey() string {
	return e.Date.Format(DateLayout)
}

func (e JournalEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("model: journal entry id is required")
	}
	if e.Date.IsZero() {
		return errors.New("model: journal entry date is required")
	}
	if strings.TrimSpace(e.Text) == "" {
		return errors.New("model: journal entry text is required")
	}
	if !e.Source.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidEntrySource, e.Source)
	}
	if e.CreatedAt.IsZero() {
		return errors.New("model: journal entry created_at is required")
	}
	return nil
}

// DayStart returns local midnight of t in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// CalendarDay returns midnight in loc of the date t carries in its own zone.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
