package taskstore

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sandeepkv93/nagd/internal/model"
)

var (
	ErrTaskNotFound = errors.New("taskstore: task not found")
	ErrEmptyNote    = errors.New("taskstore: note is empty")
)

// Store is the single in-memory owner of the loaded tasks. Readers (the
// scheduler, the journal) and the one writer (user interaction) share it
// through the mutex.
type Store struct {
	mu    sync.RWMutex
	loc   *time.Location
	tasks map[string]model.Task
	notes []string
}

func Load(path string, loc *time.Location) (*Store, error) {
	return LoadAt(path, loc, time.Now())
}

// LoadAt is Load with an explicit reference time for bare HH:MM due values.
func LoadAt(path string, loc *time.Location, now time.Time) (*Store, error) {
	if loc == nil {
		loc = time.Local
	}
	tasks, err := readTasks(path, loc, now)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return New(tasks, loc)
}

// New builds a store from already validated tasks.
func New(tasks []model.Task, loc *time.Location) (*Store, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Store{loc: loc, tasks: make(map[string]model.Task, len(tasks))}
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.tasks[t.ID]; dup {
			return nil, fmt.Errorf("taskstore: duplicate task id %q", t.ID)
		}
		s.tasks[t.ID] = t
	}
	return s, nil
}

func (s *Store) Location() *time.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loc
}

func (s *Store) SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	s.mu.Lock()
	s.loc = loc
	s.mu.Unlock()
}

// Pending returns tasks not yet done that are due on or before the end of
// now's day, ordered by due time.
func (s *Store) Pending(now time.Time) []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := model.DayStart(now, s.loc).AddDate(0, 0, 1)
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.IsDone() {
			continue
		}
		if !t.Due.Before(cutoff) {
			continue
		}
		out = append(out, t)
	}
	sortByDue(out)
	return out
}

func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sortByDue(out)
	return out
}

func (s *Store) Get(id string) (model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[strings.TrimSpace(id)]
	if !ok {
		return model.Task{}, fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	return t, nil
}

func (s *Store) MarkDone(id string) (model.Task, error) {
	return s.setStatus(id, model.TaskStatusDone)
}

func (s *Store) MarkPending(id string) (model.Task, error) {
	return s.setStatus(id, model.TaskStatusPending)
}

func (s *Store) setStatus(id string, status model.TaskStatus) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(id)
	t, ok := s.tasks[key]
	if !ok {
		return model.Task{}, fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	t.Status = status
	s.tasks[key] = t
	return t, nil
}

func (s *Store) AddNote(text string) error {
	note := strings.TrimSpace(text)
	if note == "" {
		return ErrEmptyNote
	}
	s.mu.Lock()
	s.notes = append(s.notes, note)
	s.mu.Unlock()
	return nil
}

func (s *Store) Notes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.notes))
	copy(out, s.notes)
	return out
}

// Summary splits the tasks of now's day (and anything overdue) into
// completed and pending for the journal.
func (s *Store) Summary(now time.Time) model.DaySummary {
	s.mu.RLock()
	loc := s.loc
	cutoff := model.DayStart(now, loc).AddDate(0, 0, 1)
	summary := model.DaySummary{Date: model.DayStart(now, loc)}
	for _, t := range s.tasks {
		if !t.Due.Before(cutoff) {
			continue
		}
		if t.IsDone() {
			summary.Completed = append(summary.Completed, t)
		} else {
			summary.Pending = append(summary.Pending, t)
		}
	}
	summary.Notes = make([]string, len(s.notes))
	copy(summary.Notes, s.notes)
	s.mu.RUnlock()

	sortByDue(summary.Completed)
	sortByDue(summary.Pending)
	return summary
}

func sortByDue(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].Due.Equal(tasks[j].Due) {
			return tasks[i].Due.Before(tasks[j].Due)
		}
		return tasks[i].ID < tasks[j].ID
	})
}
