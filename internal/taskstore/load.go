package taskstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sandeepkv93/nagd/internal/model"
	"gopkg.in/yaml.v2"
)

// LoadError reports a task file that cannot be used. It is fatal at startup.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("taskstore: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

var dueLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// rawID accepts both numeric and string ids.
type rawID string

func (r *rawID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = rawID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %s", string(b))
	}
	*r = rawID(n.String())
	return nil
}

func (r *rawID) UnmarshalYAML(unmarshal func(any) error) error {
	var v any
	if err := unmarshal(&v); err != nil {
		return err
	}
	switch typed := v.(type) {
	case string:
		*r = rawID(typed)
	case int:
		*r = rawID(strconv.Itoa(typed))
	case int64:
		*r = rawID(strconv.FormatInt(typed, 10))
	case float64:
		*r = rawID(strconv.FormatFloat(typed, 'f', -1, 64))
	default:
		return fmt.Errorf("id must be a string or number, got %T", v)
	}
	return nil
}

type fileTask struct {
	ID       rawID  `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Task     string `json:"task" yaml:"task"`
	Due      string `json:"due" yaml:"due"`
	Time     string `json:"time" yaml:"time"`
	Status   string `json:"status" yaml:"status"`
	Notes    string `json:"notes" yaml:"notes"`
	Duration string `json:"duration" yaml:"duration"`
}

func decodeFile(path string, raw []byte) ([]fileTask, error) {
	var items []fileTask
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func readTasks(path string, loc *time.Location, now time.Time) ([]model.Task, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, errors.New("task file is empty")
	}
	items, err := decodeFile(path, raw)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.New("task file lists no tasks")
	}

	seen := make(map[string]bool, len(items))
	out := make([]model.Task, 0, len(items))
	for i, item := range items {
		task, convErr := item.toTask(loc, now)
		if convErr != nil {
			return nil, fmt.Errorf("task %d: %w", i, convErr)
		}
		if seen[task.ID] {
			return nil, fmt.Errorf("task %d: duplicate id %q", i, task.ID)
		}
		seen[task.ID] = true
		out = append(out, task)
	}
	return out, nil
}

func (f fileTask) toTask(loc *time.Location, now time.Time) (model.Task, error) {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		title = strings.TrimSpace(f.Task)
	}
	dueRaw := strings.TrimSpace(f.Due)
	if dueRaw == "" {
		dueRaw = strings.TrimSpace(f.Time)
	}
	status := model.TaskStatus(strings.ToLower(strings.TrimSpace(f.Status)))
	if status == "" {
		status = model.TaskStatusPending
	}

	var due time.Time
	if dueRaw != "" {
		parsed, err := parseDue(dueRaw, loc, now)
		if err != nil {
			return model.Task{}, err
		}
		due = parsed
	}

	task := model.Task{
		ID:       strings.TrimSpace(string(f.ID)),
		Title:    title,
		Due:      due,
		Status:   status,
		Notes:    strings.TrimSpace(f.Notes),
		Duration: model.ParseDuration(f.Duration),
	}
	if err := task.Validate(); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// parseDue accepts absolute date-times and bare HH:MM (today in loc).
func parseDue(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	if clock, err := time.ParseInLocation("15:04", raw, loc); err == nil {
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised due time %q", raw)
}
