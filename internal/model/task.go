package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidStatus = errors.New("model: invalid task status")

type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusDone    TaskStatus = "done"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusDone:
		return true
	default:
		return false
	}
}

type Task struct {
	ID       string
	Title    string
	Due      time.Time
	Status   TaskStatus
	Notes    string
	Duration time.Duration
}

func (t Task) IsDone() bool {
	return t.Status == TaskStatusDone
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("model: task id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("model: task title is required")
	}
	if t.Due.IsZero() {
		return errors.New("model: task due time is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	if t.Duration < 0 {
		return errors.New("model: task duration must not be negative")
	}
	return nil
}

// ParseDuration reads the loose "1h30m" form used in task files. Digits
// followed by h or m accumulate; anything else is skipped.
func ParseDuration(raw string) time.Duration {
	var total time.Duration
	num := ""
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'h' || r == 'm':
			if num == "" {
				continue
			}
			v, err := strconv.Atoi(num)
			num = ""
			if err != nil {
				continue
			}
			if r == 'h' {
				total += time.Duration(v) * time.Hour
			} else {
				total += time.Duration(v) * time.Minute
			}
		}
	}
	return total
}

type DaySummary struct {
	Date      time.Time
	Completed []Task
	Pending   []Task
	Notes     []string
}

func (s DaySummary) Total() int {
	return len(s.Completed) + len(s.Pending)
}
