package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidNotificationKind = errors.New("model: invalid notification kind")

type NotificationKind string

const (
	NotificationNag     NotificationKind = "nag"
	NotificationHeadsUp NotificationKind = "heads_up"
	NotificationStartup NotificationKind = "startup"
	NotificationManual  NotificationKind = "manual"
	NotificationCheckIn NotificationKind = "check_in"
)

func (k NotificationKind) IsValid() bool {
	switch k {
	case NotificationNag, NotificationHeadsUp, NotificationStartup, NotificationManual, NotificationCheckIn:
		return true
	default:
		return false
	}
}

// NotificationEvent is handed straight to a notifier and never stored as-is.
type NotificationEvent struct {
	Title   string
	Message string
	At      time.Time
	Kind    NotificationKind
	TaskIDs []string
}

func (n NotificationEvent) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return errors.New("model: notification title is required")
	}
	if strings.TrimSpace(n.Message) == "" {
		return errors.New("model: notification message is required")
	}
	if n.At.IsZero() {
		return errors.New("model: notification time is required")
	}
	if !n.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidNotificationKind, n.Kind)
	}
	return nil
}
