package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/sandeepkv93/nagd/internal/model"
)

const MaxMessageLength = 200

var ErrUnsupportedPlatform = errors.New("notify: desktop notifications unsupported on this platform")

// NotificationError marks a failed delivery. It is never fatal.
type NotificationError struct {
	Kind model.NotificationKind
	Err  error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify: %s notification failed: %v", e.Kind, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

type Notifier interface {
	Send(ctx context.Context, ev model.NotificationEvent) error
}

type NotifierFunc func(ctx context.Context, ev model.NotificationEvent) error

func (f NotifierFunc) Send(ctx context.Context, ev model.NotificationEvent) error {
	return f(ctx, ev)
}

type Noop struct{}

func (Noop) Send(context.Context, model.NotificationEvent) error { return nil }

// Truncate shortens a notification body to MaxMessageLength runes.
func Truncate(msg string) string {
	r := []rune(msg)
	if len(r) <= MaxMessageLength {
		return msg
	}
	return string(r[:MaxMessageLength]) + "..."
}

// Desktop shells out to notify-send on Linux and osascript on macOS.
type Desktop struct {
	AppName string
	run     func(ctx context.Context, name string, args ...string) error
}

func NewDesktop(appName string) *Desktop {
	return &Desktop{AppName: appName, run: runCommand}
}

func (d *Desktop) Send(ctx context.Context, ev model.NotificationEvent) error {
	body := Truncate(ev.Message)
	switch runtime.GOOS {
	case "linux":
		args := []string{ev.Title, body}
		if d.AppName != "" {
			args = append([]string{"--app-name", d.AppName}, args...)
		}
		return d.run(ctx, "notify-send", args...)
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(body), escapeAppleScript(ev.Title))
		return d.run(ctx, "osascript", "-e", script)
	default:
		return ErrUnsupportedPlatform
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

var appleScriptQuoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeAppleScript(s string) string {
	return appleScriptQuoter.Replace(s)
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	kindStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Console prints notifications as styled lines.
type Console struct {
	Out io.Writer
}

func (c Console) Send(_ context.Context, ev model.NotificationEvent) error {
	line := fmt.Sprintf("%s %s %s\n",
		kindStyle.Render("["+ev.At.Format("15:04")+" "+string(ev.Kind)+"]"),
		titleStyle.Render(ev.Title),
		Truncate(ev.Message),
	)
	_, err := io.WriteString(c.Out, line)
	return err
}

// Fallback delivers through Secondary whenever Primary fails. The primary
// failure is still reported so callers can log it.
type Fallback struct {
	Primary   Notifier
	Secondary Notifier
	Logger    zerolog.Logger
}

func (f Fallback) Send(ctx context.Context, ev model.NotificationEvent) error {
	err := f.Primary.Send(ctx, ev)
	if err == nil {
		return nil
	}
	f.Logger.Warn().Err(err).Str("title", ev.Title).Msg("desktop notification failed, using fallback")
	if f.Secondary != nil {
		if ferr := f.Secondary.Send(ctx, ev); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}
	return &NotificationError{Kind: ev.Kind, Err: err}
}

// Channel pushes events into a buffered channel without blocking.
type Channel struct {
	ch      chan model.NotificationEvent
	dropped uint64
}

func NewChannel(size int) *Channel {
	if size <= 0 {
		size = 1
	}
	return &Channel{ch: make(chan model.NotificationEvent, size)}
}

func (c *Channel) C() <-chan model.NotificationEvent {
	return c.ch
}

func (c *Channel) Dropped() uint64 {
	return atomic.LoadUint64(&c.dropped)
}

func (c *Channel) Send(_ context.Context, ev model.NotificationEvent) error {
	select {
	case c.ch <- ev:
	default:
		atomic.AddUint64(&c.dropped, 1)
	}
	return nil
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, ev model.NotificationEvent) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logged records every event on the notification log before delegating.
type Logged struct {
	Next   Notifier
	Logger zerolog.Logger
}

func (l Logged) Send(ctx context.Context, ev model.NotificationEvent) error {
	l.Logger.Info().
		Str("kind", string(ev.Kind)).
		Str("title", ev.Title).
		Strs("task_ids", ev.TaskIDs).
		Msg(ev.Message)
	if l.Next == nil {
		return nil
	}
	return l.Next.Send(ctx, ev)
}
