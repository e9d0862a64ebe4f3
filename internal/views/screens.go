package views

import (
	"fmt"
	"strings"
	"time"
)

type FeedItem struct {
	Kind    string
	Title   string
	Message string
	At      time.Time
}

func RenderCommandBar(active bool, input string) string {
	if !active {
		return ""
	}
	return "command: " + input
}

// RenderFeed lists the newest notifications first.
func RenderFeed(items []FeedItem, limit int) string {
	var b strings.Builder
	b.WriteString("notifications:\n")
	if len(items) == 0 {
		b.WriteString("  (none yet)")
		return b.String()
	}
	shown := 0
	for i := len(items) - 1; i >= 0; i-- {
		if limit > 0 && shown == limit {
			break
		}
		item := items[i]
		b.WriteString(fmt.Sprintf("%s %s %s\n", item.At.Format("15:04"), kindBadge(item.Kind), item.Title))
		if item.Message != "" {
			b.WriteString("  " + item.Message + "\n")
		}
		shown++
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderHelpPanel(bindings []string, helpView string) string {
	return fmt.Sprintf("help:\n%s\n\ncommands:\n%s", helpView, strings.Join(bindings, "\n"))
}

func RenderSummaryLine(pending, done int, zone string) string {
	return fmt.Sprintf("%d pending | %d done | tz %s", pending, done, zone)
}

func kindBadge(kind string) string {
	switch kind {
	case "nag":
		return "[NAG]"
	case "heads_up":
		return "[SOON]"
	case "check_in":
		return "[NOW]"
	case "startup":
		return "[START]"
	case "manual":
		return "[MANUAL]"
	default:
		return "[" + strings.ToUpper(kind) + "]"
	}
}

// StatusBadge marks overdue pending tasks red and upcoming ones yellow.
func StatusBadge(done bool, due, now time.Time) string {
	switch {
	case done:
		return "[DONE]"
	case due.Before(now):
		return "[RED]"
	default:
		return "[YELLOW]"
	}
}
