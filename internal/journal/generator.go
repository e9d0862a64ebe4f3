package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sandeepkv93/nagd/internal/model"
)

const DefaultTimeout = 10 * time.Second

var ErrAlreadyGenerated = errors.New("journal: entry already generated")

// Completer turns a prompt into text. *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type GeneratorOptions struct {
	Timeout  time.Duration
	Now      func() time.Time
	Location *time.Location
	NewID    func() string
}

// Generator writes the end-of-day entry. It produces at most one entry over
// its lifetime.
type Generator struct {
	completer Completer
	log       Log
	logger    zerolog.Logger
	timeout   time.Duration
	now       func() time.Time
	loc       *time.Location
	newID     func() string

	once sync.Once
}

func NewGenerator(completer Completer, log Log, logger zerolog.Logger, opts GeneratorOptions) *Generator {
	g := &Generator{
		completer: completer,
		log:       log,
		logger:    logger,
		timeout:   opts.Timeout,
		now:       opts.Now,
		loc:       opts.Location,
		newID:     opts.NewID,
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.loc == nil {
		g.loc = time.Local
	}
	if g.newID == nil {
		g.newID = uuid.NewString
	}
	return g
}

// Generate asks the completer for an entry and falls back to a template on
// any failure. The entry is returned even if persisting it fails.
func (g *Generator) Generate(ctx context.Context, summary model.DaySummary) (model.JournalEntry, error) {
	ran := false
	var entry model.JournalEntry
	var err error
	g.once.Do(func() {
		ran = true
		entry, err = g.generate(ctx, summary)
	})
	if !ran {
		return model.JournalEntry{}, ErrAlreadyGenerated
	}
	return entry, err
}

func (g *Generator) generate(ctx context.Context, summary model.DaySummary) (model.JournalEntry, error) {
	now := g.now()
	if summary.Date.IsZero() {
		summary.Date = model.DayStart(now, g.loc)
	}

	// The log reads dates back in g.loc, which may differ from the zone the
	// summary was taken in after a tz switch.
	entry := model.JournalEntry{
		ID:        g.newID(),
		Date:      model.CalendarDay(summary.Date, g.loc),
		Source:    model.EntrySourceLLM,
		CreatedAt: now,
	}
	text, err := g.complete(ctx, BuildPrompt(summary))
	if err != nil {
		g.logger.Warn().Err(err).Msg("journal completion failed, using fallback")
		entry.Text = FallbackText(summary)
		entry.Source = model.EntrySourceFallback
	} else {
		entry.Text = text
	}

	if g.log == nil {
		return entry, nil
	}
	if err := g.log.Append(ctx, entry); err != nil {
		g.logger.Error().Err(err).Str("entry_id", entry.ID).Msg("persist journal entry")
		return entry, fmt.Errorf("journal: persist: %w", err)
	}
	g.logger.Info().Str("entry_id", entry.ID).Str("source", string(entry.Source)).Msg("journal entry written")
	return entry, nil
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	if g.completer == nil {
		return "", errors.New("journal: no completer configured")
	}
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	text, err := g.completer.Complete(cctx, prompt)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("journal: completer returned empty text")
	}
	return text, nil
}

// BuildPrompt describes the day for the language model.
func BuildPrompt(summary model.DaySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s. ", summary.Date.Format("02-01-2006"))
	fmt.Fprintf(&b, "I completed %d of %d tasks", len(summary.Completed), summary.Total())
	if len(summary.Completed) > 0 {
		fmt.Fprintf(&b, " (%s)", titles(summary.Completed))
	}
	b.WriteString(".")
	if len(summary.Pending) > 0 {
		fmt.Fprintf(&b, " Still pending: %s.", titles(summary.Pending))
	}
	if len(summary.Notes) > 0 {
		fmt.Fprintf(&b, " My notes: %s.", strings.Join(summary.Notes, "; "))
	}
	b.WriteString(" Write a natural, casual journal entry in past tense summarizing my day. ")
	b.WriteString("Mention deviations or breaks if the notes suggest any. ")
	b.WriteString("Keep it under 500 characters. Avoid motivational phrases.")
	return b.String()
}

// FallbackText is the entry used when the model is unavailable.
func FallbackText(summary model.DaySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Journal for %s. ", summary.Date.Format(model.DateLayout))
	if summary.Total() == 0 {
		b.WriteString("No tasks were scheduled today.")
	} else {
		fmt.Fprintf(&b, "I completed %d of %d tasks.", len(summary.Completed), summary.Total())
		if len(summary.Completed) > 0 {
			fmt.Fprintf(&b, " Done: %s.", titles(summary.Completed))
		}
		if len(summary.Pending) > 0 {
			fmt.Fprintf(&b, " Left for later: %s.", titles(summary.Pending))
		}
	}
	if len(summary.Notes) > 0 {
		fmt.Fprintf(&b, " Notes: %s.", strings.Join(summary.Notes, "; "))
	}
	return b.String()
}

func titles(tasks []model.Task) string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return strings.Join(out, ", ")
}
