package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandeepkv93/nagd/internal/export"
	"github.com/sandeepkv93/nagd/internal/model"
	"github.com/sandeepkv93/nagd/internal/ui"
	"github.com/sandeepkv93/nagd/internal/views"
)

// Run serves the interactive front-end until the user quits or the process
// receives SIGINT/SIGTERM, then shuts down and prints the journal entry.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.startNagger(ctx)

	var runErr error
	if a.opts.Headless {
		runErr = a.runHeadless(ctx)
	} else {
		runErr = a.runTUI(ctx)
	}

	entry, err := a.Shutdown(context.WithoutCancel(ctx))
	if entry.Text != "" {
		a.printEntry(entry)
	}
	return errors.Join(runErr, err)
}

func (a *App) runHeadless(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(a.opts.In)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	fmt.Fprintf(a.opts.Out, "nagd: %d tasks loaded. Type 'help' for commands.\n", len(a.Store.Tasks()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		case line := <-lines:
			if len(line) == 0 {
				continue
			}
			res, err := a.Execute(ctx, line)
			if err != nil {
				fmt.Fprintf(a.opts.Out, "error: %v\n", err)
				continue
			}
			if res.Message != "" {
				fmt.Fprintln(a.opts.Out, res.Message)
			}
			if res.Quit {
				return nil
			}
		}
	}
}

func (a *App) runTUI(ctx context.Context) error {
	m := ui.New(ctx, a, a.feed.C(), ui.WithClock(a.opts.Now))
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(a.opts.In),
		tea.WithOutput(a.opts.Out),
	)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func (a *App) printEntry(entry model.JournalEntry) {
	if a.opts.Headless {
		fmt.Fprintf(a.opts.Out, "\nJournal for %s (%s):\n%s\n", entry.DateKey(), entry.Source, entry.Text)
		return
	}
	fmt.Fprintln(a.opts.Out, views.RenderMarkdown(export.Markdown([]model.JournalEntry{entry})))
}
