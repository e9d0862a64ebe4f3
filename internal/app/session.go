package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/nagd/internal/commands"
	"github.com/sandeepkv93/nagd/internal/config"
	"github.com/sandeepkv93/nagd/internal/model"
)

func (a *App) Tasks() []model.Task {
	return a.Store.Tasks()
}

func (a *App) Location() *time.Location {
	return a.Store.Location()
}

// Execute parses and runs one interactive command line.
func (a *App) Execute(ctx context.Context, line string) (commands.Result, error) {
	cmd, err := commands.Parse(line)
	if err != nil {
		return commands.Result{}, err
	}
	a.log.Debug().Str("command", string(cmd.Type)).Msg("command received")
	return commands.Execute(cmd, a.handlers(ctx))
}

func (a *App) handlers(ctx context.Context) commands.Handlers {
	return commands.Handlers{
		Done: func(args commands.TargetArgs) (commands.Result, error) {
			t, err := a.Store.MarkDone(args.ID)
			if err != nil {
				return commands.Result{}, err
			}
			a.saveCompletion()
			a.log.Info().Str("task_id", t.ID).Msg("task done")
			return commands.Result{Message: fmt.Sprintf("Marked %q as done.", t.Title)}, nil
		},
		Undo: func(args commands.TargetArgs) (commands.Result, error) {
			t, err := a.Store.MarkPending(args.ID)
			if err != nil {
				return commands.Result{}, err
			}
			a.saveCompletion()
			a.log.Info().Str("task_id", t.ID).Msg("task pending")
			return commands.Result{Message: fmt.Sprintf("Marked %q as pending.", t.Title)}, nil
		},
		Note: func(args commands.NoteArgs) (commands.Result, error) {
			if err := a.Store.AddNote(args.Text); err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: "Note added to today's journal."}, nil
		},
		Notify: func() (commands.Result, error) {
			ev, sent, err := a.Nagger.Notify(ctx)
			if err != nil {
				return commands.Result{}, err
			}
			if !sent {
				return commands.Result{Message: "Nothing pending."}, nil
			}
			return commands.Result{Message: "Notified: " + ev.Title}, nil
		},
		Timezone: func(args commands.TimezoneArgs) (commands.Result, error) {
			if !a.Config.AllowsTimezone(args.Name) {
				return commands.Result{}, &commands.CommandError{
					Code:    commands.ErrCodeInvalidArgument,
					Message: fmt.Sprintf("timezone %q is not in timezone_list (%s)", args.Name, strings.Join(a.Config.TimezoneList, ", ")),
				}
			}
			loc, err := config.LoadLocation(args.Name)
			if err != nil {
				return commands.Result{}, err
			}
			a.Store.SetLocation(loc)
			a.log.Info().Str("timezone", loc.String()).Msg("timezone changed")
			return commands.Result{Message: "Timezone set to " + loc.String() + "."}, nil
		},
		List: func() (commands.Result, error) {
			return commands.Result{Message: formatTasks(a.Store.Tasks(), a.Store.Location())}, nil
		},
	}
}

func (a *App) saveCompletion() {
	if err := a.Store.SaveCompletion(a.Config.StateFile); err != nil {
		a.log.Error().Err(err).Msg("save completion state")
	}
}

func formatTasks(tasks []model.Task, loc *time.Location) string {
	if len(tasks) == 0 {
		return "No tasks loaded."
	}
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		mark := " "
		if t.IsDone() {
			mark = "x"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s %s (due %s)", mark, t.ID, t.Title, t.Due.In(loc).Format("Mon 15:04")))
	}
	return strings.Join(lines, "\n")
}
