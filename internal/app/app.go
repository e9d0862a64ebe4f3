package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sandeepkv93/nagd/internal/config"
	"github.com/sandeepkv93/nagd/internal/journal"
	"github.com/sandeepkv93/nagd/internal/llm"
	"github.com/sandeepkv93/nagd/internal/logging"
	"github.com/sandeepkv93/nagd/internal/model"
	"github.com/sandeepkv93/nagd/internal/notify"
	"github.com/sandeepkv93/nagd/internal/scheduler"
	"github.com/sandeepkv93/nagd/internal/storage"
	"github.com/sandeepkv93/nagd/internal/taskstore"
)

const feedBuffer = 64

type Options struct {
	ConfigPath string
	TasksFile  string
	Interval   time.Duration
	Headless   bool

	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Overrides, mostly for tests.
	Now       func() time.Time
	Desktop   notify.Notifier
	Completer journal.Completer
}

// App wires the task store, the nagger and the journal generator for one
// process lifetime.
type App struct {
	Config    config.Config
	Store     *taskstore.Store
	Nagger    *scheduler.Nagger
	Journal   journal.Log
	Generator *journal.Generator

	opts    Options
	logger  *logging.Logger
	log     zerolog.Logger
	feed    *notify.Channel
	closers []io.Closer

	naggerCancel context.CancelFunc
	naggerDone   chan struct{}

	shutdownOnce sync.Once
	entry        model.JournalEntry
	shutdownErr  error
}

func New(opts Options) *App {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &App{opts: opts, log: zerolog.Nop()}
}

// Initialize loads configuration and tasks and composes the notifier chain.
// A task file that cannot be loaded aborts before any scheduler exists.
func (a *App) Initialize(ctx context.Context) error {
	cfg, err := config.Load(a.opts.ConfigPath)
	if err != nil {
		return err
	}
	if a.opts.TasksFile != "" {
		cfg.TasksFile = a.opts.TasksFile
	}
	if a.opts.Interval > 0 {
		cfg.NotificationIntervalSeconds = int(a.opts.Interval / time.Second)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.Config = cfg

	var console io.Writer
	if a.opts.Headless {
		console = a.opts.Err
	}
	logger, err := logging.New(logging.Options{File: cfg.LogFile, Debug: cfg.Debug(), Console: console})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	a.logger = logger
	a.closers = append(a.closers, logger)
	a.log = logger.Component("app")
	a.log.Info().Str("version", cfg.Version).Str("tasks_file", cfg.TasksFile).Msg("starting nagd")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := taskstore.LoadAt(cfg.TasksFile, loc, a.opts.Now())
	if err != nil {
		a.log.Error().Err(err).Msg("load tasks")
		return err
	}
	a.Store = store
	if restored, err := store.LoadCompletion(cfg.StateFile); err != nil {
		a.log.Warn().Err(err).Str("path", cfg.StateFile).Msg("ignoring unreadable completion state")
	} else if restored > 0 {
		a.log.Info().Int("restored", restored).Msg("completion state restored")
	}

	var history scheduler.History
	switch cfg.JournalBackend {
	case config.BackendSQLite:
		repo, err := storage.OpenSQLite(cfg.JournalDB)
		if err != nil {
			return fmt.Errorf("open journal db: %w", err)
		}
		a.closers = append(a.closers, repo)
		a.Journal = journal.NewSQLiteLog(repo, loc)
		history = storage.NotificationHistory{Repo: repo, Now: a.opts.Now}
	default:
		a.Journal = journal.NewFileLog(cfg.JournalFolder, loc)
	}

	notifLog, err := logger.NotificationLog(cfg.NotificationLogFile)
	if err != nil {
		return err
	}
	notifier := a.buildNotifier(notifLog)

	a.Nagger = scheduler.NewNagger(store, notifier, logger.Component("scheduler"), scheduler.Options{
		Interval: cfg.Interval(),
		Lead:     cfg.Lead(),
		Grace:    cfg.Grace(),
		Now:      a.opts.Now,
		History:  history,
	})

	completer := a.opts.Completer
	if completer == nil {
		completer = llm.NewClient(cfg.APIKey,
			llm.WithEndpoint(cfg.OpenRouterAPIURL),
			llm.WithModel(cfg.LLMModel),
			llm.WithRetry(cfg.LLMRetries, llm.ExponentialBackoff(time.Second)),
		)
	}
	a.Generator = journal.NewGenerator(completer, a.Journal, logger.Component("journal"), journal.GeneratorOptions{
		Timeout:  cfg.JournalTimeout(),
		Now:      a.opts.Now,
		Location: loc,
	})

	if cfg.StartupNotification {
		_ = a.Nagger.Startup(ctx, len(store.Tasks()))
	}
	return nil
}

// buildNotifier logs every event, then delivers to the desktop (falling back
// to the console in headless mode) and to the TUI feed.
func (a *App) buildNotifier(notifLog zerolog.Logger) notify.Notifier {
	var console notify.Notifier
	if a.opts.Headless {
		console = notify.Console{Out: a.opts.Out}
	}

	var primary notify.Notifier = console
	if a.Config.DesktopNotifications {
		desktop := a.opts.Desktop
		if desktop == nil {
			desktop = notify.NewDesktop("nagd")
		}
		primary = notify.Fallback{Primary: desktop, Secondary: console, Logger: a.logger.Component("notify")}
	}

	targets := notify.Multi{}
	if primary != nil {
		targets = append(targets, primary)
	}
	if !a.opts.Headless {
		a.feed = notify.NewChannel(feedBuffer)
		targets = append(targets, a.feed)
	}
	return notify.Logged{Next: targets, Logger: notifLog}
}

func (a *App) startNagger(ctx context.Context) {
	nctx, cancel := context.WithCancel(ctx)
	a.naggerCancel = cancel
	a.naggerDone = make(chan struct{})
	go func() {
		defer close(a.naggerDone)
		if err := a.Nagger.Run(nctx); err != nil {
			a.log.Error().Err(err).Msg("nag loop exited")
		}
	}()
}

// Shutdown stops the nag loop, saves completion state and writes the day's
// journal entry. Only the first call does any work.
func (a *App) Shutdown(ctx context.Context) (model.JournalEntry, error) {
	a.shutdownOnce.Do(func() {
		a.entry, a.shutdownErr = a.shutdown(ctx)
	})
	return a.entry, a.shutdownErr
}

func (a *App) shutdown(ctx context.Context) (model.JournalEntry, error) {
	if a.naggerCancel != nil {
		a.naggerCancel()
		<-a.naggerDone
	}
	defer a.Close()

	if a.Store == nil || a.Generator == nil {
		return model.JournalEntry{}, errors.New("app: not initialized")
	}
	if err := a.Store.SaveCompletion(a.Config.StateFile); err != nil {
		a.log.Error().Err(err).Msg("save completion state")
	}

	summary := a.Store.Summary(a.opts.Now())
	entry, err := a.Generator.Generate(ctx, summary)
	if err != nil {
		a.log.Error().Err(err).Msg("journal generation")
	}
	a.log.Info().Int("completed", len(summary.Completed)).Int("pending", len(summary.Pending)).Msg("shutdown complete")
	return entry, err
}

// Close releases log files and the journal database.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}
