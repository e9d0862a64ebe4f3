package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/nagd/internal/journal"
	"github.com/sandeepkv93/nagd/internal/model"
	"github.com/sandeepkv93/nagd/internal/storage"
	"github.com/sandeepkv93/nagd/internal/taskstore"
)

const essayTasks = `[{"id":1,"title":"Essay","due":"2024-01-01T23:00","status":"pending"}]`

var testNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

type recordingDesktop struct {
	mu     sync.Mutex
	events []model.NotificationEvent
	err    error
}

func (d *recordingDesktop) Send(_ context.Context, ev model.NotificationEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return d.err
}

func (d *recordingDesktop) Events() []model.NotificationEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.NotificationEvent, len(d.events))
	copy(out, d.events)
	return out
}

type failingCompleter struct{}

func (failingCompleter) Complete(context.Context, string) (string, error) {
	return "", errors.New("llm: connection refused")
}

type fixture struct {
	dir     string
	config  string
	desktop *recordingDesktop
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"NAGD_TASKS_FILE", "NAGD_NOTIFICATION_INTERVAL_SECONDS", "NAGD_TIMEZONE",
		"NAGD_DESKTOP_NOTIFICATIONS", "NAGD_JOURNAL_BACKEND", "NAGD_JOURNAL_FOLDER"} {
		t.Setenv(name, "")
	}
}

func newFixture(t *testing.T, tasks string, extra string) fixture {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.json"), []byte(tasks), 0o644))

	cfg := fmt.Sprintf(`tasks_file: %q
journal_folder: %q
journal_db: %q
state_file: %q
log_file: %q
notification_log_file: %q
timezone: UTC
timezone_list: [UTC, Asia/Kolkata]
desktop_notifications: true
startup_notification: true
%s`,
		filepath.Join(dir, "tasks.json"),
		filepath.Join(dir, "journal"),
		filepath.Join(dir, "journal", "nagd.db"),
		filepath.Join(dir, "state.json"),
		filepath.Join(dir, "app.log"),
		filepath.Join(dir, "notifications.log"),
		extra,
	)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return fixture{dir: dir, config: path, desktop: &recordingDesktop{}}
}

func (f fixture) options(in string, out *bytes.Buffer) Options {
	return Options{
		ConfigPath: f.config,
		Headless:   true,
		In:         strings.NewReader(in),
		Out:        out,
		Err:        &bytes.Buffer{},
		Now:        func() time.Time { return testNow },
		Desktop:    f.desktop,
		Completer:  failingCompleter{},
	}
}

func TestInitializeMalformedTasksFileAbortsStartup(t *testing.T) {
	f := newFixture(t, `[{"id":1,"title":"Essay"`, "")
	a := New(f.options("", &bytes.Buffer{}))
	defer a.Close()

	err := a.Initialize(context.Background())
	var loadErr *taskstore.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Nil(t, a.Nagger)
	assert.Nil(t, a.Generator)
	assert.Empty(t, f.desktop.Events(), "no notification may be sent before tasks load")
}

func TestInitializeSendsStartupNotification(t *testing.T) {
	f := newFixture(t, essayTasks, "")
	a := New(f.options("", &bytes.Buffer{}))
	require.NoError(t, a.Initialize(context.Background()))
	defer a.Close()

	events := f.desktop.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.NotificationStartup, events[0].Kind)
	assert.Contains(t, events[0].Message, "1 tasks loaded")
}

func TestNotifyThenDoneSilencesNagging(t *testing.T) {
	f := newFixture(t, essayTasks, "startup_notification: false\n")
	a := New(f.options("", &bytes.Buffer{}))
	require.NoError(t, a.Initialize(context.Background()))
	ctx := context.Background()

	res, err := a.Execute(ctx, "notify")
	require.NoError(t, err)
	assert.Contains(t, res.Message, "1 pending task")
	events := f.desktop.Events()
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Message, "Essay")

	_, err = a.Execute(ctx, "done 1")
	require.NoError(t, err)
	res, err = a.Execute(ctx, "notify")
	require.NoError(t, err)
	assert.Equal(t, "Nothing pending.", res.Message)
	assert.Len(t, f.desktop.Events(), 1)

	_, err = a.Shutdown(ctx)
	require.NoError(t, err)
}

func TestHeadlessSessionWritesOneJournalEntry(t *testing.T) {
	f := newFixture(t, essayTasks, "")
	var out bytes.Buffer
	input := "done 1\nnote skipped lunch\nlist\ntz Mars/Base\ntz UTC\nbogus\nquit\n"
	a := New(f.options(input, &out))
	require.NoError(t, a.Initialize(context.Background()))

	require.NoError(t, a.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, `Marked "Essay" as done.`)
	assert.Contains(t, text, "Note added")
	assert.Contains(t, text, "[x] 1 Essay")
	assert.Contains(t, text, `timezone "Mars/Base" is not in timezone_list`)
	assert.Contains(t, text, "Timezone set to UTC.")
	assert.Contains(t, text, "error: unknown_command")
	assert.Contains(t, text, "Journal for 2024-01-01 (fallback)")

	entries, err := journal.NewFileLog(filepath.Join(f.dir, "journal"), time.UTC).Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.EntrySourceFallback, entries[0].Source)
	assert.Contains(t, entries[0].Text, "skipped lunch")
	assert.Contains(t, entries[0].Text, "completed 1 of 1")

	state, err := os.ReadFile(filepath.Join(f.dir, "state.json"))
	require.NoError(t, err)
	assert.Contains(t, string(state), `"1"`)

	entry, err := a.Shutdown(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entries[0].Text, entry.Text)
	entries, err = journal.NewFileLog(filepath.Join(f.dir, "journal"), time.UTC).Entries(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "a second shutdown must not write another entry")
}

func TestHeadlessEOFStillShutsDown(t *testing.T) {
	f := newFixture(t, essayTasks, "")
	var out bytes.Buffer
	a := New(f.options("", &out))
	require.NoError(t, a.Initialize(context.Background()))

	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, out.String(), "Journal for 2024-01-01")
}

func TestCompletionStateRestoredOnNextStart(t *testing.T) {
	f := newFixture(t, essayTasks, "startup_notification: false\n")
	a := New(f.options("", &bytes.Buffer{}))
	require.NoError(t, a.Initialize(context.Background()))
	_, err := a.Execute(context.Background(), "done 1")
	require.NoError(t, err)
	a.Close()

	b := New(f.options("", &bytes.Buffer{}))
	require.NoError(t, b.Initialize(context.Background()))
	defer b.Close()
	task, err := b.Store.Get("1")
	require.NoError(t, err)
	assert.True(t, task.IsDone())
}

func TestDesktopFailureFallsBackToConsole(t *testing.T) {
	f := newFixture(t, essayTasks, "startup_notification: false\n")
	f.desktop.err = errors.New("notify-send: not found")
	var out bytes.Buffer
	a := New(f.options("", &out))
	require.NoError(t, a.Initialize(context.Background()))
	defer a.Close()

	_, err := a.Execute(context.Background(), "notify")
	assert.Error(t, err)
	assert.Contains(t, out.String(), "1 pending task")
}

func TestSQLiteBackendRecordsHistory(t *testing.T) {
	f := newFixture(t, essayTasks, "journal_backend: sqlite\n")
	a := New(f.options("", &bytes.Buffer{}))
	require.NoError(t, a.Initialize(context.Background()))

	_, err := a.Execute(context.Background(), "notify")
	require.NoError(t, err)
	_, err = a.Shutdown(context.Background())
	require.NoError(t, err)

	repo, err := storage.OpenSQLite(filepath.Join(f.dir, "journal", "nagd.db"))
	require.NoError(t, err)
	defer repo.Close()

	notes, err := repo.ListNotifications(context.Background(), storage.NotificationListFilter{})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "startup", notes[0].Kind)
	assert.Equal(t, "manual", notes[1].Kind)
	assert.Equal(t, []string{"1"}, notes[1].TaskIDs)

	entries, err := repo.ListJournalEntries(context.Background(), storage.JournalListFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-01-01", entries[0].EntryDate)
}

func TestExportMarkdownAndXLSX(t *testing.T) {
	f := newFixture(t, essayTasks, "startup_notification: false\n")
	a := New(f.options("", &bytes.Buffer{}))
	require.NoError(t, a.Initialize(context.Background()))
	entry, err := a.Shutdown(context.Background())
	require.NoError(t, err)

	var md bytes.Buffer
	require.NoError(t, Export(context.Background(), f.config, "md", "-", &md))
	assert.Contains(t, md.String(), "## 2024-01-01")
	assert.Contains(t, md.String(), entry.Text)

	xlsx := filepath.Join(f.dir, "out", "journal.xlsx")
	require.NoError(t, Export(context.Background(), f.config, "xlsx", xlsx, &bytes.Buffer{}))
	info, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, Export(context.Background(), f.config, "pdf", "-", &bytes.Buffer{}))
}
