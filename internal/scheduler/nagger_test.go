package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sandeepkv93/nagd/internal/model"
	"github.com/sandeepkv93/nagd/internal/notify"
	"github.com/sandeepkv93/nagd/internal/taskstore"
)

type recorder struct {
	mu     sync.Mutex
	events []model.NotificationEvent
	err    error
}

func (r *recorder) Send(_ context.Context, ev model.NotificationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) snapshot() []model.NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.NotificationEvent, len(r.events))
	copy(out, r.events)
	return out
}

type historyRecorder struct {
	mu        sync.Mutex
	delivered []bool
}

func (h *historyRecorder) RecordNotification(_ context.Context, _ model.NotificationEvent, delivered bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.delivered = append(h.delivered, delivered)
	return nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func newStore(t *testing.T, tasks ...model.Task) *taskstore.Store {
	t.Helper()
	s, err := taskstore.New(tasks, time.UTC)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestTickSummarizesAllPendingInOneEvent(t *testing.T) {
	now := time.Date(2026, 2, 9, 15, 0, 0, 0, time.UTC)
	store := newStore(t,
		model.Task{ID: "1", Title: "Essay", Due: now.Add(-3 * time.Hour), Status: model.TaskStatusPending},
		model.Task{ID: "2", Title: "Laundry", Due: now.Add(-2 * time.Hour), Status: model.TaskStatusPending},
		model.Task{ID: "3", Title: "Call mum", Due: now.Add(-1 * time.Hour), Status: model.TaskStatusPending},
	)
	rec := &recorder{}
	n := NewNagger(store, rec, zerolog.Nop(), Options{Now: fixedClock(now)})

	ev, sent, err := n.Tick(context.Background())
	if err != nil || !sent {
		t.Fatalf("tick: sent=%v err=%v", sent, err)
	}
	events := rec.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(events))
	}
	if ev.Title != "3 pending tasks" || len(ev.TaskIDs) != 3 || ev.Kind != model.NotificationNag {
		t.Fatalf("unexpected event: %+v", ev)
	}
	for _, title := range []string{"Essay", "Laundry", "Call mum"} {
		if !strings.Contains(ev.Message, title) {
			t.Fatalf("message %q missing %q", ev.Message, title)
		}
	}
	if !strings.Contains(ev.Message, "overdue since 12:00") {
		t.Fatalf("expected overdue label in %q", ev.Message)
	}
}

func TestEssayScenario(t *testing.T) {
	due := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	now := due.Add(-2 * time.Hour)
	store := newStore(t, model.Task{ID: "1", Title: "Essay", Due: due, Status: model.TaskStatusPending})
	rec := &recorder{}
	n := NewNagger(store, rec, zerolog.Nop(), Options{Now: fixedClock(now)})

	if _, _, err := n.Tick(context.Background()); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	events := rec.snapshot()
	if len(events) != 1 || !strings.Contains(events[0].Message, "Essay") || events[0].Title != "1 pending task" {
		t.Fatalf("unexpected first tick events: %+v", events)
	}

	if _, err := store.MarkDone("1"); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	_, sent, err := n.Tick(context.Background())
	if err != nil || sent {
		t.Fatalf("expected silent tick, sent=%v err=%v", sent, err)
	}
	if len(rec.snapshot()) != 1 {
		t.Fatalf("expected no new notifications, got %d", len(rec.snapshot()))
	}
}

func TestTickNeverMutatesStatus(t *testing.T) {
	now := time.Date(2026, 2, 9, 15, 0, 0, 0, time.UTC)
	store := newStore(t, model.Task{ID: "1", Title: "Essay", Due: now, Status: model.TaskStatusPending})
	n := NewNagger(store, &recorder{}, zerolog.Nop(), Options{Now: fixedClock(now)})
	for i := 0; i < 3; i++ {
		_, _, _ = n.Tick(context.Background())
	}
	got, _ := store.Get("1")
	if got.Status != model.TaskStatusPending {
		t.Fatalf("status changed by tick: %s", got.Status)
	}
}

func TestTickDeliveryFailureIsNonFatal(t *testing.T) {
	now := time.Date(2026, 2, 9, 15, 0, 0, 0, time.UTC)
	store := newStore(t, model.Task{ID: "1", Title: "Essay", Due: now, Status: model.TaskStatusPending})
	boom := errors.New("no display")
	rec := &recorder{err: boom}
	hist := &historyRecorder{}
	n := NewNagger(store, rec, zerolog.Nop(), Options{Now: fixedClock(now), History: hist})

	_, sent, err := n.Tick(context.Background())
	var nerr *notify.NotificationError
	if !sent || !errors.As(err, &nerr) || !errors.Is(err, boom) {
		t.Fatalf("expected NotificationError, sent=%v err=%v", sent, err)
	}
	if len(rec.snapshot()) != 1 {
		t.Fatalf("failed delivery must not be retried, got %d attempts", len(rec.snapshot()))
	}
	if len(hist.delivered) != 1 || hist.delivered[0] {
		t.Fatalf("expected history to record one failed delivery, got %v", hist.delivered)
	}
}

func TestHeadsUpSkipsDoneTasks(t *testing.T) {
	now := time.Date(2026, 2, 9, 15, 0, 0, 0, time.UTC)
	store := newStore(t,
		model.Task{ID: "soon", Title: "Standup", Due: now.Add(10 * time.Minute), Status: model.TaskStatusPending, Notes: "bring notes"},
		model.Task{ID: "done", Title: "Gym", Due: now.Add(10 * time.Minute), Status: model.TaskStatusDone},
	)
	rec := &recorder{}
	n := NewNagger(store, rec, zerolog.Nop(), Options{Now: fixedClock(now)})

	ev, sent, err := n.HeadsUp(context.Background(), "soon")
	if err != nil || !sent {
		t.Fatalf("heads-up: sent=%v err=%v", sent, err)
	}
	if ev.Title != "Upcoming: Standup" || !strings.Contains(ev.Message, "starts in 10 minutes") || !strings.Contains(ev.Message, "bring notes") {
		t.Fatalf("unexpected heads-up: %+v", ev)
	}
	if _, sent, _ := n.HeadsUp(context.Background(), "done"); sent {
		t.Fatal("expected no heads-up for done task")
	}
	if _, sent, _ := n.HeadsUp(context.Background(), "missing"); sent {
		t.Fatal("expected no heads-up for unknown task")
	}
}

func TestNotifyReportsNothingPending(t *testing.T) {
	now := time.Date(2026, 2, 9, 15, 0, 0, 0, time.UTC)
	store := newStore(t, model.Task{ID: "1", Title: "Essay", Due: now.Add(48 * time.Hour), Status: model.TaskStatusPending})
	n := NewNagger(store, &recorder{}, zerolog.Nop(), Options{Now: fixedClock(now)})
	if _, sent, err := n.Notify(context.Background()); sent || err != nil {
		t.Fatalf("expected nothing pending, sent=%v err=%v", sent, err)
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	store := newStore(t, model.Task{ID: "1", Title: "Essay", Due: time.Now().Add(-time.Minute), Status: model.TaskStatusPending})
	rec := &recorder{}
	n := NewNagger(store, rec, zerolog.Nop(), Options{Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for len(rec.snapshot()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least two nags, got %d", len(rec.snapshot()))
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop after cancel")
	}
	for _, ev := range rec.snapshot() {
		if ev.Kind != model.NotificationNag && ev.Kind != model.NotificationCheckIn {
			t.Fatalf("unexpected kind from run: %s", ev.Kind)
		}
	}
}

func TestRunSendsHeadsUpBeforeDue(t *testing.T) {
	store := newStore(t, model.Task{ID: "1", Title: "Standup", Due: time.Now().Add(30 * time.Millisecond), Status: model.TaskStatusPending})
	rec := &recorder{}
	n := NewNagger(store, rec, zerolog.Nop(), Options{Interval: time.Hour, Lead: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = n.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		events := rec.snapshot()
		if len(events) > 0 {
			if events[0].Kind != model.NotificationHeadsUp || events[0].TaskIDs[0] != "1" {
				t.Fatalf("unexpected first event: %+v", events[0])
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for heads-up")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSummaryEventLabelsOtherDays(t *testing.T) {
	now := time.Date(2026, 2, 9, 15, 0, 0, 0, time.UTC)
	ev := SummaryEvent([]model.Task{
		{ID: "a", Title: "Taxes", Due: time.Date(2026, 2, 7, 9, 0, 0, 0, time.UTC)},
		{ID: "b", Title: "Dinner", Due: time.Date(2026, 2, 9, 19, 30, 0, 0, time.UTC)},
	}, now, time.UTC, model.NotificationManual)
	want := "Taxes (overdue since Feb 7 09:00), Dinner (due 19:30)"
	if ev.Message != want {
		t.Fatalf("message = %q, want %q", ev.Message, want)
	}
	if ev.Kind != model.NotificationManual {
		t.Fatalf("unexpected kind: %s", ev.Kind)
	}
}

type slowNotifier struct {
	recorder
	delay time.Duration
}

func (s *slowNotifier) Send(ctx context.Context, ev model.NotificationEvent) error {
	time.Sleep(s.delay)
	return s.recorder.Send(ctx, ev)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func countKind(events []model.NotificationEvent, kind model.NotificationKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestRunKeepsNaggingWhenHeadsUpsBackUp(t *testing.T) {
	lead := time.Second
	due := time.Now().Add(lead + 100*time.Millisecond)
	tasks := make([]model.Task, 0, 40)
	for i := 0; i < 40; i++ {
		tasks = append(tasks, model.Task{ID: fmt.Sprintf("t%d", i), Title: fmt.Sprintf("Task %d", i), Due: due, Status: model.TaskStatusPending})
	}
	store := newStore(t, tasks...)
	slow := &slowNotifier{delay: 20 * time.Millisecond}
	logs := &lockedBuffer{}
	n := NewNagger(store, slow, zerolog.New(logs), Options{Interval: 100 * time.Millisecond, Lead: lead})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	deadline := time.After(3 * time.Second)
	for countKind(slow.snapshot(), model.NotificationNag) < 4 || !strings.Contains(logs.String(), "per-task triggers dropped") {
		select {
		case <-deadline:
			cancel()
			<-done
			events := slow.snapshot()
			t.Fatalf("nags=%d heads_up=%d logs=%q", countKind(events, model.NotificationNag), countKind(events, model.NotificationHeadsUp), logs.String())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if got := countKind(slow.snapshot(), model.NotificationHeadsUp); got == 0 || got >= 40 {
		t.Fatalf("expected a partial burst of heads-ups, got %d", got)
	}
}

func TestSyncTriggersFollowsTaskStatus(t *testing.T) {
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	store := newStore(t,
		model.Task{ID: "1", Title: "Standup", Due: now.Add(time.Hour), Status: model.TaskStatusPending},
		model.Task{ID: "2", Title: "Lunch", Due: now.Add(-time.Hour), Status: model.TaskStatusPending},
	)
	n := NewNagger(store, &recorder{}, zerolog.Nop(), Options{Lead: 15 * time.Minute, Now: fixedClock(now)})
	engine := NewEngine(4)
	armed := make(map[string]string)

	n.syncTriggers(engine, armed, now)
	if engine.Len() != 2 || armed["heads_up:1"] != "1" || armed["check_in:1"] != "1" {
		t.Fatalf("expected heads-up and start check-in for task 1, queued=%d armed=%v", engine.Len(), armed)
	}
	n.syncTriggers(engine, armed, now)
	if engine.Len() != 2 {
		t.Fatalf("repeated sync queued duplicates: %d", engine.Len())
	}

	if _, err := store.MarkDone("1"); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	n.syncTriggers(engine, armed, now)
	if engine.Len() != 0 || len(armed) != 0 {
		t.Fatalf("expected done task triggers cancelled, queued=%d armed=%v", engine.Len(), armed)
	}

	if _, err := store.MarkPending("1"); err != nil {
		t.Fatalf("mark pending: %v", err)
	}
	n.syncTriggers(engine, armed, now)
	if engine.Len() != 2 {
		t.Fatalf("expected triggers queued again after undo, got %d", engine.Len())
	}
}

func TestRunSendsHeadsUpAfterUndo(t *testing.T) {
	store := newStore(t, model.Task{ID: "1", Title: "Standup", Due: time.Now().Add(600 * time.Millisecond), Status: model.TaskStatusDone})
	rec := &recorder{}
	n := NewNagger(store, rec, zerolog.Nop(), Options{Interval: 30 * time.Millisecond, Lead: 500 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = n.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	if _, err := store.MarkPending("1"); err != nil {
		t.Fatalf("mark pending: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for countKind(rec.snapshot(), model.NotificationHeadsUp) == 0 {
		select {
		case <-deadline:
			t.Fatalf("no heads-up after undo, events=%+v", rec.snapshot())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestActiveTaskWindows(t *testing.T) {
	day := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{ID: "lunch", Title: "Lunch", Due: day.Add(13 * time.Hour), Status: model.TaskStatusPending},
		{ID: "gym", Title: "Gym", Due: day.Add(9 * time.Hour), Duration: time.Hour, Status: model.TaskStatusPending},
		{ID: "write", Title: "Write", Due: day.Add(15 * time.Hour), Status: model.TaskStatusPending},
	}

	cases := []struct {
		at      time.Duration
		wantID  string
		wantEnd time.Duration
	}{
		{at: 8 * time.Hour},
		{at: 9*time.Hour + 30*time.Minute, wantID: "gym", wantEnd: 10 * time.Hour},
		{at: 11 * time.Hour},
		{at: 14 * time.Hour, wantID: "lunch", wantEnd: 15 * time.Hour},
		{at: 15 * time.Hour, wantID: "write", wantEnd: 24 * time.Hour},
	}
	for _, tc := range cases {
		task, end, ok := ActiveTask(tasks, day.Add(tc.at), time.UTC)
		if tc.wantID == "" {
			if ok {
				t.Fatalf("at %v: expected no active task, got %s", tc.at, task.ID)
			}
			continue
		}
		if !ok || task.ID != tc.wantID || !end.Equal(day.Add(tc.wantEnd)) {
			t.Fatalf("at %v: got %s until %v (ok=%v)", tc.at, task.ID, end, ok)
		}
	}
}

func TestCheckInWording(t *testing.T) {
	start := time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC)
	store := newStore(t,
		model.Task{ID: "gym", Title: "Gym", Due: start, Duration: time.Hour, Status: model.TaskStatusPending, Notes: "legs"},
	)

	cases := []struct {
		after time.Duration
		want  string
	}{
		{after: 0, want: "Gym just started. legs"},
		{after: time.Minute, want: "Gym started 1 minute ago. legs"},
		{after: 3 * time.Minute, want: "Gym started 3 minutes ago. legs"},
		{after: 20 * time.Minute, want: "Doing Gym until 10:00. Keep it up! legs"},
	}
	for _, tc := range cases {
		rec := &recorder{}
		n := NewNagger(store, rec, zerolog.Nop(), Options{Grace: 3 * time.Minute, Now: fixedClock(start.Add(tc.after))})
		ev, sent, err := n.CheckIn(context.Background())
		if err != nil || !sent {
			t.Fatalf("after %v: sent=%v err=%v", tc.after, sent, err)
		}
		if ev.Kind != model.NotificationCheckIn || ev.Title != "Check-in: Gym" || ev.Message != tc.want {
			t.Fatalf("after %v: unexpected event %+v", tc.after, ev)
		}
	}
}

func TestCheckInSkipsDoneAndIdle(t *testing.T) {
	start := time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC)
	store := newStore(t, model.Task{ID: "gym", Title: "Gym", Due: start, Duration: time.Hour, Status: model.TaskStatusDone})
	rec := &recorder{}

	n := NewNagger(store, rec, zerolog.Nop(), Options{Now: fixedClock(start.Add(10 * time.Minute))})
	if _, sent, _ := n.CheckIn(context.Background()); sent {
		t.Fatal("expected no check-in for a done task")
	}
	if _, sent, _ := n.TaskStarted(context.Background(), "gym"); sent {
		t.Fatal("expected no start check-in for a done task")
	}

	n = NewNagger(store, rec, zerolog.Nop(), Options{Now: fixedClock(start.Add(2 * time.Hour))})
	if _, sent, _ := n.CheckIn(context.Background()); sent {
		t.Fatal("expected no check-in after the task ended")
	}
	if len(rec.snapshot()) != 0 {
		t.Fatalf("unexpected events: %+v", rec.snapshot())
	}
}

func TestTaskStartedUsesNextTaskAsEnd(t *testing.T) {
	start := time.Date(2026, 2, 9, 13, 0, 0, 0, time.UTC)
	store := newStore(t,
		model.Task{ID: "lunch", Title: "Lunch", Due: start, Status: model.TaskStatusPending},
		model.Task{ID: "write", Title: "Write", Due: start.Add(2 * time.Hour), Status: model.TaskStatusPending},
	)
	rec := &recorder{}
	n := NewNagger(store, rec, zerolog.Nop(), Options{Now: fixedClock(start.Add(30 * time.Minute))})

	ev, sent, err := n.TaskStarted(context.Background(), "lunch")
	if err != nil || !sent {
		t.Fatalf("task started: sent=%v err=%v", sent, err)
	}
	if ev.Message != "Doing Lunch until 15:00. Keep it up!" || ev.TaskIDs[0] != "lunch" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
