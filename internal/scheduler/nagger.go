package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sandeepkv93/nagd/internal/model"
	"github.com/sandeepkv93/nagd/internal/notify"
)

const (
	DefaultInterval = 1800 * time.Second
	DefaultLead     = 15 * time.Minute
	DefaultGrace    = 2 * time.Minute

	headsUpPrefix = "heads_up:"
	checkInPrefix = "check_in:"
)

// TaskSource is the read side of the task store. The nagger never writes.
type TaskSource interface {
	Pending(now time.Time) []model.Task
	Tasks() []model.Task
	Get(id string) (model.Task, error)
	Location() *time.Location
}

// History receives every notification the nagger attempts.
type History interface {
	RecordNotification(ctx context.Context, ev model.NotificationEvent, delivered bool) error
}

type Options struct {
	Interval time.Duration
	Lead     time.Duration
	// Grace is how long after its start a task is reported as just started.
	// Zero uses DefaultGrace.
	Grace   time.Duration
	Now     func() time.Time
	History History
}

// Nagger raises a summary notification every Interval while tasks are
// pending, a one-off heads-up Lead before each task is due, and a check-in
// when a task starts and on every tick while it is in progress.
type Nagger struct {
	tasks    TaskSource
	notifier notify.Notifier
	log      zerolog.Logger
	interval time.Duration
	lead     time.Duration
	grace    time.Duration
	now      func() time.Time
	history  History
}

func NewNagger(tasks TaskSource, notifier notify.Notifier, log zerolog.Logger, opts Options) *Nagger {
	n := &Nagger{
		tasks:    tasks,
		notifier: notifier,
		log:      log,
		interval: opts.Interval,
		lead:     opts.Lead,
		grace:    opts.Grace,
		now:      opts.Now,
		history:  opts.History,
	}
	if n.interval <= 0 {
		n.interval = DefaultInterval
	}
	if n.lead < 0 {
		n.lead = 0
	}
	if n.grace <= 0 {
		n.grace = DefaultGrace
	}
	if n.now == nil {
		n.now = time.Now
	}
	if n.notifier == nil {
		n.notifier = notify.Noop{}
	}
	return n
}

func (n *Nagger) Interval() time.Duration {
	return n.interval
}

// Tick sends one nag summarizing every pending task. The bool is false when
// nothing is pending and no notification was attempted.
func (n *Nagger) Tick(ctx context.Context) (model.NotificationEvent, bool, error) {
	return n.summarize(ctx, model.NotificationNag)
}

// Notify is a user-triggered Tick.
func (n *Nagger) Notify(ctx context.Context) (model.NotificationEvent, bool, error) {
	return n.summarize(ctx, model.NotificationManual)
}

func (n *Nagger) summarize(ctx context.Context, kind model.NotificationKind) (model.NotificationEvent, bool, error) {
	now := n.now()
	pending := n.tasks.Pending(now)
	if len(pending) == 0 {
		n.log.Debug().Str("kind", string(kind)).Msg("nothing pending")
		return model.NotificationEvent{}, false, nil
	}
	ev := SummaryEvent(pending, now, n.tasks.Location(), kind)
	return ev, true, n.deliver(ctx, ev)
}

// HeadsUp warns about a single task that is about to start. Tasks already
// done or unknown are skipped.
func (n *Nagger) HeadsUp(ctx context.Context, taskID string) (model.NotificationEvent, bool, error) {
	task, err := n.tasks.Get(taskID)
	if err != nil {
		n.log.Debug().Err(err).Str("task_id", taskID).Msg("heads-up for unknown task")
		return model.NotificationEvent{}, false, nil
	}
	if task.IsDone() {
		return model.NotificationEvent{}, false, nil
	}
	now := n.now()
	ev := model.NotificationEvent{
		Title:   "Upcoming: " + task.Title,
		Message: headsUpMessage(task, now, n.tasks.Location()),
		At:      now,
		Kind:    model.NotificationHeadsUp,
		TaskIDs: []string{task.ID},
	}
	return ev, true, n.deliver(ctx, ev)
}

// CheckIn nudges about the task in progress, if any. A task is in progress
// from its due time until due+Duration, or until the next task starts when it
// has no duration. Done tasks get no check-in.
func (n *Nagger) CheckIn(ctx context.Context) (model.NotificationEvent, bool, error) {
	now := n.now()
	task, end, ok := ActiveTask(n.tasks.Tasks(), now, n.tasks.Location())
	if !ok || task.IsDone() {
		return model.NotificationEvent{}, false, nil
	}
	ev := n.checkInEvent(task, end, now)
	return ev, true, n.deliver(ctx, ev)
}

// TaskStarted is the check-in sent when a task's due time arrives.
func (n *Nagger) TaskStarted(ctx context.Context, taskID string) (model.NotificationEvent, bool, error) {
	task, err := n.tasks.Get(taskID)
	if err != nil {
		n.log.Debug().Err(err).Str("task_id", taskID).Msg("check-in for unknown task")
		return model.NotificationEvent{}, false, nil
	}
	if task.IsDone() {
		return model.NotificationEvent{}, false, nil
	}
	now := n.now()
	ev := n.checkInEvent(task, TaskEnd(task, n.tasks.Tasks(), n.tasks.Location()), now)
	return ev, true, n.deliver(ctx, ev)
}

func (n *Nagger) checkInEvent(task model.Task, end, now time.Time) model.NotificationEvent {
	return model.NotificationEvent{
		Title:   "Check-in: " + task.Title,
		Message: checkInMessage(task, end, now, n.grace, n.tasks.Location()),
		At:      now,
		Kind:    model.NotificationCheckIn,
		TaskIDs: []string{task.ID},
	}
}

// Startup announces the loaded task list once.
func (n *Nagger) Startup(ctx context.Context, total int) error {
	now := n.now()
	pending := len(n.tasks.Pending(now))
	ev := model.NotificationEvent{
		Title:   "nagd started",
		Message: fmt.Sprintf("%d tasks loaded, %d pending today.", total, pending),
		At:      now,
		Kind:    model.NotificationStartup,
	}
	return n.deliver(ctx, ev)
}

func (n *Nagger) deliver(ctx context.Context, ev model.NotificationEvent) error {
	err := n.notifier.Send(ctx, ev)
	if err != nil {
		var nerr *notify.NotificationError
		if !errors.As(err, &nerr) {
			err = &notify.NotificationError{Kind: ev.Kind, Err: err}
		}
		n.log.Warn().Err(err).Str("kind", string(ev.Kind)).Str("title", ev.Title).Msg("notification skipped")
	} else {
		n.log.Info().Str("kind", string(ev.Kind)).Str("title", ev.Title).Int("tasks", len(ev.TaskIDs)).Msg("notification sent")
	}
	if n.history != nil {
		if herr := n.history.RecordNotification(ctx, ev, err == nil); herr != nil {
			n.log.Error().Err(herr).Msg("record notification")
		}
	}
	return err
}

// Run drives the nag loop until ctx is cancelled. Nags come from a ticker
// so a backlog of per-task triggers can never stall or drop them.
func (n *Nagger) Run(ctx context.Context) error {
	engine := NewEngine(16)
	engine.Start()
	defer engine.Stop()

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	armed := make(map[string]string)
	n.syncTriggers(engine, armed, n.now())
	n.log.Info().Dur("interval", n.interval).Int("queued", engine.Len()).Msg("nag loop started")

	var dropped uint64
	for {
		select {
		case <-ctx.Done():
			n.log.Info().Msg("nag loop stopped")
			return nil
		case <-ticker.C:
			_, _, _ = n.Tick(ctx)
			_, _, _ = n.CheckIn(ctx)
			n.syncTriggers(engine, armed, n.now())
			if d := engine.Dropped(); d > dropped {
				n.log.Warn().Uint64("dropped", d-dropped).Uint64("total", d).Msg("per-task triggers dropped")
				dropped = d
			}
		case tr, ok := <-engine.C():
			if !ok {
				return nil
			}
			switch tr.Kind {
			case TriggerHeadsUp:
				_, _, _ = n.HeadsUp(ctx, tr.TaskID)
			case TriggerCheckIn:
				_, _, _ = n.TaskStarted(ctx, tr.TaskID)
			}
		}
	}
}

// syncTriggers queues a heads-up and a start check-in for every pending task
// still ahead of now and cancels the ones whose task is no longer pending.
// armed maps queued trigger ids to task ids and survives between calls, so a
// trigger is queued at most once while its task stays pending.
func (n *Nagger) syncTriggers(engine *Engine, armed map[string]string, now time.Time) {
	pending := n.tasks.Pending(now)
	live := make(map[string]bool, len(pending))
	for _, task := range pending {
		live[task.ID] = true
	}
	for id, taskID := range armed {
		if !live[taskID] {
			engine.Cancel(id)
			delete(armed, id)
		}
	}

	for _, task := range pending {
		if !task.Due.After(now) {
			continue
		}
		if n.lead > 0 {
			arm(engine, armed, Trigger{ID: headsUpPrefix + task.ID, Kind: TriggerHeadsUp, TaskID: task.ID}, task.Due.Add(-n.lead).Sub(now))
		}
		arm(engine, armed, Trigger{ID: checkInPrefix + task.ID, Kind: TriggerCheckIn, TaskID: task.ID}, task.Due.Sub(now))
	}
}

func arm(engine *Engine, armed map[string]string, tr Trigger, fireIn time.Duration) {
	if _, ok := armed[tr.ID]; ok {
		return
	}
	if fireIn < 0 {
		fireIn = 0
	}
	tr.At = time.Now().Add(fireIn)
	if err := engine.Schedule(tr); err == nil {
		armed[tr.ID] = tr.TaskID
	}
}

// SummaryEvent builds the single nag notification for a set of pending
// tasks, listed in the order given.
func SummaryEvent(pending []model.Task, now time.Time, loc *time.Location, kind model.NotificationKind) model.NotificationEvent {
	noun := "tasks"
	if len(pending) == 1 {
		noun = "task"
	}
	ids := make([]string, 0, len(pending))
	parts := make([]string, 0, len(pending))
	for _, t := range pending {
		ids = append(ids, t.ID)
		parts = append(parts, fmt.Sprintf("%s (%s)", t.Title, dueLabel(t.Due, now, loc)))
	}
	return model.NotificationEvent{
		Title:   fmt.Sprintf("%d pending %s", len(pending), noun),
		Message: strings.Join(parts, ", "),
		At:      now,
		Kind:    kind,
		TaskIDs: ids,
	}
}

func dueLabel(due, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	local := due.In(loc)
	layout := "15:04"
	if !model.DayStart(due, loc).Equal(model.DayStart(now, loc)) {
		layout = "Jan 2 15:04"
	}
	if due.Before(now) {
		return "overdue since " + local.Format(layout)
	}
	return "due " + local.Format(layout)
}

func headsUpMessage(task model.Task, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	minutes := int(task.Due.Sub(now).Minutes())
	var when string
	switch {
	case minutes <= 0:
		when = "is starting now"
	case minutes == 1:
		when = "starts in 1 minute"
	default:
		when = fmt.Sprintf("starts in %d minutes", minutes)
	}
	msg := fmt.Sprintf("%s %s (at %s).", task.Title, when, task.Due.In(loc).Format("15:04"))
	if task.Notes != "" {
		msg += " " + task.Notes
	}
	return msg
}

// ActiveTask finds the task in progress at now among tasks, earliest start
// first, along with the time it ends.
func ActiveTask(tasks []model.Task, now time.Time, loc *time.Location) (model.Task, time.Time, bool) {
	sorted := make([]model.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Due.Before(sorted[j].Due) })
	for _, task := range sorted {
		if task.Due.After(now) {
			break
		}
		end := TaskEnd(task, sorted, loc)
		if now.Before(end) {
			return task, end, true
		}
	}
	return model.Task{}, time.Time{}, false
}

// TaskEnd is due+Duration, or the next later start among tasks, or the end of
// the task's day.
func TaskEnd(task model.Task, tasks []model.Task, loc *time.Location) time.Time {
	if task.Duration > 0 {
		return task.Due.Add(task.Duration)
	}
	end := model.DayStart(task.Due, loc).AddDate(0, 0, 1)
	for _, other := range tasks {
		if other.Due.After(task.Due) && other.Due.Before(end) {
			end = other.Due
		}
	}
	return end
}

func checkInMessage(task model.Task, end, now time.Time, grace time.Duration, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	elapsed := now.Sub(task.Due)
	minutes := int(elapsed.Minutes())
	var msg string
	switch {
	case elapsed <= grace && minutes <= 0:
		msg = task.Title + " just started."
	case elapsed <= grace && minutes == 1:
		msg = task.Title + " started 1 minute ago."
	case elapsed <= grace:
		msg = fmt.Sprintf("%s started %d minutes ago.", task.Title, minutes)
	default:
		msg = fmt.Sprintf("Doing %s until %s. Keep it up!", task.Title, end.In(loc).Format("15:04"))
	}
	if task.Notes != "" {
		msg += " " + task.Notes
	}
	return msg
}
