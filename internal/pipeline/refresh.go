package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rbright/orb/internal/agenda"
	"github.com/rbright/orb/internal/backend"
	"github.com/rbright/orb/internal/feed"
	"github.com/rbright/orb/internal/intent"
)

// DefaultRefreshInterval is the background dashboard poll period.
const DefaultRefreshInterval = 5 * time.Second

// Snapshot is everything the dashboard shows at one refresh.
type Snapshot struct {
	Now     string          `json:"now"`
	Date    string          `json:"date"`
	Summary string          `json:"today_summary"`
	Alerts  []backend.Alert `json:"alerts"`
	Next    *string         `json:"next_task"`

	Work           agenda.Work       `json:"work"`
	Reminders      []agenda.Reminder `json:"reminders"`
	ReminderAlerts []agenda.Reminder `json:"reminder_alerts"`
	Events         []agenda.Event    `json:"events"`

	Tasks       []backend.Task              `json:"tasks"`
	CurrentTask *backend.Task               `json:"current_task,omitempty"`
	Browse      intent.BrowseState          `json:"browse"`
	Pending     *intent.PendingConfirmation `json:"pending,omitempty"`

	RefreshedAt time.Time `json:"refreshed_at"`
}

// Refresh pulls dashboard, workday, reminders, events and tasks in that order.
//
// On any failure the previous snapshot is kept. A change of calendar day drops
// the task view back to all tasks, and the selected task is reconciled against
// the new list. A dispatch in flight across either applies the same to its
// outcome before writing it back.
func (p *Pipeline) Refresh(ctx context.Context) (Snapshot, error) {
	snap, err := p.fetch(ctx)
	if err != nil {
		p.metrics.RecordRefreshFailure()
		p.publisher.Publish(feed.ErrorFrame(err.Error()))
		return Snapshot{}, err
	}

	p.mu.Lock()
	if p.day != "" && p.day != snap.Date {
		p.state = p.state.ResetDay()
		p.dayGen++
		p.logInfo("day changed; task view reset", "from", p.day, "to", snap.Date)
	}
	p.day = snap.Date
	p.refreshGen++
	p.tasks = snap.Tasks
	p.state.Browse.CurrentTaskID = intent.Reconcile(snap.Tasks, p.state.Browse.CurrentTaskID)
	p.snapshot = snap
	out := p.snapshotLocked()
	p.mu.Unlock()

	p.publisher.Publish(feed.DashboardFrame(out))
	return out, nil
}

func (p *Pipeline) fetch(ctx context.Context) (Snapshot, error) {
	dash, err := p.backend.Dashboard(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("refresh dashboard: %w", err)
	}

	now, ok := agenda.ParseNow(dash.Now, p.opts.Location)
	if !ok {
		now = p.opts.Now().In(p.opts.Location)
	}
	date := agenda.Day(now)

	workday, err := p.backend.Workday(ctx, date)
	if err != nil {
		return Snapshot{}, fmt.Errorf("refresh workday: %w", err)
	}
	reminders, err := p.backend.ActiveReminders(ctx, date)
	if err != nil {
		return Snapshot{}, fmt.Errorf("refresh reminders: %w", err)
	}
	events, err := p.backend.Events(ctx, date)
	if err != nil {
		return Snapshot{}, fmt.Errorf("refresh events: %w", err)
	}
	tasks, err := p.backend.Tasks(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("refresh tasks: %w", err)
	}

	visible := agenda.Reminders(reminders.Reminders, now)
	return Snapshot{
		Now:            dash.Now,
		Date:           date,
		Summary:        dash.TodaySummary,
		Alerts:         dash.Alerts,
		Next:           dash.NextTask,
		Work:           agenda.Workday(workday, now),
		Reminders:      visible,
		ReminderAlerts: agenda.Alerts(visible),
		Events:         agenda.Events(events, now),
		Tasks:          tasks,
		RefreshedAt:    p.opts.Now(),
	}, nil
}

// Snapshot returns the last refreshed dashboard with the current browse state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pipeline) snapshotLocked() Snapshot {
	snap := p.snapshot
	snap.Browse = p.state.Browse
	snap.Pending = p.state.Pending
	snap.CurrentTask = nil
	if task, ok := intent.Current(p.tasks, p.state.Browse.CurrentTaskID); ok {
		snap.CurrentTask = &task
	}
	return snap
}

func (p *Pipeline) publishSnapshot() {
	p.publisher.Publish(feed.DashboardFrame(p.Snapshot()))
}

// RunRefresh refreshes immediately and then every interval until ctx ends.
// Overlapping refreshes are not guarded; the last one to finish wins.
func (p *Pipeline) RunRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	p.refreshLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refreshLogged(ctx)
		}
	}
}

func (p *Pipeline) refreshLogged(ctx context.Context) {
	if _, err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
		p.logWarn("dashboard refresh failed", "error", err.Error())
	}
}

// DoneCurrentTask completes the selected task (or the first one) and refreshes.
func (p *Pipeline) DoneCurrentTask(ctx context.Context) (backend.Task, error) {
	p.mu.Lock()
	task, ok := intent.Current(p.tasks, p.state.Browse.CurrentTaskID)
	p.mu.Unlock()
	if !ok {
		return backend.Task{}, ErrNoCurrentTask
	}

	res, err := p.backend.DoneTask(ctx, task.ID)
	if err != nil {
		return backend.Task{}, fmt.Errorf("complete task %d: %w", task.ID, err)
	}
	if !res.OK {
		return backend.Task{}, fmt.Errorf("complete task %d: backend declined", task.ID)
	}
	if _, err := p.Refresh(ctx); err != nil {
		p.logWarn("refresh after task done failed", "error", err.Error())
	}
	return task, nil
}

// DoneReminder marks one reminder occurrence done and refreshes.
func (p *Pipeline) DoneReminder(ctx context.Context, activeID int64, key string) error {
	res, err := p.backend.DoneReminder(ctx, activeID, key)
	if err != nil {
		return fmt.Errorf("complete reminder %d: %w", activeID, err)
	}
	if !res.OK {
		return fmt.Errorf("complete reminder %d: backend declined", activeID)
	}
	if _, err := p.Refresh(ctx); err != nil {
		p.logWarn("refresh after reminder done failed", "error", err.Error())
	}
	return nil
}
