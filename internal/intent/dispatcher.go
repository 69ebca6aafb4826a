// Package intent resolves one utterance into exactly one action and acknowledgement.
package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/rbright/orb/internal/backend"
)

var (
	// ErrDispatchFailed wraps transport and HTTP failures; the caller keeps its previous state.
	ErrDispatchFailed = errors.New("intent dispatch failed")
	// ErrEmptyUtterance is returned for blank input.
	ErrEmptyUtterance = errors.New("empty utterance")
)

// Backend is the semantic collaborator behind the cascade.
type Backend interface {
	Resolve(ctx context.Context, text string) (backend.OKResult, error)
	Reclassify(ctx context.Context, text string) (backend.ReclassifyResult, error)
	ConfirmReclassify(ctx context.Context, target, itemType string, itemID int64) (backend.OKResult, error)
	Priority(ctx context.Context, text string) (backend.PriorityResult, error)
	Schedule(ctx context.Context, text string) (backend.ScheduleResult, error)
	Respond(ctx context.Context, text string) (backend.RespondResult, error)
}

// Picker returns an index in [0,n).
type Picker func(n int) int

// Turn is the input to one dispatch.
type Turn struct {
	Utterance string
	State     State
	Tasks     []backend.Task
}

// Outcome is the single user-visible result of a dispatch.
type Outcome struct {
	Intent Kind
	Text   string
	// Speak is false for numbered prompts, which are displayed only.
	Speak   bool
	Refresh bool
	State   State
}

type rule struct {
	kind   Kind
	match  func(Turn) bool
	handle func(ctx context.Context, text string, turn Turn) (Outcome, bool, error)
}

// Dispatcher evaluates the rule table top-down; the first handled rule wins.
type Dispatcher struct {
	backend Backend
	pick    Picker
	logger  *slog.Logger
	rules   []rule
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPicker replaces the random phrase picker.
func WithPicker(p Picker) DispatcherOption {
	return func(d *Dispatcher) {
		if p != nil {
			d.pick = p
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New builds a dispatcher over a backend.
func New(b Backend, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{backend: b, pick: rand.IntN}
	for _, opt := range opts {
		opt(d)
	}
	d.rules = []rule{
		{kind: ConfirmationReply, match: hasPending, handle: d.confirm},
		{kind: SingleTaskMode, match: utterance(singleTaskPattern), handle: d.singleTaskMode},
		{kind: AllTasksMode, match: utterance(allTasksPattern), handle: d.allTasksMode},
		{kind: BrowseContinue, match: browsing(continuePattern), handle: d.browseContinue},
		{kind: BrowseStop, match: browsing(stopPattern), handle: d.browseStop},
		{kind: NextTask, match: utterance(nextTaskPattern), handle: d.nextTask},
		{kind: OtherTasks, match: utterance(otherTasksPattern), handle: d.otherTasks},
		{kind: TopPriority, match: utterance(topPriorityPattern), handle: d.topPriority},
		{kind: Complete, match: always, handle: d.complete},
		{kind: Reclassify, match: utterance(reclassifyPattern), handle: d.reclassify},
		{kind: Priority, match: utterance(priorityPattern), handle: d.priority},
		{kind: Schedule, match: always, handle: d.schedule},
		{kind: FreeformReply, match: always, handle: d.respond},
	}
	return d
}

// Order returns the cascade order.
func (d *Dispatcher) Order() []Kind {
	out := make([]Kind, 0, len(d.rules))
	for _, r := range d.rules {
		out = append(out, r.kind)
	}
	return out
}

// Dispatch runs the cascade for one utterance. On error the returned outcome is
// empty and the caller keeps its previous state.
func (d *Dispatcher) Dispatch(ctx context.Context, turn Turn) (Outcome, error) {
	text := strings.TrimSpace(turn.Utterance)
	if text == "" {
		return Outcome{}, ErrEmptyUtterance
	}
	if turn.State.Browse.View == "" {
		turn.State.Browse.View = ViewAll
	}

	for _, r := range d.rules {
		if !r.match(turn) {
			continue
		}
		out, handled, err := r.handle(ctx, text, turn)
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: %s: %w", ErrDispatchFailed, r.kind, err)
		}
		if !handled {
			d.logDebug("intent fell through", "intent", string(r.kind))
			continue
		}
		out.Intent = r.kind
		d.logDebug("intent resolved", "intent", string(r.kind), "refresh", out.Refresh)
		return out, nil
	}
	return Outcome{}, fmt.Errorf("%w: no rule handled utterance", ErrDispatchFailed)
}

func hasPending(t Turn) bool {
	return t.State.Pending != nil
}

func always(Turn) bool { return true }

func utterance(pattern interface{ MatchString(string) bool }) func(Turn) bool {
	return func(t Turn) bool {
		return pattern.MatchString(t.Utterance)
	}
}

func browsing(pattern interface{ MatchString(string) bool }) func(Turn) bool {
	return func(t Turn) bool {
		return t.State.Browse.Active && pattern.MatchString(t.Utterance)
	}
}

func spoken(text string, state State) Outcome {
	return Outcome{Text: text, Speak: true, State: state}
}

func (d *Dispatcher) confirm(ctx context.Context, text string, turn Turn) (Outcome, bool, error) {
	pending := turn.State.Pending
	reprompt := Outcome{
		Text:  invalidOptionAck + "\n" + confirmationPrompt(pending),
		State: turn.State,
	}

	choice, ok := optionNumber(text)
	if !ok || choice < 1 || choice > len(pending.Options) {
		return reprompt, true, nil
	}
	opt := pending.Options[choice-1]

	res, err := d.backend.ConfirmReclassify(ctx, opt.Target, opt.ItemType, opt.ItemID)
	if err != nil {
		return Outcome{}, false, err
	}
	if !res.OK {
		return reprompt, true, nil
	}

	next := turn.State
	next.Pending = nil
	out := spoken(fmt.Sprintf("Moved: %s to %s", opt.Label, opt.Target), next)
	out.Refresh = true
	return out, true, nil
}

// optionNumber reads an option reply the way speech-to-text writes numbers:
// "2", "2.", "2.0" and "+2" all mean option 2. Non-integral values are rejected.
func optionNumber(text string) (int, bool) {
	text = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(text), ".!?,;:"))
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(v, 0) || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

func (d *Dispatcher) singleTaskMode(_ context.Context, _ string, turn Turn) (Outcome, bool, error) {
	next := turn.State
	next.Browse.View = ViewSingle

	task, ok := Current(turn.Tasks, next.Browse.CurrentTaskID)
	if !ok {
		task, ok = Advance(turn.Tasks, next.Browse.CurrentTaskID)
	}
	if !ok {
		return spoken(singleModePrefix+" "+noTasksAck, next), true, nil
	}
	next.Browse.CurrentTaskID = task.ID
	return spoken(singleModePrefix+" "+nextTaskAck(task.Title), next), true, nil
}

func (d *Dispatcher) allTasksMode(_ context.Context, _ string, turn Turn) (Outcome, bool, error) {
	next := turn.State
	next.Browse.View = ViewAll
	next.Browse.Active = false
	return spoken(allTasksAck, next), true, nil
}

func (d *Dispatcher) browseContinue(_ context.Context, _ string, turn Turn) (Outcome, bool, error) {
	next := turn.State
	task, ok := Advance(turn.Tasks, next.Browse.CurrentTaskID)
	if !ok {
		next.Browse.Active = false
		return spoken(noTasksAck, next), true, nil
	}
	next.Browse.CurrentTaskID = task.ID
	return spoken(browseAck(task.Title), next), true, nil
}

func (d *Dispatcher) browseStop(_ context.Context, _ string, turn Turn) (Outcome, bool, error) {
	next := turn.State
	next.Browse.Active = false
	return spoken(browseStopAck, next), true, nil
}

func (d *Dispatcher) nextTask(_ context.Context, _ string, turn Turn) (Outcome, bool, error) {
	next := turn.State
	next.Browse.View = ViewSingle
	task, ok := Advance(turn.Tasks, next.Browse.CurrentTaskID)
	if !ok {
		return spoken(noTasksAck, next), true, nil
	}
	next.Browse.CurrentTaskID = task.ID
	return spoken(nextTaskAck(task.Title), next), true, nil
}

func (d *Dispatcher) otherTasks(_ context.Context, _ string, turn Turn) (Outcome, bool, error) {
	next := turn.State
	next.Browse.View = ViewSingle
	task, ok := Advance(turn.Tasks, next.Browse.CurrentTaskID)
	if !ok {
		return spoken(noTasksAck, next), true, nil
	}
	next.Browse.CurrentTaskID = task.ID
	next.Browse.Active = true
	return spoken(browseAck(task.Title), next), true, nil
}

func (d *Dispatcher) topPriority(_ context.Context, _ string, turn Turn) (Outcome, bool, error) {
	next := turn.State
	next.Browse.View = ViewSingle
	if len(turn.Tasks) == 0 {
		return spoken(noTasksAck, next), true, nil
	}
	top := turn.Tasks[0]
	next.Browse.CurrentTaskID = top.ID
	return spoken("Top priority task: "+top.Title+".", next), true, nil
}

func (d *Dispatcher) complete(ctx context.Context, text string, turn Turn) (Outcome, bool, error) {
	res, err := d.backend.Resolve(ctx, text)
	if err != nil || !res.OK {
		return Outcome{}, false, err
	}
	out := spoken(d.choose(completionAcks), turn.State)
	out.Refresh = true
	return out, true, nil
}

func (d *Dispatcher) reclassify(ctx context.Context, text string, turn Turn) (Outcome, bool, error) {
	res, err := d.backend.Reclassify(ctx, text)
	if err != nil {
		return Outcome{}, false, err
	}

	if res.NeedsConfirmation && len(res.Options) > 0 {
		target := res.Target
		if target == "" {
			target = defaultMoveTarget
		}
		pending := &PendingConfirmation{Target: target, Options: make([]Option, 0, len(res.Options))}
		for _, o := range res.Options {
			pending.Options = append(pending.Options, Option{
				ItemType: o.ItemType,
				ItemID:   o.ItemID,
				Label:    o.Label,
				Target:   target,
			})
		}
		next := turn.State
		next.Pending = pending
		return Outcome{Text: confirmationPrompt(pending), State: next}, true, nil
	}

	if !res.OK {
		return Outcome{}, false, nil
	}
	out := spoken(movedAck, turn.State)
	out.Refresh = true
	return out, true, nil
}

func (d *Dispatcher) priority(ctx context.Context, text string, turn Turn) (Outcome, bool, error) {
	res, err := d.backend.Priority(ctx, text)
	if err != nil || !res.OK || res.Priority == "" {
		return Outcome{}, false, err
	}
	out := spoken(fmt.Sprintf(d.choose(priorityAcks), res.Priority), turn.State)
	out.Refresh = true
	return out, true, nil
}

func (d *Dispatcher) schedule(ctx context.Context, text string, turn Turn) (Outcome, bool, error) {
	res, err := d.backend.Schedule(ctx, text)
	if err != nil || !res.OK {
		return Outcome{}, false, err
	}
	out := spoken(d.scheduleAck(res), turn.State)
	out.Refresh = true
	return out, true, nil
}

func (d *Dispatcher) respond(ctx context.Context, text string, turn Turn) (Outcome, bool, error) {
	res, err := d.backend.Respond(ctx, text)
	if err != nil {
		return Outcome{}, false, err
	}
	return spoken(res.Text, turn.State), true, nil
}

func (d *Dispatcher) logDebug(msg string, args ...any) {
	if d.logger == nil {
		return
	}
	d.logger.Debug(msg, args...)
}
