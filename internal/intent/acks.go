package intent

import (
	"fmt"
	"strings"

	"github.com/rbright/orb/internal/backend"
)

const (
	noTasksAck        = "You have no tasks."
	allTasksAck       = "Okay, showing all tasks."
	browseStopAck     = "Okay."
	movedAck          = "Moved it."
	invalidOptionAck  = "Please reply with a valid option number."
	scheduleDefault   = "Done."
	browseQuestion    = "Want to hear the next one?"
	singleModePrefix  = "Okay, one task at a time."
	defaultMoveTarget = "task"
)

var completionAcks = []string{
	"Ok, I'll mark it as done.",
	"Got it, marking that as done.",
	"All set, I marked it as done.",
	"Done. I've marked it.",
	"No problem, it's marked as done.",
	"Okay, marked as done.",
	"Sure, I'll mark it done.",
	"Understood. Marked as done.",
	"Got it. Marked as done.",
	"Okay, I'll mark that as done.",
	"Done. I've got it marked.",
	"All right, it's marked as done.",
	"Consider it done.",
	"Done and marked.",
	"Marked it as done.",
	"Okay, done.",
	"Yep, marking it as done now.",
	"Done. Marked it.",
	"Got it, that's done.",
	"All done. Marked.",
	"Sorted. Marked as done.",
	"Done, I'll mark it.",
	"Okay, I'll mark it.",
	"Great, it's marked as done.",
	"Got it. I'll mark it as done.",
	"All right, I'll mark it as done.",
	"Done, marked as done.",
	"No worries, I marked it done.",
	"Sure thing, it's marked as done.",
	"Okay, that's marked as done.",
}

// priorityAcks take the priority level as their single argument.
var priorityAcks = []string{
	"Okay, set it to %s.",
	"Got it, it's now %s.",
	"Done, priority set to %s.",
	"All set, marked as %s.",
	"Okay, updated to %s.",
	"Got it, %s priority.",
	"Done, %s.",
	"Updated. It's %s now.",
}

// addAcks take the created kind (event, task, tasks, alert) as their single argument.
var addAcks = []string{
	"Got it, I added the %s.",
	"Okay, I added the %s.",
	"Done, I added the %s.",
	"All set, the %s is added.",
	"Sorted, I added the %s.",
	"Great, I've added the %s.",
	"No problem, I added the %s.",
	"Okay, the %s is in.",
	"Added the %s.",
	"That %s is added now.",
	"Got it, added the %s.",
	"All good, I added the %s.",
	"Consider the %s added.",
	"Done, the %s is added.",
	"Noted and added the %s.",
	"Added the %s for you.",
	"Got it, that %s is added.",
	"Okay, that %s is added.",
	"Sure, I added the %s.",
	"Done, added the %s.",
	"Alright, I added the %s.",
	"Okay, I've put the %s in.",
	"All set, added the %s.",
	"No worries, the %s is added.",
	"Added the %s, all set.",
	"Done, the %s is in.",
	"Got it, the %s is now added.",
	"Alright, the %s is added.",
	"Okay, you're set, the %s is added.",
	"Got it, the %s is added now.",
}

var workdayAcks = []string{
	"Got it, I've updated your work schedule.",
	"Okay, your workdays are updated.",
	"All set, I updated your work schedule.",
	"Done, I updated your workdays.",
	"Sorted, I've updated your work schedule.",
	"Okay, I've made those workday changes.",
	"Got it, your workday changes are saved.",
	"All good, your work schedule is updated.",
}

var mixedAcks = []string{
	"Got it, I added everything.",
	"All set, I added those.",
	"Okay, I added all of that.",
	"Done, I added everything.",
	"Sorted, I added those items.",
	"All good, I added it all.",
	"Got it, everything's added.",
	"Okay, those are added.",
}

func (d *Dispatcher) choose(pool []string) string {
	idx := d.pick(len(pool))
	if idx < 0 || idx >= len(pool) {
		idx = 0
	}
	return pool[idx]
}

func (d *Dispatcher) addAck(kind string) string {
	return fmt.Sprintf(d.choose(addAcks), kind)
}

// scheduleAck picks the acknowledgement for whatever the schedule call created.
func (d *Dispatcher) scheduleAck(res backend.ScheduleResult) string {
	action := res.Action
	if action == "" {
		action = "event"
	}

	switch {
	case action == "task" && backend.Present(res.Task):
		if len(res.Tasks) > 1 {
			return d.addAck("tasks")
		}
		return d.addAck("task")
	case action == "reminder" && backend.Present(res.Reminder):
		return d.addAck("alert")
	case action == "workday":
		return d.choose(workdayAcks)
	case action == "mixed":
		return d.mixedAck(res)
	case backend.Present(res.Event):
		return d.addAck("event")
	default:
		return scheduleDefault
	}
}

func (d *Dispatcher) mixedAck(res backend.ScheduleResult) string {
	total := len(res.Tasks) + len(res.Reminders) + len(res.Events) + len(res.Workdays)
	if total != 1 {
		return d.choose(mixedAcks)
	}
	switch {
	case len(res.Tasks) == 1:
		return d.addAck("task")
	case len(res.Reminders) == 1:
		return d.addAck("alert")
	case len(res.Events) == 1:
		return d.addAck("event")
	default:
		return d.choose(workdayAcks)
	}
}

func nextTaskAck(title string) string {
	return "Next task: " + title + "."
}

func browseAck(title string) string {
	return nextTaskAck(title) + " " + browseQuestion
}

// confirmationPrompt renders the numbered disambiguation list.
func confirmationPrompt(p *PendingConfirmation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Which one should I move to %s?", p.Target)
	for i, opt := range p.Options {
		fmt.Fprintf(&b, "\n%d) %s (%s)", i+1, opt.Label, opt.ItemType)
	}
	return b.String()
}
