package intent

import "github.com/rbright/orb/internal/backend"

func taskIndex(tasks []backend.Task, id int64) int {
	if id == 0 {
		return -1
	}
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Current returns the selected task, or the first task when nothing valid is selected.
func Current(tasks []backend.Task, id int64) (backend.Task, bool) {
	if idx := taskIndex(tasks, id); idx >= 0 {
		return tasks[idx], true
	}
	if len(tasks) > 0 {
		return tasks[0], true
	}
	return backend.Task{}, false
}

// Advance returns the task after the selected one, wrapping at the end of the list.
// A single-task list always yields that task.
func Advance(tasks []backend.Task, id int64) (backend.Task, bool) {
	switch len(tasks) {
	case 0:
		return backend.Task{}, false
	case 1:
		return tasks[0], true
	}
	idx := taskIndex(tasks, id)
	if idx < 0 {
		idx = 0
	}
	return tasks[(idx+1)%len(tasks)], true
}

// Reconcile keeps the selection when it still exists and otherwise falls back to the first task.
func Reconcile(tasks []backend.Task, id int64) int64 {
	if len(tasks) == 0 {
		return 0
	}
	if taskIndex(tasks, id) >= 0 {
		return id
	}
	return tasks[0].ID
}
