package backend

import (
	"context"
	"net/url"
	"strconv"
)

type textBody struct {
	Text string `json:"text"`
}

// Dashboard fetches the dashboard summary.
func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var out Dashboard
	err := c.getJSON(ctx, "dashboard", nil, &out)
	return out, err
}

// Workday fetches the work schedule for a YYYY-MM-DD date.
func (c *Client) Workday(ctx context.Context, date string) (Workday, error) {
	var out Workday
	err := c.getJSON(ctx, "workdays/"+url.PathEscape(date), nil, &out)
	return out, err
}

// ActiveReminders lists reminders for a date.
func (c *Client) ActiveReminders(ctx context.Context, date string) (Reminders, error) {
	var out Reminders
	err := c.getJSON(ctx, "reminders/active", url.Values{"date": {date}}, &out)
	return out, err
}

// DoneReminder marks one reminder occurrence as done.
func (c *Client) DoneReminder(ctx context.Context, activeID int64, reminderKey string) (OKResult, error) {
	var out OKResult
	err := c.postJSON(ctx, "reminders/done", struct {
		ActiveID    int64  `json:"active_id"`
		ReminderKey string `json:"reminder_key"`
	}{ActiveID: activeID, ReminderKey: reminderKey}, &out)
	return out, err
}

// Tasks lists open tasks in priority order.
func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	var out struct {
		Tasks []Task `json:"tasks"`
	}
	err := c.getJSON(ctx, "tasks", nil, &out)
	return out.Tasks, err
}

// DoneTask marks a task as done.
func (c *Client) DoneTask(ctx context.Context, id int64) (OKResult, error) {
	var out OKResult
	err := c.postJSON(ctx, "tasks/"+strconv.FormatInt(id, 10)+"/done", nil, &out)
	return out, err
}

// Events lists events on a date.
func (c *Client) Events(ctx context.Context, date string) ([]Event, error) {
	var out struct {
		Events []Event `json:"events"`
	}
	err := c.getJSON(ctx, "events", url.Values{"date": {date}}, &out)
	return out.Events, err
}

// Respond asks for a free-form reply.
func (c *Client) Respond(ctx context.Context, text string) (RespondResult, error) {
	var out RespondResult
	err := c.postJSON(ctx, "ai/respond", textBody{Text: text}, &out)
	return out, err
}

// Schedule asks the backend to create whatever the text describes.
func (c *Client) Schedule(ctx context.Context, text string) (ScheduleResult, error) {
	var out ScheduleResult
	err := c.postJSON(ctx, "ai/schedule", textBody{Text: text}, &out)
	return out, err
}

// Resolve asks the backend to complete the item the text refers to.
func (c *Client) Resolve(ctx context.Context, text string) (OKResult, error) {
	var out OKResult
	err := c.postJSON(ctx, "ai/resolve", textBody{Text: text}, &out)
	return out, err
}

// Reclassify asks the backend to move an item to another kind.
func (c *Client) Reclassify(ctx context.Context, text string) (ReclassifyResult, error) {
	var out ReclassifyResult
	err := c.postJSON(ctx, "ai/reclassify", textBody{Text: text}, &out)
	return out, err
}

// ConfirmReclassify completes an ambiguous move with the chosen item.
func (c *Client) ConfirmReclassify(ctx context.Context, target, itemType string, itemID int64) (OKResult, error) {
	var out OKResult
	err := c.postJSON(ctx, "ai/reclassify/confirm", struct {
		Target   string `json:"target"`
		ItemType string `json:"item_type"`
		ItemID   int64  `json:"item_id"`
	}{Target: target, ItemType: itemType, ItemID: itemID}, &out)
	return out, err
}

// Priority asks the backend to change an item's priority.
func (c *Client) Priority(ctx context.Context, text string) (PriorityResult, error) {
	var out PriorityResult
	err := c.postJSON(ctx, "ai/priority", textBody{Text: text}, &out)
	return out, err
}
