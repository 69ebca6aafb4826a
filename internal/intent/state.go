package intent

// Kind names the action a dispatch resolved to.
type Kind string

const (
	SingleTaskMode    Kind = "single_task_mode"
	AllTasksMode      Kind = "all_tasks_mode"
	BrowseContinue    Kind = "browse_continue"
	BrowseStop        Kind = "browse_stop"
	NextTask          Kind = "next_task"
	OtherTasks        Kind = "other_tasks"
	TopPriority       Kind = "top_priority"
	Complete          Kind = "complete"
	Reclassify        Kind = "reclassify"
	Priority          Kind = "priority"
	Schedule          Kind = "schedule"
	FreeformReply     Kind = "freeform_reply"
	ConfirmationReply Kind = "confirmation_reply"
)

// ViewMode is how the dashboard lists tasks.
type ViewMode string

const (
	ViewAll    ViewMode = "all"
	ViewSingle ViewMode = "single"
)

// BrowseState tracks task browsing. CurrentTaskID 0 means no selection.
type BrowseState struct {
	Active        bool     `json:"active"`
	View          ViewMode `json:"view_mode"`
	CurrentTaskID int64    `json:"current_task_id,omitempty"`
}

// Option is one disambiguation candidate.
type Option struct {
	ItemType string `json:"item_type"`
	ItemID   int64  `json:"item_id"`
	Label    string `json:"label"`
	Target   string `json:"target"`
}

// PendingConfirmation waits for a 1-based option number.
type PendingConfirmation struct {
	Target  string   `json:"target"`
	Options []Option `json:"options"`
}

// State is the conversational state threaded between dispatches.
type State struct {
	Pending *PendingConfirmation `json:"pending,omitempty"`
	Browse  BrowseState          `json:"browse"`
}

// InitialState is the state at startup: all-tasks view, browsing off.
func InitialState() State {
	return State{Browse: BrowseState{View: ViewAll}}
}

// ResetDay drops view and browse mode when the calendar day changes.
func (s State) ResetDay() State {
	s.Browse.View = ViewAll
	s.Browse.Active = false
	return s
}
