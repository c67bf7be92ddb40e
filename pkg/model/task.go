package model

const (
	StatusDone = "Done"
	StatusToDo = "To Do"

	UntitledTask     = "Untitled"
	UntitledDatabase = "Untitled Database"
)

// Task is the flat, display-ready form of a Notion task page.
type Task struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Status            string  `json:"status"`
	DoDate            *string `json:"do_date"`
	ObjectiveName     *string `json:"objective_name"`
	ObjectiveDeadline *string `json:"objective_deadline"`
}

// Done reports whether the task's checkbox is ticked.
func (t Task) Done() bool {
	return t.Status == StatusDone
}

// DatabaseInfo identifies a Notion database the integration can see.
type DatabaseInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
