package notion

import "github.com/harrisonrobin/planit/pkg/model"

// Property names the task database is expected to use.
const (
	PropTaskName          = "Task Name"
	PropCheckbox          = "Checkbox"
	PropDate              = "Date"
	PropObjectiveName     = "Objective Name"
	PropObjectiveDeadline = "Objective Deadline"
)

// Assemble maps a page onto a Task. Missing or mistyped properties fall
// back to defaults; it never fails.
func Assemble(page Page) model.Task {
	return model.Task{
		ID:                page.ID,
		Title:             taskTitle(page.Properties),
		Status:            taskStatus(page.Properties),
		DoDate:            optional(doDate(page.Properties)),
		ObjectiveName:     optional(objectiveName(page.Properties)),
		ObjectiveDeadline: optional(objectiveDeadline(page.Properties)),
	}
}

// AssembleAll assembles every page, keeping input order.
func AssembleAll(pages []Page) []model.Task {
	tasks := make([]model.Task, len(pages))
	for i, p := range pages {
		tasks[i] = Assemble(p)
	}
	return tasks
}

func taskTitle(props Properties) string {
	if t, ok := props[PropTaskName].(TitleProperty); ok {
		if s, ok := firstText(t.Title); ok {
			return s
		}
	}
	return model.UntitledTask
}

func taskStatus(props Properties) string {
	if c, ok := props[PropCheckbox].(CheckboxProperty); ok && c.Checkbox {
		return model.StatusDone
	}
	return model.StatusToDo
}

func doDate(props Properties) (string, bool) {
	if d, ok := props[PropDate].(DateProperty); ok {
		return startOf(d.Date)
	}
	return "", false
}

func objectiveName(props Properties) (string, bool) {
	if r, ok := props[PropObjectiveName].(RollupProperty); ok {
		return RollupTitle(r.Rollup)
	}
	return "", false
}

func objectiveDeadline(props Properties) (string, bool) {
	if r, ok := props[PropObjectiveDeadline].(RollupProperty); ok {
		return RollupDate(r.Rollup)
	}
	return "", false
}

func optional(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}
