package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harrisonrobin/planit/pkg/dates"
	"github.com/harrisonrobin/planit/pkg/model"
	"google.golang.org/api/calendar/v3"
)

// NotionIDProperty is the private extended property linking an event to its page.
const NotionIDProperty = "notion_id"

// ErrNoDate is returned for tasks without a do date; they have no place on a calendar.
var ErrNoDate = errors.New("task has no do date")

// TaskToEvent builds the all-day event mirroring a task. today is the
// YYYY-MM-DD date used to flag overdue tasks.
func TaskToEvent(task model.Task, colorID, today string) (*calendar.Event, error) {
	if task.DoDate == nil || *task.DoDate == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoDate, task.ID)
	}
	start, err := dates.Parse(*task.DoDate)
	if err != nil {
		return nil, fmt.Errorf("task %s has an unreadable do date %q: %w", task.ID, *task.DoDate, err)
	}

	prefix := ""
	switch {
	case task.Done():
		prefix = "✓"
	case dates.Before(*task.DoDate, today):
		prefix = "!"
	}
	summary := task.Title
	if prefix != "" {
		summary = prefix + " " + task.Title
	}

	var desc strings.Builder
	fmt.Fprintf(&desc, "Status: %s\n", task.Status)
	if task.ObjectiveName != nil {
		fmt.Fprintf(&desc, "Objective: %s\n", *task.ObjectiveName)
	}
	if task.ObjectiveDeadline != nil {
		fmt.Fprintf(&desc, "Objective deadline: %s\n", *task.ObjectiveDeadline)
	}
	fmt.Fprintf(&desc, "Notion ID: %s\n", task.ID)

	return &calendar.Event{
		Summary:     summary,
		Description: desc.String(),
		ColorId:     colorID,
		Start:       &calendar.EventDateTime{Date: start.Format(dates.Layout)},
		End:         &calendar.EventDateTime{Date: start.AddDate(0, 0, 1).Format(dates.Layout)},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{NotionIDProperty: task.ID},
		},
	}, nil
}

// EventPatch returns the fields of target that differ from existing, or nil
// when the event is already up to date.
func EventPatch(existing, target *calendar.Event) *calendar.Event {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}
	if eventDate(existing.Start) != eventDate(target.Start) || eventDate(existing.End) != eventDate(target.End) {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch
	}
	return nil
}

func eventDate(dt *calendar.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.Date != "" {
		return dt.Date
	}
	return dt.DateTime
}

// NotionIDFromEvent returns the page ID stored on an event.
func NotionIDFromEvent(ev *calendar.Event) (string, bool) {
	if ev == nil || ev.ExtendedProperties == nil {
		return "", false
	}
	id, ok := ev.ExtendedProperties.Private[NotionIDProperty]
	return id, ok && id != ""
}
