package google

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/harrisonrobin/planit/pkg/colors"
	"github.com/harrisonrobin/planit/pkg/index"
	"github.com/harrisonrobin/planit/pkg/model"
	"github.com/harrisonrobin/planit/pkg/util"
)

// syncWorkers bounds concurrent calendar writes.
const syncWorkers = 4

type Action string

const (
	Created   Action = "created"
	Updated   Action = "updated"
	Unchanged Action = "unchanged"
	Skipped   Action = "skipped"
	Failed    Action = "failed"
)

// Result is the outcome of mirroring one task.
type Result struct {
	TaskID  string
	EventID string
	Action  Action
	Err     error
}

// CalendarClient mirrors Notion tasks into one Google calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	colors     *colors.Cache
}

// NewCalendarClient wires a calendar service to the local index and color
// cache. Either may be nil.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex, cc *colors.Cache) *CalendarClient {
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx, colors: cc}
}

// SyncTasks upserts an event for every task with a do date. Results are
// returned in the same order as tasks; one failure does not stop the rest.
func (c *CalendarClient) SyncTasks(ctx context.Context, tasks []model.Task, today string) []Result {
	results := make([]Result, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncWorkers)

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			results[i] = c.syncTask(gctx, task, today)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *CalendarClient) syncTask(ctx context.Context, task model.Task, today string) Result {
	res := Result{TaskID: task.ID}

	colorID := colors.NoObjectiveColor
	if c.colors != nil {
		colorID = c.colors.ColorID(task.ObjectiveName)
	}
	target, err := util.TaskToEvent(task, colorID, today)
	if errors.Is(err, util.ErrNoDate) {
		res.Action = Skipped
		return res
	}
	if err != nil {
		res.Action, res.Err = Failed, err
		return res
	}

	existing, err := c.findEvent(ctx, task.ID)
	if err != nil {
		res.Action, res.Err = Failed, fmt.Errorf("error searching for event: %w", err)
		return res
	}

	var event *calendar.Event
	var patch *calendar.Event
	if existing != nil {
		patch = util.EventPatch(existing, target)
	}
	switch {
	case existing == nil:
		event, err = c.srv.Events.Insert(c.calendarID, target).Context(ctx).Do()
		res.Action = Created
	case patch != nil:
		event, err = c.PatchEvent(ctx, existing.Id, patch)
		res.Action = Updated
	default:
		event = existing
		res.Action = Unchanged
	}
	if err != nil {
		res.Action, res.Err = Failed, err
		return res
	}

	res.EventID = event.Id
	if c.index != nil {
		c.index.Set(task.ID, event.Id)
	}
	return res
}

// findEvent looks the page up in the local index first and falls back to
// searching the calendar's extended properties.
func (c *CalendarClient) findEvent(ctx context.Context, pageID string) (*calendar.Event, error) {
	if c.index != nil {
		if eventID := c.index.Get(pageID); eventID != "" {
			ev, err := c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
			if err == nil && ev.Status != "cancelled" {
				return ev, nil
			}
			c.index.Remove(pageID)
		}
	}
	return c.GetEventByPageID(ctx, pageID)
}

// GetEventByPageID searches for the event carrying the page's notion_id.
func (c *CalendarClient) GetEventByPageID(ctx context.Context, pageID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", util.NotionIDProperty, pageID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

// DeleteEvent deletes an event from the calendar.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	return c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
}

// Prune deletes the indexed events whose pages are no longer in keep, i.e.
// tasks that were completed or moved out of the due window.
func (c *CalendarClient) Prune(ctx context.Context, keep []model.Task) (int, error) {
	if c.index == nil {
		return 0, nil
	}
	wanted := make(map[string]bool, len(keep))
	for _, t := range keep {
		wanted[t.ID] = true
	}

	var stale []string
	for pageID := range c.index.Snapshot() {
		if !wanted[pageID] {
			stale = append(stale, pageID)
		}
	}

	removed := 0
	var errs []error
	for _, pageID := range stale {
		if err := c.DeleteEvent(ctx, c.index.Get(pageID)); err != nil && !isGone(err) {
			log.Printf("Prune: error deleting event for %s: %v", pageID, err)
			errs = append(errs, err)
			continue
		}
		c.index.Remove(pageID)
		removed++
	}
	return removed, errors.Join(errs...)
}

// isGone reports whether the API says the event no longer exists, e.g. it was
// deleted by hand or lives on a calendar we no longer sync to.
func isGone(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
}
