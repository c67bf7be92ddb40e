package notion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/planit/pkg/auth"
	"github.com/harrisonrobin/planit/pkg/model"
)

const queryFixture = `{
	"object": "list",
	"results": [
		{
			"object": "page",
			"id": "b-page",
			"properties": {
				"Task Name": {"id":"title","type":"title","title":[{"type":"text","plain_text":"Second"}]},
				"Checkbox": {"type":"checkbox","checkbox":false},
				"Date": {"type":"date","date":{"start":"2024-04-30","end":null}},
				"Objective Name": {"type":"rollup","rollup":{"type":"array","function":"show_original","array":[
					{"type":"date","date":null},
					{"type":"title","title":[]},
					{"type":"title","title":[{"plain_text":"Launch"}]}
				]}},
				"Objective Deadline": {"type":"rollup","rollup":{"type":"array","function":"show_original","array":[
					{"type":"formula","formula":{"type":"date","date":null}},
					{"type":"formula","formula":{"type":"date","date":{"start":"2024-05-01"}}},
					{"type":"date","date":{"start":"2024-01-01"}}
				]}},
				"Tags": {"type":"multi_select","multi_select":[{"name":"x"}]}
			}
		},
		{
			"object": "page",
			"id": "a-page",
			"properties": {
				"Checkbox": {"type":"rich_text","rich_text":[]}
			}
		}
	],
	"has_more": false
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "2022-06-28", auth.StaticToken("secret_test"))
}

func TestQueryDueTasks(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/databases/db-1/query", r.URL.Path)
		assert.Equal(t, "Bearer secret_test", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"filter":{"and":[
			{"property":"Checkbox","checkbox":{"equals":false}},
			{"property":"Date","date":{"on_or_before":"2024-05-01"}}
		]}}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(queryFixture))
	})

	tasks, err := client.QueryDueTasks(context.Background(), "db-1", "2024-05-01")
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, model.Task{
		ID:                "b-page",
		Title:             "Second",
		Status:            model.StatusToDo,
		DoDate:            strp("2024-04-30"),
		ObjectiveName:     strp("Launch"),
		ObjectiveDeadline: strp("2024-05-01"),
	}, tasks[0])
	assert.Equal(t, model.Task{
		ID:     "a-page",
		Title:  model.UntitledTask,
		Status: model.StatusToDo,
	}, tasks[1])
}

func TestQueryDueTasksRequiresDatabase(t *testing.T) {
	client := NewClient("http://unused", "2022-06-28", auth.StaticToken("t"))
	_, err := client.QueryDueTasks(context.Background(), "", "2024-05-01")
	assert.Error(t, err)
}

func TestQueryDueTasksBadJSON(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>` + strings.Repeat("x", 1000)))
	})

	_, err := client.QueryDueTasks(context.Background(), "db", "2024-05-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON Parse Error")
	assert.Contains(t, err.Error(), "Snippet: <html>")
	assert.Less(t, len(err.Error()), 700)
}

func TestAPIErrorNotRetried(t *testing.T) {
	var calls int32
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"object":"error","status":401,"code":"unauthorized","message":"API token is invalid."}`))
	})

	_, err := client.QueryDueTasks(context.Background(), "db", "2024-05-01")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "unauthorized", apiErr.Code)
	assert.Equal(t, "API token is invalid.", apiErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRateLimitRetried(t *testing.T) {
	var calls int32
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":"rate_limited","message":"slow down"}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	})

	tasks, err := client.QueryDueTasks(context.Background(), "db", "2024-05-01")
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestMissingTokenFailsFast(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client := NewClient(server.URL, "2022-06-28", auth.StaticToken(""))
	_, err := client.SearchDatabases(context.Background())
	assert.ErrorIs(t, err, auth.ErrNoToken)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestSetCompleted(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/pages/page-1", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{
			"properties": map[string]any{
				"Checkbox": map[string]any{"checkbox": true},
			},
		}, body)
		_, _ = w.Write([]byte(`{"object":"page","id":"page-1"}`))
	})

	require.NoError(t, client.SetCompleted(context.Background(), "page-1", true))
	assert.Error(t, client.SetCompleted(context.Background(), "", true))
}

func TestSearchDatabases(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"filter":{"value":"database","property":"object"},"page_size":100}`, string(body))
		_, _ = w.Write([]byte(`{"results":[
			{"object":"database","id":"db-1","title":[{"plain_text":"Tasks"}]},
			{"object":"database","id":"db-2","title":[]},
			{"object":"database","id":"db-3"}
		]}`))
	})

	dbs, err := client.SearchDatabases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.DatabaseInfo{
		{ID: "db-1", Title: "Tasks"},
		{ID: "db-2", Title: model.UntitledDatabase},
		{ID: "db-3", Title: model.UntitledDatabase},
	}, dbs)
}

func TestParsePages(t *testing.T) {
	pages, err := ParsePages(strings.NewReader(queryFixture))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "b-page", pages[0].ID)
	assert.Equal(t, UnknownProperty{Type: "multi_select"}, pages[0].Properties["Tags"])

	_, err = ParsePages(strings.NewReader("not json"))
	assert.Error(t, err)
}
