package notion

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/planit/pkg/model"
)

func strp(s string) *string { return &s }

func dateVal(s string) *DateValue { return &DateValue{Start: s} }

func pageFromJSON(t *testing.T, raw string) Page {
	t.Helper()
	var p Page
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestAssembleFullPage(t *testing.T) {
	page := pageFromJSON(t, `{
		"id": "page-1",
		"properties": {
			"Task Name": {"type":"title","title":[{"plain_text":"Write report"}]},
			"Checkbox": {"type":"checkbox","checkbox":false},
			"Date": {"type":"date","date":{"start":"2024-04-30"}},
			"Objective Name": {"type":"rollup","rollup":{"type":"array","array":[
				{"type":"title","title":[{"plain_text":"Launch"}]}
			]}},
			"Objective Deadline": {"type":"rollup","rollup":{"type":"array","array":[
				{"type":"formula","formula":{"type":"date","date":{"start":"2024-05-01"}}}
			]}}
		}
	}`)

	got := Assemble(page)
	assert.Equal(t, model.Task{
		ID:                "page-1",
		Title:             "Write report",
		Status:            model.StatusToDo,
		DoDate:            strp("2024-04-30"),
		ObjectiveName:     strp("Launch"),
		ObjectiveDeadline: strp("2024-05-01"),
	}, got)
}

func TestAssembleEmptyPage(t *testing.T) {
	got := Assemble(Page{ID: "bare"})
	assert.Equal(t, model.Task{
		ID:     "bare",
		Title:  model.UntitledTask,
		Status: model.StatusToDo,
	}, got)
}

func TestAssembleTitle(t *testing.T) {
	tests := []struct {
		name string
		prop PropertyValue
		want string
	}{
		{"first fragment", TitleProperty{Title: []RichText{{PlainText: "A"}, {PlainText: "B"}}}, "A"},
		{"empty title", TitleProperty{Title: []RichText{}}, model.UntitledTask},
		{"nil title", TitleProperty{}, model.UntitledTask},
		{"wrong type", CheckboxProperty{Checkbox: true}, model.UntitledTask},
		{"unknown", UnknownProperty{Type: "rich_text"}, model.UntitledTask},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assemble(Page{ID: "p", Properties: Properties{PropTaskName: tt.prop}})
			assert.Equal(t, tt.want, got.Title)
		})
	}
}

func TestAssembleStatus(t *testing.T) {
	tests := []struct {
		name  string
		props Properties
		want  string
	}{
		{"checked", Properties{PropCheckbox: CheckboxProperty{Checkbox: true}}, model.StatusDone},
		{"unchecked", Properties{PropCheckbox: CheckboxProperty{Checkbox: false}}, model.StatusToDo},
		{"absent", Properties{}, model.StatusToDo},
		{"mistyped", Properties{PropCheckbox: DateProperty{Date: dateVal("2024-01-01")}}, model.StatusToDo},
		{"malformed", Properties{PropCheckbox: UnknownProperty{Type: "checkbox"}}, model.StatusToDo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Assemble(Page{Properties: tt.props}).Status)
		})
	}
}

func TestAssembleStatusFromMistypedJSON(t *testing.T) {
	page := pageFromJSON(t, `{"id":"p","properties":{"Checkbox":{"type":"checkbox","checkbox":"true"}}}`)
	assert.Equal(t, model.StatusToDo, Assemble(page).Status)
}

func TestAssembleDoDate(t *testing.T) {
	assert.Nil(t, Assemble(Page{Properties: Properties{}}).DoDate)
	assert.Nil(t, Assemble(Page{Properties: Properties{PropDate: DateProperty{}}}).DoDate)
	assert.Nil(t, Assemble(Page{Properties: Properties{PropDate: TitleProperty{}}}).DoDate)

	got := Assemble(Page{Properties: Properties{PropDate: DateProperty{Date: dateVal("2024-02-29")}}})
	require.NotNil(t, got.DoDate)
	assert.Equal(t, "2024-02-29", *got.DoDate)
}

func TestAssembleObjectiveName(t *testing.T) {
	tests := []struct {
		name string
		prop PropertyValue
		want *string
	}{
		{
			name: "first non-empty title wins",
			prop: RollupProperty{Rollup: ArrayRollup{Array: []RollupItem{
				DateItem{Date: dateVal("2024-01-01")},
				TitleItem{Title: []RichText{}},
				TitleItem{Title: []RichText{{PlainText: "Launch"}}},
				TitleItem{Title: []RichText{{PlainText: "Later"}}},
			}}},
			want: strp("Launch"),
		},
		{
			name: "no titles",
			prop: RollupProperty{Rollup: ArrayRollup{Array: []RollupItem{DateItem{}, UnknownItem{Type: "number"}}}},
			want: nil,
		},
		{
			name: "empty array",
			prop: RollupProperty{Rollup: ArrayRollup{}},
			want: nil,
		},
		{
			name: "scalar date rollup",
			prop: RollupProperty{Rollup: DateRollup{Date: dateVal("2024-01-01")}},
			want: nil,
		},
		{
			name: "not a rollup",
			prop: TitleProperty{Title: []RichText{{PlainText: "Launch"}}},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assemble(Page{Properties: Properties{PropObjectiveName: tt.prop}})
			assert.Equal(t, tt.want, got.ObjectiveName)
		})
	}
}

func TestAssembleObjectiveDeadline(t *testing.T) {
	tests := []struct {
		name string
		prop PropertyValue
		want *string
	}{
		{
			name: "first present date in array order",
			prop: RollupProperty{Rollup: ArrayRollup{Array: []RollupItem{
				FormulaItem{Formula: DateFormula{}},
				FormulaItem{Formula: DateFormula{Date: dateVal("2024-05-01")}},
				DateItem{Date: dateVal("2024-01-01")},
			}}},
			want: strp("2024-05-01"),
		},
		{
			name: "direct date before formula",
			prop: RollupProperty{Rollup: ArrayRollup{Array: []RollupItem{
				TitleItem{Title: []RichText{{PlainText: "x"}}},
				DateItem{Date: dateVal("2024-01-01")},
				FormulaItem{Formula: DateFormula{Date: dateVal("2024-05-01")}},
			}}},
			want: strp("2024-01-01"),
		},
		{
			name: "non-date formula skipped",
			prop: RollupProperty{Rollup: ArrayRollup{Array: []RollupItem{
				FormulaItem{Formula: UnknownFormula{Type: "string"}},
				DateItem{},
			}}},
			want: nil,
		},
		{
			name: "scalar date rollup",
			prop: RollupProperty{Rollup: DateRollup{Date: dateVal("2024-06-30")}},
			want: strp("2024-06-30"),
		},
		{
			name: "scalar empty date rollup",
			prop: RollupProperty{Rollup: DateRollup{}},
			want: nil,
		},
		{
			name: "unknown rollup",
			prop: RollupProperty{Rollup: UnknownRollup{Type: "number"}},
			want: nil,
		},
		{
			name: "not a rollup",
			prop: DateProperty{Date: dateVal("2024-06-30")},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assemble(Page{Properties: Properties{PropObjectiveDeadline: tt.prop}})
			assert.Equal(t, tt.want, got.ObjectiveDeadline)
		})
	}
}

func TestAssembleAllKeepsOrder(t *testing.T) {
	pages := make([]Page, 20)
	for i := range pages {
		pages[i] = Page{
			ID: fmt.Sprintf("page-%02d", i),
			Properties: Properties{
				PropTaskName: TitleProperty{Title: []RichText{{PlainText: fmt.Sprintf("task %d", i)}}},
			},
		}
	}
	// Pages with nothing usable are still emitted, not filtered.
	pages[7].Properties = nil

	tasks := AssembleAll(pages)
	require.Len(t, tasks, len(pages))
	for i, task := range tasks {
		assert.Equal(t, pages[i].ID, task.ID)
	}
	assert.Equal(t, model.UntitledTask, tasks[7].Title)
	assert.Equal(t, "task 8", tasks[8].Title)
}

func TestAssembleAllEmpty(t *testing.T) {
	assert.Empty(t, AssembleAll(nil))
}

func TestTaskJSONShape(t *testing.T) {
	b, err := json.Marshal(model.Task{ID: "p", Title: "t", Status: model.StatusToDo, DoDate: strp("2024-01-01")})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "p",
		"title": "t",
		"status": "To Do",
		"do_date": "2024-01-01",
		"objective_name": null,
		"objective_deadline": null
	}`, string(b))
}
