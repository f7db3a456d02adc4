package view_test

import (
	"context"
	"maps"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskgantt/internal/eventbus"
	"github.com/kazz187/taskgantt/internal/gantt"
	"github.com/kazz187/taskgantt/internal/reconcile"
	"github.com/kazz187/taskgantt/internal/record"
	"github.com/kazz187/taskgantt/internal/record/repositoryimpl"
	"github.com/kazz187/taskgantt/internal/view"
	"github.com/kazz187/taskgantt/pkg/cerr"
	"github.com/kazz187/taskgantt/pkg/storage"
)

var taskModel = &record.Model{
	Name: "project.task",
	Fields: map[string]record.Field{
		"name":          {Type: record.Char},
		"user_id":       {Type: record.Many2one, Relation: "res.users"},
		"date_start":    {Type: record.Datetime},
		"date_stop":     {Type: record.Datetime},
		"planned_hours": {Type: record.Float},
		"progress":      {Type: record.Float},
	},
	Rights: gantt.Rights{Write: true, Create: true, Unlink: true},
}

var settings = view.Settings{
	Mapping: gantt.FieldMapping{
		DateStart: "date_start",
		DateStop:  "date_stop",
		DateDelay: "planned_hours",
		Progress:  "progress",
	},
	GroupBys: []string{"user_id"},
}

type fixture struct {
	ctx        context.Context
	repo       *repositoryimpl.YAMLRepository
	source     *record.Source
	scheduler  *reconcile.Manual
	snapshot   *view.Snapshot
	events     <-chan *eventbus.Event
	controller *view.Controller
}

func newFixture(t *testing.T, model *record.Model, s view.Settings) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := repositoryimpl.NewYAMLRepository(storage.NewMemoryStorage())
	require.NoError(t, repo.SaveModel(ctx, model))
	require.NoError(t, repo.SaveModel(ctx, &record.Model{
		Name:    "res.users",
		RecName: "login",
		Fields:  map[string]record.Field{"login": {Type: record.Char}},
	}))
	for id, login := range map[string]string{"7": "alice", "8": "bob"} {
		require.NoError(t, repo.Create(ctx, &record.Entry{ID: id, Model: "res.users", Values: map[string]any{"login": login}}))
	}
	seed := []*record.Entry{
		{ID: "1", Values: map[string]any{"name": "Design", "user_id": []any{"7", "alice"}, "date_start": "2024-01-10 09:00:00", "date_stop": "2024-01-11 09:00:00", "progress": 50}},
		{ID: "2", Values: map[string]any{"name": "Launch", "date_start": "2024-01-12 09:00:00"}},
		{ID: "3", Values: map[string]any{"name": "Someday", "user_id": []any{"8", "bob"}}},
	}
	for _, e := range seed {
		e.Model = model.Name
		require.NoError(t, repo.Create(ctx, e))
	}

	bus := eventbus.New()
	sub := bus.Subscribe(64)
	t.Cleanup(sub.Close)
	f := &fixture{
		ctx:       ctx,
		repo:      repo,
		source:    record.NewSource(repo, model),
		scheduler: &reconcile.Manual{},
		snapshot:  &view.Snapshot{},
		events:    sub.Events(),
	}
	c, err := view.NewController(ctx, view.Deps{
		Source:    f.source,
		Sink:      f.source,
		Presenter: f.snapshot,
		Bus:       bus,
		Scheduler: f.scheduler,
	}, s)
	require.NoError(t, err)
	f.controller = c
	return f
}

// drain returns the published event types in order.
func (f *fixture) drain() []eventbus.EventType {
	var types []eventbus.EventType
	for {
		select {
		case e := <-f.events:
			types = append(types, e.Type)
		default:
			return types
		}
	}
}

func count(types []eventbus.EventType, want eventbus.EventType) int {
	n := 0
	for _, t := range types {
		if t == want {
			n++
		}
	}
	return n
}

func at(day, hour int) time.Time {
	return time.Date(2024, time.January, day, hour, 0, 0, 0, time.UTC)
}

func TestController_Load(t *testing.T) {
	f := newFixture(t, taskModel, settings)

	v, err := f.controller.Load(f.ctx, view.Params{})
	require.NoError(t, err)

	require.Len(t, v.Tasks, 2)
	assert.Equal(t, []string{"user_id"}, v.GroupBys)
	assert.Equal(t, "Design", v.Tasks[0].Label)
	assert.Equal(t, gantt.GroupID("7"), v.Tasks[0].Group)
	assert.Equal(t, "alice", v.Tasks[0].GroupLabel)
	assert.Equal(t, at(11, 9), *v.Tasks[0].End)
	assert.Equal(t, 50.0, v.Tasks[0].Progress)
	assert.Equal(t, gantt.Ungrouped, v.Tasks[1].Group)
	assert.Nil(t, v.Tasks[1].End)
	assert.Equal(t, []gantt.Group{
		{ID: gantt.Ungrouped, Label: gantt.UngroupedLabel, Value: false},
		{ID: "7", Label: "alice", Value: "7"},
	}, v.Groups)

	latest, ok := f.snapshot.Latest()
	require.True(t, ok)
	assert.Equal(t, v, latest)
	assert.Equal(t, []eventbus.EventType{eventbus.ViewReloaded}, f.drain())

	task, ok := f.controller.Task("1")
	require.True(t, ok)
	assert.Equal(t, "Design", task.Label)
	_, ok = f.controller.Task("3")
	assert.False(t, ok)
}

func TestController_LoadWithDomainAndGroupBy(t *testing.T) {
	f := newFixture(t, taskModel, settings)

	v, err := f.controller.Load(f.ctx, view.Params{
		Domain:   gantt.Domain{{Field: "name", Operator: "ilike", Value: "des"}},
		GroupBys: []string{"name"},
	})
	require.NoError(t, err)
	require.Len(t, v.Tasks, 1)
	assert.Equal(t, gantt.GroupID("Design"), v.Tasks[0].Group)

	_, err = f.controller.Load(f.ctx, view.Params{
		Domain: gantt.Domain{{Field: "name", Operator: "like", Value: "x"}},
	})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestController_DateChangesFlushAsOneBatch(t *testing.T) {
	f := newFixture(t, taskModel, settings)
	_, err := f.controller.Load(f.ctx, view.Params{})
	require.NoError(t, err)
	f.drain()

	design, _ := f.controller.Task("1")
	launch, _ := f.controller.Task("2")
	var done atomic.Int32
	markDone := func() { done.Add(1) }

	end := at(16, 9)
	require.NoError(t, f.controller.DateChanged(f.ctx, gantt.DateChange{
		Task: design, Start: at(15, 9), End: &end, Group: "8", Kind: gantt.Move,
	}, markDone))
	require.NoError(t, f.controller.DateChanged(f.ctx, gantt.DateChange{
		Task: launch, Start: at(13, 9), Kind: gantt.Move,
	}, markDone))
	assert.Equal(t, 1, f.scheduler.Len())
	assert.Empty(t, f.drain())

	assert.Equal(t, 1, f.scheduler.RunPending())
	assert.Equal(t, int32(2), done.Load())

	types := f.drain()
	assert.Equal(t, 2, count(types, eventbus.RecordWritten))
	assert.Equal(t, 1, count(types, eventbus.ViewReloaded))
	assert.Equal(t, 1, count(types, eventbus.BatchCompleted))
	assert.Equal(t, eventbus.BatchCompleted, types[len(types)-1])

	moved, ok := f.controller.Task("1")
	require.True(t, ok)
	assert.Equal(t, at(15, 9), moved.Start)
	assert.Equal(t, at(16, 9), *moved.End)
	assert.Equal(t, gantt.GroupID("8"), moved.Group)
	assert.Equal(t, "bob", moved.GroupLabel)

	e, err := f.repo.Get(f.ctx, "project.task", "2")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-13 09:00:00", e.Values["date_start"])
	assert.Equal(t, "2024-01-13 09:00:00", e.Values["date_stop"])
	assert.Equal(t, false, e.Values["user_id"])
}

func TestController_DragInScalarGroup(t *testing.T) {
	model := *taskModel
	model.Fields = maps.Clone(taskModel.Fields)
	model.Fields["urgent"] = record.Field{Type: record.Boolean}
	model.Fields["priority"] = record.Field{Type: record.Integer}

	tests := []struct {
		name    string
		groupBy string
		to      gantt.GroupID
		want    any
	}{
		{name: "boolean, same group", groupBy: "urgent", want: true},
		{name: "boolean, to ungrouped", groupBy: "urgent", to: gantt.Ungrouped, want: false},
		{name: "integer, same group", groupBy: "priority", want: 3},
		{name: "integer, other group", groupBy: "priority", to: "5", want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &model, settings)
			for _, e := range []*record.Entry{
				{ID: "10", Values: map[string]any{"name": "Hotfix", "urgent": true, "priority": 3, "date_start": "2024-01-10 09:00:00", "date_stop": "2024-01-10 10:00:00"}},
				{ID: "11", Values: map[string]any{"name": "Review", "urgent": true, "priority": 5, "date_start": "2024-01-11 09:00:00"}},
			} {
				e.Model = model.Name
				require.NoError(t, f.repo.Create(f.ctx, e))
			}
			_, err := f.controller.Load(f.ctx, view.Params{GroupBys: []string{tt.groupBy}})
			require.NoError(t, err)

			hotfix, ok := f.controller.Task("10")
			require.True(t, ok)
			end := at(10, 11)
			require.NoError(t, f.controller.DateChanged(f.ctx, gantt.DateChange{
				Task: hotfix, Start: at(10, 10), End: &end, Group: tt.to, Kind: gantt.Move,
			}, nil))
			batch, ok := f.controller.Flush(f.ctx)
			require.True(t, ok)
			require.NoError(t, batch.Err())

			e, err := f.repo.Get(f.ctx, model.Name, "10")
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Values[tt.groupBy])
			assert.Equal(t, "2024-01-10 10:00:00", e.Values["date_start"])
		})
	}
}

func TestController_DefaultsInScalarGroup(t *testing.T) {
	model := *taskModel
	model.Fields = maps.Clone(taskModel.Fields)
	model.Fields["priority"] = record.Field{Type: record.Integer}
	f := newFixture(t, &model, settings)
	require.NoError(t, f.repo.Create(f.ctx, &record.Entry{
		ID: "10", Model: model.Name,
		Values: map[string]any{"name": "Hotfix", "priority": 5, "date_start": "2024-01-10 09:00:00"},
	}))
	_, err := f.controller.Load(f.ctx, view.Params{GroupBys: []string{"priority"}})
	require.NoError(t, err)

	values := f.controller.Defaults(view.Draft{Start: at(12, 9), Group: "5"})
	assert.Equal(t, 5, values["priority"])
	values["name"] = "Follow-up"
	task, err := f.controller.Create(f.ctx, values)
	require.NoError(t, err)
	assert.Equal(t, gantt.GroupID("5"), task.Group)
}

func TestController_FailedWrite(t *testing.T) {
	f := newFixture(t, taskModel, settings)
	_, err := f.controller.Load(f.ctx, view.Params{})
	require.NoError(t, err)
	f.drain()

	design, _ := f.controller.Task("1")
	require.NoError(t, f.repo.Delete(f.ctx, "project.task", "1"))

	called := false
	require.NoError(t, f.controller.DateChanged(f.ctx, gantt.DateChange{
		Task: design, Start: at(15, 9), Kind: gantt.Move,
	}, func() { called = true }))

	batch, ok := f.controller.Flush(f.ctx)
	require.True(t, ok)
	assert.False(t, called)
	require.Len(t, batch.Failed(), 1)
	assert.True(t, cerr.IsCode(batch.Err(), cerr.NotFound))

	types := f.drain()
	assert.Equal(t, 1, count(types, eventbus.RecordWriteFailed))
	assert.Equal(t, 0, count(types, eventbus.RecordWritten))
	assert.Equal(t, 1, count(types, eventbus.BatchCompleted))
}

func TestController_ReadOnly(t *testing.T) {
	s := settings
	s.Restrict = func(gantt.Rights) gantt.Rights { return gantt.Rights{} }
	f := newFixture(t, taskModel, s)
	_, err := f.controller.Load(f.ctx, view.Params{})
	require.NoError(t, err)

	design, _ := f.controller.Task("1")
	err = f.controller.DateChanged(f.ctx, gantt.DateChange{Task: design, Start: at(15, 9)}, nil)
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))
	assert.Zero(t, f.scheduler.Len())

	err = f.controller.Remove(f.ctx, "1", view.Confirmed)
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))
	_, err = f.controller.Create(f.ctx, map[string]any{"name": "x"})
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))
}

func TestController_InvalidDateChange(t *testing.T) {
	f := newFixture(t, taskModel, settings)
	_, err := f.controller.Load(f.ctx, view.Params{})
	require.NoError(t, err)

	design, _ := f.controller.Task("1")
	err = f.controller.DateChanged(f.ctx, gantt.DateChange{Task: design, Start: at(15, 9), End: ptr(at(14, 9))}, nil)
	assert.True(t, gantt.IsValidationError(err))

	err = f.controller.DateChanged(f.ctx, gantt.DateChange{Start: at(15, 9)}, nil)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.Zero(t, f.scheduler.Len())
}

func TestController_Remove(t *testing.T) {
	f := newFixture(t, taskModel, settings)
	_, err := f.controller.Load(f.ctx, view.Params{})
	require.NoError(t, err)
	f.drain()

	var asked string
	decline := view.ConfirmFunc(func(_ context.Context, msg string) (bool, error) {
		asked = msg
		return false, nil
	})
	err = f.controller.Remove(f.ctx, "1", decline)
	assert.True(t, cerr.IsCode(err, cerr.Aborted))
	assert.NotEmpty(t, asked)
	_, ok := f.controller.Task("1")
	assert.True(t, ok)

	require.NoError(t, f.controller.Remove(f.ctx, "1", view.Confirmed))
	_, ok = f.controller.Task("1")
	assert.False(t, ok)
	assert.Equal(t, []eventbus.EventType{eventbus.RecordDeleted, eventbus.ViewReloaded}, f.drain())

	_, err = f.repo.Get(f.ctx, "project.task", "1")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestController_DefaultsAndCreate(t *testing.T) {
	f := newFixture(t, taskModel, settings)
	_, err := f.controller.Load(f.ctx, view.Params{})
	require.NoError(t, err)
	f.drain()

	end := at(20, 12)
	values := f.controller.Defaults(view.Draft{Start: at(20, 9), End: &end, Group: "8"})
	assert.Equal(t, map[string]any{
		"date_start":    "2024-01-20 10:00:00",
		"date_stop":     "2024-01-20 13:00:00",
		"planned_hours": 1,
		"user_id":       "8",
	}, values)

	ungrouped := f.controller.Defaults(view.Draft{Start: at(20, 9), Group: gantt.Ungrouped})
	assert.NotContains(t, ungrouped, "user_id")
	assert.NotContains(t, ungrouped, "date_stop")

	values["name"] = "Review"
	task, err := f.controller.Create(f.ctx, values)
	require.NoError(t, err)
	assert.Equal(t, "Review", task.Label)
	assert.Equal(t, at(20, 10), task.Start)
	assert.Equal(t, gantt.GroupID("8"), task.Group)
	assert.Equal(t, "bob", task.GroupLabel)

	_, ok := f.controller.Task(task.RecordID)
	assert.True(t, ok)
	types := f.drain()
	assert.Equal(t, eventbus.RecordCreated, types[0])
	assert.Equal(t, 1, count(types, eventbus.ViewReloaded))
}

func TestController_CreateWithoutStart(t *testing.T) {
	f := newFixture(t, taskModel, settings)
	_, err := f.controller.Load(f.ctx, view.Params{})
	require.NoError(t, err)

	_, err = f.controller.Create(f.ctx, map[string]any{"name": "Undated"})
	assert.True(t, gantt.IsValidationError(err))

	records, err := f.source.SearchRead(f.ctx, gantt.Domain{{Field: "name", Operator: "=", Value: "Undated"}}, []string{"name"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestController_SetMapping(t *testing.T) {
	f := newFixture(t, taskModel, settings)
	require.NoError(t, f.controller.SetMapping(f.ctx, settings))
	assert.Equal(t, []eventbus.EventType{eventbus.ViewDefinitionChanged}, f.drain())

	_, err := f.controller.Load(f.ctx, view.Params{})
	require.NoError(t, err)
	f.drain()

	s := settings
	s.GroupBys = nil
	s.Mapping.DateStop = "date_start"
	require.NoError(t, f.controller.SetMapping(f.ctx, s))
	assert.Equal(t, []eventbus.EventType{eventbus.ViewDefinitionChanged, eventbus.ViewReloaded}, f.drain())

	v, ok := f.snapshot.Latest()
	require.True(t, ok)
	assert.Empty(t, v.Groups)
	assert.Equal(t, v.Tasks[0].Start, *v.Tasks[0].End)

	err = f.controller.SetMapping(f.ctx, view.Settings{})
	assert.True(t, gantt.IsConfigurationError(err))
}

func TestController_Close(t *testing.T) {
	f := newFixture(t, taskModel, settings)
	_, err := f.controller.Load(f.ctx, view.Params{})
	require.NoError(t, err)

	design, _ := f.controller.Task("1")
	require.NoError(t, f.controller.DateChanged(f.ctx, gantt.DateChange{Task: design, Start: at(15, 9)}, nil))
	require.NoError(t, f.controller.Close(f.ctx))

	e, err := f.repo.Get(f.ctx, "project.task", "1")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15 09:00:00", e.Values["date_start"])

	err = f.controller.DateChanged(f.ctx, gantt.DateChange{Task: design, Start: at(16, 9)}, nil)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
}

func TestTee(t *testing.T) {
	a, b := &view.Snapshot{}, &view.Snapshot{}
	v := gantt.View{GroupBys: []string{"user_id"}}
	require.NoError(t, view.Tee(a, b).Present(context.Background(), v))

	for _, s := range []*view.Snapshot{a, b} {
		got, ok := s.Latest()
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func ptr[T any](v T) *T {
	return &v
}
