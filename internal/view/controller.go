package view

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/kazz187/taskgantt/internal/eventbus"
	"github.com/kazz187/taskgantt/internal/gantt"
	"github.com/kazz187/taskgantt/internal/reconcile"
	"github.com/kazz187/taskgantt/pkg/cerr"
	"github.com/kazz187/taskgantt/pkg/clog"
)

// Settings is the part of a view that can change while it is open.
type Settings struct {
	Mapping       gantt.FieldMapping
	GroupBys      []string // default group-bys
	MissingStart  gantt.MissingStartPolicy
	GroupReassign gantt.GroupReassignPolicy
	// Restrict narrows the host's access rights, e.g. a read-only view.
	Restrict func(gantt.Rights) gantt.Rights
}

// Params selects what Load shows.
type Params struct {
	Domain   gantt.Domain
	GroupBys []string
}

type Deps struct {
	Source    gantt.DataSource
	Sink      gantt.EditSink
	Presenter gantt.TaskPresenter
	Bus       *eventbus.Bus
	Scheduler reconcile.Scheduler
}

// Controller drives one gantt view: it loads records into tasks, turns
// chart edits into record writes and reloads once per flushed batch.
type Controller struct {
	source     gantt.DataSource
	sink       gantt.EditSink
	presenter  gantt.TaskPresenter
	bus        *eventbus.Bus
	reconciler *reconcile.Reconciler

	mu       sync.RWMutex
	settings Settings
	last     Params
	loaded   bool
	rights   *gantt.Rights
	tasks    map[string]gantt.Task
	groups   map[gantt.GroupID]any
}

func NewController(ctx context.Context, deps Deps, s Settings) (*Controller, error) {
	if err := s.Mapping.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		source:    deps.Source,
		sink:      deps.Sink,
		presenter: deps.Presenter,
		bus:       deps.Bus,
		settings:  s,
		tasks:     map[string]gantt.Task{},
	}
	opts := []reconcile.Option{
		reconcile.OnBatchComplete(c.batchCompleted),
		reconcile.OnPersistError(c.persistFailed),
	}
	if deps.Scheduler != nil {
		opts = append(opts, reconcile.WithScheduler(deps.Scheduler))
	}
	c.reconciler = reconcile.New(ctx, c.sink, opts...)
	return c, nil
}

// Load fetches the records selected by p, maps them and presents the view.
// Without group-bys in p the view's defaults apply.
func (c *Controller) Load(ctx context.Context, p Params) (gantt.View, error) {
	c.mu.RLock()
	s := c.settings
	c.mu.RUnlock()

	groupBys := p.GroupBys
	if len(groupBys) == 0 {
		groupBys = s.GroupBys
	}

	rights, err := c.fetchRights(ctx, s)
	if err != nil {
		return gantt.View{}, err
	}

	fields := s.Mapping.FieldNames()
	for _, g := range groupBys {
		if !slices.Contains(fields, g) {
			fields = append(fields, g)
		}
	}
	records, err := c.source.SearchRead(ctx, p.Domain, fields)
	if err != nil {
		return gantt.View{}, err
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID())
	}
	labels, err := c.source.NameGet(ctx, ids)
	if err != nil {
		return gantt.View{}, err
	}
	tasks, err := gantt.MapRecordsToTasks(records, s.Mapping, groupBys, labels, gantt.WithMissingStart(s.MissingStart))
	if err != nil {
		return gantt.View{}, err
	}

	v := gantt.View{Tasks: tasks, GroupBys: groupBys}
	if len(groupBys) > 0 {
		v.Groups = gantt.SplitGroups(tasks)
	}

	byID := make(map[string]gantt.Task, len(tasks))
	groupValues := make(map[gantt.GroupID]any)
	for _, t := range tasks {
		byID[t.RecordID] = t
		groupValues[t.Group] = t.GroupValue
	}
	c.mu.Lock()
	c.last = Params{Domain: p.Domain, GroupBys: p.GroupBys}
	c.loaded = true
	c.rights = &rights
	c.tasks = byID
	c.groups = groupValues
	c.mu.Unlock()

	if err := c.presenter.Present(ctx, v); err != nil {
		return v, cerr.NewError(cerr.Internal, "failed to present view", err)
	}
	c.publish(eventbus.ViewReloaded, "", map[string]string{"tasks": strconv.Itoa(len(tasks))})
	return v, nil
}

// Reload repeats the last Load.
func (c *Controller) Reload(ctx context.Context) (gantt.View, error) {
	c.mu.RLock()
	p := c.last
	c.mu.RUnlock()
	return c.Load(ctx, p)
}

// Task returns a task of the last loaded view.
func (c *Controller) Task(id string) (gantt.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tasks[id]
	return t, ok
}

// Rights returns the effective access rights of the view.
func (c *Controller) Rights(ctx context.Context) (gantt.Rights, error) {
	c.mu.RLock()
	s := c.settings
	cached := c.rights
	c.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}
	return c.fetchRights(ctx, s)
}

func (c *Controller) fetchRights(ctx context.Context, s Settings) (gantt.Rights, error) {
	r, err := c.source.AccessRights(ctx)
	if err != nil {
		return gantt.Rights{}, err
	}
	if s.Restrict != nil {
		r = s.Restrict(r)
	}
	return r, nil
}

// DateChanged queues the record write for a drag or resize on the chart.
// done is called once the write has been persisted.
func (c *Controller) DateChanged(ctx context.Context, change gantt.DateChange, done func()) error {
	if change.Task.RecordID == "" {
		return cerr.NewError(cerr.InvalidArgument, "date change has no task", nil)
	}
	rights, err := c.Rights(ctx)
	if err != nil {
		return err
	}
	if !rights.Write {
		return cerr.NewError(cerr.PermissionDenied, "this view is read only", nil)
	}

	c.mu.RLock()
	s := c.settings
	groupBys := c.last.GroupBys
	if change.GroupValue == nil && change.Group != "" {
		change.GroupValue = c.groups[change.Group]
	}
	c.mu.RUnlock()
	if len(groupBys) == 0 {
		groupBys = s.GroupBys
	}

	diff, err := gantt.BuildDiff(change, s.Mapping, groupBys, s.GroupReassign)
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "queueing date change",
		clog.RecordIDAttributeKey, change.Task.RecordID,
		"kind", change.Kind.String(),
		"fields", diff.Fields(),
	)
	return c.reconciler.Enqueue(reconcile.Edit{
		RecordID: change.Task.RecordID,
		Diff:     diff,
		Done:     done,
	})
}

// Flush writes queued edits now instead of waiting for the scheduler.
func (c *Controller) Flush(ctx context.Context) (reconcile.Batch, bool) {
	return c.reconciler.Flush(ctx)
}

func (c *Controller) batchCompleted(ctx context.Context, b reconcile.Batch) {
	for _, o := range b.Outcomes {
		if o.Err == nil {
			c.publish(eventbus.RecordWritten, o.Edit.RecordID, map[string]string{"batch_id": b.ID})
		}
	}
	if _, err := c.Reload(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to reload view after batch", clog.BatchIDAttributeKey, b.ID, "error", err)
	}
	c.publish(eventbus.BatchCompleted, b.ID, map[string]string{
		"edits":  strconv.Itoa(len(b.Outcomes)),
		"failed": strconv.Itoa(len(b.Failed())),
	})
}

func (c *Controller) persistFailed(_ context.Context, err *gantt.PersistError) {
	c.publish(eventbus.RecordWriteFailed, err.RecordID, map[string]string{"error": err.Err.Error()})
}

// Confirmer asks the user before a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

type ConfirmFunc func(ctx context.Context, message string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, message string) (bool, error) {
	return f(ctx, message)
}

// Confirmed is a Confirmer for callers that already asked, e.g. an API
// request carrying confirm=true.
var Confirmed = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

const removeMessage = "Are you sure you want to delete this record?"

// Remove deletes a record once confirmer agrees, then reloads the view.
func (c *Controller) Remove(ctx context.Context, id string, confirmer Confirmer) error {
	rights, err := c.Rights(ctx)
	if err != nil {
		return err
	}
	if !rights.Unlink {
		return cerr.NewError(cerr.PermissionDenied, "records of this view cannot be deleted", nil)
	}
	ok, err := confirmer.Confirm(ctx, removeMessage)
	if err != nil {
		return err
	}
	if !ok {
		return cerr.NewError(cerr.Aborted, "deletion was not confirmed", nil)
	}
	if err := c.sink.Unlink(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "record deleted", clog.RecordIDAttributeKey, id)
	c.publish(eventbus.RecordDeleted, id, nil)
	_, err = c.Reload(ctx)
	return err
}

// Draft is a task placed on the chart before its record exists.
type Draft struct {
	Start time.Time
	End   *time.Time
	Group gantt.GroupID
}

// Defaults returns the initial values of a record created from a draft:
// the start an hour later, a one hour duration, and the draft's group
// while the view is grouped.
func (c *Controller) Defaults(d Draft) map[string]any {
	c.mu.RLock()
	s := c.settings
	groupBys := c.last.GroupBys
	groupValue, known := c.groups[d.Group]
	c.mu.RUnlock()
	if len(groupBys) == 0 {
		groupBys = s.GroupBys
	}
	m := s.Mapping

	values := map[string]any{}
	values[m.DateStart] = m.Format(m.DateStart, d.Start.Add(time.Hour))
	if m.DateDelay != "" {
		values[m.DateDelay] = 1
	}
	if m.DateStop != "" && !m.NoPeriod() && d.End != nil {
		values[m.DateStop] = m.Format(m.DateStop, d.End.Add(time.Hour))
	}
	if len(groupBys) > 0 && d.Group != "" && d.Group != gantt.Ungrouped {
		if !known || groupValue == nil {
			groupValue = string(d.Group)
		}
		values[groupBys[0]] = groupValue
	}
	return values
}

// Create creates a record, reads it back as a task and reloads the view.
// A record without a start date is still created; the returned
// ValidationError tells why it has no task.
func (c *Controller) Create(ctx context.Context, values map[string]any) (gantt.Task, error) {
	rights, err := c.Rights(ctx)
	if err != nil {
		return gantt.Task{}, err
	}
	if !rights.Create {
		return gantt.Task{}, cerr.NewError(cerr.PermissionDenied, "records cannot be created from this view", nil)
	}
	id, err := c.sink.Create(ctx, values)
	if err != nil {
		return gantt.Task{}, err
	}
	c.publish(eventbus.RecordCreated, id, nil)

	c.mu.RLock()
	s := c.settings
	groupBys := c.last.GroupBys
	c.mu.RUnlock()
	if len(groupBys) == 0 {
		groupBys = s.GroupBys
	}
	fields := append(s.Mapping.FieldNames(), groupBys...)
	records, err := c.source.SearchRead(ctx, gantt.Domain{{Field: "id", Operator: "=", Value: id}}, fields)
	if err != nil {
		return gantt.Task{}, err
	}
	if len(records) == 0 {
		return gantt.Task{}, cerr.NewError(cerr.NotFound, fmt.Sprintf("created record %s cannot be read back", id), nil)
	}
	labels, err := c.source.NameGet(ctx, []string{id})
	if err != nil {
		return gantt.Task{}, err
	}
	m := s.Mapping
	if len(groupBys) > 0 {
		m.GroupBy = groupBys[0]
	}
	task, mapErr := gantt.MapRecordToTask(records[0], m, labels[id])
	if _, err := c.Reload(ctx); err != nil {
		return task, err
	}
	return task, mapErr
}

// SetMapping swaps the view settings, typically after the view definition
// file changed, and reloads an already loaded view.
func (c *Controller) SetMapping(ctx context.Context, s Settings) error {
	if err := s.Mapping.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.settings = s
	c.rights = nil
	loaded := c.loaded
	c.mu.Unlock()

	c.publish(eventbus.ViewDefinitionChanged, "", nil)
	if !loaded {
		return nil
	}
	_, err := c.Reload(ctx)
	return err
}

// Close flushes pending edits. Later date changes are rejected.
func (c *Controller) Close(ctx context.Context) error {
	return c.reconciler.Close(ctx)
}

func (c *Controller) publish(t eventbus.EventType, resourceID string, metadata map[string]string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(t, resourceID, metadata)
}
