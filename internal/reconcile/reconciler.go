package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc"

	"github.com/kazz187/taskgantt/internal/gantt"
	"github.com/kazz187/taskgantt/pkg/cerr"
	"github.com/kazz187/taskgantt/pkg/clog"
	"github.com/kazz187/taskgantt/pkg/panicerr"
)

// Writer persists the diff of one record. gantt.EditSink satisfies it.
type Writer interface {
	Write(ctx context.Context, id string, diff gantt.Diff) error
}

// Edit is a queued change to one record. Done is the interaction handle: it
// is called only once the write has succeeded, so the chart can commit the
// drag visually.
type Edit struct {
	RecordID string
	Diff     gantt.Diff
	Done     func()
}

type Outcome struct {
	Edit Edit
	Err  error
}

// Batch is one flush cycle. Outcomes are in enqueue order.
type Batch struct {
	ID         string
	Outcomes   []Outcome
	StartedAt  time.Time
	FinishedAt time.Time
}

func (b Batch) Failed() []Outcome {
	var failed []Outcome
	for _, o := range b.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err joins the persist errors of the batch, nil when every write succeeded.
func (b Batch) Err() error {
	var errs []error
	for _, o := range b.Failed() {
		errs = append(errs, o.Err)
	}
	return errors.Join(errs...)
}

type Option func(*Reconciler)

func WithScheduler(s Scheduler) Option {
	return func(r *Reconciler) {
		r.scheduler = s
	}
}

// OnBatchComplete registers the hook run once per non-empty flush, after
// every write of the batch has settled.
func OnBatchComplete(fn func(context.Context, Batch)) Option {
	return func(r *Reconciler) {
		r.onBatch = fn
	}
}

// OnPersistError registers the hook run for each failed write.
func OnPersistError(fn func(context.Context, *gantt.PersistError)) Option {
	return func(r *Reconciler) {
		r.onError = fn
	}
}

// Reconciler coalesces edits into flush cycles. At most one flush runs at a
// time; an edit enqueued while a flush is running goes to the next cycle.
type Reconciler struct {
	ctx       context.Context
	writer    Writer
	scheduler Scheduler
	onBatch   func(context.Context, Batch)
	onError   func(context.Context, *gantt.PersistError)

	mu        sync.Mutex
	queue     []Edit
	scheduled bool
	closed    bool

	flushMu sync.Mutex
}

// New returns a reconciler whose scheduled flushes run with ctx's values.
// Cancelling ctx does not cancel them: edits queued before a shutdown are
// still written. The default scheduler flushes on the next tick.
func New(ctx context.Context, w Writer, opts ...Option) *Reconciler {
	r := &Reconciler{
		ctx:       context.WithoutCancel(ctx),
		writer:    w,
		scheduler: AfterFunc(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enqueue appends an edit and schedules a flush unless one is already
// pending.
func (r *Reconciler) Enqueue(e Edit) error {
	if e.RecordID == "" {
		return cerr.NewError(cerr.InvalidArgument, "edit has no record id", nil)
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return cerr.NewError(cerr.FailedPrecondition, "reconciler is closed", nil)
	}
	r.queue = append(r.queue, e)
	schedule := !r.scheduled
	r.scheduled = true
	r.mu.Unlock()

	if schedule {
		r.scheduler.Schedule(func() {
			r.Flush(r.ctx)
		})
	}
	return nil
}

// Pending returns a copy of the edits waiting for the next flush.
func (r *Reconciler) Pending() []Edit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Edit(nil), r.queue...)
}

// Flush drains the queue and writes every edit concurrently. A failed write
// never stops the others. It returns false when there was nothing to flush,
// in which case no hook runs.
func (r *Reconciler) Flush(ctx context.Context) (Batch, bool) {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	edits := r.queue
	r.queue = nil
	r.scheduled = false
	r.mu.Unlock()

	if len(edits) == 0 {
		return Batch{}, false
	}

	batch := Batch{
		ID:        ulid.Make().String(),
		Outcomes:  make([]Outcome, len(edits)),
		StartedAt: time.Now(),
	}
	wg := conc.NewWaitGroup()
	for i, e := range edits {
		wg.Go(func() {
			batch.Outcomes[i] = r.persist(ctx, batch.ID, e)
		})
	}
	wg.Wait()
	batch.FinishedAt = time.Now()

	failed := len(batch.Failed())
	slog.InfoContext(ctx, "flushed edits",
		clog.BatchIDAttributeKey, batch.ID,
		"edits", len(edits),
		"failed", failed,
		"elapsed", batch.FinishedAt.Sub(batch.StartedAt),
	)
	if r.onBatch != nil {
		if err := panicerr.Go(ctx, func(ctx context.Context) { r.onBatch(ctx, batch) }); err != nil {
			slog.ErrorContext(ctx, "batch complete hook failed", clog.BatchIDAttributeKey, batch.ID, "error", err)
		}
	}
	return batch, true
}

func (r *Reconciler) persist(ctx context.Context, batchID string, e Edit) Outcome {
	err := panicerr.Call(ctx, func(ctx context.Context) error {
		return r.writer.Write(ctx, e.RecordID, e.Diff)
	})
	if err == nil {
		if e.Done != nil {
			e.Done()
		}
		return Outcome{Edit: e}
	}

	perr := &gantt.PersistError{RecordID: e.RecordID, Err: err}
	slog.WarnContext(ctx, "failed to persist edit",
		clog.BatchIDAttributeKey, batchID,
		clog.RecordIDAttributeKey, e.RecordID,
		"fields", e.Diff.Fields(),
		"error", err,
	)
	if r.onError != nil {
		r.onError(ctx, perr)
	}
	return Outcome{Edit: e, Err: perr}
}

// Close stops accepting edits and flushes what is still queued.
func (r *Reconciler) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	batch, _ := r.Flush(ctx)
	return batch.Err()
}
