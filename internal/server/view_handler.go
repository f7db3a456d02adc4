package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/taskgantt/internal/gantt"
	"github.com/kazz187/taskgantt/internal/view"
	"github.com/kazz187/taskgantt/pkg/cerr"
	"github.com/kazz187/taskgantt/pkg/clog"
)

// getView returns the view as last presented, loading it on first use.
func (s *Server) getView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if v, ok := s.snapshot.Latest(); ok {
		cerr.SetJSONResponse(ctx, v)
		return
	}
	v, err := s.view.Load(ctx, view.Params{})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, v)
}

func (s *Server) getRights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rights, err := s.view.Rights(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, rights)
}

// listTasks reloads the view with the domain and group-bys of the query,
// e.g. ?group_by=user_id&domain=[["name","ilike","design"]].
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	domain, err := parseDomain(q.Get("domain"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var groupBys []string
	for _, g := range q["group_by"] {
		for _, f := range strings.Split(g, ",") {
			if f = strings.TrimSpace(f); f != "" {
				groupBys = append(groupBys, f)
			}
		}
	}
	v, err := s.view.Load(ctx, view.Params{Domain: domain, GroupBys: groupBys})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, v)
}

// parseDomain reads a domain written as a list of [field, operator, value]
// triples.
func parseDomain(raw string) (gantt.Domain, error) {
	if raw == "" {
		return nil, nil
	}
	var triples [][]any
	if err := json.Unmarshal([]byte(raw), &triples); err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "invalid domain", err).AddDetail("domain", "must be a JSON list of triples")
	}
	domain := make(gantt.Domain, 0, len(triples))
	for i, t := range triples {
		if len(t) != 3 {
			return nil, cerr.NewError(cerr.InvalidArgument, "invalid domain", nil).AddDetail("domain", fmt.Sprintf("term %d is not a triple", i))
		}
		field, ok1 := t[0].(string)
		op, ok2 := t[1].(string)
		if !ok1 || !ok2 {
			return nil, cerr.NewError(cerr.InvalidArgument, "invalid domain", nil).AddDetail("domain", fmt.Sprintf("term %d needs a field and an operator", i))
		}
		domain = append(domain, gantt.Condition{Field: field, Operator: op, Value: t[2]})
	}
	return domain, nil
}

type dateChangeRequest struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end"`
	Group string     `json:"group"`
	Kind  string     `json:"kind"`
}

// changeDates queues a drag or resize of one task. The write happens with
// the next flush; clients follow it on the event stream.
func (s *Server) changeDates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	clog.AddRecordID(ctx, id)

	var req dateChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	kind := gantt.Move
	if req.Kind != "" {
		k, err := gantt.ParseKind(req.Kind)
		if err != nil {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, err.Error(), nil)
			return
		}
		kind = k
	}
	task, ok := s.view.Task(id)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.NotFound, "task not found", nil)
		return
	}
	change := gantt.DateChange{
		Task:  task,
		Start: req.Start,
		End:   req.End,
		Group: gantt.GroupID(req.Group),
		Kind:  kind,
	}
	if err := s.view.DateChanged(ctx, change, nil); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusAccepted, map[string]string{"record_id": id})
}

type flushResponse struct {
	BatchID string          `json:"batch_id,omitempty"`
	Written []string        `json:"written"`
	Failed  []failedOutcome `json:"failed"`
}

type failedOutcome struct {
	RecordID string `json:"record_id"`
	Error    string `json:"error"`
}

// flush writes queued edits without waiting for the flush window.
func (s *Server) flush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	batch, ok := s.view.Flush(ctx)
	resp := flushResponse{Written: []string{}, Failed: []failedOutcome{}}
	if ok {
		clog.AddBatchID(ctx, batch.ID)
		resp.BatchID = batch.ID
		for _, o := range batch.Outcomes {
			if o.Err != nil {
				resp.Failed = append(resp.Failed, failedOutcome{RecordID: o.Edit.RecordID, Error: o.Err.Error()})
				continue
			}
			resp.Written = append(resp.Written, o.Edit.RecordID)
		}
	}
	cerr.SetJSONResponse(ctx, resp)
}

// recordDefaults returns the values a record created at ?start= (and
// optionally ?end= and ?group=) would start with.
func (s *Server) recordDefaults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		cerr.SetJSONError(ctx, cerr.NewError(cerr.InvalidArgument, "invalid start", err).AddDetail("start", "must be an RFC 3339 time"))
		return
	}
	d := view.Draft{Start: start, Group: gantt.GroupID(q.Get("group"))}
	if raw := q.Get("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			cerr.SetJSONError(ctx, cerr.NewError(cerr.InvalidArgument, "invalid end", err).AddDetail("end", "must be an RFC 3339 time"))
			return
		}
		d.End = &end
	}
	cerr.SetJSONResponse(ctx, s.view.Defaults(d))
}

type createRecordRequest struct {
	Values map[string]any `json:"values"`
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if len(req.Values) == 0 {
		cerr.SetJSONError(ctx, cerr.NewError(cerr.InvalidArgument, "no values", nil).AddDetail("values", "must not be empty"))
		return
	}
	task, err := s.view.Create(ctx, req.Values)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	clog.AddRecordID(ctx, task.RecordID)
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, task)
}

// deleteRecord needs ?confirm=true; the confirmation itself is the
// client's job.
func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	clog.AddRecordID(ctx, id)

	confirmed := r.URL.Query().Get("confirm") == "true"
	confirmer := view.ConfirmFunc(func(context.Context, string) (bool, error) { return confirmed, nil })
	if err := s.view.Remove(ctx, id, confirmer); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusNoContent, nil)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return cerr.NewError(cerr.InvalidArgument, "invalid request body", err)
	}
	return nil
}
