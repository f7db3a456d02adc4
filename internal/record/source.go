package record

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/taskgantt/internal/gantt"
	"github.com/kazz187/taskgantt/pkg/cerr"
)

// Source serves one model of a Repository as a gantt DataSource and
// EditSink. Writes are checked against the model schema and rights.
type Source struct {
	repo  Repository
	model *Model
	now   func() time.Time
}

var (
	_ gantt.DataSource = (*Source)(nil)
	_ gantt.EditSink   = (*Source)(nil)
)

func NewSource(repo Repository, model *Model) *Source {
	return &Source{repo: repo, model: model, now: time.Now}
}

// OpenSource loads the named model from repo.
func OpenSource(ctx context.Context, repo Repository, model string) (*Source, error) {
	m, err := repo.GetModel(ctx, model)
	if err != nil {
		return nil, err
	}
	return NewSource(repo, m), nil
}

func (s *Source) Model() *Model {
	return s.model
}

func (s *Source) SearchRead(ctx context.Context, domain gantt.Domain, fields []string) ([]gantt.Record, error) {
	entries, err := s.repo.Search(ctx, s.model.Name, domain)
	if err != nil {
		return nil, err
	}
	records := make([]gantt.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.Record(fields))
	}
	return records, nil
}

// NameGet resolves display names through the model's rec_name field. Ids
// that no longer exist are left out.
func (s *Source) NameGet(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		e, err := s.repo.Get(ctx, s.model.Name, id)
		if err != nil {
			if cerr.IsCode(err, cerr.NotFound) {
				continue
			}
			return nil, err
		}
		names[id] = gantt.ScalarString(e.Values[s.model.recName()])
	}
	return names, nil
}

func (s *Source) AccessRights(context.Context) (gantt.Rights, error) {
	return s.model.Rights, nil
}

func (s *Source) Write(ctx context.Context, id string, diff gantt.Diff) error {
	if !s.model.Rights.Write {
		return cerr.NewError(cerr.PermissionDenied, fmt.Sprintf("no write access to %s", s.model.Name), nil)
	}
	values, err := s.normalize(ctx, diff)
	if err != nil {
		return err
	}
	e, err := s.repo.Get(ctx, s.model.Name, id)
	if err != nil {
		return err
	}
	if e.Values == nil {
		e.Values = map[string]any{}
	}
	for k, v := range values {
		e.Values[k] = v
	}
	e.UpdatedAt = s.now()
	return s.repo.Update(ctx, e)
}

func (s *Source) Unlink(ctx context.Context, id string) error {
	if !s.model.Rights.Unlink {
		return cerr.NewError(cerr.PermissionDenied, fmt.Sprintf("no delete access to %s", s.model.Name), nil)
	}
	return s.repo.Delete(ctx, s.model.Name, id)
}

func (s *Source) Create(ctx context.Context, values map[string]any) (string, error) {
	if !s.model.Rights.Create {
		return "", cerr.NewError(cerr.PermissionDenied, fmt.Sprintf("no create access to %s", s.model.Name), nil)
	}
	normalized, err := s.normalize(ctx, values)
	if err != nil {
		return "", err
	}
	now := s.now()
	e := &Entry{
		ID:        ulid.Make().String(),
		Model:     s.model.Name,
		Values:    normalized,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return "", err
	}
	return e.ID, nil
}

// Import stores values under id as given, creating or replacing the
// record. Values are checked like any write but access rights are not:
// it is meant for loading seed data.
func (s *Source) Import(ctx context.Context, id string, values map[string]any) error {
	normalized, err := s.normalize(ctx, values)
	if err != nil {
		return err
	}
	now := s.now()
	e := &Entry{ID: id, Model: s.model.Name, Values: normalized, CreatedAt: now, UpdatedAt: now}
	existing, err := s.repo.Get(ctx, s.model.Name, id)
	switch {
	case err == nil:
		e.CreatedAt = existing.CreatedAt
		return s.repo.Update(ctx, e)
	case cerr.IsCode(err, cerr.NotFound):
		return s.repo.Create(ctx, e)
	}
	return err
}

func (s *Source) normalize(ctx context.Context, values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for name, v := range values {
		field, ok := s.model.Fields[name]
		if !ok {
			return nil, invalidField(name, fmt.Sprintf("%s has no field %s", s.model.Name, name))
		}
		if v == nil || v == false {
			out[name] = false
			continue
		}
		nv, err := s.normalizeValue(ctx, name, field, v)
		if err != nil {
			return nil, err
		}
		out[name] = nv
	}
	return out, nil
}

func (s *Source) normalizeValue(ctx context.Context, name string, field Field, v any) (any, error) {
	switch field.Type {
	case Many2one:
		return s.relation(ctx, name, field, v)
	case Date, Datetime:
		ft := gantt.FieldDatetime
		layout := gantt.ServerDatetimeLayout
		if field.Type == Date {
			ft, layout = gantt.FieldDate, gantt.ServerDateLayout
		}
		t, err := gantt.ParseServerDate(v, ft)
		if err != nil {
			return nil, invalidField(name, fmt.Sprintf("%s is not a valid %s", name, field.Type))
		}
		return t.UTC().Format(layout), nil
	case Integer, Float:
		f, ok := gantt.Number(v)
		if !ok {
			return nil, invalidField(name, fmt.Sprintf("%s must be a number", name))
		}
		if field.Type == Integer {
			if f != math.Trunc(f) {
				return nil, invalidField(name, fmt.Sprintf("%s must be an integer", name))
			}
			return int(f), nil
		}
		return f, nil
	case Boolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return b, nil
			}
		}
		return nil, invalidField(name, fmt.Sprintf("%s must be a boolean", name))
	case Char, Text, Selection:
		return gantt.ScalarString(v), nil
	}
	return v, nil
}

// relation stores a many2one as an [id, name] pair. A bare id is resolved
// against the related model.
func (s *Source) relation(ctx context.Context, name string, field Field, v any) (any, error) {
	if id, label, ok := gantt.Relation(v); ok {
		return []any{id, label}, nil
	}
	id := gantt.ScalarString(v)
	if field.Relation == "" {
		return []any{id, id}, nil
	}
	e, err := s.repo.Get(ctx, field.Relation, id)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			return nil, invalidField(name, fmt.Sprintf("%s %s does not exist", field.Relation, id))
		}
		return nil, err
	}
	recName := "name"
	if m, err := s.repo.GetModel(ctx, field.Relation); err == nil {
		recName = m.recName()
	}
	return []any{id, gantt.ScalarString(e.Values[recName])}, nil
}

func invalidField(field, msg string) error {
	return cerr.NewError(cerr.InvalidArgument, msg, nil).AddDetail(field, msg)
}
