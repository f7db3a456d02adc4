package repositoryimpl

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/taskgantt/internal/gantt"
	"github.com/kazz187/taskgantt/internal/record"
	"github.com/kazz187/taskgantt/pkg/cerr"
	"github.com/kazz187/taskgantt/pkg/storage"
)

const (
	modelsPrefix  = "models"
	recordsPrefix = "records"
)

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func modelPath(name string) string {
	return fmt.Sprintf("%s/%s.yaml", modelsPrefix, name)
}

func recordDir(model string) string {
	return fmt.Sprintf("%s/%s", recordsPrefix, model)
}

func recordPath(model, id string) string {
	return fmt.Sprintf("%s/%s.yaml", recordDir(model), id)
}

func (r *YAMLRepository) SaveModel(ctx context.Context, m *record.Model) error {
	if m.Name == "" || strings.ContainsAny(m.Name, "/\\") {
		return cerr.NewError(cerr.InvalidArgument, "invalid model name", nil).AddDetail("name", "must be a plain name")
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal model: %w", err))
	}
	if err := r.storage.Write(ctx, modelPath(m.Name), data); err != nil {
		return cerr.WrapStorageError(cerr.StorageWrite, "model", err)
	}
	return nil
}

func (r *YAMLRepository) GetModel(ctx context.Context, name string) (*record.Model, error) {
	data, err := r.storage.Read(ctx, modelPath(name))
	if err != nil {
		return nil, cerr.WrapStorageError(cerr.StorageRead, "model", err)
	}
	var m record.Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal model %s: %w", name, err))
	}
	return &m, nil
}

// Search returns the entries of model matching domain, ordered by id.
// Unreadable entries are skipped.
func (r *YAMLRepository) Search(ctx context.Context, model string, domain gantt.Domain) ([]*record.Entry, error) {
	if err := record.ValidateDomain(domain); err != nil {
		return nil, err
	}
	paths, err := r.storage.List(ctx, recordDir(model))
	if err != nil {
		return nil, cerr.WrapStorageError(cerr.StorageRead, "records", err)
	}

	var entries []*record.Entry
	for _, p := range paths {
		if !strings.HasSuffix(p, ".yaml") {
			continue
		}
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var e record.Entry
		if err := yaml.Unmarshal(data, &e); err != nil {
			continue
		}
		ok, err := record.Match(&e, domain)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, &e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return idLess(entries[i].ID, entries[j].ID)
	})
	return entries, nil
}

// idLess orders numeric ids numerically and everything else as strings.
func idLess(a, b string) bool {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return x < y
	}
	return a < b
}

func (r *YAMLRepository) Get(ctx context.Context, model, id string) (*record.Entry, error) {
	data, err := r.storage.Read(ctx, recordPath(model, id))
	if err != nil {
		return nil, cerr.WrapStorageError(cerr.StorageRead, "record", err)
	}
	var e record.Entry
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal record %s/%s: %w", model, id, err))
	}
	return &e, nil
}

func (r *YAMLRepository) Create(ctx context.Context, e *record.Entry) error {
	if e.ID == "" || strings.ContainsAny(e.ID, "/\\") {
		return cerr.NewError(cerr.InvalidArgument, "invalid record id", nil).AddDetail("id", "must be a plain id")
	}
	data, err := marshalRecord(e)
	if err != nil {
		return err
	}
	if err := r.storage.Create(ctx, recordPath(e.Model, e.ID), data); err != nil {
		return cerr.WrapStorageError(cerr.StorageCreate, "record", err)
	}
	return nil
}

func (r *YAMLRepository) Update(ctx context.Context, e *record.Entry) error {
	exists, err := r.storage.Exists(ctx, recordPath(e.Model, e.ID))
	if err != nil {
		return cerr.WrapStorageError(cerr.StorageWrite, "record", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "record not found", nil)
	}
	return r.write(ctx, e)
}

func (r *YAMLRepository) write(ctx context.Context, e *record.Entry) error {
	data, err := marshalRecord(e)
	if err != nil {
		return err
	}
	if err := r.storage.Write(ctx, recordPath(e.Model, e.ID), data); err != nil {
		return cerr.WrapStorageError(cerr.StorageWrite, "record", err)
	}
	return nil
}

func marshalRecord(e *record.Entry) ([]byte, error) {
	data, err := yaml.Marshal(e)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal record: %w", err))
	}
	return data, nil
}

func (r *YAMLRepository) Delete(ctx context.Context, model, id string) error {
	if err := r.storage.Delete(ctx, recordPath(model, id)); err != nil {
		return cerr.WrapStorageError(cerr.StorageDelete, "record", err)
	}
	return nil
}
