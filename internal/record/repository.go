package record

import (
	"context"

	"github.com/kazz187/taskgantt/internal/gantt"
)

type Repository interface {
	SaveModel(ctx context.Context, m *Model) error
	GetModel(ctx context.Context, name string) (*Model, error)
	Search(ctx context.Context, model string, domain gantt.Domain) ([]*Entry, error)
	Get(ctx context.Context, model, id string) (*Entry, error)
	Create(ctx context.Context, e *Entry) error
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, model, id string) error
}
