package gantt

import "context"

// Condition is one term of a record filter, e.g. {"user_id", "=", "42"}.
type Condition struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value" yaml:"value"`
}

// Domain is a conjunction of conditions; an empty domain matches everything.
type Domain []Condition

// Rights are the operations the current user may perform on the records.
type Rights struct {
	Write  bool `json:"write" yaml:"write"`
	Create bool `json:"create" yaml:"create"`
	Unlink bool `json:"unlink" yaml:"unlink"`
}

// DataSource fetches records and their display names from the host.
type DataSource interface {
	SearchRead(ctx context.Context, domain Domain, fields []string) ([]Record, error)
	NameGet(ctx context.Context, ids []string) (map[string]string, error)
	AccessRights(ctx context.Context) (Rights, error)
}

// EditSink persists record changes on the host.
type EditSink interface {
	Write(ctx context.Context, id string, diff Diff) error
	Unlink(ctx context.Context, id string) error
	Create(ctx context.Context, values map[string]any) (string, error)
}

// View is everything a presenter needs to draw the chart.
type View struct {
	Tasks    []Task   `json:"tasks"`
	Groups   []Group  `json:"groups"`
	GroupBys []string `json:"group_bys"`
}

// TaskPresenter draws tasks. Implementations never see records being
// written; they are only handed finished views.
type TaskPresenter interface {
	Present(ctx context.Context, v View) error
}
