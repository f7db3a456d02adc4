package viewdef

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/taskgantt/internal/gantt"
	"github.com/kazz187/taskgantt/pkg/cerr"
)

// Definition is a gantt view as written in a view file:
//
//	model: project.task
//	date_start: date_start
//	date_stop: date_end
//	default_group_by: user_id,stage_id
//	timezone: Asia/Tokyo
type Definition struct {
	Model          string        `yaml:"model"`
	DateStart      string        `yaml:"date_start"`
	DateStop       string        `yaml:"date_stop,omitempty"`
	DateDelay      string        `yaml:"date_delay,omitempty"`
	AllDay         string        `yaml:"all_day,omitempty"`
	Progress       string        `yaml:"progress,omitempty"`
	DefaultGroupBy string        `yaml:"default_group_by,omitempty"`
	DisplayField   string        `yaml:"display_field,omitempty"`
	Timezone       string        `yaml:"timezone,omitempty"`
	Scale          string        `yaml:"scale,omitempty"`
	MissingStart   string        `yaml:"missing_start,omitempty"`
	GroupReassign  string        `yaml:"group_reassign,omitempty"`
	Rights         *gantt.Rights `yaml:"rights,omitempty"`
}

func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerr.NewError(cerr.FailedPrecondition, fmt.Sprintf("cannot read view definition %s", path), err)
	}
	return Parse(data)
}

// Parse decodes and checks a view definition. A definition without a model
// or a start field is a configuration error.
func Parse(data []byte) (*Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, cerr.NewError(cerr.FailedPrecondition, "malformed view definition", err)
	}
	if d.Model == "" {
		return nil, configError("model", "view definition has no model")
	}
	if _, err := d.Mapping(nil); err != nil {
		return nil, err
	}
	if _, err := d.Policies(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Mapping builds the field mapping. types carries the date field types of
// the model.
func (d *Definition) Mapping(types map[string]gantt.FieldType) (gantt.FieldMapping, error) {
	m := gantt.FieldMapping{
		DateStart:    d.DateStart,
		DateStop:     d.DateStop,
		DateDelay:    d.DateDelay,
		AllDay:       d.AllDay,
		Progress:     d.Progress,
		DisplayField: d.DisplayField,
		Types:        types,
		Location:     time.UTC,
	}
	if gb := d.GroupBys(); len(gb) > 0 {
		m.GroupBy = gb[0]
	}
	if d.Timezone != "" {
		loc, err := time.LoadLocation(d.Timezone)
		if err != nil {
			return gantt.FieldMapping{}, configError("timezone", fmt.Sprintf("unknown timezone %q", d.Timezone))
		}
		m.Location = loc
	}
	if err := m.Validate(); err != nil {
		return gantt.FieldMapping{}, err
	}
	return m, nil
}

// GroupBys splits default_group_by. Only the first one groups the chart.
func (d *Definition) GroupBys() []string {
	var out []string
	for _, f := range strings.Split(d.DefaultGroupBy, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

type Policies struct {
	MissingStart  gantt.MissingStartPolicy
	GroupReassign gantt.GroupReassignPolicy
}

func (d *Definition) Policies() (Policies, error) {
	ms, err := gantt.ParseMissingStartPolicy(d.MissingStart)
	if err != nil {
		return Policies{}, configError("missing_start", fmt.Sprintf("unknown missing_start policy %q", d.MissingStart))
	}
	gr, err := gantt.ParseGroupReassignPolicy(d.GroupReassign)
	if err != nil {
		return Policies{}, configError("group_reassign", fmt.Sprintf("unknown group_reassign policy %q", d.GroupReassign))
	}
	return Policies{MissingStart: ms, GroupReassign: gr}, nil
}

// Restrict narrows the model's rights by the view's.
func (d *Definition) Restrict(r gantt.Rights) gantt.Rights {
	if d.Rights == nil {
		return r
	}
	return gantt.Rights{
		Write:  r.Write && d.Rights.Write,
		Create: r.Create && d.Rights.Create,
		Unlink: r.Unlink && d.Rights.Unlink,
	}
}

func configError(field, msg string) error {
	return cerr.NewError(cerr.FailedPrecondition, msg, nil).AddDetail(field, msg)
}
