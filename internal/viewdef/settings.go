package viewdef

import (
	"github.com/kazz187/taskgantt/internal/gantt"
	"github.com/kazz187/taskgantt/internal/view"
)

// Settings builds the controller settings of the view. types carries the
// date field types of the model.
func (d *Definition) Settings(types map[string]gantt.FieldType) (view.Settings, error) {
	m, err := d.Mapping(types)
	if err != nil {
		return view.Settings{}, err
	}
	p, err := d.Policies()
	if err != nil {
		return view.Settings{}, err
	}
	return view.Settings{
		Mapping:       m,
		GroupBys:      d.GroupBys(),
		MissingStart:  p.MissingStart,
		GroupReassign: p.GroupReassign,
		Restrict:      d.Restrict,
	}, nil
}
