package gantt

import "time"

// FieldType tells how a date field is stored by the host.
type FieldType string

const (
	FieldDatetime FieldType = "datetime"
	FieldDate     FieldType = "date"
)

const DefaultDisplayField = "display_name"

// FieldMapping names the record fields that feed a task.
type FieldMapping struct {
	DateStart    string
	DateStop     string
	DateDelay    string // duration in hours
	AllDay       string
	Progress     string
	GroupBy      string // default single group-by
	DisplayField string
	Types        map[string]FieldType
	Location     *time.Location
}

// Validate fails with a ConfigurationError when no start field is mapped.
// A view cannot be built without one.
func (m *FieldMapping) Validate() error {
	if m.DateStart == "" {
		return newConfigurationError("gantt view has no date_start field", nil)
	}
	return nil
}

// NoPeriod reports whether start and stop are the same field, in which case
// tasks have no length of their own.
func (m *FieldMapping) NoPeriod() bool {
	return m.DateStart != "" && m.DateStart == m.DateStop
}

// FieldNames lists every mapped field once, in a stable order, for the
// host's record fetch.
func (m *FieldMapping) FieldNames() []string {
	var names []string
	seen := map[string]bool{}
	for _, f := range []string{
		m.displayField(),
		m.DateStart,
		m.DateStop,
		m.DateDelay,
		m.AllDay,
		m.Progress,
		m.GroupBy,
	} {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		names = append(names, f)
	}
	return names
}

func (m *FieldMapping) displayField() string {
	if m.DisplayField == "" {
		return DefaultDisplayField
	}
	return m.DisplayField
}

func (m *FieldMapping) location() *time.Location {
	if m.Location == nil {
		return time.UTC
	}
	return m.Location
}

func (m *FieldMapping) fieldType(field string) FieldType {
	if t, ok := m.Types[field]; ok {
		return t
	}
	return FieldDatetime
}

// groupField is the field tasks are grouped by: the first active group-by,
// else the mapping default.
func (m *FieldMapping) groupField(groupBys []string) string {
	if len(groupBys) > 0 && groupBys[0] != "" {
		return groupBys[0]
	}
	return m.GroupBy
}
