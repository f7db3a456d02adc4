package gantt

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Kind is the chart interaction that produced a date change.
type Kind int

const (
	Move Kind = iota
	Resize
)

func (k Kind) String() string {
	if k == Resize {
		return "resize"
	}
	return "move"
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "move":
		return Move, nil
	case "resize":
		return Resize, nil
	}
	return Move, newValidationError("kind", fmt.Sprintf("unknown interaction %q", s), nil)
}

// DateChange is what the chart reports after a drag or resize. Group is the
// group the task ended up in; empty means the task's current group.
// GroupValue is the group field's value for Group when the host knows it
// (see Group.Value).
type DateChange struct {
	Task       Task
	Start      time.Time
	End        *time.Time
	Group      GroupID
	GroupValue any
	Kind       Kind
}

// Diff is the set of fields to write for one record.
type Diff map[string]any

// Fields returns the diff keys in sorted order.
func (d Diff) Fields() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GroupReassignPolicy decides when dragging a task writes its group field.
type GroupReassignPolicy int

const (
	// ReassignWhenGrouped writes the group only while a group-by is active.
	ReassignWhenGrouped GroupReassignPolicy = iota
	// ReassignAlways also writes the mapping's default group-by field.
	ReassignAlways
)

func (p GroupReassignPolicy) String() string {
	if p == ReassignAlways {
		return "always"
	}
	return "when_grouped"
}

func ParseGroupReassignPolicy(s string) (GroupReassignPolicy, error) {
	switch s {
	case "", "when_grouped":
		return ReassignWhenGrouped, nil
	case "always":
		return ReassignAlways, nil
	}
	return ReassignWhenGrouped, newValidationError("group_reassign", fmt.Sprintf("unknown group reassign policy %q", s), nil)
}

func ParseMissingStartPolicy(s string) (MissingStartPolicy, error) {
	switch s {
	case "", "skip":
		return SkipMissingStart, nil
	case "reject":
		return RejectMissingStart, nil
	}
	return SkipMissingStart, newValidationError("missing_start", fmt.Sprintf("unknown missing start policy %q", s), nil)
}

// BuildDiff converts a chart date change into the record fields to write.
//
// A move never rewrites the duration field: the task keeps its length. A
// resize with an end does. An instantaneous task (no end) gets its stop
// field set to its start.
func BuildDiff(change DateChange, m FieldMapping, groupBys []string, policy GroupReassignPolicy) (Diff, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if change.Start.IsZero() {
		return nil, newValidationError(m.DateStart, "date change has no start", nil)
	}
	if change.End != nil && change.End.Before(change.Start) {
		return nil, newValidationError(m.DateStop, "date change ends before it starts", nil)
	}
	loc := m.location()

	diff := Diff{}
	diff[m.DateStart] = formatDate(change.Start, m.fieldType(m.DateStart), loc)
	if m.DateStop != "" && !m.NoPeriod() {
		if change.End != nil {
			diff[m.DateStop] = formatDate(*change.End, m.fieldType(m.DateStop), loc)
		} else {
			diff[m.DateStop] = formatDate(change.Start, m.fieldType(m.DateStop), loc)
		}
	}
	if m.DateDelay != "" && change.Kind == Resize && change.End != nil {
		seconds := math.Round(change.End.Sub(change.Start).Seconds())
		diff[m.DateDelay] = seconds / 3600
	}

	var groupField string
	switch {
	case len(groupBys) > 0 && groupBys[0] != "":
		groupField = groupBys[0]
	case policy == ReassignAlways:
		groupField = m.GroupBy
	}
	if groupField != "" {
		diff[groupField] = groupValue(change)
	}
	return diff, nil
}

// groupValue picks what to write for the target group. The id stands in
// only when neither the change nor the task knows the raw value.
func groupValue(change DateChange) any {
	group, value := change.Group, change.GroupValue
	if group == "" || group == change.Task.Group {
		group = change.Task.Group
		if value == nil {
			value = change.Task.GroupValue
		}
	}
	switch {
	case group == "" || group == Ungrouped:
		return false
	case value != nil:
		return value
	}
	return string(group)
}
