package gantt

import (
	"sort"
	"strings"
	"time"
)

// GroupID identifies a chart row group.
type GroupID string

// Ungrouped is the group of tasks whose group field is unset. It is never
// empty so grouping always has a total order.
const Ungrouped GroupID = "-1"

// UngroupedLabel is shown for the Ungrouped group.
const UngroupedLabel = "-"

// Task is the chart view of one record. Tasks are rebuilt on every mapping
// pass; changes go through WithDates and WithGroup, which return copies.
type Task struct {
	RecordID   string     `json:"record_id"`
	Record     Record     `json:"-"`
	Start      time.Time  `json:"start"`
	End        *time.Time `json:"end,omitempty"`
	Label      string     `json:"label"`
	Group      GroupID    `json:"group"`
	GroupLabel string     `json:"group_label"`
	// GroupValue is what the group field holds for Group: the id of a
	// relational group, the raw value of a scalar one, false when
	// ungrouped.
	GroupValue any     `json:"-"`
	Progress   float64    `json:"progress"`
	AllDay     bool       `json:"all_day"`
}

// HasEnd reports whether the task spans a period rather than a point in time.
func (t Task) HasEnd() bool {
	return t.End != nil
}

// Duration is zero for point-in-time tasks.
func (t Task) Duration() time.Duration {
	if t.End == nil {
		return 0
	}
	return t.End.Sub(t.Start)
}

func (t Task) WithDates(start time.Time, end *time.Time) Task {
	t.Start = start
	if end != nil {
		e := *end
		t.End = &e
	} else {
		t.End = nil
	}
	return t
}

// WithGroup moves the task to another group. value is the group field's
// value for id; nil leaves it to BuildDiff to write the id itself.
func (t Task) WithGroup(id GroupID, label string, value any) Task {
	t.Group = id
	t.GroupLabel = label
	t.GroupValue = value
	return t
}

// Group is one row group of the chart.
type Group struct {
	ID    GroupID `json:"id"`
	Label string  `json:"label"`
	Value any     `json:"-"`
}

// SplitGroups returns the distinct groups of tasks: Ungrouped first, the
// rest by label, then by id for equal labels.
func SplitGroups(tasks []Task) []Group {
	seen := map[GroupID]bool{}
	var groups []Group
	for _, t := range tasks {
		id := t.Group
		if id == "" {
			id = Ungrouped
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		label, value := t.GroupLabel, t.GroupValue
		if id == Ungrouped {
			label, value = UngroupedLabel, false
		}
		groups = append(groups, Group{ID: id, Label: label, Value: value})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groupLess(groups[i], groups[j])
	})
	return groups
}

func groupLess(a, b Group) bool {
	if a.ID == Ungrouped {
		return b.ID != Ungrouped
	}
	if b.ID == Ungrouped {
		return false
	}
	if c := strings.Compare(strings.ToLower(a.Label), strings.ToLower(b.Label)); c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}
