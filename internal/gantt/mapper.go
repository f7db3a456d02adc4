package gantt

import (
	"fmt"
	"math"
	"time"
)

// MapRecordToTask converts one record into a task. The start field must be
// present; records without one are rejected with a ValidationError.
// resolvedLabel, when not empty, wins over the record's display field.
func MapRecordToTask(record Record, m FieldMapping, resolvedLabel string) (Task, error) {
	if err := m.Validate(); err != nil {
		return Task{}, err
	}
	loc := m.location()

	allDay := false
	if m.AllDay != "" {
		_, allDay = record.Get(m.AllDay)
	}

	rawStart, ok := record.Get(m.DateStart)
	if !ok {
		return Task{}, newValidationError(m.DateStart,
			fmt.Sprintf("record %s has no %s", record.ID(), m.DateStart), nil)
	}
	start, err := parseDate(rawStart, loc, allDay || m.fieldType(m.DateStart) == FieldDate)
	if err != nil {
		return Task{}, newValidationError(m.DateStart,
			fmt.Sprintf("record %s has an invalid %s", record.ID(), m.DateStart), err)
	}

	var end *time.Time
	switch {
	case m.NoPeriod():
		e := start
		end = &e
	case m.DateStop != "":
		if rawStop, ok := record.Get(m.DateStop); ok {
			stop, err := parseDate(rawStop, loc, allDay || m.fieldType(m.DateStop) == FieldDate)
			if err != nil {
				return Task{}, newValidationError(m.DateStop,
					fmt.Sprintf("record %s has an invalid %s", record.ID(), m.DateStop), err)
			}
			end = &stop
		}
	}

	if end == nil && m.DateDelay != "" {
		if raw, ok := record.Get(m.DateDelay); ok {
			h, ok := Number(raw)
			if !ok {
				return Task{}, newValidationError(m.DateDelay,
					fmt.Sprintf("record %s has a non numeric %s", record.ID(), m.DateDelay), nil)
			}
			if h != 0 {
				d, ok := hours(h)
				if !ok {
					return Task{}, newValidationError(m.DateDelay,
						fmt.Sprintf("record %s has an out of range %s", record.ID(), m.DateDelay), nil)
				}
				e := start.Add(d)
				end = &e
			}
		}
	}

	group, groupLabel, groupValue := reduceGroup(record, m.GroupBy)

	label := resolvedLabel
	if label == "" {
		label = ScalarString(record[m.displayField()])
	}

	progress := 0.0
	if m.Progress != "" {
		if raw, ok := record.Get(m.Progress); ok {
			if p, ok := Number(raw); ok {
				progress = math.Max(0, math.Min(100, p))
			}
		}
	}

	return Task{
		RecordID:   record.ID(),
		Record:     record,
		Start:      start,
		End:        end,
		Label:      label,
		Group:      group,
		GroupLabel: groupLabel,
		GroupValue: groupValue,
		Progress:   progress,
		AllDay:     allDay,
	}, nil
}

// reduceGroup turns a group field value into a group identity: the id of
// a relational pair, the value itself for a plain scalar, Ungrouped when
// unset. The last result is the value to write to keep a record in the
// group.
func reduceGroup(record Record, field string) (GroupID, string, any) {
	raw, ok := record.Get(field)
	if !ok {
		return Ungrouped, UngroupedLabel, false
	}
	if id, label, ok := Relation(raw); ok {
		return GroupID(id), label, id
	}
	if _, isList := raw.([]any); isList {
		return Ungrouped, UngroupedLabel, false
	}
	s := ScalarString(raw)
	return GroupID(s), s, raw
}

// MissingStartPolicy decides what MapRecordsToTasks does with records that
// have no start date.
type MissingStartPolicy int

const (
	// SkipMissingStart leaves such records off the chart.
	SkipMissingStart MissingStartPolicy = iota
	// RejectMissingStart fails the whole pass with a ValidationError.
	RejectMissingStart
)

func (p MissingStartPolicy) String() string {
	if p == RejectMissingStart {
		return "reject"
	}
	return "skip"
}

type mapConfig struct {
	missingStart MissingStartPolicy
}

type MapOption func(*mapConfig)

func WithMissingStart(p MissingStartPolicy) MapOption {
	return func(c *mapConfig) {
		c.missingStart = p
	}
}

// Labels maps record ids to display names resolved by the host.
type Labels map[string]string

// MapRecordsToTasks maps records in order. The first of groupBys, when
// given, replaces the mapping's default group-by.
func MapRecordsToTasks(records []Record, m FieldMapping, groupBys []string, labels Labels, opts ...MapOption) ([]Task, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	cfg := mapConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	m.GroupBy = m.groupField(groupBys)

	tasks := make([]Task, 0, len(records))
	for _, r := range records {
		if _, ok := r.Get(m.DateStart); !ok && cfg.missingStart == SkipMissingStart {
			continue
		}
		t, err := MapRecordToTask(r, m, labels[r.ID()])
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
