package record

import (
	"fmt"
	"strings"

	"github.com/kazz187/taskgantt/internal/gantt"
	"github.com/kazz187/taskgantt/pkg/cerr"
)

// Match reports whether the entry satisfies every condition of d.
// Many2one values compare by id, except for ilike which matches the name.
func Match(e *Entry, d gantt.Domain) (bool, error) {
	for _, c := range d {
		var v any
		if c.Field == "id" {
			v = e.ID
		} else {
			v = e.Values[c.Field]
		}
		ok, err := matchCondition(v, c)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// ValidateDomain rejects unknown operators before any record is read.
func ValidateDomain(d gantt.Domain) error {
	for _, c := range d {
		switch c.Operator {
		case "=", "!=", "in", "not in", "<", "<=", ">", ">=", "ilike":
		default:
			return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unsupported operator %q", c.Operator), nil).
				AddDetail(c.Field, "unsupported operator")
		}
		if c.Field == "" {
			return cerr.NewError(cerr.InvalidArgument, "condition has no field", nil)
		}
	}
	return nil
}

func matchCondition(v any, c gantt.Condition) (bool, error) {
	switch c.Operator {
	case "=":
		return equal(v, c.Value), nil
	case "!=":
		return !equal(v, c.Value), nil
	case "in", "not in":
		list, ok := c.Value.([]any)
		if !ok {
			return false, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("%s needs a list", c.Operator), nil).
				AddDetail(c.Field, "value is not a list")
		}
		found := false
		for _, item := range list {
			if equal(v, item) {
				found = true
				break
			}
		}
		return found == (c.Operator == "in"), nil
	case "<", "<=", ">", ">=":
		if gantt.IsFalsy(v) {
			return false, nil
		}
		cmp := compare(identity(v), c.Value)
		switch c.Operator {
		case "<":
			return cmp < 0, nil
		case "<=":
			return cmp <= 0, nil
		case ">":
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case "ilike":
		s := gantt.ScalarString(v)
		if _, label, ok := gantt.Relation(v); ok {
			s = label
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(gantt.ScalarString(c.Value))), nil
	}
	return false, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unsupported operator %q", c.Operator), nil)
}

// identity reduces a many2one pair to its id.
func identity(v any) any {
	if id, _, ok := gantt.Relation(v); ok {
		return id
	}
	return v
}

func equal(v, want any) bool {
	if b, ok := want.(bool); ok && !b {
		return gantt.IsFalsy(v)
	}
	if gantt.IsFalsy(v) {
		return gantt.IsFalsy(want)
	}
	return compare(identity(v), want) == 0
}

// compare orders numerically when both sides are numbers, as strings
// otherwise. Server date formats order correctly as strings.
func compare(a, b any) int {
	if x, ok := gantt.Number(a); ok {
		if y, ok := gantt.Number(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(gantt.ScalarString(a), gantt.ScalarString(b))
}
