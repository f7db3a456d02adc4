package main

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/kazz187/taskgantt/internal/gantt"
)

// recordDiff renders the fields diff would write as a unified diff of the
// task's record.
func recordDiff(task gantt.Task, diff gantt.Diff) (string, error) {
	before := map[string]any{}
	after := map[string]any{}
	for _, f := range diff.Fields() {
		v, _ := task.Record.Get(f)
		if v == nil {
			v = false
		}
		before[f] = v
		after[f] = diff[f]
	}
	a, err := yaml.Marshal(before)
	if err != nil {
		return "", err
	}
	b, err := yaml.Marshal(after)
	if err != nil {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: fmt.Sprintf("record/%s", task.RecordID),
		ToFile:   fmt.Sprintf("record/%s (changed)", task.RecordID),
		Context:  3,
	})
}
