package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskgantt/internal/gantt"
	"github.com/kazz187/taskgantt/internal/record/repositoryimpl"
	"github.com/kazz187/taskgantt/pkg/storage"
)

const seedFile = `
models:
  - name: res.users
    rec_name: login
    fields:
      login: {type: char}
  - name: project.task
    fields:
      name: {type: char}
      user_id: {type: many2one, relation: res.users}
      date_start: {type: datetime}
    rights: {write: true, create: true, unlink: true}
records:
  project.task:
    - id: "1"
      values: {name: Design, user_id: "7", date_start: "2024-01-10 09:00:00"}
  res.users:
    - id: "7"
      values: {login: alice}
`

func TestSeed_Apply(t *testing.T) {
	ctx := context.Background()
	repo := repositoryimpl.NewYAMLRepository(storage.NewMemoryStorage())

	s, err := parseSeed([]byte(seedFile))
	require.NoError(t, err)
	n, err := s.apply(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	e, err := repo.Get(ctx, "project.task", "1")
	require.NoError(t, err)
	assert.Equal(t, []any{"7", "alice"}, e.Values["user_id"])

	// Importing again replaces instead of failing.
	n, err = s.apply(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestParseSeed_Errors(t *testing.T) {
	for name, data := range map[string]string{
		"malformed":     "models: [",
		"unnamed model": "models:\n  - fields: {}\n",
		"record no id":  "records:\n  project.task:\n    - values: {name: x}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseSeed([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestParseConditions(t *testing.T) {
	domain, err := parseConditions([]string{
		"name ilike design",
		"stage not in todo, done",
		"user_id = false",
		"id in 1,2",
	})
	require.NoError(t, err)
	assert.Equal(t, gantt.Domain{
		{Field: "name", Operator: "ilike", Value: "design"},
		{Field: "stage", Operator: "not in", Value: []any{"todo", "done"}},
		{Field: "user_id", Operator: "=", Value: false},
		{Field: "id", Operator: "in", Value: []any{"1", "2"}},
	}, domain)

	_, err = parseConditions([]string{"name"})
	assert.Error(t, err)
	_, err = parseConditions([]string{"name ="})
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-01-10T09:00:00Z", "2024-01-10 09:00:00"} {
		got, err := parseTime(s)
		require.NoError(t, err)
		assert.True(t, want.Equal(got), s)
	}
	got, err := parseTime("2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), got)

	_, err = parseTime("next week")
	assert.Error(t, err)
}

func TestRecordDiff(t *testing.T) {
	task := gantt.Task{
		RecordID: "1",
		Record:   gantt.Record{"id": "1", "date_start": "2024-01-10 09:00:00", "date_stop": false},
	}
	out, err := recordDiff(task, gantt.Diff{"date_start": "2024-01-15 09:00:00", "date_stop": "2024-01-16 09:00:00"})
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"--- record/1",
		"+++ record/1 (changed)",
		"@@ -1,2 +1,2 @@",
		"-date_start: \"2024-01-10 09:00:00\"",
		"-date_stop: false",
		"+date_start: \"2024-01-15 09:00:00\"",
		"+date_stop: \"2024-01-16 09:00:00\"",
		"",
	}, "\n"), out)
}

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "", want: false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		ok, err := promptConfirmer(strings.NewReader(tt.input), &out).Confirm(context.Background(), "Delete?")
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "input %q", tt.input)
		assert.Equal(t, "Delete? [y/N] ", out.String())
	}
}
