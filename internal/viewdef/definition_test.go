package viewdef

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskgantt/internal/gantt"
)

const taskView = `
model: project.task
date_start: date_start
date_stop: date_end
date_delay: planned_hours
progress: progress
default_group_by: user_id, stage_id
display_field: name
timezone: Asia/Tokyo
scale: Week
missing_start: reject
group_reassign: always
rights:
  write: true
  create: false
  unlink: true
`

func TestParse(t *testing.T) {
	d, err := Parse([]byte(taskView))
	require.NoError(t, err)

	assert.Equal(t, "project.task", d.Model)
	assert.Equal(t, []string{"user_id", "stage_id"}, d.GroupBys())
	assert.Equal(t, "Week", d.Scale)

	m, err := d.Mapping(map[string]gantt.FieldType{"date_start": gantt.FieldDatetime})
	require.NoError(t, err)
	assert.Equal(t, "date_start", m.DateStart)
	assert.Equal(t, "date_end", m.DateStop)
	assert.Equal(t, "planned_hours", m.DateDelay)
	assert.Equal(t, "user_id", m.GroupBy)
	assert.Equal(t, "Asia/Tokyo", m.Location.String())

	p, err := d.Policies()
	require.NoError(t, err)
	assert.Equal(t, gantt.RejectMissingStart, p.MissingStart)
	assert.Equal(t, gantt.ReassignAlways, p.GroupReassign)

	assert.Equal(t, gantt.Rights{Write: true, Unlink: false}, d.Restrict(gantt.Rights{Write: true, Create: true}))
}

func TestParse_Defaults(t *testing.T) {
	d, err := Parse([]byte("model: calendar.event\ndate_start: start\n"))
	require.NoError(t, err)

	m, err := d.Mapping(nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, m.Location)
	assert.Empty(t, m.GroupBy)
	assert.Empty(t, d.GroupBys())

	p, err := d.Policies()
	require.NoError(t, err)
	assert.Equal(t, gantt.SkipMissingStart, p.MissingStart)
	assert.Equal(t, gantt.ReassignWhenGrouped, p.GroupReassign)

	all := gantt.Rights{Write: true, Create: true, Unlink: true}
	assert.Equal(t, all, d.Restrict(all))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "malformed", yaml: "model: [unclosed"},
		{name: "no model", yaml: "date_start: start"},
		{name: "no date_start", yaml: "model: project.task\ndate_stop: stop"},
		{name: "bad timezone", yaml: "model: project.task\ndate_start: start\ntimezone: Mars/Olympus"},
		{name: "bad policy", yaml: "model: project.task\ndate_start: start\nmissing_start: ignore"},
		{name: "bad reassign", yaml: "model: project.task\ndate_start: start\ngroup_reassign: sometimes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, gantt.IsConfigurationError(err), err.Error())
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "view.yaml")
	require.NoError(t, os.WriteFile(path, []byte(taskView), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "project.task", d.Model)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, gantt.IsConfigurationError(err))
}

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	path := filepath.Join(t.TempDir(), "view.yaml")
	require.NoError(t, os.WriteFile(path, []byte(taskView), 0o644))

	type load struct {
		def *Definition
		err error
	}
	loads := make(chan load, 8)
	w, err := Watch(ctx, path, 20*time.Millisecond, func(d *Definition, err error) {
		loads <- load{d, err}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("model: project.task\ndate_start: date_deadline\n"), 0o644))
	select {
	case l := <-loads:
		require.NoError(t, l.err)
		assert.Equal(t, "date_deadline", l.def.DateStart)
	case <-ctx.Done():
		t.Fatal("definition was not reloaded")
	}

	require.NoError(t, os.WriteFile(path, []byte("model: project.task\n"), 0o644))
	select {
	case l := <-loads:
		assert.Nil(t, l.def)
		assert.True(t, gantt.IsConfigurationError(l.err))
	case <-ctx.Done():
		t.Fatal("broken definition was not reported")
	}

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x"), 0o644))
	select {
	case l := <-loads:
		t.Fatalf("unexpected reload: %+v", l)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatch_LogsReloadOnce(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	path := filepath.Join(t.TempDir(), "view.yaml")
	require.NoError(t, os.WriteFile(path, []byte(taskView), 0o644))

	loaded := make(chan struct{}, 8)
	w, err := Watch(ctx, path, 20*time.Millisecond, func(*Definition, error) { loaded <- struct{}{} })
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("model: project.task\ndate_start: date_deadline\n"), 0o644))
	select {
	case <-loaded:
	case <-ctx.Done():
		t.Fatal("definition was not reloaded")
	}
	require.NoError(t, w.Close())

	assert.Equal(t, 1, strings.Count(buf.String(), `"msg":"view definition reloaded"`))
	assert.Contains(t, buf.String(), `"model":"project.task"`)
}

func TestSettings(t *testing.T) {
	d, err := Parse([]byte(taskView))
	require.NoError(t, err)

	s, err := d.Settings(map[string]gantt.FieldType{"date_end": gantt.FieldDate})
	require.NoError(t, err)
	assert.Equal(t, "date_start", s.Mapping.DateStart)
	assert.Equal(t, "user_id", s.Mapping.GroupBy)
	assert.Equal(t, gantt.FieldDate, s.Mapping.Types["date_end"])
	assert.Equal(t, []string{"user_id", "stage_id"}, s.GroupBys)
	assert.Equal(t, gantt.RejectMissingStart, s.MissingStart)
	assert.Equal(t, gantt.ReassignAlways, s.GroupReassign)
	require.NotNil(t, s.Restrict)
	assert.Equal(t, gantt.Rights{Write: true}, s.Restrict(gantt.Rights{Write: true, Create: true}))
}
