package chart

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/kazz187/taskgantt/internal/gantt"
	"github.com/kazz187/taskgantt/pkg/color"
)

const (
	DefaultMaxColumns = 60
	maxLabelWidth     = 28

	barDone     = '█'
	barTodo     = '▒'
	milestone   = '◆'
	emptyCell   = ' '
	columnSplit = '·'
)

type Option func(*Presenter)

func WithScale(s Scale) Option {
	return func(p *Presenter) {
		p.scale = s
	}
}

func WithNoColor(noColor bool) Option {
	return func(p *Presenter) {
		p.noColor = noColor
	}
}

func WithMaxColumns(n int) Option {
	return func(p *Presenter) {
		if n > 0 {
			p.maxColumns = n
		}
	}
}

// Presenter draws views as a text gantt chart, one row per task under its
// group header.
type Presenter struct {
	mu         sync.Mutex
	w          io.Writer
	scale      Scale
	noColor    bool
	maxColumns int
}

var _ gantt.TaskPresenter = (*Presenter)(nil)

func NewPresenter(w io.Writer, opts ...Option) *Presenter {
	p := &Presenter{
		w:          w,
		scale:      Day,
		maxColumns: DefaultMaxColumns,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetScale changes the scale used by later Present calls.
func (p *Presenter) SetScale(s Scale) {
	p.mu.Lock()
	p.scale = s
	p.mu.Unlock()
}

func (p *Presenter) Present(_ context.Context, v gantt.View) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := io.WriteString(p.w, p.render(v))
	return err
}

func (p *Presenter) render(v gantt.View) string {
	var b strings.Builder
	if len(v.Tasks) == 0 {
		b.WriteString("no tasks\n")
		return b.String()
	}

	cols := p.columns(v.Tasks)
	labelWidth := 0
	for _, t := range v.Tasks {
		labelWidth = max(labelWidth, runewidth.StringWidth(t.Label)+2)
	}
	for _, g := range v.Groups {
		labelWidth = max(labelWidth, runewidth.StringWidth(g.Label))
	}
	labelWidth = min(labelWidth, maxLabelWidth)

	muted := color.Muted(p.noColor)
	pad := strings.Repeat(" ", labelWidth)
	b.WriteString(pad + " " + muted.Sprint(p.periodRow(cols)) + "\n")
	b.WriteString(pad + " " + muted.Sprint(p.labelRow(cols)) + "\n")

	groups := v.Groups
	grouped := len(v.GroupBys) > 0
	if grouped && len(groups) == 0 {
		groups = gantt.SplitGroups(v.Tasks)
	}
	if !grouped {
		groups = []gantt.Group{{ID: "", Label: ""}}
	}
	for _, g := range groups {
		c := color.ForKey(string(g.ID), p.noColor)
		if grouped {
			b.WriteString(c.Sprint(runewidth.Truncate(g.Label, labelWidth, "…")) + "\n")
		}
		for _, t := range v.Tasks {
			if grouped && t.Group != g.ID {
				continue
			}
			label := runewidth.FillRight(runewidth.Truncate("  "+t.Label, labelWidth, "…"), labelWidth)
			b.WriteString(label + " " + c.Sprint(p.bar(t, cols)) + "\n")
		}
	}
	if last := cols[len(cols)-1]; p.truncated(v.Tasks, last) {
		fmt.Fprintf(&b, "%s %s\n", pad, muted.Sprintf("… continues after %s", last.Format(time.DateOnly)))
	}
	return b.String()
}

// columns returns the column boundaries covering every task, capped at
// maxColumns. The last element is the end of the last column.
func (p *Presenter) columns(tasks []gantt.Task) []time.Time {
	first, last := tasks[0].Start, tasks[0].Start
	for _, t := range tasks {
		if t.Start.Before(first) {
			first = t.Start
		}
		end := t.Start
		if t.End != nil {
			end = *t.End
		}
		if end.After(last) {
			last = end
		}
	}
	cols := []time.Time{p.scale.floor(first)}
	for len(cols)-1 < p.maxColumns {
		next := p.scale.next(cols[len(cols)-1])
		cols = append(cols, next)
		if next.After(last) {
			break
		}
	}
	return cols
}

func (p *Presenter) truncated(tasks []gantt.Task, last time.Time) bool {
	for _, t := range tasks {
		end := t.Start
		if t.End != nil {
			end = *t.End
		}
		if end.After(last) {
			return true
		}
	}
	return false
}

func (p *Presenter) labelRow(cols []time.Time) string {
	w := p.scale.width()
	var b strings.Builder
	for _, c := range cols[:len(cols)-1] {
		b.WriteString(runewidth.FillRight(p.scale.label(c), w))
	}
	return b.String()
}

func (p *Presenter) periodRow(cols []time.Time) string {
	w := p.scale.width()
	row := []rune(strings.Repeat(" ", w*(len(cols)-1)))
	prev, free := "", 0
	for i, c := range cols[:len(cols)-1] {
		period := p.scale.period(c)
		if period == "" || period == prev {
			continue
		}
		prev = period
		pos := i * w
		if pos < free {
			continue
		}
		for j, r := range period {
			if pos+j < len(row) {
				row[pos+j] = r
			}
		}
		free = pos + len([]rune(period)) + 1
	}
	return strings.TrimRight(string(row), " ")
}

func (p *Presenter) bar(t gantt.Task, cols []time.Time) string {
	w := p.scale.width()
	n := len(cols) - 1
	isMilestone := t.End == nil || !t.End.After(t.Start)

	first, last := -1, -1
	for i := 0; i < n; i++ {
		var in bool
		if isMilestone {
			in = !t.Start.Before(cols[i]) && t.Start.Before(cols[i+1])
		} else {
			in = t.Start.Before(cols[i+1]) && t.End.After(cols[i])
		}
		if in {
			if first < 0 {
				first = i
			}
			last = i
		}
	}

	done := 0
	if first >= 0 {
		done = int(math.Round(float64((last-first+1)*w) * t.Progress / 100))
	}
	cells := make([]rune, 0, n*w)
	for i := 0; i < n; i++ {
		inside := first >= 0 && i >= first && i <= last
		for j := 0; j < w; j++ {
			switch {
			case inside && isMilestone && j == 0:
				cells = append(cells, milestone)
			case inside && isMilestone:
				cells = append(cells, emptyCell)
			case inside && (i-first)*w+j < done:
				cells = append(cells, barDone)
			case inside:
				cells = append(cells, barTodo)
			case j == w-1:
				cells = append(cells, columnSplit)
			default:
				cells = append(cells, emptyCell)
			}
		}
	}
	return string(cells)
}
