package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/kazz187/taskgantt/internal/chart"
	"github.com/kazz187/taskgantt/internal/gantt"
	"github.com/kazz187/taskgantt/internal/reconcile"
	"github.com/kazz187/taskgantt/internal/record"
	"github.com/kazz187/taskgantt/internal/record/repositoryimpl"
	"github.com/kazz187/taskgantt/internal/view"
	"github.com/kazz187/taskgantt/internal/viewdef"
	"github.com/kazz187/taskgantt/pkg/clog"
	"github.com/kazz187/taskgantt/pkg/storage"
)

var (
	app      = kingpin.New("gantt", "Plan records on a gantt chart")
	dataDir  = app.Flag("data", "Record store directory").Default(".taskgantt/data").Envar("GANTT_STORAGE_BASE_DIR").String()
	viewFile = app.Flag("view", "View definition file").Default("gantt.yaml").Envar("GANTT_VIEW_FILE").String()
	logLevel = app.Flag("log-level", "Log level").Default("warn").Envar("GANTT_LOG_LEVEL").String()
	noColor  = app.Flag("no-color", "Disable colored output").Bool()

	importCmd  = app.Command("import", "Load models and records from a YAML seed file")
	importFile = importCmd.Arg("file", "Seed file").Required().ExistingFile()

	renderCmd        = app.Command("render", "Draw the view as a text chart")
	renderScale      = renderCmd.Flag("scale", "Column scale (Quarter Day, Half Day, Day, Week, Month, Year)").String()
	renderGroupBy    = renderCmd.Flag("group-by", "Group by field, repeatable").Strings()
	renderDomain     = renderCmd.Flag("filter", "Condition as 'field operator value', repeatable").Strings()
	renderMaxColumns = renderCmd.Flag("max-columns", "Maximum chart columns").Default("60").Int()

	moveCmd    = app.Command("move", "Move or resize a task")
	moveID     = moveCmd.Arg("id", "Record ID").Required().String()
	moveStart  = moveCmd.Arg("start", "New start (RFC 3339 or 'YYYY-MM-DD HH:MM:SS')").Required().String()
	moveEnd    = moveCmd.Flag("end", "New end").String()
	moveGroup  = moveCmd.Flag("group", "Group the task is dropped into").String()
	moveResize = moveCmd.Flag("resize", "Treat the change as a resize").Bool()
	moveDryRun = moveCmd.Flag("dry-run", "Print the record change without writing it").Bool()

	createCmd   = app.Command("create", "Create a record at a chart position")
	createStart = createCmd.Arg("start", "Position on the chart").Required().String()
	createEnd   = createCmd.Flag("end", "End of the drawn period").String()
	createGroup = createCmd.Flag("group", "Group the record is created in").String()
	createSet   = createCmd.Flag("set", "Field value as field=value, repeatable").StringMap()

	deleteCmd = app.Command("delete", "Delete a record")
	deleteID  = deleteCmd.Arg("id", "Record ID").Required().String()
	deleteYes = deleteCmd.Flag("yes", "Do not ask for confirmation").Short('y').Bool()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelWarn
	}
	handler := clog.NewTextHandler(os.Stderr, clog.WithLevel(level), clog.WithColor(!*noColor))
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewLocalStorage(*dataDir)
	app.FatalIfError(err, "open data directory")
	repo := repositoryimpl.NewYAMLRepository(store)

	switch command {
	case importCmd.FullCommand():
		err = runImport(ctx, repo, *importFile)
	case renderCmd.FullCommand():
		err = runRender(ctx, repo)
	case moveCmd.FullCommand():
		err = runMove(ctx, repo)
	case createCmd.FullCommand():
		err = runCreate(ctx, repo)
	case deleteCmd.FullCommand():
		err = runDelete(ctx, repo)
	}
	app.FatalIfError(err, "%s", command)
}

// session is an opened view for one command run. Edits are only written
// when the command flushes.
type session struct {
	def        *viewdef.Definition
	source     *record.Source
	controller *view.Controller
	snapshot   *view.Snapshot
}

func openSession(ctx context.Context, repo record.Repository, presenters ...gantt.TaskPresenter) (*session, error) {
	def, err := viewdef.Load(*viewFile)
	if err != nil {
		return nil, err
	}
	source, err := record.OpenSource(ctx, repo, def.Model)
	if err != nil {
		return nil, err
	}
	settings, err := def.Settings(source.Model().DateTypes())
	if err != nil {
		return nil, err
	}
	snapshot := &view.Snapshot{}
	controller, err := view.NewController(ctx, view.Deps{
		Source:    source,
		Sink:      source,
		Presenter: view.Tee(append([]gantt.TaskPresenter{snapshot}, presenters...)...),
		Scheduler: &reconcile.Manual{},
	}, settings)
	if err != nil {
		return nil, err
	}
	return &session{def: def, source: source, controller: controller, snapshot: snapshot}, nil
}

func runImport(ctx context.Context, repo record.Repository, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	seed, err := parseSeed(data)
	if err != nil {
		return err
	}
	n, err := seed.apply(ctx, repo)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d models and %d records\n", len(seed.Models), n)
	return nil
}

func runRender(ctx context.Context, repo record.Repository) error {
	def, err := viewdef.Load(*viewFile)
	if err != nil {
		return err
	}
	scaleName := *renderScale
	if scaleName == "" {
		scaleName = def.Scale
	}
	scale := chart.Day
	if scaleName != "" {
		if scale, err = chart.ParseScale(scaleName); err != nil {
			return err
		}
	}
	presenter := chart.NewPresenter(os.Stdout,
		chart.WithScale(scale),
		chart.WithNoColor(*noColor),
		chart.WithMaxColumns(*renderMaxColumns),
	)
	s, err := openSession(ctx, repo, presenter)
	if err != nil {
		return err
	}
	domain, err := parseConditions(*renderDomain)
	if err != nil {
		return err
	}
	_, err = s.controller.Load(ctx, view.Params{Domain: domain, GroupBys: *renderGroupBy})
	return err
}

func runMove(ctx context.Context, repo record.Repository) error {
	s, err := openSession(ctx, repo)
	if err != nil {
		return err
	}
	if _, err := s.controller.Load(ctx, view.Params{}); err != nil {
		return err
	}
	task, ok := s.controller.Task(*moveID)
	if !ok {
		return fmt.Errorf("record %s is not on the chart", *moveID)
	}

	change := gantt.DateChange{Task: task, Group: gantt.GroupID(*moveGroup), Kind: gantt.Move}
	if *moveResize {
		change.Kind = gantt.Resize
	}
	if change.Start, err = parseTime(*moveStart); err != nil {
		return err
	}
	if *moveEnd != "" {
		end, err := parseTime(*moveEnd)
		if err != nil {
			return err
		}
		change.End = &end
	}

	if *moveDryRun {
		settings, err := s.def.Settings(s.source.Model().DateTypes())
		if err != nil {
			return err
		}
		diff, err := gantt.BuildDiff(change, settings.Mapping, settings.GroupBys, settings.GroupReassign)
		if err != nil {
			return err
		}
		out, err := recordDiff(task, diff)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}

	if err := s.controller.DateChanged(ctx, change, func() {
		fmt.Printf("record %s written\n", *moveID)
	}); err != nil {
		return err
	}
	batch, _ := s.controller.Flush(ctx)
	return batch.Err()
}

func runCreate(ctx context.Context, repo record.Repository) error {
	s, err := openSession(ctx, repo)
	if err != nil {
		return err
	}
	if _, err := s.controller.Load(ctx, view.Params{}); err != nil {
		return err
	}
	d := view.Draft{Group: gantt.GroupID(*createGroup)}
	if d.Start, err = parseTime(*createStart); err != nil {
		return err
	}
	if *createEnd != "" {
		end, err := parseTime(*createEnd)
		if err != nil {
			return err
		}
		d.End = &end
	}
	values := s.controller.Defaults(d)
	for k, v := range *createSet {
		values[k] = v
	}
	task, err := s.controller.Create(ctx, values)
	if err != nil {
		return err
	}
	fmt.Printf("record %s created\n", task.RecordID)
	return nil
}

func runDelete(ctx context.Context, repo record.Repository) error {
	s, err := openSession(ctx, repo)
	if err != nil {
		return err
	}
	if _, err := s.controller.Load(ctx, view.Params{}); err != nil {
		return err
	}
	var confirmer view.Confirmer = view.Confirmed
	if !*deleteYes {
		confirmer = promptConfirmer(os.Stdin, os.Stdout)
	}
	if err := s.controller.Remove(ctx, *deleteID, confirmer); err != nil {
		return err
	}
	fmt.Printf("record %s deleted\n", *deleteID)
	return nil
}

func promptConfirmer(in io.Reader, out io.Writer) view.Confirmer {
	return view.ConfirmFunc(func(_ context.Context, message string) (bool, error) {
		fmt.Fprintf(out, "%s [y/N] ", message)
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	})
}

// parseTime accepts RFC 3339 and the record store's UTC layouts.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{gantt.ServerDatetimeLayout, gantt.ServerDateLayout} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}
