package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kazz187/taskgantt/internal/config"
	"github.com/kazz187/taskgantt/internal/eventbus"
	"github.com/kazz187/taskgantt/internal/reconcile"
	"github.com/kazz187/taskgantt/internal/record"
	"github.com/kazz187/taskgantt/internal/record/repositoryimpl"
	"github.com/kazz187/taskgantt/internal/server"
	"github.com/kazz187/taskgantt/internal/view"
	"github.com/kazz187/taskgantt/internal/viewdef"
	"github.com/kazz187/taskgantt/pkg/clog"
	"github.com/kazz187/taskgantt/pkg/storage"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region, env.S3Endpoint)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}

	// Setup view
	def, err := viewdef.Load(env.File)
	if err != nil {
		slog.Error("failed to load view definition", "path", env.File, "error", err)
		os.Exit(1)
	}
	repo := repositoryimpl.NewYAMLRepository(store)
	source, err := record.OpenSource(ctx, repo, def.Model)
	if err != nil {
		slog.Error("failed to open model", "model", def.Model, "error", err)
		os.Exit(1)
	}
	settings, err := def.Settings(source.Model().DateTypes())
	if err != nil {
		slog.Error("invalid view definition", "path", env.File, "error", err)
		os.Exit(1)
	}

	bus := eventbus.New()
	snapshot := &view.Snapshot{}
	controller, err := view.NewController(ctx, view.Deps{
		Source:    source,
		Sink:      source,
		Presenter: snapshot,
		Bus:       bus,
		Scheduler: reconcile.AfterFunc(env.FlushWindow),
	}, settings)
	if err != nil {
		slog.Error("failed to create view", "error", err)
		os.Exit(1)
	}
	if _, err := controller.Load(ctx, view.Params{}); err != nil {
		slog.Error("failed to load view", "error", err)
		os.Exit(1)
	}

	if env.Watch {
		w, err := viewdef.Watch(ctx, env.File, viewdef.DebounceInterval, func(d *viewdef.Definition, err error) {
			if err != nil {
				slog.WarnContext(ctx, "ignoring invalid view definition", "path", env.File, "error", err)
				return
			}
			if d.Model != def.Model {
				slog.WarnContext(ctx, "view definition changed model; restart to apply", "model", d.Model)
				return
			}
			s, err := d.Settings(source.Model().DateTypes())
			if err != nil {
				slog.WarnContext(ctx, "ignoring invalid view definition", "path", env.File, "error", err)
				return
			}
			if err := controller.SetMapping(ctx, s); err != nil {
				slog.ErrorContext(ctx, "failed to apply view definition", "error", err)
			}
		})
		if err != nil {
			slog.Error("failed to watch view definition", "path", env.File, "error", err)
			os.Exit(1)
		}
		defer w.Close()
	}

	srv := server.NewServer(&env.BaseEnv, controller, snapshot, bus)
	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	if err := controller.Close(shutdownCtx); err != nil {
		slog.Error("failed to write pending edits", "error", err)
	}
}
