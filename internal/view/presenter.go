package view

import (
	"context"
	"errors"
	"sync"

	"github.com/kazz187/taskgantt/internal/gantt"
)

// Snapshot keeps the latest presented view for hosts that pull it, such as
// the HTTP API.
type Snapshot struct {
	mu      sync.RWMutex
	view    gantt.View
	present bool
}

func (s *Snapshot) Present(_ context.Context, v gantt.View) error {
	s.mu.Lock()
	s.view = v
	s.present = true
	s.mu.Unlock()
	return nil
}

// Latest returns the last presented view; ok is false before the first one.
func (s *Snapshot) Latest() (gantt.View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view, s.present
}

type tee []gantt.TaskPresenter

// Tee presents every view to each of presenters in order.
func Tee(presenters ...gantt.TaskPresenter) gantt.TaskPresenter {
	return tee(presenters)
}

func (t tee) Present(ctx context.Context, v gantt.View) error {
	var errs []error
	for _, p := range t {
		if err := p.Present(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
