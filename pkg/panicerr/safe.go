package panicerr

import (
	"context"

	"github.com/sourcegraph/conc/panics"

	"github.com/kazz187/taskgantt/pkg/cerr"
)

// Call runs fn and reports a panic inside it as an Internal error carrying
// the recovered value and its stack.
func Call(ctx context.Context, fn func(context.Context) error) error {
	var (
		catcher panics.Catcher
		err     error
	)
	catcher.Try(func() {
		err = fn(ctx)
	})
	if r := catcher.Recovered(); r != nil {
		return cerr.NewError(cerr.Internal, "panic recovered", r.AsError())
	}
	return err
}

// Go is Call for handlers that have nothing to return.
func Go(ctx context.Context, fn func(context.Context)) error {
	return Call(ctx, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}
