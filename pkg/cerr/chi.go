package cerr

import (
	"context"
	"errors"
	"net/http"

	"github.com/kazz187/taskgantt/pkg/clog"
)

type replyKey struct{}

// reply collects what a handler answers with. The last Set call wins.
type reply struct {
	status int
	body   any
	err    error
}

func replyFrom(ctx context.Context) *reply {
	r, _ := ctx.Value(replyKey{}).(*reply)
	return r
}

func SetJSONResponse(ctx context.Context, response any) {
	SetJSONResponseWithStatus(ctx, http.StatusOK, response)
}

// SetJSONResponseWithStatus answers with response encoded as JSON. A nil
// response sends status with no body.
func SetJSONResponseWithStatus(ctx context.Context, status int, response any) {
	if r := replyFrom(ctx); r != nil {
		r.status, r.body, r.err = status, response, nil
	}
}

func SetJSONError(ctx context.Context, err error) {
	if r := replyFrom(ctx); r != nil {
		r.err = err
	}
}

func SetNewJSONError(ctx context.Context, code Code, msg string, err error) {
	SetJSONError(ctx, NewError(code, msg, err))
}

// NewJSONResponseChiMiddleware lets handlers report a value or an error
// through the request context; the middleware writes the JSON body.
func NewJSONResponseChiMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			rep := &reply{status: http.StatusOK}
			ctx := context.WithValue(r.Context(), replyKey{}, rep)
			next.ServeHTTP(rw, r.WithContext(ctx))
			rep.write(ctx, rw)
		})
	}
}

func (r *reply) write(ctx context.Context, rw http.ResponseWriter) {
	if r.err == nil {
		writeJSON(ctx, rw, r.status, r.body)
		return
	}
	if errors.Is(r.err, context.Canceled) {
		writeJSONError(ctx, rw, NewError(Canceled, "connection closed", r.err))
		return
	}
	clog.AddError(ctx, r.err)
	var cErr *Error
	if !errors.As(r.err, &cErr) {
		cErr = NewError(Unknown, "unknown error", r.err)
	}
	if cErr.Stack != "" {
		clog.AddStack(ctx, cErr.Stack)
	}
	writeJSONError(ctx, rw, cErr)
}
