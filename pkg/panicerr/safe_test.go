package panicerr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskgantt/pkg/cerr"
)

func TestCall_ReturnsError(t *testing.T) {
	want := errors.New("boom")
	err := Call(context.Background(), func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestCall_RecoversPanic(t *testing.T) {
	err := Call(context.Background(), func(context.Context) error {
		panic("write exploded")
	})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Internal))
	assert.Contains(t, err.Error(), "write exploded")
}

func TestGo(t *testing.T) {
	ran := false
	require.NoError(t, Go(context.Background(), func(context.Context) { ran = true }))
	assert.True(t, ran)

	err := Go(context.Background(), func(context.Context) { panic(errors.New("bad handler")) })
	assert.True(t, cerr.IsCode(err, cerr.Internal))
}
