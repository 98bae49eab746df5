package engine_test

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/aretw0/parley/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, e engine.Engine, input string) (string, error) {
	t.Helper()
	var b strings.Builder
	for chunk, err := range e.RunStream(context.Background(), input) {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
	}
	return b.String(), nil
}

func TestEcho(t *testing.T) {
	e, err := engine.NewEcho(context.Background(), nil)
	require.NoError(t, err)

	out, err := drain(t, e, "add logging  to main")
	require.NoError(t, err)
	assert.Equal(t, "add logging to main\n", out)
}

func TestEcho_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotErr error
	for _, err := range (engine.Echo{}).RunStream(ctx, "a b") {
		if err != nil {
			gotErr = err
			break
		}
	}
	assert.ErrorIs(t, gotErr, context.Canceled)
}

func TestFunc_Fail(t *testing.T) {
	boom := errors.New("boom")
	e := engine.Func(func(ctx context.Context, input string) iter.Seq2[string, error] {
		return engine.Fail(boom, "partial")
	})

	out, err := drain(t, e, "x")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "partial", out)
}
