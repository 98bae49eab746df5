package parley

import (
	"context"
	_ "embed"
	"io"

	"github.com/aretw0/parley/pkg/engine"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/aretw0/parley/pkg/transport"
)

// Version is the release of this module.
//
//go:embed VERSION
var Version string

// Serve runs one session over r and w until the caller sends the exit keyword or r ends.
// It is the high-level entry point for embedding the bridge in another program; use
// pkg/runner directly for finer control over the session.
func Serve(ctx context.Context, r io.Reader, w io.Writer, factory engine.Factory, opts ...runner.Option) error {
	stream := transport.NewStream(r, w, nil)
	defer stream.Close()

	session, err := runner.New(ctx, stream, factory, opts...)
	if err != nil {
		return err
	}
	if err := session.Run(ctx); err != nil {
		return err
	}
	return stream.Flush()
}
