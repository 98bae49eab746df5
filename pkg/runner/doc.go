/*
Package runner implements the session driver that bridges a conversational engine and a
remote caller over one duplex stream.

A Session reads one request line per turn, streams the engine's response inside an output
region and ends every turn with exactly one termination marker, including turns whose engine
failed. Questions the engine raises mid-turn are negotiated in place through the sink the
session hands to the engine factory.

# Key Components

  - Session: the turn loop and its state machine.
  - ConfirmInterceptor: policy that may answer a confirmation without asking the caller.
  - Sanitizer: size, encoding and control-character checks on inbound lines.

# Usage

	stream := transport.Stdio()
	s, err := runner.New(ctx, stream, engine.NewEcho,
		runner.WithLogger(logger),
		runner.WithReadyBanner("ready\n"),
	)
	if err != nil {
		return err
	}
	return s.Run(ctx)
*/
package runner
