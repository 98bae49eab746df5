/*
Package parley bridges a turn-based engine (typically an AI coding assistant) to a caller over a
single line-oriented duplex stream.

The caller writes one request per line. The engine's streamed answer comes back inside region
markers, and every turn ends with a termination marker, so a caller can drive the engine like a
remote procedure without parsing free-form terminal output.

# Wire format

	[~output~]
	Planning: add logging to main.go.
	[~/output~]
	[~confirm_ask~]
	{"type":"question","text":"Apply edit to main.go? (Y)es/(N)o [Yes]: ","options":["yes","no"]}
	[~/confirm_ask~]
	~END_REQUEST~

Tool messages get their own regions (tool_output, tool_warning, tool_error). When the engine asks
a question, the turn pauses with a termination marker and the next line the caller writes is its
answer. Payload text escapes "~" as "~~" so no text can forge a marker. A length-prefixed CBOR
framing is available for callers that prefer binary frames.

# Usage

	err := parley.Serve(ctx, os.Stdin, os.Stdout, engine.NewEcho,
		runner.WithLogger(logger),
		runner.WithReadyBanner("ready\n"),
	)

Engines implement engine.Engine and receive an engine.Sink for tool messages and questions.
The script and process adapters under pkg/adapters provide ready-made engines; the parley command
(cmd/parley) serves them on stdio or a TCP port and can attach to a running server.
*/
package parley
