/*
Package ports defines the driven ports (interfaces) of a parley session.

# Key Interfaces

  - Recorder: keeps the transcript of completed turns (memory or Redis).

RunRecorderContract is a reusable test suite every Recorder implementation runs.
*/
package ports
