/*
Package observability provides the monitoring side of a parley server.

Session lifecycle hooks feed Prometheus collectors and structured log lines; a small chi
router exposes the collectors on /metrics next to a /healthz probe. Nothing here ever writes
to the protocol stream.
*/
package observability
