/*
Package domain holds the core types shared by the Parley bridge.

It has no dependencies on transport or framing: questions and answers exchanged with the
caller, events captured from the engine's sink, the record of a completed turn, and the
lifecycle hooks observers attach to a session.
*/
package domain
