/*
Package negotiator resolves the blocking questions an engine asks mid-turn.

A question is written as its own region followed by a termination marker, handing the turn
to the caller. The negotiator then blocks on one reply line; invalid replies get a reminder
of the accepted answers and another termination marker, without re-sending the question.
Only a valid answer resumes the turn, reopening the output region that was suspended.
*/
package negotiator
