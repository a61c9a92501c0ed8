// Package logs locates and tails the bot's log files.
//
// The daemon writes one guessrank-<run>.log per start and points
// guessrank.log at the newest. Tail reads that file with bounded memory:
// a negative offset returns the last N lines, a non-negative offset
// resumes where the previous call stopped, and Follow waits for new lines
// until the deadline or the context ends.
package logs
