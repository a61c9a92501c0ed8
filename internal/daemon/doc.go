// Package daemon coordinates the long-running guessrank process.
//
// It wires the Discord bot, the expiry sweep, the intake janitor, and the
// HTTP status API into a single lifecycle guarded by an flock-based lock so
// only one instance touches the store at a time. Operator notifications for
// start and stop are emitted here.
//
// Keep orchestration logic here: bot behaviour lives in internal/discord and
// the game rules live in their own packages.
package daemon
