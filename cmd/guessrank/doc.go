// Command guessrank runs the guess-the-rank Discord bot and offers operator
// tooling around it: configuration scaffolding, a status report, read-only
// views of scoreboards and results, clip cleanup, store import and export,
// and staging maintenance.
//
// Read-only commands open the SQLite store directly, so they work whether or
// not the bot is running. `status` additionally asks a running bot for its
// live state over the HTTP API configured by paths.api_bind.
package main
