// Package preflight provides readiness checks for the filesystem paths and
// external tools the bot depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll on startup and refuses to connect to Discord
//     when a required check fails.
//   - The CLI "guessrank status" command renders the same results alongside
//     the runtime summaries in runtime_status.go.
//
// Optional integrations (upload host, ntfy) are only checked when configured.
package preflight
