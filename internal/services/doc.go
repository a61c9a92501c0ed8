// Package services defines the error taxonomy and context helpers shared by
// every stage of the clip pipeline.
//
// Key responsibilities:
//   - Context helpers that stamp guild, clip, and submission identifiers plus
//     stage names and correlation IDs for logging.
//   - Structured error markers plus the Wrap helper so callers classify
//     failures with errors.Is instead of matching strings.
//   - UserMessage, which turns a classified failure into the short text shown
//     to Discord users while the full chain stays in the operator logs.
package services
