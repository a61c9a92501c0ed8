// Package workflow carries one submission from a staged file to an open
// moderation review: transform through the gateway, optional upload to an
// external host, then a post to the guild's moderation channel.
//
// Manager owns the staged files once Process is called and removes them on
// every path out. Submitter-facing progress goes through a Reporter;
// operator-facing failures go to notifications.
package workflow
