// Package intake validates and stages submitted clips and tracks each
// submission while the submitter picks a guild and a rank.
//
// A Submission is the explicit per-submission context: it carries the
// submitter, the staged file, the selected guild and the claimed rank through
// every later stage. Intake never mutates guild state.
package intake
