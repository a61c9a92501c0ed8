// Package textutil cleans user-supplied strings before they reach logs,
// file names, or Discord messages.
package textutil
