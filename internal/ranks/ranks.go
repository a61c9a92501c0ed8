// Package ranks defines the ordered skill tiers players guess between.
//
// The order is fixed; the distance between two ranks is the absolute
// difference of their positions and drives the miss penalty in scoring.
package ranks

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Rank is a canonical tier name such as "Atom".
type Rank string

const (
	Substance   Rank = "Substance"
	Molecule    Rank = "Molecule"
	Atom        Rank = "Atom"
	Proton      Rank = "Proton"
	Neutron     Rank = "Neutron"
	Electron    Rank = "Electron"
	Quark       Rank = "Quark"
	Superstring Rank = "Superstring"
	Singularity Rank = "Singularity"
)

var ordered = []Rank{Substance, Molecule, Atom, Proton, Neutron, Electron, Quark, Superstring, Singularity}

var folder = cases.Fold()

var byFolded = func() map[string]Rank {
	m := make(map[string]Rank, len(ordered))
	for _, r := range ordered {
		m[folder.String(string(r))] = r
	}
	return m
}()

// All returns the ranks lowest first.
func All() []Rank {
	return append([]Rank(nil), ordered...)
}

// Parse resolves user input to a canonical rank, ignoring case and surrounding space.
func Parse(value string) (Rank, error) {
	if r, ok := byFolded[folder.String(strings.TrimSpace(value))]; ok {
		return r, nil
	}
	return "", fmt.Errorf("unknown rank %q", value)
}

// Valid reports whether r is one of the canonical ranks.
func (r Rank) Valid() bool {
	return r.Index() >= 0
}

// Index returns the position of r in the ordered list, or -1.
func (r Rank) Index() int {
	for i, candidate := range ordered {
		if candidate == r {
			return i
		}
	}
	return -1
}

// Distance returns |index(a) - index(b)|. Unknown ranks are treated as the
// farthest possible guess.
func Distance(a, b Rank) int {
	ia, ib := a.Index(), b.Index()
	if ia < 0 || ib < 0 {
		return len(ordered) - 1
	}
	if ia > ib {
		return ia - ib
	}
	return ib - ia
}

// Label renders a rank with its emoji when one is configured.
func Label(r Rank, emojis map[string]string) string {
	if emoji := strings.TrimSpace(emojis[string(r)]); emoji != "" {
		return emoji + " " + string(r)
	}
	return string(r)
}
