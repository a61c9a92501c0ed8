package ranks

import "testing"

func TestParseIgnoresCase(t *testing.T) {
	for _, input := range []string{"atom", " ATOM ", "Atom"} {
		got, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", input, err)
		}
		if got != Atom {
			t.Fatalf("Parse(%q) = %q", input, got)
		}
	}
	if _, err := Parse("Diamond"); err == nil {
		t.Fatal("expected unknown rank error")
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b Rank
		want int
	}{
		{Atom, Atom, 0},
		{Atom, Quark, 4},
		{Quark, Atom, 4},
		{Substance, Singularity, 8},
		{Rank("bogus"), Atom, 8},
	}
	for _, tc := range tests {
		if got := Distance(tc.a, tc.b); got != tc.want {
			t.Fatalf("Distance(%s,%s)=%d want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0] = "mutated"
	if All()[0] != Substance {
		t.Fatal("All must not expose internal slice")
	}
	if len(all) != 9 {
		t.Fatalf("expected 9 ranks, got %d", len(all))
	}
}

func TestLabel(t *testing.T) {
	if got := Label(Atom, map[string]string{"Atom": "<:Atom:1>"}); got != "<:Atom:1> Atom" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := Label(Quark, nil); got != "Quark" {
		t.Fatalf("unexpected label %q", got)
	}
}
