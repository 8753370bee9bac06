package services

import "testing"

func TestCountBlanks(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"Why can't I sleep at night?", 1},
		{"_ is the best medicine.", 1},
		{"____ is the best medicine.", 1},
		{"I drink to forget _.", 1},
		{"Step 1: _. Step 2: _. Step 3: profit.", 2},
		{"_ + _ = _", 3},
	}
	for _, c := range cases {
		if got := countBlanks(c.text); got != c.want {
			t.Errorf("countBlanks(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}
