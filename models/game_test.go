package models

import (
	"reflect"
	"testing"
	"time"
)

func TestStateDocRoundTrip(t *testing.T) {
	in := StateDoc{
		Phase:      PhaseJudging,
		Round:      3,
		PromptCard: 42,
		Submissions: map[string][]uint{
			"p1": {101, 102},
			"p2": {103},
		},
		SkipVotes: []string{"p1"},
	}
	raw, err := in.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	var out StateDoc
	if err := out.Scan(raw); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip changed the document:\n in: %+v\nout: %+v", in, out)
	}
}

func TestPileMapRoundTrip(t *testing.T) {
	in := PileMap{
		CardTypePrompt:   {1, 2, 3},
		CardTypeResponse: {101, 102},
	}
	raw, err := in.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	var out PileMap
	if err := out.Scan(raw); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip changed the piles:\n in: %+v\nout: %+v", in, out)
	}
}

func TestPlayerMapRoundTrip(t *testing.T) {
	in := PlayerMap{
		"p1": {Name: "alice", Score: 2, Hand: []uint{101, 102}, IsCreator: true, JoinOrder: 1},
		"p2": {Name: "bob", Hand: []uint{103}, IsCzar: true, JoinOrder: 1.5},
		"p3": {Name: "Rando", Hand: []uint{104}, IsRando: true, JoinOrder: 2},
	}
	raw, err := in.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	var out PlayerMap
	if err := out.Scan(raw); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip changed the roster:\n in: %+v\nout: %+v", in, out)
	}
}

func TestHistoryListRoundTrip(t *testing.T) {
	in := HistoryList{{
		Round:       1,
		Czar:        "p1",
		PromptCard:  7,
		Submissions: map[string][]uint{"p2": {101}},
		Winner:      "p2",
		CompletedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}}
	raw, err := in.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	var out HistoryList
	if err := out.Scan(raw); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip changed the history:\n in: %+v\nout: %+v", in, out)
	}
}

func TestScanAcceptsStringAndNil(t *testing.T) {
	var s StateDoc
	if err := s.Scan(`{"phase":"waiting","round":0,"submissions":{},"skip_votes":[]}`); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if s.Phase != PhaseWaiting {
		t.Fatalf("phase = %q, want waiting", s.Phase)
	}

	var h HistoryList
	if err := h.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if h != nil {
		t.Fatalf("nil scan produced %v, want untouched nil", h)
	}

	var p PileMap
	if err := p.Scan(42); err == nil {
		t.Fatalf("scan of an int succeeded, want an error")
	}
}
