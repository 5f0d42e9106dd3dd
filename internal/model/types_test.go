package model

import "testing"

func TestParsePrefix(t *testing.T) {
	cases := []struct {
		id   string
		want byte
	}{
		{"A00000", 0xA0},
		{"0xA00000", 0xA0},
		{"0XbB1111", 0xBB},
		{" a0 ", 0xA0},
		{"z", 0},
		{"", 0},
		{"zz0000", 0},
	}
	for _, c := range cases {
		if got := ParsePrefix(c.id); got != c.want {
			t.Errorf("ParsePrefix(%q) = %#x, want %#x", c.id, got, c.want)
		}
	}
}

func TestPathNode_KnownAndUnknown(t *testing.T) {
	table := []Repeater{NewRepeater("A00000", "Alpha", 0, 0)}

	k := Known(0)
	if !k.IsKnown() {
		t.Error("Known node should report IsKnown")
	}
	if k.Index() != 0 {
		t.Errorf("Index() = %d, want 0", k.Index())
	}
	if got := k.Label(table); got != "A00000" {
		t.Errorf("Label() = %q, want A00000", got)
	}

	u := Unknown(0xbb)
	if u.IsKnown() {
		t.Error("Unknown node should not report IsKnown")
	}
	if got := u.Label(table); got != "bb" {
		t.Errorf("Label() = %q, want bb", got)
	}
}

func TestPathNode_IndexPanicsOnUnknown(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected Index() to panic on an Unknown node")
		}
	}()
	Unknown(0).Index()
}
