package grouping

import (
	"testing"
	"time"
)

func TestKeySharedAcrossPages(t *testing.T) {
	k1, ok1 := key("PROVEEDOR X FAC 0001-00001234.pdf")
	k2, ok2 := key("PROVEEDOR X 0001-00001234 pag2.pdf")
	if !ok1 || !ok2 {
		t.Fatalf("both names should yield keys: ok1=%v ok2=%v", ok1, ok2)
	}
	if k1 != k2 {
		t.Errorf("keys differ: %q vs %q", k1, k2)
	}
}

func TestKeySingletons(t *testing.T) {
	tests := []struct {
		name   string
		reason string
	}{
		{"liquidacion marzo.pdf", "no voucher token"},
		{"FC 0001-00001234.pdf", "provider shorter than 3 chars"},
		{"12345678.pdf", "numbers only, no provider"},
	}
	for _, tt := range tests {
		if _, ok := key(tt.name); ok {
			t.Errorf("key(%q) ok = true, want singleton (%s)", tt.name, tt.reason)
		}
	}
}

func TestKeyBareDigitRun(t *testing.T) {
	k1, ok := key("ACME SRL 000100001234.pdf")
	if !ok {
		t.Fatal("bare 12-digit run should act as voucher")
	}
	k2, _ := key("ACME SRL 000100001234 hoja2.pdf")
	if k1 != k2 {
		t.Errorf("keys differ: %q vs %q", k1, k2)
	}
}

func TestKeyAccentsAndCase(t *testing.T) {
	k1, ok1 := key("Óptica Núñez FAC 0002-00009999.pdf")
	k2, ok2 := key("OPTICA NUNEZ 0002-00009999 pag2.pdf")
	if !ok1 || !ok2 || k1 != k2 {
		t.Errorf("diacritics and case must not split groups: %q vs %q", k1, k2)
	}
}

func TestGroupFilesOrdering(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	files := []File{
		{Path: "/in/PROVEEDOR X 0001-00001234 pag2.pdf", ModTime: base.Add(time.Minute)},
		{Path: "/in/PROVEEDOR X FAC 0001-00001234.pdf", ModTime: base},
		{Path: "/in/otros apuntes.pdf", ModTime: base},
	}

	groups := GroupFiles(files)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}

	// Groups sort by first member name: "PROVEEDOR..." before "otros..."
	// (upper-case sorts before lower-case).
	first := groups[0]
	if len(first.Members) != 2 {
		t.Fatalf("voucher group has %d members, want 2", len(first.Members))
	}
	if first.Members[0].Name() != "PROVEEDOR X FAC 0001-00001234.pdf" {
		t.Errorf("members not ordered by modtime: %q first", first.Members[0].Name())
	}
	if len(groups[1].Members) != 1 {
		t.Errorf("singleton expected for unkeyed file")
	}
}
