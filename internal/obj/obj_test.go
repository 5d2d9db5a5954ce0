package obj

import "testing"

func TestNewObjectHasCodeSectionFirst(t *testing.T) {
	o := NewObject()
	if len(o.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(o.Sections))
	}
	if o.CodeSection().Name != ".text" {
		t.Fatalf("expected .text, got %s", o.CodeSection().Name)
	}
	if o.CodeSection().Attributes&AttrExecutable == 0 {
		t.Fatalf("expected code section to be executable")
	}
}

func TestSectionReusesExisting(t *testing.T) {
	o := NewObject()
	a := o.Section(".data", AttrWritable)
	a.Write([]byte{1, 2, 3})
	b := o.Section(".data", AttrWritable)
	if b.Size() != 3 {
		t.Fatalf("expected the same .data section to be returned, got size %d", b.Size())
	}
	if len(o.Sections) != 2 {
		t.Fatalf("expected 2 sections (.text + .data), got %d", len(o.Sections))
	}
}

func TestFillSectionSize(t *testing.T) {
	s := &Section{Name: ".bss", Attributes: AttrSpanFill}
	s.FillCount = 16
	if s.Size() != 16 {
		t.Fatalf("expected fill section size 16, got %d", s.Size())
	}
	if len(s.Bytes) != 0 {
		t.Fatalf("expected a fill section to hold no literal bytes")
	}
}

func TestFindSymbol(t *testing.T) {
	o := NewObject()
	o.AddSymbol(Symbol{Type: SymExport, Name: "main", Section: ".text", Offset: 0})
	sym, ok := o.FindSymbol("main")
	if !ok {
		t.Fatalf("expected to find symbol main")
	}
	if sym.Type != SymExport {
		t.Fatalf("expected SymExport, got %v", sym.Type)
	}
	if _, ok := o.FindSymbol("missing"); ok {
		t.Fatalf("expected missing symbol to not be found")
	}
}
