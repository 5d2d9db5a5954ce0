package typesys

import "testing"

func TestIntegerTypeSizeOfRoundsUpToBytes(t *testing.T) {
	i1 := &IntegerType{Bits: 1, Signed: false}
	if i1.SizeOf() != 1 {
		t.Fatalf("expected a 1-bit integer to take 1 byte, got %d", i1.SizeOf())
	}
}

func TestStructTypeAlignsMembersAndPadsTrailer(t *testing.T) {
	// { i8 a; i32 b; } lays out at offset 0 and 4 (padding after a),
	// total size 8 (padded up to the struct's own 4-byte alignment).
	s := &StructType{Name: "S", Members: []StructMember{
		{Name: "a", Type: I8},
		{Name: "b", Type: I32},
	}}
	offs := s.Offsets()
	if offs[0] != 0 || offs[1] != 4 {
		t.Fatalf("expected offsets [0 4], got %v", offs)
	}
	if s.SizeOf() != 8 {
		t.Fatalf("expected padded size 8, got %d", s.SizeOf())
	}
	if s.AlignOf() != 4 {
		t.Fatalf("expected struct alignment 4 (its widest member), got %d", s.AlignOf())
	}
}

func TestPointerTypeIsAlwaysEightBytes(t *testing.T) {
	p := &PointerType{Elem: I8}
	if p.SizeOf() != 8 || p.AlignOf() != 8 {
		t.Fatalf("expected pointer size/align 8/8, got %d/%d", p.SizeOf(), p.AlignOf())
	}
}

func TestArrayTypeSizeIsElementTimesCount(t *testing.T) {
	a := &ArrayType{Elem: I32, N: 4}
	if a.SizeOf() != 16 {
		t.Fatalf("expected array size 16, got %d", a.SizeOf())
	}
}

func TestIntegerTypeStringDistinguishesSignedness(t *testing.T) {
	if I32.String() != "i32" {
		t.Fatalf("expected i32, got %s", I32.String())
	}
	if U32.String() != "u32" {
		t.Fatalf("expected u32, got %s", U32.String())
	}
}
