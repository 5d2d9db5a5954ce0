// Package obj models a target- and format-neutral object file: sections
// of raw bytes, symbols locating definitions within them, and
// relocations recording where a not-yet-known address must be patched in
// once the file is linked. It stops at that model: serializing an
// Object to ELF or COFF bytes on disk is out of scope here.
package obj

import "fmt"

// SymbolType classifies what a Symbol names.
type SymbolType int

const (
	SymNone SymbolType = iota
	SymFunction
	SymStatic
	SymExport
	SymExternal
)

func (t SymbolType) String() string {
	switch t {
	case SymFunction:
		return "function"
	case SymStatic:
		return "static"
	case SymExport:
		return "export"
	case SymExternal:
		return "external"
	default:
		return "none"
	}
}

// Symbol locates a definition (or, for SymExternal, a reference to one
// resolved elsewhere) within a section.
type Symbol struct {
	Type    SymbolType
	Name    string
	Section string
	Offset  int
}

// RelocationType names how a relocation's target address combines with
// the bytes at its site.
type RelocationType int

const (
	// DISP32PCRel is a 32-bit displacement relative to the address of
	// the byte immediately following the relocated field, the standard
	// x86-64 RIP-relative and near-call/jump addressing form.
	DISP32PCRel RelocationType = iota
	// DISP32 is an absolute 32-bit displacement, used for addressing
	// modes that name a location without RIP-relative addressing (e.g.
	// import-table slots on Windows).
	DISP32
)

func (t RelocationType) String() string {
	if t == DISP32PCRel {
		return "disp32pcrel"
	}
	return "disp32"
}

// Relocation records that the 4 bytes at Section[Offset:Offset+4] must be
// patched, once Symbol's address is known, to hold (Symbol address -
// (site address + 4) for PCRel, i.e. relative to the byte just after the
// field, or Symbol address for DISP32) + Addend.
type Relocation struct {
	Type    RelocationType
	Symbol  string
	Section string
	Offset  int
	Addend  int64
}

// SectionAttr is a bitset of a section's properties.
type SectionAttr int

const (
	AttrWritable SectionAttr = 1 << iota
	AttrExecutable
	// AttrSpanFill marks a section whose contents are a fixed Fill value
	// repeated FillCount times (e.g. a zero-initialized .bss) rather
	// than explicit bytes.
	AttrSpanFill
)

// Section is one named span of an object file: either literal bytes (the
// common case — code, initialized data) or a fill run (uninitialized
// data), never both.
type Section struct {
	Name       string
	Attributes SectionAttr
	Bytes      []byte
	Fill       byte
	FillCount  int
}

func (s *Section) isFill() bool { return s.Attributes&AttrSpanFill != 0 }

// Size returns the section's length in bytes, whichever representation
// it holds.
func (s *Section) Size() int {
	if s.isFill() {
		return s.FillCount
	}
	return len(s.Bytes)
}

// Write appends n bytes to a byte-backed section's contents, growing it.
func (s *Section) Write(p []byte) (offset int) {
	offset = len(s.Bytes)
	s.Bytes = append(s.Bytes, p...)
	return offset
}

func (s *Section) Write1(b byte)         { s.Write([]byte{b}) }
func (s *Section) Write4(a, b, c, d byte) { s.Write([]byte{a, b, c, d}) }

// Object is a whole compiled translation unit's machine output: by
// convention (matching the reference generic object file) section 0 is
// always the code/text section.
type Object struct {
	Sections []*Section
	Symbols  []Symbol
	Relocs   []Relocation
}

// NewObject creates an Object with an empty, executable code section
// already at index 0.
func NewObject() *Object {
	return &Object{Sections: []*Section{{Name: ".text", Attributes: AttrExecutable}}}
}

// CodeSection returns the object's text section, always at index 0.
func (o *Object) CodeSection() *Section { return o.Sections[0] }

// Section returns the named section, creating it with the given
// attributes if it does not already exist.
func (o *Object) Section(name string, attrs SectionAttr) *Section {
	for _, s := range o.Sections {
		if s.Name == name {
			return s
		}
	}
	s := &Section{Name: name, Attributes: attrs}
	o.Sections = append(o.Sections, s)
	return s
}

// FindSection returns the named section, or nil.
func (o *Object) FindSection(name string) *Section {
	for _, s := range o.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// AddSymbol appends a new symbol.
func (o *Object) AddSymbol(sym Symbol) { o.Symbols = append(o.Symbols, sym) }

// AddRelocation appends a new relocation.
func (o *Object) AddRelocation(r Relocation) { o.Relocs = append(o.Relocs, r) }

// FindSymbol returns the named symbol, or false.
func (o *Object) FindSymbol(name string) (Symbol, bool) {
	for _, s := range o.Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}

// String renders a debug listing of every section, symbol, and
// relocation, in the spirit of the reference implementation's
// generic_object_print.
func (o *Object) String() string {
	out := ""
	for _, s := range o.Sections {
		out += fmt.Sprintf("section %s (%d bytes, attrs=%d)\n", s.Name, s.Size(), s.Attributes)
	}
	for _, sym := range o.Symbols {
		out += fmt.Sprintf("symbol %s %s+%d (%s)\n", sym.Type, sym.Section, sym.Offset, sym.Name)
	}
	for _, r := range o.Relocs {
		out += fmt.Sprintf("reloc %s %s+%d -> %s%+d\n", r.Type, r.Section, r.Offset, r.Symbol, r.Addend)
	}
	return out
}
