// Package types models Kestrel's closed type universe (spec.md §3).
package types

import "fmt"

// Kind discriminates the primitive categories of the universe.
type Kind int

const (
	Invalid Kind = iota
	Bool
	SignedInt
	UnsignedInt
	Reference
	Enum
)

// Type is an immutable value type from the closed universe: bool, iN/uN for
// N in {8,16,32,64,128}, &T for any T in the universe, or a user enum.
type Type struct {
	Kind     Kind
	Width    int    // bit width for SignedInt/UnsignedInt
	EnumName string // set when Kind == Enum
	Elem     *Type  // referent type when Kind == Reference
}

var (
	TBool = &Type{Kind: Bool}

	TI8   = &Type{Kind: SignedInt, Width: 8}
	TI16  = &Type{Kind: SignedInt, Width: 16}
	TI32  = &Type{Kind: SignedInt, Width: 32}
	TI64  = &Type{Kind: SignedInt, Width: 64}
	TI128 = &Type{Kind: SignedInt, Width: 128}

	TU8   = &Type{Kind: UnsignedInt, Width: 8}
	TU16  = &Type{Kind: UnsignedInt, Width: 16}
	TU32  = &Type{Kind: UnsignedInt, Width: 32}
	TU64  = &Type{Kind: UnsignedInt, Width: 64}
	TU128 = &Type{Kind: UnsignedInt, Width: 128}
)

var byName = map[string]*Type{
	"bool": TBool,
	"i8":   TI8, "i16": TI16, "i32": TI32, "i64": TI64, "i128": TI128,
	"u8": TU8, "u16": TU16, "u32": TU32, "u64": TU64, "u128": TU128,
}

// Lookup resolves a primitive type name. It returns (nil, false) for enum
// names, which the caller must resolve against its own enum table.
func Lookup(name string) (*Type, bool) {
	t, ok := byName[name]
	return t, ok
}

// RefTo constructs &elem.
func RefTo(elem *Type) *Type {
	return &Type{Kind: Reference, Elem: elem}
}

// EnumType constructs the type of a declared enum, backed by the given
// unsigned width (see SPEC_FULL.md §7 for the backing-width decision).
func EnumType(name string, backing *Type) *Type {
	return &Type{Kind: Enum, EnumName: name, Elem: backing}
}

// IsInteger reports whether t is a signed or unsigned integer type.
func (t *Type) IsInteger() bool {
	return t != nil && (t.Kind == SignedInt || t.Kind == UnsignedInt)
}

// IsCopyable reports whether values of t may be duplicated by a MIR `Copy`
// rather than moved (spec.md §3: "a copyable primitive").
func (t *Type) IsCopyable() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case Bool, SignedInt, UnsignedInt, Enum:
		return true
	default:
		return false
	}
}

// Equal reports structural equality.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case SignedInt, UnsignedInt:
		return t.Width == o.Width
	case Reference:
		return t.Elem.Equal(o.Elem)
	case Enum:
		return t.EnumName == o.EnumName
	default:
		return true
	}
}

// String renders t the way diagnostics and .mir dumps quote it.
func (t *Type) String() string {
	if t == nil {
		return "<invalid>"
	}
	switch t.Kind {
	case Bool:
		return "bool"
	case SignedInt:
		return fmt.Sprintf("i%d", t.Width)
	case UnsignedInt:
		return fmt.Sprintf("u%d", t.Width)
	case Reference:
		return "&" + t.Elem.String()
	case Enum:
		return t.EnumName
	default:
		return "<invalid>"
	}
}

// SmallestUnsignedFor returns the smallest backing width (8, 16, or 32 bits)
// that can represent count distinct discriminant values (SPEC_FULL.md §7).
func SmallestUnsignedFor(count int) *Type {
	switch {
	case count <= 1<<8:
		return TU8
	case count <= 1<<16:
		return TU16
	default:
		return TU32
	}
}
