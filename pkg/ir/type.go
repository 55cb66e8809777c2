package ir

import "fmt"

// TypeKind enumerates the type sum: Unit, Bool, Uint(bits), B256,
// String(len), Ptr(pointee), Slice, Array(elem,len), Struct(AggregateID),
// and Union(AggregateID).
type TypeKind int

const (
	TUnit TypeKind = iota
	TBool
	TUint
	TB256
	TString
	TPtr
	TSlice
	TArray
	TStruct
	TUnion
)

func (k TypeKind) String() string {
	switch k {
	case TUnit:
		return "unit"
	case TBool:
		return "bool"
	case TUint:
		return "u"
	case TB256:
		return "b256"
	case TString:
		return "str"
	case TPtr:
		return "ptr"
	case TSlice:
		return "slice"
	case TArray:
		return "array"
	case TStruct:
		return "struct"
	case TUnion:
		return "union"
	}
	return "?"
}

// Type is a value type, not an arena-managed entity: equality is
// structural, so two Types are interchangeable the moment their fields
// compare equal and there is no benefit to interning them behind an ID the
// way Aggregates (which need named-field lookup and recursive references)
// are interned.
type Type struct {
	Kind    TypeKind
	Bits    int         // Uint
	Len     int         // String(len), Array(len)
	Pointee *Type       // Ptr
	Elem    *Type       // Slice, Array
	Agg     AggregateID // Struct, Union
}

func Unit() Type { return Type{Kind: TUnit} }
func Bool() Type { return Type{Kind: TBool} }
func Uint(bits int) Type {
	if bits != 8 && bits != 16 && bits != 32 && bits != 64 && bits != 256 {
		panic(fmt.Sprintf("ir: invalid uint width %d", bits))
	}
	return Type{Kind: TUint, Bits: bits}
}
func B256() Type { return Type{Kind: TB256} }
func StringTy(n int) Type { return Type{Kind: TString, Len: n} }
func Ptr(pointee Type) Type {
	p := pointee
	return Type{Kind: TPtr, Pointee: &p}
}
func Slice(elem Type) Type {
	e := elem
	return Type{Kind: TSlice, Elem: &e}
}
func Array(elem Type, n int) Type {
	e := elem
	return Type{Kind: TArray, Elem: &e, Len: n}
}
func StructTy(agg AggregateID) Type { return Type{Kind: TStruct, Agg: agg} }
func UnionTy(agg AggregateID) Type { return Type{Kind: TUnion, Agg: agg} }

// Equal implements structural type equality.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TUint:
		return t.Bits == o.Bits
	case TString:
		return t.Len == o.Len
	case TPtr:
		return t.Pointee.Equal(*o.Pointee)
	case TSlice:
		return t.Elem.Equal(*o.Elem)
	case TArray:
		return t.Len == o.Len && t.Elem.Equal(*o.Elem)
	case TStruct, TUnion:
		return t.Agg == o.Agg
	default:
		return true
	}
}

// IsCopyType reports whether t fits in one 64-bit register: Unit, Bool,
// Uint<=64, and Ptr do; B256 and aggregates are reference types.
func (t Type) IsCopyType() bool {
	switch t.Kind {
	case TUnit, TBool, TPtr:
		return true
	case TUint:
		return t.Bits <= 64
	default:
		return false
	}
}

func (t Type) String() string {
	switch t.Kind {
	case TUint:
		return fmt.Sprintf("u%d", t.Bits)
	case TString:
		return fmt.Sprintf("str[%d]", t.Len)
	case TPtr:
		return "ptr<" + t.Pointee.String() + ">"
	case TSlice:
		return "slice<" + t.Elem.String() + ">"
	case TArray:
		return fmt.Sprintf("array<%s;%d>", t.Elem.String(), t.Len)
	case TStruct:
		return fmt.Sprintf("struct#%d", t.Agg)
	case TUnion:
		return fmt.Sprintf("union#%d", t.Agg)
	default:
		return t.Kind.String()
	}
}
