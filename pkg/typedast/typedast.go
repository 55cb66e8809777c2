// Package typedast defines the inbound tree the core consumes. It is owned
// by the front end (parser, name resolution, type inference) described as
// out of scope in the toolchain's top-level design; this package only
// carries the shape the IR builder needs, as already fully typed data.
package typedast

// TypeExpr mirrors the Type sum described by the IR data model. The front
// end has already resolved every name by the time a TypeExpr reaches the
// core, so there are no unresolved-name variants here.
type TypeExpr struct {
	Kind    TypeKind
	Bits    int       // for Uint
	Len     int       // for String(len) and Array
	Pointee *TypeExpr // for Ptr
	Elem    *TypeExpr // for Slice/Array
	Agg     string    // aggregate (struct/union) name, resolved against Module.Structs/Unions
}

type TypeKind int

const (
	KUnit TypeKind = iota
	KBool
	KUint
	KB256
	KString
	KPtr
	KSlice
	KArray
	KStruct
	KUnion
)

// Module is the root of one compilation unit's typed AST.
type Module struct {
	Kind    ModuleKind
	Name    string
	Structs []AggDecl
	Unions  []AggDecl
	Consts  []ConstDecl
	Fns     []FnDecl
}

type ModuleKind int

const (
	Contract ModuleKind = iota
	Script
	Predicate
	Library
)

// AggDecl describes one struct or union declaration. Field order here is
// authoritative: the IR builder never reorders fields to match use-site
// initializer order.
type AggDecl struct {
	Name   string
	Fields []FieldDecl
}

type FieldDecl struct {
	Name string
	Type TypeExpr
}

type ConstDecl struct {
	Name string
	Type TypeExpr
	Init Expr
}

type FnDecl struct {
	Name       string
	Params     []ParamDecl
	Ret        TypeExpr
	Body       *Block
	IsEntry    bool
	Visibility Visibility
	Selector   string      // optional ABI selector override
}

type Visibility int

const (
	Private Visibility = iota
	Public
)

type ParamDecl struct {
	Name string
	Type TypeExpr
}

// Block is a sequence of statements; the last statement, if an expression
// statement, supplies the block's value in expression position.
type Block struct {
	Stmts []Stmt
}

// Stmt is a sum of statement kinds. Exactly one of the fields is set.
type Stmt struct {
	Let  *LetStmt
	Expr Expr
}

type LetStmt struct {
	Name    string
	Mutable bool
	Type    TypeExpr
	Init    Expr
}

// Expr is the tagged union of expression forms. Kind discriminates which
// group of fields below is meaningful; ResultType is shared by all kinds.
type Expr struct {
	Kind ExprKind

	// Literal
	LitType TypeExpr
	LitInt  uint64
	LitBool bool
	LitB256 [32]byte
	LitStr  []byte

	// Var
	Name string

	// Call
	CallName string
	CallArgs []Expr
	CallBody *Block // present only for the library-inlining case

	// Lazy (&&, ||)
	LazyOp LazyOp
	LHS    *Expr
	RHS    *Expr

	// If
	Cond *Expr
	Then *Block
	Else *Block

	// While
	WCond *Expr
	WBody *Block

	// Struct
	StructName string
	Fields     []FieldInit

	// FieldAccess / TupleIndex / FieldAssign
	Base  *Expr
	Field string
	Index int

	// Assign (Name holds the target, shared with Var) / FieldAssign (Base.Field)
	AssignVal *Expr

	// EnumInst
	EnumName string
	Tag      uint64
	Payload  *Expr

	// Asm
	AsmIns   []AsmInput
	AsmOut   string
	AsmRet   TypeExpr
	AsmLines []AsmLine

	// shared result type, filled in by the (already-run) type inferencer
	ResultType TypeExpr
}

type ExprKind int

const (
	EkLiteral ExprKind = iota
	EkVar
	EkCall
	EkLazy
	EkIf
	EkWhile
	EkStruct
	EkFieldAccess
	EkTupleIndex
	EkEnumInst
	EkAsm
	EkCodeBlock
	EkUnit
	EkReturn // return value carried in Base (nil Base means "return unit")
	EkAssign // Name := AssignVal
	EkFieldAssign // Base.Field := AssignVal
)

type LazyOp int

const (
	LazyAnd LazyOp = iota
	LazyOr
)

type FieldInit struct {
	Name string
	Val  Expr
}

type AsmInput struct {
	Reg  string
	Init *Expr
}

type AsmLine struct {
	Opcode string
	Args   []string
	Imm    *uint64
}
