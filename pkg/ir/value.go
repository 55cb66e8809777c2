package ir

// ValueKind discriminates the three Value variants: a block argument
// (block, index, Type), a Constant, or an Instruction.
type ValueKind int

const (
	VKBlockArg ValueKind = iota
	VKConstant
	VKInstruction
)

// Value is one SSA definition. Every Value lives in exactly one Context
// and is referenced everywhere else by ValueID. An Instruction-kind
// Value embeds its `{op, parent}` pair directly, rather than interning
// Instructions as a separate arena: an Instruction has no identity apart
// from the Value that defines it.
type Value struct {
	ID   ValueID
	Kind ValueKind
	Type Type

	Metadata MetadataID // -1 (InvalidID) if none

	// VKBlockArg
	Block    BlockID
	ArgIndex int

	// VKConstant
	Const Constant

	// VKInstruction
	Op     InstOp
	Parent BlockID
}

// IsTerminator reports whether this instruction ends a Block. Every
// Block has exactly one terminator, at its tail.
func (v *Value) IsTerminator() bool {
	if v.Kind != VKInstruction {
		return false
	}
	switch v.Op.Kind() {
	case OpBranch, OpCondBranch, OpRet, OpRevert, OpRetd, OpJmpMem:
		return true
	default:
		return false
	}
}

func (c *Context) NewBlockArgument(block BlockID, index int, t Type) ValueID {
	return c.addValue(Value{Kind: VKBlockArg, Type: t, Block: block, ArgIndex: index, Metadata: -1})
}

func (c *Context) NewConstantValue(k Constant) ValueID {
	return c.addValue(Value{Kind: VKConstant, Type: k.Type, Const: k, Metadata: -1})
}

// NewInstruction appends op as a new Value at the tail of parent and
// returns its ValueID. resultType is the statically computed type of the
// defined value (Unit for instructions with no result, e.g. store/branch).
func (c *Context) NewInstruction(parent BlockID, op InstOp, resultType Type, md MetadataID) ValueID {
	id := c.addValue(Value{Kind: VKInstruction, Type: resultType, Op: op, Parent: parent, Metadata: md})
	c.blocks[parent].Instructions = append(c.blocks[parent].Instructions, id)
	return id
}

func (c *Context) addValue(v Value) ValueID {
	id := ValueID(len(c.values))
	v.ID = id
	c.values = append(c.values, v)
	return id
}

func (c *Context) Value(id ValueID) *Value {
	return &c.values[id]
}
