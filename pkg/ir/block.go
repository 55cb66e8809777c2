package ir

// Block belongs to one owning Function and holds an ordered list of SSA
// values that are block arguments (phi-equivalents), an ordered list of
// Instructions, and at most one terminator, at the tail.
type Block struct {
	ID           BlockID
	Function     FunctionID
	Name         string
	Args         []ValueID  // VKBlockArg values, in declared order
	Instructions []ValueID  // VKInstruction values, in program order
}

// Terminator returns the block's tail instruction, if the block is closed.
func (c *Context) Terminator(b BlockID) (ValueID, bool) {
	blk := c.blocks[b]
	if len(blk.Instructions) == 0 {
		return 0, false
	}
	last := blk.Instructions[len(blk.Instructions)-1]
	if c.values[last].IsTerminator() {
		return last, true
	}
	return 0, false
}

// Successors returns the block IDs this block branches to, read off its
// terminator. Used by dominator/post-order/liveness analysis.
func (c *Context) Successors(b BlockID) []BlockID {
	term, ok := c.Terminator(b)
	if !ok {
		return nil
	}
	switch op := c.values[term].Op.(type) {
	case BranchOp:
		return []BlockID{op.Target}
	case CondBranchOp:
		return []BlockID{op.TrueBlk, op.FalseBlk}
	default:
		return nil
	}
}

func (c *Context) NewBlock(fn FunctionID, name string) BlockID {
	id := BlockID(len(c.blocks))
	c.blocks = append(c.blocks, Block{ID: id, Function: fn, Name: name})
	c.functions[fn].Blocks = append(c.functions[fn].Blocks, id)
	return id
}

func (c *Context) Block(id BlockID) *Block {
	return &c.blocks[id]
}

// AddBlockArg appends a new block-argument Value to b and returns its ID.
// Block arguments play the role of phi nodes in this SSA form.
func (c *Context) AddBlockArg(b BlockID, t Type) ValueID {
	blk := c.blocks[b]
	idx := len(blk.Args)
	v := c.NewBlockArgument(b, idx, t)
	c.blocks[b].Args = append(c.blocks[b].Args, v)
	return v
}
