package ir

// Pointer is the addressable-storage arena supplementing the plain Value
// graph: a local variable's declaration (name, pointee type, mutability,
// optional constant initializer) lives here, separate from the SSA values
// that read and write it. Local variables always have type Ptr(T).
type Pointer struct {
	ID          PointerID
	Name        string
	Pointee     Type
	Mutable     bool
	Initializer *Constant // nil if none
}

func (p *Pointer) Type() Type { return Ptr(p.Pointee) }

func (c *Context) NewPointer(fn FunctionID, name string, pointee Type, mutable bool, init *Constant) PointerID {
	id := PointerID(len(c.pointers))
	c.pointers = append(c.pointers, Pointer{ID: id, Name: name, Pointee: pointee, Mutable: mutable, Initializer: init})
	c.functions[fn].Locals = append(c.functions[fn].Locals, id)
	return id
}

func (c *Context) Pointer(id PointerID) *Pointer {
	return &c.pointers[id]
}
