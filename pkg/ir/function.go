package ir

// Visibility mirrors the typed AST's FnDecl.Visibility.
type Visibility int

const (
	Private Visibility = iota
	Public
)

// ABIKind selects the entry-function argument-loading mechanism, set only
// on IsEntry functions.
type ABIKind int

const (
	ABINone ABIKind = iota
	ABIContract
	ABIScript
	ABIPredicate
)

// Param is one declared argument: a name, a Type, and its bound SSA
// value ID.
type Param struct {
	Name  string
	Type  Type
	Value ValueID
}

// Function holds a name, argument list, return Type, set of local
// variables, list of Blocks, entry-block ID, visibility, is-entry flag,
// and an optional ABI selector.
type Function struct {
	ID         FunctionID
	Name       string
	Params     []Param
	RetType    Type
	Locals     []PointerID
	Blocks     []BlockID
	Entry      BlockID
	Visibility Visibility
	IsEntry    bool
	ABI        ABIKind
	Selector   string      // non-empty only for ABIContract entry functions
}

func (c *Context) NewFunction(name string, ret Type, vis Visibility) FunctionID {
	id := FunctionID(len(c.functions))
	c.functions = append(c.functions, Function{ID: id, Name: name, RetType: ret, Visibility: vis, Entry: BlockID(InvalidID)})
	return id
}

func (c *Context) Function(id FunctionID) *Function {
	return &c.functions[id]
}

func (c *Context) Functions() []Function { return c.functions }

func (f *Function) AddParam(name string, t Type, v ValueID) {
	f.Params = append(f.Params, Param{Name: name, Type: t, Value: v})
}
