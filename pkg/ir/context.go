package ir

// Context is the owning arena for every IR entity created during one
// compilation.
type Context struct {
	modules    []Module
	functions  []Function
	blocks     []Block
	values     []Value
	aggregates []Aggregate
	pointers   []Pointer
	metadata   []MetadataNode

	aggByName map[string]AggregateID

	// dead marks logically deleted entities (DCE'd functions, etc.) without
	// recycling arena slots, per the lifecycle rule.
	deadFunctions map[FunctionID]bool
}

func NewContext() *Context {
	return &Context{
		aggByName: make(map[string]AggregateID),
		deadFunctions: make(map[FunctionID]bool),
	}
}

// RegisterAggregate registers a new aggregate under name, or returns the
// existing ID if name was already registered. Registration is
// write-once-per-entity; rewriting is not supported.
func (c *Context) RegisterAggregate(name string, isUnion bool, fields []Type, fieldNames []string) AggregateID {
	if id, ok := c.aggByName[name]; ok {
		return id
	}
	id := AggregateID(len(c.aggregates))
	nameToIx := make(map[string]int, len(fieldNames))
	for i, n := range fieldNames {
		if n != "" {
			nameToIx[n] = i
		}
	}
	c.aggregates = append(c.aggregates, Aggregate{
			ID: id, Name: name, IsUnion: isUnion,
			Fields: append([]Type(nil), fields...), NameToIx: nameToIx,
		})
	c.aggByName[name] = id
	return id
}

func (c *Context) Aggregate(id AggregateID) *Aggregate { return &c.aggregates[id] }

func (c *Context) AggregateByName(name string) (AggregateID, bool) {
	id, ok := c.aggByName[name]
	return id, ok
}

// MarkDead performs the logical deletion of a Function from the owning
// set: its arena slot stays allocated (so existing FunctionIDs held by
// other passes' cached results remain valid) and it stays listed in
// Module.Functions and Functions(); only the dead flag is set, and callers
// skip it by checking IsDead.
func (c *Context) MarkDead(fn FunctionID) { c.deadFunctions[fn] = true }

func (c *Context) IsDead(fn FunctionID) bool { return c.deadFunctions[fn] }

// TypeSizeWords computes a type's size in 8-byte VM words: Unit, Bool,
// Uint<=64, and Ptr are 1 word; Slice and StringSlice are 2; Uint(256)
// and B256 are 4; StringArray(n) is ceil(n/8); arrays, structs, and
// unions are ceil(bytes/8).
func (c *Context) TypeSizeWords(t Type) int {
	switch t.Kind {
	case TUnit, TBool, TPtr:
		return 1
	case TUint:
		if t.Bits == 256 {
			return 4
		}
		return 1
	case TB256:
		return 4
	case TString:
		return (t.Len + 7) / 8
	case TSlice:
		return 2
	case TArray:
		return ceilDiv(c.TypeSizeWords(*t.Elem)*8*t.Len, 8)
	case TStruct, TUnion:
		return c.Aggregate(t.Agg).SizeWords(c)
	}
	return 1
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func (c *Context) NumValues() int { return len(c.values) }
func (c *Context) NumFunctions() int { return len(c.functions) }
func (c *Context) NumBlocks() int { return len(c.blocks) }
