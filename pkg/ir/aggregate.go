package ir

// Aggregate is an ordered sequence of field types plus an optional
// named-field lookup table (name -> index). Aggregates are registered
// once per Context: after an aggregate is registered with a name,
// subsequent lookups find the same ID; rewriting is not supported.
type Aggregate struct {
	ID       AggregateID
	Name     string
	IsUnion  bool
	Fields   []Type
	NameToIx map[string]int
}

func (a *Aggregate) FieldIndex(name string) (int, bool) {
	ix, ok := a.NameToIx[name]
	return ix, ok
}

// SizeWords returns the aggregate's size in 8-byte words (ceil(bytes/8)),
// used by the ASM builder's frame layout. A union is sized to its widest
// variant.
func (a *Aggregate) SizeWords(ctx *Context) int {
	if a.IsUnion {
		max := 0
		for _, f := range a.Fields {
			if w := ctx.TypeSizeWords(f); w > max {
				max = w
			}
		}
		return max
	}
	total := 0
	for _, f := range a.Fields {
		total += ctx.TypeSizeWords(f)
	}
	return total
}
