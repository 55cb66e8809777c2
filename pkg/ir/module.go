package ir

// ModuleKind mirrors typedast.ModuleKind; kept as a distinct type so the IR
// layer never depends on pkg/typedast (the core's inbound dependency runs
// the other way: pkg/irbuilder depends on both).
type ModuleKind int

const (
	Contract ModuleKind = iota
	Script
	Predicate
	Library
)

// Module holds a kind, a set of Functions, a set of configured constants,
// and a set of aggregate type declarations.
type Module struct {
	ID         ModuleID
	Kind       ModuleKind
	Name       string
	Functions  []FunctionID
	Configs    map[string]Constant
	Aggregates []AggregateID
}

func (c *Context) NewModule(kind ModuleKind, name string) ModuleID {
	id := ModuleID(len(c.modules))
	c.modules = append(c.modules, Module{ID: id, Kind: kind, Name: name, Configs: make(map[string]Constant)})
	return id
}

func (c *Context) Module(id ModuleID) *Module {
	return &c.modules[id]
}

func (m *Module) AddFunction(fn FunctionID) { m.Functions = append(m.Functions, fn) }
func (m *Module) AddAggregate(a AggregateID) { m.Aggregates = append(m.Aggregates, a) }
func (m *Module) SetConfig(name string, c Constant) { m.Configs[name] = c }
