package emitter

import (
	"github.com/ethereum/go-ethereum/crypto"

	"vmc/pkg/ir"
)

// TypeApp is one entry of the JSON ABI's type application:
// a numeric id into the embedded type dictionary, plus any generic
// arguments the dictionary entry's shape requires (arrays, slices).
type TypeApp struct {
	TypeID int `json:"type_id"`
	Args   []int `json:"args,omitempty"`
}

// TypeDeclaration is one entry of the ABI's type dictionary: a structural
// type definition keyed by the numeric id TypeApp references. components
// is non-empty only for Struct/Union entries, naming each field's own
// dictionary id.
type TypeDeclaration struct {
	ID         int `json:"type_id"`
	Name       string `json:"type"`
	Components []TypeDeclEntry `json:"components,omitempty"`
}

// TypeDeclEntry is one named field of a struct/union TypeDeclaration.
type TypeDeclEntry struct {
	Name string `json:"name"`
	Type int `json:"type"`
}

// Method is one `abi` entry: a name, a selector (a 4-byte hash of the
// type-qualified signature), its inputs, and its output type.
type Method struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`  // hex-encoded, "0x"-prefixed 4 bytes
	Inputs   []TypeApp `json:"inputs"`
	Output   TypeApp `json:"output"`
}

// ABI is the full JSON ABI document emitted for contract modules.
type ABI struct {
	Types   []TypeDeclaration `json:"types"`
	Methods []Method `json:"functions"`
}

// abiBuilder interns ir.Types into the flat type dictionary
// describes, assigning each distinct structural type a stable numeric id
// the first time it is seen.
type abiBuilder struct {
	ctx   *ir.Context
	byKey map[string]int
	types []TypeDeclaration
}

// BuildABI walks every `abi` method of a Contract module and produces the
// JSON ABI document: the selector is `Keccak256(signature)[:4]` where
// signature is the type-qualified "name(type,type,...)" string, computed
// with go-ethereum's crypto.Keccak256.
//
// Only ABIKind == ABIContract entry functions with a non-empty Selector
// field are emitted; other module kinds (script, predicate, library) have
// no JSON ABI — it is a contracts-only artifact.
func BuildABI(ctx *ir.Context, mod *ir.Module) *ABI {
	if mod.Kind != ir.Contract {
		return nil
	}
	b := &abiBuilder{ctx: ctx, byKey: make(map[string]int)}

	var methods []Method
	for _, fnID := range mod.Functions {
		if ctx.IsDead(fnID) {
			continue
		}
		fn := ctx.Function(fnID)
		if fn.ABI != ir.ABIContract || fn.Selector == "" {
			continue
		}
		inputs := make([]TypeApp, len(fn.Params))
		sig := fn.Name + "("
		for i, p := range fn.Params {
			inputs[i] = b.intern(p.Type)
			if i > 0 {
				sig += ","
			}
			sig += p.Type.String()
		}
		sig += ")"
		hash := crypto.Keccak256([]byte(sig))
		methods = append(methods, Method{
				Name: fn.Name,
				Selector: hexSelector(hash[:4]),
				Inputs: inputs,
				Output: b.intern(fn.RetType),
			})
	}

	return &ABI{Types: b.types, Methods: methods}
}

func (b *abiBuilder) intern(t ir.Type) TypeApp {
	key := t.String()
	if id, ok := b.byKey[key]; ok {
		return TypeApp{TypeID: id}
	}
	id := len(b.types)
	b.byKey[key] = id

	decl := TypeDeclaration{ID: id, Name: key}
	if t.Kind == ir.TStruct || t.Kind == ir.TUnion {
		agg := b.ctx.Aggregate(t.Agg)
		decl.Components = make([]TypeDeclEntry, len(agg.Fields))
		nameByIx := make(map[int]string, len(agg.NameToIx))
		for name, ix := range agg.NameToIx {
			nameByIx[ix] = name
		}
		for i, f := range agg.Fields {
			fieldApp := b.intern(f)
			decl.Components[i] = TypeDeclEntry{Name: nameByIx[i], Type: fieldApp.TypeID}
		}
	}
	b.types = append(b.types, decl)
	return TypeApp{TypeID: id}
}

const hexDigits = "0123456789abcdef"

func hexSelector(b []byte) string {
	out := make([]byte, 2+len(b)*2)
	out[0], out[1] = '0', 'x'
	for i, c := range b {
		out[2+i*2] = hexDigits[c>>4]
		out[2+i*2+1] = hexDigits[c&0xf]
	}
	return string(out)
}
