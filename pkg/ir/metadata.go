package ir

import "vmc/pkg/diag"

// MetadataKind enumerates the node kinds of the separate metadata arena's
// structured trees: integer, string, source-id, index, struct{tag,
// fields}, list.
type MetadataKind int

const (
	MdInteger MetadataKind = iota
	MdString
	MdSourceSpan
	MdIndex
	MdStruct
	MdList
)

// MetadataNode is one entry in the metadata arena. Every Value may carry a
// MetadataIndex pointing at one of these; the optimizer's structural hash
// can ignore this arena entirely in release profile, or walk it in debug
// profile.
type MetadataNode struct {
	ID     MetadataID
	Kind   MetadataKind
	Int    int64
	Str    string
	Span   diag.Span
	Tag    string
	Fields map[string]MetadataID
	List   []MetadataID
}

func (c *Context) NewMetadataInt(v int64) MetadataID {
	return c.addMetadata(MetadataNode{Kind: MdInteger, Int: v})
}

func (c *Context) NewMetadataString(v string) MetadataID {
	return c.addMetadata(MetadataNode{Kind: MdString, Str: v})
}

func (c *Context) NewMetadataSpan(s diag.Span) MetadataID {
	return c.addMetadata(MetadataNode{Kind: MdSourceSpan, Span: s})
}

func (c *Context) NewMetadataStruct(tag string, fields map[string]MetadataID) MetadataID {
	return c.addMetadata(MetadataNode{Kind: MdStruct, Tag: tag, Fields: fields})
}

func (c *Context) NewMetadataList(items []MetadataID) MetadataID {
	return c.addMetadata(MetadataNode{Kind: MdList, List: items})
}

func (c *Context) addMetadata(n MetadataNode) MetadataID {
	id := MetadataID(len(c.metadata))
	n.ID = id
	c.metadata = append(c.metadata, n)
	return id
}

func (c *Context) Metadata(id MetadataID) (MetadataNode, bool) {
	if int(id) < 0 || int(id) >= len(c.metadata) {
		return MetadataNode{}, false
	}
	return c.metadata[id], true
}

// Span is a convenience accessor the ASM builder uses to thread source
// spans from a Value's metadata onto the virtual op it lowers to.
func (c *Context) Span(md MetadataID) diag.Span {
	node, ok := c.Metadata(md)
	if !ok || node.Kind != MdSourceSpan {
		return diag.Span{}
	}
	return node.Span
}
