package emitter

import (
	"encoding/binary"

	"vmc/pkg/asmgen"
)

// dataSectionAlign is the alignment requires for every data
// entry's length-prefixed payload.
const dataSectionAlign = 8

// dataLayout maps each pre-dedup asmgen.Module.Data index to the final
// byte offset (relative to the start of the data section, i.e. the
// payload's position right after its own 8-byte length prefix) its
// content was placed at.
type dataLayout struct {
	offsetByID []int
}

func (d dataLayout) addr(id int) int { return d.offsetByID[id] }

// layoutData deduplicates entries by content, assigns each distinct blob an
// 8-byte-aligned, length-prefixed slot, and returns both the per-original-ID
// lookup table and the final data section bytes.
//
// The length prefix precedes the payload but addr() resolves to the
// payload's own offset, not the prefix's: every LoadDataID consumer
// (pkg/asmgen's materializeConstant chief among them) reads the raw value
// directly via a zero-offset LW, with no expectation of a length header in
// front of it.
func layoutData(entries []asmgen.DataEntry) (dataLayout, []byte) {
	layout := dataLayout{offsetByID: make([]int, len(entries))}

	type slot struct {
		payloadOffset int
	}
	byContent := make(map[string]slot, len(entries))

	var out []byte
	for id, e := range entries {
		key := string(e.Bytes)
		if s, ok := byContent[key]; ok {
			layout.offsetByID[id] = s.payloadOffset
			continue
		}

		for len(out)%dataSectionAlign != 0 {
			out = append(out, 0)
		}
		prefix := make([]byte, 8)
		binary.BigEndian.PutUint64(prefix, uint64(len(e.Bytes)))
		out = append(out, prefix...)

		payloadOffset := len(out)
		out = append(out, e.Bytes...)

		byContent[key] = slot{payloadOffset: payloadOffset}
		layout.offsetByID[id] = payloadOffset
	}

	for len(out)%dataSectionAlign != 0 {
		out = append(out, 0)
	}
	return layout, out
}
