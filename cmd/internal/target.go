package internal

import (
	"bytes"
	"debug/pe"

	"github.com/sansecio/sigmatch/offset"
)

// Target derives offset metadata and a file type tag from file contents.
// Input that is not a PE image yields a target carrying only its size.
func Target(data []byte) (offset.Target, string) {
	t := offset.Target{Size: uint64(len(data))}
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return t, ""
	}
	defer f.Close()

	var end uint64
	for _, s := range f.Sections {
		t.Sections = append(t.Sections, offset.Section{RawOffset: uint64(s.Offset), RawSize: uint64(s.Size)})
		end = max(end, uint64(s.Offset)+uint64(s.Size))
	}
	if end > 0 && end < t.Size {
		t.Overlay, t.HasOverlay = end, true
	}

	var rva uint32
	switch h := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		rva = h.AddressOfEntryPoint
	case *pe.OptionalHeader64:
		rva = h.AddressOfEntryPoint
	}
	if off, ok := rvaToOffset(f, rva); ok {
		t.EntryPoint, t.HasEntryPoint = off, true
	}
	return t, "pe"
}

func rvaToOffset(f *pe.File, rva uint32) (uint64, bool) {
	for _, s := range f.Sections {
		size := uint64(max(s.VirtualSize, s.Size))
		if rva >= s.VirtualAddress && uint64(rva) < uint64(s.VirtualAddress)+size {
			return uint64(s.Offset) + uint64(rva-s.VirtualAddress), true
		}
	}
	return 0, false
}
