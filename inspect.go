package relo

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
)

// Read-only views over an object file, for tooling. Nothing here touches
// the pool or builds an image.

type (
	//SymbolInfo is one decoded symbol table entry with its name resolved.
	SymbolInfo struct {
		Name  string
		Value uint32
		Size  uint32
		Shndx uint16
		Info  uint8
	}

	//RelocInfo is one decoded relocation entry of a REL table.
	RelocInfo struct {
		Section string // table the entry came from
		Off     uint32
		Sym     uint32
		Type    uint32
	}
)

// FileSymbols decodes the object's symbol table straight from the file.
func (o *Object) FileSymbols(r io.ReadSeeker) (syms []SymbolInfo, err error) {
	n := o.symbolCount()
	if n == 0 {
		return nil, nil
	}
	strtab, err := o.strings(r)
	if err != nil {
		return nil, err
	}
	st := o.Sections[o.symtab]
	raw := make([]elf.Sym32, n)
	if _, err = r.Seek(int64(st.Off), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIO, st.Name, err)
	}
	if err = binary.Read(r, binary.LittleEndian, raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIO, st.Name, err)
	}
	for _, s := range raw {
		syms = append(syms, SymbolInfo{
			Name:  cstring(strtab, s.Name),
			Value: s.Value,
			Size:  s.Size,
			Shndx: s.Shndx,
			Info:  s.Info,
		})
	}
	return syms, nil
}

// FileRelocs decodes every REL table straight from the file.
func (o *Object) FileRelocs(r io.ReadSeeker) (rels []RelocInfo, err error) {
	for _, s := range o.Sections {
		if elf.SectionType(s.Type) != elf.SHT_REL {
			continue
		}
		raw := make([]elf.Rel32, s.Size/relSize)
		if _, err = r.Seek(int64(s.Off), io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrIO, s.Name, err)
		}
		if err = binary.Read(r, binary.LittleEndian, raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrIO, s.Name, err)
		}
		for _, e := range raw {
			rels = append(rels, RelocInfo{
				Section: s.Name,
				Off:     e.Off,
				Sym:     elf.R_SYM32(e.Info),
				Type:    elf.R_TYPE32(e.Info),
			})
		}
	}
	return rels, nil
}
