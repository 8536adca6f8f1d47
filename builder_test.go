package relo

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"io"
	"os"
	"testing"
)

// In-memory ELF32 relocatable object builder for tests. Layout mirrors what
// a compiler emits: header, section payloads in declaration order, the
// section name string table, then the section header table.

type (
	testObject struct {
		typ  elf.Type
		secs []*testSection
	}
	testSection struct {
		name string
		typ  elf.SectionType
		data []byte
		size uint32 // NOBITS footprint
		link uint32
		info uint32
	}
	testSym struct {
		name  string
		value uint32
		shndx uint16
	}
)

func newTestObject() *testObject {
	b := &testObject{typ: elf.ET_REL}
	b.secs = append(b.secs, &testSection{}) // null section 0
	return b
}

// section appends one section and returns its index.
func (b *testObject) section(s *testSection) uint32 {
	b.secs = append(b.secs, s)
	return uint32(len(b.secs) - 1)
}

func (b *testObject) text(data []byte) uint32 {
	return b.section(&testSection{name: ".text", typ: elf.SHT_PROGBITS, data: data})
}

func (b *testObject) data(data []byte) uint32 {
	return b.section(&testSection{name: ".data", typ: elf.SHT_PROGBITS, data: data})
}

func (b *testObject) bss(size uint32) uint32 {
	return b.section(&testSection{name: ".bss", typ: elf.SHT_NOBITS, size: size})
}

// symtab builds .strtab and .symtab from entries; the implicit null entry 0
// is added here. Returns the symtab section index.
func (b *testObject) symtab(syms []testSym) uint32 {
	strs := []byte{0}
	table := new(bytes.Buffer)
	_ = binary.Write(table, binary.LittleEndian, elf.Sym32{})
	for _, s := range syms {
		off := uint32(len(strs))
		if s.name == "" {
			off = 0
		} else {
			strs = append(strs, s.name...)
			strs = append(strs, 0)
		}
		_ = binary.Write(table, binary.LittleEndian, elf.Sym32{
			Name:  off,
			Value: s.value,
			Shndx: s.shndx,
		})
	}
	strNdx := b.section(&testSection{name: ".strtab", typ: elf.SHT_STRTAB, data: strs})
	return b.section(&testSection{
		name: ".symtab", typ: elf.SHT_SYMTAB,
		data: table.Bytes(), link: strNdx,
	})
}

// rel appends a REL table patching the section at target.
func (b *testObject) rel(name string, target uint32, rels []elf.Rel32) uint32 {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, rels)
	return b.section(&testSection{name: name, typ: elf.SHT_REL, data: buf.Bytes(), info: target})
}

func relInfo(sym uint32, typ elf.R_386) uint32 { return elf.R_INFO32(sym, uint32(typ)) }

// bytes assembles the object file.
func (b *testObject) bytes(t *testing.T) []byte {
	t.Helper()
	shstr := []byte{0}
	nameOff := make([]uint32, len(b.secs)+1)
	for i, s := range b.secs {
		if s.name == "" {
			continue
		}
		nameOff[i] = uint32(len(shstr))
		shstr = append(shstr, s.name...)
		shstr = append(shstr, 0)
	}
	shstrNdx := len(b.secs)
	nameOff[shstrNdx] = uint32(len(shstr))
	shstr = append(shstr, ".shstrtab"...)
	shstr = append(shstr, 0)

	const ehSize, shSize = 52, 40
	off := uint32(ehSize)
	offs := make([]uint32, len(b.secs)+1)
	for i, s := range b.secs {
		if s.typ == elf.SHT_NOBITS || len(s.data) == 0 {
			offs[i] = off
			continue
		}
		offs[i] = off
		off += uint32(len(s.data))
	}
	offs[shstrNdx] = off
	off += uint32(len(shstr))
	shoff := off

	hdr := elf.Header32{
		Type:      uint16(b.typ),
		Machine:   uint16(elf.EM_386),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     shoff,
		Ehsize:    ehSize,
		Shentsize: shSize,
		Shnum:     uint16(len(b.secs) + 1),
		Shstrndx:  uint16(shstrNdx),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	out := new(bytes.Buffer)
	_ = binary.Write(out, binary.LittleEndian, hdr)
	for _, s := range b.secs {
		if s.typ != elf.SHT_NOBITS {
			out.Write(s.data)
		}
	}
	out.Write(shstr)
	for i, s := range b.secs {
		size := uint32(len(s.data))
		if s.typ == elf.SHT_NOBITS {
			size = s.size
		}
		_ = binary.Write(out, binary.LittleEndian, elf.Section32{
			Name: nameOff[i],
			Type: uint32(s.typ),
			Off:  offs[i],
			Size: size,
			Link: s.link,
			Info: s.info,
		})
	}
	_ = binary.Write(out, binary.LittleEndian, elf.Section32{
		Name: nameOff[shstrNdx],
		Type: uint32(elf.SHT_STRTAB),
		Off:  offs[shstrNdx],
		Size: uint32(len(shstr)),
	})
	return out.Bytes()
}

// memFinder serves objects from memory and counts open attempts.
type memFinder struct {
	objects  map[string][]byte
	opens    map[string]int
	attempts int
}

func newMemFinder() *memFinder {
	return &memFinder{objects: map[string][]byte{}, opens: map[string]int{}}
}

func (f *memFinder) put(name string, b []byte) { f.objects[name] = b }

func (f *memFinder) Open(name string) (io.ReadSeekCloser, error) {
	f.attempts++
	b, ok := f.objects[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	f.opens[name]++
	return nopCloser{bytes.NewReader(b)}, nil
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }
