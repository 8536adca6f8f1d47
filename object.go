package relo

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
)

// Section classification. Only ELF32 little-endian relocatable objects are
// consumed; the section header's sh_addr is left untouched and the computed
// placement lives in the separate load field.

type (
	//Section is one section header of an object plus loader-computed state.
	Section struct {
		elf.Section32
		Name string
		load uint32 // offset inside the image once placed
		kind kind
	}

	//Object is the transient view of one relocatable file during a load. It
	//lives until the image is populated and the symbols resolved; only the
	//image survives on the Module.
	Object struct {
		Header   elf.Header32
		Sections []*Section
		symtab   int // section index of .symtab, 0 if absent
	}

	kind uint8
)

const (
	kindSkip kind = iota
	kindCode      // PROGBITS .text / .data
	kindZero      // NOBITS, space only
	kindSyms      // SHT_SYMTAB
	kindRel       // REL table for a code/data section
)

const symSize = 16 // Elf32_Sym
const relSize = 8  // Elf32_Rel

// verifyObject checks the four magic bytes and the object type, nothing
// else. Format drift beyond that is accepted as-is.
func verifyObject(hdr *elf.Header32, name string) error {
	if hdr.Ident[0] != elf.ELFMAG[0] ||
		hdr.Ident[1] != elf.ELFMAG[1] ||
		hdr.Ident[2] != elf.ELFMAG[2] ||
		hdr.Ident[3] != elf.ELFMAG[3] {
		return fmt.Errorf("%w: %s: bad magic", ErrBadFormat, name)
	}
	if elf.Type(hdr.Type) != elf.ET_REL {
		return fmt.Errorf("%w: %s: type %s", ErrBadFormat, name, elf.Type(hdr.Type))
	}
	return nil
}

// ReadObject reads the ELF header, the section header table and the section
// name string table, and classifies every section.
func ReadObject(r io.ReadSeeker, name string) (o *Object, err error) {
	o = new(Object)
	if _, err = r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIO, name, err)
	}
	if err = binary.Read(r, binary.LittleEndian, &o.Header); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIO, name, err)
	}
	if err = verifyObject(&o.Header, name); err != nil {
		return nil, err
	}

	raw := make([]elf.Section32, o.Header.Shnum)
	if _, err = r.Seek(int64(o.Header.Shoff), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIO, name, err)
	}
	if err = binary.Read(r, binary.LittleEndian, raw); err != nil {
		return nil, fmt.Errorf("%w: %s: section headers: %v", ErrIO, name, err)
	}
	if int(o.Header.Shstrndx) >= len(raw) {
		return nil, fmt.Errorf("%w: %s: shstrndx %d out of range", ErrBadFormat, name, o.Header.Shstrndx)
	}
	shstrtab, err := readAt(r, raw[o.Header.Shstrndx].Off, raw[o.Header.Shstrndx].Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: shstrtab: %v", ErrIO, name, err)
	}

	o.Sections = make([]*Section, len(raw))
	for i := range raw {
		s := &Section{Section32: raw[i], Name: cstring(shstrtab, raw[i].Name)}
		s.kind = classify(s)
		if s.kind == kindSyms {
			o.symtab = i
		}
		o.Sections[i] = s
	}
	return o, nil
}

// classify decides whether a section contributes to the image. PROGBITS and
// relocation tables are further narrowed by exact name: only the code and
// data sections (and their REL tables) participate.
func classify(s *Section) kind {
	switch elf.SectionType(s.Type) {
	case elf.SHT_PROGBITS:
		if s.Name == ".text" || s.Name == ".data" {
			return kindCode
		}
	case elf.SHT_NOBITS:
		return kindZero
	case elf.SHT_SYMTAB:
		return kindSyms
	case elf.SHT_REL:
		if s.Name == ".rel.text" || s.Name == ".rel.data" {
			return kindRel
		}
	}
	return kindSkip
}

// imageSize sums the footprint of every included section.
func (o *Object) imageSize() (total uint32) {
	for _, s := range o.Sections {
		if s.kind != kindSkip {
			total += s.Size
		}
	}
	return
}

// loadImage places every included section, in file order, into one owned
// zero-initialized buffer. NOBITS sections reserve space without a copy.
// Each placed section records its offset in the load field.
func (o *Object) loadImage(r io.ReadSeeker, image []byte) error {
	var cursor uint32
	for _, s := range o.Sections {
		if s.kind == kindSkip {
			continue
		}
		s.load = cursor
		if s.kind != kindZero && s.Size > 0 {
			if _, err := r.Seek(int64(s.Off), io.SeekStart); err != nil {
				return fmt.Errorf("%w: section %s: %v", ErrIO, s.Name, err)
			}
			if _, err := io.ReadFull(r, image[cursor:cursor+s.Size]); err != nil {
				return fmt.Errorf("%w: section %s: %v", ErrIO, s.Name, err)
			}
		}
		cursor += s.Size
	}
	return nil
}

// symbolCount of the retained symbol table, zero when the object has none.
func (o *Object) symbolCount() int {
	if o.symtab == 0 {
		return 0
	}
	return int(o.Sections[o.symtab].Size / symSize)
}

// symbolAt decodes entry i of the in-image symbol table.
func (o *Object) symbolAt(image []byte, i int) (sym elf.Sym32) {
	off := o.Sections[o.symtab].load + uint32(i*symSize)
	_ = binary.Read(bytes.NewReader(image[off:off+symSize]), binary.LittleEndian, &sym)
	return
}

// setSymbolValue patches st_value of entry i inside the image; this is the
// only in-image mutation outside relocation.
func (o *Object) setSymbolValue(image []byte, i int, value uint32) {
	off := o.Sections[o.symtab].load + uint32(i*symSize)
	binary.LittleEndian.PutUint32(image[off+4:], value)
}

// strings reads the string table section backing the symbol table.
func (o *Object) strings(r io.ReadSeeker) ([]byte, error) {
	link := o.Sections[o.symtab].Link
	if int(link) >= len(o.Sections) {
		return nil, fmt.Errorf("%w: symtab string table index %d out of range", ErrBadFormat, link)
	}
	strs := o.Sections[link]
	b, err := readAt(r, strs.Off, strs.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: section %s: %v", ErrIO, strs.Name, err)
	}
	return b, nil
}

func readAt(r io.ReadSeeker, off, size uint32) ([]byte, error) {
	b := make([]byte, size)
	if _, err := r.Seek(int64(off), io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// cstring extracts the NUL-terminated string at off.
func cstring(table []byte, off uint32) string {
	if off >= uint32(len(table)) {
		return ""
	}
	end := bytes.IndexByte(table[off:], 0)
	if end < 0 {
		return string(table[off:])
	}
	return string(table[off : off+uint32(end)])
}
