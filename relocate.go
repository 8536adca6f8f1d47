package relo

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/go-kit/log/level"
)

// relocate walks the loaded REL tables and patches the image. A table's
// sh_info names the section being patched; each entry's symbol index points
// into the already-resolved symbol table, so this must run after
// resolveSymbols.
//
// Only R_386_32 (S+A) and R_386_PC32 (S+A-P) are applied, with unsigned
// 32-bit wraparound on the patched word. Any other kind fails the whole
// load; a half-relocated image is worse than no image. RELA tables are not
// processed.
func (l *Loader) relocate(o *Object, m *Module) error {
	for i := 1; i < len(o.Sections); i++ {
		s := o.Sections[i]
		switch elf.SectionType(s.Type) {
		case elf.SHT_REL:
			if s.kind != kindRel {
				continue
			}
			if err := l.relocateSection(o, m, s); err != nil {
				return err
			}
		case elf.SHT_RELA:
			level.Debug(l.logger).Log("msg", "skipping RELA section", "module", m.name, "section", s.Name)
		}
	}
	return nil
}

func (l *Loader) relocateSection(o *Object, m *Module, s *Section) error {
	if o.symtab == 0 {
		return fmt.Errorf("%w: %s: relocations without a symbol table", ErrBadFormat, s.Name)
	}
	if int(s.Info) >= len(o.Sections) {
		return fmt.Errorf("%w: %s: patched section index %d out of range", ErrBadFormat, s.Name, s.Info)
	}
	target := o.Sections[s.Info]
	num := int(s.Size / relSize)
	level.Debug(l.logger).Log("msg", "relocating", "module", m.name, "section", s.Name, "entries", num)

	symbols := o.symbolCount()
	for i := 0; i < num; i++ {
		off := s.load + uint32(i*relSize)
		rel := elf.Rel32{
			Off:  binary.LittleEndian.Uint32(m.image[off:]),
			Info: binary.LittleEndian.Uint32(m.image[off+4:]),
		}
		if int(elf.R_SYM32(rel.Info)) >= symbols {
			return fmt.Errorf("%w: %s: symbol index %d out of range", ErrBadFormat, s.Name, elf.R_SYM32(rel.Info))
		}
		sym := o.symbolAt(m.image, int(elf.R_SYM32(rel.Info)))

		where := target.load + rel.Off
		if uint64(where)+4 > uint64(len(m.image)) {
			return fmt.Errorf("%w: %s+%#x", ErrRelocOutOfBounds, target.Name, rel.Off)
		}
		word := binary.LittleEndian.Uint32(m.image[where:])
		switch elf.R_386(elf.R_TYPE32(rel.Info)) {
		case elf.R_386_32: // S+A
			word += sym.Value
		case elf.R_386_PC32: // S+A-P
			word += sym.Value - where
		default:
			return fmt.Errorf("%w: %d", ErrUnsupportedReloc, elf.R_TYPE32(rel.Info))
		}
		binary.LittleEndian.PutUint32(m.image[where:], word)
	}
	return nil
}
