package relo

import (
	"debug/elf"
	"fmt"
	"io"

	"github.com/go-kit/log/level"
)

// resolveSymbols finalizes every entry of the in-image symbol table before
// relocation reads it. Entry 0 is the reserved null symbol and is skipped.
//
// Classification follows st_shndx:
//   - SHN_UNDEF: external; the name must hit the master table or the whole
//     load fails.
//   - SHN_ABS: value already final.
//   - anything else: defined internal; the value becomes the load offset of
//     the owning section inside the image.
//
// Named symbols with a final value are retained on the module for Lookup.
func (l *Loader) resolveSymbols(r io.ReadSeeker, o *Object, m *Module) error {
	n := o.symbolCount()
	if n == 0 {
		return nil
	}
	strtab, err := o.strings(r)
	if err != nil {
		return err
	}
	level.Debug(l.logger).Log("msg", "resolving symbols", "module", m.name, "total", n)

	m.syms = make(map[string]uint32, n)
	for i := 1; i < n; i++ {
		sym := o.symbolAt(m.image, i)
		name := cstring(strtab, sym.Name)
		switch elf.SectionIndex(sym.Shndx) {
		case elf.SHN_UNDEF:
			value, ok := l.master.Lookup(name)
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnresolvedSymbol, name)
			}
			o.setSymbolValue(m.image, i, value)
			sym.Value = value
		case elf.SHN_ABS:
			// value is final already
		default:
			if int(sym.Shndx) >= len(o.Sections) {
				return fmt.Errorf("%w: symbol %s section index %d out of range", ErrBadFormat, name, sym.Shndx)
			}
			sym.Value = o.Sections[sym.Shndx].load
			o.setSymbolValue(m.image, i, sym.Value)
		}
		if name != "" {
			m.syms[name] = sym.Value
		}
	}
	return nil
}
