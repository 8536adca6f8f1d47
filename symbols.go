package relo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ZenLiuCN/fn"
)

type (
	// Symbols is the master symbol table: every external symbol a loaded
	// module may reference, built once before any load and read-only from
	// then on. Lookup is by exact name.
	Symbols map[string]uint32
)

// NewSymbols create an empty master table.
func NewSymbols() Symbols {
	return make(Symbols)
}

// Register one resolvable symbol. The first registration of a name wins.
func (s Symbols) Register(name string, value uint32) {
	if _, ok := s[name]; !ok {
		s[name] = value
	}
}

// Lookup an external symbol by exact name.
func (s Symbols) Lookup(name string) (value uint32, ok bool) {
	value, ok = s[name]
	return
}

// Names dump the symbol names inside the table.
func (s Symbols) Names() []string {
	return fn.MapKeys(s)
}

// ReadSymbols parses an nm-style listing into a master table: an 8-digit
// hex value, a type letter at column 10, the name from column 12. Lines too
// short to carry a name are skipped.
//
//	0804a010 T write
func ReadSymbols(r io.Reader) (s Symbols, err error) {
	s = NewSymbols()
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		line := scan.Text()
		if len(line) < 12 {
			continue
		}
		value, e := strconv.ParseUint(line[:8], 16, 32)
		if e != nil {
			continue
		}
		name := strings.TrimSpace(line[11:])
		if name == "" {
			continue
		}
		s.Register(name, uint32(value))
	}
	if err = scan.Err(); err != nil {
		return nil, fmt.Errorf("read symbols: %w", err)
	}
	return s, nil
}

// ReadSymbolsFile is ReadSymbols over a file path.
func ReadSymbolsFile(path string) (s Symbols, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fn.IgnoreClose(f)
	return ReadSymbols(f)
}
