package relo

import (
	"errors"
)

const (
	// NameMax is the hard upper bound (exclusive) for a module name.
	NameMax = 128
	// PoolMax is the hard ceiling of concurrently tracked modules.
	PoolMax = 64
	// requestMax bounds the raw name handed to the path search.
	requestMax = 256
)

type (
	//Flag is the status bit set of a Module descriptor.
	Flag uint32

	//Module is the bookkeeping descriptor for one loaded object.
	//
	//A descriptor lives in exactly one of the loader's two lists: the active
	//registry or the free list. Callers never hold a *Module directly; they
	//hold a Ref, which stays valid until the descriptor is released and its
	//slot recycled.
	Module struct {
		name  string
		flags Flag
		image []byte
		exec  bool
		refs  int
		gen   uint32            // bumped on release; stale Refs fail the check
		syms  map[string]uint32 // named defined symbols, final values
		next  *Module
	}

	//Ref is a generation-checked handle to a loaded Module. The zero Ref is
	//invalid.
	Ref struct {
		mod *Module
		gen uint32
	}
)

const (
	//FlagLinked marks a fully resolved and relocated module.
	FlagLinked Flag = 1 << iota
	//FlagError marks a module whose load failed; lookups fail fast.
	FlagError
	//FlagPrelinked is set on every fresh descriptor; the base entry carries
	//it too.
	FlagPrelinked
)

var (
	// ErrNameTooLong occurs when a module name is at or above NameMax.
	ErrNameTooLong = errors.New("module name too long")
	// ErrPoolExhausted occurs when all PoolMax descriptor slots are live.
	ErrPoolExhausted = errors.New("module pool exhausted")
	// ErrNotFound occurs when the path search yields no readable object.
	ErrNotFound = errors.New("module object not found")
	// ErrBadFormat occurs on a magic or object-type mismatch.
	ErrBadFormat = errors.New("not a relocatable ELF object")
	// ErrIO occurs on a seek or read failure mid-load.
	ErrIO = errors.New("object read failed")
	// ErrNoMemory occurs when the image mapping cannot be established.
	ErrNoMemory = errors.New("image allocation failed")
	// ErrUnresolvedSymbol occurs when an external symbol misses the master
	// table; it aborts the whole load.
	ErrUnresolvedSymbol = errors.New("unresolved symbol")
	// ErrUnsupportedReloc occurs on a relocation kind this loader does not
	// apply; it aborts the whole load.
	ErrUnsupportedReloc = errors.New("unsupported relocation type")
	// ErrRelocOutOfBounds occurs when a patch target lies outside the image.
	ErrRelocOutOfBounds = errors.New("relocation target outside image")
	// ErrNotRegistered occurs when releasing a Ref that is stale or never
	// was in the registry.
	ErrNotRegistered = errors.New("module not registered")
	// ErrCyclic occurs when a name still loading is requested again.
	ErrCyclic = errors.New("recursive module load")
	// ErrFailed occurs when requesting a module marked FlagError.
	ErrFailed = errors.New("module previously failed to load")
)

// Valid reports whether the handle still points at the descriptor it was
// issued for.
func (r Ref) Valid() bool {
	return r.mod != nil && r.mod.gen == r.gen
}

// Name of the referenced module, empty for an invalid Ref.
func (r Ref) Name() string {
	if !r.Valid() {
		return ""
	}
	return r.mod.name
}

// Image is the module's owned, relocated byte buffer. The caller must not
// retain it past Release.
func (r Ref) Image() []byte {
	if !r.Valid() {
		return nil
	}
	return r.mod.image
}

// Flags of the referenced module.
func (r Ref) Flags() Flag {
	if !r.Valid() {
		return 0
	}
	return r.mod.flags
}

// Lookup a named defined symbol of this module, returning its resolved value.
func (r Ref) Lookup(name string) (value uint32, ok bool) {
	if !r.Valid() {
		return 0, false
	}
	value, ok = r.mod.syms[name]
	return
}

// Linked reports whether the module reached the LINKED state.
func (m *Module) linked() bool { return m.flags&FlagLinked != 0 }

// fail moves a descriptor to the terminal error state; subsequent Find calls
// on its name return ErrFailed.
func (m *Module) fail() { m.flags |= FlagError }
