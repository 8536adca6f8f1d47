package relo

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ZenLiuCN/fn"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/xyproto/env/v2"
)

type (
	//Finder locates the object file backing a module name and returns an
	//open, readable handle. The loader treats it as opaque.
	Finder interface {
		Open(name string) (io.ReadSeekCloser, error)
	}

	//Loader owns the module pool, the active registry and the master symbol
	//table. One mutex guards the entry points; the data model has no natural
	//sharding, so all mutation is single-writer.
	//
	//Use Steps:
	//
	//	1. Build a master Symbols table (ReadSymbolsFile or Register).
	//	2. New to create the loader.
	//	3. [Loader.Find] to fetch or load modules by name.
	//	4. [Loader.Release] each Ref when done with it.
	Loader struct {
		mu     sync.Mutex
		logger log.Logger
		master Symbols
		finder Finder
		exec   bool

		base     Module // permanent first registry entry
		registry *Module
		free     *Module
		pool     [PoolMax]Module
		count    int
	}

	//Option configures a Loader at construction.
	Option func(*Loader)

	pathFinder struct {
		dirs []string
	}
)

// EnvSearchPath names the environment variable holding the default
// colon-separated object search path.
const EnvSearchPath = "RELO_LIBRARY_PATH"

// WithLogger sets the trace logger; the default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithFinder replaces the path-search collaborator.
func WithFinder(f Finder) Option {
	return func(l *Loader) { l.finder = f }
}

// WithSearchPath sets the directory list probed for bare module names.
func WithSearchPath(dirs ...string) Option {
	return func(l *Loader) { l.finder = &pathFinder{dirs: dirs} }
}

// WithExecImage places module images in executable memory where the
// platform supports it.
func WithExecImage() Option {
	return func(l *Loader) { l.exec = true }
}

// New create a loader over the given master symbol table. The registry
// starts with the permanent base entry, so release always has a
// predecessor to splice from.
func New(master Symbols, opts ...Option) *Loader {
	l := new(Loader)
	l.logger = log.NewNopLogger()
	l.master = master
	l.finder = DefaultFinder()
	l.base = Module{name: "core", flags: FlagLinked | FlagPrelinked, refs: 1}
	l.registry = &l.base
	for _, o := range opts {
		o(l)
	}
	return l
}

// Master exposes the read-only master symbol table.
func (l *Loader) Master() Symbols { return l.master }

// Modules lists the names currently in the active registry, base entry
// excluded.
func (l *Loader) Modules() (names []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for m := l.registry.next; m != nil; m = m.next {
		names = append(names, m.name)
	}
	return
}

// Find returns the module for name, loading it on a registry miss. A hit on
// a LINKED module takes another reference and performs no I/O. A hit on a
// module still mid-load means the load re-entered itself; there is no
// dependency graph here, only this guard.
func (l *Loader) Find(name string) (Ref, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m := l.lookup(name); m != nil {
		switch {
		case m.flags&FlagError != 0:
			return Ref{}, fmt.Errorf("%w: %s", ErrFailed, name)
		case m.linked():
			m.refs++
			return Ref{mod: m, gen: m.gen}, nil
		default:
			return Ref{}, fmt.Errorf("%w: %s", ErrCyclic, name)
		}
	}
	level.Debug(l.logger).Log("msg", "not loaded yet, locating", "module", name)
	return l.load(name)
}

// Release drops one reference. When the count reaches zero the descriptor
// is spliced out of the registry and its slot recycled; a stale Ref fails
// with ErrNotRegistered and cannot touch the slot's new occupant.
func (l *Loader) Release(r Ref) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !r.Valid() {
		return ErrNotRegistered
	}
	m := r.mod
	if m.refs--; m.refs > 0 {
		return nil
	}
	level.Debug(l.logger).Log("msg", "releasing module", "module", m.name)
	return l.release(m)
}

// load runs the full pipeline: open, validate, place sections, resolve,
// relocate. Any stage failure unwinds the partially built descriptor so the
// registry never exposes a half-linked module.
func (l *Loader) load(name string) (Ref, error) {
	if len(name) >= NameMax { // reject before any I/O
		return Ref{}, fmt.Errorf("%w: %q", ErrNameTooLong, name)
	}
	f, err := l.finder.Open(name)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %s: %v", ErrNotFound, name, err)
	}
	defer fn.IgnoreClose(f)

	m, err := l.allocate(name)
	if err != nil {
		return Ref{}, err
	}
	l.register(m)
	if err = l.link(f, m); err != nil {
		level.Error(l.logger).Log("msg", "load failed", "module", name, "err", err)
		_ = l.release(m)
		return Ref{}, err
	}
	m.flags |= FlagLinked
	m.refs = 1
	level.Debug(l.logger).Log("msg", "module linked", "module", name, "image", len(m.image))
	return Ref{mod: m, gen: m.gen}, nil
}

func (l *Loader) link(f io.ReadSeeker, m *Module) (err error) {
	o, err := ReadObject(f, m.name)
	if err != nil {
		return err
	}
	size := o.imageSize()
	level.Debug(l.logger).Log("msg", "sections classified", "module", m.name, "sections", len(o.Sections), "image", size)
	if m.image, err = allocImage(int(size), l.exec); err != nil {
		return err
	}
	m.exec = l.exec
	if err = o.loadImage(f, m.image); err != nil {
		return err
	}
	if err = l.resolveSymbols(f, o, m); err != nil {
		return err
	}
	return l.relocate(o, m)
}

// DefaultFinder probes the directories named by RELO_LIBRARY_PATH, then the
// working directory.
func DefaultFinder() Finder {
	dirs := nonEmpty(strings.Split(env.Str(EnvSearchPath), string(os.PathListSeparator)))
	return &pathFinder{dirs: append(dirs, ".")}
}

func nonEmpty(in []string) (out []string) {
	for _, d := range in {
		if d != "" {
			out = append(out, d)
		}
	}
	return
}

// Open accepts absolute paths directly and otherwise joins name onto each
// search directory in order. Only regular files qualify.
func (p *pathFinder) Open(name string) (io.ReadSeekCloser, error) {
	if name == "" || len(name) > requestMax {
		return nil, fmt.Errorf("invalid module name %q", name)
	}
	if filepath.IsAbs(name) {
		return openRegular(name)
	}
	for _, dir := range p.dirs {
		if f, err := openRegular(filepath.Join(dir, name)); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%q not found in %v", name, p.dirs)
}

func openRegular(path string) (io.ReadSeekCloser, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", path)
	}
	return os.Open(path)
}
