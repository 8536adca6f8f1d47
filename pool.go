package relo

import "fmt"

// The descriptor pool is a fixed array of PoolMax slots. Slots carved from
// the array are never returned to it; released descriptors go to the free
// list and are recycled before a new slot is carved. The registry always
// holds the base entry first, so release can assume a non-nil predecessor.

// allocate a zeroed descriptor for name. Linkage is cleared; the caller
// registers it once the load is underway.
func (l *Loader) allocate(name string) (m *Module, err error) {
	if len(name) >= NameMax {
		return nil, fmt.Errorf("%w: %q", ErrNameTooLong, name)
	}
	if l.free == nil {
		if l.count == PoolMax {
			return nil, fmt.Errorf("%w: loading %q", ErrPoolExhausted, name)
		}
		l.free = &l.pool[l.count]
		l.count++
		l.free.next = nil
	}
	m = l.free
	l.free = m.next

	*m = Module{name: name, flags: FlagPrelinked, gen: m.gen}
	return m, nil
}

// register appends m to the active registry, making the in-progress load
// visible to lookups (and to the recursive-load guard).
func (l *Loader) register(m *Module) {
	tail := l.registry
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = m
	m.next = nil
}

// release splices m out of the registry and pushes it onto the free list.
// The image mapping is dropped here; the slot's remaining state is cleared
// on the next allocate.
func (l *Loader) release(m *Module) error {
	prev := l.registry // base entry, never the target
	for trav := prev.next; trav != nil; trav = trav.next {
		if trav == m {
			prev.next = m.next
			if m.image != nil {
				freeImage(m.image, m.exec)
				m.image = nil
			}
			m.gen++
			m.next = l.free
			l.free = m
			return nil
		}
		prev = trav
	}
	return fmt.Errorf("%w: %q", ErrNotRegistered, m.name)
}

// lookup scans the active registry for name, skipping the base entry.
func (l *Loader) lookup(name string) *Module {
	for m := l.registry.next; m != nil; m = m.next {
		if m.name == name {
			return m
		}
	}
	return nil
}
