/*
Package relo is a minimal runtime link-editor for ELF32 relocatable objects
(ET_REL), built for constrained pre-userland environments: a fixed-capacity
descriptor pool instead of an open-ended allocator, one owned image buffer
per module, and a single-writer registry.

# Underwater

 1. A load walks the section header table, keeps only the code, data,
    uninitialized, symbol-table and code/data REL sections, and packs them
    into one zero-initialized image in file order.
 2. Symbol resolution rewrites the in-image symbol table: externals come
    from a pre-built master table, internals are rebased to their owning
    section's load offset, absolutes stay put.
 3. Relocation applies R_386_32 (S+A) and R_386_PC32 (S+A-P) with unsigned
    32-bit wraparound, bounds-checked against the image. Anything else
    fails the load outright.

# Notes

 1. The Loader is guarded by one mutex; there is no sharding and no
    suspension point inside a load.
 2. A failed load leaves no registry entry behind. A name mid-load that is
    requested again is a recursive link and is refused.
 3. Callers hold generation-checked Refs, never raw descriptors; a Ref
    outliving its module's release is rejected, not misdirected to the
    slot's next occupant.
 4. RELA tables are recognized but never applied.

# Inspect tool

The inspect command dumps sections, symbols and relocation tables of an
object file, or performs a full load against an nm-style symbol listing:

	go install github.com/ZenLiuCN/relo/inspect@latest
	inspect sections mod.o
	inspect load -s syms.nm mod.o

# Samples

See the package tests.
*/
package relo
