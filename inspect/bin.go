package main

import (
	"debug/elf"
	"fmt"
	"log"
	"os"

	"github.com/ZenLiuCN/fn"
	. "github.com/ZenLiuCN/relo"
	"github.com/davecgh/go-spew/spew"
	kitlog "github.com/go-kit/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Usage = "relocatable object inspector"
	app.Name = "Inspect"
	app.Description = "dump sections, symbols and relocations of ELF relocatable objects, or load them against a symbol listing"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}},
	}
	app.Args = true
	app.Commands = []*cli.Command{
		{Name: "sections",
			Action: sections,
			Usage:  "display section headers of objfile",
			Args:   true,
		},
		{Name: "symbols",
			Action: symbols,
			Usage:  "display the symbol table of objfile",
			Args:   true,
		},
		{Name: "relocs",
			Action: relocs,
			Usage:  "display relocation entries of objfile",
			Args:   true,
		},
		{Name: "load",
			Action: load,
			Usage:  "fully load objfiles against an nm-style symbol listing and report the layout",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "syms", Aliases: []string{"s"}, Usage: "nm-style master symbol listing"},
				&cli.StringSliceFlag{Name: "path", Aliases: []string{"p"}, Usage: "object search directories"},
				&cli.BoolFlag{Name: "exec", Aliases: []string{"x"}, Usage: "map images executable"},
			},
			Args: true,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("failure %s", err)
	}
}

func sections(ctx *cli.Context) (err error) {
	for _, s := range ctx.Args().Slice() {
		var f *os.File
		if f, err = os.Open(s); err != nil {
			return
		}
		var o *Object
		o, err = ReadObject(f, s)
		fn.IgnoreClose(f)
		if err != nil {
			return
		}
		fmt.Printf("%s: %d sections\n", s, len(o.Sections))
		for i, sec := range o.Sections {
			fmt.Printf("  [%2d] %-16s %-12s size=%#x off=%#x link=%d info=%d\n",
				i, sec.Name, elf.SectionType(sec.Type), sec.Size, sec.Off, sec.Link, sec.Info)
		}
	}
	return
}

func symbols(ctx *cli.Context) (err error) {
	for _, s := range ctx.Args().Slice() {
		var f *os.File
		if f, err = os.Open(s); err != nil {
			return
		}
		var o *Object
		var syms []SymbolInfo
		if o, err = ReadObject(f, s); err == nil {
			syms, err = o.FileSymbols(f)
		}
		fn.IgnoreClose(f)
		if err != nil {
			return
		}
		fmt.Printf("%s: %d symbols\n", s, len(syms))
		for i, sym := range syms {
			fmt.Printf("  [%2d] %08x %-8s shndx=%d %s\n",
				i, sym.Value, elf.ST_TYPE(sym.Info), sym.Shndx, sym.Name)
		}
	}
	return
}

func relocs(ctx *cli.Context) (err error) {
	for _, s := range ctx.Args().Slice() {
		var f *os.File
		if f, err = os.Open(s); err != nil {
			return
		}
		var o *Object
		var rels []RelocInfo
		if o, err = ReadObject(f, s); err == nil {
			rels, err = o.FileRelocs(f)
		}
		fn.IgnoreClose(f)
		if err != nil {
			return
		}
		fmt.Printf("%s: %d relocations\n", s, len(rels))
		for _, r := range rels {
			fmt.Printf("  %-12s off=%#08x sym=%d type=%s\n",
				r.Section, r.Off, r.Sym, elf.R_386(r.Type))
		}
	}
	return
}

func load(ctx *cli.Context) error {
	master := NewSymbols()
	if p := ctx.String("syms"); p != "" {
		var err error
		if master, err = ReadSymbolsFile(p); err != nil {
			return err
		}
	}
	opts := []Option{WithSearchPath(append(ctx.StringSlice("path"), ".")...)}
	if ctx.Bool("debug") {
		opts = append(opts, WithLogger(kitlog.NewLogfmtLogger(os.Stderr)))
	}
	if ctx.Bool("exec") {
		opts = append(opts, WithExecImage())
	}
	loader := New(master, opts...)
	sp := spew.NewDefaultConfig()
	sp.MaxDepth = 3
	for _, name := range ctx.Args().Slice() {
		ref, err := loader.Find(name)
		if err != nil {
			return err
		}
		fmt.Printf("%s: linked, image %d bytes\n", ref.Name(), len(ref.Image()))
	}
	sp.Dump(loader.Modules())
	return nil
}
