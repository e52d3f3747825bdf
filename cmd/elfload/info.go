package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	elfcontext "github.com/grafana/elfload/pkg/context"
	"github.com/grafana/elfload/pkg/elf"
)

func info(ctx context.Context, path string) error {
	f, err := elf.Open(path)
	if err != nil {
		return err
	}
	writeInfo(elfcontext.Output(ctx), f)
	return nil
}

func writeInfo(out io.Writer, f *elf.File) {
	fmt.Fprintln(out, "Type:", f.Type)
	fmt.Fprintln(out, "Machine:", f.Machine)
	fmt.Fprintln(out, "Entry point:", f.Entry)
	fmt.Fprintf(out, "Program headers: %d at offset %v, %d bytes each\n", f.PhNum, f.PhOff, f.PhEntSize)
	fmt.Fprintf(out, "Section headers: %d at offset %v (not parsed)\n", f.ShNum, f.ShOff)

	loadable := f.Loadable()
	memTotal := lo.SumBy(loadable, func(p *elf.Prog) uint64 { return uint64(p.Memsz) })
	fmt.Fprintf(out, "Loadable segments: %d, %s in memory\n", len(loadable), humanize.IBytes(memTotal))

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "Type", "Flags", "File range", "Mem range", "Align", "File size", "Mem size"})
	table.AppendBulk(lo.Map(f.Progs, func(p *elf.Prog, i int) []string {
		return []string{
			strconv.Itoa(i),
			p.Type.String(),
			p.Flags.String(),
			p.FileRange().String(),
			p.MemRange().String(),
			fmt.Sprintf("%#x", uint64(p.Align)),
			humanize.IBytes(uint64(p.Filesz)),
			humanize.IBytes(uint64(p.Memsz)),
		}
	}))
	table.Render()

	dyn := f.Dynamic()
	if len(dyn) == 0 {
		return
	}
	fmt.Fprintln(out, "Dynamic entries:")
	table = tablewriter.NewWriter(out)
	table.SetHeader([]string{"Tag", "Value"})
	for _, e := range dyn {
		table.Append([]string{e.Tag.String(), e.Val.String()})
	}
	table.Render()
}
