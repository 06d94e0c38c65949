package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"mikuos/kernel/loader"
	"mikuos/usr/bin"
	"os"
	"path/filepath"
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[mkimage] error: %s\n", err.Error())
	os.Exit(1)
}

// writeImages stores every built-in program as <dir>/<name>.elf.
func writeImages(dir string, images []bin.Image) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, img := range images {
		if err := os.WriteFile(filepath.Join(dir, img.Name+".elf"), img.ELF, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// listImages prints the entry point and loadable segments of each program.
func listImages(w io.Writer, images []bin.Image) error {
	for _, img := range images {
		parsed, err := loader.Parse(img.ELF)
		if err != nil {
			return fmt.Errorf("%s: %w", img.Name, err)
		}

		fmt.Fprintf(w, "%s: entry 0x%x, %d bytes\n", img.Name, parsed.Entry, len(img.ELF))
		for _, seg := range parsed.Segments {
			fmt.Fprintf(w, "  [0x%x, 0x%x) %s filesz %d\n", seg.VirtAddr, seg.End(), seg.Flags, len(seg.Data))
		}
	}
	return nil
}

func runTool(args []string) error {
	fs := flag.NewFlagSet("mkimage", flag.ContinueOnError)
	out := fs.String("out", "apps", "the directory the write command stores images in")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, "mkimage: assemble the built-in user programs\n\n")
		fmt.Fprint(os.Stderr, "Usage: mkimage [options] write|list\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return errors.New("missing command")
	}

	images, err := bin.Images()
	if err != nil {
		return err
	}

	switch cmd := fs.Arg(0); cmd {
	case "write":
		return writeImages(*out, images)
	case "list":
		return listImages(os.Stdout, images)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func main() {
	if err := runTool(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		exit(err)
	}
}
