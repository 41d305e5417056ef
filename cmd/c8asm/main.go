package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gochip8/pkg/asm"
)

func main() {
	inPath := flag.String("in", "", "input assembly file path")
	outPath := flag.String("out", "", "output ROM path (default: input with .ch8 extension)")
	showMap := flag.Bool("map", false, "print the address to source line map")
	flag.Parse()

	if *inPath == "" && flag.NArg() > 0 {
		*inPath = flag.Arg(0)
	}
	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in <file.asm>")
		flag.Usage()
		os.Exit(2)
	}

	source, err := os.ReadFile(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read input file %q: %v\n", *inPath, err)
		os.Exit(1)
	}

	code, sourceMap, err := asm.Assemble(string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "assembly failed: %v\n", err)
		os.Exit(1)
	}

	output := *outPath
	if output == "" {
		output = defaultOutputPath(*inPath)
	}
	if err := os.WriteFile(output, code, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write ROM %q: %v\n", output, err)
		os.Exit(1)
	}

	fmt.Printf("assembled %d bytes -> %s\n", len(code), output)
	if *showMap {
		writeSourceMap(os.Stdout, sourceMap)
	}
}

func defaultOutputPath(inPath string) string {
	ext := filepath.Ext(inPath)
	if ext == "" {
		return inPath + ".ch8"
	}
	return strings.TrimSuffix(inPath, ext) + ".ch8"
}

func writeSourceMap(w io.Writer, sourceMap map[uint16]int) {
	addrs := make([]int, 0, len(sourceMap))
	for addr := range sourceMap {
		addrs = append(addrs, int(addr))
	}
	sort.Ints(addrs)
	for _, addr := range addrs {
		fmt.Fprintf(w, "0x%03X  line %d\n", addr, sourceMap[uint16(addr)])
	}
}
