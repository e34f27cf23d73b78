package main

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/zeozeozeo/gopatmos/simulator"
)

// Loads a flat binary image into memory at its load address. The image
// is expected to carry the method size words in front of each method,
// as emitted by the linker
func loadImage(mem simulator.Memory, path string, addr uint32) (uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrap(err, "reading image")
	}
	if len(data) == 0 {
		return 0, errors.Errorf("image %q is empty", path)
	}
	mem.WritePeek(addr, data)
	return uint32(len(data)), nil
}

// Loads a symbol file with one `address size name` triple per line.
// Empty lines and lines starting with '#' are skipped
func loadSymbols(path string) (*simulator.SymbolMap, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening symbol file")
	}
	defer file.Close()

	symbols := simulator.NewSymbolMap()
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 3 {
			return nil, errors.Errorf("%s:%d: expected `address size name`", path, line)
		}
		addr, err := strconv.ParseUint(fields[0], 0, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: bad address", path, line)
		}
		size, err := strconv.ParseUint(fields[1], 0, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: bad size", path, line)
		}
		symbols.Add(simulator.SymbolInfo{
			Address: uint32(addr),
			Size:    uint32(size),
			Name:    fields[2],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading symbol file")
	}
	symbols.Sort()
	return symbols, nil
}
