package simulator

import (
	"fmt"
	"sort"
	"strings"
)

// A single symbol covering an address range. Symbols of size zero mark
// basic blocks inside an enclosing function symbol
type SymbolInfo struct {
	Address uint32
	Size    uint32
	Name    string
}

// A read-only mapping from addresses to symbol names, used only for
// disassembly and trace formatting
type SymbolMap struct {
	symbols []SymbolInfo
	sorted  bool
}

func NewSymbolMap() *SymbolMap {
	return &SymbolMap{sorted: true}
}

// Adds a symbol to the map. Sort must be called before lookups
func (m *SymbolMap) Add(sym SymbolInfo) {
	m.symbols = append(m.symbols, sym)
	m.sorted = false
}

func (m *SymbolMap) Sort() {
	sort.Slice(m.symbols, func(i, j int) bool {
		return m.symbols[i].Address < m.symbols[j].Address
	})
	m.sorted = true
}

// Returns whether a symbol starts exactly at `addr`
func (m *SymbolMap) Contains(addr uint32) bool {
	if m == nil {
		return false
	}
	for i := range m.symbols {
		if m.symbols[i].Address == addr {
			return true
		}
	}
	return false
}

// Finds a printable name for the address, of the form
// `<function:block + 0xoffset>`. Returns the empty string when no
// symbol covers the address
func (m *SymbolMap) Find(addr uint32) string {
	if m == nil || len(m.symbols) == 0 {
		return ""
	}
	if !m.sorted {
		panicFmt("symbols: lookup before sort")
	}

	var enclosing, bb *SymbolInfo
	for i := range m.symbols {
		s := &m.symbols[i]
		if s.Size != 0 && s.Address <= addr && addr <= s.Address+s.Size {
			enclosing = s
		} else if enclosing != nil && s.Address <= addr && s.Size == 0 {
			bb = s
		} else if addr < s.Address {
			break
		}
	}

	if enclosing == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(enclosing.Name)
	offset := addr - enclosing.Address
	if bb != nil {
		sb.WriteByte(':')
		sb.WriteString(bb.Name)
		offset = addr - bb.Address
	}
	if offset != 0 {
		fmt.Fprintf(&sb, " + 0x%x", offset)
	}
	sb.WriteByte('>')
	return sb.String()
}
