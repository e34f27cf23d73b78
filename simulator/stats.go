package simulator

import (
	"fmt"
	"io"
	"sort"
)

// Prints the instruction statistics, stall cycles and the statistics of
// every cache that keeps them. With `slotStats` the instruction counts
// are broken down per issue slot
func (s *Simulator) PrintStats(w io.Writer, slotStats bool) {
	s.PrintRegisters(w, DF_DEFAULT)

	numSlots := 1
	if slotStats {
		numSlots = NUM_SLOTS
	}

	fmt.Fprintf(w, "\n\nInstruction Statistics:\n   %15s:", "instruction")
	for j := 0; j < numSlots; j++ {
		fmt.Fprintf(w, " %10s %10s %10s", "#fetched", "#retired", "#discarded")
	}
	fmt.Fprintf(w, "\n")

	var totalFetched, totalRetired, totalDiscarded [NUM_SLOTS]uint64
	for id := range Opcodes {
		var fetched, retired, discarded [NUM_SLOTS]uint64
		for j := 0; j < NUM_SLOTS; j++ {
			st := &s.Stats.InstructionStats[j][id]
			k := 0
			if slotStats {
				k = j
			}
			fetched[k] += st.Fetched
			retired[k] += st.Retired
			discarded[k] += st.Discarded
		}

		fmt.Fprintf(w, "   %15s:", Opcodes[id].Name)
		for j := 0; j < numSlots; j++ {
			fmt.Fprintf(w, " %10d %10d %10d", fetched[j], retired[j], discarded[j])
			totalFetched[j] += fetched[j]
			totalRetired[j] += retired[j]
			totalDiscarded[j] += discarded[j]
		}
		fmt.Fprintf(w, "\n")
	}

	fmt.Fprintf(w, "   %15s:", "all")
	for j := 0; j < numSlots; j++ {
		fmt.Fprintf(w, " %10d %10d %10d", totalFetched[j], totalRetired[j], totalDiscarded[j])
	}
	fmt.Fprintf(w, "\n   %15s:", "bubbles")
	var bubbles [NUM_SLOTS]uint64
	for j := 0; j < NUM_SLOTS; j++ {
		k := 0
		if slotStats {
			k = j
		}
		bubbles[k] += s.Stats.BubblesRetired[j]
	}
	for j := 0; j < numSlots; j++ {
		fmt.Fprintf(w, " %10s %10d %10s", "-", bubbles[j], "-")
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "\nStall Cycles:\n")
	for stage := SDR; stage < NUM_STAGES; stage++ {
		fmt.Fprintf(w, "   %s: %d\n", stageNames[stage], s.Stats.StallCycles[stage])
	}

	if mc, ok := s.InstrCache.(*MethodCache); ok {
		mc.PrintStats(w, s.Symbols)
	}
	if dc, ok := s.DataCache.(*LRUDataCache); ok {
		dc.PrintStats(w)
	}
	if sc, ok := s.StackCache.(*BlockStackCache); ok {
		sc.PrintStats(w)
	}
	if m, ok := s.Memory.(*FixedDelayMemory); ok {
		m.PrintStats(w, s.Cycle)
	}
	if m, ok := s.Memory.(*TDMMemory); ok {
		m.PrintStats(w, s.Cycle)
	}
}

// Prints the method cache statistics, including the per-method hit and
// miss counts
func (c *MethodCache) PrintStats(w io.Writer, symbols *SymbolMap) {
	fmt.Fprintf(w, "\n\nMethod Cache Statistics:\n"+
		"                            total        max.\n"+
		"   Blocks Transferred: %10d  %10d\n"+
		"   Bytes Transferred : %10d  %10d\n"+
		"   Cache Hits        : %10d\n"+
		"   Cache Misses      : %10d\n"+
		"   Miss Stall Cycles : %10d\n\n",
		c.Stats.BlocksTransferred, c.Stats.MaxBlocksTransferred,
		c.Stats.BytesTransferred, c.Stats.MaxBytesTransferred,
		c.Stats.Hits, c.Stats.Misses, c.Stats.StallCycles)

	addrs := make([]uint32, 0, len(c.Stats.PerMethod))
	for addr := range c.Stats.PerMethod {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	fmt.Fprintf(w, "       Method:      #hits     #misses\n")
	for _, addr := range addrs {
		st := c.Stats.PerMethod[addr]
		fmt.Fprintf(w, "   0x%08x: %10d  %10d    %s\n", addr, st.Hits, st.Misses,
			symbols.Find(addr))
	}
}

// Prints the data cache statistics
func (c *LRUDataCache) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "\n\nData Cache Statistics:\n"+
		"   Read Hits    : %10d\n"+
		"   Read Misses  : %10d\n"+
		"   Write Hits   : %10d\n"+
		"   Write Misses : %10d\n"+
		"   Evictions    : %10d\n"+
		"   Stall Cycles : %10d\n",
		c.Stats.ReadHits, c.Stats.ReadMisses, c.Stats.WriteHits,
		c.Stats.WriteMisses, c.Stats.Evictions, c.Stats.StallCycles)
}

// Prints the stack cache statistics
func (c *BlockStackCache) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "\n\nStack Cache Statistics:\n"+
		"                           total        max.\n"+
		"   Blocks Spilled   : %10d  %10d\n"+
		"   Blocks Filled    : %10d  %10d\n"+
		"   Blocks Allocated : %10d  %10d\n"+
		"   Blocks Reserved  :          -  %10d\n"+
		"   Reads            : %10d\n"+
		"   Bytes Read       : %10d\n"+
		"   Writes           : %10d\n"+
		"   Bytes Written    : %10d\n"+
		"   Emptying Frees   : %10d\n",
		c.Stats.BlocksSpilled, c.Stats.MaxBlocksSpilled,
		c.Stats.BlocksFilled, c.Stats.MaxBlocksFilled,
		c.Stats.BlocksReservedTotal, c.Stats.MaxBlocksAllocated,
		c.Stats.MaxBlocksReserved,
		c.Stats.ReadAccesses, c.Stats.BytesRead,
		c.Stats.WriteAccesses, c.Stats.BytesWritten,
		c.Stats.FreeEmpty)
}

// Prints the main memory statistics. Stall cycles hidden behind posted
// writes are reported separately
func (m *FixedDelayMemory) PrintStats(w io.Writer, cycles uint64) {
	stallCycles := m.Stats.BusyCycles - m.Stats.PostedWriteCycles
	var stallPct, hiddenPct float64
	if cycles > 0 {
		stallPct = float64(stallCycles) / float64(cycles) * 100.0
		hiddenPct = float64(m.Stats.PostedWriteCycles) / float64(cycles) * 100.0
	}
	totalBytes := m.Stats.BytesReadTransferred + m.Stats.BytesWriteTransferred

	fmt.Fprintf(w, "\n\nMain Memory Statistics:\n"+
		"                                total  %% of cycles\n"+
		"   Max Queue Size        : %10d\n"+
		"   Consecutive Transfers : %10d\n"+
		"   Requests              : %10d\n"+
		"   Bursts transferred    : %10d\n"+
		"   Bytes transferred     : %10d\n"+
		"   Stall Cycles          : %10d %10.2f%%\n"+
		"   Hidden Write Cycles   : %10d %10.2f%%\n",
		m.Stats.MaxQueueSize, m.Stats.ConsecutiveRequests,
		m.Stats.Reads+m.Stats.Writes, totalBytes/uint64(m.bytesPerBurst),
		totalBytes, stallCycles, stallPct,
		m.Stats.PostedWriteCycles, hiddenPct)

	sizes := make([]uint32, 0, len(m.Stats.RequestsPerSize))
	for size := range m.Stats.RequestsPerSize {
		sizes = append(sizes, size)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })

	fmt.Fprintf(w, "Request size    #requests\n")
	for _, size := range sizes {
		fmt.Fprintf(w, "  %10d : %12d\n", size, m.Stats.RequestsPerSize[size])
	}
}
