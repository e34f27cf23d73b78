package simulator

import (
	"fmt"
	"io"
)

// The stack cache seen by the pipeline: a memory with reserve, free and
// ensure operations driven by the sres/sfree/sens instructions. All
// sizes are in bytes and rounded up to whole blocks; the stack top
// pointer is passed in and adjusted when blocks move to or from memory
type StackCache interface {
	Memory

	// Reserves space on the stack, spilling blocks to memory if the
	// cache overflows. Returns false while a spill is in progress
	Reserve(size uint32, stackTop *uint32) bool
	// Frees space on the stack. Spilled blocks beyond the resident
	// portion are discarded without memory traffic
	Free(size uint32, stackTop *uint32) bool
	// Ensures the given number of bytes are resident, filling blocks
	// back from memory if needed. Returns false while a fill is in
	// progress
	Ensure(size uint32, stackTop *uint32) bool
	// Current size of the stack content in bytes
	Size() uint32
}

// An ideal stack cache with unbounded space. Reads and writes are
// relative to the top of the stack content
type IdealStackCache struct {
	content []byte
}

func NewIdealStackCache() *IdealStackCache {
	return &IdealStackCache{}
}

func (c *IdealStackCache) Reserve(size uint32, stackTop *uint32) bool {
	c.content = append(c.content, make([]byte, size)...)
	return true
}

func (c *IdealStackCache) Free(size uint32, stackTop *uint32) bool {
	if uint32(len(c.content)) < size {
		raiseStackExceeded()
	}
	c.content = c.content[:uint32(len(c.content))-size]
	return true
}

func (c *IdealStackCache) Ensure(size uint32, stackTop *uint32) bool {
	return true
}

func (c *IdealStackCache) Read(addr uint32, buf []byte, isFetch bool) bool {
	size := uint32(len(buf))
	if uint32(len(c.content)) < addr+size {
		raiseStackExceeded()
	}
	copy(buf, c.content[uint32(len(c.content))-addr-size:])
	return true
}

func (c *IdealStackCache) Write(addr uint32, buf []byte) bool {
	size := uint32(len(buf))
	if uint32(len(c.content)) < addr+size {
		raiseStackExceeded()
	}
	copy(c.content[uint32(len(c.content))-addr-size:], buf)
	return true
}

func (c *IdealStackCache) ReadPeek(addr uint32, buf []byte) {
	c.Read(addr, buf, false)
}

func (c *IdealStackCache) WritePeek(addr uint32, buf []byte) {
	c.Write(addr, buf)
}

func (c *IdealStackCache) IsReady() bool {
	return true
}

func (c *IdealStackCache) Tick() {}

func (c *IdealStackCache) Size() uint32 {
	return uint32(len(c.content))
}

// Transfer phases of the block stack cache
type stackCachePhase uint32

const (
	SC_IDLE  stackCachePhase = iota // no transfer ongoing
	SC_SPILL                        // blocks move from the cache to memory
	SC_FILL                         // blocks move from memory to the cache
)

// Statistics of the block stack cache
type StackCacheStats struct {
	BlocksReservedTotal uint64
	MaxBlocksAllocated  uint32
	MaxBlocksReserved   uint32
	BlocksSpilled       uint64
	MaxBlocksSpilled    uint32
	BlocksFilled        uint64
	MaxBlocksFilled     uint32
	FreeEmpty           uint64 // frees that reached past the resident portion into spilled blocks
	ReadAccesses        uint64
	BytesRead           uint64
	WriteAccesses       uint64
	BytesWritten        uint64
}

// A stack cache organized in blocks, backed by main memory. Reserve and
// ensure spill and fill whole blocks automatically; the total stack
// depth (resident plus spilled) is bounded
type BlockStackCache struct {
	IdealStackCache

	mem Memory

	numBlocks      uint32 // capacity of the cache
	numBlocksTotal uint32 // bound on resident + spilled blocks

	phase          stackCachePhase
	transferBlocks uint32
	buffer         []byte

	reservedBlocks uint32
	spilledBlocks  uint32

	tracedTotal    uint32
	tracedReserved uint32

	Stats StackCacheStats
}

func NewBlockStackCache(mem Memory, numBlocks, numBlocksTotal uint32) *BlockStackCache {
	return &BlockStackCache{
		mem:            mem,
		numBlocks:      numBlocks,
		numBlocksTotal: numBlocksTotal,
		buffer:         make([]byte, numBlocks*STACK_BLOCK_SIZE),
	}
}

// Number of blocks currently resident in the cache
func (c *BlockStackCache) ReservedBlocks() uint32 {
	return c.reservedBlocks
}

// Number of blocks currently spilled to memory
func (c *BlockStackCache) SpilledBlocks() uint32 {
	return c.spilledBlocks
}

func (c *BlockStackCache) Reserve(size uint32, stackTop *uint32) bool {
	sizeBlocks := numBlocks(size, STACK_BLOCK_SIZE)

	switch c.phase {
	case SC_IDLE:
		if c.reservedBlocks+c.spilledBlocks+sizeBlocks > c.numBlocksTotal {
			raiseStackExceeded()
		}

		c.reservedBlocks += sizeBlocks
		c.IdealStackCache.Reserve(sizeBlocks*STACK_BLOCK_SIZE, stackTop)

		c.Stats.BlocksReservedTotal += uint64(sizeBlocks)
		c.Stats.MaxBlocksReserved = maxUint32(c.Stats.MaxBlocksReserved, sizeBlocks)
		c.Stats.MaxBlocksAllocated = maxUint32(c.Stats.MaxBlocksAllocated,
			uint32(len(c.content))/STACK_BLOCK_SIZE)

		if c.reservedBlocks <= c.numBlocks {
			return true
		}

		// overflow: spill the bottom blocks of the cache
		c.transferBlocks = c.reservedBlocks - c.numBlocks
		if c.transferBlocks+c.spilledBlocks > c.numBlocksTotal {
			raiseStackExceeded()
		}

		// copy the blocks into the transfer buffer so the memory sees
		// one contiguous request
		if c.transferBlocks*STACK_BLOCK_SIZE > uint32(len(c.buffer)) {
			c.buffer = make([]byte, c.transferBlocks*STACK_BLOCK_SIZE)
		}
		idx := uint32(len(c.content)) - c.reservedBlocks*STACK_BLOCK_SIZE
		copy(c.buffer[:c.transferBlocks*STACK_BLOCK_SIZE], c.content[idx:])

		c.phase = SC_SPILL
		fallthrough

	case SC_SPILL:
		transferBytes := c.transferBlocks * STACK_BLOCK_SIZE
		if !c.mem.Write(*stackTop-transferBytes, c.buffer[:transferBytes]) {
			return false
		}

		c.reservedBlocks -= c.transferBlocks
		c.spilledBlocks += c.transferBlocks

		c.Stats.BlocksSpilled += uint64(c.transferBlocks)
		c.Stats.MaxBlocksSpilled = maxUint32(c.Stats.MaxBlocksSpilled, c.transferBlocks)

		*stackTop -= transferBytes

		c.transferBlocks = 0
		c.phase = SC_IDLE
		return true
	}

	panicFmt("scache: reserve during fill")
	return false
}

func (c *BlockStackCache) Free(size uint32, stackTop *uint32) bool {
	if c.phase != SC_IDLE {
		panicFmt("scache: free during transfer")
	}

	sizeBlocks := numBlocks(size, STACK_BLOCK_SIZE)

	if sizeBlocks > c.spilledBlocks+c.reservedBlocks {
		raiseStackExceeded()
	}

	c.IdealStackCache.Free(sizeBlocks*STACK_BLOCK_SIZE, stackTop)

	if sizeBlocks <= c.reservedBlocks {
		c.reservedBlocks -= sizeBlocks
	} else {
		// also discard spilled blocks, without memory traffic
		freedSpilled := sizeBlocks - c.reservedBlocks
		c.spilledBlocks -= freedSpilled
		c.reservedBlocks = 0

		*stackTop += freedSpilled * STACK_BLOCK_SIZE

		c.Stats.FreeEmpty++
	}

	return true
}

func (c *BlockStackCache) Ensure(size uint32, stackTop *uint32) bool {
	sizeBlocks := numBlocks(size, STACK_BLOCK_SIZE)

	switch c.phase {
	case SC_IDLE:
		if sizeBlocks > c.numBlocks {
			raiseStackExceeded()
		}
		if sizeBlocks > c.reservedBlocks+c.spilledBlocks {
			raiseStackExceeded()
		}

		if c.reservedBlocks >= sizeBlocks {
			return true
		}

		c.transferBlocks = sizeBlocks - c.reservedBlocks
		c.phase = SC_FILL
		fallthrough

	case SC_FILL:
		// the most recently spilled blocks sit just above the stack top
		transferBytes := c.transferBlocks * STACK_BLOCK_SIZE
		if !c.mem.Read(*stackTop, c.buffer[:transferBytes], false) {
			return false
		}

		// the block content was never erased from the cache during the
		// spill, so there is nothing to copy back
		c.spilledBlocks -= c.transferBlocks
		c.reservedBlocks += c.transferBlocks

		c.Stats.BlocksFilled += uint64(c.transferBlocks)
		c.Stats.MaxBlocksFilled = maxUint32(c.Stats.MaxBlocksFilled, c.transferBlocks)

		*stackTop += transferBytes

		c.transferBlocks = 0
		c.phase = SC_IDLE
		return true
	}

	panicFmt("scache: ensure during spill")
	return false
}

func (c *BlockStackCache) Read(addr uint32, buf []byte, isFetch bool) bool {
	if c.phase != SC_IDLE {
		return false
	}
	if addr+uint32(len(buf)) > c.reservedBlocks*STACK_BLOCK_SIZE {
		raiseStackExceeded()
	}

	c.IdealStackCache.Read(addr, buf, isFetch)

	c.Stats.ReadAccesses++
	c.Stats.BytesRead += uint64(len(buf))
	return true
}

func (c *BlockStackCache) Write(addr uint32, buf []byte) bool {
	if c.phase != SC_IDLE {
		return false
	}
	if addr+uint32(len(buf)) > c.reservedBlocks*STACK_BLOCK_SIZE {
		raiseStackExceeded()
	}

	c.IdealStackCache.Write(addr, buf)

	c.Stats.WriteAccesses++
	c.Stats.BytesWritten += uint64(len(buf))
	return true
}

// Prints a line of the stack cache occupancy trace, on change and only
// while no transfer is in flight
func (c *BlockStackCache) Trace(w io.Writer, cycle uint64) {
	if c.phase != SC_IDLE {
		return
	}
	total := c.spilledBlocks + c.reservedBlocks
	if c.tracedTotal == total && c.tracedReserved == c.reservedBlocks {
		return
	}
	fmt.Fprintf(w, "Cyc: %020d Total: %010d Cache: %010d\n", cycle, total, c.reservedBlocks)
	c.tracedTotal = total
	c.tracedReserved = c.reservedBlocks
}

func (c *BlockStackCache) Size() uint32 {
	return (c.reservedBlocks + c.spilledBlocks) * STACK_BLOCK_SIZE
}
