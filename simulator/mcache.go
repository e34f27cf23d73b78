package simulator

// The instruction fetch path of the core. The method cache is the main
// implementation; a conventional instruction cache and an ideal variant
// satisfy the same interface
type InstrCache interface {
	// Fills the cache before executing the first instruction
	Initialize(addr uint32)
	// Fetches two instruction words at `addr`. Returns true when both
	// words are available from the read port
	Fetch(addr uint32, iw *[2]uint32) bool
	// Ensures the method at `addr` is in the cache, evicting others and
	// initiating a transfer if needed. Re-entered from the caller every
	// cycle until it returns true
	LoadMethod(addr uint32) bool
	// Pure check whether the method at `addr` is resident
	IsAvailable(addr uint32) bool
	// Notifies the cache that a cycle passed
	Tick()
}

// Replacement policies of the method cache
type MethodCachePolicy uint32

const (
	METHOD_CACHE_LRU MethodCachePolicy = iota
	METHOD_CACHE_FIFO
)

// Phases of fetching a method from memory
type methodCachePhase uint32

const (
	MC_IDLE     methodCachePhase = iota // available to handle requests
	MC_SIZE                             // fetching the size word of the method
	MC_TRANSFER                         // transferring the method from memory
)

// Bookkeeping of one method in the cache. The instruction buffer is
// allocated once at construction and reassigned across evictions, so
// steady-state misses never allocate
type methodEntry struct {
	Instructions []byte
	Addr         uint32
	NumBlocks    uint32
	NumBytes     uint32
}

// Per-method hit/miss counters, keyed by base address
type MethodStats struct {
	Hits   uint64
	Misses uint64
}

// Statistics of the method cache
type MethodCacheStats struct {
	BlocksTransferred    uint64
	MaxBlocksTransferred uint32
	BytesTransferred     uint64
	MaxBytesTransferred  uint32
	Hits                 uint64
	Misses               uint64
	StallCycles          uint64
	PerMethod            map[uint32]*MethodStats
}

// A method cache: program text is cached a whole method at a time,
// identified by its base address. The cache is organized in blocks;
// methods are orderd by age and evicted least recently used (or in
// insertion order with the FIFO policy)
type MethodCache struct {
	mem       Memory
	policy    MethodCachePolicy
	numBlocks uint32

	phase          methodCachePhase
	transferBlocks uint32
	transferBytes  uint32

	// methods ordered oldest first; the most recently used entry is at
	// the end. Only the last `activeMethods` entries are valid
	methods       []methodEntry
	activeMethods uint32
	activeBlocks  uint32

	// entry instructions are fetched from with the FIFO policy
	activeIdx uint32

	Stats MethodCacheStats
}

// Constructs a method cache of `numBlocks` blocks backed by `mem`
func NewMethodCache(mem Memory, numBlocks uint32, policy MethodCachePolicy) *MethodCache {
	c := &MethodCache{
		mem:       mem,
		policy:    policy,
		numBlocks: numBlocks,
		methods:   make([]methodEntry, numBlocks),
		activeIdx: numBlocks - 1,
	}
	for i := range c.methods {
		c.methods[i].Instructions = make([]byte, METHOD_BLOCK_SIZE*numBlocks)
	}
	c.Stats.PerMethod = make(map[uint32]*MethodStats)
	return c
}

func (c *MethodCache) methodStats(addr uint32) *MethodStats {
	st := c.Stats.PerMethod[addr]
	if st == nil {
		st = &MethodStats{}
		c.Stats.PerMethod[addr] = st
	}
	return st
}

// Fills the cache with an initial chunk of instructions at the entry
// point, before the size word of the entry method is known
func (c *MethodCache) Initialize(addr uint32) {
	if c.activeMethods != 0 || c.activeBlocks != 0 {
		panicFmt("mcache: initialized twice")
	}

	entry := &c.methods[c.numBlocks-1]
	c.mem.ReadPeek(addr, entry.Instructions[:METHOD_INIT_BLOCKS*METHOD_BLOCK_SIZE])
	entry.Addr = addr
	entry.NumBlocks = METHOD_INIT_BLOCKS
	entry.NumBytes = METHOD_INIT_BLOCKS * METHOD_BLOCK_SIZE

	c.activeMethods = 1
	c.activeBlocks = METHOD_INIT_BLOCKS
	c.activeIdx = c.numBlocks - 1
}

// Fetches two instruction words out of the currently active method
func (c *MethodCache) Fetch(addr uint32, iw *[2]uint32) bool {
	idx := c.numBlocks - 1
	if c.policy == METHOD_CACHE_FIFO {
		idx = c.activeIdx
	}
	entry := &c.methods[idx]

	if addr < entry.Addr || entry.Addr+entry.NumBytes <= addr {
		raiseIllegalPC(entry.Addr)
	}

	off := addr - entry.Addr
	iw[0] = fromBigEndian(entry.Instructions[off : off+4])
	iw[1] = fromBigEndian(entry.Instructions[off+4 : off+8])
	return true
}

// Checks whether the method at `addr` is resident, promoting it to most
// recently used under the LRU policy
func (c *MethodCache) lookup(addr uint32) (uint32, bool) {
	for i := int(c.numBlocks) - 1; i >= int(c.numBlocks-c.activeMethods); i-- {
		if c.methods[i].Addr == addr {
			if c.policy == METHOD_CACHE_LRU {
				// shift the younger methods down and reinsert this one
				// at the most recently used position
				tmp := c.methods[i]
				copy(c.methods[i:], c.methods[i+1:])
				c.methods[c.numBlocks-1] = tmp
				return c.numBlocks - 1, true
			}
			return uint32(i), true
		}
	}
	return 0, false
}

// Ensures the method at `addr` is in the cache. On a miss the load state
// machine advances as far as memory readiness allows; the caller keeps
// re-entering every cycle until the method is resident
func (c *MethodCache) LoadMethod(addr uint32) bool {
	switch c.phase {
	case MC_IDLE:
		if idx, ok := c.lookup(addr); ok {
			c.activeIdx = idx
			c.Stats.Hits++
			c.methodStats(addr).Hits++
			return true
		}
		c.phase = MC_SIZE
		c.Stats.Misses++
		c.methodStats(addr).Misses++
		fallthrough

	case MC_SIZE:
		// the 4 bytes in front of the method hold its size in bytes
		sizeBytes, ok := readFixed(c.mem, addr-4, ACCESS_WORD)
		if !ok {
			return false
		}

		c.transferBytes = sizeBytes
		c.transferBlocks = numBlocks(sizeBytes, METHOD_BLOCK_SIZE)

		if c.transferBlocks == 0 || c.transferBlocks > c.numBlocks {
			raiseCodeExceeded(addr)
		}

		// evict the oldest methods until the new one fits
		for c.activeBlocks+c.transferBlocks > c.numBlocks {
			if c.activeMethods == 0 {
				panicFmt("mcache: no methods left to evict")
			}
			c.activeBlocks -= c.methods[c.numBlocks-c.activeMethods].NumBlocks
			c.activeMethods--
		}

		c.activeMethods++
		c.activeBlocks += c.transferBlocks
		c.Stats.BlocksTransferred += uint64(c.transferBlocks)
		c.Stats.MaxBlocksTransferred = maxUint32(c.Stats.MaxBlocksTransferred, c.transferBlocks)
		c.Stats.BytesTransferred += uint64(c.transferBytes)
		c.Stats.MaxBytesTransferred = maxUint32(c.Stats.MaxBytesTransferred, c.transferBytes)

		// reuse the buffer of the evicted slot for the new entry and
		// shift the surviving methods down
		oldest := c.numBlocks - c.activeMethods
		saved := c.methods[oldest].Instructions
		copy(c.methods[oldest:], c.methods[oldest+1:])
		c.methods[c.numBlocks-1] = methodEntry{
			Instructions: saved,
			Addr:         addr,
			NumBlocks:    c.transferBlocks,
			NumBytes:     c.transferBytes,
		}
		c.activeIdx = c.numBlocks - 1

		c.phase = MC_TRANSFER
		fallthrough

	case MC_TRANSFER:
		entry := &c.methods[c.numBlocks-1]
		if !c.mem.Read(addr, entry.Instructions[:c.transferBlocks*METHOD_BLOCK_SIZE], true) {
			return false
		}
		c.transferBlocks = 0
		c.transferBytes = 0
		c.phase = MC_IDLE
		return true
	}

	panicFmt("mcache: invalid phase %d", c.phase)
	return false
}

// Pure check whether the method at `addr` is resident; never changes the
// replacement ordering
func (c *MethodCache) IsAvailable(addr uint32) bool {
	for i := int(c.numBlocks) - 1; i >= int(c.numBlocks-c.activeMethods); i-- {
		if c.methods[i].Addr == addr {
			return true
		}
	}
	return false
}

func (c *MethodCache) Tick() {
	if c.phase != MC_IDLE {
		c.Stats.StallCycles++
	}
}

// An ideal method cache: all methods are always resident
type IdealMethodCache struct {
	mem Memory
}

func NewIdealMethodCache(mem Memory) *IdealMethodCache {
	return &IdealMethodCache{mem: mem}
}

func (c *IdealMethodCache) Initialize(addr uint32) {}

func (c *IdealMethodCache) Fetch(addr uint32, iw *[2]uint32) bool {
	var buf [8]byte
	c.mem.ReadPeek(addr, buf[:])
	iw[0] = fromBigEndian(buf[0:4])
	iw[1] = fromBigEndian(buf[4:8])
	return true
}

func (c *IdealMethodCache) LoadMethod(addr uint32) bool {
	return true
}

func (c *IdealMethodCache) IsAvailable(addr uint32) bool {
	return true
}

func (c *IdealMethodCache) Tick() {}
