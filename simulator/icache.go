package simulator

// Statistics of the conventional instruction cache path
type InstrCacheStats struct {
	AllMiss   uint64 // fetch requests where every slot missed
	FirstMiss uint64 // fetch requests with a single miss in the first slot
	SuccMiss  uint64 // fetch requests with a single miss in a later slot
	Hits      uint64 // fetch requests without misses
}

// An instruction fetch path without a method cache: every fetch issues
// two consecutive word reads against the backing memory. The fetch is
// ready once both reads are
type NoInstrCache struct {
	mem Memory

	fetched int
	words   [NUM_SLOTS]uint32
	isMiss  [NUM_SLOTS]bool

	Stats InstrCacheStats
}

func NewNoInstrCache(mem Memory) *NoInstrCache {
	return &NoInstrCache{mem: mem}
}

func (c *NoInstrCache) Initialize(addr uint32) {}

func (c *NoInstrCache) Fetch(addr uint32, iw *[2]uint32) bool {
	for c.fetched < NUM_SLOTS {
		var buf [4]byte
		if !c.mem.Read(addr+4*uint32(c.fetched), buf[:], true) {
			c.isMiss[c.fetched] = true
			return false
		}
		c.words[c.fetched] = fromBigEndian(buf[:])
		c.fetched++
	}

	switch {
	case c.isMiss[0] && c.isMiss[1]:
		c.Stats.AllMiss++
	case c.isMiss[0]:
		c.Stats.FirstMiss++
	case c.isMiss[1]:
		c.Stats.SuccMiss++
	default:
		c.Stats.Hits++
	}

	iw[0] = c.words[0]
	iw[1] = c.words[1]
	c.fetched = 0
	c.isMiss[0] = false
	c.isMiss[1] = false
	return true
}

// Methods are not tracked without a method cache; dispatch always
// succeeds and pays the fetch cost at the target instead
func (c *NoInstrCache) LoadMethod(addr uint32) bool {
	return true
}

func (c *NoInstrCache) IsAvailable(addr uint32) bool {
	return true
}

func (c *NoInstrCache) Tick() {}

// An instruction cache built from a data cache: the wrapper owns the
// backing cache, routes fetches through it and ticks it
type InstrCacheWrapper struct {
	NoInstrCache

	backing Memory
}

func NewInstrCacheWrapper(backing Memory) *InstrCacheWrapper {
	c := &InstrCacheWrapper{backing: backing}
	c.mem = backing
	return c
}

func (c *InstrCacheWrapper) Tick() {
	c.backing.Tick()
}
