package simulator

import "testing"

// A miss transfers the line; the following access to the same line hits
// without touching the memory timing
func TestLRUDataCacheHitMiss(t *testing.T) {
	assert := func(v bool) {
		t.Helper()
		if !v {
			t.Error("assert failed")
		}
	}

	mem := NewFixedDelayMemory(4096, 16, 0, 3, 2, false, MEM_CHECK_NONE)
	var data [4]byte
	toBigEndian(data[:], 0x13572468)
	mem.WritePeek(0x100, data[:])

	// 2 sets * 2 ways * 16 byte lines
	c := NewLRUDataCache(mem, 64, 16, 2)

	var buf [4]byte
	ticks := 0
	for !c.Read(0x100, buf[:], false) {
		mem.Tick()
		ticks++
	}
	assert(ticks > 0)
	assert(fromBigEndian(buf[:]) == 0x13572468)
	assert(c.Stats.ReadMisses == 1)

	// same line: a hit, ready in the same cycle
	assert(c.Read(0x104, buf[:], false))
	assert(c.Stats.ReadHits == 1)
}

// The least recently used way of a set is evicted on a miss
func TestLRUDataCacheEviction(t *testing.T) {
	assert := func(v bool) {
		t.Helper()
		if !v {
			t.Error("assert failed")
		}
	}

	mem := NewIdealMemory(4096, false, MEM_CHECK_NONE)
	// 2 sets, 2 ways: addresses 0x00, 0x40, 0x80 land in set 0
	c := NewLRUDataCache(mem, 64, 16, 2)

	var buf [4]byte
	assert(c.Read(0x00, buf[:], false))
	assert(c.Read(0x40, buf[:], false))
	assert(c.Read(0x00, buf[:], false)) // touch 0x00: 0x40 is now LRU
	assert(c.Stats.ReadHits == 1)

	assert(c.Read(0x80, buf[:], false)) // evicts 0x40
	assert(c.Stats.Evictions == 1)

	assert(c.Read(0x00, buf[:], false)) // still resident
	assert(c.Stats.ReadHits == 2)

	c.Read(0x40, buf[:], false) // miss again
	assert(c.Stats.ReadMisses == 4)
}

// Writes go through to memory and never allocate a line
func TestDataCacheWriteThrough(t *testing.T) {
	assert := func(v bool) {
		t.Helper()
		if !v {
			t.Error("assert failed")
		}
	}

	mem := NewIdealMemory(4096, false, MEM_CHECK_NONE)
	c := NewLRUDataCache(mem, 64, 16, 2)

	var data [4]byte
	toBigEndian(data[:], 0xfeedface)
	assert(c.Write(0x200, data[:]))
	assert(c.Stats.WriteMisses == 1)

	var buf [4]byte
	mem.ReadPeek(0x200, buf[:])
	assert(fromBigEndian(buf[:]) == 0xfeedface)

	// the write did not install a line
	c.Read(0x200, buf[:], false)
	assert(c.Stats.ReadMisses == 1)
}

// The pass-through kind forwards the backing memory's timing
func TestNoDataCache(t *testing.T) {
	mem := NewFixedDelayMemory(4096, 16, 0, 3, 2, false, MEM_CHECK_NONE)
	c := NewNoDataCache(mem)

	var buf [4]byte
	if c.Read(0x10, buf[:], false) {
		t.Fatalf("expected the first read to stall")
	}
	for i := 0; i < 10; i++ {
		mem.Tick()
	}
	if !c.Read(0x10, buf[:], false) {
		t.Fatalf("read still stalling after the latency elapsed")
	}
}

// The ideal kind is always ready
func TestIdealDataCache(t *testing.T) {
	mem := NewFixedDelayMemory(4096, 16, 0, 3, 2, false, MEM_CHECK_NONE)
	c := NewIdealDataCache(mem)

	var buf [4]byte
	if !c.Read(0x10, buf[:], false) {
		t.Fatalf("ideal cache stalled")
	}
	if !c.Write(0x10, buf[:]) {
		t.Fatalf("ideal cache stalled on write")
	}
}
