package simulator

import "testing"

// A fetch without a method cache issues two word reads and is ready
// once both are
func TestNoInstrCacheFetch(t *testing.T) {
	assert := func(v bool) {
		t.Helper()
		if !v {
			t.Error("assert failed")
		}
	}

	mem := NewFixedDelayMemory(4096, 16, 0, 3, 2, false, MEM_CHECK_NONE)
	var buf [4]byte
	toBigEndian(buf[:], 0x11111111)
	mem.WritePeek(0x40, buf[:])
	toBigEndian(buf[:], 0x22222222)
	mem.WritePeek(0x44, buf[:])

	c := NewNoInstrCache(mem)

	var iw [2]uint32
	cycles := 0
	for !c.Fetch(0x40, &iw) {
		mem.Tick()
		cycles++
		if cycles > 100 {
			t.Fatalf("fetch never completed")
		}
	}
	assert(cycles > 0)
	assert(iw[0] == 0x11111111)
	assert(iw[1] == 0x22222222)
	assert(c.Stats.AllMiss == 1)

	// the partial fetch state was reset
	cycles = 0
	for !c.Fetch(0x40, &iw) {
		mem.Tick()
		cycles++
	}
	assert(iw[0] == 0x11111111)
}

// The wrapper serves fetches out of its backing cache: the second
// fetch of the same line hits
func TestInstrCacheWrapper(t *testing.T) {
	mem := NewFixedDelayMemory(4096, 16, 0, 3, 2, false, MEM_CHECK_NONE)
	backing := NewLRUDataCache(mem, 256, 16, 2)
	c := NewInstrCacheWrapper(backing)

	var iw [2]uint32
	cycles := 0
	for !c.Fetch(0x40, &iw) {
		c.Tick()
		mem.Tick()
		cycles++
		if cycles > 100 {
			t.Fatalf("fetch never completed")
		}
	}
	if cycles == 0 {
		t.Fatalf("first fetch must miss")
	}

	if !c.Fetch(0x40, &iw) {
		t.Fatalf("second fetch of a cached line must hit")
	}
	if !c.LoadMethod(0x40) || !c.IsAvailable(0x40) {
		t.Fatalf("dispatch through the wrapper must always succeed")
	}
}
