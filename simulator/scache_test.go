package simulator

import "testing"

// S4: reserving beyond the cache capacity spills the bottom blocks to
// memory and moves the stack top down
func TestStackCacheSpill(t *testing.T) {
	assert := func(v bool) {
		t.Helper()
		if !v {
			t.Error("assert failed")
		}
	}

	mem := NewIdealMemory(4096, false, MEM_CHECK_NONE)
	sc := NewBlockStackCache(mem, 4, 16)

	stackTop := uint32(0x800)

	// fill four blocks with a known pattern first
	assert(sc.Reserve(4*STACK_BLOCK_SIZE, &stackTop))
	pattern := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	assert(sc.Write(0, pattern))
	assert(stackTop == 0x800)

	// two more blocks overflow the cache: the two oldest blocks spill
	assert(sc.Reserve(2*STACK_BLOCK_SIZE, &stackTop))
	assert(sc.ReservedBlocks() == 4)
	assert(sc.SpilledBlocks() == 2)
	assert(stackTop == 0x800-2*STACK_BLOCK_SIZE)

	// the spilled blocks sit right below the old stack top
	spilled := make([]byte, 2*STACK_BLOCK_SIZE)
	mem.ReadPeek(stackTop, spilled)
	for i := range spilled {
		assert(spilled[i] == pattern[i])
	}
}

// Ensure of blocks that are already resident transfers nothing; ensuring
// more blocks than the cache holds raises STACK_EXCEEDED
func TestStackCacheEnsureFill(t *testing.T) {
	assert := func(v bool) {
		t.Helper()
		if !v {
			t.Error("assert failed")
		}
	}

	mem := NewIdealMemory(4096, false, MEM_CHECK_NONE)
	sc := NewBlockStackCache(mem, 4, 16)
	stackTop := uint32(0x800)

	assert(sc.Reserve(6*STACK_BLOCK_SIZE, &stackTop))
	assert(sc.ReservedBlocks() == 4)
	assert(sc.SpilledBlocks() == 2)
	top := stackTop

	// four blocks are already resident: no transfer
	assert(sc.Ensure(4*STACK_BLOCK_SIZE, &stackTop))
	assert(stackTop == top)
	assert(sc.Stats.BlocksFilled == 0)

	// hold the stack cache to five resident blocks? that exceeds the
	// capacity of four
	expectSimError(t, EXCEPTION_STACK_EXCEEDED, func() {
		sc.Ensure(5*STACK_BLOCK_SIZE, &stackTop)
	})
}

// A fill brings blocks back after frees made room in the cache
func TestStackCacheFillAfterFree(t *testing.T) {
	assert := func(v bool) {
		t.Helper()
		if !v {
			t.Error("assert failed")
		}
	}

	mem := NewIdealMemory(4096, false, MEM_CHECK_NONE)
	sc := NewBlockStackCache(mem, 4, 16)
	stackTop := uint32(0x800)

	assert(sc.Reserve(6*STACK_BLOCK_SIZE, &stackTop)) // reserved 4, spilled 2
	assert(sc.Free(2*STACK_BLOCK_SIZE, &stackTop))    // reserved 2, spilled 2
	assert(sc.ReservedBlocks() == 2)
	assert(sc.SpilledBlocks() == 2)

	top := stackTop
	assert(sc.Ensure(4*STACK_BLOCK_SIZE, &stackTop)) // fill the 2 spilled
	assert(sc.ReservedBlocks() == 4)
	assert(sc.SpilledBlocks() == 0)
	assert(stackTop == top+2*STACK_BLOCK_SIZE)
	assert(sc.Stats.BlocksFilled == 2)
}

// P2: a free covering no spilled blocks leaves the spill count alone;
// one covering more than the resident portion discards spilled blocks
// without memory traffic
func TestStackCacheFree(t *testing.T) {
	assert := func(v bool) {
		t.Helper()
		if !v {
			t.Error("assert failed")
		}
	}

	mem := NewIdealMemory(4096, false, MEM_CHECK_NONE)
	sc := NewBlockStackCache(mem, 4, 16)
	stackTop := uint32(0x800)

	assert(sc.Reserve(6*STACK_BLOCK_SIZE, &stackTop)) // reserved 4, spilled 2

	assert(sc.Free(3*STACK_BLOCK_SIZE, &stackTop))
	assert(sc.ReservedBlocks() == 1)
	assert(sc.SpilledBlocks() == 2)
	assert(sc.Stats.FreeEmpty == 0)

	// freeing more than resident discards the spilled blocks and moves
	// the stack top back up
	top := stackTop
	assert(sc.Free(3*STACK_BLOCK_SIZE, &stackTop))
	assert(sc.ReservedBlocks() == 0)
	assert(sc.SpilledBlocks() == 0)
	assert(sc.Stats.FreeEmpty == 1)
	assert(stackTop == top+2*STACK_BLOCK_SIZE)
}

// Reserving beyond the total bound on resident plus spilled blocks raises
// STACK_EXCEEDED
func TestStackCacheBounds(t *testing.T) {
	mem := NewIdealMemory(4096, false, MEM_CHECK_NONE)
	sc := NewBlockStackCache(mem, 4, 6)
	stackTop := uint32(0x800)

	expectSimError(t, EXCEPTION_STACK_EXCEEDED, func() {
		sc.Reserve(7*STACK_BLOCK_SIZE, &stackTop)
	})

	sc = NewBlockStackCache(mem, 4, 6)
	stackTop = 0x800
	if !sc.Reserve(4*STACK_BLOCK_SIZE, &stackTop) {
		t.Fatalf("reserve failed")
	}
	if !sc.Reserve(2*STACK_BLOCK_SIZE, &stackTop) {
		t.Fatalf("reserve failed")
	}
	// reserved 4, spilled 2: the total of 6 is reached, four more blocks
	// exceed it
	expectSimError(t, EXCEPTION_STACK_EXCEEDED, func() {
		sc.Reserve(4*STACK_BLOCK_SIZE, &stackTop)
	})
}

// Accesses beyond the resident slice raise STACK_EXCEEDED
func TestStackCacheAccessBounds(t *testing.T) {
	mem := NewIdealMemory(4096, false, MEM_CHECK_NONE)
	sc := NewBlockStackCache(mem, 4, 16)
	stackTop := uint32(0x800)

	if !sc.Reserve(2*STACK_BLOCK_SIZE, &stackTop) {
		t.Fatalf("reserve failed")
	}

	buf := make([]byte, 4)
	if !sc.Read(0, buf, false) {
		t.Fatalf("read failed")
	}
	expectSimError(t, EXCEPTION_STACK_EXCEEDED, func() {
		sc.Read(2*STACK_BLOCK_SIZE-2, buf, false)
	})
}

// A spill against a slow memory keeps reporting busy until the
// transfer completes
func TestStackCacheSpillStalls(t *testing.T) {
	mem := NewFixedDelayMemory(4096, 16, 0, 3, 2, false, MEM_CHECK_NONE)
	sc := NewBlockStackCache(mem, 4, 16)
	stackTop := uint32(0x800)

	if !sc.Reserve(4*STACK_BLOCK_SIZE, &stackTop) {
		t.Fatalf("reserve of the resident portion must not stall")
	}

	ticks := 0
	for !sc.Reserve(2*STACK_BLOCK_SIZE, &stackTop) {
		mem.Tick()
		sc.Tick()
		ticks++
		if ticks > 100 {
			t.Fatalf("spill never completed")
		}
	}
	if ticks == 0 {
		t.Fatalf("spill completed without any memory latency")
	}
	if sc.ReservedBlocks() != 4 || sc.SpilledBlocks() != 2 {
		t.Fatalf("wrong state after spill: %d/%d", sc.ReservedBlocks(), sc.SpilledBlocks())
	}
}
