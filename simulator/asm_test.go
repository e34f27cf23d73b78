package simulator

import "testing"

// Shared helpers for building test programs in memory.

const testEntry = 0x40

// Writes a method at `base`: the size word sits in the 4 bytes in front
// of the first instruction, as the method cache expects
func writeMethod(mem Memory, base uint32, words []uint32) {
	var buf [4]byte
	toBigEndian(buf[:], uint32(len(words)*4))
	mem.WritePeek(base-4, buf[:])
	for i, w := range words {
		toBigEndian(buf[:], w)
		mem.WritePeek(base+uint32(i)*4, buf[:])
	}
}

// Builds a simulator over the given main memory with a method cache, a
// pass-through data cache and a block stack cache
func newTestSim(mem Memory) *Simulator {
	local := NewIdealMemory(LOCAL_MEMORY_SIZE, false, MEM_CHECK_NONE)
	icache := NewMethodCache(mem, 16, METHOD_CACHE_LRU)
	scache := NewBlockStackCache(mem, 4, 16)
	s := NewSimulator(mem, local, NewNoDataCache(mem), icache, scache, nil)
	s.SPR.Set(SPR_ST, 0x1000)
	return s
}

// Writes the program as the entry method and runs it until it halts.
// Fails the test when the run ends with anything but a HALT
func runToHalt(t *testing.T, mem Memory, words []uint32) (*Simulator, *SimulationError) {
	t.Helper()
	writeMethod(mem, testEntry, words)
	s := newTestSim(mem)
	err := s.Run(testEntry, 100000)
	if err == nil {
		t.Fatalf("program did not halt")
	}
	simErr, ok := err.(*SimulationError)
	if !ok {
		t.Fatalf("unexpected error: %v", err)
	}
	if simErr.Kind != EXCEPTION_HALT {
		t.Fatalf("expected HALT, got %v", simErr)
	}
	return s, simErr
}

// Runs the program and expects it to end with the given exception kind
func runToError(t *testing.T, mem Memory, words []uint32, kind ExceptionKind) (*Simulator, *SimulationError) {
	t.Helper()
	writeMethod(mem, testEntry, words)
	s := newTestSim(mem)
	err := s.Run(testEntry, 100000)
	if err == nil {
		t.Fatalf("program did not raise an exception")
	}
	simErr, ok := err.(*SimulationError)
	if !ok {
		t.Fatalf("unexpected error: %v", err)
	}
	if simErr.Kind != kind {
		t.Fatalf("expected %v, got %v", kind, simErr)
	}
	return s, simErr
}

// Catches a simulation exception raised from a direct component call
func expectSimError(t *testing.T, kind ExceptionKind, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected %v, got no exception", kind)
		}
		e, ok := r.(*SimulationError)
		if !ok {
			panic(r)
		}
		if e.Kind != kind {
			t.Fatalf("expected %v, got %v", kind, e)
		}
	}()
	fn()
}

// An interrupt source firing once at the first poll
type testInterruptSource struct {
	pending bool
	handler uint32
}

func (i *testInterruptSource) Pending() bool   { return i.pending }
func (i *testInterruptSource) Handler() uint32 { return i.handler }
func (i *testInterruptSource) Acknowledge()    { i.pending = false }
