package simulator

import "testing"

func TestGPRZeroWired(t *testing.T) {
	assert := func(v bool) {
		t.Helper()
		if !v {
			t.Error("assert failed")
		}
	}

	var gpr GPR
	gpr.Set(0, 123)
	assert(gpr.Value(0) == 0)
	gpr.Set(5, 42)
	assert(gpr.Value(5) == 42)
	assert(gpr.Get(5) == GPROp{Reg: 5, Val: 42})
}

func TestPRRWiredTrue(t *testing.T) {
	assert := func(v bool) {
		t.Helper()
		if !v {
			t.Error("assert failed")
		}
	}

	prr := NewPRR()
	assert(prr.Get(0))
	assert(!prr.Get(PRED_NEGATE)) // !p0
	prr.Set(0, false)
	assert(prr.Get(0))

	prr.Set(3, true)
	assert(prr.Get(3))
	assert(!prr.Get(PredSel(3) | PRED_NEGATE))

	assert(prr.Bits() == 0b1001)
	prr.SetBits(0b0110)
	assert(prr.Get(0)) // p0 untouched
	assert(prr.Get(1) && prr.Get(2) && !prr.Get(3))
}

func TestSPRUnusedReadsZero(t *testing.T) {
	var spr SPR
	spr.Set(SPR_ST, 0x1000)
	if spr.Get(SPR_ST) != 0x1000 {
		t.Fatalf("st readback failed")
	}
	if spr.Get(100) != 0 {
		t.Fatalf("out of range special register must read zero")
	}
	spr.Set(100, 5) // dropped
	if spr.Get(100) != 0 {
		t.Fatalf("out of range write must be ignored")
	}
}

// The by-pass chain prefers EX slots over MW slots over the latched
// register value
func TestBypassPriority(t *testing.T) {
	assert := func(v bool) {
		t.Helper()
		if !v {
			t.Error("assert failed")
		}
	}

	var b GPRBypass
	op := GPROp{Reg: 4, Val: 10}

	// empty by-pass leaves the operand alone
	assert(b.Fwd(op) == op)

	// matching register overrides the value
	b.Set(4, 20)
	assert(b.Fwd(op).Val == 20)

	// different register does not
	b.Set(5, 30)
	assert(b.Fwd(op).Val == 10)

	// r0 can never be forwarded
	b.Reset()
	b.Set(0, 99)
	assert(!b.Valid)

	mem := NewIdealMemory(1024, false, MEM_CHECK_NONE)
	s := NewSimulator(mem, mem, mem, NewIdealMethodCache(mem), NewIdealStackCache(), nil)

	s.GPR.Set(4, 1)
	op = s.GPR.Get(4)

	s.Pipeline[SMW][0].GPRMWRd.Set(4, 2)
	assert(readGPREX(s, op) == 2)

	// the EX slot wins over the MW slot
	s.Pipeline[SEX][1].GPREXRd.Set(4, 3)
	assert(readGPREX(s, op) == 3)
	s.Pipeline[SEX][0].GPREXRd.Set(4, 4)
	assert(readGPREX(s, op) == 4)
}
