package simulator

// Register file sizes
const (
	NUM_GPR = 32 // general purpose registers
	NUM_PRR = 8  // predicate registers (plus their negated views)
	NUM_SPR = 16 // special purpose registers
)

// Well-known general purpose registers
const (
	REG_EXIT_CODE = 1  // r1: program exit code on halt
	REG_RFB       = 30 // rfb: return function base
	REG_RFO       = 31 // rfo: return function offset
)

// Well-known special purpose registers
const (
	SPR_SM  = 1  // sm: decoupled load destination
	SPR_SL  = 2  // sl: multiply result, low word
	SPR_SH  = 3  // sh: multiply result, high word
	SPR_SS  = 5  // ss: stack spill pointer
	SPR_ST  = 6  // st: stack top pointer
	SPR_S9  = 9  // s9: interrupt return address
	SPR_SCL = 14 // scl: cycle counter, low word
	SPR_SCH = 15 // sch: cycle counter, high word
)

// A register operand captured at the DR stage: the register index together
// with the value it held when it was read. The index is kept so that
// by-passing at the EX stage can override the stale value
type GPROp struct {
	Reg uint32 // register index
	Val uint32 // value read from the register file
}

// A single by-pass slot: an optional (register index, value) pair written
// by an instruction and consulted by later readers
type GPRBypass struct {
	Valid bool
	Reg   uint32
	Val   uint32
}

// Deposits a result into the by-pass. Writes to r0 are dropped so the
// zero register can never be forwarded
func (b *GPRBypass) Set(reg, val uint32) {
	if reg == 0 {
		return
	}
	b.Valid = true
	b.Reg = reg
	b.Val = val
}

func (b *GPRBypass) Reset() {
	b.Valid = false
}

// Overrides the operand value if this by-pass holds a newer value for the
// same register
func (b *GPRBypass) Fwd(op GPROp) GPROp {
	if b.Valid && b.Reg == op.Reg {
		return GPROp{Reg: op.Reg, Val: b.Val}
	}
	return op
}

// The general purpose register file. Register r0 is wired to zero
type GPR struct {
	regs [NUM_GPR]uint32
}

// Reads a register as an operand, keeping the index for by-passing
func (g *GPR) Get(reg uint32) GPROp {
	return GPROp{Reg: reg, Val: g.regs[reg]}
}

// Reads the current value of a register
func (g *GPR) Value(reg uint32) uint32 {
	return g.regs[reg]
}

// Sets the value of a register. Writes to r0 are ignored
func (g *GPR) Set(reg, val uint32) {
	if reg == 0 {
		return
	}
	g.regs[reg] = val
}

// A predicate selector: the low 3 bits address one of the 8 predicate
// registers, bit 3 selects the negated view
type PredSel uint32

const PRED_NEGATE PredSel = 0x8

func (p PredSel) Index() uint32 {
	return uint32(p) & 0x7
}

func (p PredSel) Negated() bool {
	return p&PRED_NEGATE != 0
}

// The predicate register file. Predicate p0 is wired to true
type PRR struct {
	preds [NUM_PRR]bool
}

func NewPRR() *PRR {
	prr := &PRR{}
	prr.preds[0] = true
	return prr
}

// Reads a predicate through a selector, honoring the negate bit
func (p *PRR) Get(sel PredSel) bool {
	v := p.preds[sel.Index()]
	if sel.Negated() {
		return !v
	}
	return v
}

// Sets a predicate register. Writes to p0 are ignored
func (p *PRR) Set(reg uint32, val bool) {
	if reg == 0 {
		return
	}
	p.preds[reg] = val
}

// Returns the predicate bank as a bit vector (used by mfs s0)
func (p *PRR) Bits() uint32 {
	var v uint32
	for i := 0; i < NUM_PRR; i++ {
		if p.preds[i] {
			v |= 1 << uint(i)
		}
	}
	return v
}

// Restores the predicate bank from a bit vector (used by mts s0).
// p0 stays wired to true
func (p *PRR) SetBits(v uint32) {
	for i := 1; i < NUM_PRR; i++ {
		p.preds[i] = (v>>uint(i))&1 == 1
	}
}

// The special purpose register file. Unused indices read as zero
type SPR struct {
	regs [NUM_SPR]uint32
}

func (s *SPR) Get(reg uint32) uint32 {
	if reg >= NUM_SPR {
		return 0
	}
	return s.regs[reg]
}

func (s *SPR) Set(reg, val uint32) {
	if reg >= NUM_SPR {
		return
	}
	s.regs[reg] = val
}
