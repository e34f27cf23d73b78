package simulator

// A pipeline stage hook of an instruction. Hooks come in pairs: a
// read/compute pass that only writes into the instruction's staging
// fields, and a commit pass that flushes them into global state. A nil
// hook behaves like a nop
type StageFn func(s *Simulator, ops *InstrData)

// One instruction of the instruction set: a name, a stable ID used to
// index statistics tables, and the pipeline hooks implementing its
// behavior. Instruction families are built by small constructors over
// tables of compute functions instead of a class hierarchy
type Opcode struct {
	ID   int
	Name string
	Flow bool // control flow instruction (call/branch/return)

	IF  StageFn
	DR  StageFn
	EX  StageFn
	MW  StageFn
	DMW StageFn // decoupled load side channel

	IFCommit StageFn
	DRCommit StageFn
	EXCommit StageFn
	MWCommit StageFn

	Print func(ops *InstrData, symbols *SymbolMap) string
}

// Decoded operand fields. One flat record covers all instruction
// formats; each format uses the fields it needs
type Operands struct {
	Rd  uint32 // destination register
	Rs1 uint32 // first source register
	Rs2 uint32 // second source register
	Pd  uint32 // destination predicate
	Ps1 PredSel
	Ps2 PredSel
	Sd  uint32 // destination special register
	Ss  uint32 // source special register
	Rb  uint32 // return base register
	Ro  uint32 // return offset register
	Imm uint32 // immediate (extension applied at decode)
}

// An instruction in flight. The record travels through the pipeline
// array; it is reset whenever a newly decoded instruction overwrites
// it. A record without an opcode handle is a bubble and behaves like a
// nop in every stage
type InstrData struct {
	I    *Opcode
	Pred PredSel
	Ops  Operands

	// PC at issue time, captured by control flow instructions for
	// PC-relative targets
	IFPC uint32

	// staging fields written by the read passes
	DRPred   bool
	DRRs1    GPROp
	DRRs2    GPROp
	DRSs     uint32
	DRImm    uint32 // multi-cycle nop counter
	DRBase   uint32
	DROffset uint32
	DRPs1    bool
	DRPs2    bool

	EXResult  uint32
	EXAddress uint32
	EXRs      uint32
	EXMull    uint32
	EXMulh    uint32

	// suppresses repeated dispatch of a taken control flow instruction
	// while earlier stages drain
	EXPFLDiscard bool

	// by-pass slots; EX deposits its result here, MW moves it on and
	// writes the register file
	GPREXRd GPRBypass
	GPRMWRd GPRBypass
}

// Returns the disassembly of the instruction
func (ops *InstrData) String() string {
	if ops.I == nil {
		return "nop"
	}
	if ops.I.Print == nil {
		return ops.I.Name
	}
	return ops.I.Print(ops, nil)
}

// Reads a general purpose register operand at the EX stage, considering
// by-passing from both EX slots and both MW slots, in that priority
// order, before falling back to the value latched at DR
func readGPREX(s *Simulator, op GPROp) uint32 {
	op = s.Pipeline[SMW][1].GPRMWRd.Fwd(op)
	op = s.Pipeline[SMW][0].GPRMWRd.Fwd(op)
	op = s.Pipeline[SEX][1].GPREXRd.Fwd(op)
	op = s.Pipeline[SEX][0].GPREXRd.Fwd(op)
	return op.Val
}
