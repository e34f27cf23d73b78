package simulator

import "fmt"

// Function indices of the binary ALU instructions (ALUi/ALUl/ALUr)
const (
	ALU_ADD = iota
	ALU_SUB
	ALU_RSUB
	ALU_SL
	ALU_SR
	ALU_SRA
	ALU_OR
	ALU_AND
	ALU_RL
	ALU_RR
	ALU_XOR
	ALU_NOR
	ALU_SHADD
	ALU_SHADD2
	NUM_ALU_FNS
)

// Function indices of the unary ALU instructions (ALUu)
const (
	ALUU_SEXT8 = iota
	ALUU_SEXT16
	ALUU_ZEXT16
	ALUU_ABS
	NUM_ALUU_FNS
)

// Function indices of the multiply instructions (ALUm)
const (
	ALUM_MUL = iota
	ALUM_MULU
	NUM_ALUM_FNS
)

// Function indices of the compare instructions (ALUc/ALUci)
const (
	CMP_EQ = iota
	CMP_NEQ
	CMP_LT
	CMP_LE
	CMP_ULT
	CMP_ULE
	CMP_BTEST
	NUM_CMP_FNS
)

// Function indices of the predicate combine instructions (ALUp)
const (
	PCMP_OR = iota
	PCMP_AND
	PCMP_XOR
	PCMP_NOR
	NUM_PCMP_FNS
)

// Sub-operations of the SPC format
const (
	SPC_NOP = iota
	SPC_WAIT
	SPC_MTS
	SPC_MFS
	NUM_SPC_FNS
)

// Memories addressable by typed load and store instructions
type memTarget uint32

const (
	TARGET_STACK_CACHE memTarget = iota
	TARGET_LOCAL
	TARGET_DATA_CACHE
	TARGET_GLOBAL
)

// Load opcode indices: four targets by six widths, then the decoupled
// variants over the data cache and the global memory
const (
	LDT_LWS = iota
	LDT_LHS
	LDT_LBS
	LDT_LWUS
	LDT_LHUS
	LDT_LBUS
	LDT_LWL
	LDT_LHL
	LDT_LBL
	LDT_LWUL
	LDT_LHUL
	LDT_LBUL
	LDT_LWC
	LDT_LHC
	LDT_LBC
	LDT_LWUC
	LDT_LHUC
	LDT_LBUC
	LDT_LWM
	LDT_LHM
	LDT_LBM
	LDT_LWUM
	LDT_LHUM
	LDT_LBUM
	LDT_DLWC
	LDT_DLHC
	LDT_DLBC
	LDT_DLWUC
	LDT_DLHUC
	LDT_DLBUC
	LDT_DLWM
	LDT_DLHM
	LDT_DLBM
	LDT_DLWUM
	LDT_DLHUM
	LDT_DLBUM
	NUM_LDT_FNS
)

// Store opcode indices: four targets by three widths
const (
	STT_SWS = iota
	STT_SHS
	STT_SBS
	STT_SWL
	STT_SHL
	STT_SBL
	STT_SWC
	STT_SHC
	STT_SBC
	STT_SWM
	STT_SHM
	STT_SBM
	NUM_STT_FNS
)

// Stack control opcode indices
const (
	STC_RES = iota
	STC_ENS
	STC_FREE
	NUM_STC_FNS
)

// Immediate control flow opcode indices
const (
	CFL_CALL = iota
	CFL_BR
	NUM_CFL_FNS
)

// Register control flow opcode indices
const (
	CFLR_CALLR = iota
	CFLR_BRR
	NUM_CFLR_FNS
)

type aluFn func(a, b uint32) uint32

var aluFns = [NUM_ALU_FNS]aluFn{
	ALU_ADD:    func(a, b uint32) uint32 { return a + b },
	ALU_SUB:    func(a, b uint32) uint32 { return a - b },
	ALU_RSUB:   func(a, b uint32) uint32 { return b - a },
	ALU_SL:     func(a, b uint32) uint32 { return a << (b & 0x1f) },
	ALU_SR:     func(a, b uint32) uint32 { return a >> (b & 0x1f) },
	ALU_SRA:    func(a, b uint32) uint32 { return uint32(int32(a) >> (b & 0x1f)) },
	ALU_OR:     func(a, b uint32) uint32 { return a | b },
	ALU_AND:    func(a, b uint32) uint32 { return a & b },
	ALU_RL:     func(a, b uint32) uint32 { s := b & 0x1f; return a<<s | a>>(32-s) },
	ALU_RR:     func(a, b uint32) uint32 { s := b & 0x1f; return a<<(32-s) | a>>s },
	ALU_XOR:    func(a, b uint32) uint32 { return a ^ b },
	ALU_NOR:    func(a, b uint32) uint32 { return ^(a | b) },
	ALU_SHADD:  func(a, b uint32) uint32 { return a<<1 + b },
	ALU_SHADD2: func(a, b uint32) uint32 { return a<<2 + b },
}

var aluFnNames = [NUM_ALU_FNS]string{
	"add", "sub", "rsub", "sl", "sr", "sra", "or", "and",
	"rl", "rr", "xor", "nor", "shadd", "shadd2",
}

type aluUnaryFn func(a uint32) uint32

var aluUnaryFns = [NUM_ALUU_FNS]aluUnaryFn{
	ALUU_SEXT8:  func(a uint32) uint32 { return uint32(int32(int8(a))) },
	ALUU_SEXT16: func(a uint32) uint32 { return uint32(int32(int16(a))) },
	ALUU_ZEXT16: func(a uint32) uint32 { return a & 0xffff },
	ALUU_ABS: func(a uint32) uint32 {
		if int32(a) < 0 {
			return uint32(-int32(a))
		}
		return a
	},
}

var aluUnaryFnNames = [NUM_ALUU_FNS]string{"sext8", "sext16", "zext16", "abs"}

type cmpFn func(a, b uint32) bool

var cmpFns = [NUM_CMP_FNS]cmpFn{
	CMP_EQ:    func(a, b uint32) bool { return a == b },
	CMP_NEQ:   func(a, b uint32) bool { return a != b },
	CMP_LT:    func(a, b uint32) bool { return int32(a) < int32(b) },
	CMP_LE:    func(a, b uint32) bool { return int32(a) <= int32(b) },
	CMP_ULT:   func(a, b uint32) bool { return a < b },
	CMP_ULE:   func(a, b uint32) bool { return a <= b },
	CMP_BTEST: func(a, b uint32) bool { return a&(1<<(b&0x1f)) != 0 },
}

var cmpFnNames = [NUM_CMP_FNS]string{
	"cmpeq", "cmpneq", "cmplt", "cmple", "cmpult", "cmpule", "btest",
}

type predFn func(a, b bool) bool

var predFns = [NUM_PCMP_FNS]predFn{
	PCMP_OR:  func(a, b bool) bool { return a || b },
	PCMP_AND: func(a, b bool) bool { return a && b },
	PCMP_XOR: func(a, b bool) bool { return a != b },
	PCMP_NOR: func(a, b bool) bool { return !(a || b) },
}

var predFnNames = [NUM_PCMP_FNS]string{"por", "pand", "pxor", "pnor"}

// All instructions by ID. The slices below index the same entries by
// format and function for the decoder
var (
	Opcodes []*Opcode

	opALUi  [NUM_ALU_FNS]*Opcode
	opALUl  [NUM_ALU_FNS]*Opcode
	opALUr  [NUM_ALU_FNS]*Opcode
	opALUu  [NUM_ALUU_FNS]*Opcode
	opALUm  [NUM_ALUM_FNS]*Opcode
	opALUc  [NUM_CMP_FNS]*Opcode
	opALUci [NUM_CMP_FNS]*Opcode
	opALUp  [NUM_PCMP_FNS]*Opcode
	opSPC   [NUM_SPC_FNS]*Opcode
	opLDT   [NUM_LDT_FNS]*Opcode
	opSTT   [NUM_STT_FNS]*Opcode
	opSTC   [NUM_STC_FNS]*Opcode
	opCFLi  [NUM_CFL_FNS]*Opcode
	opCFLrs [NUM_CFLR_FNS]*Opcode
	opRet   *Opcode
	opIntr  *Opcode
)

func init() {
	buildOpcodeTable()
}

func register(op *Opcode) *Opcode {
	op.ID = len(Opcodes)
	Opcodes = append(Opcodes, op)
	return op
}

// Selects the memory a typed load or store accesses
func (s *Simulator) memFor(target memTarget) Memory {
	switch target {
	case TARGET_STACK_CACHE:
		return s.StackCache
	case TARGET_LOCAL:
		return s.LocalMemory
	case TARGET_DATA_CACHE:
		return s.DataCache
	}
	return s.Memory
}

// The default IF behavior shared by every instruction: advance the
// program counter
func nopIF(s *Simulator, ops *InstrData) {
	s.PC = s.NPC
}

// DR helper: latch the predicate
func readPred(s *Simulator, ops *InstrData) {
	ops.DRPred = s.PRR.Get(ops.Pred)
}

// MW behavior shared by the ALU-style instructions: move the EX by-pass
// into the register file and the MW by-pass
func aluMW(s *Simulator, ops *InstrData) {
	if ops.DRPred {
		if ops.GPREXRd.Valid {
			s.GPR.Set(ops.GPREXRd.Reg, ops.GPREXRd.Val)
			ops.GPRMWRd = ops.GPREXRd
		}
		ops.GPREXRd.Reset()
	}
}

func aluMWCommit(s *Simulator, ops *InstrData) {
	if ops.DRPred {
		ops.GPRMWRd.Reset()
	}
}

func predPrefix(ops *InstrData) string {
	if ops.Pred.Negated() {
		return fmt.Sprintf("(!p%d) ", ops.Pred.Index())
	}
	return fmt.Sprintf("(p%d) ", ops.Pred.Index())
}

// Shared shape of the immediate ALU instructions; ALUi carries a short
// immediate, ALUl a full word from the second slot
func newALUImm(name string, fn aluFn) *Opcode {
	return &Opcode{
		Name: name,
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			ops.DRRs1 = s.GPR.Get(ops.Ops.Rs1)
		},
		EX: func(s *Simulator, ops *InstrData) {
			ops.EXResult = fn(readGPREX(s, ops.DRRs1), ops.Ops.Imm)
		},
		EXCommit: func(s *Simulator, ops *InstrData) {
			if ops.DRPred {
				ops.GPREXRd.Set(ops.Ops.Rd, ops.EXResult)
			}
		},
		MW:       aluMW,
		MWCommit: aluMWCommit,
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%s%s r%d = r%d, %d", predPrefix(ops), name,
				ops.Ops.Rd, ops.Ops.Rs1, int32(ops.Ops.Imm))
		},
	}
}

func makeALUi(name string, fn aluFn) *Opcode {
	return register(newALUImm(name+"i", fn))
}

func makeALUl(name string, fn aluFn) *Opcode {
	op := newALUImm(name+"l", fn)
	op.Print = func(ops *InstrData, symbols *SymbolMap) string {
		return fmt.Sprintf("%s%sl r%d = r%d, %d%s", predPrefix(ops), name,
			ops.Ops.Rd, ops.Ops.Rs1, int32(ops.Ops.Imm), symbols.Find(ops.Ops.Imm))
	}
	return register(op)
}

func makeALUr(name string, fn aluFn) *Opcode {
	return register(&Opcode{
		Name: name,
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			ops.DRRs1 = s.GPR.Get(ops.Ops.Rs1)
			ops.DRRs2 = s.GPR.Get(ops.Ops.Rs2)
		},
		EX: func(s *Simulator, ops *InstrData) {
			ops.EXResult = fn(readGPREX(s, ops.DRRs1), readGPREX(s, ops.DRRs2))
		},
		EXCommit: func(s *Simulator, ops *InstrData) {
			if ops.DRPred {
				ops.GPREXRd.Set(ops.Ops.Rd, ops.EXResult)
			}
		},
		MW:       aluMW,
		MWCommit: aluMWCommit,
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%s%s r%d = r%d, r%d", predPrefix(ops), name,
				ops.Ops.Rd, ops.Ops.Rs1, ops.Ops.Rs2)
		},
	})
}

func makeALUu(name string, fn aluUnaryFn) *Opcode {
	return register(&Opcode{
		Name: name,
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			ops.DRRs1 = s.GPR.Get(ops.Ops.Rs1)
		},
		EX: func(s *Simulator, ops *InstrData) {
			ops.EXResult = fn(readGPREX(s, ops.DRRs1))
		},
		EXCommit: func(s *Simulator, ops *InstrData) {
			if ops.DRPred {
				ops.GPREXRd.Set(ops.Ops.Rd, ops.EXResult)
			}
		},
		MW:       aluMW,
		MWCommit: aluMWCommit,
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%s%s r%d = r%d", predPrefix(ops), name,
				ops.Ops.Rd, ops.Ops.Rs1)
		},
	})
}

func makeALUm(name string, signed bool) *Opcode {
	return register(&Opcode{
		Name: name,
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			ops.DRRs1 = s.GPR.Get(ops.Ops.Rs1)
			ops.DRRs2 = s.GPR.Get(ops.Ops.Rs2)
		},
		EX: func(s *Simulator, ops *InstrData) {
			a := readGPREX(s, ops.DRRs1)
			b := readGPREX(s, ops.DRRs2)
			var result uint64
			if signed {
				result = uint64(int64(int32(a)) * int64(int32(b)))
			} else {
				result = uint64(a) * uint64(b)
			}
			ops.EXMull = uint32(result)
			ops.EXMulh = uint32(result >> 32)
		},
		MW: func(s *Simulator, ops *InstrData) {
			if ops.DRPred {
				s.SPR.Set(SPR_SL, ops.EXMull)
				s.SPR.Set(SPR_SH, ops.EXMulh)
			}
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%s%s r%d, r%d", predPrefix(ops), name,
				ops.Ops.Rs1, ops.Ops.Rs2)
		},
	})
}

func makeALUc(name string, fn cmpFn) *Opcode {
	return register(&Opcode{
		Name: name,
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			ops.DRRs1 = s.GPR.Get(ops.Ops.Rs1)
			ops.DRRs2 = s.GPR.Get(ops.Ops.Rs2)
		},
		EX: func(s *Simulator, ops *InstrData) {
			if ops.DRPred {
				s.PRR.Set(ops.Ops.Pd, fn(readGPREX(s, ops.DRRs1), readGPREX(s, ops.DRRs2)))
			}
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%s%s p%d = r%d, r%d", predPrefix(ops), name,
				ops.Ops.Pd, ops.Ops.Rs1, ops.Ops.Rs2)
		},
	})
}

func makeALUci(name string, fn cmpFn) *Opcode {
	return register(&Opcode{
		Name: name,
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			ops.DRRs1 = s.GPR.Get(ops.Ops.Rs1)
		},
		EX: func(s *Simulator, ops *InstrData) {
			if ops.DRPred {
				s.PRR.Set(ops.Ops.Pd, fn(readGPREX(s, ops.DRRs1), ops.Ops.Imm))
			}
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%s%s p%d = r%d, %d", predPrefix(ops), name,
				ops.Ops.Pd, ops.Ops.Rs1, ops.Ops.Imm)
		},
	})
}

func makeALUp(name string, fn predFn) *Opcode {
	return register(&Opcode{
		Name: name,
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			ops.DRPs1 = s.PRR.Get(ops.Ops.Ps1)
			ops.DRPs2 = s.PRR.Get(ops.Ops.Ps2)
		},
		EX: func(s *Simulator, ops *InstrData) {
			if ops.DRPred {
				s.PRR.Set(ops.Ops.Pd, fn(ops.DRPs1, ops.DRPs2))
			}
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%s%s p%d = p%d, p%d", predPrefix(ops), name,
				ops.Ops.Pd, ops.Ops.Ps1.Index(), ops.Ops.Ps2.Index())
		},
	})
}

// A nop taking a configurable number of cycles; stalls at DR until the
// cycle count is reached
func makeNopN() *Opcode {
	return register(&Opcode{
		Name: "nop",
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			if ops.DRPred && ops.DRImm != ops.Ops.Imm {
				ops.DRImm++
				s.pipelineStall(SDR)
			}
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%snop %d", predPrefix(ops), ops.Ops.Imm)
		},
	})
}

// Waits at DR for an outstanding decoupled load to complete
func makeWaitM() *Opcode {
	return register(&Opcode{
		Name: "waitm",
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			if ops.DRPred && s.IsDecoupledLoadActive {
				s.pipelineStall(SDR)
			}
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return predPrefix(ops) + "waitm"
		},
	})
}

// Moves a general purpose register into a special register. Writing s0
// restores the predicate bank from a bit vector
func makeMts() *Opcode {
	return register(&Opcode{
		Name: "mts",
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			ops.DRRs1 = s.GPR.Get(ops.Ops.Rs1)
		},
		EX: func(s *Simulator, ops *InstrData) {
			if ops.DRPred {
				result := readGPREX(s, ops.DRRs1)
				if ops.Ops.Sd == 0 {
					s.PRR.SetBits(result)
				} else {
					s.SPR.Set(ops.Ops.Sd, result)
				}
			}
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%smts s%d = r%d", predPrefix(ops), ops.Ops.Sd, ops.Ops.Rs1)
		},
	})
}

// Moves a special register into a general purpose register. Reading s0
// yields the predicate bank as a bit vector
func makeMfs() *Opcode {
	return register(&Opcode{
		Name: "mfs",
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			if ops.Ops.Ss == 0 {
				ops.DRSs = s.PRR.Bits()
			} else {
				ops.DRSs = s.SPR.Get(ops.Ops.Ss)
			}
		},
		EX: func(s *Simulator, ops *InstrData) {
			// special registers are not forwarded
			ops.EXResult = ops.DRSs
		},
		EXCommit: func(s *Simulator, ops *InstrData) {
			if ops.DRPred {
				ops.GPREXRd.Set(ops.Ops.Rd, ops.EXResult)
			}
		},
		MW:       aluMW,
		MWCommit: aluMWCommit,
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%smfs r%d = s%d", predPrefix(ops), ops.Ops.Rd, ops.Ops.Ss)
		},
	})
}

func makeLoad(name string, target memTarget, size AccessSize, signed bool) *Opcode {
	return register(&Opcode{
		Name: name,
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			ops.DRRs1 = s.GPR.Get(ops.Ops.Rs1)
		},
		EX: func(s *Simulator, ops *InstrData) {
			ops.EXAddress = readGPREX(s, ops.DRRs1) + ops.Ops.Imm*uint32(size)
		},
		MW: func(s *Simulator, ops *InstrData) {
			if !ops.DRPred {
				return
			}
			if ops.EXAddress&(uint32(size)-1) != 0 {
				raiseUnaligned(ops.EXAddress)
			}
			v, ok := readFixed(s.memFor(target), ops.EXAddress, size)
			if !ok {
				s.pipelineStall(SMW)
				return
			}
			v = extendValue(v, size, signed)
			s.GPR.Set(ops.Ops.Rd, v)
			ops.GPRMWRd.Set(ops.Ops.Rd, v)
		},
		MWCommit: aluMWCommit,
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%s%s r%d = [r%d + %d]", predPrefix(ops), name,
				ops.Ops.Rd, ops.Ops.Rs1, int32(ops.Ops.Imm))
		},
	})
}

// A decoupled load leaves the pipeline at EX and completes through the
// side channel; the result lands in the sm special register
func makeDecoupledLoad(name string, target memTarget, size AccessSize, signed bool) *Opcode {
	return register(&Opcode{
		Name: name,
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			ops.DRRs1 = s.GPR.Get(ops.Ops.Rs1)
			if ops.DRPred && s.IsDecoupledLoadActive {
				s.pipelineStall(SDR)
			}
		},
		EX: func(s *Simulator, ops *InstrData) {
			ops.EXAddress = readGPREX(s, ops.DRRs1) + ops.Ops.Imm*uint32(size)
			if ops.DRPred {
				// a stalled EX stage re-runs; re-parking the same record
				// is idempotent, a different one is a serialization bug
				if s.IsDecoupledLoadActive &&
					(s.DecoupledLoad.I != ops.I || s.DecoupledLoad.EXAddress != ops.EXAddress) {
					panicFmt("core: decoupled load issued while the channel is active")
				}
				s.DecoupledLoad = *ops
				s.IsDecoupledLoadActive = true
			}
		},
		DMW: func(s *Simulator, ops *InstrData) {
			if ops.EXAddress&(uint32(size)-1) != 0 {
				raiseUnaligned(ops.EXAddress)
			}
			v, ok := readFixed(s.memFor(target), ops.EXAddress, size)
			if !ok {
				return
			}
			s.SPR.Set(SPR_SM, extendValue(v, size, signed))
			s.DecoupledLoad = InstrData{}
			s.IsDecoupledLoadActive = false
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%s%s sm = [r%d + %d]", predPrefix(ops), name,
				ops.Ops.Rs1, int32(ops.Ops.Imm))
		},
	})
}

func makeStore(name string, target memTarget, size AccessSize) *Opcode {
	return register(&Opcode{
		Name: name,
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			ops.DRRs1 = s.GPR.Get(ops.Ops.Rs1)
			ops.DRRs2 = s.GPR.Get(ops.Ops.Rs2)
		},
		EX: func(s *Simulator, ops *InstrData) {
			ops.EXAddress = readGPREX(s, ops.DRRs1) + ops.Ops.Imm*uint32(size)
			ops.EXRs = readGPREX(s, ops.DRRs2)
		},
		MW: func(s *Simulator, ops *InstrData) {
			if !ops.DRPred {
				return
			}
			if ops.EXAddress&(uint32(size)-1) != 0 {
				raiseUnaligned(ops.EXAddress)
			}
			if !writeFixed(s.memFor(target), ops.EXAddress, size, ops.EXRs) {
				s.pipelineStall(SMW)
			}
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%s%s [r%d + %d] = r%d", predPrefix(ops), name,
				ops.Ops.Rs1, int32(ops.Ops.Imm), ops.Ops.Rs2)
		},
	})
}

// sres/sens/sfree: the stack top is read from st at DR, the stack cache
// operation runs at MW (stalling while a transfer is in flight), and the
// adjusted stack top is committed back to st
func makeStackControl(name string,
	fn func(c StackCache, size uint32, stackTop *uint32) bool) *Opcode {
	return register(&Opcode{
		Name: name,
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			ops.DRSs = s.SPR.Get(SPR_ST)
		},
		MW: func(s *Simulator, ops *InstrData) {
			stackTop := ops.DRSs
			if ops.DRPred && !fn(s.StackCache, ops.Ops.Imm*STACK_BLOCK_SIZE, &stackTop) {
				s.pipelineStall(SMW)
			}
			s.SPR.Set(SPR_ST, stackTop)
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%s%s %d", predPrefix(ops), name, ops.Ops.Imm)
		},
	})
}

// IF hook shared by control flow instructions: capture the issue-time PC
// for PC-relative targets before advancing. The PC moves on by the time
// EX runs, so EX must use this latch
func pflIF(s *Simulator, ops *InstrData) {
	if s.PC != s.NPC {
		ops.IFPC = s.PC
	}
	nopIF(s, ops)
}

// Stores the caller's method base and return offset into the return
// registers
func storeReturnAddress(s *Simulator, ops *InstrData, pred bool, base, pc uint32) {
	if pred && !ops.EXPFLDiscard {
		s.GPR.Set(REG_RFB, base)
		s.GPR.Set(REG_RFO, pc-base)
	}
}

// Dispatches to a method that may not be resident: the method cache
// loads it while the pipeline stalls at EX, then the PC moves
func fetchAndDispatch(s *Simulator, ops *InstrData, pred bool, base, addr uint32) {
	if pred && !ops.EXPFLDiscard {
		if !s.InstrCache.LoadMethod(base) {
			s.pipelineStall(SEX)
		} else {
			s.BASE = base
			s.PC = addr
			s.NPC = addr
			ops.EXPFLDiscard = true
		}
	}
}

// Dispatches inside a method that is known to be resident
func dispatch(s *Simulator, ops *InstrData, pred bool, base, addr uint32) {
	if pred && !ops.EXPFLDiscard {
		if !s.InstrCache.IsAvailable(base) {
			panicFmt("core: dispatch to a method that is not resident: 0x%x", base)
		}
		s.BASE = base
		s.PC = addr
		s.NPC = addr
		ops.EXPFLDiscard = true
	}
}

func pflDR(s *Simulator, ops *InstrData) {
	readPred(s, ops)
	ops.EXPFLDiscard = false
}

func makeCall() *Opcode {
	return register(&Opcode{
		Name: "call",
		Flow: true,
		IF:   pflIF,
		DR:   pflDR,
		EX: func(s *Simulator, ops *InstrData) {
			target := ops.Ops.Imm * 4
			ops.EXAddress = target
			storeReturnAddress(s, ops, ops.DRPred, s.BASE, s.NPC)
			fetchAndDispatch(s, ops, ops.DRPred, target, target)
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%scall %d%s", predPrefix(ops), int32(ops.Ops.Imm),
				symbols.Find(ops.Ops.Imm*4))
		},
	})
}

func makeBr() *Opcode {
	return register(&Opcode{
		Name: "br",
		Flow: true,
		IF:   pflIF,
		DR:   pflDR,
		EX: func(s *Simulator, ops *InstrData) {
			target := ops.IFPC + ops.Ops.Imm*4
			ops.EXAddress = target
			dispatch(s, ops, ops.DRPred, s.BASE, target)
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%sbr %d", predPrefix(ops), int32(ops.Ops.Imm))
		},
	})
}

func makeCallr() *Opcode {
	return register(&Opcode{
		Name: "callr",
		Flow: true,
		IF:   pflIF,
		DR: func(s *Simulator, ops *InstrData) {
			pflDR(s, ops)
			ops.DRRs1 = s.GPR.Get(ops.Ops.Rs1)
		},
		EX: func(s *Simulator, ops *InstrData) {
			target := readGPREX(s, ops.DRRs1)
			ops.EXAddress = target
			storeReturnAddress(s, ops, ops.DRPred, s.BASE, s.NPC)
			fetchAndDispatch(s, ops, ops.DRPred, target, target)
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%scallr r%d", predPrefix(ops), ops.Ops.Rs1)
		},
	})
}

func makeBrr() *Opcode {
	return register(&Opcode{
		Name: "brr",
		Flow: true,
		IF:   pflIF,
		DR: func(s *Simulator, ops *InstrData) {
			pflDR(s, ops)
			ops.DRRs1 = s.GPR.Get(ops.Ops.Rs1)
		},
		EX: func(s *Simulator, ops *InstrData) {
			target := ops.IFPC + readGPREX(s, ops.DRRs1)
			ops.EXAddress = target
			dispatch(s, ops, ops.DRPred, s.BASE, target)
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%sbrr r%d", predPrefix(ops), ops.Ops.Rs1)
		},
	})
}

// Returns to the caller through the return base and offset registers.
// A return to base 0 halts the machine, surfacing the exit code held in
// r1
func makeRet() *Opcode {
	return register(&Opcode{
		Name: "ret",
		Flow: true,
		IF:   pflIF,
		DR: func(s *Simulator, ops *InstrData) {
			readPred(s, ops)
			ops.DRBase = s.GPR.Value(ops.Ops.Rb)
			ops.DROffset = s.GPR.Value(ops.Ops.Ro)
			ops.EXPFLDiscard = false
		},
		EX: func(s *Simulator, ops *InstrData) {
			if ops.DRPred && ops.DRBase == 0 {
				// halting: freeze the earlier stages and let this
				// instruction drain to MW
				s.pipelineStall(SDR)
			} else {
				fetchAndDispatch(s, ops, ops.DRPred, ops.DRBase, ops.DRBase+ops.DROffset)
			}
		},
		MWCommit: func(s *Simulator, ops *InstrData) {
			if ops.DRPred && ops.DRBase == 0 {
				raiseHalt(s.GPR.Value(REG_EXIT_CODE))
			}
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("%sret r%d, r%d", predPrefix(ops), ops.Ops.Rb, ops.Ops.Ro)
		},
	})
}

// The bundle synthesized by the interrupt unit: an unconditional
// dispatch to the handler address
func makeIntr() *Opcode {
	return register(&Opcode{
		Name: "intr",
		Flow: true,
		IF:   pflIF,
		DR:   pflDR,
		EX: func(s *Simulator, ops *InstrData) {
			ops.EXAddress = ops.Ops.Imm
			fetchAndDispatch(s, ops, ops.DRPred, ops.Ops.Imm, ops.Ops.Imm)
		},
		Print: func(ops *InstrData, symbols *SymbolMap) string {
			return fmt.Sprintf("intr %08x", ops.Ops.Imm)
		},
	})
}

func buildOpcodeTable() {
	if len(Opcodes) != 0 {
		return
	}

	for i := 0; i < NUM_ALU_FNS; i++ {
		opALUi[i] = makeALUi(aluFnNames[i], aluFns[i])
	}
	for i := 0; i < NUM_ALU_FNS; i++ {
		opALUl[i] = makeALUl(aluFnNames[i], aluFns[i])
	}
	for i := 0; i < NUM_ALU_FNS; i++ {
		opALUr[i] = makeALUr(aluFnNames[i], aluFns[i])
	}
	for i := 0; i < NUM_ALUU_FNS; i++ {
		opALUu[i] = makeALUu(aluUnaryFnNames[i], aluUnaryFns[i])
	}
	opALUm[ALUM_MUL] = makeALUm("mul", true)
	opALUm[ALUM_MULU] = makeALUm("mulu", false)
	for i := 0; i < NUM_CMP_FNS; i++ {
		opALUc[i] = makeALUc(cmpFnNames[i], cmpFns[i])
	}
	for i := 0; i < NUM_CMP_FNS; i++ {
		opALUci[i] = makeALUci(cmpFnNames[i]+"i", cmpFns[i])
	}
	for i := 0; i < NUM_PCMP_FNS; i++ {
		opALUp[i] = makeALUp(predFnNames[i], predFns[i])
	}

	opSPC[SPC_NOP] = makeNopN()
	opSPC[SPC_WAIT] = makeWaitM()
	opSPC[SPC_MTS] = makeMts()
	opSPC[SPC_MFS] = makeMfs()

	targets := []struct {
		suffix string
		target memTarget
	}{
		{"s", TARGET_STACK_CACHE},
		{"l", TARGET_LOCAL},
		{"c", TARGET_DATA_CACHE},
		{"m", TARGET_GLOBAL},
	}
	widths := []struct {
		prefix string
		size   AccessSize
		signed bool
	}{
		{"lw", ACCESS_WORD, true},
		{"lh", ACCESS_HALFWORD, true},
		{"lb", ACCESS_BYTE, true},
		{"lwu", ACCESS_WORD, false},
		{"lhu", ACCESS_HALFWORD, false},
		{"lbu", ACCESS_BYTE, false},
	}
	idx := 0
	for _, t := range targets {
		for _, w := range widths {
			opLDT[idx] = makeLoad(w.prefix+t.suffix, t.target, w.size, w.signed)
			idx++
		}
	}
	for _, t := range targets[2:] {
		for _, w := range widths {
			opLDT[idx] = makeDecoupledLoad("d"+w.prefix+t.suffix, t.target, w.size, w.signed)
			idx++
		}
	}

	storeWidths := []struct {
		prefix string
		size   AccessSize
	}{
		{"sw", ACCESS_WORD},
		{"sh", ACCESS_HALFWORD},
		{"sb", ACCESS_BYTE},
	}
	idx = 0
	for _, t := range targets {
		for _, w := range storeWidths {
			opSTT[idx] = makeStore(w.prefix+t.suffix, t.target, w.size)
			idx++
		}
	}

	opSTC[STC_RES] = makeStackControl("sres", StackCache.Reserve)
	opSTC[STC_ENS] = makeStackControl("sens", StackCache.Ensure)
	opSTC[STC_FREE] = makeStackControl("sfree", StackCache.Free)

	opCFLi[CFL_CALL] = makeCall()
	opCFLi[CFL_BR] = makeBr()
	opCFLrs[CFLR_CALLR] = makeCallr()
	opCFLrs[CFLR_BRR] = makeBrr()
	opRet = makeRet()
	opIntr = makeIntr()
}
