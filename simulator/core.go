package simulator

import (
	"io"
	"math"
)

// Per-opcode, per-slot counters
type InstructionStat struct {
	Fetched   uint64
	Retired   uint64
	Discarded uint64
}

// Counters maintained by the cycle loop
type SimStats struct {
	InstructionStats [NUM_SLOTS][]InstructionStat
	BubblesRetired   [NUM_SLOTS]uint64
	StallCycles      [NUM_STAGES]uint64
}

// Debug output settings. Formatting of the individual kinds lives in
// debug.go; the cycle loop only decides when to emit
type DebugOptions struct {
	Fmt        DebugFormat
	Out        io.Writer
	StartCycle uint64
}

// The simulation of a single Patmos core: a dual-issue, in-order, four
// stage pipeline with a decoupled load side channel. All subcomponents
// are held by reference and advanced one tick per simulated cycle
type Simulator struct {
	Cycle uint64

	Memory      Memory     // global main memory
	LocalMemory Memory     // core-local scratchpad
	DataCache   Memory     // data cache over the main memory
	InstrCache  InstrCache // method or instruction cache
	StackCache  StackCache
	Symbols     *SymbolMap
	Decoder     *Decoder
	Interrupts  InterruptSource

	BASE uint32 // base address of the current method
	PC   uint32
	NPC  uint32 // next program counter

	GPR GPR
	PRR PRR
	SPR SPR

	// highest stage that requested a stall this cycle
	Stall int

	Pipeline [NUM_STAGES][NUM_SLOTS]InstrData

	// the decoupled load mailbox, capacity one
	DecoupledLoad         InstrData
	IsDecoupledLoadActive bool

	// fetch cycles to suppress after an interrupt dispatch
	fetchSuppress uint32

	Stats SimStats
	Debug *DebugOptions
}

// Creates a new core simulation. The simulator retains references to
// the memories and caches; it does not copy them
func NewSimulator(memory, localMemory, dataCache Memory, instrCache InstrCache,
	stackCache StackCache, symbols *SymbolMap) *Simulator {
	s := &Simulator{
		Memory:      memory,
		LocalMemory: localMemory,
		DataCache:   dataCache,
		InstrCache:  instrCache,
		StackCache:  stackCache,
		Symbols:     symbols,
		Decoder:     NewDecoder(),
	}

	// without a true predicate no instruction would ever execute
	s.PRR.preds[0] = true

	for j := 0; j < NUM_SLOTS; j++ {
		s.Stats.InstructionStats[j] = make([]InstructionStat, len(Opcodes))
	}
	return s
}

// Raises a stall up to and including the given pipeline stage. The
// effective stall level of the cycle is the maximum requested
func (s *Simulator) pipelineStall(stage int) {
	if stage > s.Stall {
		s.Stall = stage
	}
}

// Runs the read/compute or commit pass of one stage for both slots
func (s *Simulator) pipelineInvoke(stage int, hook func(op *Opcode) StageFn) {
	for slot := 0; slot < NUM_SLOTS; slot++ {
		ops := &s.Pipeline[stage][slot]
		if ops.I == nil {
			continue
		}
		fn := hook(ops.I)
		if fn == nil {
			continue
		}
		fn(s, ops)
	}
}

// Returns true while a control flow instruction is in flight in the
// front of the pipeline, blocking interrupt injection
func (s *Simulator) inBranchShadow() bool {
	for stage := SIF; stage <= SEX; stage++ {
		for slot := 0; slot < NUM_SLOTS; slot++ {
			if op := s.Pipeline[stage][slot].I; op != nil && op.Flow {
				return true
			}
		}
	}
	return false
}

// Fetches and decodes the next bundle, or injects a synthesized
// interrupt dispatch bundle
func (s *Simulator) fetchAndDecode() {
	if s.fetchSuppress > 0 {
		s.fetchSuppress--
		s.Pipeline[SIF][0] = InstrData{}
		s.Pipeline[SIF][1] = InstrData{}
		return
	}

	if s.Interrupts != nil && s.Interrupts.Pending() && !s.inBranchShadow() {
		handler := s.Interrupts.Handler()
		s.Interrupts.Acknowledge()
		s.SPR.Set(SPR_S9, s.PC)

		s.Pipeline[SIF][0] = InstrData{I: opIntr, Ops: Operands{Imm: handler}}
		s.Pipeline[SIF][1] = InstrData{}
		s.fetchSuppress = interruptShadowCycles
		return
	}

	var iw [2]uint32
	if !s.InstrCache.Fetch(s.PC, &iw) {
		// retry the fetch next cycle
		s.Pipeline[SIF][0] = InstrData{}
		s.Pipeline[SIF][1] = InstrData{}
		return
	}

	size := s.Decoder.Decode(iw, &s.Pipeline[SIF])
	if size == 0 {
		raiseIllegal(iw[0])
	}
	s.NPC = s.PC + uint32(size)*4

	for j := 0; j < NUM_SLOTS; j++ {
		if op := s.Pipeline[SIF][j].I; op != nil {
			s.Stats.InstructionStats[j][op.ID].Fetched++
		}
	}
}

// Simulates one cycle
func (s *Simulator) step() {
	debug := s.Debug != nil && s.Cycle >= s.Debug.StartCycle

	// the decoupled load side channel runs ahead of the stages
	if s.IsDecoupledLoadActive && s.DecoupledLoad.I != nil &&
		s.DecoupledLoad.I.DMW != nil {
		s.DecoupledLoad.I.DMW(s, &s.DecoupledLoad)
	}

	// read/compute passes, late stages first so every stage sees the
	// state left by the previous cycle
	s.pipelineInvoke(SMW, func(op *Opcode) StageFn { return op.MW })
	s.pipelineInvoke(SEX, func(op *Opcode) StageFn { return op.EX })
	s.pipelineInvoke(SDR, func(op *Opcode) StageFn { return op.DR })
	s.pipelineInvoke(SIF, func(op *Opcode) StageFn {
		// every instruction advances the PC at IF
		if op.IF == nil {
			return nopIF
		}
		return op.IF
	})

	// commit passes flush the staging fields into global state
	s.pipelineInvoke(SMW, func(op *Opcode) StageFn { return op.MWCommit })
	s.pipelineInvoke(SEX, func(op *Opcode) StageFn { return op.EXCommit })
	s.pipelineInvoke(SDR, func(op *Opcode) StageFn { return op.DRCommit })
	s.pipelineInvoke(SIF, func(op *Opcode) StageFn { return op.IFCommit })

	// expose the cycle counter through the special registers
	s.SPR.Set(SPR_SCL, uint32(s.Cycle))
	s.SPR.Set(SPR_SCH, uint32(s.Cycle>>32))

	// track retired instructions
	if s.Stall != NUM_STAGES-1 {
		for j := 0; j < NUM_SLOTS; j++ {
			ops := &s.Pipeline[NUM_STAGES-1][j]
			if ops.I != nil {
				stat := &s.Stats.InstructionStats[j][ops.I.ID]
				if ops.DRPred {
					stat.Retired++
				} else {
					stat.Discarded++
				}
			} else {
				s.Stats.BubblesRetired[j]++
			}
		}
	}
	s.Stats.StallCycles[s.Stall]++

	if debug {
		s.printCycle()
	}

	// move the pipeline: stages at or above the stall level advance
	for stage := SEX; stage >= s.Stall; stage-- {
		s.Pipeline[stage+1] = s.Pipeline[stage]
	}

	// prevent forwarding out of a stalled EX stage; the instruction
	// re-populates its by-pass when it re-runs
	if s.Stall > SEX {
		for j := 0; j < NUM_SLOTS; j++ {
			s.Pipeline[SEX][j].GPREXRd.Reset()
		}
	}

	if s.Stall == SIF {
		s.fetchAndDecode()
	} else if s.Stall != NUM_STAGES-1 {
		// insert a bubble behind the stalled stages
		for j := 0; j < NUM_SLOTS; j++ {
			s.Pipeline[s.Stall+1][j] = InstrData{}
		}
	}

	s.Stall = SIF

	// advance the time of the clocked collaborators
	s.Memory.Tick()
	s.InstrCache.Tick()
	s.StackCache.Tick()
	s.LocalMemory.Tick()
	s.DataCache.Tick()
}

// Runs the simulation from the given entry point for at most
// `maxCycles` cycles (0 means no limit). Returns nil when the cycle
// budget is exhausted; a HALT simulation error carries the program's
// exit code
func (s *Simulator) Run(entry uint32, maxCycles uint64) (err error) {
	if maxCycles == 0 {
		maxCycles = math.MaxUint64
	}

	if s.Cycle == 0 {
		s.BASE = entry
		s.PC = entry
		s.NPC = entry
		s.InstrCache.Initialize(entry)
	}

	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*SimulationError)
			if !ok {
				panic(r)
			}
			e.PC = s.PC
			e.Cycle = s.Cycle
			err = e
		}
	}()

	for cycle := uint64(0); cycle < maxCycles; cycle++ {
		s.step()
		s.Cycle++
	}
	return nil
}
