package simulator

import (
	"fmt"
	"io"
	"strings"
)

type DebugFormat uint32

const (
	DF_SHORT        DebugFormat = iota // one line of register values
	DF_TRACE                           // PC and cycle per committed cycle
	DF_INSTRUCTIONS                    // disassembly of the EX stage per cycle
	DF_BLOCKS                          // a line each time the PC enters a symbol
	DF_CALLS                           // a line per call/return edge
	DF_DEFAULT                         // full register dump per cycle
	DF_LONG                            // register dump plus pipeline state
	DF_ALL                             // long output plus the request queue of a fixed-delay main memory; no cache state is printed
)

// Parses a debug format name as used on the command line
func ParseDebugFormat(name string) (DebugFormat, bool) {
	switch strings.ToLower(name) {
	case "short":
		return DF_SHORT, true
	case "trace":
		return DF_TRACE, true
	case "instructions", "instr":
		return DF_INSTRUCTIONS, true
	case "blocks":
		return DF_BLOCKS, true
	case "calls":
		return DF_CALLS, true
	case "default":
		return DF_DEFAULT, true
	case "long":
		return DF_LONG, true
	case "all":
		return DF_ALL, true
	}
	return DF_DEFAULT, false
}

// Emits the debug output of the current cycle, before the pipeline
// shifts
func (s *Simulator) printCycle() {
	w := s.Debug.Out
	switch s.Debug.Fmt {
	case DF_TRACE:
		fmt.Fprintf(w, "%08x %d\n", s.PC, s.Cycle)

	case DF_INSTRUCTIONS:
		s.printInstructions(w, SEX)

	case DF_BLOCKS:
		if s.Symbols.Contains(s.PC) {
			fmt.Fprintf(w, "%08x %9d %s\n", s.PC, s.Cycle, s.Symbols.Find(s.PC))
		}

	case DF_CALLS:
		s.printCallEdges(w)

	case DF_SHORT, DF_DEFAULT:
		s.PrintRegisters(w, s.Debug.Fmt)

	case DF_LONG, DF_ALL:
		s.PrintRegisters(w, s.Debug.Fmt)
		s.printPipeline(w)
		if s.Debug.Fmt == DF_ALL {
			if m, ok := s.Memory.(*FixedDelayMemory); ok {
				fmt.Fprintf(w, "Memory:\n")
				m.DumpState(w)
			}
		}
	}
}

// Prints the disassembly of one stage with an operand snapshot,
// right-aligned past the mnemonics
func (s *Simulator) printInstructions(w io.Writer, stage int) {
	var sb strings.Builder
	for slot := 0; slot < NUM_SLOTS; slot++ {
		if slot != 0 {
			sb.WriteString(" || ")
		}
		sb.WriteString(s.Pipeline[stage][slot].String())
	}

	fmt.Fprintf(w, "%08x %9d %-50s", s.PC, s.Cycle, sb.String())
	for slot := 0; slot < NUM_SLOTS; slot++ {
		ops := &s.Pipeline[stage][slot]
		if ops.I == nil {
			continue
		}
		fmt.Fprintf(w, " [%d: res=%08x addr=%08x]", slot, ops.EXResult, ops.EXAddress)
	}
	fmt.Fprintf(w, "\n")
}

// Prints a line for every executed call or return reaching the last
// pipeline stage: calls with their argument registers, returns with
// the return value registers
func (s *Simulator) printCallEdges(w io.Writer) {
	ops := &s.Pipeline[NUM_STAGES-1][0]
	if ops.I == nil || !ops.DRPred {
		return
	}
	if strings.HasPrefix(ops.I.Name, "call") {
		fmt.Fprintf(w, "%9d: call %08x %s args: r3=%08x r4=%08x r5=%08x r6=%08x r7=%08x r8=%08x\n",
			s.Cycle, ops.EXAddress, s.Symbols.Find(ops.EXAddress),
			s.GPR.Value(3), s.GPR.Value(4), s.GPR.Value(5),
			s.GPR.Value(6), s.GPR.Value(7), s.GPR.Value(8))
	} else if strings.HasPrefix(ops.I.Name, "ret") {
		fmt.Fprintf(w, "%9d: ret  %08x %s retval: r1=%08x r2=%08x\n",
			s.Cycle, ops.EXAddress, s.Symbols.Find(ops.EXAddress),
			s.GPR.Value(1), s.GPR.Value(2))
	}
}

// Prints the register files. The short format packs everything into a
// single line
func (s *Simulator) PrintRegisters(w io.Writer, fmt_ DebugFormat) {
	if fmt_ == DF_SHORT {
		for r := uint32(0); r < NUM_GPR; r++ {
			fmt.Fprintf(w, " r%-2d: %08x", r, s.GPR.Value(r))
		}
		fmt.Fprintf(w, "\n")
		return
	}

	fmt.Fprintf(w, "\nCyc : %d\n PRR: ", s.Cycle)
	for p := NUM_PRR - 1; p >= 0; p-- {
		fmt.Fprintf(w, "%d", oneIfTrue(s.PRR.Get(PredSel(p))))
	}
	fmt.Fprintf(w, "  BASE: %08x   PC : %08x   %s\n ", s.BASE, s.PC, s.Symbols.Find(s.PC))

	for r := uint32(0); r < NUM_GPR; r++ {
		fmt.Fprintf(w, "r%-2d: %08x", r, s.GPR.Value(r))
		if r&0x7 == 7 {
			fmt.Fprintf(w, "\n ")
		} else {
			fmt.Fprintf(w, "   ")
		}
	}

	fmt.Fprintf(w, "s0 : %08x   ", s.PRR.Bits())
	for r := uint32(1); r < NUM_SPR; r++ {
		fmt.Fprintf(w, "s%-2d: %08x", r, s.SPR.Get(r))
		if r&0x7 == 7 {
			fmt.Fprintf(w, "\n ")
		} else {
			fmt.Fprintf(w, "   ")
		}
	}
	fmt.Fprintf(w, "\n")
}

var stageNames = [NUM_STAGES]string{"IF", "DR", "EX", "MW"}

// Prints the instructions currently in each pipeline stage
func (s *Simulator) printPipeline(w io.Writer) {
	for stage := 0; stage < NUM_STAGES; stage++ {
		fmt.Fprintf(w, "%s : ", stageNames[stage])
		for slot := 0; slot < NUM_SLOTS; slot++ {
			if slot != 0 {
				fmt.Fprintf(w, " || ")
			}
			fmt.Fprintf(w, "%s", s.Pipeline[stage][slot].String())
		}
		fmt.Fprintf(w, "\n")
	}
	if s.IsDecoupledLoadActive {
		fmt.Fprintf(w, "dMW: %s\n", s.DecoupledLoad.String())
	}
}
