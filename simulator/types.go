package simulator

import "fmt"

// Number of pipeline stages and issue slots
const (
	SIF = iota // instruction fetch
	SDR        // decode and register read
	SEX        // execute
	SMW        // memory access and register writeback

	NUM_STAGES = 4
	NUM_SLOTS  = 2
)

// Number of bytes in the global main memory
const MAIN_MEMORY_SIZE = 0x4000000

// Number of bytes in the core-local scratchpad memory
const LOCAL_MEMORY_SIZE = 0x800

// Size of one stack cache block
const STACK_BLOCK_SIZE = 4

// Size of one method cache block
const METHOD_BLOCK_SIZE = 32

// Number of blocks fetched into the method cache before the first instruction
const METHOD_INIT_BLOCKS = 4

// Names of general purpose registers
var RegisterNames = []string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7", // 00
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15", // 08
	"r16", "r17", "r18", "r19", "r20", "r21", "r22", "r23", // 10
	"r24", "r25", "r26", "r27", "r28", "r29", "rfb", "rfo", // 18
}

// Returns the name of the register index
func GetRegisterName(index uint32) string {
	return RegisterNames[index]
}

// Returns the register index by it's name (in RegisterNames).
// Returns 0 if the register name does not exist
func GetRegisterIndexByName(name string) uint32 {
	for idx, n := range RegisterNames {
		if n == name {
			return uint32(idx)
		}
	}
	return 0
}

// Formatted panic()
func panicFmt(format string, a ...interface{}) {
	panic(fmt.Sprintf(format, a...))
}

type AccessSize uint32

// Widths of memory accesses supported by the core
var (
	ACCESS_BYTE     AccessSize = 1 // 8 bit
	ACCESS_HALFWORD AccessSize = 2 // 16 bit
	ACCESS_WORD     AccessSize = 4 // 32 bit
)

// Decodes a big endian value from `buf`. The width is taken from the
// slice length (1, 2 or 4 bytes)
func fromBigEndian(buf []byte) uint32 {
	var v uint32
	for _, b := range buf {
		v = v<<8 | uint32(b)
	}
	return v
}

// Encodes the low `len(buf)` bytes of `val` into `buf`, big endian
func toBigEndian(buf []byte, val uint32) {
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = byte(val)
		val >>= 8
	}
}

// Sign- or zero-extends a loaded value of the given width
func extendValue(v uint32, size AccessSize, signed bool) uint32 {
	switch size {
	case ACCESS_BYTE:
		if signed {
			return uint32(int32(int8(v)))
		}
		return v & 0xff
	case ACCESS_HALFWORD:
		if signed {
			return uint32(int32(int16(v)))
		}
		return v & 0xffff
	}
	return v
}

func oneIfTrue(val bool) uint32 {
	if val {
		return 1
	}
	return 0
}

func minUint32(x, y uint32) uint32 {
	if x < y {
		return x
	}
	return y
}

func maxUint32(x, y uint32) uint32 {
	if x > y {
		return x
	}
	return y
}

// Divides `bytes` by `blockBytes`, rounding up
func numBlocks(bytes, blockBytes uint32) uint32 {
	return (bytes + blockBytes - 1) / blockBytes
}

type Range struct {
	Start  uint32 // Start address
	Length uint32 // Length of the mapping
}

func NewRange(start uint32, length uint32) Range {
	return Range{Start: start, Length: length}
}

// Returns whether `addr` is located inside this range
func (r *Range) Contains(addr uint32) bool {
	return addr >= r.Start && addr < r.Start+r.Length
}

// Returns the offset between `addr` and the `Start` of the range.
// Does not check if the range contains the address, so if `addr`
// is smaller than `Start`, there will be an overflow
func (r *Range) Offset(addr uint32) uint32 {
	return addr - r.Start
}
