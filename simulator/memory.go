package simulator

import (
	"fmt"
	"io"
	"math/rand"
	"os"
)

// The interface every memory-like component presents to the pipeline.
// A `true` result of Read/Write means the caller may use the buffer this
// cycle, a `false` result is the signal to stall and retry next cycle
type Memory interface {
	// A simulated access to the read port
	Read(addr uint32, buf []byte, isFetch bool) bool
	// A simulated access to the write port
	Write(addr uint32, buf []byte) bool
	// Reads without simulating timing or side effects
	ReadPeek(addr uint32, buf []byte)
	// Writes without simulating timing
	WritePeek(addr uint32, buf []byte)
	// Returns false while the memory is handling a request
	IsReady() bool
	// Notifies the memory that a cycle passed
	Tick()
}

// Reads a value of the given width through the read port, converting from
// the big endian memory representation
func readFixed(m Memory, addr uint32, size AccessSize) (uint32, bool) {
	var buf [4]byte
	ok := m.Read(addr, buf[:size], false)
	return fromBigEndian(buf[:size]), ok
}

// Writes a value of the given width through the write port in big endian
// memory representation
func writeFixed(m Memory, addr uint32, size AccessSize, val uint32) bool {
	var buf [4]byte
	toBigEndian(buf[:size], val)
	return m.Write(addr, buf[:size])
}

type MemCheck uint32

// Policies for reads of memory that was never written
const (
	MEM_CHECK_NONE      MemCheck = iota // don't track initialization
	MEM_CHECK_WARN                      // warn when any read byte is uninitialized
	MEM_CHECK_WARN_ADDR                 // warn when all read bytes are uninitialized
	MEM_CHECK_ERR                       // error when any read byte is uninitialized
	MEM_CHECK_ERR_ADDR                  // error when all read bytes are uninitialized
)

// An ideal memory: every access is ready in the same cycle. Content is
// initialized lazily (zeroed or randomized) so that reads of bytes that
// were never written can be detected
type IdealMemory struct {
	content  []byte
	mapping  Range  // the address range backed by this memory
	written  []bool // per-byte write tracking, nil when check is off
	frontier uint32 // lazily initialized up to this offset

	randomize bool
	check     MemCheck
	warnOut   io.Writer
}

func NewIdealMemory(size uint32, randomize bool, check MemCheck) *IdealMemory {
	m := &IdealMemory{
		content:   make([]byte, size),
		mapping:   NewRange(0, size),
		randomize: randomize,
		check:     check,
		warnOut:   os.Stderr,
	}
	if check != MEM_CHECK_NONE {
		m.written = make([]bool, size)
	}
	return m
}

// Checks the access against the memory size, lazily initializes content
// and applies the uninitialized-read policy
func (m *IdealMemory) checkInitialize(addr, size uint32, isRead, ignoreErrors bool) {
	if !m.mapping.Contains(addr) || size > m.mapping.Length-addr {
		raiseUnmapped(addr)
	}

	if m.randomize {
		initSize := minUint32(addr+maxUint32(1024, size), m.mapping.Length)
		for ; m.frontier < initSize; m.frontier++ {
			m.content[m.frontier] = byte(rand.Intn(256))
		}
	}

	if m.written == nil {
		return
	}

	if isRead {
		if ignoreErrors || m.check == MEM_CHECK_NONE {
			return
		}
		var cnt uint32
		for i := addr; i < addr+size; i++ {
			if !m.written[i] {
				cnt++
			}
		}
		addrOnly := m.check == MEM_CHECK_WARN_ADDR || m.check == MEM_CHECK_ERR_ADDR
		if (addrOnly && cnt == size) || (!addrOnly && cnt > 0) {
			msg := fmt.Sprintf("read of address 0x%x of size %d reads %d uninitialized bytes",
				addr, size, cnt)
			if m.check == MEM_CHECK_WARN || m.check == MEM_CHECK_WARN_ADDR {
				fmt.Fprintf(m.warnOut, "*** Warning: %s\n", msg)
			} else {
				raiseMsg(EXCEPTION_ILLEGAL_ACCESS, "%s", msg)
			}
		}
	} else {
		for i := addr; i < addr+size; i++ {
			m.written[i] = true
		}
	}
}

func (m *IdealMemory) Read(addr uint32, buf []byte, isFetch bool) bool {
	m.checkInitialize(addr, uint32(len(buf)), true, false)
	copy(buf, m.content[addr:])
	return true
}

func (m *IdealMemory) Write(addr uint32, buf []byte) bool {
	m.checkInitialize(addr, uint32(len(buf)), false, false)
	copy(m.content[addr:], buf)
	return true
}

func (m *IdealMemory) ReadPeek(addr uint32, buf []byte) {
	m.checkInitialize(addr, uint32(len(buf)), true, true)
	copy(buf, m.content[addr:])
}

func (m *IdealMemory) WritePeek(addr uint32, buf []byte) {
	m.checkInitialize(addr, uint32(len(buf)), false, true)
	copy(m.content[addr:], buf)
}

func (m *IdealMemory) IsReady() bool {
	return true
}

func (m *IdealMemory) Tick() {
	// nothing to advance
}

// A pending request against a delayed memory
type memRequest struct {
	Addr           uint32
	Size           uint32
	IsLoad         bool
	IsPosted       bool
	TicksRemaining uint32
	Data           []byte // pending store data, written back on retirement
}

// Statistics of a delayed memory
type MemoryStats struct {
	MaxQueueSize          uint32
	ConsecutiveRequests   uint64
	BusyCycles            uint64
	PostedWriteCycles     uint64 // cycles hidden behind posted writes
	Reads                 uint64
	Writes                uint64
	BytesRead             uint64
	BytesWritten          uint64
	BytesReadTransferred  uint64
	BytesWriteTransferred uint64
	RequestsPerSize       map[uint32]uint64
}

// A memory with a fixed delay per burst. Requests are queued and
// retired front to back; a request is ready once its tick counter
// reaches zero. Writes may be posted: up to a configured number of
// outstanding posted writes return ready immediately
type FixedDelayMemory struct {
	*IdealMemory

	bytesPerBurst   uint32
	ticksPerBurst   uint32
	readDelayTicks  uint32
	numPostedWrites uint32

	requests []memRequest

	// computes the tick budget of a new request; overridden by the
	// variable burst and TDM variants
	transferTicks func(alignedAddr, alignedSize uint32, isLoad, isPosted bool) uint32
	// advances the request at the head of the queue
	tickRequest func(req *memRequest)

	lastAddr   uint32
	lastIsLoad bool

	Stats MemoryStats
}

func NewFixedDelayMemory(size, bytesPerBurst, numPostedWrites, ticksPerBurst,
	readDelayTicks uint32, randomize bool, check MemCheck) *FixedDelayMemory {
	m := &FixedDelayMemory{
		IdealMemory:     NewIdealMemory(size, randomize, check),
		bytesPerBurst:   bytesPerBurst,
		ticksPerBurst:   ticksPerBurst,
		readDelayTicks:  readDelayTicks,
		numPostedWrites: numPostedWrites,
	}
	m.Stats.RequestsPerSize = make(map[uint32]uint64)
	m.transferTicks = m.fixedTransferTicks
	m.tickRequest = func(req *memRequest) {
		req.TicksRemaining--
	}
	return m
}

// Expands an access to the enclosing burst-aligned region
func (m *FixedDelayMemory) alignedSize(addr, size uint32) (uint32, uint32) {
	start := (addr / m.bytesPerBurst) * m.bytesPerBurst
	end := ((addr+size-1)/m.bytesPerBurst + 1) * m.bytesPerBurst
	return start, end - start
}

func (m *FixedDelayMemory) fixedTransferTicks(alignedAddr, alignedSize uint32,
	isLoad, isPosted bool) uint32 {
	bursts := (alignedSize-1)/m.bytesPerBurst + 1
	ticks := m.ticksPerBurst * bursts
	if isLoad || !isPosted {
		ticks += m.readDelayTicks
	}
	return ticks
}

// Finds the open request matching the access, or queues a new one
func (m *FixedDelayMemory) findOrCreateRequest(addr, size uint32, isLoad,
	isPosted bool, data []byte) *memRequest {
	m.checkInitialize(addr, size, isLoad, false)

	for i := range m.requests {
		req := &m.requests[i]
		if req.Addr == addr && req.Size == size && req.IsLoad == isLoad {
			return req
		}
	}

	alignedAddr, alignedSize := m.alignedSize(addr, size)
	ticks := m.transferTicks(alignedAddr, alignedSize, isLoad, isPosted)

	req := memRequest{
		Addr:           addr,
		Size:           size,
		IsLoad:         isLoad,
		IsPosted:       isPosted,
		TicksRemaining: ticks,
	}
	if !isLoad {
		req.Data = append([]byte(nil), data...)
	}
	m.requests = append(m.requests, req)

	if uint32(len(m.requests)) > m.Stats.MaxQueueSize {
		m.Stats.MaxQueueSize = uint32(len(m.requests))
	}
	m.Stats.BusyCycles += uint64(ticks)
	if isLoad == m.lastIsLoad && addr == m.lastAddr {
		m.Stats.ConsecutiveRequests++
	}
	if isLoad {
		m.Stats.Reads++
		m.Stats.BytesRead += uint64(size)
		m.Stats.BytesReadTransferred += uint64(alignedSize)
	} else {
		m.Stats.Writes++
		m.Stats.BytesWritten += uint64(size)
		m.Stats.BytesWriteTransferred += uint64(alignedSize)
	}
	m.lastAddr = addr + size
	m.lastIsLoad = isLoad

	histSize := ((size-1)/4 + 1) * 4
	m.Stats.RequestsPerSize[histSize]++

	return &m.requests[len(m.requests)-1]
}

// Pops the request at the head of the queue, which must match
func (m *FixedDelayMemory) retireFront(req *memRequest) {
	front := &m.requests[0]
	if front.Addr != req.Addr || front.Size != req.Size || front.IsLoad != req.IsLoad {
		panicFmt("memory: retiring request 0x%x which is not at the queue head", req.Addr)
	}
	m.requests = m.requests[1:]
}

func (m *FixedDelayMemory) Read(addr uint32, buf []byte, isFetch bool) bool {
	req := m.findOrCreateRequest(addr, uint32(len(buf)), true, false, nil)
	if req.TicksRemaining != 0 {
		return false
	}
	m.retireFront(req)
	return m.IdealMemory.Read(addr, buf, isFetch)
}

func (m *FixedDelayMemory) Write(addr uint32, buf []byte) bool {
	// writes are added to the queue right away so they do not delay
	// subsequent reads; posted writes return ready while the queue is
	// not saturated
	posted := m.numPostedWrites > 0

	req := m.findOrCreateRequest(addr, uint32(len(buf)), false, posted, buf)
	if req.TicksRemaining == 0 {
		m.retireFront(req)
		return m.IdealMemory.Write(addr, buf)
	}
	if posted {
		return uint32(len(m.requests)) <= m.numPostedWrites
	}
	return false
}

func (m *FixedDelayMemory) IsReady() bool {
	return len(m.requests) == 0
}

func (m *FixedDelayMemory) Tick() {
	// a cycle spent only on posted writes is hidden, not a stall
	if len(m.requests) != 0 && uint32(len(m.requests)) <= m.numPostedWrites {
		posted := true
		for i := range m.requests {
			if !m.requests[i].IsPosted {
				posted = false
				break
			}
		}
		if posted {
			m.Stats.PostedWriteCycles++
		}
	}

	if len(m.requests) != 0 && m.requests[0].TicksRemaining != 0 {
		req := &m.requests[0]
		m.tickRequest(req)

		if req.TicksRemaining == 0 && req.IsPosted {
			m.IdealMemory.Write(req.Addr, req.Data)
			m.requests = m.requests[1:]
		}
	}
}

// Returns the request queue state for debug dumps
func (m *FixedDelayMemory) DumpState(w io.Writer) {
	if len(m.requests) == 0 {
		fmt.Fprintf(w, " IDLE\n")
		return
	}
	for i := range m.requests {
		req := &m.requests[i]
		kind := "STORE"
		if req.IsLoad {
			kind = "LOAD "
		}
		fmt.Fprintf(w, " %s: %d (0x%08x %d)\n", kind, req.TicksRemaining, req.Addr, req.Size)
	}
}

// A memory where a request spanning several pages pays one burst
// set-up per page plus one cycle per remaining word
func NewVariableBurstMemory(size, bytesPerBurst, bytesPerPage, numPostedWrites,
	ticksPerBurst, readDelayTicks uint32, randomize bool, check MemCheck) *FixedDelayMemory {
	m := NewFixedDelayMemory(size, bytesPerBurst, numPostedWrites, ticksPerBurst,
		readDelayTicks, randomize, check)
	m.transferTicks = func(alignedAddr, alignedSize uint32, isLoad, isPosted bool) uint32 {
		startPage := alignedAddr / bytesPerPage
		endPage := (alignedAddr + alignedSize - 1) / bytesPerPage
		numPages := endPage - startPage + 1

		// every page pays for at least one minimum burst; the rest of the
		// bytes transfer at one word per cycle
		ticks := numPages * ticksPerBurst
		length := alignedSize - numPages*bytesPerBurst
		ticks += length / 4

		if isLoad || !isPosted {
			ticks += readDelayTicks
		}
		return ticks
	}
	return m
}

// A memory shared by several cores in a time division multiplexing
// scheme: the queue head only advances at the end of this core's slot
// within a globally periodic round
type TDMMemory struct {
	*FixedDelayMemory

	roundLength  uint32
	roundStart   uint32
	roundCounter uint32
	transferring bool
}

func NewTDMMemory(size, bytesPerBurst, numPostedWrites, numCores, cpuID,
	ticksPerBurst, readDelayTicks, refreshTicks uint32, randomize bool,
	check MemCheck) *TDMMemory {
	m := &TDMMemory{
		FixedDelayMemory: NewFixedDelayMemory(size, bytesPerBurst, numPostedWrites,
			ticksPerBurst, readDelayTicks, randomize, check),
		roundLength: numCores*ticksPerBurst + refreshTicks,
		roundStart:  cpuID * ticksPerBurst,
	}
	if ticksPerBurst+readDelayTicks >= m.roundLength {
		panicFmt("memory: read delay too long, overlapping TDM requests are not supported")
	}

	// requests count down TDM rounds instead of ticks
	m.transferTicks = func(alignedAddr, alignedSize uint32, isLoad, isPosted bool) uint32 {
		return (alignedSize-1)/bytesPerBurst + 1
	}
	m.tickRequest = func(req *memRequest) {
		roundEnd := m.roundStart + ticksPerBurst
		if !req.IsPosted {
			roundEnd += readDelayTicks
		}
		if roundEnd >= m.roundLength {
			roundEnd -= m.roundLength
		}
		if roundEnd == m.roundCounter {
			req.TicksRemaining--
			m.transferring = false
		}
	}
	return m
}

func (m *TDMMemory) Tick() {
	m.roundCounter = (m.roundCounter + 1) % m.roundLength

	// check for outstanding requests at the beginning of our slot
	if m.roundCounter == m.roundStart {
		if m.transferring {
			panicFmt("memory: overlapping TDM transfers are not supported")
		}
		m.transferring = len(m.requests) != 0
	}

	m.FixedDelayMemory.Tick()
}
