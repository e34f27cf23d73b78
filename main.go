package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/zeozeozeo/gopatmos/simulator"
)

func main() {
	// machine configuration
	memKind := flag.String("mem", "fixed", "main memory kind (ideal, fixed, variable, tdm)")
	memSize := ByteSize(64 * 1024 * 1024)
	flag.Var(&memSize, "memsize", "size of the main memory")
	burstSize := ByteSize(16)
	flag.Var(&burstSize, "burst", "burst size of the main memory")
	pageSize := ByteSize(1024)
	flag.Var(&pageSize, "page", "page size of the variable burst memory")
	ticksPerBurst := flag.Uint("tburst", 3, "ticks per burst")
	readDelay := flag.Uint("tdelay", 2, "read delay ticks")
	posted := flag.Uint("posted", 2, "number of posted writes (0 disables posting)")
	cores := flag.Uint("cores", 4, "number of cores sharing a TDM memory")
	cpuID := flag.Uint("cpuid", 0, "TDM slot of this core")
	refresh := flag.Uint("trefresh", 0, "TDM refresh ticks per round")

	dcKind := flag.String("dcache", "lru2", "data cache kind (ideal, no, lru2, lru4, lru8)")
	dcSize := ByteSize(2 * 1024)
	flag.Var(&dcSize, "dcsize", "size of the data cache")
	dcLine := ByteSize(16)
	flag.Var(&dcLine, "dcline", "line size of the data cache")

	icKind := flag.String("icache", "mcache", "instruction cache kind (mcache, fifo, icache, ideal)")
	mcBlocks := flag.Uint("mcblocks", 16, "method cache size in blocks")

	scKind := flag.String("scache", "block", "stack cache kind (ideal, block)")
	scBlocks := flag.Uint("scblocks", 64, "stack cache size in blocks")
	scTotal := flag.Uint("sctotal", 1024, "total stack size in blocks, including spilled data")

	uninit := flag.String("uninit", "off", "uninitialized read policy (off, warn, warnaddr, error, erroraddr)")
	randomize := flag.Bool("randomize", false, "randomize uninitialized memory content")

	// program
	imagePath := flag.String("image", "", "binary image to load")
	loadAddr := flag.Uint("addr", 0, "load address of the image")
	entry := flag.Uint("entry", simulator.METHOD_BLOCK_SIZE, "entry point of the program")
	stackTop := flag.Uint("stacktop", 0x200000, "initial stack top address")
	symbolPath := flag.String("symbols", "", "symbol file (address size name per line)")

	// simulation control
	maxCycles := flag.Uint64("maxcycles", 0, "maximum number of cycles to simulate (0: no limit)")
	debugFmt := flag.String("debug", "", "debug output kind (short, trace, instructions, blocks, calls, default, long, all)")
	debugCycle := flag.Uint64("debugcycle", 0, "first cycle to emit debug output for")
	stats := flag.Bool("stats", true, "print statistics after the run")
	slotStats := flag.Bool("slotstats", false, "break instruction statistics down per issue slot")
	flag.Parse()

	if *imagePath == "" {
		log.Fatal("no image given, use -image")
	}

	check, err := parseMemCheck(*uninit)
	if err != nil {
		log.Fatal(err)
	}

	mem, err := buildMemory(*memKind, uint32(memSize), uint32(burstSize),
		uint32(pageSize), uint32(*posted), uint32(*cores), uint32(*cpuID),
		uint32(*ticksPerBurst), uint32(*readDelay), uint32(*refresh),
		*randomize, check)
	if err != nil {
		log.Fatal(err)
	}

	dcache, err := buildDataCache(*dcKind, mem, uint32(dcSize), uint32(dcLine))
	if err != nil {
		log.Fatal(err)
	}

	icache, err := buildInstrCache(*icKind, mem, uint32(*mcBlocks))
	if err != nil {
		log.Fatal(err)
	}

	scache, err := buildStackCache(*scKind, mem, uint32(*scBlocks), uint32(*scTotal))
	if err != nil {
		log.Fatal(err)
	}

	local := simulator.NewIdealMemory(simulator.LOCAL_MEMORY_SIZE, *randomize, check)

	var symbols *simulator.SymbolMap
	if *symbolPath != "" {
		symbols, err = loadSymbols(*symbolPath)
		if err != nil {
			log.Fatal(err)
		}
	}

	size, err := loadImage(mem, *imagePath, uint32(*loadAddr))
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("loaded %d bytes at 0x%x, entry 0x%x", size, *loadAddr, *entry)

	sim := simulator.NewSimulator(mem, local, dcache, icache, scache, symbols)
	sim.SPR.Set(simulator.SPR_ST, uint32(*stackTop))
	sim.SPR.Set(simulator.SPR_SS, uint32(*stackTop))

	if *debugFmt != "" {
		fmt_, ok := simulator.ParseDebugFormat(*debugFmt)
		if !ok {
			log.Fatalf("unknown debug output kind %q", *debugFmt)
		}
		sim.Debug = &simulator.DebugOptions{
			Fmt:        fmt_,
			Out:        os.Stderr,
			StartCycle: *debugCycle,
		}
	}

	err = sim.Run(uint32(*entry), *maxCycles)

	if *stats {
		sim.PrintStats(os.Stdout, *slotStats)
	}

	if err == nil {
		// cycle budget exhausted
		os.Exit(0)
	}
	simErr, ok := err.(*simulator.SimulationError)
	if !ok {
		log.Fatal(err)
	}
	if simErr.Kind == simulator.EXCEPTION_HALT {
		fmt.Fprintf(os.Stderr, "halted after %d cycles, exit code %d\n",
			simErr.Cycle, simErr.Info)
		os.Exit(int(simErr.Info & 0xff))
	}
	log.Fatal(simErr)
}

func parseMemCheck(kind string) (simulator.MemCheck, error) {
	switch strings.ToLower(kind) {
	case "off", "":
		return simulator.MEM_CHECK_NONE, nil
	case "warn":
		return simulator.MEM_CHECK_WARN, nil
	case "warnaddr":
		return simulator.MEM_CHECK_WARN_ADDR, nil
	case "error":
		return simulator.MEM_CHECK_ERR, nil
	case "erroraddr":
		return simulator.MEM_CHECK_ERR_ADDR, nil
	}
	return 0, fmt.Errorf("unknown uninitialized read policy %q", kind)
}

func buildMemory(kind string, size, burst, page, posted, cores, cpuID,
	tburst, tdelay, refresh uint32, randomize bool,
	check simulator.MemCheck) (simulator.Memory, error) {
	switch strings.ToLower(kind) {
	case "ideal":
		return simulator.NewIdealMemory(size, randomize, check), nil
	case "fixed":
		return simulator.NewFixedDelayMemory(size, burst, posted, tburst, tdelay,
			randomize, check), nil
	case "variable":
		return simulator.NewVariableBurstMemory(size, burst, page, posted, tburst,
			tdelay, randomize, check), nil
	case "tdm":
		return simulator.NewTDMMemory(size, burst, posted, cores, cpuID, tburst,
			tdelay, refresh, randomize, check), nil
	}
	return nil, fmt.Errorf("unknown memory kind %q", kind)
}

func buildDataCache(kind string, mem simulator.Memory, size, line uint32) (simulator.Memory, error) {
	switch strings.ToLower(kind) {
	case "ideal":
		return simulator.NewIdealDataCache(mem), nil
	case "no":
		return simulator.NewNoDataCache(mem), nil
	case "lru2":
		return simulator.NewLRUDataCache(mem, size, line, 2), nil
	case "lru4":
		return simulator.NewLRUDataCache(mem, size, line, 4), nil
	case "lru8":
		return simulator.NewLRUDataCache(mem, size, line, 8), nil
	}
	return nil, fmt.Errorf("unknown data cache kind %q", kind)
}

func buildInstrCache(kind string, mem simulator.Memory, blocks uint32) (simulator.InstrCache, error) {
	switch strings.ToLower(kind) {
	case "mcache", "lru":
		return simulator.NewMethodCache(mem, blocks, simulator.METHOD_CACHE_LRU), nil
	case "fifo":
		return simulator.NewMethodCache(mem, blocks, simulator.METHOD_CACHE_FIFO), nil
	case "icache":
		// a conventional instruction cache on a backing data cache of
		// its own, so code and data do not evict each other
		backing := simulator.NewLRUDataCache(mem, blocks*simulator.METHOD_BLOCK_SIZE, 16, 2)
		return simulator.NewInstrCacheWrapper(backing), nil
	case "ideal":
		return simulator.NewIdealMethodCache(mem), nil
	}
	return nil, fmt.Errorf("unknown instruction cache kind %q", kind)
}

func buildStackCache(kind string, mem simulator.Memory, blocks, total uint32) (simulator.StackCache, error) {
	switch strings.ToLower(kind) {
	case "ideal":
		return simulator.NewIdealStackCache(), nil
	case "block":
		return simulator.NewBlockStackCache(mem, blocks, total), nil
	}
	return nil, fmt.Errorf("unknown stack cache kind %q", kind)
}
