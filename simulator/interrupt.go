package simulator

// Cycles of fetch suppression after an interrupt dispatch bundle was
// injected, while the synthesized control flow drains
const interruptShadowCycles = 3

// An external interrupt source. The core polls it once per fetch
// opportunity; when an interrupt is pending and the fetch slot is not
// inside a branch shadow, the core injects a dispatch bundle to the
// handler address, stores the interrupted PC in s9 and acknowledges
// the interrupt
type InterruptSource interface {
	Pending() bool
	Handler() uint32
	Acknowledge()
}
