package iolink

/*
PhysicalLayer is the capability interface the core requires from firmware. It is the only port the stack borrows during a poll step;
every call must be synchronous and return promptly — the core never assumes
interrupt-driven delivery.
*/

// TimerID names a timer the Physical Layer driver owns on the core's behalf.
type TimerID uint8

const (
	// TimerStartupGuard is T1: bounds baud negotiation at each candidate rate.
	TimerStartupGuard TimerID = iota
	// TimerMessage is T2: bounds the wait for a single M-sequence response.
	TimerMessage
	// TimerCycle is the cyclic tick timer.
	TimerCycle
)

func (t TimerID) String() string {
	switch t {
	case TimerStartupGuard:
		return "T1_StartupGuard"
	case TimerMessage:
		return "T2_Message"
	case TimerCycle:
		return "T_Cycle"
	default:
		return "Timer(?)"
	}
}

// LineStatus reports the current state of the physical medium.
type LineStatus struct {
	// Quiescent is true once a mode switch has settled and the line is ready to transfer.
	Quiescent bool
	// Error is non-nil if the driver observed a hardware fault (break, framing error, short).
	Error error
}

// PhysicalLayer is implemented by firmware and consumed by the core. It must never block
// indefinitely: set_mode/transfer/wake_up return promptly, and timer expiry is observed by
// polling TimerExpired once per cycle rather than via callback or interrupt.
type PhysicalLayer interface {
	// SetMode configures the UART for SIO or one of the three COM bit rates. Implementations
	// must not return until the line is quiescent at the new mode.
	SetMode(mode CommMode) error

	// Transfer performs the half-duplex byte exchange for the current cycle window, returning
	// the bytes received from the master in response to txBytes.
	Transfer(txBytes []byte) ([]byte, error)

	// StartTimer arms a timer for durationUS microseconds from now.
	StartTimer(id TimerID, durationUS uint32)
	// RestartTimer re-arms a timer, replacing any existing deadline.
	RestartTimer(id TimerID, durationUS uint32)
	// StopTimer disarms a timer; TimerExpired must return false for it afterwards.
	StopTimer(id TimerID)
	// TimerExpired reports whether the named timer's deadline has passed since it was last
	// (re)started, without resetting it; the owning state machine is responsible for stopping
	// or restarting the timer once it consumes the expiry.
	TimerExpired(id TimerID) bool

	// WakeUp emits the wake-up current pulse that brings an SIO device into COM mode.
	WakeUp() error

	// Status reports the current line status.
	Status() LineStatus
}
