package iolink

/*
Data-Link Mode Handler. Owns baud negotiation and the wake-up sequence.
Authoritative DL operating state lives in sysManagement; this handler only tracks the
physical-mode sub-state System Management consults ("COM lock") and drives timers/SetMode
calls on the Physical Layer port.
*/

const startupGuardUS uint32 = 10000 // T1: 10ms per candidate baud rate, an implementation-chosen bound

type dlModeHandler struct {
	mode                 CommMode
	baudIdx              int
	comLocked            bool
	consecutiveFailures  int
}

func newDLModeHandler() *dlModeHandler {
	return &dlModeHandler{mode: ModeSIO}
}

func (dl *dlModeHandler) currentMode() CommMode {
	return dl.mode
}

func (dl *dlModeHandler) comLock() bool {
	return dl.comLocked
}

// beginWakeUp walks through the wake-up pulse and starts baud negotiation at the fastest rate.
func (dl *dlModeHandler) beginWakeUp(phy PhysicalLayer) error {
	dl.comLocked = false
	dl.consecutiveFailures = 0
	dl.baudIdx = 0
	dl.mode = BaudOrder[0]
	if err := phy.WakeUp(); err != nil {
		return HardwareErrorF("wake-up failed: %v", err)
	}
	if err := phy.SetMode(dl.mode); err != nil {
		return HardwareErrorF("set mode %v failed: %v", dl.mode, err)
	}
	phy.StartTimer(TimerStartupGuard, startupGuardUS)
	return nil
}

// onFrameValid records a successfully exchanged frame; the first one at a given baud locks COM.
func (dl *dlModeHandler) onFrameValid(phy PhysicalLayer) {
	dl.consecutiveFailures = 0
	if !dl.comLocked {
		dl.comLocked = true
		phy.StopTimer(TimerStartupGuard)
	}
}

// onFrameCorrupt records a corrupt/timed-out cycle. During negotiation it advances to the next
// candidate baud once T1 expires; once locked, it reports to the caller whether the consecutive
// failure count has crossed the link-degraded threshold.
func (dl *dlModeHandler) onFrameCorrupt(phy PhysicalLayer) (degraded bool) {
	dl.consecutiveFailures++
	if !dl.comLocked {
		if phy.TimerExpired(TimerStartupGuard) {
			dl.advanceBaud(phy)
		}
		return false
	}
	return dl.consecutiveFailures >= consecutiveFailureThreshold
}

func (dl *dlModeHandler) advanceBaud(phy PhysicalLayer) {
	dl.baudIdx = (dl.baudIdx + 1) % len(BaudOrder)
	dl.mode = BaudOrder[dl.baudIdx]
	_ = phy.SetMode(dl.mode)
	phy.RestartTimer(TimerStartupGuard, startupGuardUS)
}

// demote drops COM lock and restarts negotiation from the fastest baud, without a fresh
// wake-up pulse.
func (dl *dlModeHandler) demote(phy PhysicalLayer) {
	dl.comLocked = false
	dl.consecutiveFailures = 0
	dl.baudIdx = 0
	dl.mode = BaudOrder[0]
	_ = phy.SetMode(dl.mode)
	phy.RestartTimer(TimerStartupGuard, startupGuardUS)
}

// toInactive parks the line in SIO mode.
func (dl *dlModeHandler) toInactive(phy PhysicalLayer) {
	dl.comLocked = false
	dl.consecutiveFailures = 0
	dl.mode = ModeSIO
	_ = phy.SetMode(ModeSIO)
}
