package iolink

import "testing"

func TestDevice_ColdStartToOperate(t *testing.T) {
	d, phy, app := newTestDevice(t)

	if err := d.WakeUp(); err != nil {
		t.Fatalf("WakeUp: %v", err)
	}
	if d.State() != DLStartup {
		t.Fatalf("expected Startup after WakeUp, got %v", d.State())
	}

	// Poll once: the device sends its first cycle, the fake line echoes back a
	// same-length, validly-checksummed frame the Message Handler should accept,
	// locking COM.
	if err := d.Poll(); err != nil {
		t.Fatalf("Poll (COM lock cycle): %v", err)
	}
	if !d.dl.comLock() {
		t.Fatalf("expected COM to lock after the first valid round-trip")
	}

	if err := d.sm.requestPreOperate(); err != nil {
		t.Fatalf("requestPreOperate: %v", err)
	}
	if err := d.sm.requestOperate(); err != nil {
		t.Fatalf("requestOperate: %v", err)
	}
	if d.State() != DLOperate {
		t.Fatalf("expected Operate, got %v", d.State())
	}

	if err := d.Poll(); err != nil {
		t.Fatalf("Poll (Operate cycle): %v", err)
	}
	if app.pdCycles != 2 {
		t.Fatalf("expected PdCycleInd once per Poll call, got %v calls", app.pdCycles)
	}
	_ = phy
}

func TestDevice_CorruptFramesDemoteToStartup(t *testing.T) {
	d, phy, app := newTestDevice(t)
	_ = d.WakeUp()
	_ = d.Poll() // locks COM
	_ = d.sm.requestPreOperate()

	phy.queueResponse(bytesOf(0xFF, 65))
	phy.queueResponse(bytesOf(0xFF, 65))
	phy.queueResponse(bytesOf(0xFF, 65))

	var lastErr error
	for i := 0; i < 3; i++ {
		lastErr = d.Poll()
	}
	if lastErr == nil {
		t.Fatalf("expected the third consecutive corrupt frame to surface a frame error")
	}
	if d.State() != DLStartup {
		t.Fatalf("expected three consecutive corrupt frames to demote the device to Startup, got %v", d.State())
	}
	found := false
	for _, c := range app.controls {
		if c == ControlFallback {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a ControlFallback indication on demotion")
	}
}

func TestDevice_CorruptFramesInOperateInvalidatesProcessData(t *testing.T) {
	d, phy, _ := newTestDevice(t)
	_ = d.WakeUp()
	_ = d.Poll() // locks COM
	_ = d.sm.requestPreOperate()
	_ = d.sm.requestOperate()

	// One clean Operate cycle latches PD input as valid.
	if err := d.Poll(); err != nil {
		t.Fatalf("Poll (Operate cycle): %v", err)
	}
	if _, valid := d.AL_GetInput_req(); !valid {
		t.Fatalf("expected PD input to be valid after a clean Operate cycle")
	}

	phy.queueResponse(bytesOf(0xFF, 65))
	phy.queueResponse(bytesOf(0xFF, 65))
	phy.queueResponse(bytesOf(0xFF, 65))

	for i := 0; i < 3; i++ {
		_ = d.Poll()
	}
	if d.State() != DLStartup {
		t.Fatalf("expected three consecutive corrupt frames to demote the device to Startup, got %v", d.State())
	}
	if _, valid := d.AL_GetInput_req(); valid {
		t.Fatalf("expected a checksum storm demotion to force PD input invalid")
	}
}

func TestDevice_RestartReArmsFromInactive(t *testing.T) {
	d, phy, _ := newTestDevice(t)
	_ = d.WakeUp()
	_ = d.Poll()
	d.sm.onHardError(phy)
	if d.State() != DLInactive {
		t.Fatalf("expected Inactive after a hard error, got %v", d.State())
	}

	if err := d.Poll(); err != nil {
		t.Fatalf("Poll while Inactive should be a no-op, got %v", err)
	}

	d.Restart()
	if d.State() != DLInactive {
		t.Fatalf("Restart should leave the device in Inactive, ready for a fresh WakeUp")
	}
	if err := d.WakeUp(); err != nil {
		t.Fatalf("WakeUp after Restart: %v", err)
	}
	if d.State() != DLStartup {
		t.Fatalf("expected Startup after WakeUp following Restart, got %v", d.State())
	}
}

func bytesOf(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
