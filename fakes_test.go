package iolink

// fakePhysicalLayer is a bench-free stand-in for a real UART: it never blocks, and the test
// fully controls what the "master" sends back each cycle by pushing onto respQueue.

type fakeTimerState struct {
	armed   bool
	expired bool
}

type fakePhysicalLayer struct {
	mode       CommMode
	respQueue  [][]byte
	wokenUp    bool
	timers     [3]fakeTimerState
	lastStatus LineStatus
}

func newFakePhysicalLayer() *fakePhysicalLayer {
	return &fakePhysicalLayer{lastStatus: LineStatus{Quiescent: true}}
}

func (f *fakePhysicalLayer) SetMode(mode CommMode) error {
	f.mode = mode
	return nil
}

// Transfer loopbacks the outgoing bytes verbatim when nothing has been queued, which happens
// to be a validly-checksummed frame (it's exactly what the device itself just encoded) and
// keeps most tests from needing to hand-build a wire-exact master response.
func (f *fakePhysicalLayer) Transfer(tx []byte) ([]byte, error) {
	if len(f.respQueue) == 0 {
		return append([]byte(nil), tx...), nil
	}
	next := f.respQueue[0]
	f.respQueue = f.respQueue[1:]
	return next, nil
}

func (f *fakePhysicalLayer) queueResponse(b []byte) {
	f.respQueue = append(f.respQueue, b)
}

func (f *fakePhysicalLayer) StartTimer(id TimerID, durationUS uint32) {
	f.timers[id] = fakeTimerState{armed: true}
}

func (f *fakePhysicalLayer) RestartTimer(id TimerID, durationUS uint32) {
	f.timers[id] = fakeTimerState{armed: true}
}

func (f *fakePhysicalLayer) StopTimer(id TimerID) {
	f.timers[id] = fakeTimerState{}
}

func (f *fakePhysicalLayer) TimerExpired(id TimerID) bool {
	return f.timers[id].armed && f.timers[id].expired
}

func (f *fakePhysicalLayer) expireTimer(id TimerID) {
	t := f.timers[id]
	t.expired = true
	f.timers[id] = t
}

func (f *fakePhysicalLayer) WakeUp() error {
	f.wokenUp = true
	return nil
}

func (f *fakePhysicalLayer) Status() LineStatus {
	return f.lastStatus
}

// fakeApplicationPort records every upcall Device.Poll delivers so tests can assert on them.
type fakeApplicationPort struct {
	pdCycles     int
	lastInput    []byte
	lastValid    bool
	controls     []ControlCode
	eventConfirms []struct {
		code uint16
		err  error
	}
}

func (a *fakeApplicationPort) PdCycleInd() {
	a.pdCycles++
}

func (a *fakeApplicationPort) NewOutputInd(data []byte, valid bool) {
	a.lastInput = append([]byte(nil), data...)
	a.lastValid = valid
}

func (a *fakeApplicationPort) ControlInd(code ControlCode) {
	a.controls = append(a.controls, code)
}

func (a *fakeApplicationPort) EventCnf(code uint16, err error) {
	a.eventConfirms = append(a.eventConfirms, struct {
		code uint16
		err  error
	}{code, err})
}
