package iolink

/*
Device is the root aggregate: it owns every sub-machine and drives them, once per call to
Poll, in a fixed order: On-Request arbitration (Command ack, master ISDU, Event streaming)
and the process data output pick this cycle's outbound OD and PD, the Message Handler frames
them, one Physical Layer transfer sends the frame and returns the master's, the Message
Handler parses it, DL-Mode/System Management record the result, the process data input is
latched, the received OD is routed to Command/ISDU, and the event confirmation and PdCycle
upcalls follow. The outbound frame is built before the received frame of the same Poll is
parsed. One struct owns one handler per concern and drives them from a
single entry point, here a continuously polled cycle instead of a one-shot request/response.
*/

// Device is an IO-Link device (slave) protocol stack. Construct one with New and drive it by
// calling Poll on whatever schedule the Physical Layer's cyclic timer requires.
type Device struct {
	cfg Config
	phy PhysicalLayer
	app ApplicationPort

	msg *messageHandler
	dl  *dlModeHandler
	pd  *processDataHandler
	or  *onRequestHandler
	isdu *isduHandler
	cmd *commandHandler
	evt *eventHandler
	sm  *sysManagement
	pm  *parameterManager
	ds  *dataStorage

	currentMSeq MSeqType
}

// New constructs a Device from a Config, a Physical Layer port, and the application upcall
// sink. The Config is validated and normalized (zero-valued ISDUCeiling/EventQueueCapacity
// fall back to their defaults) before any sub-machine is built.
func New(cfg Config, phy PhysicalLayer, app ApplicationPort) (*Device, error) {
	if phy == nil {
		return nil, NullPointerErrorF("PhysicalLayer is required")
	}
	if app == nil {
		return nil, NullPointerErrorF("ApplicationPort is required")
	}
	cfg = cfg.normalized()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ds := newDataStorage(cfg.DataStorage)
	pm, err := newParameterManager(cfg, ds)
	if err != nil {
		return nil, err
	}
	dl := newDLModeHandler()
	sm := newSysManagement(cfg.Ident, dl, ds)
	isdu := newISDUHandler(pm)
	cmd := newCommandHandler(sm, ds)
	evt := newEventHandler(cfg.EventQueueCapacity)

	d := &Device{
		cfg: cfg,
		phy: phy,
		app: app,

		msg:  newMessageHandler(),
		dl:   dl,
		pd:   newProcessDataHandler(cfg.PDInSize, cfg.PDOutSize),
		or:   newOnRequestHandler(),
		isdu: isdu,
		cmd:  cmd,
		evt:  evt,
		sm:   sm,
		pm:   pm,
		ds:   ds,

		currentMSeq: MSeqTypeISDU,
	}
	return d, nil
}

// WakeUp begins the wake-up pulse and baud negotiation, moving the device from Inactive to
// Startup.
func (d *Device) WakeUp() error {
	return d.sm.onWakeUp(d.phy)
}

// Restart sets the device to Inactive and clears the event active set, leaving it ready for a
// fresh WakeUp. WakeUp does not depend on it: a device already in Inactive after a fatal error
// accepts WakeUp without a Restart.
func (d *Device) Restart() {
	d.sm.restart()
	d.evt.clearActiveSet()
}

// State reports the current Data-Link operating state.
func (d *Device) State() DLState {
	return d.sm.state
}

// Diagnostics aggregates the bounded counters each sub-machine keeps internally in place of
// a logging framework.
type Diagnostics struct {
	ConsecutiveCorruptFrames int
	EventOverflowDrops       uint32
	DataStorageCorrupt       bool
	DataStorageVersion       uint32
}

// Diagnostics returns a snapshot of the device's internal health counters.
func (d *Device) Diagnostics() Diagnostics {
	return Diagnostics{
		ConsecutiveCorruptFrames: d.msg.consecutiveCorrupt,
		EventOverflowDrops:       d.evt.diagOverflowDrops,
		DataStorageCorrupt:       d.ds.Corrupt(),
		DataStorageVersion:       d.ds.Version(),
	}
}

// Poll drives one M-sequence cycle. It is the only entry point that moves bytes across the
// Physical Layer; every AL_* method above only touches in-memory state and is picked up by
// the next Poll call.
func (d *Device) Poll() error {
	if d.sm.state == DLInactive {
		return nil
	}

	odSize := d.currentMSeq.odSize(d.cfg.ISDUCeiling)
	d.isdu.setODChunk(max(odSize, 1))

	outTag, outOD := d.or.selectOut(d.cmd, d.isdu, d.evt, d.sm.state, odSize)
	outPD, outValid := d.pd.currentOutput()
	if !outValid {
		outPD = make([]byte, d.cfg.PDOutSize)
	}
	outgoing := d.msg.serialize(d.currentMSeq, outTag, outPD, padOD(outOD, odSize))

	raw, err := d.phy.Transfer(outgoing)
	if err != nil {
		d.sm.onHardError(d.phy)
		d.evt.clearActiveSet()
		d.app.ControlInd(ControlFault)
		return err
	}

	frame, err := d.msg.parse(raw, d.cfg.PDInSize, odSize)
	if err != nil {
		demoted := d.sm.onFrameCorrupt(d.phy)
		if demoted {
			d.pd.forceInvalid()
			d.evt.clearActiveSet()
			d.app.ControlInd(ControlFallback)
		}
		return err
	}
	d.sm.onFrameValid(d.phy)

	d.pd.latchInput(frame.PD, d.sm.state)
	d.app.NewOutputInd(frame.PD, d.sm.state == DLOperate)

	control, cerr := d.or.routeIn(frame, d.cmd, d.isdu, d.phy)
	if control != nil {
		if *control == ControlFallback {
			d.pd.forceInvalid()
			d.evt.clearActiveSet()
		}
		d.app.ControlInd(*control)
	}

	if rec, ok := d.evt.takeCompleted(); ok {
		d.app.EventCnf(rec.Code, nil)
	}

	d.app.PdCycleInd()
	return cerr
}

func padOD(od []byte, size int) []byte {
	if len(od) >= size {
		return od[:size]
	}
	out := make([]byte, size)
	copy(out, od)
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
