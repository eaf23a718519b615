package iolink

/*
System Management: arbitrator and namer. Owns the authoritative DL operating
state and the device identification record, and decides whether a requested transition is
currently legal.
*/

type sysManagement struct {
	ident Identification
	state DLState
	dl    *dlModeHandler
	ds    *dataStorage
}

func newSysManagement(ident Identification, dl *dlModeHandler, ds *dataStorage) *sysManagement {
	return &sysManagement{ident: ident, state: DLInactive, dl: dl, ds: ds}
}

// identify answers a MasterIdent/DeviceIdent request; repeated calls are idempotent.
func (sm *sysManagement) identify() Identification {
	return sm.ident
}

func (sm *sysManagement) onWakeUp(phy PhysicalLayer) error {
	if sm.state != DLInactive {
		return nil
	}
	if err := sm.dl.beginWakeUp(phy); err != nil {
		return err
	}
	sm.state = DLStartup
	return nil
}

func (sm *sysManagement) onFrameValid(phy PhysicalLayer) {
	sm.dl.onFrameValid(phy)
}

// onFrameCorrupt forwards to DL-Mode and, if the failure run crossed the link-degraded
// threshold, demotes to Startup.
func (sm *sysManagement) onFrameCorrupt(phy PhysicalLayer) (demoted bool) {
	if sm.dl.onFrameCorrupt(phy) {
		sm.dl.demote(phy)
		sm.state = DLStartup
		return true
	}
	return false
}

func (sm *sysManagement) onFallback(phy PhysicalLayer) {
	sm.dl.demote(phy)
	sm.state = DLStartup
}

// onHardError is the fatal path: it drops the device to Inactive. Device.Poll takes it when a
// Physical Layer transfer fails; a ProtocolError returned by command or ISDU handling does not
// lead here.
func (sm *sysManagement) onHardError(phy PhysicalLayer) {
	sm.dl.toInactive(phy)
	sm.state = DLInactive
}

// restart sets the state to Inactive. onWakeUp does not check whether restart was called
// after a fatal error.
func (sm *sysManagement) restart() {
	sm.state = DLInactive
}

// requestPreOperate authorizes Device → Preoperate, gated on DL-Mode reporting COM lock.
// Idempotent while already in Preoperate.
func (sm *sysManagement) requestPreOperate() error {
	if sm.state == DLPreoperate {
		return nil
	}
	if sm.state != DLStartup || !sm.dl.comLock() {
		return DeviceNotReadyErrorF("PreOperate requires COM lock in Startup, have state=%v comLock=%v", sm.state, sm.dl.comLock())
	}
	sm.state = DLPreoperate
	return nil
}

// requestOperate authorizes Device → Operate, gated on parameterization being complete
// (Data Storage consistent).
func (sm *sysManagement) requestOperate() error {
	if sm.state == DLOperate {
		return nil
	}
	if sm.state != DLPreoperate {
		return DeviceNotReadyErrorF("Operate requires Preoperate, have %v", sm.state)
	}
	if sm.ds.Corrupt() {
		return DeviceNotReadyErrorF("data storage is corrupt, Operate refused until a download")
	}
	sm.state = DLOperate
	return nil
}
