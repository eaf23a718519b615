package iolink

/*
Command Handler: interprets single-byte master commands arriving on the OD
command sub-channel and turns them into System Management transitions or Data Storage side
effects.
*/

// MasterCommand is the single-byte command word the master places on the OD command
// sub-channel. Fallback/MasterIdent/DeviceIdent/DeviceStartup/PreOperate/Operate carry
// IO-Link v1.1.4 Annex B.1.2's actual MasterCommand values. The Data Storage transfer/lock
// commands have no command-byte equivalent in the real spec (real IO-Link drives Data
// Storage through ISDU writes to the SystemCommand direct parameter instead) and are this
// stack's own simplification, placed in the 0xA0-0xA3 range clear of the real codes above.
type MasterCommand uint8

const (
	CmdFallback            MasterCommand = 0x5A
	CmdMasterIdent         MasterCommand = 0x95
	CmdDeviceIdent         MasterCommand = 0x96
	CmdDeviceStartup       MasterCommand = 0x97
	CmdOperate             MasterCommand = 0x99
	CmdPreOperate          MasterCommand = 0x9A
	CmdDataStorageUpload   MasterCommand = 0xA0
	CmdDataStorageDownload MasterCommand = 0xA1
	CmdDataStorageLock     MasterCommand = 0xA2
	CmdDataStorageUnlock   MasterCommand = 0xA3
)

// vendorReserved covers the 0xA4-0xFF range this stack leaves open for vendor-specific
// commands, clear of every recognized code above.
func (c MasterCommand) vendorReserved() bool {
	return c >= 0xA4
}

// ackOK and ackRefused are the single-byte confirmations placed on the next OD-out slot.
const (
	ackOK      byte = 0x00
	ackRefused byte = 0x01
)

type commandHandler struct {
	sm         *sysManagement
	ds         *dataStorage
	pendingAck *byte
}

func newCommandHandler(sm *sysManagement, ds *dataStorage) *commandHandler {
	return &commandHandler{sm: sm, ds: ds}
}

// handle interprets one received command byte. It returns the control-plane transition to
// raise as AL_Control_ind, if any, and an error for an unrecognized or refused command.
func (ch *commandHandler) handle(cmd MasterCommand, phy PhysicalLayer) (*ControlCode, error) {
	switch cmd {
	case CmdFallback:
		ch.sm.onFallback(phy)
		ch.ack(ackOK)
		c := ControlFallback
		return &c, nil

	case CmdMasterIdent, CmdDeviceIdent:
		ch.ack(ackOK)
		return nil, nil

	case CmdDeviceStartup:
		err := ch.sm.onWakeUp(phy)
		ch.ackFor(err)
		return nil, err

	case CmdPreOperate:
		err := ch.sm.requestPreOperate()
		ch.ackFor(err)
		if err != nil {
			return nil, err
		}
		c := ControlPreOperate
		return &c, nil

	case CmdOperate:
		err := ch.sm.requestOperate()
		ch.ackFor(err)
		if err != nil {
			return nil, err
		}
		c := ControlOperate
		return &c, nil

	case CmdDataStorageLock:
		ch.ds.Lock()
		ch.ack(ackOK)
		return nil, nil

	case CmdDataStorageUnlock:
		ch.ds.Unlock()
		ch.ack(ackOK)
		return nil, nil

	case CmdDataStorageUpload, CmdDataStorageDownload:
		// The command byte is only acknowledged; no ISDU index in this stack feeds a record
		// into Data Storage's Upload or Download, so no transfer follows.
		ch.ack(ackOK)
		return nil, nil

	default:
		if cmd.vendorReserved() {
			ch.ack(ackOK)
			return nil, nil
		}
		err := ProtocolErrorF("unrecognized master command %#x", byte(cmd))
		ch.ack(ackRefused)
		return nil, err
	}
}

func (ch *commandHandler) ack(b byte) {
	v := b
	ch.pendingAck = &v
}

func (ch *commandHandler) ackFor(err error) {
	if err != nil {
		ch.ack(ackRefused)
		return
	}
	ch.ack(ackOK)
}

// takeAck consumes and clears the pending acknowledgement byte, if any.
func (ch *commandHandler) takeAck() (byte, bool) {
	if ch.pendingAck == nil {
		return 0, false
	}
	b := *ch.pendingAck
	ch.pendingAck = nil
	return b, true
}
