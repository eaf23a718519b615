package iolink

import "fmt"

// CommMode is the active physical bit rate.
type CommMode uint8

const (
	// ModeSIO is standard I/O compatibility mode; no IO-Link framing is active.
	ModeSIO CommMode = iota
	// ModeCOM1 is 4.8 kbaud.
	ModeCOM1
	// ModeCOM2 is 38.4 kbaud.
	ModeCOM2
	// ModeCOM3 is 230.4 kbaud.
	ModeCOM3
)

func (m CommMode) String() string {
	switch m {
	case ModeSIO:
		return "SIO"
	case ModeCOM1:
		return "COM1"
	case ModeCOM2:
		return "COM2"
	case ModeCOM3:
		return "COM3"
	default:
		return fmt.Sprintf("CommMode(%d)", uint8(m))
	}
}

// BaudOrder is the negotiation order DL-Mode walks: fastest first.
var BaudOrder = [...]CommMode{ModeCOM3, ModeCOM2, ModeCOM1}

// DLState is the Data-Link operating state.
type DLState uint8

const (
	// DLInactive is the state at boot and after a fatal error.
	DLInactive DLState = iota
	// DLStartup is baud negotiation / wake-up in progress.
	DLStartup
	// DLPreoperate is COM locked, master configuring parameters.
	DLPreoperate
	// DLOperate is normal cyclic exchange.
	DLOperate
)

func (s DLState) String() string {
	switch s {
	case DLInactive:
		return "Inactive"
	case DLStartup:
		return "Startup"
	case DLPreoperate:
		return "Preoperate"
	case DLOperate:
		return "Operate"
	default:
		return fmt.Sprintf("DLState(%d)", uint8(s))
	}
}

// ControlCode is delivered to the application via AL_Control_ind.
type ControlCode uint8

const (
	ControlPreOperate ControlCode = iota
	ControlOperate
	ControlFallback
	ControlFault
)

func (c ControlCode) String() string {
	switch c {
	case ControlPreOperate:
		return "PreOperate"
	case ControlOperate:
		return "Operate"
	case ControlFallback:
		return "Fallback"
	case ControlFault:
		return "Fault"
	default:
		return fmt.Sprintf("ControlCode(%d)", uint8(c))
	}
}

// MSeqType identifies which of the four standard M-sequence layouts is
// negotiated for the current cycle. Each type fixes the OD segment size; the PD segment is
// framed for every type, sized by Config.PDInSize/PDOutSize.
type MSeqType uint8

const (
	// MSeqType1 carries no OD.
	MSeqType1 MSeqType = iota
	// MSeqType2 carries a single OD byte.
	MSeqType2
	// MSeqType3 carries a 2-byte OD segment.
	MSeqType3
	// MSeqTypeISDU carries an expanded OD segment sized for ISDU traffic.
	MSeqTypeISDU
)

// odSize returns the number of OD bytes this M-sequence type carries in a single direction.
func (t MSeqType) odSize(isduCeiling int) int {
	switch t {
	case MSeqType1:
		return 0
	case MSeqType2:
		return 1
	case MSeqType3:
		return 2
	case MSeqTypeISDU:
		return isduCeiling
	default:
		return 0
	}
}

// Identification is the immutable device identification record.
type Identification struct {
	VendorID    uint16 // 16-bit
	DeviceID    uint32 // 24-bit, upper byte must be zero
	FunctionID  uint16
	MinCycleTU  uint8 // min cycle time in units of 100 microseconds
}

// MinCycleTimeUS returns the minimum cycle time as a duration-free microsecond count,
// since the core avoids the time package on the hot path.
func (id Identification) MinCycleTimeUS() uint32 {
	return uint32(id.MinCycleTU) * 100
}

func (id Identification) validate() error {
	if id.DeviceID > 0xFFFFFF {
		return InvalidParameterErrorF("device id %#x exceeds 24 bits", id.DeviceID)
	}
	return nil
}
