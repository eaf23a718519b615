// Package serialphy adapts a real UART, via go.bug.st/serial, to the iolink.PhysicalLayer
// port. It is the hardware-facing half of the wake-up/baud-negotiation contract the core
// only calls synchronously from within Device.Poll.
package serialphy

import (
	"time"

	"github.com/rolfl/iolink"
	"go.bug.st/serial"
)

// baudFor maps a negotiated CommMode onto the bit rate go.bug.st/serial opens the port at.
// SIO parks the line at the slowest rate; IO-Link doesn't frame anything while in SIO, so the
// exact value only matters for the idle current draw on real hardware.
func baudFor(mode iolink.CommMode) int {
	switch mode {
	case iolink.ModeCOM1:
		return 4800
	case iolink.ModeCOM2:
		return 38400
	case iolink.ModeCOM3:
		return 230400
	default:
		return 4800
	}
}

// Port implements iolink.PhysicalLayer over a real serial device. It is not safe for
// concurrent use; the core only ever calls it from the single goroutine driving Poll.
type Port struct {
	device string
	port   serial.Port

	mode iolink.CommMode

	deadlines [3]time.Time
	armed     [3]bool

	lastErr error
}

// Open opens the named serial device in SIO mode. The caller is expected to call Close once
// the Device is permanently retired.
func Open(device string) (*Port, error) {
	mode := &serial.Mode{BaudRate: baudFor(iolink.ModeSIO), DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, iolink.HardwareErrorF("open serial port %v: %v", device, err)
	}
	return &Port{device: device, port: p, mode: iolink.ModeSIO}, nil
}

// Close releases the underlying serial device.
func (p *Port) Close() error {
	return p.port.Close()
}

// SetMode reconfigures the open UART at the bit rate the requested CommMode implies.
func (p *Port) SetMode(mode iolink.CommMode) error {
	sm := &serial.Mode{BaudRate: baudFor(mode), DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	if err := p.port.SetMode(sm); err != nil {
		p.lastErr = err
		return iolink.HardwareErrorF("set mode %v on %v: %v", mode, p.device, err)
	}
	p.mode = mode
	return nil
}

// Transfer writes txBytes and reads back the master's response. Real M-sequence framing is
// half-duplex and fixed-length per cycle, so the read loop stops as soon as it has collected
// len(txBytes) bytes, or earlier when a Read returns no bytes — the symmetric
// assumption this stack's Message Handler makes about PD/OD sizing in both directions.
func (p *Port) Transfer(txBytes []byte) ([]byte, error) {
	if _, err := p.port.Write(txBytes); err != nil {
		p.lastErr = err
		return nil, iolink.HardwareErrorF("write to %v: %v", p.device, err)
	}
	resp := make([]byte, len(txBytes))
	read := 0
	buf := make([]byte, len(txBytes))
	for read < len(txBytes) {
		n, err := p.port.Read(buf)
		if err != nil {
			p.lastErr = err
			return nil, iolink.HardwareErrorF("read from %v: %v", p.device, err)
		}
		if n == 0 {
			break
		}
		copy(resp[read:], buf[:n])
		read += n
	}
	return resp[:read], nil
}

// StartTimer arms a wall-clock deadline durationUS microseconds from now.
func (p *Port) StartTimer(id iolink.TimerID, durationUS uint32) {
	p.deadlines[id] = time.Now().Add(time.Duration(durationUS) * time.Microsecond)
	p.armed[id] = true
}

// RestartTimer re-arms the timer with a fresh deadline.
func (p *Port) RestartTimer(id iolink.TimerID, durationUS uint32) {
	p.StartTimer(id, durationUS)
}

// StopTimer disarms the timer.
func (p *Port) StopTimer(id iolink.TimerID) {
	p.armed[id] = false
}

// TimerExpired reports whether the armed deadline has passed.
func (p *Port) TimerExpired(id iolink.TimerID) bool {
	return p.armed[id] && !time.Now().Before(p.deadlines[id])
}

// WakeUp drives the wake-up pulse. Real hardware toggles a GPIO line held by the same driver
// that owns the UART; this adapter has no GPIO access and treats wake-up as a no-op so the
// negotiation sequence in dlModeHandler can still run against a bench UART loopback.
func (p *Port) WakeUp() error {
	return nil
}

// Status reports the line as quiescent once opened, surfacing the last I/O error observed.
func (p *Port) Status() iolink.LineStatus {
	return iolink.LineStatus{Quiescent: true, Error: p.lastErr}
}
