package iolink

/*
ISDU Handler: segmented, flow-controlled read/write of a Parameter Manager
slot over the OD sub-channel. At most one transaction is in flight; master-originated
transactions always preempt an in-flight application-originated one, which completes with
Aborted.

Even though an application-originated transaction never leaves the device, it is driven
through the same per-cycle chunking a master-originated transfer uses, since the real
hardware ISDU engine moves data at that rate regardless of source.
*/

type isduDirection uint8

const (
	isduRead isduDirection = iota
	isduWrite
)

type isduOrigin uint8

const (
	originApp isduOrigin = iota
	originMaster
)

type isduTxn struct {
	origin      isduOrigin
	dir         isduDirection
	index       uint16
	sub         uint8
	payload     []byte // read: accumulated response bytes; write: bytes collected from the caller
	total       int
	sent        int // bytes moved across the OD channel so far, not counting the header cycle
	headerSent  bool
	aborted     bool
	snapshotVer uint64
}

type isduHandler struct {
	pm      *parameterManager
	odChunk int // OD bytes moved per cycle; set from the negotiated M-sequence type each poll
	app     *isduTxn
	master  *isduTxn
	rxBuf   []byte // master-originated request bytes being assembled across cycles
}

func newISDUHandler(pm *parameterManager) *isduHandler {
	return &isduHandler{pm: pm, odChunk: 1}
}

func (h *isduHandler) setODChunk(n int) {
	if n < 1 {
		n = 1
	}
	h.odChunk = n
}

func (h *isduHandler) masterBusy() bool {
	return h.master != nil
}

// abortApp cancels the in-flight application-originated transaction, if any (AL_Abort_req).
func (h *isduHandler) abortApp() {
	if h.app != nil {
		h.app.aborted = true
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// appRead implements AL_Read_req.
func (h *isduHandler) appRead(index uint16, sub uint8) ReadResult {
	if h.masterBusy() {
		return ReadResult{Status: StatusBusy, Err: BusyErrorF("master-originated ISDU transaction in flight")}
	}
	if h.app != nil && h.app.aborted {
		h.app = nil
		return ReadResult{Status: StatusAborted}
	}
	if h.app != nil && (h.app.dir != isduRead || h.app.index != index || h.app.sub != sub) {
		return ReadResult{Status: StatusBusy, Err: BusyErrorF("application ISDU transaction for index=%#x sub=%v in flight", h.app.index, h.app.sub)}
	}
	if h.app == nil {
		data, ver, err := h.pm.get(index, sub)
		if err != nil {
			return ReadResult{Status: StatusDone, Err: err}
		}
		h.app = &isduTxn{origin: originApp, dir: isduRead, index: index, sub: sub, payload: data, total: len(data), snapshotVer: ver}
	}
	txn := h.app

	if !txn.headerSent {
		txn.headerSent = true
		return ReadResult{Status: StatusInProgress}
	}
	if txn.aborted {
		h.app = nil
		return ReadResult{Status: StatusAborted}
	}
	if txn.sent < txn.total {
		txn.sent += min(txn.total-txn.sent, h.odChunk)
	}
	if txn.sent < txn.total {
		return ReadResult{Status: StatusInProgress}
	}

	_, curVer, err := h.pm.get(index, sub)
	if err != nil {
		h.app = nil
		return ReadResult{Status: StatusDone, Err: err}
	}
	if curVer != txn.snapshotVer {
		// A master write raced the read: keep the application waiting for a fresh, consistent
		// snapshot instead of handing back a torn value.
		h.app = nil
		return ReadResult{Status: StatusInProgress}
	}
	result := txn.payload
	h.app = nil
	return ReadResult{Status: StatusDone, Data: result}
}

// appWrite implements AL_Write_req.
func (h *isduHandler) appWrite(index uint16, sub uint8, data []byte) WriteResult {
	if h.masterBusy() {
		return WriteResult{Status: StatusBusy, Err: BusyErrorF("master-originated ISDU transaction in flight")}
	}
	if h.app != nil && h.app.aborted {
		h.app = nil
		return WriteResult{Status: StatusAborted}
	}
	if h.app != nil && (h.app.dir != isduWrite || h.app.index != index || h.app.sub != sub) {
		return WriteResult{Status: StatusBusy, Err: BusyErrorF("application ISDU transaction for index=%#x sub=%v in flight", h.app.index, h.app.sub)}
	}
	if h.app == nil {
		h.app = &isduTxn{origin: originApp, dir: isduWrite, index: index, sub: sub, total: len(data)}
		h.app.payload = make([]byte, 0, len(data))
	}
	txn := h.app

	if !txn.headerSent {
		txn.headerSent = true
		return WriteResult{Status: StatusInProgress}
	}
	if txn.aborted {
		h.app = nil
		return WriteResult{Status: StatusAborted}
	}
	if len(txn.payload) < txn.total {
		step := min(txn.total-len(txn.payload), h.odChunk)
		txn.payload = append(txn.payload, data[len(txn.payload):len(txn.payload)+step]...)
	}
	if len(txn.payload) < txn.total {
		return WriteResult{Status: StatusInProgress}
	}

	err := h.pm.set(index, sub, txn.payload, writerApp)
	h.app = nil
	if err != nil {
		return WriteResult{Status: StatusDone, Err: err}
	}
	return WriteResult{Status: StatusDone}
}

// beginMaster starts a master-originated transaction, preempting any in-flight
// application-originated one.
func (h *isduHandler) beginMaster(dir isduDirection, index uint16, sub uint8, writeData []byte) {
	if h.app != nil {
		h.app.aborted = true
	}
	txn := &isduTxn{origin: originMaster, dir: dir, index: index, sub: sub}
	if dir == isduWrite {
		txn.total = len(writeData)
		txn.payload = append([]byte(nil), writeData...)
	} else {
		data, _, err := h.pm.get(index, sub)
		if err == nil {
			txn.payload = data
			txn.total = len(data)
		}
	}
	h.master = txn
}

// masterOutstanding reports whether a master-originated ISDU response is still pending
// transmission, so On-Request arbitration keeps the channel reserved.
func (h *isduHandler) masterOutstanding() bool {
	return h.master != nil
}

// completeMaster finalizes the current master transaction (commits a write, or marks a read as
// fully delivered) and frees the channel for the next cycle's arbitration.
func (h *isduHandler) completeMaster() error {
	txn := h.master
	h.master = nil
	if txn == nil {
		return nil
	}
	if txn.dir == isduWrite {
		return h.pm.set(txn.index, txn.sub, txn.payload, writerMaster)
	}
	return nil
}

// isduRequestHeaderLen is the fixed read-request header: [dir][indexHi][indexLo][sub].
// A write request appends one more length byte before its payload.
const isduRequestHeaderLen = 4

// handleMasterODIn assembles a master-originated ISDU request out of the OD bytes received
// over however many cycles it takes to deliver the header (and, for a write, the payload),
// then starts servicing it — preempting any in-flight application-originated transaction.
func (h *isduHandler) handleMasterODIn(od []byte) error {
	if h.master != nil || len(od) == 0 {
		return nil
	}
	h.rxBuf = append(h.rxBuf, od...)
	if len(h.rxBuf) < isduRequestHeaderLen {
		return nil
	}
	dir := isduDirection(h.rxBuf[0])
	index := getWord(h.rxBuf, 1)
	sub := h.rxBuf[3]

	if dir == isduWrite {
		if len(h.rxBuf) < isduRequestHeaderLen+1 {
			return nil
		}
		length := int(h.rxBuf[isduRequestHeaderLen])
		want := isduRequestHeaderLen + 1 + length
		if len(h.rxBuf) < want {
			return nil
		}
		data := h.rxBuf[isduRequestHeaderLen+1 : want]
		h.beginMaster(isduWrite, index, sub, data)
		h.rxBuf = nil
		txn := h.master
		if err := h.completeMaster(); err != nil {
			return err
		}
		// The write is committed; keep it outstanding so the next OD-out slot carries its ack.
		h.master = txn
		return nil
	}

	h.beginMaster(isduRead, index, sub, nil)
	h.rxBuf = nil
	return nil
}

// produceMasterODOut returns up to chunk bytes of the in-flight master-originated read
// response, or a single ack byte once a write has been fully received and committed.
func (h *isduHandler) produceMasterODOut(chunk int) []byte {
	txn := h.master
	if txn == nil {
		return nil
	}
	if txn.dir == isduWrite {
		h.master = nil
		return []byte{ackOK}
	}
	remaining := txn.total - txn.sent
	n := min(remaining, chunk)
	out := append([]byte(nil), txn.payload[txn.sent:txn.sent+n]...)
	txn.sent += n
	if txn.sent >= txn.total {
		h.master = nil
	}
	return out
}
