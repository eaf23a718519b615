package iolink

import "testing"

func newTestISDU(t *testing.T, chunk int) (*isduHandler, *parameterManager) {
	t.Helper()
	ds := newDataStorage(nil)
	cfg := Config{ISDUCeiling: 64, Parameters: []ParameterSlot{
		{Index: 0x0010, Sub: 0, Access: AccessReadWrite, Initial: []byte("ACME")},
	}}
	pm, err := newParameterManager(cfg, ds)
	if err != nil {
		t.Fatalf("newParameterManager: %v", err)
	}
	h := newISDUHandler(pm)
	h.setODChunk(chunk)
	return h, pm
}

func TestISDU_AppReadSpansMultipleCycles(t *testing.T) {
	h, _ := newTestISDU(t, 1) // one byte of OD per cycle, so "ACME" (4 bytes) takes several polls

	r := h.appRead(0x0010, 0)
	if r.Status != StatusInProgress {
		t.Fatalf("expected the header cycle to report InProgress, got %v", r.Status)
	}

	var last ReadResult
	for i := 0; i < 10; i++ {
		last = h.appRead(0x0010, 0)
		if last.Status == StatusDone {
			break
		}
		if last.Status != StatusInProgress {
			t.Fatalf("unexpected status mid-transfer: %v (%v)", last.Status, last.Err)
		}
	}
	if last.Status != StatusDone || string(last.Data) != "ACME" {
		t.Fatalf("expected a completed read of ACME, got status=%v data=%q err=%v", last.Status, last.Data, last.Err)
	}
}

func TestISDU_AppWriteSpansMultipleCycles(t *testing.T) {
	h, pm := newTestISDU(t, 2)
	payload := []byte("newvalue")

	r := h.appWrite(0x0010, 0, payload)
	if r.Status != StatusInProgress {
		t.Fatalf("expected the header cycle to report InProgress, got %v", r.Status)
	}
	var last WriteResult
	for i := 0; i < 10; i++ {
		last = h.appWrite(0x0010, 0, payload)
		if last.Status == StatusDone {
			break
		}
	}
	if last.Status != StatusDone || last.Err != nil {
		t.Fatalf("expected the write to complete, got status=%v err=%v", last.Status, last.Err)
	}
	v, _, err := pm.get(0x0010, 0)
	if err != nil || string(v) != "newvalue" {
		t.Fatalf("expected the parameter to hold the written value, got %q, %v", v, err)
	}
}

func TestISDU_MasterPreemptsInFlightApp(t *testing.T) {
	h, _ := newTestISDU(t, 1)

	_ = h.appRead(0x0010, 0) // header cycle only; app transaction now in flight

	h.beginMaster(isduRead, 0x0010, 0, nil)
	if !h.masterBusy() {
		t.Fatalf("expected a master transaction to be in flight")
	}

	r := h.appRead(0x0010, 0)
	if r.Status != StatusBusy {
		t.Fatalf("expected the app to see Busy while the master transaction is in flight, got %v", r.Status)
	}
}

func TestISDU_AbortAppTransaction(t *testing.T) {
	h, _ := newTestISDU(t, 1)
	_ = h.appRead(0x0010, 0)
	h.abortApp()

	r := h.appRead(0x0010, 0)
	if r.Status != StatusAborted {
		t.Fatalf("expected an aborted app transaction to report Aborted, got %v", r.Status)
	}
}

func TestISDU_MasterWireReadRoundTrip(t *testing.T) {
	h, _ := newTestISDU(t, 64)

	req := []byte{byte(isduRead), 0x00, 0x10, 0x00}
	if err := h.handleMasterODIn(req); err != nil {
		t.Fatalf("handleMasterODIn: %v", err)
	}
	if !h.masterOutstanding() {
		t.Fatalf("expected a master read to be outstanding after its header arrives")
	}

	out := h.produceMasterODOut(64)
	if string(out) != "ACME" {
		t.Fatalf("expected the master read response to be ACME, got %q", out)
	}
	if h.masterOutstanding() {
		t.Fatalf("expected the master transaction to be cleared once fully delivered")
	}
}

func TestISDU_MasterWireWriteCommitsAndAcks(t *testing.T) {
	h, pm := newTestISDU(t, 64)

	req := []byte{byte(isduWrite), 0x00, 0x10, 0x00, byte(len("hello")), 'h', 'e', 'l', 'l', 'o'}
	if err := h.handleMasterODIn(req); err != nil {
		t.Fatalf("handleMasterODIn: %v", err)
	}

	v, _, err := pm.get(0x0010, 0)
	if err != nil || string(v) != "hello" {
		t.Fatalf("expected the write to commit immediately once the full payload arrived, got %q, %v", v, err)
	}
}
