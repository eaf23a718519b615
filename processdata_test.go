package iolink

import "testing"

func TestProcessData_SetOutputGetCurrent(t *testing.T) {
	pd := newProcessDataHandler(2, 4)
	if err := pd.setOutput([]byte{1, 2, 3, 4}, true); err != nil {
		t.Fatalf("setOutput: %v", err)
	}
	out, valid := pd.currentOutput()
	if !valid || string(out) != string([]byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected output: %v valid=%v", out, valid)
	}
}

func TestProcessData_SetOutputBoundsCheck(t *testing.T) {
	pd := newProcessDataHandler(0, 2)
	if err := pd.setOutput([]byte{1, 2, 3}, true); err == nil {
		t.Fatalf("expected an oversized output write to be rejected")
	}
}

func TestProcessData_LatchInputValidOnlyInOperate(t *testing.T) {
	pd := newProcessDataHandler(2, 0)
	pd.latchInput([]byte{9, 9}, DLPreoperate)
	_, valid := pd.getInput()
	if valid {
		t.Fatalf("expected input to be invalid outside Operate")
	}

	pd.latchInput([]byte{9, 9}, DLOperate)
	data, valid := pd.getInput()
	if !valid || string(data) != string([]byte{9, 9}) {
		t.Fatalf("expected valid latched input in Operate, got %v valid=%v", data, valid)
	}
}

func TestProcessData_ForceInvalid(t *testing.T) {
	pd := newProcessDataHandler(1, 0)
	pd.latchInput([]byte{1}, DLOperate)
	pd.forceInvalid()
	_, valid := pd.getInput()
	if valid {
		t.Fatalf("expected forceInvalid to clear validity without touching the buffer")
	}
}
