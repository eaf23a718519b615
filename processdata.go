package iolink

/*
Process Data Handler: maintains the input buffer (master → device) and the
output buffer (device → master), each with a validity bit.
*/

type processDataHandler struct {
	inSize, outSize int
	in, out         []byte
	inValid, outValid bool
}

func newProcessDataHandler(inSize, outSize int) *processDataHandler {
	return &processDataHandler{
		inSize: inSize, outSize: outSize,
		in: make([]byte, inSize), out: make([]byte, outSize),
	}
}

// setOutput implements AL_SetOutput_req: atomically overwrites the bytes the device offers
// to the master this cycle.
func (pd *processDataHandler) setOutput(data []byte, valid bool) error {
	if err := boundsCheck("process data output", len(data), pd.outSize); err != nil {
		return err
	}
	buf := make([]byte, pd.outSize)
	copy(buf, data)
	pd.out = buf
	pd.outValid = valid
	return nil
}

// currentOutput is read by the Message Handler once per cycle when assembling the outbound
// frame's PD segment.
func (pd *processDataHandler) currentOutput() ([]byte, bool) {
	return pd.out, pd.outValid
}

// getInput implements AL_GetInput_req: copies the latched master-supplied input and its
// validity.
func (pd *processDataHandler) getInput() ([]byte, bool) {
	out := make([]byte, len(pd.in))
	copy(out, pd.in)
	return out, pd.inValid
}

// latchInput is called by the Message Handler with the PD segment of a freshly accepted
// frame. Validity is forced false outside Operate.
func (pd *processDataHandler) latchInput(data []byte, state DLState) {
	copy(pd.in, data)
	pd.inValid = state == DLOperate
}

// forceInvalid clears validity without touching the buffer contents, used on a DL-Mode
// demotion.
func (pd *processDataHandler) forceInvalid() {
	pd.inValid = false
}
