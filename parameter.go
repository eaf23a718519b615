package iolink

// Access describes which directions a parameter slot permits.
type Access uint8

const (
	AccessRead Access = 1 << iota
	AccessWrite
)

// AccessReadWrite permits both directions.
const AccessReadWrite = AccessRead | AccessWrite

func (a Access) readable() bool { return a&AccessRead != 0 }
func (a Access) writable() bool { return a&AccessWrite != 0 }

// ParameterSlot declares one entry in the static parameter directory. The
// directory is fixed at construction time; there is no runtime growth.
type ParameterSlot struct {
	Index      uint16
	Sub        uint8
	Access     Access
	Persistent bool
	// MaxLength bounds the value size; 0 means the device's configured ISDU ceiling applies.
	MaxLength int
	// Initial seeds a volatile slot's value, or a persistent slot's value when Config.DataStorage
	// carries no matching entry.
	Initial []byte
}

// writerKind distinguishes the application-local writer from the master (wire) writer for the
// tie-break rule below.
type writerKind uint8

const (
	writerApp writerKind = iota
	writerMaster
)

type paramState struct {
	def     ParameterSlot
	value   []byte // only used for volatile slots; persistent slots live in dataStorage
	version uint64
}

// parameterManager routes ISDU index/sub-index pairs to typed slots, delegating persistent rows
// to Data Storage.
type parameterManager struct {
	defs        map[uint32]*paramState
	order       []uint32
	ds          *dataStorage
	isduCeiling int
}

func newParameterManager(cfg Config, ds *dataStorage) (*parameterManager, error) {
	pm := &parameterManager{defs: make(map[uint32]*paramState), ds: ds, isduCeiling: cfg.ISDUCeiling}
	for _, def := range cfg.Parameters {
		k := entryKey(def.Index, def.Sub)
		st := &paramState{def: def}
		if def.Persistent {
			if _, ok := ds.Get(def.Index, def.Sub); !ok && def.Initial != nil {
				_ = ds.Set(def.Index, def.Sub, def.Initial)
			}
		} else if def.Initial != nil {
			st.value = append([]byte(nil), def.Initial...)
		}
		pm.defs[k] = st
		pm.order = append(pm.order, k)
	}
	return pm, nil
}

func (pm *parameterManager) lookup(index uint16, sub uint8) (*paramState, bool) {
	st, ok := pm.defs[entryKey(index, sub)]
	return st, ok
}

func (pm *parameterManager) maxLength(def ParameterSlot) int {
	if def.MaxLength > 0 {
		return def.MaxLength
	}
	return pm.isduCeiling
}

// get returns the slot's current value and a version token; the caller compares tokens across
// poll cycles to detect a concurrent master write.
func (pm *parameterManager) get(index uint16, sub uint8) ([]byte, uint64, error) {
	st, ok := pm.lookup(index, sub)
	if !ok {
		return nil, 0, InvalidParameterErrorF("no parameter directory entry for index=%#x sub=%v", index, sub)
	}
	if !st.def.Access.readable() {
		return nil, 0, AccessDeniedErrorF("index=%#x sub=%v is not readable", index, sub)
	}
	if st.def.Persistent {
		v, _ := pm.ds.Get(index, sub)
		return v, uint64(pm.ds.Version()), nil
	}
	return st.value, st.version, nil
}

// set writes the slot's value. Master writes bypass a Data Storage lock only via Download;
// ordinary ISDU writes from the master still honor Locked for persistent slots, matching the
// scenario this guards against.
func (pm *parameterManager) set(index uint16, sub uint8, data []byte, who writerKind) error {
	st, ok := pm.lookup(index, sub)
	if !ok {
		return InvalidParameterErrorF("no parameter directory entry for index=%#x sub=%v", index, sub)
	}
	if !st.def.Access.writable() {
		return AccessDeniedErrorF("index=%#x sub=%v is read-only", index, sub)
	}
	if err := boundsCheck("parameter value", len(data), pm.maxLength(st.def)); err != nil {
		return err
	}
	if st.def.Persistent {
		return pm.ds.Set(index, sub, data)
	}
	st.value = append([]byte(nil), data...)
	st.version++
	_ = who // last-writer-wins for volatile slots regardless of origin
	return nil
}
