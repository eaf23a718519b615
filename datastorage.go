package iolink

import (
	"gopkg.in/yaml.v3"
)

// dsMagic identifies a valid Data Storage record.
const dsMagic uint32 = 0x494F4C31 // "IOL1"

// StoredEntry is one (index, sub, bytes) tuple in the persistent parameter set.
type StoredEntry struct {
	Index uint16
	Sub   uint8
	Data  []byte
}

func entryKey(index uint16, sub uint8) uint32 {
	return uint32(index)<<8 | uint32(sub)
}

// dataStorage is the non-volatile parameter set with upload/download and an explicit lock.
type dataStorage struct {
	entries map[uint32]StoredEntry
	order   []uint32
	locked  bool
	version uint32
	corrupt bool

	diagCorruptBoots uint32
}

func newDataStorage(seed []StoredEntry) *dataStorage {
	d := &dataStorage{entries: make(map[uint32]StoredEntry)}
	for _, e := range seed {
		d.put(e)
	}
	return d
}

func (d *dataStorage) put(e StoredEntry) {
	k := entryKey(e.Index, e.Sub)
	if _, exists := d.entries[k]; !exists {
		d.order = append(d.order, k)
	}
	d.entries[k] = e
}

// Get returns the stored bytes for (index, sub), if present.
func (d *dataStorage) Get(index uint16, sub uint8) ([]byte, bool) {
	e, ok := d.entries[entryKey(index, sub)]
	if !ok {
		return nil, false
	}
	return e.Data, true
}

// Set performs a local (device-application-originated) write. Locked storage rejects local
// writes; master downloads go through Download instead, which bypasses the lock.
func (d *dataStorage) Set(index uint16, sub uint8, data []byte) error {
	if d.locked {
		return LockedErrorF("data storage is locked, write to index=%#x sub=%v rejected", index, sub)
	}
	d.put(StoredEntry{Index: index, Sub: sub, Data: append([]byte(nil), data...)})
	d.version++
	return nil
}

// Lock blocks further local writes until Unlock is called.
func (d *dataStorage) Lock() {
	d.locked = true
}

// Unlock releases a previously held lock.
func (d *dataStorage) Unlock() {
	d.locked = false
}

// Locked reports whether local writes are currently rejected.
func (d *dataStorage) Locked() bool {
	return d.locked
}

// Version returns the current version counter; it increments on every successful download or
// local commit.
func (d *dataStorage) Version() uint32 {
	return d.version
}

// Corrupt reports whether the persistent set failed its CRC check on the most recent Download.
func (d *dataStorage) Corrupt() bool {
	return d.corrupt
}

// Upload serializes the whole persistent set to a header (magic, version, length, CRC-16)
// followed by a packed list of (index, sub, len, bytes) tuples.
func (d *dataStorage) Upload() []byte {
	body := make([]byte, 0, 64)
	for _, k := range d.order {
		e := d.entries[k]
		row := make([]byte, 0, 4+len(e.Data))
		row = append(row, 0, 0)
		setWord(row, 0, e.Index)
		row = append(row, e.Sub, bytePanic(len(e.Data)))
		row = append(row, e.Data...)
		body = append(body, row...)
	}

	header := make([]byte, 10)
	setWord(header, 0, uint16(dsMagic>>16))
	setWord(header, 2, uint16(dsMagic&0xFFFF))
	setWord(header, 4, uint16(d.version>>16))
	setWord(header, 6, uint16(d.version&0xFFFF))
	setWord(header, 8, uint16(len(body)))

	crc := crc16(append(append([]byte(nil), header...), body...))
	out := make([]byte, 0, len(header)+2+len(body))
	out = append(out, header...)
	crcBytes := make([]byte, 2)
	setWordLE(crcBytes, 0, crc)
	out = append(out, crcBytes...)
	out = append(out, body...)
	return out
}

// Download atomically replaces the whole persistent set from an upload blob, bypassing the
// lock (master is privileged). A CRC mismatch or a short/partial blob is rejected in its
// entirety: the existing set is left untouched and Corrupt reports true.
func (d *dataStorage) Download(blob []byte) error {
	entries, err := decodeRecord(blob)
	if err != nil {
		d.corrupt = true
		return ProtocolErrorF("data storage download rejected: %v", err)
	}
	d.entries = make(map[uint32]StoredEntry)
	d.order = nil
	for _, e := range entries {
		d.put(e)
	}
	d.version++
	d.corrupt = false
	return nil
}

func decodeRecord(blob []byte) ([]StoredEntry, error) {
	if len(blob) < 12 {
		return nil, InvalidFrameErrorF("record too short: %v bytes", len(blob))
	}
	r := newFrameReader(blob)
	magicHi, _ := r.getWord()
	magicLo, _ := r.getWord()
	magic := uint32(magicHi)<<16 | uint32(magicLo)
	if magic != dsMagic {
		return nil, ProtocolErrorF("bad magic %#x", magic)
	}
	_, _ = r.getWord() // version hi
	_, _ = r.getWord() // version lo
	length, _ := r.getWord()
	crcBytes, err := r.getBytes(2)
	if err != nil {
		return nil, err
	}
	storedCRC := getWordLE(crcBytes, 0)
	body, err := r.getBytes(int(length))
	if err != nil {
		return nil, InvalidFrameErrorF("record declares %v body bytes but only %v remain", length, len(r.remaining()))
	}
	check := append(append([]byte(nil), blob[:10]...), body...)
	if crc16(check) != storedCRC {
		return nil, ChecksumErrorF("data storage record CRC mismatch")
	}

	br := newFrameReader(body)
	var entries []StoredEntry
	for !br.atEnd() {
		idx, err := br.getWord()
		if err != nil {
			return nil, err
		}
		sub, err := br.getByte()
		if err != nil {
			return nil, err
		}
		ln, err := br.getByte()
		if err != nil {
			return nil, err
		}
		data, err := br.getBytes(int(ln))
		if err != nil {
			return nil, InvalidFrameErrorF("entry index=%#x sub=%v declares %v bytes but record is truncated", idx, sub, ln)
		}
		entries = append(entries, StoredEntry{Index: idx, Sub: sub, Data: append([]byte(nil), data...)})
	}
	return entries, nil
}

// dsYAMLEntry is the YAML mirror of StoredEntry used by DumpYAML/LoadYAML for operator
// inspection and test fixtures.
type dsYAMLEntry struct {
	Index uint16 `yaml:"index"`
	Sub   uint8  `yaml:"sub"`
	Data  []byte `yaml:"data"`
}

type dsYAMLDoc struct {
	Version uint32        `yaml:"version"`
	Locked  bool          `yaml:"locked"`
	Entries []dsYAMLEntry `yaml:"entries"`
}

// DumpYAML renders the persistent set as human-readable YAML for debugging and fixtures.
func (d *dataStorage) DumpYAML() ([]byte, error) {
	doc := dsYAMLDoc{Version: d.version, Locked: d.locked}
	for _, k := range d.order {
		e := d.entries[k]
		doc.Entries = append(doc.Entries, dsYAMLEntry{Index: e.Index, Sub: e.Sub, Data: e.Data})
	}
	return yaml.Marshal(doc)
}

// BuildRecord serializes a standalone entry set to the wire record format, without a running
// Device — the primitive cmd/dsfixture uses to produce test blobs.
func BuildRecord(entries []StoredEntry) []byte {
	return newDataStorage(entries).Upload()
}

// InspectRecord decodes a wire record back to its entries without a running Device, validating
// its CRC in the process.
func InspectRecord(blob []byte) ([]StoredEntry, error) {
	return decodeRecord(blob)
}

// CorruptRecord inverts every bit of the first byte of a previously built record's CRC field,
// producing a blob
// Device.Poll's Data Storage Download path will reject — used to exercise the corrupt-storage
// path in tests without needing real flash wear.
func CorruptRecord(blob []byte) []byte {
	out := append([]byte(nil), blob...)
	if len(out) > 10 {
		out[10] ^= 0xFF
	}
	return out
}

// EntriesToYAML renders a standalone entry set as YAML, the same shape DumpYAML produces.
func EntriesToYAML(entries []StoredEntry) ([]byte, error) {
	doc := dsYAMLDoc{}
	for _, e := range entries {
		doc.Entries = append(doc.Entries, dsYAMLEntry{Index: e.Index, Sub: e.Sub, Data: e.Data})
	}
	return yaml.Marshal(doc)
}

// EntriesFromYAML parses a YAML fixture produced by EntriesToYAML or DumpYAML.
func EntriesFromYAML(data []byte) ([]StoredEntry, error) {
	var doc dsYAMLDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, ProtocolErrorF("data storage YAML fixture invalid: %v", err)
	}
	entries := make([]StoredEntry, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		entries = append(entries, StoredEntry{Index: e.Index, Sub: e.Sub, Data: e.Data})
	}
	return entries, nil
}

// LoadYAML replaces the persistent set from a YAML fixture, bypassing the lock like Download.
func (d *dataStorage) LoadYAML(data []byte) error {
	var doc dsYAMLDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ProtocolErrorF("data storage YAML fixture invalid: %v", err)
	}
	d.entries = make(map[uint32]StoredEntry)
	d.order = nil
	for _, e := range doc.Entries {
		d.put(StoredEntry{Index: e.Index, Sub: e.Sub, Data: e.Data})
	}
	d.locked = doc.Locked
	d.version++
	d.corrupt = false
	return nil
}
