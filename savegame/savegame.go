// Package savegame frames named, versioned binary records into one save
// stream and routes them back to their owners on load.
package savegame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FormatVersion is the container layout version.
const FormatVersion = 1

var magic = [4]byte{'E', 'R', 'F', 'S'}

// Limits on what a container may declare.
const (
	MaxRecords    = 256
	MaxRecordSize = 1 << 28
)

var (
	// ErrBadContainer reports a stream that is not a save container.
	ErrBadContainer = errors.New("savegame: not a save container")
	// ErrDuplicateRecord reports a second registration under one name.
	ErrDuplicateRecord = errors.New("savegame: duplicate record name")
)

// Resolver maps an identifier stored in a save to its identifier in the
// running session. ok is false when the identifier no longer exists.
type Resolver func(stored uint32) (current uint32, ok bool)

// Identity resolves every identifier to itself.
func Identity(id uint32) (uint32, bool) { return id, true }

// Record is a participant in save/load.
type Record interface {
	// RecordName is a four-byte tag, unique per dispatcher.
	RecordName() string
	RecordVersion() uint32
	Save(w io.Writer) error
	Load(r io.Reader, version uint32, resolve Resolver) error
	// Revert drops the record's live state before a load or new game.
	Revert()
}

// Dispatcher owns the registered records.
type Dispatcher struct {
	mu      sync.Mutex
	records []Record
	byTag   map[[4]byte]Record
	logger  *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		byTag:  make(map[[4]byte]Record),
		logger: logger.With(slog.String("component", "savegame")),
	}
}

func tag(name string) ([4]byte, error) {
	var t [4]byte
	if len(name) != 4 {
		return t, fmt.Errorf("savegame: record name %q must be 4 bytes", name)
	}
	copy(t[:], name)
	return t, nil
}

// Register adds a record.
func (d *Dispatcher) Register(r Record) error {
	t, err := tag(r.RecordName())
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.byTag[t]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, r.RecordName())
	}
	if len(d.records) >= MaxRecords {
		return fmt.Errorf("savegame: more than %d records", MaxRecords)
	}
	d.byTag[t] = r
	d.records = append(d.records, r)
	return nil
}

type header struct {
	Magic   [4]byte
	Format  uint32
	Records uint32
}

type recordHeader struct {
	Tag     [4]byte
	Version uint32
	Length  uint32
}

// Save writes every record in registration order.
func (d *Dispatcher) Save(w io.Writer) error {
	d.mu.Lock()
	records := append([]Record(nil), d.records...)
	d.mu.Unlock()

	if err := binary.Write(w, binary.LittleEndian, header{magic, FormatVersion, uint32(len(records))}); err != nil {
		return fmt.Errorf("savegame: write header: %w", err)
	}
	var buf bytes.Buffer
	for _, r := range records {
		buf.Reset()
		if err := r.Save(&buf); err != nil {
			return fmt.Errorf("savegame: save %s: %w", r.RecordName(), err)
		}
		if buf.Len() > MaxRecordSize {
			return fmt.Errorf("savegame: record %s is %d bytes, limit %d", r.RecordName(), buf.Len(), MaxRecordSize)
		}
		t, _ := tag(r.RecordName())
		rh := recordHeader{Tag: t, Version: r.RecordVersion(), Length: uint32(buf.Len())}
		if err := binary.Write(w, binary.LittleEndian, rh); err != nil {
			return fmt.Errorf("savegame: write %s header: %w", r.RecordName(), err)
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("savegame: write %s: %w", r.RecordName(), err)
		}
		d.logger.Debug("saved record", "record", r.RecordName(), "bytes", buf.Len())
	}
	return nil
}

func readHeader(r io.Reader) (header, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("%w: %v", ErrBadContainer, err)
	}
	if h.Magic != magic || h.Format != FormatVersion {
		return h, ErrBadContainer
	}
	if h.Records > MaxRecords {
		return h, fmt.Errorf("%w: %d records declared", ErrBadContainer, h.Records)
	}
	return h, nil
}

// readRecord reads one framed record. The payload grows with the bytes
// actually present, so a lying length fails on EOF.
func readRecord(r io.Reader) (recordHeader, []byte, error) {
	var rh recordHeader
	if err := binary.Read(r, binary.LittleEndian, &rh); err != nil {
		return rh, nil, fmt.Errorf("%w: record header: %v", ErrBadContainer, err)
	}
	if rh.Length > MaxRecordSize {
		return rh, nil, fmt.Errorf("%w: record %s declares %d bytes", ErrBadContainer, rh.Tag[:], rh.Length)
	}
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(rh.Length)); err != nil {
		return rh, nil, fmt.Errorf("%w: record %s truncated: %v", ErrBadContainer, rh.Tag[:], err)
	}
	return rh, buf.Bytes(), nil
}

// Load reverts every record, then routes each stored record to its owner.
// Unknown records are skipped. A record that fails to load is reported in
// the joined error; the others still load.
func (d *Dispatcher) Load(r io.Reader, resolve Resolver) error {
	if resolve == nil {
		resolve = Identity
	}
	h, err := readHeader(r)
	if err != nil {
		return err
	}

	d.Revert()

	var errs []error
	for i := uint32(0); i < h.Records; i++ {
		rh, payload, err := readRecord(r)
		if err != nil {
			errs = append(errs, err)
			break
		}

		d.mu.Lock()
		rec, ok := d.byTag[rh.Tag]
		d.mu.Unlock()
		if !ok {
			d.logger.Warn("skipping unknown record", "record", string(rh.Tag[:]), "bytes", rh.Length)
			continue
		}
		if err := rec.Load(bytes.NewReader(payload), rh.Version, resolve); err != nil {
			d.logger.Error("record rejected", "record", rec.RecordName(), "version", rh.Version, "error", err)
			errs = append(errs, fmt.Errorf("savegame: load %s: %w", rec.RecordName(), err))
			continue
		}
		d.logger.Debug("loaded record", "record", rec.RecordName(), "bytes", rh.Length)
	}
	return errors.Join(errs...)
}

// Revert drops live state in every record.
func (d *Dispatcher) Revert() {
	d.mu.Lock()
	records := append([]Record(nil), d.records...)
	d.mu.Unlock()
	for _, r := range records {
		r.Revert()
	}
}

// SaveFile writes the container to path, creating parent directories.
func (d *Dispatcher) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create save dir: %w", err)
	}
	var buf bytes.Buffer
	if err := d.Save(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	return nil
}

// LoadFile reads the container at path.
func (d *Dispatcher) LoadFile(path string, resolve Resolver) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read save: %w", err)
	}
	return d.Load(bytes.NewReader(data), resolve)
}

// RecordInfo describes one stored record without decoding it.
type RecordInfo struct {
	Name    string
	Version uint32
	Payload []byte
}

// ReadRecords lists the records of a container.
func ReadRecords(r io.Reader) ([]RecordInfo, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	infos := make([]RecordInfo, 0, h.Records)
	for range h.Records {
		rh, payload, err := readRecord(r)
		if err != nil {
			return infos, err
		}
		infos = append(infos, RecordInfo{Name: string(rh.Tag[:]), Version: rh.Version, Payload: payload})
	}
	return infos, nil
}
