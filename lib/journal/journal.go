// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/zeebo/blake3"

	"github.com/spt-tools/vagsearch/lib/codec"
	"github.com/spt-tools/vagsearch/lib/geom"
	"github.com/spt-tools/vagsearch/lib/portal"
	"github.com/spt-tools/vagsearch/lib/vag"
)

// Version is the current journal format version.
const Version = 1

var magic = [4]byte{'V', 'A', 'G', 'J'}

// ErrNotJournal is returned by Read when the preamble is wrong.
var ErrNotJournal = errors.New("journal: not a vagsearch journal")

// Digest identifies a portal placement.
type Digest [32]byte

// String returns the digest in hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex digits.
func (d Digest) Short() string {
	return d.String()[:12]
}

// placementDomain separates placement digests from any other BLAKE3
// use of the same bytes.
const placementDomain = "vagsearch portal placement v1\x00"

// PlacementDigest hashes the origins and angles of the entry and exit
// portals, in that order, as little-endian float32 bits.
func PlacementDigest(entry, exit *portal.Portal) Digest {
	hasher := blake3.New()
	hasher.Write([]byte(placementDomain))
	var buffer [4]byte
	for _, vector := range []geom.Vec3{entry.Origin, entry.Angles, exit.Origin, exit.Angles} {
		for _, component := range vector {
			binary.LittleEndian.PutUint32(buffer[:], math.Float32bits(component))
			hasher.Write(buffer[:])
		}
	}
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// PortalRecord is a portal's placement at search time.
type PortalRecord struct {
	Index  int        `cbor:"i"`
	Origin [3]float32 `cbor:"o"`
	Angles [3]float32 `cbor:"a"`
}

func portalRecord(p *portal.Portal) PortalRecord {
	return PortalRecord{Index: p.Index, Origin: p.Origin, Angles: p.Angles}
}

// Header describes the search a journal records.
type Header struct {
	Version   int          `cbor:"v"`
	StartedAt int64        `cbor:"t"`
	Policy    string       `cbor:"p"`
	Entry     PortalRecord `cbor:"en"`
	Exit      PortalRecord `cbor:"ex"`
	Placement Digest       `cbor:"d"`
}

// Started returns StartedAt as a time.
func (h Header) Started() time.Time {
	return time.Unix(0, h.StartedAt).UTC()
}

// NewHeader builds the header for a search between entry and exit.
func NewHeader(entry, exit *portal.Portal, policy string, started time.Time) Header {
	return Header{
		Version:   Version,
		StartedAt: started.UnixNano(),
		Policy:    policy,
		Entry:     portalRecord(entry),
		Exit:      portalRecord(exit),
		Placement: PlacementDigest(entry, exit),
	}
}

// ProbeRecord is one probe.
type ProbeRecord struct {
	Iteration      int        `cbor:"n" json:"iteration"`
	Command        string     `cbor:"c" json:"command"`
	Requested      [3]float32 `cbor:"rq" json:"requested"`
	Observed       [3]float32 `cbor:"ob" json:"observed"`
	Classification string     `cbor:"k,omitempty" json:"classification,omitempty"`
	Crash          bool       `cbor:"x,omitempty" json:"crash,omitempty"`
	Side           string     `cbor:"s" json:"side"`
}

// ResultRecord is how the search ended.
type ResultRecord struct {
	Outcome  string `cbor:"o" json:"outcome"`
	Probes   int    `cbor:"n" json:"probes"`
	Axis     int    `cbor:"a" json:"axis"`
	Crouched bool   `cbor:"c" json:"crouched"`
	Command  string `cbor:"cmd,omitempty" json:"command,omitempty"`
}

// record is the envelope of everything after the header.
type record struct {
	Probe  *ProbeRecord  `cbor:"p,omitempty"`
	Result *ResultRecord `cbor:"r,omitempty"`
}

// Writer appends records to a journal. It implements vag.Recorder.
type Writer struct {
	file       *os.File
	buffered   *bufio.Writer
	compressor io.WriteCloser
	encoder    *codec.Encoder
	closed     bool
}

// Create writes a new journal at path.
func Create(path string, header Header, compression Compression) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	writer, err := newWriter(file, header, compression)
	if err != nil {
		file.Close()
		return nil, err
	}
	writer.file = file
	return writer, nil
}

// NewWriter writes a journal to w. Close flushes but does not close w.
func NewWriter(w io.Writer, header Header, compression Compression) (*Writer, error) {
	return newWriter(w, header, compression)
}

func newWriter(w io.Writer, header Header, compression Compression) (*Writer, error) {
	buffered := bufio.NewWriter(w)
	preamble := append(magic[:], Version, byte(compression))
	if _, err := buffered.Write(preamble); err != nil {
		return nil, fmt.Errorf("journal: writing preamble: %w", err)
	}
	compressing, err := compressor(buffered, compression)
	if err != nil {
		return nil, err
	}
	writer := &Writer{
		buffered:   buffered,
		compressor: compressing,
		encoder:    codec.NewEncoder(compressing),
	}
	if err := writer.encode(header); err != nil {
		return nil, err
	}
	return writer, nil
}

func (w *Writer) encode(value any) error {
	if w.closed {
		return errors.New("journal: write after close")
	}
	if err := w.encoder.Encode(value); err != nil {
		return fmt.Errorf("journal: encoding record: %w", err)
	}
	if f, ok := w.compressor.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("journal: flushing: %w", err)
		}
	}
	if err := w.buffered.Flush(); err != nil {
		return fmt.Errorf("journal: flushing: %w", err)
	}
	return nil
}

// RecordProbe appends a probe record.
func (w *Writer) RecordProbe(probe vag.Probe) error {
	entry := record{Probe: &ProbeRecord{
		Iteration: probe.Iteration,
		Command:   probe.Command,
		Requested: probe.Requested,
		Observed:  probe.Observation.Position,
		Crash:     probe.Observation.Crash,
		Side:      probe.Side.String(),
	}}
	if probe.Observation.Classification != 0 {
		entry.Probe.Classification = probe.Observation.Classification.String()
	}
	return w.encode(entry)
}

// Finish appends the result record.
func (w *Writer) Finish(result *vag.Result) error {
	summary := &ResultRecord{
		Outcome:  result.Outcome.String(),
		Probes:   len(result.Probes),
		Axis:     result.Axis,
		Crouched: result.Crouched,
	}
	if result.Outcome == vag.Success {
		summary.Command = result.Command()
	}
	return w.encode(record{Result: summary})
}

// Close ends the compressed stream and closes the file, if Create
// opened one.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var errs []error
	if err := w.compressor.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := w.buffered.Flush(); err != nil {
		errs = append(errs, err)
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("journal: close: %w", err)
	}
	return nil
}

// Journal is a decoded journal file.
type Journal struct {
	Compression Compression
	Header      Header
	Probes      []ProbeRecord

	// Result is nil when the search did not finish.
	Result *ResultRecord
}

// ReadFile decodes the journal at path.
func ReadFile(path string) (*Journal, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	defer file.Close()
	journal, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return journal, nil
}

// Read decodes a journal stream.
func Read(r io.Reader) (*Journal, error) {
	var preamble [6]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotJournal, err)
	}
	if [4]byte(preamble[:4]) != magic {
		return nil, ErrNotJournal
	}
	if preamble[4] != Version {
		return nil, fmt.Errorf("journal: unsupported version %d", preamble[4])
	}
	journal := &Journal{Compression: Compression(preamble[5])}

	stream, err := decompressor(r, journal.Compression)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	decoder := codec.NewDecoder(stream)
	if err := decoder.Decode(&journal.Header); err != nil {
		return nil, fmt.Errorf("journal: decoding header: %w", err)
	}
	for {
		var next record
		err := decoder.Decode(&next)
		if errors.Is(err, io.EOF) {
			return journal, nil
		}
		if err != nil {
			return nil, fmt.Errorf("journal: decoding record %d: %w", len(journal.Probes)+1, err)
		}
		switch {
		case next.Probe != nil:
			journal.Probes = append(journal.Probes, *next.Probe)
		case next.Result != nil:
			journal.Result = next.Result
		}
	}
}
