// Package filestore persists a flat index as a pair of co-located files:
// <name>.idx holds the vectors, <name>.chunks.json holds chunk texts and metadata
// in the same order. Both files are required to load.
package filestore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/askfolio/internal/domain"
	"github.com/kailas-cloud/askfolio/internal/index/flat"
)

const (
	magic   = "AFIX"
	version = uint16(1)

	metricL2     = uint8(0)
	metricCosine = uint8(1)

	maxDim = 1 << 16
)

// ErrCorrupt signals a persisted index that cannot be decoded.
var ErrCorrupt = errors.New("filestore: corrupt index")

type header struct {
	Version uint16
	Metric  uint8
	Dim     uint32
	Count   uint32
}

type chunkRecord struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	SourceID      string `json:"source_id"`
	SequenceIndex int    `json:"sequence_index"`
}

// Paths returns the vector file and sidecar paths for name under dir.
func Paths(dir, name string) (idx, chunks string) {
	return filepath.Join(dir, name+".idx"), filepath.Join(dir, name+".chunks.json")
}

// Exists reports whether both files are present. Exactly one present is ErrIndexIncomplete.
func Exists(dir, name string) (bool, error) {
	idxPath, chunksPath := Paths(dir, name)
	idxOK, err := fileExists(idxPath)
	if err != nil {
		return false, err
	}
	chunksOK, err := fileExists(chunksPath)
	if err != nil {
		return false, err
	}
	if idxOK != chunksOK {
		return false, fmt.Errorf("%w: %s", domain.ErrIndexIncomplete, name)
	}
	return idxOK, nil
}

// Save writes idx under dir. Each file is written to a temp file and renamed into place.
func Save(dir, name string, idx *flat.Index) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	entries := idx.Entries()
	var vecBuf bytes.Buffer
	if err := encodeVectors(&vecBuf, idx.Metric(), idx.Dimensions(), entries); err != nil {
		return err
	}

	records := make([]chunkRecord, len(entries))
	for i, e := range entries {
		records[i] = chunkRecord{ID: e.ID, Text: e.Text, SourceID: e.Meta.SourceID, SequenceIndex: e.Meta.SequenceIndex}
	}
	sidecar, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chunks: %w", err)
	}

	idxPath, chunksPath := Paths(dir, name)
	if err := writeAtomic(chunksPath, sidecar); err != nil {
		return err
	}
	return writeAtomic(idxPath, vecBuf.Bytes())
}

// Load reads the pair written by Save.
func Load(dir, name string) (*flat.Index, error) {
	ok, err := Exists(dir, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	idxPath, chunksPath := Paths(dir, name)

	raw, err := os.ReadFile(chunksPath)
	if err != nil {
		return nil, fmt.Errorf("read chunks %s: %w", chunksPath, err)
	}
	var records []chunkRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: chunks: %v", ErrCorrupt, err)
	}

	f, err := os.Open(idxPath)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", idxPath, err)
	}
	defer f.Close()

	metric, vectors, err := decodeVectors(bufio.NewReader(f), len(records))
	if err != nil {
		return nil, err
	}

	entries := make([]domain.IndexEntry, len(records))
	for i, r := range records {
		entries[i] = domain.IndexEntry{
			ID:     r.ID,
			Vector: vectors[i],
			Text:   r.Text,
			Meta:   domain.ChunkMeta{SourceID: r.SourceID, SequenceIndex: r.SequenceIndex},
		}
	}

	idx := flat.New(metric)
	if err := idx.Build(context.Background(), entries); err != nil {
		return nil, fmt.Errorf("rebuild %s: %w", name, err)
	}
	return idx, nil
}

func encodeVectors(w io.Writer, metric domain.Metric, dim int, entries []domain.IndexEntry) error {
	h := header{Version: version, Dim: uint32(dim), Count: uint32(len(entries))}
	switch metric {
	case domain.MetricL2:
		h.Metric = metricL2
	case domain.MetricCosine:
		h.Metric = metricCosine
	default:
		return fmt.Errorf("encode index: unknown metric %q", metric)
	}

	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	buf := make([]byte, 4*dim)
	for _, e := range entries {
		for i, f := range e.Vector {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("encode vector %s: %w", e.ID, err)
		}
	}
	return nil
}

// decodeVectors reads a vector file that must hold exactly count vectors.
// The header is checked before anything is allocated from it.
func decodeVectors(r io.Reader, count int) (domain.Metric, [][]float32, error) {
	m := make([]byte, len(magic))
	if _, err := io.ReadFull(r, m); err != nil || string(m) != magic {
		return "", nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return "", nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if h.Version != version {
		return "", nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}

	var metric domain.Metric
	switch h.Metric {
	case metricL2:
		metric = domain.MetricL2
	case metricCosine:
		metric = domain.MetricCosine
	default:
		return "", nil, fmt.Errorf("%w: unknown metric %d", ErrCorrupt, h.Metric)
	}

	if int64(h.Count) != int64(count) {
		return "", nil, fmt.Errorf("%w: %d vectors but %d chunks", ErrCorrupt, h.Count, count)
	}
	if count > 0 && (h.Dim == 0 || h.Dim > maxDim) {
		return "", nil, fmt.Errorf("%w: dimension %d", ErrCorrupt, h.Dim)
	}

	vectors := make([][]float32, count)
	buf := make([]byte, 4*int(h.Dim))
	for i := range vectors {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", nil, fmt.Errorf("%w: vector %d: %v", ErrCorrupt, i, err)
		}
		v := make([]float32, h.Dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		vectors[i] = v
	}
	return metric, vectors, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}
