package db

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// KNNQuery asks for the K nearest hashes to Vector on the Field vector attribute.
type KNNQuery struct {
	Index  string
	Field  string
	Vector []float32
	K      int
	Return []string
}

// Validate rejects queries the engine would refuse.
func (q *KNNQuery) Validate() error {
	switch {
	case q.Index == "":
		return errors.New("knn: index is required")
	case q.Field == "":
		return errors.New("knn: vector field is required")
	case len(q.Vector) == 0:
		return errors.New("knn: vector is required")
	case q.K <= 0:
		return errors.New("knn: k must be positive")
	}
	return nil
}

// KNNResult holds the matches nearest first, as the engine ranked them.
type KNNResult struct {
	Total   int
	Matches []Match
}

// Match is one hash hit with the raw engine distance.
type Match struct {
	Key      string
	Distance float64
	Fields   map[string]string
}

// Float32Blob encodes v as little-endian FLOAT32, the layout FT vector fields expect.
func Float32Blob(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return string(buf)
}

// ParseFloat32Blob decodes a Float32Blob value.
func ParseFloat32Blob(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("float32 blob: length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
