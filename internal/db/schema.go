package db

import (
	"errors"
	"fmt"
	"strconv"
)

// Distance is the FT vector distance metric.
type Distance string

// Distances supported by FLAT vector fields. Redis reports L2 squared.
const (
	DistanceL2     Distance = "L2"
	DistanceCosine Distance = "COSINE"
)

// FieldKind is the FT schema type of a hash field.
type FieldKind int

// Field kinds.
const (
	KindText FieldKind = iota
	KindTag
	KindNumeric
	KindVector
)

// Field is one attribute of a Schema. Dim and Distance apply to vectors only.
type Field struct {
	Name     string
	Kind     FieldKind
	Dim      int
	Distance Distance
}

// Schema describes an FT index over hashes sharing one key prefix.
// Methods append fields and return the schema for chaining.
type Schema struct {
	Index  string
	Prefix string
	Fields []Field
}

// NewSchema starts a schema for index over keys starting with prefix.
func NewSchema(index, prefix string) *Schema {
	return &Schema{Index: index, Prefix: prefix}
}

// Text adds full-text fields.
func (s *Schema) Text(names ...string) *Schema { return s.add(KindText, names) }

// Tag adds exact-match fields.
func (s *Schema) Tag(names ...string) *Schema { return s.add(KindTag, names) }

// Numeric adds sortable numeric fields.
func (s *Schema) Numeric(names ...string) *Schema { return s.add(KindNumeric, names) }

// FlatVector adds an exact FLOAT32 vector field.
func (s *Schema) FlatVector(name string, dim int, distance Distance) *Schema {
	s.Fields = append(s.Fields, Field{Name: name, Kind: KindVector, Dim: dim, Distance: distance})
	return s
}

func (s *Schema) add(kind FieldKind, names []string) *Schema {
	for _, n := range names {
		s.Fields = append(s.Fields, Field{Name: n, Kind: kind})
	}
	return s
}

// Validate checks names, uniqueness and vector parameters.
func (s *Schema) Validate() error {
	if !ValidName(s.Index) {
		return fmt.Errorf("schema: invalid index name %q", s.Index)
	}
	if len(s.Fields) == 0 {
		return errors.New("schema: no fields")
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema: field %d has no name", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("schema: duplicate field %s", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Kind == KindVector {
			if f.Dim <= 0 {
				return fmt.Errorf("schema: vector %s needs a positive dimension", f.Name)
			}
			if f.Distance != DistanceL2 && f.Distance != DistanceCosine {
				return fmt.Errorf("schema: vector %s has unknown distance %q", f.Name, f.Distance)
			}
		}
	}
	return nil
}

// Args renders the FT.CREATE arguments after the command name.
func (s *Schema) Args() ([]string, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	args := []string{s.Index, "ON", "HASH"}
	if s.Prefix != "" {
		args = append(args, "PREFIX", "1", s.Prefix)
	}
	args = append(args, "SCHEMA")
	for _, f := range s.Fields {
		args = append(args, f.Name)
		switch f.Kind {
		case KindText:
			args = append(args, "TEXT")
		case KindTag:
			args = append(args, "TAG")
		case KindNumeric:
			args = append(args, "NUMERIC", "SORTABLE")
		case KindVector:
			args = append(args, "VECTOR", "FLAT", "6",
				"TYPE", "FLOAT32",
				"DIM", strconv.Itoa(f.Dim),
				"DISTANCE_METRIC", string(f.Distance))
		}
	}
	return args, nil
}

// ValidName reports whether s is usable in index names and keys: [a-zA-Z0-9_:-]+.
func ValidName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == ':', r == '-':
		default:
			return false
		}
	}
	return true
}
