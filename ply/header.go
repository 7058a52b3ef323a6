// Package ply reads and writes binary PLY point clouds.
package ply

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrFormat is returned for malformed PLY data.
	ErrFormat = errors.New("ply: invalid format")
	// ErrUnsupported is returned for valid PLY files this package cannot read.
	ErrUnsupported = errors.New("ply: unsupported")
)

// MaxElementCount bounds the element counts accepted in a header.
const MaxElementCount = math.MaxUint32

// Type is a PLY scalar type.
type Type uint8

const (
	Invalid Type = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Float32
	Float64
)

var typeNames = map[string]Type{
	"char": Int8, "int8": Int8,
	"uchar": Uint8, "uint8": Uint8,
	"short": Int16, "int16": Int16,
	"ushort": Uint16, "uint16": Uint16,
	"int": Int32, "int32": Int32,
	"uint": Uint32, "uint32": Uint32,
	"float": Float32, "float32": Float32,
	"double": Float64, "float64": Float64,
}

func (t Type) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

func (t Type) String() string {
	switch t {
	case Int8:
		return "char"
	case Uint8:
		return "uchar"
	case Int16:
		return "short"
	case Uint16:
		return "ushort"
	case Int32:
		return "int"
	case Uint32:
		return "uint"
	case Float32:
		return "float"
	case Float64:
		return "double"
	}
	return "invalid"
}

// Property is a scalar or list property of an element.
type Property struct {
	Name string
	Type Type
	// CountType is the list length type, Invalid for scalars.
	CountType Type
}

func (p Property) IsList() bool { return p.CountType != Invalid }

// Element is a block of rows sharing the same properties.
type Element struct {
	Name       string
	Count      int
	Properties []Property
}

// Stride returns the row size in bytes, 0 when the element has list
// properties.
func (e *Element) Stride() int {
	n := 0
	for _, p := range e.Properties {
		if p.IsList() {
			return 0
		}
		n += p.Type.Size()
	}
	return n
}

// Index returns the position of the named property, or -1.
func (e *Element) Index(name string) int {
	for i, p := range e.Properties {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Header is the text preamble of a PLY file.
type Header struct {
	Format   string
	Version  string
	Comments []string
	Elements []*Element
}

// ByteOrder returns the sample byte order of a binary format.
func (h *Header) ByteOrder() (binary.ByteOrder, error) {
	switch h.Format {
	case "binary_little_endian":
		return binary.LittleEndian, nil
	case "binary_big_endian":
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("%w: %s format", ErrUnsupported, h.Format)
}

// Element returns the named element, or nil.
func (h *Header) Element(name string) *Element {
	for _, e := range h.Elements {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// ReadHeader consumes the header up to and including "end_header".
func ReadHeader(r *bufio.Reader) (*Header, error) {
	line, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(line) != "ply" {
		return nil, fmt.Errorf("%w: missing ply signature", ErrFormat)
	}

	h := &Header{}
	var cur *Element
	for n := 2; ; n++ {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrFormat, n, err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "end_header":
			if h.Format == "" {
				return nil, fmt.Errorf("%w: missing format line", ErrFormat)
			}
			return h, nil
		case "format":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: line %d: bad format line", ErrFormat, n)
			}
			h.Format, h.Version = fields[1], fields[2]
		case "comment", "obj_info":
			h.Comments = append(h.Comments, strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0])))
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: line %d: bad element line", ErrFormat, n)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 || int64(count) > MaxElementCount {
				return nil, fmt.Errorf("%w: line %d: bad element count %q", ErrFormat, n, fields[2])
			}
			cur = &Element{Name: fields[1], Count: count}
			h.Elements = append(h.Elements, cur)
		case "property":
			if cur == nil {
				return nil, fmt.Errorf("%w: line %d: property outside of an element", ErrFormat, n)
			}
			p, err := parseProperty(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrFormat, n, err)
			}
			cur.Properties = append(cur.Properties, p)
		default:
			return nil, fmt.Errorf("%w: line %d: unknown keyword %q", ErrFormat, n, fields[0])
		}
	}
}

func parseProperty(fields []string) (Property, error) {
	if len(fields) == 4 && fields[0] == "list" {
		ct, ok := typeNames[fields[1]]
		if !ok {
			return Property{}, fmt.Errorf("unknown type %q", fields[1])
		}
		t, ok := typeNames[fields[2]]
		if !ok {
			return Property{}, fmt.Errorf("unknown type %q", fields[2])
		}
		return Property{Name: fields[3], Type: t, CountType: ct}, nil
	}
	if len(fields) != 2 {
		return Property{}, errors.New("bad property line")
	}
	t, ok := typeNames[fields[0]]
	if !ok {
		return Property{}, fmt.Errorf("unknown type %q", fields[0])
	}
	return Property{Name: fields[1], Type: t}, nil
}
