package ply

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/ulikunitz/xz"
)

const preallocVertices = 1 << 20

// Cloud holds the vertices of a point cloud.
type Cloud struct {
	Count int
	// Positions holds x,y,z per vertex.
	Positions []float32
	// Colors holds red,green,blue,alpha per vertex. Alpha is the vertex
	// confidence scaled to 255, or the alpha property when present.
	Colors []uint8
}

// Position returns the coordinates of vertex i.
func (c *Cloud) Position(i int) (x, y, z float32) {
	return c.Positions[3*i], c.Positions[3*i+1], c.Positions[3*i+2]
}

// Bounds returns the axis-aligned bounding box of the vertices. An empty
// cloud has zero bounds.
func (c *Cloud) Bounds() (lo, hi [3]float32) {
	if c.Count == 0 {
		return lo, hi
	}
	copy(lo[:], c.Positions[:3])
	copy(hi[:], c.Positions[:3])
	for i := 1; i < c.Count; i++ {
		for a := range 3 {
			v := c.Positions[3*i+a]
			lo[a] = min(lo[a], v)
			hi[a] = max(hi[a], v)
		}
	}
	return lo, hi
}

// RGB returns the colors without the alpha channel.
func (c *Cloud) RGB() []uint8 {
	out := make([]uint8, 3*c.Count)
	for i := range c.Count {
		copy(out[3*i:3*i+3], c.Colors[4*i:4*i+3])
	}
	return out
}

// Shuffle permutes the vertices so that any prefix is a uniform sample.
func (c *Cloud) Shuffle(r *rand.Rand) {
	r.Shuffle(c.Count, func(i, j int) {
		for a := range 3 {
			c.Positions[3*i+a], c.Positions[3*j+a] = c.Positions[3*j+a], c.Positions[3*i+a]
		}
		for a := range 4 {
			c.Colors[4*i+a], c.Colors[4*j+a] = c.Colors[4*j+a], c.Colors[4*i+a]
		}
	})
}

// Open reads the point cloud at path. Gzip and xz compressed files are
// recognized by their signature.
func Open(path string) (*Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := Decompress(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c, err := ReadCloud(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Decompress wraps r in a decompressor matching its signature.
func Decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(262)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}
	kind, _ := filetype.Match(head)
	switch kind {
	case matchers.TypeGz:
		return gzip.NewReader(br)
	case matchers.TypeXz:
		return xz.NewReader(br)
	}
	return br, nil
}

// ReadCloud decodes the vertex element of a binary PLY stream.
func ReadCloud(r io.Reader) (*Cloud, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	h, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	order, err := h.ByteOrder()
	if err != nil {
		return nil, err
	}

	for _, e := range h.Elements {
		if e.Name == "vertex" {
			return readVertices(br, order, e)
		}
		stride := e.Stride()
		if stride == 0 && len(e.Properties) > 0 {
			return nil, fmt.Errorf("%w: list element %q before vertices", ErrUnsupported, e.Name)
		}
		if _, err := io.CopyN(io.Discard, br, int64(stride)*int64(e.Count)); err != nil {
			return nil, fmt.Errorf("%w: element %q: %w", ErrFormat, e.Name, err)
		}
	}
	return nil, fmt.Errorf("%w: no vertex element", ErrFormat)
}

func readVertices(r io.Reader, order binary.ByteOrder, e *Element) (*Cloud, error) {
	stride := e.Stride()
	if stride == 0 {
		return nil, fmt.Errorf("%w: list properties in vertex element", ErrUnsupported)
	}

	col := func(name string) int { return e.Index(name) }
	x, y, z := col("x"), col("y"), col("z")
	if x < 0 || y < 0 || z < 0 {
		return nil, fmt.Errorf("%w: vertex element needs x, y and z", ErrFormat)
	}
	red, green, blue := col("red"), col("green"), col("blue")
	alpha, confidence := col("alpha"), col("confidence")

	offsets := make([]int, len(e.Properties))
	for i, off := 0, 0; i < len(e.Properties); i++ {
		offsets[i] = off
		off += e.Properties[i].Type.Size()
	}
	value := func(row []byte, i int) float64 {
		if i < 0 {
			return math.NaN()
		}
		return decode(row[offsets[i]:], e.Properties[i].Type, order)
	}
	channel := func(row []byte, i int, scale float64) uint8 {
		v := value(row, i)
		if math.IsNaN(v) {
			return 255
		}
		return uint8(max(0, min(255, v*scale)))
	}

	// The header count is untrusted: reserve at most a chunk up front and
	// let the slices grow with the rows actually read.
	reserve := min(e.Count, preallocVertices)
	c := &Cloud{
		Count:     e.Count,
		Positions: make([]float32, 0, 3*reserve),
		Colors:    make([]uint8, 0, 4*reserve),
	}
	row := make([]byte, stride)
	for i := range e.Count {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, fmt.Errorf("%w: vertex %d of %d: %w", ErrFormat, i, e.Count, err)
		}
		a := channel(row, confidence, 255)
		if alpha >= 0 {
			a = channel(row, alpha, 1)
		}
		c.Positions = append(c.Positions,
			float32(value(row, x)), float32(value(row, y)), float32(value(row, z)))
		c.Colors = append(c.Colors,
			channel(row, red, 1), channel(row, green, 1), channel(row, blue, 1), a)
	}
	return c, nil
}

func decode(b []byte, t Type, order binary.ByteOrder) float64 {
	switch t {
	case Int8:
		return float64(int8(b[0]))
	case Uint8:
		return float64(b[0])
	case Int16:
		return float64(int16(order.Uint16(b)))
	case Uint16:
		return float64(order.Uint16(b))
	case Int32:
		return float64(int32(order.Uint32(b)))
	case Uint32:
		return float64(order.Uint32(b))
	case Float32:
		return float64(math.Float32frombits(order.Uint32(b)))
	case Float64:
		return math.Float64frombits(order.Uint64(b))
	}
	return 0
}
