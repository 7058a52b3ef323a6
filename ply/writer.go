package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Point is one vertex of an exported cloud.
type Point struct {
	X, Y, Z    float32
	R, G, B, A uint8
}

// pointStride is the binary size of a Point row.
const pointStride = 3*4 + 4

// WritePoints encodes points as a binary little-endian PLY stream with
// float x,y,z and uchar red,green,blue,alpha vertex properties.
func WritePoints(w io.Writer, points []Point, comments ...string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "ply")
	fmt.Fprintln(bw, "format binary_little_endian 1.0")
	for _, c := range comments {
		fmt.Fprintln(bw, "comment", c)
	}
	fmt.Fprintln(bw, "element vertex", len(points))
	for _, name := range []string{"x", "y", "z"} {
		fmt.Fprintln(bw, "property float", name)
	}
	for _, name := range []string{"red", "green", "blue", "alpha"} {
		fmt.Fprintln(bw, "property uchar", name)
	}
	fmt.Fprintln(bw, "end_header")

	var row [pointStride]byte
	for _, p := range points {
		binary.LittleEndian.PutUint32(row[0:], math.Float32bits(p.X))
		binary.LittleEndian.PutUint32(row[4:], math.Float32bits(p.Y))
		binary.LittleEndian.PutUint32(row[8:], math.Float32bits(p.Z))
		row[12], row[13], row[14], row[15] = p.R, p.G, p.B, p.A
		if _, err := bw.Write(row[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile stores points at path.
func WriteFile(path string, points []Point, comments ...string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePoints(f, points, comments...); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
