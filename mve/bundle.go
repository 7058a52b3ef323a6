package mve

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

const bundleHeader = "drews 1.0"

// BundleCamera is one camera of a bundle file.
type BundleCamera struct {
	FocalLength float64
	Distortion  [2]float64
	// Rotation maps world to camera coordinates.
	Rotation    mgl64.Mat3
	Translation mgl64.Vec3
}

// ReadBundle reads the cameras of a "drews 1.0" bundle file. Feature
// points are not loaded.
func ReadBundle(path string) ([]BundleCamera, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	next := func(n int) ([]float64, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("line %d: unexpected end of file", line+1)
		}
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) != n {
			return nil, fmt.Errorf("line %d: want %d values, have %d", line, n, len(fields))
		}
		out := make([]float64, n)
		for i, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			out[i] = v
		}
		return out, nil
	}

	if !sc.Scan() || strings.TrimSpace(sc.Text()) != bundleHeader {
		return nil, fmt.Errorf("%s: unsupported bundle file (%q)", path, strings.TrimSpace(sc.Text()))
	}
	line++
	counts, err := next(2)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cameras := make([]BundleCamera, int(counts[0]))
	for i := range cameras {
		var rows [5][]float64
		for r := range rows {
			if rows[r], err = next(3); err != nil {
				return nil, fmt.Errorf("%s: camera %d: %w", path, i, err)
			}
		}
		cameras[i] = BundleCamera{
			FocalLength: rows[0][0],
			Distortion:  [2]float64{rows[0][1], rows[0][2]},
			Rotation: mgl64.Mat3FromRows(
				mgl64.Vec3(rows[1]),
				mgl64.Vec3(rows[2]),
				mgl64.Vec3(rows[3]),
			),
			Translation: mgl64.Vec3(rows[4]),
		}
	}
	return cameras, nil
}
