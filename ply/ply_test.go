package ply

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// mvePLY builds a cloud laid out like MVE's scene2pset output.
func mvePLY(t *testing.T, n int) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(`ply
format binary_little_endian 1.0
comment Export generated by libmve
element vertex ` + strconv.Itoa(n) + `
property float x
property float y
property float z
property float nx
property float ny
property float nz
property uchar red
property uchar green
property uchar blue
property float confidence
property float value
end_header
`)
	for i := range n {
		f := float32(i)
		for _, v := range []float32{f, 2 * f, -f, 0, 0, 1} {
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
		}
		buf.Write([]byte{uint8(i), 10, 20})
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, float32(0.5)))
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, float32(3)))
	}
	return buf.Bytes()
}

func TestReadCloud(t *testing.T) {
	c, err := ReadCloud(bytes.NewReader(mvePLY(t, 4)))
	require.NoError(t, err)

	require.Equal(t, 4, c.Count)
	x, y, z := c.Position(3)
	assert.Equal(t, [3]float32{3, 6, -3}, [3]float32{x, y, z})
	assert.Equal(t, []uint8{3, 10, 20, 127}, c.Colors[12:16])

	lo, hi := c.Bounds()
	assert.Equal(t, [3]float32{0, 0, -3}, lo)
	assert.Equal(t, [3]float32{3, 6, 0}, hi)

	assert.Equal(t, []uint8{0, 10, 20, 1, 10, 20}, c.RGB()[:6])
}

func TestReadHeader(t *testing.T) {
	h, err := ReadHeader(bufio.NewReader(bytes.NewReader(mvePLY(t, 1))))
	require.NoError(t, err)

	assert.Equal(t, "binary_little_endian", h.Format)
	assert.Equal(t, []string{"Export generated by libmve"}, h.Comments)
	v := h.Element("vertex")
	require.NotNil(t, v)
	assert.Equal(t, 1, v.Count)
	assert.Equal(t, 6*4+3+2*4, v.Stride())
	assert.Equal(t, 6, v.Index("red"))
	assert.Equal(t, -1, v.Index("alpha"))
	assert.Nil(t, h.Element("face"))
}

func TestReadCloudSkipsLeadingElements(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("ply\nformat binary_big_endian 1.0\nelement camera 2\nproperty short id\nelement vertex 1\nproperty double x\nproperty double y\nproperty double z\nproperty uchar alpha\nend_header\n")
	buf.Write([]byte{0, 1, 0, 2})
	for _, v := range []float64{1.5, -2.5, 4} {
		require.NoError(t, binary.Write(&buf, binary.BigEndian, v))
	}
	buf.WriteByte(9)

	c, err := ReadCloud(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2.5, 4}, c.Positions)
	assert.Equal(t, []uint8{255, 255, 255, 9}, c.Colors)
}

func TestReadCloudErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"signature", "plx\n", ErrFormat},
		{"ascii", "ply\nformat ascii 1.0\nelement vertex 0\nproperty float x\nend_header\n", ErrUnsupported},
		{"no format", "ply\nelement vertex 0\nend_header\n", ErrFormat},
		{"keyword", "ply\nformat binary_little_endian 1.0\nfoo\nend_header\n", ErrFormat},
		{"type", "ply\nformat binary_little_endian 1.0\nelement vertex 1\nproperty half x\nend_header\n", ErrFormat},
		{"orphan property", "ply\nformat binary_little_endian 1.0\nproperty float x\nend_header\n", ErrFormat},
		{"no vertex", "ply\nformat binary_little_endian 1.0\nend_header\n", ErrFormat},
		{"no xyz", "ply\nformat binary_little_endian 1.0\nelement vertex 1\nproperty float x\nend_header\n\x00\x00\x00\x00", ErrFormat},
		{"list", "ply\nformat binary_little_endian 1.0\nelement face 1\nproperty list uchar int vertex_indices\nelement vertex 0\nend_header\n", ErrUnsupported},
		{"truncated", "ply\nformat binary_little_endian 1.0\nelement vertex 2\nproperty float x\nproperty float y\nproperty float z\nend_header\n\x00\x00\x00\x00", ErrFormat},
		{"unterminated", "ply\nformat binary_little_endian 1.0\n", ErrFormat},
		{"huge count", "ply\nformat binary_little_endian 1.0\nelement vertex 70368744177664\nproperty float x\nproperty float y\nproperty float z\nend_header\n", ErrFormat},
		{"count above uint32", "ply\nformat binary_little_endian 1.0\nelement vertex 4294967296\nproperty float x\nproperty float y\nproperty float z\nend_header\n", ErrFormat},
		{"max count without body", "ply\nformat binary_little_endian 1.0\nelement vertex 4294967295\nproperty float x\nproperty float y\nproperty float z\nend_header\n\x00\x00\x80\x3f", ErrFormat},
		{"max skipped element", "ply\nformat binary_little_endian 1.0\nelement face 4294967295\nproperty double a\nelement vertex 1\nproperty float x\nproperty float y\nproperty float z\nend_header\n\x00", ErrFormat},
		{"truncated row", "ply\nformat binary_little_endian 1.0\nelement vertex 1\nproperty float x\nproperty float y\nproperty float z\nend_header\n\x00\x00\x00\x00\x00\x00", ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCloud(strings.NewReader(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenCompressed(t *testing.T) {
	dir := t.TempDir()
	data := mvePLY(t, 3)

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var x bytes.Buffer
	xw, err := xz.NewWriter(&x)
	require.NoError(t, err)
	_, err = xw.Write(data)
	require.NoError(t, err)
	require.NoError(t, xw.Close())

	files := map[string][]byte{
		"pointcloud.ply":    data,
		"pointcloud.ply.gz": gz.Bytes(),
		// The signature wins over the extension.
		"pointcloud.ply.bin": x.Bytes(),
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, content, 0o644))
		c, err := Open(p)
		require.NoError(t, err, name)
		assert.Equal(t, 3, c.Count, name)
		assert.Equal(t, float32(4), c.Positions[7], name)
	}

	_, err = Open(filepath.Join(dir, "missing.ply"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWritePoints(t *testing.T) {
	points := []Point{
		{X: 1, Y: 2, Z: 3, R: 4, G: 5, B: 6, A: 7},
		{X: -1, Y: 0.5, Z: math.MaxFloat32, R: 255},
	}
	p := filepath.Join(t.TempDir(), "selection.ply")
	require.NoError(t, WriteFile(p, points, "selection of 2 views"))

	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	br := bufio.NewReader(f)
	h, err := ReadHeader(br)
	require.NoError(t, err)
	assert.Equal(t, []string{"selection of 2 views"}, h.Comments)

	v := h.Element("vertex")
	require.NotNil(t, v)
	var names []string
	for _, prop := range v.Properties {
		names = append(names, prop.Name)
	}
	assert.Equal(t, []string{"x", "y", "z", "red", "green", "blue", "alpha"}, names)
	assert.Equal(t, pointStride, v.Stride())

	f.Seek(0, 0)
	c, err := ReadCloud(f)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, -1, 0.5, math.MaxFloat32}, c.Positions)
	assert.Equal(t, []uint8{4, 5, 6, 7, 255, 0, 0, 0}, c.Colors)
}

func TestShuffleKeepsVerticesTogether(t *testing.T) {
	c, err := ReadCloud(bytes.NewReader(mvePLY(t, 50)))
	require.NoError(t, err)
	c.Shuffle(rand.New(rand.NewPCG(1, 2)))

	seen := map[float32]bool{}
	for i := range c.Count {
		x, y, z := c.Position(i)
		assert.Equal(t, 2*x, y)
		assert.Equal(t, -x, z)
		assert.Equal(t, uint8(x), c.Colors[4*i])
		seen[x] = true
	}
	assert.Len(t, seen, 50)
}
