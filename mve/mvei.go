package mve

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
)

var (
	// ErrBadMagic is returned for files without the MVE image signature.
	ErrBadMagic = errors.New("mve: invalid mvei signature")
	// ErrUnsupportedType is returned for unknown sample types.
	ErrUnsupportedType = errors.New("mve: unsupported mvei sample type")
	// ErrFormat is returned for headers that do not match the image data.
	ErrFormat = errors.New("mve: invalid mvei image")
)

const (
	mveiMagic      = "\x89MVE_IMAGE\n"
	mveiHeaderSize = len(mveiMagic) + 16
)

// ImageType is the sample type of an .mvei image.
type ImageType uint32

const (
	TypeUnknown ImageType = iota
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeSint8
	TypeSint16
	TypeSint32
	TypeSint64
	TypeFloat
	TypeDouble
)

// Size returns the byte size of one sample, 0 for unknown types.
func (t ImageType) Size() int {
	switch t {
	case TypeUint8, TypeSint8:
		return 1
	case TypeUint16, TypeSint16:
		return 2
	case TypeUint32, TypeSint32, TypeFloat:
		return 4
	case TypeUint64, TypeSint64, TypeDouble:
		return 8
	}
	return 0
}

// ImageHeader describes an .mvei image.
type ImageHeader struct {
	Width    int
	Height   int
	Channels int
	Type     ImageType
}

// Samples returns the number of samples in the image.
func (h ImageHeader) Samples() int { return h.Width * h.Height * h.Channels }

// DataSize returns the byte size of the samples. ok is false when the
// dimensions overflow.
func (h ImageHeader) DataSize() (size int64, ok bool) {
	n := uint64(h.Width) * uint64(h.Height)
	hi, n := bits.Mul64(n, uint64(h.Channels))
	if hi != 0 {
		return 0, false
	}
	hi, n = bits.Mul64(n, uint64(h.Type.Size()))
	if hi != 0 || n > math.MaxInt64 {
		return 0, false
	}
	return int64(n), true
}

// Image is a decoded .mvei image with raw little-endian samples, rows
// top-down and channels interleaved.
type Image struct {
	ImageHeader
	Data []byte
}

func readHeader(r io.Reader) (ImageHeader, error) {
	var magic [len(mveiMagic)]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return ImageHeader{}, fmt.Errorf("%w: %w", ErrBadMagic, err)
	}
	if string(magic[:]) != mveiMagic {
		return ImageHeader{}, ErrBadMagic
	}
	var raw [4]uint32
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return ImageHeader{}, fmt.Errorf("read mvei header: %w", err)
	}
	h := ImageHeader{
		Width:    int(raw[0]),
		Height:   int(raw[1]),
		Channels: int(raw[2]),
		Type:     ImageType(raw[3]),
	}
	if h.Type.Size() == 0 {
		return ImageHeader{}, fmt.Errorf("%w: %d", ErrUnsupportedType, raw[3])
	}
	if _, ok := h.DataSize(); !ok {
		return ImageHeader{}, fmt.Errorf("%w: %dx%dx%d samples overflow", ErrFormat, h.Width, h.Height, h.Channels)
	}
	return h, nil
}

// ReadImageHeader reads the header of the .mvei file at path.
func ReadImageHeader(path string) (ImageHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageHeader{}, err
	}
	defer f.Close()
	h, err := readHeader(f)
	if err != nil {
		return ImageHeader{}, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// ReadImage reads the .mvei file at path.
func ReadImage(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	r := bufio.NewReader(f)
	h, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	size, _ := h.DataSize()
	if have := fi.Size() - int64(mveiHeaderSize); size > have {
		return nil, fmt.Errorf("%s: %w: header needs %d sample bytes, file has %d", path, ErrFormat, size, have)
	}
	img := &Image{ImageHeader: h, Data: make([]byte, size)}
	if _, err := io.ReadFull(r, img.Data); err != nil {
		return nil, fmt.Errorf("%s: %w: read samples: %w", path, ErrFormat, err)
	}
	return img, nil
}

// Float32 returns the samples of a float image.
func (img *Image) Float32() ([]float32, error) {
	if img.Type != TypeFloat {
		return nil, fmt.Errorf("%w: want float samples, have type %d", ErrUnsupportedType, img.Type)
	}
	if size, ok := img.DataSize(); !ok || int64(len(img.Data)) < size {
		return nil, fmt.Errorf("%w: %d sample bytes for a %dx%dx%d image", ErrFormat, len(img.Data), img.Width, img.Height, img.Channels)
	}
	out := make([]float32, img.Samples())
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(img.Data[4*i:]))
	}
	return out, nil
}

// WriteImage stores img at path in the .mvei format.
func WriteImage(path string, img *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	w.WriteString(mveiMagic)
	binary.Write(w, binary.LittleEndian, [4]uint32{
		uint32(img.Width), uint32(img.Height), uint32(img.Channels), uint32(img.Type),
	})
	w.Write(img.Data)
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
