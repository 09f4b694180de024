// Package meshio encodes chunk meshes for transport and export: compressed
// binary frames for clients, STL for modeling tools, and PNG previews.
package meshio

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/zstd"

	"github.com/talgya/hexterrain/internal/mesh"
)

// FrameVersion is bumped whenever the payload layout changes.
const FrameVersion = 1

// ErrBadFrame is returned for frames that cannot be decoded.
var ErrBadFrame = errors.New("bad mesh frame")

// FrameHeader precedes the binary payload as one JSON line.
type FrameHeader struct {
	Version  int    `json:"version"`
	Chunk    int    `json:"chunk"`
	Layer    string `json:"layer"`
	Vertices int    `json:"vertices"`
	Colors   int    `json:"colors"`
	Indices  int    `json:"indices"`
}

// Frame is a decoded chunk mesh.
type Frame struct {
	Header FrameHeader
	Mesh   mesh.Mesh
}

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

// codecs returns process-wide zstd codecs. EncodeAll and DecodeAll are safe
// for concurrent use.
func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return encoder, decoder, codecErr
}

// EncodeFrame packs one chunk layer. The payload is little-endian float32
// vertices, float32 colors and uint32 indices, in that order.
func EncodeFrame(chunkID int, layer mesh.Layer, m *mesh.Mesh) ([]byte, error) {
	enc, _, err := codecs()
	if err != nil {
		return nil, err
	}

	h := FrameHeader{
		Version:  FrameVersion,
		Chunk:    chunkID,
		Layer:    layer.String(),
		Vertices: len(m.Vertices),
		Colors:   len(m.Colors),
		Indices:  len(m.Indices),
	}
	hb, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(hb) + 1 + 12*len(m.Vertices) + 16*len(m.Colors) + 4*len(m.Indices))
	buf.Write(hb)
	buf.WriteByte('\n')

	var tmp [4]byte
	putFloats := func(fs []float32) {
		for _, f := range fs {
			binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(f))
			buf.Write(tmp[:])
		}
	}
	for _, v := range m.Vertices {
		putFloats(v[:])
	}
	for _, c := range m.Colors {
		putFloats(c[:])
	}
	for _, i := range m.Indices {
		binary.LittleEndian.PutUint32(tmp[:], i)
		buf.Write(tmp[:])
	}

	return enc.EncodeAll(buf.Bytes(), nil), nil
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	_, dec, err := codecs()
	if err != nil {
		return f, err
	}
	raw, err := dec.DecodeAll(b, nil)
	if err != nil {
		return f, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}

	nl := bytes.IndexByte(raw, '\n')
	if nl < 0 {
		return f, fmt.Errorf("%w: missing header", ErrBadFrame)
	}
	if err := json.Unmarshal(raw[:nl], &f.Header); err != nil {
		return f, fmt.Errorf("%w: header: %v", ErrBadFrame, err)
	}
	h := f.Header
	if h.Version != FrameVersion {
		return f, fmt.Errorf("%w: version %d", ErrBadFrame, h.Version)
	}
	if h.Vertices < 0 || h.Colors < 0 || h.Indices < 0 {
		return f, fmt.Errorf("%w: negative count", ErrBadFrame)
	}
	payload := raw[nl+1:]
	if want := 12*h.Vertices + 16*h.Colors + 4*h.Indices; len(payload) != want {
		return f, fmt.Errorf("%w: payload is %d bytes, header wants %d", ErrBadFrame, len(payload), want)
	}

	next := func() uint32 {
		v := binary.LittleEndian.Uint32(payload)
		payload = payload[4:]
		return v
	}
	nextFloat := func() float32 { return math.Float32frombits(next()) }

	f.Mesh.Vertices = make([]mgl32.Vec3, h.Vertices)
	for i := range f.Mesh.Vertices {
		f.Mesh.Vertices[i] = mgl32.Vec3{nextFloat(), nextFloat(), nextFloat()}
	}
	if h.Colors > 0 {
		f.Mesh.Colors = make([]mgl32.Vec4, h.Colors)
		for i := range f.Mesh.Colors {
			f.Mesh.Colors[i] = mgl32.Vec4{nextFloat(), nextFloat(), nextFloat(), nextFloat()}
		}
	}
	f.Mesh.Indices = make([]uint32, h.Indices)
	for i := range f.Mesh.Indices {
		f.Mesh.Indices[i] = next()
	}
	return f, nil
}
