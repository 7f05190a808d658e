package wkb

import (
	"encoding/binary"
	"math"

	"github.com/paulmach/orb"
)

// WKB type constants (ISO SQL/MM specification)
const (
	wkbPoint      = 1
	wkbLineString = 2

	// SRID flag for EWKB (PostGIS extended WKB)
	wkbSRIDFlag = 0x20000000
)

// Common SRID constants
const (
	SRID4326 = 4326 // WGS84
	SRID3857 = 3857 // Web Mercator
)

// Encoder encodes geometries to little-endian WKB.
// With an SRID set the output is EWKB (PostGIS); with SRID 0 it is plain
// ISO WKB as GeoParquet expects.
type Encoder struct {
	buf  []byte
	srid uint32
}

// NewEncoder creates a new EWKB encoder with default SRID 4326
func NewEncoder(initialSize int) *Encoder {
	return NewEncoderWithSRID(initialSize, SRID4326)
}

// NewEncoderWithSRID creates a new encoder; srid 0 writes plain WKB
func NewEncoderWithSRID(initialSize int, srid int) *Encoder {
	return &Encoder{
		buf:  make([]byte, 0, initialSize),
		srid: uint32(srid),
	}
}

// SRID returns the encoder's current SRID
func (e *Encoder) SRID() int {
	return int(e.srid)
}

// Reset clears the buffer for reuse
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the encoded bytes. They are only valid until the next Encode call.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// EncodePoint encodes a point (X=lon, Y=lat)
func (e *Encoder) EncodePoint(p orb.Point) []byte {
	e.Reset()
	e.ensureCapacity(25)
	e.header(wkbPoint)
	e.appendFloat64(p[0])
	e.appendFloat64(p[1])
	return e.buf
}

// EncodeLineString encodes a linestring
func (e *Encoder) EncodeLineString(ls orb.LineString) []byte {
	e.Reset()
	// Size: 1 + 4 + 4 (srid) + 4 + (numPoints * 16)
	e.ensureCapacity(13 + len(ls)*16)
	e.header(wkbLineString)
	e.appendUint32(uint32(len(ls)))
	for _, p := range ls {
		e.appendFloat64(p[0])
		e.appendFloat64(p[1])
	}
	return e.buf
}

func (e *Encoder) header(geomType uint32) {
	// Byte order (little-endian)
	e.buf = append(e.buf, 0x01)
	if e.srid == 0 {
		e.appendUint32(geomType)
		return
	}
	e.appendUint32(geomType | wkbSRIDFlag)
	e.appendUint32(e.srid)
}

func (e *Encoder) ensureCapacity(n int) {
	if cap(e.buf) < n {
		e.buf = make([]byte, 0, n)
	}
}

func (e *Encoder) appendUint32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) appendFloat64(v float64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
}
