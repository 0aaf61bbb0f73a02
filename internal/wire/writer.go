// Copyright 2024 The tobytes Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package wire

import (
	"math"

	"golang.org/x/crypto/cryptobyte"
)

// Writer builds a msgpack byte stream. It always picks the narrowest wire
// encoding available for a given value (msgpack's usual "smallest
// representation" convention), the same instinct the teacher's rpkg
// encoder applies when sizing its own header and section-offset fields.
type Writer struct {
	b cryptobyte.Builder
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{b: *cryptobyte.NewBuilder(nil)}
}

// Bytes returns the encoded bytes built so far.
func (w *Writer) Bytes() []byte {
	return w.b.BytesOrPanic()
}

// WriteRaw appends b verbatim, already-encoded msgpack bytes produced by
// another Writer. Used to splice a previously built envelope (for
// example another Writer's Bytes()) into a larger one being assembled.
func (w *Writer) WriteRaw(b []byte) {
	w.b.AddBytes(b)
}

func (w *Writer) WriteNil() {
	w.b.AddUint8(codeNil)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.b.AddUint8(codeTrue)
	} else {
		w.b.AddUint8(codeFalse)
	}
}

// WriteInt writes v using the narrowest signed-family encoding that fits,
// including positive/negative fixint.
func (w *Writer) WriteInt(v int64) {
	switch {
	case v >= 0 && v <= 0x7f:
		w.b.AddUint8(uint8(v))
	case v < 0 && v >= -32:
		w.b.AddUint8(uint8(int8(v)))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		w.b.AddUint8(codeInt8)
		w.b.AddUint8(uint8(int8(v)))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		w.b.AddUint8(codeInt16)
		w.b.AddUint16(uint16(int16(v)))
	case v >= math.MinInt32 && v <= math.MaxInt32:
		w.b.AddUint8(codeInt32)
		w.b.AddUint32(uint32(int32(v)))
	default:
		w.b.AddUint8(codeInt64)
		w.b.AddUint64(uint64(v))
	}
}

// WriteUint writes v using the narrowest unsigned-family encoding that
// fits, including positive fixint.
func (w *Writer) WriteUint(v uint64) {
	switch {
	case v <= 0x7f:
		w.b.AddUint8(uint8(v))
	case v <= math.MaxUint8:
		w.b.AddUint8(codeUint8)
		w.b.AddUint8(uint8(v))
	case v <= math.MaxUint16:
		w.b.AddUint8(codeUint16)
		w.b.AddUint16(uint16(v))
	case v <= math.MaxUint32:
		w.b.AddUint8(codeUint32)
		w.b.AddUint32(uint32(v))
	default:
		w.b.AddUint8(codeUint64)
		w.b.AddUint64(v)
	}
}

func (w *Writer) WriteFloat32(v float32) {
	w.b.AddUint8(codeFloat32)
	w.b.AddUint32(math.Float32bits(v))
}

func (w *Writer) WriteFloat64(v float64) {
	w.b.AddUint8(codeFloat64)
	w.b.AddUint64(math.Float64bits(v))
}

func (w *Writer) WriteStr(v string) {
	n := len(v)
	switch {
	case n <= 0x1f:
		w.b.AddUint8(0xa0 | uint8(n))
	case n <= math.MaxUint8:
		w.b.AddUint8(codeStr8)
		w.b.AddUint8(uint8(n))
	case n <= math.MaxUint16:
		w.b.AddUint8(codeStr16)
		w.b.AddUint16(uint16(n))
	default:
		w.b.AddUint8(codeStr32)
		w.b.AddUint32(uint32(n))
	}
	w.b.AddBytes([]byte(v))
}

func (w *Writer) WriteBin(v []byte) {
	n := len(v)
	switch {
	case n <= math.MaxUint8:
		w.b.AddUint8(codeBin8)
		w.b.AddUint8(uint8(n))
	case n <= math.MaxUint16:
		w.b.AddUint8(codeBin16)
		w.b.AddUint16(uint16(n))
	default:
		w.b.AddUint8(codeBin32)
		w.b.AddUint32(uint32(n))
	}
	w.b.AddBytes(v)
}

func (w *Writer) WriteArrayHeader(n int) {
	switch {
	case n <= 0x0f:
		w.b.AddUint8(0x90 | uint8(n))
	case n <= math.MaxUint16:
		w.b.AddUint8(codeArray16)
		w.b.AddUint16(uint16(n))
	default:
		w.b.AddUint8(codeArray32)
		w.b.AddUint32(uint32(n))
	}
}

func (w *Writer) WriteMapHeader(n int) {
	switch {
	case n <= 0x0f:
		w.b.AddUint8(0x80 | uint8(n))
	case n <= math.MaxUint16:
		w.b.AddUint8(codeMap16)
		w.b.AddUint16(uint16(n))
	default:
		w.b.AddUint8(codeMap32)
		w.b.AddUint32(uint32(n))
	}
}

// WriteExt writes a complete extension envelope: id followed by payload,
// choosing the fixext shape when the payload length is one of the five
// fixed sizes msgpack reserves one, else the generic ext8/16/32 shape.
func (w *Writer) WriteExt(id int8, payload []byte) {
	n := len(payload)
	switch n {
	case 1:
		w.b.AddUint8(codeFixExt1)
	case 2:
		w.b.AddUint8(codeFixExt2)
	case 4:
		w.b.AddUint8(codeFixExt4)
	case 8:
		w.b.AddUint8(codeFixExt8)
	case 16:
		w.b.AddUint8(codeFixEx16)
	default:
		switch {
		case n <= math.MaxUint8:
			w.b.AddUint8(codeExt8)
			w.b.AddUint8(uint8(n))
		case n <= math.MaxUint16:
			w.b.AddUint8(codeExt16)
			w.b.AddUint16(uint16(n))
		default:
			w.b.AddUint8(codeExt32)
			w.b.AddUint32(uint32(n))
		}
	}
	w.b.AddUint8(uint8(id))
	w.b.AddBytes(payload)
}
