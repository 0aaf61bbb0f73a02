// Copyright 2024 The tobytes Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"math"

	"golang.org/x/crypto/cryptobyte"
)

// msgpack leading-byte codes. Only the codes this adapter needs to branch
// on by name are given names; fixint/fixmap/fixarray/fixstr ranges are
// tested directly against the code byte.
const (
	codeNil     = 0xc0
	codeUnused  = 0xc1
	codeFalse   = 0xc2
	codeTrue    = 0xc3
	codeBin8    = 0xc4
	codeBin16   = 0xc5
	codeBin32   = 0xc6
	codeExt8    = 0xc7
	codeExt16   = 0xc8
	codeExt32   = 0xc9
	codeFloat32 = 0xca
	codeFloat64 = 0xcb
	codeUint8   = 0xcc
	codeUint16  = 0xcd
	codeUint32  = 0xce
	codeUint64  = 0xcf
	codeInt8    = 0xd0
	codeInt16   = 0xd1
	codeInt32   = 0xd2
	codeInt64   = 0xd3
	codeFixExt1 = 0xd4
	codeFixExt2 = 0xd5
	codeFixExt4 = 0xd6
	codeFixExt8 = 0xd7
	codeFixEx16 = 0xd8
	codeStr8    = 0xd9
	codeStr16   = 0xda
	codeStr32   = 0xdb
	codeArray16 = 0xdc
	codeArray32 = 0xdd
	codeMap16   = 0xde
	codeMap32   = 0xdf
)

// Reader decodes msgpack tokens from a byte slice.
type Reader struct {
	s cryptobyte.String
}

// NewReader returns a Reader over b. b is not copied; the caller must not
// mutate it while the Reader is in use.
func NewReader(b []byte) *Reader {
	return &Reader{s: cryptobyte.String(b)}
}

// Len reports the number of unread bytes.
func (r *Reader) Len() int { return len(r.s) }

// PeekCode returns the next leading byte without consuming it. ok is
// false if the reader is empty.
func (r *Reader) PeekCode() (code byte, ok bool) {
	if len(r.s) == 0 {
		return 0, false
	}
	return r.s[0], true
}

// ReadToken decodes and consumes the next msgpack value's header. For
// containers (array, map) only the header is consumed; the caller reads
// the elements with further calls. For ext, the full payload is consumed
// and returned raw.
func (r *Reader) ReadToken() (Token, error) {
	code, ok := r.PeekCode()
	if !ok {
		return Token{}, fmt.Errorf("wire: read token: %w", errUnexpectedEOF)
	}

	switch {
	case code <= 0x7f:
		r.s.ReadUint8(&code)
		return Token{Kind: KindUint, Uint: uint64(code)}, nil
	case code >= 0xe0:
		r.s.ReadUint8(&code)
		return Token{Kind: KindInt, Int: int64(int8(code))}, nil
	case code&0xf0 == 0x80:
		r.s.ReadUint8(&code)
		return Token{Kind: KindMap, Count: int(code & 0x0f)}, nil
	case code&0xf0 == 0x90:
		r.s.ReadUint8(&code)
		return Token{Kind: KindArray, Count: int(code & 0x0f)}, nil
	case code&0xe0 == 0xa0:
		r.s.ReadUint8(&code)
		n := int(code & 0x1f)
		return r.readStr(n)
	}

	r.s.ReadUint8(&code)
	switch code {
	case codeNil:
		return Token{Kind: KindNil}, nil
	case codeFalse:
		return Token{Kind: KindBool, Bool: false}, nil
	case codeTrue:
		return Token{Kind: KindBool, Bool: true}, nil
	case codeUnused:
		return Token{}, fmt.Errorf("wire: read token: %w", errReservedCode)

	case codeUint8:
		var v uint8
		if !r.s.ReadUint8(&v) {
			return Token{}, r.eof()
		}
		return Token{Kind: KindUint, Uint: uint64(v)}, nil
	case codeUint16:
		var v uint16
		if !r.s.ReadUint16(&v) {
			return Token{}, r.eof()
		}
		return Token{Kind: KindUint, Uint: uint64(v)}, nil
	case codeUint32:
		var v uint32
		if !r.s.ReadUint32(&v) {
			return Token{}, r.eof()
		}
		return Token{Kind: KindUint, Uint: uint64(v)}, nil
	case codeUint64:
		var v uint64
		if !r.s.ReadUint64(&v) {
			return Token{}, r.eof()
		}
		return Token{Kind: KindUint, Uint: v}, nil

	case codeInt8:
		var v uint8
		if !r.s.ReadUint8(&v) {
			return Token{}, r.eof()
		}
		return Token{Kind: KindInt, Int: int64(int8(v))}, nil
	case codeInt16:
		var v uint16
		if !r.s.ReadUint16(&v) {
			return Token{}, r.eof()
		}
		return Token{Kind: KindInt, Int: int64(int16(v))}, nil
	case codeInt32:
		var v uint32
		if !r.s.ReadUint32(&v) {
			return Token{}, r.eof()
		}
		return Token{Kind: KindInt, Int: int64(int32(v))}, nil
	case codeInt64:
		var v uint64
		if !r.s.ReadUint64(&v) {
			return Token{}, r.eof()
		}
		return Token{Kind: KindInt, Int: int64(v)}, nil

	case codeFloat32:
		var v uint32
		if !r.s.ReadUint32(&v) {
			return Token{}, r.eof()
		}
		return Token{Kind: KindFloat32, Float32: math.Float32frombits(v)}, nil
	case codeFloat64:
		var v uint64
		if !r.s.ReadUint64(&v) {
			return Token{}, r.eof()
		}
		return Token{Kind: KindFloat64, Float64: math.Float64frombits(v)}, nil

	case codeStr8:
		var n uint8
		if !r.s.ReadUint8(&n) {
			return Token{}, r.eof()
		}
		return r.readStr(int(n))
	case codeStr16:
		var n uint16
		if !r.s.ReadUint16(&n) {
			return Token{}, r.eof()
		}
		return r.readStr(int(n))
	case codeStr32:
		var n uint32
		if !r.s.ReadUint32(&n) {
			return Token{}, r.eof()
		}
		return r.readStr(int(n))

	case codeBin8:
		var n uint8
		if !r.s.ReadUint8(&n) {
			return Token{}, r.eof()
		}
		return r.readBin(int(n))
	case codeBin16:
		var n uint16
		if !r.s.ReadUint16(&n) {
			return Token{}, r.eof()
		}
		return r.readBin(int(n))
	case codeBin32:
		var n uint32
		if !r.s.ReadUint32(&n) {
			return Token{}, r.eof()
		}
		return r.readBin(int(n))

	case codeArray16:
		var n uint16
		if !r.s.ReadUint16(&n) {
			return Token{}, r.eof()
		}
		return Token{Kind: KindArray, Count: int(n)}, nil
	case codeArray32:
		var n uint32
		if !r.s.ReadUint32(&n) {
			return Token{}, r.eof()
		}
		return Token{Kind: KindArray, Count: int(n)}, nil

	case codeMap16:
		var n uint16
		if !r.s.ReadUint16(&n) {
			return Token{}, r.eof()
		}
		return Token{Kind: KindMap, Count: int(n)}, nil
	case codeMap32:
		var n uint32
		if !r.s.ReadUint32(&n) {
			return Token{}, r.eof()
		}
		return Token{Kind: KindMap, Count: int(n)}, nil

	case codeFixExt1:
		return r.readExt(1)
	case codeFixExt2:
		return r.readExt(2)
	case codeFixExt4:
		return r.readExt(4)
	case codeFixExt8:
		return r.readExt(8)
	case codeFixEx16:
		return r.readExt(16)
	case codeExt8:
		var n uint8
		if !r.s.ReadUint8(&n) {
			return Token{}, r.eof()
		}
		return r.readExt(int(n))
	case codeExt16:
		var n uint16
		if !r.s.ReadUint16(&n) {
			return Token{}, r.eof()
		}
		return r.readExt(int(n))
	case codeExt32:
		var n uint32
		if !r.s.ReadUint32(&n) {
			return Token{}, r.eof()
		}
		return r.readExt(int(n))
	}

	return Token{}, fmt.Errorf("wire: read token: %w: code 0x%02x", errMalformed, code)
}

func (r *Reader) readStr(n int) (Token, error) {
	var b []byte
	if !r.s.ReadBytes(&b, n) {
		return Token{}, r.eof()
	}
	return Token{Kind: KindStr, Str: string(b)}, nil
}

func (r *Reader) readBin(n int) (Token, error) {
	var b []byte
	if !r.s.ReadBytes(&b, n) {
		return Token{}, r.eof()
	}
	return Token{Kind: KindBin, Bin: b}, nil
}

func (r *Reader) readExt(n int) (Token, error) {
	var typ uint8
	if !r.s.ReadUint8(&typ) {
		return Token{}, r.eof()
	}
	var b []byte
	if !r.s.ReadBytes(&b, n) {
		return Token{}, r.eof()
	}
	return Token{Kind: KindExt, ExtID: int8(typ), ExtPayload: b}, nil
}

func (r *Reader) eof() error {
	return fmt.Errorf("wire: read token: %w", errUnexpectedEOF)
}
