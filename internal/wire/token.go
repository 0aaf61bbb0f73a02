// Copyright 2024 The tobytes Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package wire is the msgpack primitive codec adapter tobytes is layered
// on top of. It reads and writes the msgpack type families (nil, bool,
// int, uint, float, str, bin, array, map, ext) without attaching any
// meaning to extension ids: that interpretation belongs to the decoder
// and encoder engines in the parent package.
package wire

// Kind identifies which msgpack primitive family a [Token] carries.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNil
	KindBool
	KindInt
	KindUint
	KindFloat32
	KindFloat64
	KindStr
	KindBin
	KindArray // Count holds the number of following elements.
	KindMap   // Count holds the number of following key/value pairs.
	KindExt   // ExtID and ExtPayload carry the envelope.
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindStr:
		return "str"
	case KindBin:
		return "bin"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindExt:
		return "ext"
	default:
		return "invalid"
	}
}

// Token is one decoded msgpack value header. Container tokens (KindArray,
// KindMap) describe only the header; the caller is responsible for
// reading Count further values (or 2*Count for a map) from the [Reader].
// KindExt carries the extension id and its full payload, raw and
// uninterpreted.
type Token struct {
	Kind Kind

	Bool    bool
	Int     int64
	Uint    uint64
	Float32 float32
	Float64 float64
	Str     string
	Bin     []byte

	Count int

	ExtID      int8
	ExtPayload []byte
}
