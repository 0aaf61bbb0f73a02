// Copyright 2024 The tobytes Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package wire

import "errors"

// Sentinel errors the caller (the decoder engine) can match against with
// errors.Is to classify a malformed msgpack stream. The adapter itself
// never interprets tobytes semantics: every error here is about framing,
// not about ext ids.
var (
	errUnexpectedEOF = errors.New("unexpected end of msgpack data")
	errReservedCode  = errors.New("reserved msgpack code 0xc1")
	errMalformed     = errors.New("malformed msgpack code")
)

// IsMalformed reports whether err originated from malformed or truncated
// msgpack framing, as opposed to a caller/logic error.
func IsMalformed(err error) bool {
	return errors.Is(err, errUnexpectedEOF) || errors.Is(err, errReservedCode) || errors.Is(err, errMalformed)
}
