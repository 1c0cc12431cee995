// Copyright 2025 the original author or authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pb parses the protobuf messages of the OSM PBF format
// (fileformat.proto and osmformat.proto) directly off the wire.
//
// Only the fields the decoder consumes are retained; unknown fields are
// skipped. Byte slices in parsed messages alias the input buffer unless
// noted otherwise.
package pb

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrWireType is returned when a field is encoded with a wire type that
// does not match its declaration.
var ErrWireType = errors.New("unexpected wire type")

// field is a single decoded key/value pair of a protobuf message.
type field struct {
	num   protowire.Number
	typ   protowire.Type
	x     uint64 // varint and fixed-width payloads
	bytes []byte // length-delimited payloads
}

// walk calls fn for every top-level field in the message b.
func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("invalid field tag: %w", protowire.ParseError(n))
		}

		b = b[n:]
		f := field{num: num, typ: typ}

		switch typ {
		case protowire.VarintType:
			f.x, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.x = uint64(v)
		case protowire.Fixed64Type:
			f.x, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}

		if n < 0 {
			return fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(n))
		}

		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}

	return nil
}

func (f field) varint() (uint64, error) {
	if f.typ != protowire.VarintType {
		return 0, fmt.Errorf("field %d: %w %d", f.num, ErrWireType, f.typ)
	}

	return f.x, nil
}

func (f field) message() ([]byte, error) {
	if f.typ != protowire.BytesType {
		return nil, fmt.Errorf("field %d: %w %d", f.num, ErrWireType, f.typ)
	}

	return f.bytes, nil
}

// repeated appends the values of a repeated scalar field, accepting both the
// packed and the unpacked encoding.
func repeated[T any](dst []T, f field, conv func(uint64) T) ([]T, error) {
	switch f.typ {
	case protowire.VarintType:
		return append(dst, conv(f.x)), nil
	case protowire.BytesType:
		b := f.bytes
		for len(b) > 0 {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return dst, fmt.Errorf("packed field %d: %w", f.num, protowire.ParseError(n))
			}

			dst = append(dst, conv(v))
			b = b[n:]
		}

		return dst, nil
	default:
		return dst, fmt.Errorf("field %d: %w %d", f.num, ErrWireType, f.typ)
	}
}

func asInt32(v uint64) int32 { return int32(v) }

func asUint32(v uint64) uint32 { return uint32(v) }

func asInt64(v uint64) int64 { return int64(v) }

func asSint32(v uint64) int32 { return int32(protowire.DecodeZigZag(v & 0xffffffff)) }

func asSint64(v uint64) int64 { return protowire.DecodeZigZag(v) }

func asBool(v uint64) bool { return v != 0 }
