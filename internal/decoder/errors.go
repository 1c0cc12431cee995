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

// Package decoder turns the framed, compressed blocks of an OSM PBF stream
// into entities. Every function here works on a single block at a time and
// keeps no state across blocks.
package decoder

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat reports a malformed frame, a wrong block type or a stream
	// truncated where a fixed-size read is required.
	ErrFormat = errors.New("invalid PBF format")

	// ErrUnsupportedFeature reports a required header feature the decoder
	// does not implement.
	ErrUnsupportedFeature = errors.New("unsupported required feature")

	// ErrCorruptBlock reports a block that cannot be decompressed or whose
	// contents reference data outside of the block.
	ErrCorruptBlock = errors.New("corrupt block")

	// ErrIO reports a failure of the underlying reader.
	ErrIO = errors.New("i/o error")

	// ErrSkipPastEnd reports a skip request larger than the number of blocks
	// left in the stream.
	ErrSkipPastEnd = errors.New("skip past end of stream")

	// ErrUnknownCompressionType reports a blob without a supported payload.
	ErrUnknownCompressionType = errors.New("unknown blob compression type")
)

// EmitError carries an error returned by a model.Factory or model.Sink so
// that callers can hand it on untouched.
type EmitError struct {
	Err error
}

func (e *EmitError) Error() string {
	return e.Err.Error()
}

func (e *EmitError) Unwrap() error {
	return e.Err
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrCorruptBlock}, args...)...)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrFormat}, args...)...)
}

func ioError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}
