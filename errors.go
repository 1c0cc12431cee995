// Copyright 2017-25 the original author or authors.
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

package osmpbf

import (
	"errors"
	"fmt"

	"m4o.io/osmpbf/internal/decoder"
)

var (
	// ErrFormat reports a malformed frame, a wrong block type or a stream
	// truncated where a fixed-size read is required.
	ErrFormat = decoder.ErrFormat

	// ErrUnsupportedFeature reports a header that requires a feature the
	// decoder does not implement.
	ErrUnsupportedFeature = decoder.ErrUnsupportedFeature

	// ErrCorruptBlock reports a block whose contents cannot be decompressed
	// or resolved.
	ErrCorruptBlock = decoder.ErrCorruptBlock

	// ErrIO reports a failure of the underlying reader.
	ErrIO = decoder.ErrIO

	// ErrSkipPastEnd reports a start block beyond the end of the stream.
	ErrSkipPastEnd = decoder.ErrSkipPastEnd

	// ErrUnknownCompressionType reports a blob without a supported payload.
	ErrUnknownCompressionType = decoder.ErrUnknownCompressionType

	// ErrNotSeekable reports an operation that needs an io.Seeker.
	ErrNotSeekable = errors.New("stream is not seekable")

	// ErrInvalidState reports a call that the decoder's state does not allow.
	ErrInvalidState = errors.New("invalid decoder state")
)

// BlockError locates a decoding failure in the stream.
type BlockError struct {
	// Block is the zero-based index of the data block; the header block is
	// -1.
	Block int

	// Offset is the byte offset of the block's length prefix, relative to
	// the position of the stream when the decoder was created.
	Offset int64

	Err error
}

func (e *BlockError) Error() string {
	if e.Block < 0 {
		return fmt.Sprintf("header block at offset %d: %v", e.Offset, e.Err)
	}

	return fmt.Sprintf("data block %d at offset %d: %v", e.Block, e.Offset, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}
