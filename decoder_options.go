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
	"log/slog"
	"runtime"
)

// DefaultBufferSize is the default buffer size for blob decompression.
const DefaultBufferSize = 1024 * 1024

// DefaultNCpu provides the default number of CPUs.
func DefaultNCpu() uint16 {
	cpus := uint16(runtime.GOMAXPROCS(-1))

	return max(cpus-1, 1)
}

// decoderOptions provides optional configuration parameters for Decoder construction.
type decoderOptions struct {
	protoBufferSize int          // initial buffer size for blob decompression
	nCPU            uint16       // the number of ranges decoded concurrently
	countBlocks     bool         // count the blocks before reading the header
	logger          *slog.Logger // destination of the decoder's log records
}

// DecoderOption configures how we set up the decoder.
type DecoderOption func(*decoderOptions)

// WithProtoBufferSize lets you set the initial buffer size for blob
// decompression. Any value produces valid results; the buffer grows as
// required.
func WithProtoBufferSize(s int) DecoderOption {
	return func(o *decoderOptions) {
		o.protoBufferSize = s
	}
}

// WithNCpus lets you set the number of block ranges DecodeRanges decodes
// concurrently.
func WithNCpus(n uint16) DecoderOption {
	return func(o *decoderOptions) {
		o.nCPU = max(n, 1)
	}
}

// WithBlockCounting makes NewDecoder count the blocks of the stream before
// reading its header. The stream must implement io.Seeker.
func WithBlockCounting() DecoderOption {
	return func(o *decoderOptions) {
		o.countBlocks = true
	}
}

// WithLogger lets you set the logger used by the decoder.
func WithLogger(l *slog.Logger) DecoderOption {
	return func(o *decoderOptions) {
		o.logger = l
	}
}

// defaultDecoderConfig provides a default configuration for decoders.
var defaultDecoderConfig = decoderOptions{
	protoBufferSize: DefaultBufferSize,
	nCPU:            DefaultNCpu(),
}

func newDecoderOptions(opts []DecoderOption) decoderOptions {
	o := defaultDecoderConfig

	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	return o
}
