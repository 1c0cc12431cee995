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

package fixture

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
	"github.com/ulikunitz/xz/lzma"
	"google.golang.org/protobuf/encoding/protowire"

	"m4o.io/osmpbf/internal/pb"
)

// Compression selects the payload field of the blobs written by a Writer.
type Compression int

const (
	Raw Compression = iota
	Zlib
	Lzma
	Lz4
	Zstd
)

// Compressions lists every supported compression.
var Compressions = []Compression{Raw, Zlib, Lzma, Lz4, Zstd}

func (c Compression) String() string {
	switch c {
	case Raw:
		return "raw"
	case Zlib:
		return "zlib"
	case Lzma:
		return "lzma"
	case Lz4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

type nopCloserWriter struct {
	io.Writer
}

func (w nopCloserWriter) Close() error {
	return nil
}

// newPacker creates the compressing writer for c along with the Blob field
// its output belongs in.
func newPacker(c Compression, buf *bytes.Buffer) (io.WriteCloser, protowire.Number, error) {
	switch c {
	case Raw:
		return nopCloserWriter{buf}, pb.BlobRawField, nil
	case Zlib:
		return zlib.NewWriter(buf), pb.BlobZlibField, nil
	case Lzma:
		w, err := lzma.NewWriter(buf)

		return w, pb.BlobLzmaField, err
	case Lz4:
		return lz4.NewWriter(buf), pb.BlobLz4Field, nil
	case Zstd:
		w, err := zstd.NewWriter(buf)

		return w, pb.BlobZstdField, err
	default:
		return nil, 0, fmt.Errorf("unknown compression type: %v", c)
	}
}

// Pack compresses raw and wraps it in an encoded Blob message.
func Pack(raw []byte, c Compression) ([]byte, error) {
	var buf bytes.Buffer

	w, field, err := newPacker(c, &buf)
	if err != nil {
		return nil, err
	}

	if _, err = w.Write(raw); err != nil {
		return nil, fmt.Errorf("could not compress message: %w", err)
	}

	if err = w.Close(); err != nil {
		return nil, fmt.Errorf("could not close writer: %w", err)
	}

	return BlobMessage(field, int32(len(raw)), buf.Bytes()), nil
}

// BlobMessage encodes a Blob carrying data in the given payload field. A
// zero rawSize is left off the wire.
func BlobMessage(field protowire.Number, rawSize int32, data []byte) []byte {
	var b []byte

	if rawSize != 0 {
		b = protowire.AppendTag(b, pb.BlobRawSizeField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(rawSize))
	}

	if field != 0 {
		b = protowire.AppendTag(b, field, protowire.BytesType)
		b = protowire.AppendBytes(b, data)
	}

	return b
}
