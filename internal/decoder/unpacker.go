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

package decoder

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
	"github.com/ulikunitz/xz/lzma"

	"m4o.io/osmpbf/internal/core"
	"m4o.io/osmpbf/internal/pb"
)

// Unpack uncompresses the blob into buf, verifying the declared raw size.
// The result aliases either the blob or buf.
//
// A compressed payload without a declared raw size is handed on as is.
func Unpack(buf *core.PooledBuffer, blob *pb.Blob) ([]byte, error) {
	var factory func(r io.Reader) (io.ReadCloser, error)

	switch blob.Kind {
	case pb.BlobRaw:
		return blob.Data, nil
	case pb.BlobZlib:
		factory = func(r io.Reader) (io.ReadCloser, error) {
			return zlib.NewReader(r)
		}
	case pb.BlobLzma:
		factory = func(r io.Reader) (io.ReadCloser, error) {
			lr, err := lzma.NewReader(r)
			if err != nil {
				return nil, err
			}

			return io.NopCloser(lr), nil
		}
	case pb.BlobLz4:
		factory = func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(lz4.NewReader(r)), nil
		}
	case pb.BlobZstd:
		factory = func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, err
			}

			return d.IOReadCloser(), nil
		}
	default:
		return nil, corrupt("%w: %s", ErrUnknownCompressionType, blob.Kind)
	}

	if blob.RawSize <= 0 {
		return blob.Data, nil
	}

	if blob.RawSize > MaxBlobSize {
		return nil, corrupt("raw blob size %d exceeds %d", blob.RawSize, MaxBlobSize)
	}

	rawBufferSize := int(blob.RawSize) + bytes.MinRead
	if rawBufferSize > buf.Cap() {
		buf.Grow(rawBufferSize)
	}

	rdr, err := factory(bytes.NewReader(blob.Data))
	if err != nil {
		return nil, corrupt("%s unpacker: %v", blob.Kind, err)
	}
	defer rdr.Close()

	// one byte past the declared size is enough to detect an overrun
	n, err := buf.ReadFrom(io.LimitReader(rdr, int64(blob.RawSize)+1))
	if err != nil {
		return nil, corrupt("%s unpacker read error: %v", blob.Kind, err)
	}

	if n != int64(blob.RawSize) {
		return nil, corrupt("raw blob data size %d but expected %d", n, blob.RawSize)
	}

	return buf.Bytes(), nil
}
