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

package pb

import (
	"fmt"
)

// Blob types declared in BlobHeader.type.
const (
	TypeOSMHeader = "OSMHeader"
	TypeOSMData   = "OSMData"
)

// BlobHeader field numbers.
const (
	BlobHeaderType      = 1
	BlobHeaderIndexData = 2
	BlobHeaderDatasize  = 3
)

// Blob field numbers.
const (
	BlobRawField     = 1
	BlobRawSizeField = 2
	BlobZlibField    = 3
	BlobLzmaField    = 4
	BlobBzip2Field   = 5
	BlobLz4Field     = 6
	BlobZstdField    = 7
)

// BlobHeader precedes every blob and declares its type and size.
type BlobHeader struct {
	Type      string
	IndexData []byte
	Datasize  int32
}

// Unmarshal parses a BlobHeader from b.
func (h *BlobHeader) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case BlobHeaderType:
			v, err := f.message()
			if err != nil {
				return err
			}

			h.Type = string(v)
		case BlobHeaderIndexData:
			v, err := f.message()
			if err != nil {
				return err
			}

			h.IndexData = v
		case BlobHeaderDatasize:
			v, err := f.varint()
			if err != nil {
				return err
			}

			h.Datasize = asInt32(v)
		}

		return nil
	})
}

// BlobKind identifies which payload field of a Blob is populated.
type BlobKind int

const (
	// BlobEmpty denotes a blob without any payload.
	BlobEmpty BlobKind = iota

	// BlobRaw denotes uncompressed data.
	BlobRaw

	// BlobZlib denotes zlib compressed data.
	BlobZlib

	// BlobLzma denotes LZMA compressed data.
	BlobLzma

	// BlobBzip2 denotes the obsolete bzip2 compressed data.
	BlobBzip2

	// BlobLz4 denotes LZ4 compressed data.
	BlobLz4

	// BlobZstd denotes Zstandard compressed data.
	BlobZstd
)

func (k BlobKind) String() string {
	switch k {
	case BlobEmpty:
		return "empty"
	case BlobRaw:
		return "raw"
	case BlobZlib:
		return "zlib"
	case BlobLzma:
		return "lzma"
	case BlobBzip2:
		return "bzip2"
	case BlobLz4:
		return "lz4"
	case BlobZstd:
		return "zstd"
	default:
		return fmt.Sprintf("BlobKind(%d)", int(k))
	}
}

// Blob carries the, possibly compressed, contents of a block. Data is the
// payload of the field selected by Kind.
type Blob struct {
	RawSize int32
	Kind    BlobKind
	Data    []byte
}

// Unmarshal parses a Blob from b.
func (bl *Blob) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		var kind BlobKind

		switch f.num {
		case BlobRawSizeField:
			v, err := f.varint()
			if err != nil {
				return err
			}

			bl.RawSize = asInt32(v)

			return nil
		case BlobRawField:
			kind = BlobRaw
		case BlobZlibField:
			kind = BlobZlib
		case BlobLzmaField:
			kind = BlobLzma
		case BlobBzip2Field:
			kind = BlobBzip2
		case BlobLz4Field:
			kind = BlobLz4
		case BlobZstdField:
			kind = BlobZstd
		default:
			return nil
		}

		v, err := f.message()
		if err != nil {
			return err
		}

		// the payload is a oneof; the last one on the wire wins
		bl.Kind = kind
		bl.Data = v

		return nil
	})
}
