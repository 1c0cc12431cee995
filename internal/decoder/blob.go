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
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"m4o.io/osmpbf/internal/core"
	"m4o.io/osmpbf/internal/pb"
)

const (
	// MaxBlobHeaderSize is the largest BlobHeader the format allows.
	MaxBlobHeaderSize = 64 * 1024

	// MaxBlobSize is the largest Blob, compressed or not, the format allows.
	MaxBlobSize = 32 * 1024 * 1024

	lengthSize = 4
)

// errEndOfBlocks marks the end of the block sequence while counting or
// skipping: a clean end of stream, a zero length prefix or a non-positive
// datasize.
var errEndOfBlocks = errors.New("end of blocks")

// Block is a single framed blob read off of a stream.
type Block struct {
	// Index is the position of the block in the stream; the header block
	// has index 0.
	Index int

	// Offset is the position of the block's length prefix relative to where
	// the BlockReader started reading.
	Offset int64

	Header pb.BlobHeader

	// Data is the encoded Blob. It is only valid until Close is called.
	Data []byte

	buf *core.PooledBuffer
}

// Blob parses the encoded Blob carried by the block.
func (b *Block) Blob() (*pb.Blob, error) {
	blob := &pb.Blob{}
	if err := blob.Unmarshal(b.Data); err != nil {
		return nil, corrupt("block %d: unable to unmarshal blob: %v", b.Index, err)
	}

	return blob, nil
}

// Close releases the block's buffer.
func (b *Block) Close() {
	if b.buf != nil {
		b.buf.Close()
		b.buf = nil
	}

	b.Data = nil
}

// BlockReader frames the blocks of a PBF stream. It never seeks backwards.
type BlockReader struct {
	r      io.Reader
	offset int64
	index  int
}

func NewBlockReader(r io.Reader) *BlockReader {
	return &BlockReader{r: r}
}

// Offset is the number of bytes consumed so far.
func (br *BlockReader) Offset() int64 {
	return br.offset
}

// Index is the index the next block will have.
func (br *BlockReader) Index() int {
	return br.index
}

// Next reads the next block. A clean end of stream, with no bytes left at a
// block boundary, is reported as io.EOF.
func (br *BlockReader) Next() (*Block, error) {
	offset := br.offset

	size, err := readLength(br.r)
	if err != nil {
		return nil, err
	}

	br.offset += lengthSize

	if size == 0 {
		return nil, malformed("block %d at offset %d has an empty blob header", br.index, offset)
	}

	h, n, err := readBlobHeader(br.r, size)
	br.offset += n

	if err != nil {
		return nil, fmt.Errorf("block %d at offset %d: %w", br.index, offset, err)
	}

	if h.Datasize <= 0 || h.Datasize > MaxBlobSize {
		return nil, malformed("block %d at offset %d declares datasize %d", br.index, offset, h.Datasize)
	}

	buf := core.NewPooledBuffer()

	n, err = io.CopyN(buf, br.r, int64(h.Datasize))
	br.offset += n

	if err != nil {
		buf.Close()

		if errors.Is(err, io.EOF) {
			return nil, malformed("block %d at offset %d: expected %d bytes of blob, got %d",
				br.index, offset, h.Datasize, n)
		}

		return nil, ioError("error reading blob", err)
	}

	blk := &Block{
		Index:  br.index,
		Offset: offset,
		Header: *h,
		Data:   buf.Bytes(),
		buf:    buf,
	}

	br.index++

	return blk, nil
}

// Skip advances past n blocks without decoding them.
func (br *BlockReader) Skip(n int) (int, error) {
	for i := 0; i < n; i++ {
		info, err := skipBlock(br.r, false)
		br.offset += info.Size()

		if err != nil {
			if errors.Is(err, errEndOfBlocks) {
				return i, fmt.Errorf("%w: skipped %d of %d blocks", ErrSkipPastEnd, i, n)
			}

			return i, err
		}

		br.index++
	}

	return n, nil
}

// readLength reads the 4 byte big-endian length prefix of a block.
func readLength(r io.Reader) (uint32, error) {
	var b [lengthSize]byte

	n, err := io.ReadFull(r, b[:])

	switch {
	case err == nil:
		return binary.BigEndian.Uint32(b[:]), nil
	case n == 0 && errors.Is(err, io.EOF):
		return 0, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return 0, malformed("truncated length prefix: got %d of %d bytes", n, lengthSize)
	default:
		return 0, ioError("error reading blob size", err)
	}
}

// readBlobHeader reads and unmarshals a BlobHeader of the given size.
func readBlobHeader(r io.Reader, size uint32) (*pb.BlobHeader, int64, error) {
	if size > MaxBlobHeaderSize {
		return nil, 0, malformed("blob header size %d exceeds %d", size, MaxBlobHeaderSize)
	}

	buf := make([]byte, size)

	n, err := io.ReadFull(r, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, int64(n), malformed("expected %d bytes of blob header, got %d", size, n)
		}

		return nil, int64(n), ioError("error reading blob header", err)
	}

	h := &pb.BlobHeader{}
	if err := h.Unmarshal(buf); err != nil {
		return nil, int64(n), malformed("unable to unmarshal blob header: %v", err)
	}

	return h, int64(n), nil
}
