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
	"errors"
	"fmt"
	"io"
)

// BlockInfo describes a framed block without its decoded contents.
type BlockInfo struct {
	Index      int    `json:"index"`
	Offset     int64  `json:"offset"`
	Type       string `json:"type"`
	HeaderSize int    `json:"header_size"`
	DataSize   int32  `json:"data_size"`

	// Data is the encoded blob, only populated when requested.
	Data []byte `json:"-"`
}

// Size is the number of bytes the block occupies in the stream, or the
// number consumed before a failure.
func (bi BlockInfo) Size() int64 {
	if bi.HeaderSize == 0 {
		return 0
	}

	size := int64(lengthSize + bi.HeaderSize)
	if bi.DataSize > 0 {
		size += int64(bi.DataSize)
	}

	return size
}

// skipBlock reads the length prefix and BlobHeader of the next block and
// then moves past its body, seeking when r is an io.Seeker. The body is
// read into BlockInfo.Data instead when withData is set. errEndOfBlocks is
// returned at the end of the block sequence.
func skipBlock(r io.Reader, withData bool) (BlockInfo, error) {
	var info BlockInfo

	size, err := readLength(r)
	if errors.Is(err, io.EOF) {
		return info, errEndOfBlocks
	} else if err != nil {
		return info, err
	}

	if size == 0 {
		return info, errEndOfBlocks
	}

	h, n, err := readBlobHeader(r, size)
	if err != nil {
		return info, err
	}

	info.HeaderSize = int(n)
	info.Type = h.Type
	info.DataSize = h.Datasize

	if h.Datasize <= 0 {
		return info, errEndOfBlocks
	}

	if withData {
		info.Data = make([]byte, h.Datasize)

		if _, err := io.ReadFull(r, info.Data); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return info, malformed("expected %d bytes of blob", h.Datasize)
			}

			return info, ioError("error reading blob", err)
		}

		return info, nil
	}

	if s, ok := r.(io.Seeker); ok {
		return info, seekOver(s, int64(h.Datasize))
	}

	if n, err := io.CopyN(io.Discard, r, int64(h.Datasize)); err != nil {
		if errors.Is(err, io.EOF) {
			return info, malformed("expected %d bytes of blob, got %d", h.Datasize, n)
		}

		return info, ioError("error skipping blob", err)
	}

	return info, nil
}

// seekOver moves s forward n bytes. Seeking past the end succeeds on files
// and in-memory readers, so the target is checked against the stream size.
func seekOver(s io.Seeker, n int64) error {
	pos, err := s.Seek(n, io.SeekCurrent)
	if err != nil {
		return ioError("error seeking over blob", err)
	}

	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return ioError("error locating end of stream", err)
	}

	if pos > end {
		return malformed("expected %d bytes of blob, got %d", n, n-(pos-end))
	}

	if _, err := s.Seek(pos, io.SeekStart); err != nil {
		return ioError("error seeking over blob", err)
	}

	return nil
}

// CountBlocks counts the blocks from the current position of rs to the end
// of the block sequence and then restores the position. Bodies are seeked
// over, never read.
func CountBlocks(rs io.ReadSeeker) (count int, err error) {
	start, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, ioError("error locating stream position", err)
	}

	defer func() {
		if _, serr := rs.Seek(start, io.SeekStart); serr != nil && err == nil {
			err = ioError("error restoring stream position", serr)
		}
	}()

	for {
		_, err := skipBlock(rs, false)
		if errors.Is(err, errEndOfBlocks) {
			return count, nil
		} else if err != nil {
			return count, fmt.Errorf("counting block %d: %w", count, err)
		}

		count++
	}
}

// SkipBlocks advances r past exactly n blocks. It returns the number of
// blocks skipped, which is less than n only together with an error.
func SkipBlocks(r io.Reader, n int) (int, error) {
	return NewBlockReader(r).Skip(n)
}

// ScanBlocks calls fn for every block from the current position of r to the
// end of the block sequence. The encoded blob is only read, and handed to fn
// in BlockInfo.Data, when withData is set.
func ScanBlocks(r io.Reader, withData bool, fn func(info BlockInfo) error) error {
	var offset int64

	for index := 0; ; index++ {
		info, err := skipBlock(r, withData)
		info.Index = index
		info.Offset = offset

		if errors.Is(err, errEndOfBlocks) {
			return nil
		} else if err != nil {
			return fmt.Errorf("scanning block %d at offset %d: %w", index, offset, err)
		}

		if err := fn(info); err != nil {
			return err
		}

		offset += info.Size()
	}
}
