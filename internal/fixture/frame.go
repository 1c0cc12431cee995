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
	"encoding/binary"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"m4o.io/osmpbf/internal/pb"
)

// BlobHeaderMessage encodes a BlobHeader.
func BlobHeaderMessage(typ string, datasize int32) []byte {
	var b []byte

	b = protowire.AppendTag(b, pb.BlobHeaderType, protowire.BytesType)
	b = protowire.AppendString(b, typ)
	b = protowire.AppendTag(b, pb.BlobHeaderDatasize, protowire.VarintType)

	return protowire.AppendVarint(b, uint64(datasize))
}

// Frame writes the length prefix, the blob header and the blob itself.
func Frame(w io.Writer, typ string, blob []byte) error {
	return FrameWithSize(w, typ, int32(len(blob)), blob)
}

// FrameWithSize is Frame with an explicit, possibly lying, datasize.
func FrameWithSize(w io.Writer, typ string, datasize int32, blob []byte) error {
	hb := BlobHeaderMessage(typ, datasize)

	if err := binary.Write(w, binary.BigEndian, uint32(len(hb))); err != nil {
		return fmt.Errorf("could not write header size: %w", err)
	}

	if _, err := w.Write(hb); err != nil {
		return fmt.Errorf("could not write blob header: %w", err)
	}

	if _, err := w.Write(blob); err != nil {
		return fmt.Errorf("could not write blob data: %w", err)
	}

	return nil
}
