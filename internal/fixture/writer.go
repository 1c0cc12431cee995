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

// Package fixture writes OSM PBF streams for tests. It covers every blob
// compression the decoder reads and gives tests direct access to the wire
// messages so that malformed input can be produced on purpose.
package fixture

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"m4o.io/osmpbf/internal/pb"
	"m4o.io/osmpbf/model"
)

// SupportedFeatures are the required features written by DefaultHeader.
var SupportedFeatures = []string{model.FeatureOsmSchema, model.FeatureDenseNodes}

// DefaultHeader returns a header that every decoder accepts.
func DefaultHeader() model.Header {
	return model.Header{
		BoundingBox: &model.BoundingBox{
			Top:    51.69344,
			Left:   -0.511482,
			Bottom: 51.28554,
			Right:  0.335437,
		},
		RequiredFeatures: SupportedFeatures,
		OptionalFeatures: []string{model.FeatureSortedByType},
		WritingProgram:   "osmpbf-fixture",
	}
}

// EncodeHeader converts hdr into its wire message.
func EncodeHeader(hdr model.Header) *pb.HeaderBlock {
	hb := &pb.HeaderBlock{
		RequiredFeatures:                 hdr.RequiredFeatures,
		OptionalFeatures:                 hdr.OptionalFeatures,
		WritingProgram:                   hdr.WritingProgram,
		Source:                           hdr.Source,
		OsmosisReplicationSequenceNumber: hdr.OsmosisReplicationSequenceNumber,
		OsmosisReplicationBaseURL:        hdr.OsmosisReplicationBaseURL,
	}

	if bbox := hdr.BoundingBox; bbox != nil {
		hb.BBox = &pb.HeaderBBox{
			Left:   toNano(bbox.Left),
			Right:  toNano(bbox.Right),
			Top:    toNano(bbox.Top),
			Bottom: toNano(bbox.Bottom),
		}
	}

	if !hdr.OsmosisReplicationTimestamp.IsZero() {
		ts := hdr.OsmosisReplicationTimestamp.Unix()
		hb.OsmosisReplicationTimestamp = &ts
	}

	return hb
}

func toNano(d model.Degrees) int64 {
	return int64(math.Round(float64(d) * model.NanoDegreesPerDegree))
}

// Writer writes a PBF stream block by block.
type Writer struct {
	w           io.Writer
	compression Compression

	// Block is applied to every WriteEntities call.
	Block Block
}

func NewWriter(w io.Writer, c Compression) *Writer {
	return &Writer{w: w, compression: c}
}

// WriteBlob packs raw and frames it as a blob of type typ.
func (w *Writer) WriteBlob(typ string, raw []byte) error {
	blob, err := Pack(raw, w.compression)
	if err != nil {
		return err
	}

	return Frame(w.w, typ, blob)
}

func (w *Writer) WriteHeader(hdr model.Header) error {
	if err := w.WriteBlob(pb.TypeOSMHeader, MarshalHeaderBlock(EncodeHeader(hdr))); err != nil {
		return fmt.Errorf("could not write header: %w", err)
	}

	return nil
}

func (w *Writer) WritePrimitiveBlock(blk *pb.PrimitiveBlock) error {
	if err := w.WriteBlob(pb.TypeOSMData, MarshalPrimitiveBlock(blk)); err != nil {
		return fmt.Errorf("could not write primitive block: %w", err)
	}

	return nil
}

// WriteEntities writes the entities as a single data block.
func (w *Writer) WriteEntities(entities ...model.Entity) error {
	return w.WritePrimitiveBlock(w.Block.Encode(entities))
}

// Build returns a complete stream: the header followed by one data block per
// batch.
func Build(c Compression, hdr model.Header, batches ...[]model.Entity) ([]byte, error) {
	var buf bytes.Buffer

	w := NewWriter(&buf, c)

	if err := w.WriteHeader(hdr); err != nil {
		return nil, err
	}

	for _, batch := range batches {
		if err := w.WriteEntities(batch...); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}
