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
	"fmt"
	"time"

	"m4o.io/osmpbf/internal/core"
	"m4o.io/osmpbf/internal/pb"
	"m4o.io/osmpbf/model"
)

// SupportedFeatures are the required features the decoder implements.
var SupportedFeatures = []string{model.FeatureOsmSchema, model.FeatureDenseNodes}

// ParseHeader decodes and validates the header block of a stream.
func ParseHeader(blk *Block) (model.Header, error) {
	if blk.Header.Type != pb.TypeOSMHeader {
		return model.Header{}, malformed("expected %s block but got %q", pb.TypeOSMHeader, blk.Header.Type)
	}

	blob, err := blk.Blob()
	if err != nil {
		return model.Header{}, err
	}

	buf := core.NewPooledBuffer()
	defer buf.Close()

	data, err := Unpack(buf, blob)
	if err != nil {
		return model.Header{}, fmt.Errorf("unable to unpack header: %w", err)
	}

	hb := &pb.HeaderBlock{}
	if err := hb.Unmarshal(data); err != nil {
		return model.Header{}, malformed("unable to unmarshal header block: %v", err)
	}

	hdr := toHeader(hb)

	if missing := hdr.UnsupportedFeatures(SupportedFeatures); len(missing) > 0 {
		return model.Header{}, fmt.Errorf("%w: %q", ErrUnsupportedFeature, missing)
	}

	return hdr, nil
}

func toHeader(hb *pb.HeaderBlock) model.Header {
	hdr := model.Header{
		RequiredFeatures:                 hb.RequiredFeatures,
		OptionalFeatures:                 hb.OptionalFeatures,
		WritingProgram:                   hb.WritingProgram,
		Source:                           hb.Source,
		OsmosisReplicationSequenceNumber: hb.OsmosisReplicationSequenceNumber,
		OsmosisReplicationBaseURL:        hb.OsmosisReplicationBaseURL,
	}

	if bb := hb.BBox; bb != nil {
		hdr.BoundingBox = model.BoundingBoxFromNano(bb.Left, bb.Right, bb.Top, bb.Bottom)
	}

	if ts := hb.OsmosisReplicationTimestamp; ts != nil {
		hdr.OsmosisReplicationTimestamp = time.Unix(*ts, 0).UTC()
	}

	return hdr
}
