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
	"google.golang.org/protobuf/encoding/protowire"

	"m4o.io/osmpbf/internal/pb"
)

type integer interface {
	~int32 | ~int64 | ~uint32 | ~uint64
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)

	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendBytes(b, m)
}

func appendPacked[T integer](b []byte, num protowire.Number, vals []T, enc func(T) uint64) []byte {
	if len(vals) == 0 {
		return b
	}

	var p []byte
	for _, v := range vals {
		p = protowire.AppendVarint(p, enc(v))
	}

	return appendMessage(b, num, p)
}

func plain[T integer](v T) uint64 {
	return uint64(v)
}

func zigzag32(v int32) uint64 {
	return protowire.EncodeZigZag(int64(v))
}

func zigzag64(v int64) uint64 {
	return protowire.EncodeZigZag(v)
}

// MarshalHeaderBlock encodes a HeaderBlock.
func MarshalHeaderBlock(hb *pb.HeaderBlock) []byte {
	var b []byte

	if bb := hb.BBox; bb != nil {
		var m []byte
		m = appendVarint(m, pb.HeaderBBoxLeft, zigzag64(bb.Left))
		m = appendVarint(m, pb.HeaderBBoxRight, zigzag64(bb.Right))
		m = appendVarint(m, pb.HeaderBBoxTop, zigzag64(bb.Top))
		m = appendVarint(m, pb.HeaderBBoxBottom, zigzag64(bb.Bottom))
		b = appendMessage(b, pb.HeaderBlockBBox, m)
	}

	for _, f := range hb.RequiredFeatures {
		b = appendString(b, pb.HeaderBlockRequiredFeatures, f)
	}

	for _, f := range hb.OptionalFeatures {
		b = appendString(b, pb.HeaderBlockOptionalFeatures, f)
	}

	if hb.WritingProgram != "" {
		b = appendString(b, pb.HeaderBlockWritingProgram, hb.WritingProgram)
	}

	if hb.Source != "" {
		b = appendString(b, pb.HeaderBlockSource, hb.Source)
	}

	if hb.OsmosisReplicationTimestamp != nil {
		b = appendVarint(b, pb.HeaderBlockOsmosisReplicationTimestamp, uint64(*hb.OsmosisReplicationTimestamp))
	}

	if hb.OsmosisReplicationSequenceNumber != 0 {
		b = appendVarint(b, pb.HeaderBlockOsmosisReplicationSequenceNumber, uint64(hb.OsmosisReplicationSequenceNumber))
	}

	if hb.OsmosisReplicationBaseURL != "" {
		b = appendString(b, pb.HeaderBlockOsmosisReplicationBaseURL, hb.OsmosisReplicationBaseURL)
	}

	return b
}

// MarshalPrimitiveBlock encodes a PrimitiveBlock. Zero granularities are
// left off the wire so that the format defaults apply.
func MarshalPrimitiveBlock(blk *pb.PrimitiveBlock) []byte {
	var st []byte
	for _, s := range blk.StringTable {
		st = appendString(st, pb.StringTableS, s)
	}

	b := appendMessage(nil, pb.PrimitiveBlockStringTable, st)

	for i := range blk.Groups {
		b = appendMessage(b, pb.PrimitiveBlockGroup, marshalGroup(&blk.Groups[i]))
	}

	if blk.Granularity != 0 {
		b = appendVarint(b, pb.PrimitiveBlockGranularity, uint64(blk.Granularity))
	}

	if blk.DateGranularity != 0 {
		b = appendVarint(b, pb.PrimitiveBlockDateGranularity, uint64(blk.DateGranularity))
	}

	if blk.LatOffset != 0 {
		b = appendVarint(b, pb.PrimitiveBlockLatOffset, uint64(blk.LatOffset))
	}

	if blk.LonOffset != 0 {
		b = appendVarint(b, pb.PrimitiveBlockLonOffset, uint64(blk.LonOffset))
	}

	return b
}

func marshalGroup(g *pb.PrimitiveGroup) []byte {
	var b []byte

	for i := range g.Nodes {
		b = appendMessage(b, pb.PrimitiveGroupNodes, marshalNode(&g.Nodes[i]))
	}

	if g.Dense != nil {
		b = appendMessage(b, pb.PrimitiveGroupDense, marshalDense(g.Dense))
	}

	for i := range g.Ways {
		b = appendMessage(b, pb.PrimitiveGroupWays, marshalWay(&g.Ways[i]))
	}

	for i := range g.Relations {
		b = appendMessage(b, pb.PrimitiveGroupRelations, marshalRelation(&g.Relations[i]))
	}

	return b
}

func marshalInfo(info *pb.Info) []byte {
	var b []byte

	b = appendVarint(b, pb.InfoVersion, uint64(info.Version))
	b = appendVarint(b, pb.InfoTimestamp, uint64(info.Timestamp))
	b = appendVarint(b, pb.InfoChangeset, uint64(info.Changeset))
	b = appendVarint(b, pb.InfoUID, uint64(info.UID))
	b = appendVarint(b, pb.InfoUserSID, uint64(info.UserSID))

	if info.HasVisible {
		v := uint64(0)
		if info.Visible {
			v = 1
		}

		b = appendVarint(b, pb.InfoVisible, v)
	}

	return b
}

func marshalNode(n *pb.Node) []byte {
	var b []byte

	b = appendVarint(b, pb.NodeID, zigzag64(n.ID))
	b = appendPacked(b, pb.NodeKeys, n.Keys, plain[uint32])
	b = appendPacked(b, pb.NodeVals, n.Vals, plain[uint32])

	if n.Info != nil {
		b = appendMessage(b, pb.NodeInfo, marshalInfo(n.Info))
	}

	b = appendVarint(b, pb.NodeLat, zigzag64(n.Lat))

	return appendVarint(b, pb.NodeLon, zigzag64(n.Lon))
}

func marshalDense(d *pb.DenseNodes) []byte {
	var b []byte

	b = appendPacked(b, pb.DenseID, d.ID, zigzag64)

	if di := d.Info; di != nil {
		var m []byte
		m = appendPacked(m, pb.InfoVersion, di.Version, plain[int32])
		m = appendPacked(m, pb.InfoTimestamp, di.Timestamp, zigzag64)
		m = appendPacked(m, pb.InfoChangeset, di.Changeset, zigzag64)
		m = appendPacked(m, pb.InfoUID, di.UID, zigzag32)
		m = appendPacked(m, pb.InfoUserSID, di.UserSID, zigzag32)

		if len(di.Visible) > 0 {
			var p []byte
			for _, v := range di.Visible {
				p = protowire.AppendVarint(p, protowire.EncodeBool(v))
			}

			m = appendMessage(m, pb.InfoVisible, p)
		}

		b = appendMessage(b, pb.DenseInfoField, m)
	}

	b = appendPacked(b, pb.DenseLat, d.Lat, zigzag64)
	b = appendPacked(b, pb.DenseLon, d.Lon, zigzag64)

	return appendPacked(b, pb.DenseKeysVals, d.KeysVals, plain[int32])
}

func marshalWay(w *pb.Way) []byte {
	var b []byte

	b = appendVarint(b, pb.WayID, uint64(w.ID))
	b = appendPacked(b, pb.WayKeys, w.Keys, plain[uint32])
	b = appendPacked(b, pb.WayVals, w.Vals, plain[uint32])

	if w.Info != nil {
		b = appendMessage(b, pb.WayInfo, marshalInfo(w.Info))
	}

	return appendPacked(b, pb.WayRefs, w.Refs, zigzag64)
}

func marshalRelation(r *pb.Relation) []byte {
	var b []byte

	b = appendVarint(b, pb.RelationID, uint64(r.ID))
	b = appendPacked(b, pb.RelationKeys, r.Keys, plain[uint32])
	b = appendPacked(b, pb.RelationVals, r.Vals, plain[uint32])

	if r.Info != nil {
		b = appendMessage(b, pb.RelationInfo, marshalInfo(r.Info))
	}

	b = appendPacked(b, pb.RelationRolesSID, r.RolesSID, plain[int32])
	b = appendPacked(b, pb.RelationMemIDs, r.MemIDs, zigzag64)

	return appendPacked(b, pb.RelationTypes, r.Types, plain[int32])
}
