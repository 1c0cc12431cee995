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

// Defaults declared by osmformat.proto.
const (
	DefaultGranularity     = 100
	DefaultDateGranularity = 1000
)

// HeaderBlock field numbers.
const (
	HeaderBlockBBox                             = 1
	HeaderBlockRequiredFeatures                 = 4
	HeaderBlockOptionalFeatures                 = 5
	HeaderBlockWritingProgram                   = 16
	HeaderBlockSource                           = 17
	HeaderBlockOsmosisReplicationTimestamp      = 32
	HeaderBlockOsmosisReplicationSequenceNumber = 33
	HeaderBlockOsmosisReplicationBaseURL        = 34
)

// HeaderBBox field numbers.
const (
	HeaderBBoxLeft   = 1
	HeaderBBoxRight  = 2
	HeaderBBoxTop    = 3
	HeaderBBoxBottom = 4
)

// PrimitiveBlock field numbers.
const (
	PrimitiveBlockStringTable     = 1
	PrimitiveBlockGroup           = 2
	PrimitiveBlockGranularity     = 17
	PrimitiveBlockDateGranularity = 18
	PrimitiveBlockLatOffset       = 19
	PrimitiveBlockLonOffset       = 20

	StringTableS = 1
)

// PrimitiveGroup field numbers.
const (
	PrimitiveGroupNodes      = 1
	PrimitiveGroupDense      = 2
	PrimitiveGroupWays       = 3
	PrimitiveGroupRelations  = 4
	PrimitiveGroupChangesets = 5
)

// Info and DenseInfo field numbers.
const (
	InfoVersion   = 1
	InfoTimestamp = 2
	InfoChangeset = 3
	InfoUID       = 4
	InfoUserSID   = 5
	InfoVisible   = 6
)

// Node, DenseNodes, Way and Relation field numbers.
const (
	NodeID   = 1
	NodeKeys = 2
	NodeVals = 3
	NodeInfo = 4
	NodeLat  = 8
	NodeLon  = 9

	DenseID        = 1
	DenseInfoField = 5
	DenseLat       = 8
	DenseLon       = 9
	DenseKeysVals  = 10

	WayID   = 1
	WayKeys = 2
	WayVals = 3
	WayInfo = 4
	WayRefs = 8

	RelationID       = 1
	RelationKeys     = 2
	RelationVals     = 3
	RelationInfo     = 4
	RelationRolesSID = 8
	RelationMemIDs   = 9
	RelationTypes    = 10
)

// HeaderBBox is the bounding box of a file in nanodegrees.
type HeaderBBox struct {
	Left   int64
	Right  int64
	Top    int64
	Bottom int64
}

func (bb *HeaderBBox) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num < HeaderBBoxLeft || f.num > HeaderBBoxBottom {
			return nil
		}

		v, err := f.varint()
		if err != nil {
			return err
		}

		switch f.num {
		case HeaderBBoxLeft:
			bb.Left = asSint64(v)
		case HeaderBBoxRight:
			bb.Right = asSint64(v)
		case HeaderBBoxTop:
			bb.Top = asSint64(v)
		case HeaderBBoxBottom:
			bb.Bottom = asSint64(v)
		}

		return nil
	})
}

// HeaderBlock is the content of the OSMHeader blob.
type HeaderBlock struct {
	BBox                             *HeaderBBox
	RequiredFeatures                 []string
	OptionalFeatures                 []string
	WritingProgram                   string
	Source                           string
	OsmosisReplicationTimestamp      *int64
	OsmosisReplicationSequenceNumber int64
	OsmosisReplicationBaseURL        string
}

// Unmarshal parses a HeaderBlock from b. Strings are copied.
func (hb *HeaderBlock) Unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case HeaderBlockBBox:
			v, err := f.message()
			if err != nil {
				return err
			}

			if hb.BBox == nil {
				hb.BBox = &HeaderBBox{}
			}

			return hb.BBox.unmarshal(v)
		case HeaderBlockRequiredFeatures, HeaderBlockOptionalFeatures,
			HeaderBlockWritingProgram, HeaderBlockSource, HeaderBlockOsmosisReplicationBaseURL:
			v, err := f.message()
			if err != nil {
				return err
			}

			s := string(v)

			switch f.num {
			case HeaderBlockRequiredFeatures:
				hb.RequiredFeatures = append(hb.RequiredFeatures, s)
			case HeaderBlockOptionalFeatures:
				hb.OptionalFeatures = append(hb.OptionalFeatures, s)
			case HeaderBlockWritingProgram:
				hb.WritingProgram = s
			case HeaderBlockSource:
				hb.Source = s
			default:
				hb.OsmosisReplicationBaseURL = s
			}
		case HeaderBlockOsmosisReplicationTimestamp:
			v, err := f.varint()
			if err != nil {
				return err
			}

			ts := asInt64(v)
			hb.OsmosisReplicationTimestamp = &ts
		case HeaderBlockOsmosisReplicationSequenceNumber:
			v, err := f.varint()
			if err != nil {
				return err
			}

			hb.OsmosisReplicationSequenceNumber = asInt64(v)
		}

		return nil
	})
}

// PrimitiveBlock is the content of an OSMData blob.
type PrimitiveBlock struct {
	StringTable     []string
	Groups          []PrimitiveGroup
	Granularity     int32
	DateGranularity int32
	LatOffset       int64
	LonOffset       int64
}

// Unmarshal parses a PrimitiveBlock from b. The string table is copied out
// of b; nothing else in the result aliases it.
func (blk *PrimitiveBlock) Unmarshal(b []byte) error {
	blk.Granularity = DefaultGranularity
	blk.DateGranularity = DefaultDateGranularity

	return walk(b, func(f field) error {
		switch f.num {
		case PrimitiveBlockStringTable:
			v, err := f.message()
			if err != nil {
				return err
			}

			return walk(v, func(sf field) error {
				if sf.num != StringTableS {
					return nil
				}

				s, err := sf.message()
				if err != nil {
					return err
				}

				blk.StringTable = append(blk.StringTable, string(s))

				return nil
			})
		case PrimitiveBlockGroup:
			v, err := f.message()
			if err != nil {
				return err
			}

			var g PrimitiveGroup
			if err := g.unmarshal(v); err != nil {
				return fmt.Errorf("primitive group %d: %w", len(blk.Groups), err)
			}

			blk.Groups = append(blk.Groups, g)
		case PrimitiveBlockGranularity, PrimitiveBlockDateGranularity:
			v, err := f.varint()
			if err != nil {
				return err
			}

			if f.num == PrimitiveBlockGranularity {
				blk.Granularity = asInt32(v)
			} else {
				blk.DateGranularity = asInt32(v)
			}
		case PrimitiveBlockLatOffset, PrimitiveBlockLonOffset:
			v, err := f.varint()
			if err != nil {
				return err
			}

			if f.num == PrimitiveBlockLatOffset {
				blk.LatOffset = asInt64(v)
			} else {
				blk.LonOffset = asInt64(v)
			}
		}

		return nil
	})
}

// PrimitiveGroup holds entities of a single kind.
type PrimitiveGroup struct {
	Nodes     []Node
	Dense     *DenseNodes
	Ways      []Way
	Relations []Relation
}

func (g *PrimitiveGroup) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num < PrimitiveGroupNodes || f.num > PrimitiveGroupRelations {
			return nil
		}

		v, err := f.message()
		if err != nil {
			return err
		}

		switch f.num {
		case PrimitiveGroupNodes:
			var n Node
			if err := n.unmarshal(v); err != nil {
				return fmt.Errorf("node: %w", err)
			}

			g.Nodes = append(g.Nodes, n)
		case PrimitiveGroupDense:
			if g.Dense == nil {
				g.Dense = &DenseNodes{}
			}

			if err := g.Dense.unmarshal(v); err != nil {
				return fmt.Errorf("dense nodes: %w", err)
			}
		case PrimitiveGroupWays:
			var w Way
			if err := w.unmarshal(v); err != nil {
				return fmt.Errorf("way: %w", err)
			}

			g.Ways = append(g.Ways, w)
		case PrimitiveGroupRelations:
			var r Relation
			if err := r.unmarshal(v); err != nil {
				return fmt.Errorf("relation: %w", err)
			}

			g.Relations = append(g.Relations, r)
		}

		return nil
	})
}

// Info is the optional provenance of a non-dense entity.
type Info struct {
	Version    int32
	Timestamp  int64
	Changeset  int64
	UID        int32
	UserSID    uint32
	Visible    bool
	HasVisible bool
}

func (i *Info) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		if f.num < InfoVersion || f.num > InfoVisible {
			return nil
		}

		v, err := f.varint()
		if err != nil {
			return err
		}

		switch f.num {
		case InfoVersion:
			i.Version = asInt32(v)
		case InfoTimestamp:
			i.Timestamp = asInt64(v)
		case InfoChangeset:
			i.Changeset = asInt64(v)
		case InfoUID:
			i.UID = asInt32(v)
		case InfoUserSID:
			i.UserSID = asUint32(v)
		case InfoVisible:
			i.Visible = asBool(v)
			i.HasVisible = true
		}

		return nil
	})
}

// DenseInfo is the columnar provenance of dense nodes. Every column except
// Version is delta coded.
type DenseInfo struct {
	Version   []int32
	Timestamp []int64
	Changeset []int64
	UID       []int32
	UserSID   []int32
	Visible   []bool
}

func (di *DenseInfo) unmarshal(b []byte) (err error) {
	return walk(b, func(f field) error {
		switch f.num {
		case InfoVersion:
			di.Version, err = repeated(di.Version, f, asInt32)
		case InfoTimestamp:
			di.Timestamp, err = repeated(di.Timestamp, f, asSint64)
		case InfoChangeset:
			di.Changeset, err = repeated(di.Changeset, f, asSint64)
		case InfoUID:
			di.UID, err = repeated(di.UID, f, asSint32)
		case InfoUserSID:
			di.UserSID, err = repeated(di.UserSID, f, asSint32)
		case InfoVisible:
			di.Visible, err = repeated(di.Visible, f, asBool)
		}

		return err
	})
}

// Node is a single, non-dense node.
type Node struct {
	ID   int64
	Keys []uint32
	Vals []uint32
	Info *Info
	Lat  int64
	Lon  int64
}

func (n *Node) unmarshal(b []byte) (err error) {
	return walk(b, func(f field) error {
		switch f.num {
		case NodeID, NodeLat, NodeLon:
			v, err := f.varint()
			if err != nil {
				return err
			}

			switch f.num {
			case NodeID:
				n.ID = asSint64(v)
			case NodeLat:
				n.Lat = asSint64(v)
			default:
				n.Lon = asSint64(v)
			}
		case NodeKeys:
			n.Keys, err = repeated(n.Keys, f, asUint32)
		case NodeVals:
			n.Vals, err = repeated(n.Vals, f, asUint32)
		case NodeInfo:
			n.Info, err = parseInfo(n.Info, f)
		}

		return err
	})
}

// DenseNodes is a columnar, delta coded group of nodes.
type DenseNodes struct {
	ID       []int64
	Info     *DenseInfo
	Lat      []int64
	Lon      []int64
	KeysVals []int32
}

func (d *DenseNodes) unmarshal(b []byte) (err error) {
	return walk(b, func(f field) error {
		switch f.num {
		case DenseID:
			d.ID, err = repeated(d.ID, f, asSint64)
		case DenseLat:
			d.Lat, err = repeated(d.Lat, f, asSint64)
		case DenseLon:
			d.Lon, err = repeated(d.Lon, f, asSint64)
		case DenseKeysVals:
			d.KeysVals, err = repeated(d.KeysVals, f, asInt32)
		case DenseInfoField:
			var v []byte
			if v, err = f.message(); err != nil {
				return err
			}

			if d.Info == nil {
				d.Info = &DenseInfo{}
			}

			err = d.Info.unmarshal(v)
		}

		return err
	})
}

// Way is an ordered, delta coded list of node references.
type Way struct {
	ID   int64
	Keys []uint32
	Vals []uint32
	Info *Info
	Refs []int64
}

func (w *Way) unmarshal(b []byte) (err error) {
	return walk(b, func(f field) error {
		switch f.num {
		case WayID:
			var v uint64
			if v, err = f.varint(); err != nil {
				return err
			}

			w.ID = asInt64(v)
		case WayKeys:
			w.Keys, err = repeated(w.Keys, f, asUint32)
		case WayVals:
			w.Vals, err = repeated(w.Vals, f, asUint32)
		case WayInfo:
			w.Info, err = parseInfo(w.Info, f)
		case WayRefs:
			w.Refs, err = repeated(w.Refs, f, asSint64)
		}

		return err
	})
}

// Relation is a list of members described by three parallel columns.
type Relation struct {
	ID       int64
	Keys     []uint32
	Vals     []uint32
	Info     *Info
	RolesSID []int32
	MemIDs   []int64
	Types    []int32
}

func (r *Relation) unmarshal(b []byte) (err error) {
	return walk(b, func(f field) error {
		switch f.num {
		case RelationID:
			var v uint64
			if v, err = f.varint(); err != nil {
				return err
			}

			r.ID = asInt64(v)
		case RelationKeys:
			r.Keys, err = repeated(r.Keys, f, asUint32)
		case RelationVals:
			r.Vals, err = repeated(r.Vals, f, asUint32)
		case RelationInfo:
			r.Info, err = parseInfo(r.Info, f)
		case RelationRolesSID:
			r.RolesSID, err = repeated(r.RolesSID, f, asInt32)
		case RelationMemIDs:
			r.MemIDs, err = repeated(r.MemIDs, f, asSint64)
		case RelationTypes:
			r.Types, err = repeated(r.Types, f, asInt32)
		}

		return err
	})
}

func parseInfo(info *Info, f field) (*Info, error) {
	v, err := f.message()
	if err != nil {
		return info, err
	}

	if info == nil {
		info = &Info{}
	}

	return info, info.unmarshal(v)
}
