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
	"math"
	"sort"
	"time"

	"golang.org/x/exp/constraints"

	"m4o.io/osmpbf/internal/pb"
	"m4o.io/osmpbf/model"
)

// Block controls the scale parameters and the node encoding of the
// primitive blocks built from entities. Zero values select the defaults.
type Block struct {
	Granularity     int32
	DateGranularity int32
	LatOffset       int64
	LonOffset       int64

	// PlainNodes writes nodes as Node messages rather than DenseNodes.
	PlainNodes bool
}

func (o Block) granularity() int32 {
	if o.Granularity == 0 {
		return pb.DefaultGranularity
	}

	return o.Granularity
}

func (o Block) dateGranularity() int32 {
	if o.DateGranularity == 0 {
		return pb.DefaultDateGranularity
	}

	return o.DateGranularity
}

// Encode builds a primitive block holding the entities in order. Each run
// of entities of the same kind becomes one primitive group.
func (o Block) Encode(entities []model.Entity) *pb.PrimitiveBlock {
	strings := NewStrings()
	for _, e := range entities {
		extractStrings(strings, e)
	}

	c := &blockContext{opts: o, table: strings.CalcTable()}

	blk := &pb.PrimitiveBlock{
		StringTable:     c.table.AsArray(),
		Granularity:     o.Granularity,
		DateGranularity: o.DateGranularity,
		LatOffset:       o.LatOffset,
		LonOffset:       o.LonOffset,
	}

	for start := 0; start < len(entities); {
		end := start + 1
		for end < len(entities) && sameKind(entities[start], entities[end]) {
			end++
		}

		blk.Groups = append(blk.Groups, c.extractGroup(entities[start:end]))
		start = end
	}

	return blk
}

func sameKind(a, b model.Entity) bool {
	switch a.(type) {
	case *model.Node:
		_, ok := b.(*model.Node)
		return ok
	case *model.Way:
		_, ok := b.(*model.Way)
		return ok
	default:
		_, ok := b.(*model.Relation)
		return ok
	}
}

func extractStrings(strings *Strings, e model.Entity) {
	for k, v := range e.GetTags() {
		strings.Add(k)
		strings.Add(v)
	}

	if info := e.GetInfo(); info != nil {
		strings.Add(info.User)
	}

	if r, ok := e.(*model.Relation); ok {
		for _, m := range r.Members {
			strings.Add(m.Role)
		}
	}
}

type blockContext struct {
	opts  Block
	table *Table
}

func (c *blockContext) extractGroup(entities []model.Entity) pb.PrimitiveGroup {
	var g pb.PrimitiveGroup

	switch entities[0].(type) {
	case *model.Node:
		if c.opts.PlainNodes {
			for _, e := range entities {
				g.Nodes = append(g.Nodes, c.extractNode(e.(*model.Node)))
			}
		} else {
			g.Dense = c.extractDenseNodes(entities)
		}
	case *model.Way:
		for _, e := range entities {
			g.Ways = append(g.Ways, c.extractWay(e.(*model.Way)))
		}
	case *model.Relation:
		for _, e := range entities {
			g.Relations = append(g.Relations, c.extractRelation(e.(*model.Relation)))
		}
	}

	return g
}

func (c *blockContext) toCoordinate(offset int64, d model.Degrees) int64 {
	nano := math.Round(float64(d) * model.NanoDegreesPerDegree)

	return int64(math.Round((nano - float64(offset)) / float64(c.opts.granularity())))
}

func (c *blockContext) fromTimestamp(ts time.Time) int64 {
	if ts.IsZero() {
		return 0
	}

	return floorDiv(ts.UnixMilli(), int64(c.opts.dateGranularity()))
}

func (c *blockContext) extractNode(n *model.Node) pb.Node {
	keyIDs, valIDs := calcTagIDs(n.Tags, c.table)

	return pb.Node{
		ID:   int64(n.ID),
		Keys: keyIDs,
		Vals: valIDs,
		Info: c.toInfoPb(n.Info),
		Lat:  c.toCoordinate(c.opts.LatOffset, n.Lat),
		Lon:  c.toCoordinate(c.opts.LonOffset, n.Lon),
	}
}

func (c *blockContext) extractDenseNodes(entities []model.Entity) *pb.DenseNodes {
	var (
		ids, lats, lons []int64
		versions, uids  []int32
		ts, cs          []int64
		usids           []int32
		visible         []bool
		keyValIDs       []int32
		hidden, tagged  bool
	)

	for _, e := range entities {
		n := e.(*model.Node)

		ids = append(ids, int64(n.ID))
		lats = append(lats, c.toCoordinate(c.opts.LatOffset, n.Lat))
		lons = append(lons, c.toCoordinate(c.opts.LonOffset, n.Lon))

		info := n.Info
		if info == nil {
			info = &model.Info{Visible: true}
		}

		versions = append(versions, info.Version)
		uids = append(uids, int32(info.UID))
		ts = append(ts, c.fromTimestamp(info.Timestamp))
		cs = append(cs, info.Changeset)
		usids = append(usids, c.table.IndexOf(info.User))
		visible = append(visible, info.Visible)
		hidden = hidden || !info.Visible

		kIDs, vIDs := calcTagIDs(n.Tags, c.table)
		for i, k := range kIDs {
			keyValIDs = append(keyValIDs, int32(k), int32(vIDs[i]))
		}

		keyValIDs = append(keyValIDs, 0)
		tagged = tagged || len(kIDs) > 0
	}

	di := &pb.DenseInfo{
		Version:   versions,
		Timestamp: calcDeltas(ts),
		Changeset: calcDeltas(cs),
		UID:       calcDeltas(uids),
		UserSID:   calcDeltas(usids),
	}

	if hidden {
		di.Visible = visible
	}

	dn := &pb.DenseNodes{
		ID:   calcDeltas(ids),
		Info: di,
		Lat:  calcDeltas(lats),
		Lon:  calcDeltas(lons),
	}

	if tagged {
		dn.KeysVals = keyValIDs
	}

	return dn
}

func (c *blockContext) extractWay(w *model.Way) pb.Way {
	refs := make([]int64, len(w.NodeIDs))
	for i, r := range w.NodeIDs {
		refs[i] = int64(r)
	}

	keyIDs, valIDs := calcTagIDs(w.Tags, c.table)

	return pb.Way{
		ID:   int64(w.ID),
		Keys: keyIDs,
		Vals: valIDs,
		Info: c.toInfoPb(w.Info),
		Refs: calcDeltas(refs),
	}
}

func (c *blockContext) extractRelation(r *model.Relation) pb.Relation {
	keyIDs, valIDs := calcTagIDs(r.Tags, c.table)
	memids := make([]int64, len(r.Members))
	roleids := make([]int32, len(r.Members))
	types := make([]int32, len(r.Members))

	for i, m := range r.Members {
		memids[i] = int64(m.ID)
		roleids[i] = c.table.IndexOf(m.Role)
		types[i] = int32(m.Type)
	}

	return pb.Relation{
		ID:       int64(r.ID),
		Keys:     keyIDs,
		Vals:     valIDs,
		Info:     c.toInfoPb(r.Info),
		RolesSID: roleids,
		MemIDs:   calcDeltas(memids),
		Types:    types,
	}
}

func (c *blockContext) toInfoPb(info *model.Info) *pb.Info {
	if info == nil {
		return nil
	}

	return &pb.Info{
		Version:    info.Version,
		Timestamp:  c.fromTimestamp(info.Timestamp),
		Changeset:  info.Changeset,
		UID:        int32(info.UID),
		UserSID:    uint32(c.table.IndexOf(info.User)),
		Visible:    info.Visible,
		HasVisible: !info.Visible,
	}
}

// calcDeltas calculates the delta-encoding of the values.
func calcDeltas[T constraints.Integer | constraints.Float](values []T) []T {
	prev := T(0)
	deltas := make([]T, len(values))

	for i, v := range values {
		deltas[i] = v - prev
		prev = v
	}

	return deltas
}

func calcTagIDs(tags map[string]string, table *Table) (keyIDs []uint32, valIDs []uint32) {
	keys := make([]string, 0, len(tags))

	for k := range tags {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		keyIDs = append(keyIDs, uint32(table.IndexOf(k)))
		valIDs = append(valIDs, uint32(table.IndexOf(tags[k])))
	}

	return keyIDs, valIDs
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}
