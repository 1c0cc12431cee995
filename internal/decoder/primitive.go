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
	"sync/atomic"
	"time"

	"golang.org/x/exp/constraints"

	"m4o.io/osmpbf/internal/core"
	"m4o.io/osmpbf/internal/pb"
	"m4o.io/osmpbf/model"
)

// Counters tallies the entities handed to a sink. It is safe to read from
// any goroutine while decoding is in progress.
type Counters struct {
	Nodes     atomic.Int64
	Ways      atomic.Int64
	Relations atomic.Int64
}

// DecodeDataBlock unpacks a data block and decodes its entities.
func DecodeDataBlock(buf *core.PooledBuffer, blk *Block, factory model.Factory, sink model.Sink, counters *Counters) error {
	if blk.Header.Type != pb.TypeOSMData {
		return malformed("expected %s block but got %q", pb.TypeOSMData, blk.Header.Type)
	}

	blob, err := blk.Blob()
	if err != nil {
		return err
	}

	buf.Reset()

	data, err := Unpack(buf, blob)
	if err != nil {
		return err
	}

	return DecodePrimitiveBlock(data, factory, sink, counters)
}

// DecodePrimitiveBlock decodes the entities of an uncompressed PrimitiveBlock
// and hands each to the sink as soon as it is complete, in block order.
// Errors from the factory or the sink are returned as *EmitError.
func DecodePrimitiveBlock(data []byte, factory model.Factory, sink model.Sink, counters *Counters) error {
	blk := &pb.PrimitiveBlock{}
	if err := blk.Unmarshal(data); err != nil {
		return corrupt("unable to unmarshal primitive block: %v", err)
	}

	if counters == nil {
		counters = &Counters{}
	}

	c := &blockContext{
		strings:         blk.StringTable,
		granularity:     blk.Granularity,
		latOffset:       blk.LatOffset,
		lonOffset:       blk.LonOffset,
		dateGranularity: int64(blk.DateGranularity),
		factory:         factory,
		sink:            sink,
		counters:        counters,
	}

	for i := range blk.Groups {
		g := &blk.Groups[i]

		if err := c.decodeDenseNodes(g.Dense); err != nil {
			return err
		}

		if err := c.decodeNodes(g.Nodes); err != nil {
			return err
		}

		if err := c.decodeWays(g.Ways); err != nil {
			return err
		}

		if err := c.decodeRelations(g.Relations); err != nil {
			return err
		}
	}

	return nil
}

// delta accumulates a delta coded sequence.
type delta[T constraints.Signed] struct {
	sum T
}

func (d *delta[T]) next(v T) T {
	d.sum += v

	return d.sum
}

type blockContext struct {
	strings         []string
	granularity     int32
	latOffset       int64
	lonOffset       int64
	dateGranularity int64

	factory  model.Factory
	sink     model.Sink
	counters *Counters
}

func (c *blockContext) str(i int64) (string, error) {
	if i < 0 || i >= int64(len(c.strings)) {
		return "", corrupt("string table index %d out of range [0, %d)", i, len(c.strings))
	}

	return c.strings[i], nil
}

// toTimestamp converts a timestamp in units of the date granularity into a
// UTC time with whole second precision.
func (c *blockContext) toTimestamp(units int64) time.Time {
	return time.Unix(floorDiv(units*c.dateGranularity, 1000), 0).UTC()
}

func (c *blockContext) emitNode(n *model.Node) error {
	if err := c.sink.AcceptNode(n); err != nil {
		return &EmitError{Err: err}
	}

	c.counters.Nodes.Add(1)

	return nil
}

func (c *blockContext) decodeNodes(nodes []pb.Node) error {
	for i := range nodes {
		pn := &nodes[i]

		n, err := c.factory.NewNode(model.ID(pn.ID))
		if err != nil {
			return &EmitError{Err: err}
		}

		if n == nil {
			return nilEntity(model.NODE)
		}

		if n.Tags, err = c.decodeTags(pn.Keys, pn.Vals); err != nil {
			return err
		}

		if n.Info, err = c.decodeInfo(pn.Info); err != nil {
			return err
		}

		n.Lat = model.ToDegrees(c.latOffset, c.granularity, pn.Lat)
		n.Lon = model.ToDegrees(c.lonOffset, c.granularity, pn.Lon)

		if err := c.emitNode(n); err != nil {
			return err
		}
	}

	return nil
}

func (c *blockContext) decodeDenseNodes(dn *pb.DenseNodes) error {
	if dn == nil {
		return nil
	}

	count := len(dn.ID)
	if len(dn.Lat) != count || len(dn.Lon) != count {
		return corrupt("dense nodes have %d ids but %d lats and %d lons", count, len(dn.Lat), len(dn.Lon))
	}

	dic, err := c.newDenseInfoContext(dn.Info, count)
	if err != nil {
		return err
	}

	tic := &tagsContext{c: c, keyVals: dn.KeysVals}

	var id, lat, lon delta[int64]

	for i := 0; i < count; i++ {
		n, err := c.factory.NewNode(model.ID(id.next(dn.ID[i])))
		if err != nil {
			return &EmitError{Err: err}
		}

		if n == nil {
			return nilEntity(model.NODE)
		}

		n.Lat = model.ToDegrees(c.latOffset, c.granularity, lat.next(dn.Lat[i]))
		n.Lon = model.ToDegrees(c.lonOffset, c.granularity, lon.next(dn.Lon[i]))

		if n.Tags, err = tic.decodeTags(); err != nil {
			return err
		}

		if n.Info, err = dic.decodeInfo(i); err != nil {
			return err
		}

		if err := c.emitNode(n); err != nil {
			return err
		}
	}

	return nil
}

func (c *blockContext) decodeWays(ways []pb.Way) error {
	for i := range ways {
		pw := &ways[i]

		w, err := c.factory.NewWay(model.ID(pw.ID))
		if err != nil {
			return &EmitError{Err: err}
		}

		if w == nil {
			return nilEntity(model.WAY)
		}

		if w.Tags, err = c.decodeTags(pw.Keys, pw.Vals); err != nil {
			return err
		}

		if w.Info, err = c.decodeInfo(pw.Info); err != nil {
			return err
		}

		var ref delta[int64]

		w.NodeIDs = make([]model.ID, len(pw.Refs))
		for j, d := range pw.Refs {
			w.NodeIDs[j] = model.ID(ref.next(d))
		}

		if err := c.sink.AcceptWay(w); err != nil {
			return &EmitError{Err: err}
		}

		c.counters.Ways.Add(1)
	}

	return nil
}

func (c *blockContext) decodeRelations(relations []pb.Relation) error {
	for i := range relations {
		pr := &relations[i]

		r, err := c.factory.NewRelation(model.ID(pr.ID))
		if err != nil {
			return &EmitError{Err: err}
		}

		if r == nil {
			return nilEntity(model.RELATION)
		}

		if r.Tags, err = c.decodeTags(pr.Keys, pr.Vals); err != nil {
			return err
		}

		if r.Info, err = c.decodeInfo(pr.Info); err != nil {
			return err
		}

		if r.Members, err = c.decodeMembers(pr); err != nil {
			return err
		}

		if err := c.sink.AcceptRelation(r); err != nil {
			return &EmitError{Err: err}
		}

		c.counters.Relations.Add(1)
	}

	return nil
}

func (c *blockContext) decodeMembers(pr *pb.Relation) ([]model.Member, error) {
	count := len(pr.MemIDs)
	if len(pr.Types) != count || len(pr.RolesSID) != count {
		return nil, corrupt("relation %d has %d member ids, %d types and %d roles",
			pr.ID, count, len(pr.Types), len(pr.RolesSID))
	}

	members := make([]model.Member, count)

	var memid delta[int64]

	for i := 0; i < count; i++ {
		t, err := decodeMemberType(pr.Types[i])
		if err != nil {
			return nil, err
		}

		role, err := c.str(int64(pr.RolesSID[i]))
		if err != nil {
			return nil, err
		}

		if members[i], err = c.factory.NewMember(t, model.ID(memid.next(pr.MemIDs[i])), role); err != nil {
			return nil, &EmitError{Err: err}
		}
	}

	return members, nil
}

func (c *blockContext) decodeTags(keyIDs, valIDs []uint32) (map[string]string, error) {
	if len(keyIDs) != len(valIDs) {
		return nil, corrupt("%d tag keys but %d values", len(keyIDs), len(valIDs))
	}

	tags := make(map[string]string, len(keyIDs))

	for i, keyID := range keyIDs {
		k, err := c.str(int64(keyID))
		if err != nil {
			return nil, err
		}

		v, err := c.str(int64(valIDs[i]))
		if err != nil {
			return nil, err
		}

		tags[k] = v
	}

	return tags, nil
}

// decodeInfo converts the provenance of a plain node, way or relation. A
// missing Info yields the defaults.
func (c *blockContext) decodeInfo(info *pb.Info) (*model.Info, error) {
	i := &model.Info{Visible: true}
	if info == nil {
		return i, nil
	}

	user, err := c.str(int64(info.UserSID))
	if err != nil {
		return nil, err
	}

	i.Version = info.Version
	i.Timestamp = c.toTimestamp(info.Timestamp)
	i.Changeset = info.Changeset
	i.UID = model.UID(info.UID)
	i.User = user

	if info.HasVisible {
		i.Visible = info.Visible
	}

	return i, nil
}

type denseInfoContext struct {
	c  *blockContext
	di *pb.DenseInfo

	timestamp delta[int64]
	changeset delta[int64]
	uid       delta[int32]
	userSid   delta[int32]
}

func (c *blockContext) newDenseInfoContext(di *pb.DenseInfo, count int) (*denseInfoContext, error) {
	if di != nil {
		for _, n := range []int{
			len(di.Version), len(di.Timestamp), len(di.Changeset),
			len(di.UID), len(di.UserSID), len(di.Visible),
		} {
			if n != 0 && n != count {
				return nil, corrupt("dense info column of length %d for %d nodes", n, count)
			}
		}
	}

	return &denseInfoContext{c: c, di: di}, nil
}

// decodeInfo resolves the provenance of the i-th dense node. Version is the
// only column that is not delta coded.
func (dic *denseInfoContext) decodeInfo(i int) (*model.Info, error) {
	info := &model.Info{Visible: true}

	di := dic.di
	if di == nil {
		return info, nil
	}

	if len(di.Version) > 0 {
		info.Version = di.Version[i]
	}

	if len(di.Timestamp) > 0 {
		info.Timestamp = dic.c.toTimestamp(dic.timestamp.next(di.Timestamp[i]))
	}

	if len(di.Changeset) > 0 {
		info.Changeset = dic.changeset.next(di.Changeset[i])
	}

	if len(di.UID) > 0 {
		info.UID = model.UID(dic.uid.next(di.UID[i]))
	}

	if len(di.UserSID) > 0 {
		user, err := dic.c.str(int64(dic.userSid.next(di.UserSID[i])))
		if err != nil {
			return nil, err
		}

		info.User = user
	}

	if len(di.Visible) > 0 {
		info.Visible = di.Visible[i]
	}

	return info, nil
}

// tagsContext walks the keys_vals column shared by a dense node group.
type tagsContext struct {
	c       *blockContext
	keyVals []int32
	i       int
}

// decodeTags consumes the key/value pairs of the next node up to and
// including its 0 terminator. The terminator of the last node may be absent.
func (tic *tagsContext) decodeTags() (map[string]string, error) {
	tags := make(map[string]string)

	for tic.i < len(tic.keyVals) {
		keyID := tic.keyVals[tic.i]
		tic.i++

		if keyID == 0 {
			break
		}

		if tic.i >= len(tic.keyVals) {
			return nil, corrupt("dense tag key %d has no value", keyID)
		}

		valID := tic.keyVals[tic.i]
		tic.i++

		k, err := tic.c.str(int64(keyID))
		if err != nil {
			return nil, err
		}

		v, err := tic.c.str(int64(valID))
		if err != nil {
			return nil, err
		}

		tags[k] = v
	}

	return tags, nil
}

// decodeMemberType converts a relation member type code to an EntityType.
func decodeMemberType(mt int32) (model.EntityType, error) {
	switch mt {
	case 0:
		return model.NODE, nil
	case 1:
		return model.WAY, nil
	case 2:
		return model.RELATION, nil
	default:
		return 0, corrupt("unrecognized member type %d", mt)
	}
}

// floorDiv divides rounding towards negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}

func nilEntity(t model.EntityType) error {
	return &EmitError{Err: fmt.Errorf("%w: %s", model.ErrNilEntity, t)}
}
