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
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"m4o.io/osmpbf/internal/core"
	"m4o.io/osmpbf/internal/fixture"
	"m4o.io/osmpbf/internal/pb"
	"m4o.io/osmpbf/model"
)

func decode(t *testing.T, blk *pb.PrimitiveBlock) (*model.Collector, *Counters, error) {
	t.Helper()

	c := &model.Collector{}
	counters := &Counters{}
	err := DecodePrimitiveBlock(fixture.MarshalPrimitiveBlock(blk), model.DefaultFactory{}, c, counters)

	return c, counters, err
}

func TestDecodeDenseNodes(t *testing.T) {
	blk := &pb.PrimitiveBlock{
		StringTable: []string{"", "amenity", "cafe", "alice", "bob"},
		Granularity: 100,
		LatOffset:   1_000,
		LonOffset:   -2_000,
		Groups: []pb.PrimitiveGroup{{Dense: &pb.DenseNodes{
			ID:       []int64{10, 5, -3},
			Lat:      []int64{515_000_000, 100, -200},
			Lon:      []int64{-1_000_000, 10, 20},
			KeysVals: []int32{1, 2, 0, 0, 1, 2},
			Info: &pb.DenseInfo{
				Version:   []int32{3, 1, 2},
				Timestamp: []int64{1_600_000_000, 60, -30},
				Changeset: []int64{100, 1, 1},
				UID:       []int32{7, 1, -1},
				UserSID:   []int32{3, 1, -1},
			},
		}}},
	}

	c, counters, err := decode(t, blk)
	require.NoError(t, err)
	require.Len(t, c.Nodes, 3)
	assert.Equal(t, int64(3), counters.Nodes.Load())

	ids := []model.ID{10, 15, 12}
	lats := []int64{515_000_000, 515_000_100, 514_999_900}
	lons := []int64{-1_000_000, -999_990, -999_970}
	versions := []int32{3, 1, 2}
	timestamps := []int64{1_600_000_000, 1_600_000_060, 1_600_000_030}
	changesets := []int64{100, 101, 102}
	uids := []model.UID{7, 8, 7}
	users := []string{"alice", "bob", "alice"}

	for i, n := range c.Nodes {
		assert.Equal(t, ids[i], n.ID)
		assert.Equal(t, model.Degrees(float64(lats[i]*100+1_000)/1e9), n.Lat)
		assert.Equal(t, model.Degrees(float64(lons[i]*100-2_000)/1e9), n.Lon)
		assert.Equal(t, versions[i], n.Info.Version)
		assert.Equal(t, time.Unix(timestamps[i], 0).UTC(), n.Info.Timestamp)
		assert.Equal(t, changesets[i], n.Info.Changeset)
		assert.Equal(t, uids[i], n.Info.UID)
		assert.Equal(t, users[i], n.Info.User)
		assert.True(t, n.Info.Visible)
	}

	assert.Equal(t, map[string]string{"amenity": "cafe"}, c.Nodes[0].Tags)
	assert.Empty(t, c.Nodes[1].Tags)
	assert.Equal(t, map[string]string{"amenity": "cafe"}, c.Nodes[2].Tags)
}

func TestDecodeDenseNodes_TagBoundary(t *testing.T) {
	blk := &pb.PrimitiveBlock{
		StringTable: []string{"", "amenity", "cafe"},
		Groups: []pb.PrimitiveGroup{{Dense: &pb.DenseNodes{
			ID:       []int64{1, 1},
			Lat:      []int64{0, 0},
			Lon:      []int64{0, 0},
			KeysVals: []int32{1, 2, 0, 0},
		}}},
	}

	c, _, err := decode(t, blk)
	require.NoError(t, err)
	require.Len(t, c.Nodes, 2)

	assert.Equal(t, map[string]string{"amenity": "cafe"}, c.Nodes[0].Tags)
	assert.Empty(t, c.Nodes[1].Tags)
	assert.Equal(t, &model.Info{Visible: true}, c.Nodes[1].Info)
}

func TestDecodeDenseNodes_NoKeysVals(t *testing.T) {
	blk := &pb.PrimitiveBlock{
		StringTable: []string{""},
		Groups: []pb.PrimitiveGroup{{Dense: &pb.DenseNodes{
			ID:  []int64{1, 1, 1},
			Lat: []int64{0, 0, 0},
			Lon: []int64{0, 0, 0},
		}}},
	}

	c, _, err := decode(t, blk)
	require.NoError(t, err)
	require.Len(t, c.Nodes, 3)

	for _, n := range c.Nodes {
		assert.Empty(t, n.Tags)
	}
}

func TestDecodeDenseNodes_Visible(t *testing.T) {
	blk := &pb.PrimitiveBlock{
		StringTable: []string{""},
		Groups: []pb.PrimitiveGroup{{Dense: &pb.DenseNodes{
			ID:   []int64{1, 1},
			Lat:  []int64{0, 0},
			Lon:  []int64{0, 0},
			Info: &pb.DenseInfo{Visible: []bool{true, false}},
		}}},
	}

	c, _, err := decode(t, blk)
	require.NoError(t, err)

	assert.True(t, c.Nodes[0].Info.Visible)
	assert.False(t, c.Nodes[1].Info.Visible)
}

func TestTimestampFloorDivision(t *testing.T) {
	tests := []struct {
		name            string
		dateGranularity int64
		units           int64
		expected        int64
	}{
		{"default granularity", 1000, 7, 7},
		{"coarse granularity", 60_000, 2, 120},
		{"sub second", 1, 1999, 1},
		{"negative sub second", 1, -1, -1},
		{"negative", 500, -3, -2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := &blockContext{dateGranularity: tc.dateGranularity}
			assert.Equal(t, time.Unix(tc.expected, 0).UTC(), c.toTimestamp(tc.units))
		})
	}
}

func TestDecodeWays(t *testing.T) {
	blk := &pb.PrimitiveBlock{
		StringTable:     []string{"", "highway", "primary", "carol"},
		DateGranularity: 1000,
		Groups: []pb.PrimitiveGroup{{Ways: []pb.Way{
			{ID: 42, Keys: []uint32{1}, Vals: []uint32{2}, Refs: []int64{100, 5, -3},
				Info: &pb.Info{Version: 2, Timestamp: 7, Changeset: 9, UID: 11, UserSID: 3}},
			{ID: 43, Refs: []int64{1, 1}},
			{ID: 44},
		}}},
	}

	c, counters, err := decode(t, blk)
	require.NoError(t, err)
	require.Len(t, c.Ways, 3)
	assert.Equal(t, int64(3), counters.Ways.Load())

	w := c.Ways[0]
	assert.Equal(t, model.ID(42), w.ID)
	assert.Equal(t, []model.ID{100, 105, 102}, w.NodeIDs)
	assert.Equal(t, map[string]string{"highway": "primary"}, w.Tags)
	assert.Equal(t, &model.Info{
		Version:   2,
		UID:       11,
		Timestamp: time.Unix(7, 0).UTC(),
		Changeset: 9,
		User:      "carol",
		Visible:   true,
	}, w.Info)

	// accumulators reset per way
	assert.Equal(t, []model.ID{1, 2}, c.Ways[1].NodeIDs)
	assert.Empty(t, c.Ways[2].NodeIDs)
	assert.Equal(t, &model.Info{Visible: true}, c.Ways[2].Info)
}

func TestDecodeRelations(t *testing.T) {
	blk := &pb.PrimitiveBlock{
		StringTable: []string{"", "stop"},
		Groups: []pb.PrimitiveGroup{{Relations: []pb.Relation{
			{ID: 7, MemIDs: []int64{10, 5}, Types: []int32{0, 1}, RolesSID: []int32{1, 1}},
			{ID: 8, MemIDs: []int64{3}, Types: []int32{2}, RolesSID: []int32{0},
				Info: &pb.Info{Visible: false, HasVisible: true}},
		}}},
	}

	c, counters, err := decode(t, blk)
	require.NoError(t, err)
	require.Len(t, c.Relations, 2)
	assert.Equal(t, int64(2), counters.Relations.Load())

	assert.Equal(t, []model.Member{
		{ID: 10, Type: model.NODE, Role: "stop"},
		{ID: 15, Type: model.WAY, Role: "stop"},
	}, c.Relations[0].Members)

	assert.Equal(t, []model.Member{{ID: 3, Type: model.RELATION, Role: ""}}, c.Relations[1].Members)
	assert.False(t, c.Relations[1].Info.Visible)
}

func TestDecodePlainNodes(t *testing.T) {
	blk := &pb.PrimitiveBlock{
		StringTable:     []string{"", "name", "x"},
		Granularity:     1000,
		DateGranularity: 500,
		LonOffset:       5,
		Groups: []pb.PrimitiveGroup{{Nodes: []pb.Node{
			{ID: -1, Keys: []uint32{1}, Vals: []uint32{2}, Lat: 1_000, Lon: -1_000,
				Info: &pb.Info{Version: 1, Timestamp: 4}},
		}}},
	}

	c, _, err := decode(t, blk)
	require.NoError(t, err)
	require.Len(t, c.Nodes, 1)

	n := c.Nodes[0]
	assert.Equal(t, model.ID(-1), n.ID)
	assert.Equal(t, model.Degrees(0.001), n.Lat)
	assert.Equal(t, model.Degrees(float64(-1_000_000+5)/1e9), n.Lon)
	assert.Equal(t, map[string]string{"name": "x"}, n.Tags)
	assert.Equal(t, time.Unix(2, 0).UTC(), n.Info.Timestamp)
}

func TestDecodePrimitiveBlock_Order(t *testing.T) {
	entities := []model.Entity{
		&model.Way{ID: 1, NodeIDs: []model.ID{1, 2}},
		&model.Node{ID: 2, Lat: 1, Lon: 1},
		&model.Node{ID: 3, Lat: 2, Lon: 2},
		&model.Relation{ID: 4},
		&model.Way{ID: 5},
	}

	c, _, err := decode(t, fixture.Block{}.Encode(entities))
	require.NoError(t, err)

	ids := make([]model.ID, 0, c.Len())
	for _, e := range c.Entities {
		ids = append(ids, e.GetID())
	}

	assert.Equal(t, []model.ID{1, 2, 3, 4, 5}, ids)
}

func TestDecodePrimitiveBlock_DenseBeforePlainNodes(t *testing.T) {
	blk := &pb.PrimitiveBlock{
		StringTable: []string{""},
		Groups: []pb.PrimitiveGroup{{
			Nodes: []pb.Node{{ID: 7}},
			Dense: &pb.DenseNodes{ID: []int64{3, 1}, Lat: []int64{0, 0}, Lon: []int64{0, 0}},
		}},
	}

	c, _, err := decode(t, blk)
	require.NoError(t, err)
	require.Len(t, c.Nodes, 3)

	assert.Equal(t, []model.ID{3, 4, 7}, []model.ID{c.Nodes[0].ID, c.Nodes[1].ID, c.Nodes[2].ID})
}

func TestDecodePrimitiveBlock_Corrupt(t *testing.T) {
	dense := func(d pb.DenseNodes) []pb.PrimitiveGroup {
		return []pb.PrimitiveGroup{{Dense: &d}}
	}

	tests := []struct {
		name   string
		groups []pb.PrimitiveGroup
	}{
		{"dense dangling key", dense(pb.DenseNodes{ID: []int64{1}, Lat: []int64{0}, Lon: []int64{0}, KeysVals: []int32{1}})},
		{"dense key out of range", dense(pb.DenseNodes{ID: []int64{1}, Lat: []int64{0}, Lon: []int64{0}, KeysVals: []int32{9, 1, 0}})},
		{"dense negative key", dense(pb.DenseNodes{ID: []int64{1}, Lat: []int64{0}, Lon: []int64{0}, KeysVals: []int32{-1, 1, 0}})},
		{"dense column mismatch", dense(pb.DenseNodes{ID: []int64{1, 2}, Lat: []int64{0}, Lon: []int64{0, 0}})},
		{"dense info mismatch", dense(pb.DenseNodes{ID: []int64{1}, Lat: []int64{0}, Lon: []int64{0},
			Info: &pb.DenseInfo{Version: []int32{1, 2}}})},
		{"dense user out of range", dense(pb.DenseNodes{ID: []int64{1}, Lat: []int64{0}, Lon: []int64{0},
			Info: &pb.DenseInfo{UserSID: []int32{5}}})},
		{"tag keys and vals mismatch", []pb.PrimitiveGroup{{Ways: []pb.Way{{ID: 1, Keys: []uint32{1}}}}}},
		{"way tag out of range", []pb.PrimitiveGroup{{Ways: []pb.Way{{ID: 1, Keys: []uint32{1}, Vals: []uint32{7}}}}}},
		{"info user out of range", []pb.PrimitiveGroup{{Nodes: []pb.Node{{ID: 1, Info: &pb.Info{UserSID: 3}}}}}},
		{"member type", []pb.PrimitiveGroup{{Relations: []pb.Relation{
			{ID: 1, MemIDs: []int64{1}, Types: []int32{3}, RolesSID: []int32{0}}}}}},
		{"member columns", []pb.PrimitiveGroup{{Relations: []pb.Relation{
			{ID: 1, MemIDs: []int64{1, 2}, Types: []int32{0}, RolesSID: []int32{0, 0}}}}}},
		{"member role out of range", []pb.PrimitiveGroup{{Relations: []pb.Relation{
			{ID: 1, MemIDs: []int64{1}, Types: []int32{0}, RolesSID: []int32{2}}}}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := decode(t, &pb.PrimitiveBlock{StringTable: []string{"", "k"}, Groups: tc.groups})
			assert.ErrorIs(t, err, ErrCorruptBlock)
		})
	}
}

func TestDecodePrimitiveBlock_Garbage(t *testing.T) {
	err := DecodePrimitiveBlock([]byte{0x12, 0x7f}, model.DefaultFactory{}, model.Discard, nil)
	assert.ErrorIs(t, err, ErrCorruptBlock)
}

type failingFactory struct {
	model.DefaultFactory
	err error
}

func (f failingFactory) NewWay(model.ID) (*model.Way, error) {
	return nil, f.err
}

func TestDecodePrimitiveBlock_EmitErrors(t *testing.T) {
	boom := errors.New("boom")
	blk := fixture.Block{}.Encode([]model.Entity{
		&model.Node{ID: 1},
		&model.Way{ID: 2},
	})
	data := fixture.MarshalPrimitiveBlock(blk)

	t.Run("factory", func(t *testing.T) {
		c := &model.Collector{}
		counters := &Counters{}

		err := DecodePrimitiveBlock(data, failingFactory{err: boom}, c, counters)

		var emit *EmitError
		require.ErrorAs(t, err, &emit)
		assert.Same(t, boom, emit.Err)
		assert.Equal(t, 1, c.Len())
		assert.Equal(t, int64(1), counters.Nodes.Load())
	})

	t.Run("nil entity", func(t *testing.T) {
		err := DecodePrimitiveBlock(data, failingFactory{}, model.Discard, nil)

		var emit *EmitError
		require.ErrorAs(t, err, &emit)
		assert.ErrorIs(t, err, model.ErrNilEntity)
		assert.Contains(t, err.Error(), "WAY")
	})

	t.Run("sink", func(t *testing.T) {
		seen := 0
		sink := model.SinkFunc(func(model.Entity) error {
			seen++
			return boom
		})

		err := DecodePrimitiveBlock(data, model.DefaultFactory{}, sink, nil)

		var emit *EmitError
		require.ErrorAs(t, err, &emit)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, seen)
	})
}

func TestDecodeDataBlock(t *testing.T) {
	entities := []model.Entity{&model.Node{ID: 1, Info: &model.Info{Version: 1, User: "u", Visible: true}}}

	for _, c := range fixture.Compressions {
		t.Run(c.String(), func(t *testing.T) {
			stream, err := fixture.Build(c, fixture.DefaultHeader(), entities)
			require.NoError(t, err)

			br := NewBlockReader(bytes.NewReader(stream))

			_, err = br.Next()
			require.NoError(t, err)

			blk, err := br.Next()
			require.NoError(t, err)
			defer blk.Close()

			buf := core.NewPooledBuffer()
			defer buf.Close()

			col := &model.Collector{}
			require.NoError(t, DecodeDataBlock(buf, blk, model.DefaultFactory{}, col, &Counters{}))
			require.Len(t, col.Nodes, 1)
			assert.Equal(t, "u", col.Nodes[0].Info.User)
		})
	}
}
