// Copyright 2017-25 the original author or authors.
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

package osmpbf_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"m4o.io/osmpbf"
	"m4o.io/osmpbf/internal/fixture"
	"m4o.io/osmpbf/internal/pb"
	"m4o.io/osmpbf/model"
)

var quiet = osmpbf.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

// nodeBatches returns n batches of two nodes each, with consecutive IDs
// starting at 1.
func nodeBatches(n int) [][]model.Entity {
	batches := make([][]model.Entity, n)
	for i := range batches {
		batches[i] = []model.Entity{
			&model.Node{ID: model.ID(2*i + 1), Lat: 51.5, Lon: -0.1},
			&model.Node{ID: model.ID(2*i + 2), Lat: 51.6, Lon: -0.2, Tags: map[string]string{"k": "v"}},
		}
	}

	return batches
}

func build(t testing.TB, batches ...[]model.Entity) []byte {
	t.Helper()

	b, err := fixture.Build(fixture.Zlib, fixture.DefaultHeader(), batches...)
	require.NoError(t, err)

	return b
}

func ids(entities []model.Entity) []model.ID {
	out := make([]model.ID, len(entities))
	for i, e := range entities {
		out[i] = e.GetID()
	}

	return out
}

func TestNewDecoderHeader(t *testing.T) {
	d, err := osmpbf.NewDecoder(bytes.NewReader(build(t)), model.DefaultFactory{}, model.Discard, quiet)
	require.NoError(t, err)

	assert.Equal(t, osmpbf.StateValidated, d.State())

	hdr := d.Header()
	assert.Equal(t, fixture.SupportedFeatures, hdr.RequiredFeatures)
	assert.Equal(t, []string{"Sort.Type_then_ID"}, hdr.OptionalFeatures)
	assert.Equal(t, "osmpbf-fixture", hdr.WritingProgram)
	require.NotNil(t, hdr.BoundingBox)
	assert.True(t, hdr.BoundingBox.EqualWithin(fixture.DefaultHeader().BoundingBox, model.E6))
}

func TestNewDecoderUnsupportedFeature(t *testing.T) {
	hdr := fixture.DefaultHeader()
	hdr.RequiredFeatures = append([]string{"HistoricalInformation"}, hdr.RequiredFeatures...)

	b, err := fixture.Build(fixture.Zlib, hdr, nodeBatches(2)...)
	require.NoError(t, err)

	var c model.Collector

	d, err := osmpbf.NewDecoder(bytes.NewReader(b), model.DefaultFactory{}, &c, quiet)
	assert.Nil(t, d)
	require.ErrorIs(t, err, osmpbf.ErrUnsupportedFeature)

	var be *osmpbf.BlockError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, -1, be.Block)
	assert.Zero(t, c.Len())
}

func TestNewDecoderEmptyStream(t *testing.T) {
	_, err := osmpbf.NewDecoder(bytes.NewReader(nil), model.DefaultFactory{}, model.Discard, quiet)
	assert.ErrorIs(t, err, osmpbf.ErrFormat)
}

func TestNewDecoderDataBlockFirst(t *testing.T) {
	var buf bytes.Buffer

	w := fixture.NewWriter(&buf, fixture.Raw)
	require.NoError(t, w.WriteEntities(&model.Node{ID: 1}))

	_, err := osmpbf.NewDecoder(bytes.NewReader(buf.Bytes()), model.DefaultFactory{}, model.Discard, quiet)
	assert.ErrorIs(t, err, osmpbf.ErrFormat)
}

func TestRunAll(t *testing.T) {
	batches := append(nodeBatches(3),
		[]model.Entity{
			&model.Way{ID: 10, NodeIDs: []model.ID{1, 2, 3}},
			&model.Relation{ID: 20, Members: []model.Member{{ID: 10, Type: model.WAY, Role: "outer"}}},
		})

	var c model.Collector

	d, err := osmpbf.NewDecoder(bytes.NewReader(build(t, batches...)), model.DefaultFactory{}, &c, quiet)
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background(), 0, osmpbf.AllBlocks))

	assert.Equal(t, osmpbf.StateDone, d.State())
	assert.NoError(t, d.Err())
	assert.Equal(t, 4, d.BlocksDecoded())
	assert.Equal(t, osmpbf.Counts{Nodes: 6, Ways: 1, Relations: 1}, d.Counts())
	assert.Equal(t, int64(8), d.Counts().Total())

	assert.Equal(t, []model.ID{1, 2, 3, 4, 5, 6, 10, 20}, ids(c.Entities))
	assert.Equal(t, []model.ID{1, 2, 3}, c.Ways[0].NodeIDs)
	assert.Equal(t, []model.Member{{ID: 10, Type: model.WAY, Role: "outer"}}, c.Relations[0].Members)
	assert.Equal(t, map[string]string{"k": "v"}, c.Nodes[1].Tags)
	assert.NotNil(t, c.Nodes[0].Tags)
	assert.NotNil(t, c.Nodes[0].Info)
}

func TestRunSkipEquivalence(t *testing.T) {
	b := build(t, nodeBatches(5)...)

	var all model.Collector

	d, err := osmpbf.NewDecoder(bytes.NewReader(b), model.DefaultFactory{}, &all, quiet)
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background(), 0, osmpbf.AllBlocks))

	tests := []struct {
		start, limit int
	}{
		{0, 0},
		{0, 1},
		{1, 2},
		{2, osmpbf.AllBlocks},
		{4, 10},
		{5, osmpbf.AllBlocks},
	}

	for _, tt := range tests {
		var c model.Collector

		d, err := osmpbf.NewDecoder(bytes.NewReader(b), model.DefaultFactory{}, &c, quiet)
		require.NoError(t, err)
		require.NoError(t, d.Run(context.Background(), tt.start, tt.limit))

		end := 5
		if tt.limit >= 0 {
			end = min(tt.start+tt.limit, 5)
		}

		assert.Equal(t, ids(all.Entities[2*tt.start:2*end]), ids(c.Entities), "start %d limit %d", tt.start, tt.limit)
		assert.Equal(t, end-tt.start, d.BlocksDecoded())
	}
}

func TestRunSkipPastEnd(t *testing.T) {
	var c model.Collector

	d, err := osmpbf.NewDecoder(bytes.NewReader(build(t, nodeBatches(2)...)), model.DefaultFactory{}, &c, quiet)
	require.NoError(t, err)

	err = d.Run(context.Background(), 3, osmpbf.AllBlocks)
	assert.ErrorIs(t, err, osmpbf.ErrSkipPastEnd)
	assert.Equal(t, osmpbf.StateFailed, d.State())
	assert.Zero(t, c.Len())
}

func TestTruncatedLastBlock(t *testing.T) {
	b := build(t, nodeBatches(2)...)
	b = b[:len(b)-10]

	d, err := osmpbf.NewDecoder(bytes.NewReader(b), model.DefaultFactory{}, model.Discard, quiet)
	require.NoError(t, err)

	_, err = d.TotalBlockCount()
	assert.ErrorIs(t, err, osmpbf.ErrFormat)

	err = d.Run(context.Background(), 2, osmpbf.AllBlocks)
	assert.ErrorIs(t, err, osmpbf.ErrFormat)
	assert.Equal(t, osmpbf.StateFailed, d.State())
}

func TestRunCorruptBlockHalts(t *testing.T) {
	var buf bytes.Buffer

	w := fixture.NewWriter(&buf, fixture.Zlib)
	require.NoError(t, w.WriteHeader(fixture.DefaultHeader()))
	require.NoError(t, w.WriteEntities(&model.Node{ID: 1}, &model.Node{ID: 2}))
	require.NoError(t, w.WritePrimitiveBlock(&pb.PrimitiveBlock{
		StringTable: []string{""},
		Groups: []pb.PrimitiveGroup{
			{Nodes: []pb.Node{{ID: 3, Keys: []uint32{7}, Vals: []uint32{8}}}},
		},
	}))
	require.NoError(t, w.WriteEntities(&model.Node{ID: 4}))

	var c model.Collector

	d, err := osmpbf.NewDecoder(bytes.NewReader(buf.Bytes()), model.DefaultFactory{}, &c, quiet)
	require.NoError(t, err)

	err = d.Run(context.Background(), 0, osmpbf.AllBlocks)
	require.ErrorIs(t, err, osmpbf.ErrCorruptBlock)

	var be *osmpbf.BlockError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 1, be.Block)

	assert.Equal(t, []model.ID{1, 2}, ids(c.Entities))
	assert.Equal(t, osmpbf.StateFailed, d.State())
	assert.Equal(t, err, d.Err())
	assert.Equal(t, 1, d.BlocksDecoded())

	assert.Equal(t, err, d.Run(context.Background(), 0, osmpbf.AllBlocks))
}

func TestRunWrongBlockType(t *testing.T) {
	var buf bytes.Buffer

	w := fixture.NewWriter(&buf, fixture.Raw)
	require.NoError(t, w.WriteHeader(fixture.DefaultHeader()))
	require.NoError(t, w.WriteHeader(fixture.DefaultHeader()))

	d, err := osmpbf.NewDecoder(bytes.NewReader(buf.Bytes()), model.DefaultFactory{}, model.Discard, quiet)
	require.NoError(t, err)

	assert.ErrorIs(t, d.Run(context.Background(), 0, osmpbf.AllBlocks), osmpbf.ErrFormat)
}

func TestRunTwice(t *testing.T) {
	d, err := osmpbf.NewDecoder(bytes.NewReader(build(t, nodeBatches(1)...)), model.DefaultFactory{}, model.Discard, quiet)
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background(), 0, osmpbf.AllBlocks))

	assert.ErrorIs(t, d.Run(context.Background(), 0, osmpbf.AllBlocks), osmpbf.ErrInvalidState)
}

func TestRunSinkError(t *testing.T) {
	errBoom := errors.New("boom")

	seen := 0
	sink := model.SinkFunc(func(model.Entity) error {
		seen++
		if seen == 3 {
			return errBoom
		}

		return nil
	})

	d, err := osmpbf.NewDecoder(bytes.NewReader(build(t, nodeBatches(3)...)), model.DefaultFactory{}, sink, quiet)
	require.NoError(t, err)

	err = d.Run(context.Background(), 0, osmpbf.AllBlocks)
	assert.Equal(t, errBoom, err)
	assert.Equal(t, 3, seen)
	assert.Equal(t, osmpbf.StateFailed, d.State())
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var c model.Collector

	sink := model.SinkFunc(func(e model.Entity) error {
		cancel()

		return c.AcceptNode(e.(*model.Node))
	})

	d, err := osmpbf.NewDecoder(bytes.NewReader(build(t, nodeBatches(3)...)), model.DefaultFactory{}, sink, quiet)
	require.NoError(t, err)

	err = d.Run(ctx, 0, osmpbf.AllBlocks)
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, []model.ID{1, 2}, ids(c.Entities))
	assert.Equal(t, osmpbf.StateFailed, d.State())
}

func TestTotalBlockCount(t *testing.T) {
	prefix := []byte("junk")
	r := bytes.NewReader(append(prefix, build(t, nodeBatches(4)...)...))

	_, err := r.Seek(int64(len(prefix)), io.SeekStart)
	require.NoError(t, err)

	d, err := osmpbf.NewDecoder(r, model.DefaultFactory{}, model.Discard, quiet)
	require.NoError(t, err)

	require.NoError(t, d.Run(context.Background(), 1, 1))

	n, err := d.TotalBlockCount()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// the stream position survives the count
	pos, err := r.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Less(t, pos, r.Size())
}

func TestTotalBlockCountMatchesRun(t *testing.T) {
	d, err := osmpbf.NewDecoder(bytes.NewReader(build(t, nodeBatches(6)...)), model.DefaultFactory{}, model.Discard,
		quiet, osmpbf.WithBlockCounting())
	require.NoError(t, err)

	n, err := d.TotalBlockCount()
	require.NoError(t, err)

	require.NoError(t, d.Run(context.Background(), 0, osmpbf.AllBlocks))
	assert.Equal(t, n, d.BlocksDecoded())
}

func TestNotSeekable(t *testing.T) {
	b := build(t, nodeBatches(1)...)

	_, err := osmpbf.NewDecoder(struct{ io.Reader }{bytes.NewReader(b)}, model.DefaultFactory{}, model.Discard,
		quiet, osmpbf.WithBlockCounting())
	assert.ErrorIs(t, err, osmpbf.ErrNotSeekable)

	d, err := osmpbf.NewDecoder(struct{ io.Reader }{bytes.NewReader(b)}, model.DefaultFactory{}, model.Discard, quiet)
	require.NoError(t, err)

	_, err = d.TotalBlockCount()
	assert.ErrorIs(t, err, osmpbf.ErrNotSeekable)

	require.NoError(t, d.Run(context.Background(), 0, osmpbf.AllBlocks))
	assert.Equal(t, int64(2), d.Counts().Nodes)
}

func TestBlockErrorMessage(t *testing.T) {
	assert.Equal(t, "header block at offset 0: boom",
		(&osmpbf.BlockError{Block: -1, Err: errors.New("boom")}).Error())
	assert.Equal(t, "data block 2 at offset 100: boom",
		(&osmpbf.BlockError{Block: 2, Offset: 100, Err: errors.New("boom")}).Error())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "StateStreaming", osmpbf.StateStreaming.String())
	assert.Equal(t, "State(9)", osmpbf.State(9).String())
}
