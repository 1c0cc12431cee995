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

// Package osmpbf decodes OpenStreetMap PBF streams into nodes, ways and
// relations delivered to a model.Sink.
package osmpbf

//go:generate stringer -type=State

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"m4o.io/osmpbf/internal/core"
	"m4o.io/osmpbf/internal/decoder"
	"m4o.io/osmpbf/model"
)

// AllBlocks is the Run limit that decodes every remaining block.
const AllBlocks = -1

// State is the position of a Decoder in its life cycle.
type State int32

const (
	// StateInit is the state of a decoder that has not read its header.
	StateInit State = iota

	// StateValidated is the state of a decoder whose header was accepted.
	StateValidated

	// StateStreaming is the state of a decoder inside Run.
	StateStreaming

	// StateDone is the state of a decoder that reached its block limit or
	// the end of the stream.
	StateDone

	// StateFailed is the state of a decoder that encountered an error. It is
	// never left.
	StateFailed
)

// Counts is the number of entities of each kind handed to the sink.
type Counts struct {
	Nodes     int64 `json:"nodes"`
	Ways      int64 `json:"ways"`
	Relations int64 `json:"relations"`
}

// Total is the number of entities of all kinds.
func (c Counts) Total() int64 {
	return c.Nodes + c.Ways + c.Relations
}

// Add returns the sum of both counts.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Nodes:     c.Nodes + o.Nodes,
		Ways:      c.Ways + o.Ways,
		Relations: c.Relations + o.Relations,
	}
}

// Decoder reads and decodes OpenStreetMap PBF data from an input stream,
// one block at a time. The decoder owns the stream's read position for its
// lifetime.
type Decoder struct {
	r       io.Reader
	br      *decoder.BlockReader
	factory model.Factory
	sink    model.Sink
	opts    decoderOptions
	log     *slog.Logger

	header model.Header

	seeker    io.Seeker // nil when the stream cannot seek
	origin    int64     // position of the stream when the decoder was created
	dataStart int64     // offset of the first data block, relative to origin
	total     int       // number of data blocks, -1 until counted

	state    atomic.Int32
	err      error
	counters decoder.Counters
	decoded  atomic.Int64
}

// NewDecoder reads and validates the header of the stream r. Decoded
// entities are built by factory and handed to sink.
func NewDecoder(r io.Reader, factory model.Factory, sink model.Sink, opts ...DecoderOption) (*Decoder, error) {
	d := &Decoder{
		r:       r,
		br:      decoder.NewBlockReader(r),
		factory: factory,
		sink:    sink,
		opts:    newDecoderOptions(opts),
		total:   -1,
	}

	d.log = d.opts.logger

	if s, ok := r.(io.Seeker); ok {
		pos, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, d.fail(-1, 0, fmt.Errorf("%w: unable to locate stream position: %w", ErrIO, err))
		}

		d.seeker = s
		d.origin = pos
	}

	if d.opts.countBlocks {
		if err := d.countAll(); err != nil {
			return nil, d.fail(-1, 0, err)
		}
	}

	if err := d.readHeader(); err != nil {
		return nil, err
	}

	d.state.Store(int32(StateValidated))

	return d, nil
}

// countAll counts every block, header included, before anything is read.
func (d *Decoder) countAll() error {
	rs, ok := d.r.(io.ReadSeeker)
	if !ok {
		return ErrNotSeekable
	}

	n, err := decoder.CountBlocks(rs)
	if err != nil {
		return err
	}

	d.total = max(n-1, 0)

	d.log.Debug("counted blocks", "blocks", n)

	return nil
}

func (d *Decoder) readHeader() error {
	blk, err := d.br.Next()
	if errors.Is(err, io.EOF) {
		return d.fail(-1, 0, fmt.Errorf("%w: stream has no header block", ErrFormat))
	} else if err != nil {
		return d.fail(-1, 0, err)
	}

	defer blk.Close()

	hdr, err := decoder.ParseHeader(blk)
	if err != nil {
		return d.fail(-1, blk.Offset, err)
	}

	d.header = hdr
	d.dataStart = d.br.Offset()

	d.log.Debug("validated header",
		"required_features", hdr.RequiredFeatures,
		"writing_program", hdr.WritingProgram)

	return nil
}

// Header returns the header of the stream.
func (d *Decoder) Header() model.Header {
	return d.header
}

// State returns the current state of the decoder. It is safe to call from
// any goroutine.
func (d *Decoder) State() State {
	return State(d.state.Load())
}

// Err returns the error that moved the decoder into StateFailed.
func (d *Decoder) Err() error {
	if d.State() != StateFailed {
		return nil
	}

	return d.err
}

// Counts returns the number of entities handed to the sink so far. It is
// safe to call from any goroutine.
func (d *Decoder) Counts() Counts {
	return Counts{
		Nodes:     d.counters.Nodes.Load(),
		Ways:      d.counters.Ways.Load(),
		Relations: d.counters.Relations.Load(),
	}
}

// BlocksDecoded returns the number of data blocks decoded so far. It is
// safe to call from any goroutine.
func (d *Decoder) BlocksDecoded() int {
	return int(d.decoded.Load())
}

// TotalBlockCount returns the number of data blocks in the stream, header
// excluded. The stream is scanned once, without decoding, and its position
// restored; the result is cached. The stream must implement io.Seeker and
// must not be read concurrently.
func (d *Decoder) TotalBlockCount() (int, error) {
	if d.total >= 0 {
		return d.total, nil
	}

	rs, ok := d.r.(io.ReadSeeker)
	if !ok {
		return 0, ErrNotSeekable
	}

	cur, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("%w: unable to locate stream position: %w", ErrIO, err)
	}

	if _, err = rs.Seek(d.origin+d.dataStart, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: unable to seek to the first data block: %w", ErrIO, err)
	}

	n, cerr := decoder.CountBlocks(rs)

	if _, err = rs.Seek(cur, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: unable to restore stream position: %w", ErrIO, err)
	}

	if cerr != nil {
		return 0, cerr
	}

	d.total = n

	return n, nil
}

// Run skips the first start data blocks and then decodes up to limit data
// blocks, or all of them when limit is negative, handing every entity to
// the sink. Run may be called once, on a validated decoder. Cancelling ctx
// stops the run between blocks.
//
// Errors from the factory or the sink, and the context's error, are
// returned unmodified; all other errors are wrapped in a *BlockError.
func (d *Decoder) Run(ctx context.Context, start, limit int) error {
	switch s := d.State(); s {
	case StateValidated:
	case StateFailed:
		return d.err
	default:
		return fmt.Errorf("%w: cannot run a decoder in state %s", ErrInvalidState, s)
	}

	d.state.Store(int32(StateStreaming))

	if start > 0 {
		if _, err := d.br.Skip(start); err != nil {
			return d.fail(d.br.Index()-1, d.br.Offset(), err)
		}
	}

	buf := core.NewPooledBuffer()
	defer buf.Close()

	if d.opts.protoBufferSize > 0 {
		buf.Grow(d.opts.protoBufferSize)
	}

	for limit < 0 || d.BlocksDecoded() < limit {
		if err := ctx.Err(); err != nil {
			return d.fail(d.br.Index()-1, d.br.Offset(), err)
		}

		offset := d.br.Offset()

		blk, err := d.br.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return d.fail(d.br.Index()-1, offset, err)
		}

		err = decoder.DecodeDataBlock(buf, blk, d.factory, d.sink, &d.counters)
		blk.Close()

		if err != nil {
			return d.fail(blk.Index-1, blk.Offset, err)
		}

		d.decoded.Add(1)

		d.log.Debug("decoded block", "block", blk.Index-1, "offset", blk.Offset)
	}

	d.state.Store(int32(StateDone))

	counts := d.Counts()
	d.log.Debug("decoding done",
		"blocks", d.BlocksDecoded(),
		"nodes", counts.Nodes,
		"ways", counts.Ways,
		"relations", counts.Relations)

	return nil
}

// fail records err and moves the decoder into StateFailed.
func (d *Decoder) fail(block int, offset int64, err error) error {
	var emit *decoder.EmitError

	switch {
	case errors.As(err, &emit):
		err = emit.Err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		err = &BlockError{Block: block, Offset: offset, Err: err}
	}

	d.err = err
	d.state.Store(int32(StateFailed))

	d.log.Error("unable to decode block", "block", block, "offset", offset, "error", err)

	return err
}
