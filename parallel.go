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

package osmpbf

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/destel/rill"

	"m4o.io/osmpbf/model"
)

// Range is a contiguous run of data blocks, Start being the zero-based index
// of the first.
type Range struct {
	Start int `json:"start"`
	Count int `json:"count"`
}

// End is the index one past the last block of the range.
func (r Range) End() int {
	return r.Start + r.Count
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End())
}

// Partition splits total blocks into at most n contiguous, disjoint ranges
// of near equal size that together cover every block. Empty ranges are
// omitted.
func Partition(total, n int) []Range {
	if total <= 0 {
		return nil
	}

	n = min(max(n, 1), total)

	size, rem := total/n, total%n
	ranges := make([]Range, 0, n)

	start := 0
	for i := 0; i < n; i++ {
		count := size
		if i < rem {
			count++
		}

		ranges = append(ranges, Range{Start: start, Count: count})
		start += count
	}

	return ranges
}

// Opener opens an independent stream over the same PBF data.
type Opener func() (io.ReadSeekCloser, error)

// DecodeRanges partitions the data blocks of a stream into one range per
// configured CPU and decodes the ranges concurrently, each over its own
// stream from open and its own Decoder. sinkFor supplies the sink of each
// range; sinks of different ranges are called concurrently. The counts of
// all ranges are summed.
//
// The first range to fail cancels the others, and its error is returned
// once every range has stopped.
func DecodeRanges(
	ctx context.Context,
	open Opener,
	factory model.Factory,
	sinkFor func(Range) model.Sink,
	opts ...DecoderOption,
) (Counts, error) {
	o := newDecoderOptions(opts)

	total, err := countDataBlocks(open, factory, opts)
	if err != nil {
		return Counts{}, err
	}

	ranges := Partition(total, int(o.nCPU))
	if len(ranges) == 0 {
		return Counts{}, nil
	}

	o.logger.Debug("decoding ranges", "blocks", total, "ranges", len(ranges))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu    sync.Mutex
		first error
	)

	results := rill.Map(rill.FromSlice(ranges, nil), len(ranges), func(r Range) (Counts, error) {
		c, err := decodeRange(ctx, open, factory, sinkFor(r), r, opts)
		if err != nil {
			mu.Lock()
			if first == nil {
				first = err
				cancel()
			}
			mu.Unlock()
		}

		return c, nil
	})

	// results is closed only once every range has returned, so no sink is
	// called after DecodeRanges returns.
	var counts Counts
	for res := range results {
		counts = counts.Add(res.Value)
	}

	mu.Lock()
	defer mu.Unlock()

	return counts, first
}

func countDataBlocks(open Opener, factory model.Factory, opts []DecoderOption) (int, error) {
	f, err := open()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()

	d, err := NewDecoder(f, factory, model.Discard, opts...)
	if err != nil {
		return 0, err
	}

	return d.TotalBlockCount()
}

func decodeRange(
	ctx context.Context,
	open Opener,
	factory model.Factory,
	sink model.Sink,
	r Range,
	opts []DecoderOption,
) (Counts, error) {
	f, err := open()
	if err != nil {
		return Counts{}, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()

	d, err := NewDecoder(f, factory, sink, opts...)
	if err != nil {
		return Counts{}, err
	}

	err = d.Run(ctx, r.Start, r.Count)

	return d.Counts(), err
}
