// Copyright 2017 the original author or authors.
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

package info

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"m4o.io/osmpbf"
	"m4o.io/osmpbf/cmd/pbf/cli"
	"m4o.io/osmpbf/model"
)

var out io.Writer = os.Stdout

type extendedHeader struct {
	model.Header

	NodeCount     int64
	WayCount      int64
	RelationCount int64

	// DataBoundingBox encloses every decoded node.
	DataBoundingBox *model.BoundingBox `json:",omitempty"`
}

func (h *extendedHeader) setCounts(c osmpbf.Counts) {
	h.NodeCount = c.Nodes
	h.WayCount = c.Ways
	h.RelationCount = c.Relations
}

func init() {
	cli.RootCmd.AddCommand(infoCmd)

	flags := infoCmd.Flags()
	flags.BoolP("json", "j", false, "format information in JSON")
	flags.Uint16P("cpu", "c", 0, "number of CPUs to use for scanning (default from config)")
	flags.BoolP("extended", "e", false, "provide extended information (scans entire file)")
	flags.BoolP("progress", "p", true, "show progress while scanning")
}

var infoCmd = &cobra.Command{
	Use:   "info [<OSM file>]",
	Short: "Print information about an OSM file",
	Long:  "Print information about an OSM file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()

		ncpu, err := flags.GetUint16("cpu")
		if err != nil {
			return err
		}

		extended, err := flags.GetBool("extended")
		if err != nil {
			return err
		}

		jsonfmt, err := flags.GetBool("json")
		if err != nil {
			return err
		}

		progress, err := flags.GetBool("progress")
		if err != nil {
			return err
		}

		cfg := cli.Current()
		opts := cfg.DecoderOptions()

		if ncpu == 0 {
			ncpu = cfg.Decoder.NCpu
		} else {
			opts = append(opts, osmpbf.WithNCpus(ncpu))
		}

		f, err := cli.OpenInput(args)
		if err != nil {
			return err
		}

		var info *extendedHeader

		if extended && ncpu > 1 && isRegular(f) {
			name := f.Name()
			f.Close()

			info, err = runInfoParallel(cmd.Context(), name, opts)
		} else {
			var in io.ReadCloser

			in, err = cli.WrapInputFile(f, extended && progress && !jsonfmt)
			if err != nil {
				f.Close()

				return err
			}

			info, err = runInfo(cmd.Context(), in, opts, extended)

			if cerr := in.Close(); err == nil {
				err = cerr
			}
		}

		if err != nil {
			return err
		}

		if jsonfmt {
			return renderJSON(info, extended)
		}

		renderTxt(info, extended)

		return nil
	},
}

func isRegular(f *os.File) bool {
	if f == os.Stdin {
		return false
	}

	fi, err := f.Stat()

	return err == nil && fi.Mode().IsRegular()
}

// statsSink tracks the extent of the nodes it is given.
type statsSink struct {
	bbox *model.BoundingBox
}

func newStatsSink() *statsSink {
	return &statsSink{bbox: model.InitialBoundingBox()}
}

func (s *statsSink) AcceptNode(n *model.Node) error {
	s.bbox.ExpandWithLatLng(n.Lat, n.Lon)

	return nil
}

func (s *statsSink) AcceptWay(*model.Way) error { return nil }

func (s *statsSink) AcceptRelation(*model.Relation) error { return nil }

func runInfo(ctx context.Context, in io.Reader, opts []osmpbf.DecoderOption, extended bool) (*extendedHeader, error) {
	stats := newStatsSink()

	d, err := osmpbf.NewDecoder(in, model.DefaultFactory{}, stats, opts...)
	if err != nil {
		return nil, err
	}

	info := &extendedHeader{Header: d.Header()}

	if extended {
		if err := d.Run(ctx, 0, osmpbf.AllBlocks); err != nil {
			return nil, err
		}

		info.setCounts(d.Counts())

		if !stats.bbox.IsEmpty() {
			info.DataBoundingBox = stats.bbox
		}
	}

	return info, nil
}

// runInfoParallel scans the file at path with one decoder per range of
// blocks.
func runInfoParallel(ctx context.Context, path string, opts []osmpbf.DecoderOption) (*extendedHeader, error) {
	open := func() (io.ReadSeekCloser, error) {
		return os.Open(path)
	}

	f, err := open()
	if err != nil {
		return nil, err
	}

	d, err := osmpbf.NewDecoder(f, model.DefaultFactory{}, model.Discard, opts...)
	f.Close()

	if err != nil {
		return nil, err
	}

	info := &extendedHeader{Header: d.Header()}

	var (
		mu    sync.Mutex
		sinks []*statsSink
	)

	counts, err := osmpbf.DecodeRanges(ctx, open, model.DefaultFactory{}, func(osmpbf.Range) model.Sink {
		s := newStatsSink()

		mu.Lock()
		sinks = append(sinks, s)
		mu.Unlock()

		return s
	}, opts...)
	if err != nil {
		return nil, err
	}

	info.setCounts(counts)

	bbox := model.InitialBoundingBox()
	for _, s := range sinks {
		bbox.ExpandWithBoundingBox(s.bbox)
	}

	if !bbox.IsEmpty() {
		info.DataBoundingBox = bbox
	}

	return info, nil
}

func renderJSON(info *extendedHeader, extended bool) error {
	// marshall the smallest struct needed
	var v any
	if extended {
		v = info
	} else {
		v = info.Header
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(out, string(b))

	return err
}

func renderTxt(info *extendedHeader, extended bool) {
	fmt.Fprintf(out, "BoundingBox: %s\n", info.BoundingBox)
	fmt.Fprintf(out, "RequiredFeatures: %s\n", strings.Join(info.RequiredFeatures, ", "))
	fmt.Fprintf(out, "OptionalFeatures: %v\n", strings.Join(info.OptionalFeatures, ", "))
	fmt.Fprintf(out, "WritingProgram: %s\n", info.WritingProgram)
	fmt.Fprintf(out, "Source: %s\n", info.Source)
	fmt.Fprintf(out, "OsmosisReplicationTimestamp: %s\n", info.OsmosisReplicationTimestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "OsmosisReplicationSequenceNumber: %d\n", info.OsmosisReplicationSequenceNumber)
	fmt.Fprintf(out, "OsmosisReplicationBaseURL: %s\n", info.OsmosisReplicationBaseURL)
	if extended {
		fmt.Fprintf(out, "NodeCount: %s\n", humanize.Comma(info.NodeCount))
		fmt.Fprintf(out, "WayCount: %s\n", humanize.Comma(info.WayCount))
		fmt.Fprintf(out, "RelationCount: %s\n", humanize.Comma(info.RelationCount))

		if info.DataBoundingBox != nil {
			fmt.Fprintf(out, "DataBoundingBox: %s\n", info.DataBoundingBox)
		}
	}
}
