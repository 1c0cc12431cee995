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

// Package printer implements the print command, which writes the entities of
// a range of blocks to stdout.
package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"m4o.io/osmpbf"
	"m4o.io/osmpbf/cmd/pbf/cli"
	"m4o.io/osmpbf/model"
)

var (
	out    io.Writer = os.Stdout
	status io.Writer = os.Stderr
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

func init() {
	cli.RootCmd.AddCommand(printCmd)

	flags := printCmd.Flags()
	flags.IntP("from", "f", 0, "decode from this data block onwards")
	flags.IntP("count", "c", osmpbf.AllBlocks, "decode this many data blocks, all when negative")
	flags.StringP("format", "F", "", "output format: text, json or cbor (default from config)")
	flags.BoolP("quiet", "q", false, "don't print entity counts to stderr")
	flags.Bool("dms", false, "print text coordinates in degrees, minutes and seconds")
}

var printCmd = &cobra.Command{
	Use:   "print [<OSM file>]",
	Short: "Print the entities of an OSM file",
	Long:  "Print the entities of a range of data blocks of an OSM file, one entity per record.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()

		from, err := flags.GetInt("from")
		if err != nil {
			return err
		}

		count, err := flags.GetInt("count")
		if err != nil {
			return err
		}

		format, err := flags.GetString("format")
		if err != nil {
			return err
		}

		quiet, err := flags.GetBool("quiet")
		if err != nil {
			return err
		}

		dms, err := flags.GetBool("dms")
		if err != nil {
			return err
		}

		cfg := cli.Current()
		if format == "" {
			format = cfg.Print.Format
		}

		sink, err := newPrintSink(out, format, dms)
		if err != nil {
			return err
		}

		f, err := cli.OpenInput(args)
		if err != nil {
			return err
		}
		defer f.Close()

		d, err := osmpbf.NewDecoder(f, model.DefaultFactory{}, sink, cfg.DecoderOptions()...)
		if err != nil {
			return err
		}

		if err := d.Run(cmd.Context(), from, count); err != nil {
			return err
		}

		if !quiet {
			printCounts(status, d.Counts())
		}

		return nil
	},
}

func printCounts(w io.Writer, c osmpbf.Counts) {
	fmt.Fprintf(w, "%d nodes\n", c.Nodes)
	fmt.Fprintf(w, "%d ways\n", c.Ways)
	fmt.Fprintf(w, "%d relations\n", c.Relations)
}

// record is the envelope of an entity in the json and cbor formats.
type record struct {
	Type   string       `json:"type" cbor:"type"`
	Entity model.Entity `json:"entity" cbor:"entity"`
}

// printSink writes every entity it accepts as a single record.
type printSink struct {
	write func(e model.Entity) error
}

var _ model.Sink = (*printSink)(nil)

// newPrintSink writes records in format to w. dms only applies to the text
// format.
func newPrintSink(w io.Writer, format string, dms bool) (*printSink, error) {
	switch format {
	case FormatText:
		return &printSink{write: func(e model.Entity) error {
			_, err := fmt.Fprintln(w, formatText(e, dms))

			return err
		}}, nil
	case FormatJSON:
		enc := json.NewEncoder(w)

		return &printSink{write: func(e model.Entity) error {
			return enc.Encode(record{Type: typeName(e), Entity: e})
		}}, nil
	case FormatCBOR:
		em, err := cbor.EncOptions{Sort: cbor.SortCanonical, Time: cbor.TimeRFC3339}.EncMode()
		if err != nil {
			return nil, err
		}

		enc := em.NewEncoder(w)

		return &printSink{write: func(e model.Entity) error {
			return enc.Encode(record{Type: typeName(e), Entity: e})
		}}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func (s *printSink) AcceptNode(n *model.Node) error {
	return s.write(n)
}

func (s *printSink) AcceptWay(w *model.Way) error {
	return s.write(w)
}

func (s *printSink) AcceptRelation(r *model.Relation) error {
	return s.write(r)
}

func typeName(e model.Entity) string {
	return strings.ToLower(e.Type().String())
}

// formatText renders an entity on a single line, tags sorted by key.
// Coordinates are decimal unless dms is set.
func formatText(e model.Entity, dms bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %d", typeName(e), e.GetID())

	switch v := e.(type) {
	case *model.Node:
		if dms {
			fmt.Fprintf(&sb, " lat=%q lon=%q", v.Lat.String(), v.Lon.String())
		} else {
			fmt.Fprintf(&sb, " lat=%.7f lon=%.7f", float64(v.Lat), float64(v.Lon))
		}
	case *model.Way:
		fmt.Fprintf(&sb, " nodes=%v", v.NodeIDs)
	case *model.Relation:
		sb.WriteString(" members=[")
		for i, m := range v.Members {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%s:%d:%s", strings.ToLower(m.Type.String()), m.ID, m.Role)
		}
		sb.WriteByte(']')
	}

	if info := e.GetInfo(); info != nil {
		fmt.Fprintf(&sb, " v=%d cs=%d uid=%d user=%q ts=%s",
			info.Version, info.Changeset, info.UID, info.User, info.Timestamp.Format(time.RFC3339))

		if !info.Visible {
			sb.WriteString(" deleted")
		}
	}

	tags := e.GetTags()
	for _, k := range slices.Sorted(maps.Keys(tags)) {
		fmt.Fprintf(&sb, " %s=%q", k, tags[k])
	}

	return sb.String()
}
