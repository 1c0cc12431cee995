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

// Package blocks implements the blocks command, which lists the framed
// blocks of a file without decoding them.
package blocks

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/zeebo/blake3"

	"m4o.io/osmpbf/cmd/pbf/cli"
	"m4o.io/osmpbf/internal/decoder"
)

var out io.Writer = os.Stdout

func init() {
	cli.RootCmd.AddCommand(blocksCmd)

	flags := blocksCmd.Flags()
	flags.BoolP("json", "j", false, "list blocks in JSON, one object per line")
	flags.BoolP("digest", "d", false, "include the BLAKE3 digest of each encoded blob (reads every blob)")
}

var blocksCmd = &cobra.Command{
	Use:   "blocks [<OSM file>]",
	Short: "List the blocks of an OSM file",
	Long:  "List the blocks of an OSM file: position, type and sizes, without decoding their contents.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()

		jsonfmt, err := flags.GetBool("json")
		if err != nil {
			return err
		}

		digest, err := flags.GetBool("digest")
		if err != nil {
			return err
		}

		f, err := cli.OpenInput(args)
		if err != nil {
			return err
		}
		defer f.Close()

		render := renderTxt
		if jsonfmt {
			render = renderJSON(json.NewEncoder(out))
		}

		n, err := listBlocks(f, digest, render)
		if err != nil {
			return err
		}

		if !jsonfmt {
			fmt.Fprintf(out, "%s blocks\n", humanize.Comma(int64(n)))
		}

		return nil
	},
}

// block is a listed block.
type block struct {
	decoder.BlockInfo

	Digest string `json:"digest,omitempty"`
}

// listBlocks calls render for every block of r and returns the number of
// blocks.
func listBlocks(r io.Reader, digest bool, render func(block) error) (int, error) {
	n := 0

	err := decoder.ScanBlocks(r, digest, func(info decoder.BlockInfo) error {
		b := block{BlockInfo: info}

		if digest {
			sum := blake3.Sum256(info.Data)
			b.Digest = hex.EncodeToString(sum[:])
		}

		n++

		return render(b)
	})

	return n, err
}

func renderTxt(b block) error {
	_, err := fmt.Fprintf(out, "%6d %12d %-9s %8s %10s",
		b.Index, b.Offset, b.Type,
		humanize.IBytes(uint64(b.HeaderSize)), humanize.IBytes(uint64(b.DataSize)))
	if err != nil {
		return err
	}

	if b.Digest != "" {
		if _, err := fmt.Fprintf(out, " %s", b.Digest); err != nil {
			return err
		}
	}

	_, err = fmt.Fprintln(out)

	return err
}

func renderJSON(enc *json.Encoder) func(block) error {
	return func(b block) error {
		return enc.Encode(b)
	}
}
