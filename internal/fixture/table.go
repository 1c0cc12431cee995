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
	"sort"
)

// Index 0 is used by DenseNodes to terminate tags; the empty string sorts
// first and lands there.
const notUsed = ""

// Strings collects the distinct strings of a block.
type Strings struct {
	set map[string]struct{}
}

// Table is the sorted string table of a block.
type Table struct {
	index   map[string]int32
	strings []string
}

func NewStrings() *Strings {
	return &Strings{set: make(map[string]struct{})}
}

func (s *Strings) Add(value string) {
	s.set[value] = struct{}{}
}

func (s *Strings) CalcTable() *Table {
	strings := make([]string, 0, len(s.set)+1)
	strings = append(strings, notUsed)

	for k := range s.set {
		if k != notUsed {
			strings = append(strings, k)
		}
	}

	sort.Strings(strings)

	index := make(map[string]int32, len(strings))
	for i, k := range strings {
		index[k] = int32(i)
	}

	return &Table{index: index, strings: strings}
}

// IndexOf panics when value was never added.
func (t *Table) IndexOf(value string) int32 {
	i, ok := t.index[value]
	if !ok {
		panic("string " + value + " is not in the table")
	}

	return i
}

func (t *Table) AsArray() []string {
	return t.strings
}
