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

// Package core holds small shared utilities.
package core

import (
	"bytes"
	"sync"
)

// DefaultBufferSize is the initial capacity of pooled buffers.
const DefaultBufferSize = 1024 * 1024

var pool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, DefaultBufferSize))
	},
}

// PooledBuffer is a bytes.Buffer borrowed from a process wide pool. Close
// returns it to the pool; the buffer must not be used afterwards.
type PooledBuffer struct {
	*bytes.Buffer
}

// NewPooledBuffer borrows an empty buffer from the pool.
func NewPooledBuffer() *PooledBuffer {
	buf, _ := pool.Get().(*bytes.Buffer)
	buf.Reset()

	return &PooledBuffer{Buffer: buf}
}

// Close resets the buffer and hands it back to the pool.
func (b *PooledBuffer) Close() {
	if b.Buffer == nil {
		return
	}

	b.Reset()
	pool.Put(b.Buffer)
	b.Buffer = nil
}
