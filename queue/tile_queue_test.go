// Copyright (c) 2024 The Docpoll Authors. All rights reserved.
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

package queue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloads(q interface{ snapshot() [][]byte }) []string {
	var out []string
	for _, v := range q.snapshot() {
		out = append(out, string(v))
	}
	return out
}

func TestTileQueueDeduplicates(t *testing.T) {
	q := NewTileQueue()
	q.Put([]byte("tile x=0 y=0 w=256 h=256 ver=1"))
	q.Put([]byte("tile x=0 y=0 w=256 h=256 ver=2"))

	require.Equal(t, 1, q.Len())
	require.Equal(t, "tile x=0 y=0 w=256 h=256 ver=2", string(q.Get()))
}

func TestTileQueueDedupKeepsPosition(t *testing.T) {
	q := NewTileQueue()
	q.Put([]byte("tile x=0 y=0 w=256 h=256 ver=1"))
	q.Put([]byte("tile x=256 y=0 w=256 h=256 ver=1"))
	q.Put([]byte("tile x=0 y=0 w=256 h=256 ver=3"))

	require.Equal(t, []string{
		"tile x=0 y=0 w=256 h=256 ver=3",
		"tile x=256 y=0 w=256 h=256 ver=1",
	}, payloads(q))
}

func TestTileQueueCursorPriority(t *testing.T) {
	q := NewTileQueue()
	q.UpdateCursorPosition(1, CursorPosition{X: 0, Y: 0, Width: 100, Height: 100})
	q.Put([]byte("tile x=500 y=500 w=256 h=256 ver=1"))
	q.Put([]byte("tile x=50 y=50 w=256 h=256 ver=1"))

	require.Equal(t, 2, q.Len())
	front, err := Parse(string(q.Get()))
	require.NoError(t, err)
	assert.True(t, front.Intersects(CursorPosition{X: 0, Y: 0, Width: 100, Height: 100}))
}

func TestTileQueuePriorityBumpOnDuplicate(t *testing.T) {
	q := NewTileQueue()
	q.Put([]byte("tile x=500 y=500 w=256 h=256 ver=1"))
	q.Put([]byte("tile x=50 y=50 w=256 h=256 ver=1"))

	// The cursor arrives after both tiles are queued; re-requesting the
	// covered tile must bump it to the front.
	q.cursors[1] = CursorPosition{X: 0, Y: 0, Width: 100, Height: 100}
	q.Put([]byte("tile x=50 y=50 w=256 h=256 ver=2"))

	require.Equal(t, []string{
		"tile x=50 y=50 w=256 h=256 ver=2",
		"tile x=500 y=500 w=256 h=256 ver=1",
	}, payloads(q))
}

func TestCancelTilesSparesIDTiles(t *testing.T) {
	q := NewTileQueue()
	q.Put([]byte("tile x=0 y=0 w=256 h=256 id=preview ver=1"))
	q.Put([]byte(CancelTiles))

	require.Equal(t, []string{
		CancelTiles,
		"tile x=0 y=0 w=256 h=256 id=preview ver=1",
	}, payloads(q))
}

func TestCancelTilesPurgesPlainTiles(t *testing.T) {
	q := NewBasicTileQueue()
	q.Put([]byte("tile x=0 y=0 w=256 h=256 ver=1"))
	q.Put([]byte("tile x=256 y=0 w=256 h=256 ver=1"))
	q.Put([]byte("tilecombine tileposx=0 tileposy=0 tilewidth=512 tileheight=512"))
	q.Put([]byte("status"))
	q.Put([]byte(CancelTiles))

	got := payloads(q)
	require.Equal(t, CancelTiles, got[0])
	for _, msg := range got[1:] {
		bare := strings.HasPrefix(msg, "tile ") && !strings.Contains(msg, "id=")
		assert.False(t, bare, "cancellable tile survived: %q", msg)
	}
	assert.Contains(t, got, "status")
	assert.Contains(t, got, "tilecombine tileposx=0 tileposy=0 tilewidth=512 tileheight=512")
}

func TestReprioritizeBumpsCoveredTile(t *testing.T) {
	q := NewTileQueue()
	q.Put([]byte("tile x=500 y=500 w=256 h=256 ver=1"))
	q.Put([]byte("tile x=1000 y=1000 w=256 h=256 ver=1"))
	q.Put([]byte("tile x=0 y=0 w=256 h=256 ver=1"))

	cursor := CursorPosition{X: 10, Y: 10, Width: 20, Height: 20}
	q.Reprioritize(cursor)

	front, err := Parse(payloads(q)[0])
	require.NoError(t, err)
	assert.True(t, front.Intersects(cursor))
	require.Equal(t, 3, q.Len())
}

func TestReprioritizeNoMatchLeavesOrder(t *testing.T) {
	q := NewTileQueue()
	q.Put([]byte("tile x=500 y=500 w=256 h=256 ver=1"))
	q.Put([]byte("tile x=1000 y=1000 w=256 h=256 ver=1"))
	before := payloads(q)

	q.Reprioritize(CursorPosition{X: 0, Y: 0, Width: 10, Height: 10})
	require.Equal(t, before, payloads(q))
}

func TestUpdateCursorPositionReprioritizes(t *testing.T) {
	q := NewTileQueue()
	q.Put([]byte("tile x=500 y=500 w=256 h=256 ver=1"))
	q.Put([]byte("tile x=0 y=0 w=256 h=256 ver=1"))

	q.UpdateCursorPosition(7, CursorPosition{X: 10, Y: 10, Width: 20, Height: 20})
	require.Equal(t, "tile x=0 y=0 w=256 h=256 ver=1", payloads(q)[0])

	q.RemoveCursor(7)
	q.Put([]byte("tile x=20 y=20 w=8 h=8 ver=1"))
	// No cursors left, so the new tile is not prioritized.
	require.Equal(t, "tile x=20 y=20 w=8 h=8 ver=1", payloads(q)[2])
}
