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

import "strings"

// CancelTiles is the payload that purges pending cancellable tile requests.
const CancelTiles = "canceltiles"

// BasicTileQueue understands the canceltiles message: putting it erases all
// queued cancellable tile requests and jumps the cancel to the front.
type BasicTileQueue struct {
	MessageQueue
}

// NewBasicTileQueue instantiates a tile queue with cancellation only.
func NewBasicTileQueue() *BasicTileQueue {
	q := new(BasicTileQueue)
	q.init()
	q.insert = q.insertBasic
	return q
}

// insertBasic runs with mu held.
func (q *BasicTileQueue) insertBasic(v []byte) {
	if string(v) == CancelTiles {
		// Tiles with 'id=' are special, used eg. for previews; they must
		// survive cancellation.
		kept := q.items[:0]
		for _, m := range q.items {
			s := string(m)
			if strings.HasPrefix(s, "tile ") && !strings.Contains(s, "id=") {
				continue
			}
			kept = append(kept, m)
		}
		q.items = append([][]byte{v}, kept...)
		return
	}
	q.items = append(q.items, v)
}

// TileQueue reorders pending tile requests: duplicate requests for the same
// region are collapsed into one, and requests intersecting any view's cursor
// rectangle are served first.
type TileQueue struct {
	BasicTileQueue
	cursors map[int]CursorPosition
}

// NewTileQueue instantiates a cursor-aware tile queue.
func NewTileQueue() *TileQueue {
	q := new(TileQueue)
	q.init()
	q.cursors = make(map[int]CursorPosition)
	q.insert = q.insertPrioritized
	return q
}

// insertPrioritized runs with mu held.
func (q *TileQueue) insertPrioritized(v []byte) {
	msg := string(v)
	if len(q.items) > 0 && (strings.HasPrefix(msg, "tile") || strings.HasPrefix(msg, "tilecombine")) {
		id := Identity(msg)
		for i, old := range q.items {
			if Identity(string(old)) != id {
				continue
			}
			// Same region requested again, keep only the newer version.
			q.items[i] = v
			if q.priority(msg) {
				copy(q.items[1:i+1], q.items[:i])
				q.items[0] = v
			}
			return
		}
	}

	if q.priority(msg) {
		q.items = append([][]byte{v}, q.items...)
		return
	}

	q.insertBasic(v)
}

// priority runs with mu held and reports whether the tile intersects any
// view's current cursor rectangle.
func (q *TileQueue) priority(msg string) bool {
	tile, err := Parse(msg)
	if err != nil {
		return false
	}
	for _, pos := range q.cursors {
		if tile.Intersects(pos) {
			return true
		}
	}
	return false
}

// UpdateCursorPosition records the cursor rectangle of a view and bumps any
// pending tile underneath it.
func (q *TileQueue) UpdateCursorPosition(view int, pos CursorPosition) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cursors[view] = pos
	q.reprioritize(pos)
}

// RemoveCursor forgets a view's cursor, e.g. when the view disconnects.
func (q *TileQueue) RemoveCursor(view int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.cursors, view)
}

// Reprioritize brings the tile under the given cursor (if any) to the top.
// There should be only one overlapping tile at most.
func (q *TileQueue) Reprioritize(pos CursorPosition) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reprioritize(pos)
}

// reprioritize runs with mu held.
func (q *TileQueue) reprioritize(pos CursorPosition) {
	for i, v := range q.items {
		tile, err := Parse(string(v))
		if err != nil {
			continue
		}
		if tile.Intersects(pos) {
			if i != 0 {
				copy(q.items[1:i+1], q.items[:i])
				q.items[0] = v
			}
			return
		}
	}
}
