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
	"strconv"
	"strings"

	"github.com/docpoll/docpoll/errors"
)

// CursorPosition is a view's cursor rectangle in document coordinates.
// A zero Width or Height intersects nothing.
type CursorPosition struct {
	X      int
	Y      int
	Width  int
	Height int
}

// TileDesc is the parsed form of a tile render request.
type TileDesc struct {
	X      int
	Y      int
	Width  int
	Height int
	Ver    int
	ID     string
}

// Identity returns the tile message with the " ver" suffix and anything
// after it stripped. Re-requests of the same region differ only in version,
// so identity is what deduplication compares.
func Identity(msg string) string {
	if i := strings.Index(msg, " ver"); i >= 0 {
		return msg[:i]
	}
	return msg
}

// Parse decodes a "tile ..." or "tilecombine ..." message into a TileDesc.
// Unknown tokens are skipped; both the short and the long geometry key forms
// are accepted.
func Parse(msg string) (TileDesc, error) {
	fields := strings.Fields(msg)
	if len(fields) == 0 || (fields[0] != "tile" && fields[0] != "tilecombine") {
		return TileDesc{}, errors.ErrInvalidTileMsg
	}

	tile := TileDesc{Ver: -1}
	for _, token := range fields[1:] {
		eq := strings.IndexByte(token, '=')
		if eq <= 0 {
			continue
		}
		key, value := token[:eq], token[eq+1:]
		switch key {
		case "x", "tileposx":
			tile.X, _ = strconv.Atoi(value)
		case "y", "tileposy":
			tile.Y, _ = strconv.Atoi(value)
		case "w", "tilewidth":
			tile.Width, _ = strconv.Atoi(value)
		case "h", "tileheight":
			tile.Height, _ = strconv.Atoi(value)
		case "ver":
			tile.Ver, _ = strconv.Atoi(value)
		case "id":
			tile.ID = value
		}
	}
	return tile, nil
}

// Intersects reports whether the tile overlaps the cursor rectangle.
// Both rectangles are half-open; empty rectangles never intersect.
func (t TileDesc) Intersects(pos CursorPosition) bool {
	if t.Width <= 0 || t.Height <= 0 || pos.Width <= 0 || pos.Height <= 0 {
		return false
	}
	return t.X < pos.X+pos.Width && pos.X < t.X+t.Width &&
		t.Y < pos.Y+pos.Height && pos.Y < t.Y+t.Height
}
