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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/docpoll/docpoll/errors"
)

func TestParseTile(t *testing.T) {
	tile, err := Parse("tile x=128 y=256 w=256 h=256 ver=7 id=preview")
	require.NoError(t, err)
	assert.Equal(t, 128, tile.X)
	assert.Equal(t, 256, tile.Y)
	assert.Equal(t, 256, tile.Width)
	assert.Equal(t, 256, tile.Height)
	assert.Equal(t, 7, tile.Ver)
	assert.Equal(t, "preview", tile.ID)
}

func TestParseLongKeys(t *testing.T) {
	tile, err := Parse("tilecombine tileposx=3840 tileposy=0 tilewidth=3840 tileheight=3840")
	require.NoError(t, err)
	assert.Equal(t, 3840, tile.X)
	assert.Equal(t, 0, tile.Y)
	assert.Equal(t, 3840, tile.Width)
	assert.Equal(t, 3840, tile.Height)
	assert.Equal(t, -1, tile.Ver)
}

func TestParseRejectsOtherMessages(t *testing.T) {
	for _, msg := range []string{"", "canceltiles", "key x=1", "tiles x=1"} {
		_, err := Parse(msg)
		require.ErrorIs(t, err, derrors.ErrInvalidTileMsg, "message %q", msg)
	}
}

func TestIdentityStripsVersion(t *testing.T) {
	assert.Equal(t, "tile x=0 y=0 w=256 h=256", Identity("tile x=0 y=0 w=256 h=256 ver=9"))
	assert.Equal(t, "tile x=0 y=0 w=256 h=256", Identity("tile x=0 y=0 w=256 h=256"))
	assert.Equal(t, "canceltiles", Identity("canceltiles"))
}

func TestIntersects(t *testing.T) {
	tile := TileDesc{X: 0, Y: 0, Width: 10, Height: 10}
	assert.True(t, tile.Intersects(CursorPosition{X: 5, Y: 5, Width: 10, Height: 10}))
	assert.True(t, tile.Intersects(CursorPosition{X: 9, Y: 9, Width: 1, Height: 1}))

	// Touching edges do not overlap.
	assert.False(t, tile.Intersects(CursorPosition{X: 10, Y: 0, Width: 10, Height: 10}))
	assert.False(t, tile.Intersects(CursorPosition{X: 0, Y: 10, Width: 10, Height: 10}))

	// Empty rectangles never intersect.
	assert.False(t, tile.Intersects(CursorPosition{X: 5, Y: 5, Width: 0, Height: 10}))
	assert.False(t, tile.Intersects(CursorPosition{X: 5, Y: 5, Width: 10, Height: 0}))
	empty := TileDesc{X: 5, Y: 5}
	assert.False(t, empty.Intersects(CursorPosition{X: 0, Y: 0, Width: 100, Height: 100}))
}
