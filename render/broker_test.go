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

//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package render

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docpoll/docpoll"
	derrors "github.com/docpoll/docpoll/errors"
	"github.com/docpoll/docpoll/queue"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeRenderer struct {
	mu       sync.Mutex
	rendered []string
	cancels  int
}

func (r *fakeRenderer) RenderTile(msg string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered = append(r.rendered, msg)
	return []byte{0xCA, 0xFE}, nil
}

func (r *fakeRenderer) CancelTiles() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels++
}

func (r *fakeRenderer) snapshot() (rendered []string, cancels int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.rendered...), r.cancels
}

type frameSink struct {
	mu     sync.Mutex
	frames []string
}

func (fs *frameSink) put(frame []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.frames = append(fs.frames, string(frame))
}

func (fs *frameSink) snapshot() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.frames...)
}

func newTestBroker(t *testing.T) (*Broker, *fakeRenderer, *frameSink) {
	t.Helper()
	p, err := docpoll.NewSocketPoll("render-test", docpoll.WithPollCeiling(50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	r := new(fakeRenderer)
	fs := new(frameSink)
	b, err := NewBroker(queue.NewTileQueue(), p, r, fs.put, WithWorkerPoolSize(4))
	require.NoError(t, err)
	t.Cleanup(b.Stop)
	return b, r, fs
}

func TestBrokerRequiresCollaborators(t *testing.T) {
	_, err := NewBroker(nil, nil, nil, nil)
	require.ErrorIs(t, err, derrors.ErrNilRenderer)

	_, err = NewBroker(nil, nil, new(fakeRenderer), nil)
	require.ErrorIs(t, err, derrors.ErrNilSink)
}

func TestBrokerRendersAndDelivers(t *testing.T) {
	b, r, fs := newTestBroker(t)

	msg := "tile x=0 y=0 w=256 h=256 ver=1"
	require.NoError(t, b.Put([]byte(msg)))

	require.Eventually(t, func() bool {
		frames := fs.snapshot()
		return len(frames) == 1 && frames[0] == msg+"\n\xca\xfe"
	}, waitFor, tick)

	rendered, _ := r.snapshot()
	require.Equal(t, []string{msg}, rendered)
}

func TestBrokerCancelTiles(t *testing.T) {
	b, r, _ := newTestBroker(t)

	require.NoError(t, b.Put([]byte(queue.CancelTiles)))
	require.Eventually(t, func() bool {
		_, cancels := r.snapshot()
		return cancels == 1
	}, waitFor, tick)
}

func TestBrokerDropsUnknownMessages(t *testing.T) {
	b, r, fs := newTestBroker(t)

	require.NoError(t, b.Put([]byte("statusupdate")))
	require.NoError(t, b.Put([]byte("tile x=1 y=1 w=8 h=8 ver=1")))

	require.Eventually(t, func() bool { return len(fs.snapshot()) == 1 }, waitFor, tick)
	rendered, _ := r.snapshot()
	require.Equal(t, []string{"tile x=1 y=1 w=8 h=8 ver=1"}, rendered)
}

func TestBrokerStop(t *testing.T) {
	p, err := docpoll.NewSocketPoll("render-stop", docpoll.WithPollCeiling(50*time.Millisecond))
	require.NoError(t, err)
	defer p.Close()

	b, err := NewBroker(queue.NewTileQueue(), p, new(fakeRenderer), func([]byte) {})
	require.NoError(t, err)

	b.Stop()
	b.Stop() // idempotent
	require.ErrorIs(t, b.Put([]byte("tile x=0 y=0 w=1 h=1 ver=1")), derrors.ErrBrokerStopped)
}
