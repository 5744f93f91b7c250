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

// Package render drains a tile queue onto a worker pool and delivers the
// finished tiles back on the poller goroutine.
package render

import (
	"strings"
	"sync/atomic"

	"github.com/docpoll/docpoll"
	derrors "github.com/docpoll/docpoll/errors"
	"github.com/docpoll/docpoll/logging"
	"github.com/docpoll/docpoll/pool/bytebuffer"
	"github.com/docpoll/docpoll/pool/goroutine"
	"github.com/docpoll/docpoll/queue"
)

// stopPayload wakes the broker goroutine out of its blocking Get on Stop.
const stopPayload = "brokerstop"

// Renderer rasterises one tile. Implementations must be safe for concurrent
// use; renders run on pool workers.
type Renderer interface {
	// RenderTile produces the raster bytes for a tile message.
	RenderTile(msg string) ([]byte, error)
	// CancelTiles drops whatever in-flight work the renderer can still
	// abandon; fired when a canceltiles message reaches the broker.
	CancelTiles()
}

// Sink receives one assembled tile frame. It runs on the poller goroutine,
// where handing the frame to a StreamSocket is allowed.
type Sink func(frame []byte)

// Broker pulls tile messages off a TileQueue, renders them on a worker pool
// and posts each assembled frame back to the poller via AddCallback. The
// frame layout is the request message, a newline, then the raster bytes.
type Broker struct {
	queue    *queue.TileQueue
	poll     *docpoll.SocketPoll
	renderer Renderer
	sink     Sink
	workers  *goroutine.Pool
	stopped  atomic.Bool
	done     chan struct{}
}

// Option configures a Broker.
type Option func(b *Broker)

// WithWorkerPoolSize caps the number of concurrent renders.
func WithWorkerPoolSize(size int) Option {
	return func(b *Broker) {
		b.workers = goroutine.New(size)
	}
}

// NewBroker wires a broker to its queue, poller, renderer and sink, and
// starts the draining goroutine.
func NewBroker(q *queue.TileQueue, poll *docpoll.SocketPoll, renderer Renderer, sink Sink, options ...Option) (*Broker, error) {
	if renderer == nil {
		return nil, derrors.ErrNilRenderer
	}
	if poll == nil || sink == nil {
		return nil, derrors.ErrNilSink
	}
	if q == nil {
		q = queue.NewTileQueue()
	}
	b := &Broker{
		queue:    q,
		poll:     poll,
		renderer: renderer,
		sink:     sink,
		done:     make(chan struct{}),
	}
	for _, option := range options {
		option(b)
	}
	if b.workers == nil {
		b.workers = goroutine.Default()
	}
	go b.run()
	return b, nil
}

// Queue returns the broker's tile queue; socket handlers put render
// requests there.
func (b *Broker) Queue() *queue.TileQueue { return b.queue }

// Put enqueues one message for rendering.
func (b *Broker) Put(msg []byte) error {
	if b.stopped.Load() {
		return derrors.ErrBrokerStopped
	}
	b.queue.Put(msg)
	return nil
}

// Stop drains no further messages, waits for the broker goroutine to exit
// and releases the worker pool. In-flight renders finish on their workers.
func (b *Broker) Stop() {
	if !b.stopped.CompareAndSwap(false, true) {
		return
	}
	b.queue.Put([]byte(stopPayload))
	<-b.done
	b.workers.Release()
}

func (b *Broker) run() {
	defer close(b.done)
	for {
		payload := b.queue.Get()
		if b.stopped.Load() {
			return
		}
		msg := string(payload)
		switch {
		case msg == queue.CancelTiles:
			b.renderer.CancelTiles()
		case strings.HasPrefix(msg, "tile ") || strings.HasPrefix(msg, "tilecombine"):
			b.dispatch(msg)
		default:
			logging.Warnf("render broker: dropping unrecognized message [%s]", msg)
		}
	}
}

func (b *Broker) dispatch(msg string) {
	job := func() {
		data, err := b.renderer.RenderTile(msg)
		if err != nil {
			logging.Errorf("render broker: rendering [%s] failed: %v", msg, err)
			return
		}
		bb := bytebuffer.Get()
		bb.B = append(bb.B, msg...)
		bb.B = append(bb.B, '\n')
		bb.B = append(bb.B, data...)
		if err := b.poll.AddCallback(func() {
			b.sink(bb.B)
			bytebuffer.Put(bb)
		}); err != nil {
			bytebuffer.Put(bb)
			logging.Warnf("render broker: dropping frame for [%s]: %v", msg, err)
		}
	}
	if err := b.workers.Submit(job); err != nil {
		// Pool saturated; render on the broker goroutine and take the
		// backpressure here.
		job()
	}
}
