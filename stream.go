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

package docpoll

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	derrors "github.com/docpoll/docpoll/errors"
	"github.com/docpoll/docpoll/logging"
	"github.com/docpoll/docpoll/netpoll"
)

// readChunkSize is the granularity of one read. SSL decodes blocks of 16KiB,
// so a TLS transport can map one record per read.
const readChunkSize = 16 * 1024

// Transport performs the raw descriptor I/O for a StreamSocket. The default
// reads and writes the fd directly; a TLS variant wraps the same calls
// around its record layer.
type Transport interface {
	Read(fd int, p []byte) (int, error)
	Write(fd int, p []byte) (int, error)
}

type rawTransport struct{}

func (rawTransport) Read(fd int, p []byte) (int, error)  { return unix.Read(fd, p) }
func (rawTransport) Write(fd int, p []byte) (int, error) { return unix.Write(fd, p) }

// StreamSocket is a plain, non-blocking, data-streaming socket. It buffers
// bytes in both directions, invokes its handler on parsed progress and
// surfaces the disconnect exactly once.
type StreamSocket struct {
	sockFD
	handler   SocketHandler
	transport Transport

	closed     atomic.Bool
	disconnect sync.Once

	// in is only touched on the poller goroutine.
	in []byte

	// wmu guards out and pipeBroken so Send may be called from any goroutine.
	wmu        sync.Mutex
	out        []byte
	pipeBroken bool
}

// NewStreamSocket creates a StreamSocket from a native fd and takes
// ownership of the handler instance, then fires OnConnect with the newly
// created socket.
func NewStreamSocket(fd int, handler SocketHandler) (*StreamSocket, error) {
	if handler == nil {
		return nil, derrors.ErrNilHandler
	}
	s := &StreamSocket{
		sockFD:    newSockFD(fd),
		handler:   handler,
		transport: rawTransport{},
	}
	handler.OnConnect(s)
	return s, nil
}

// SetTransport swaps the descriptor I/O layer. Must be called before the
// socket is inserted into a poller.
func (s *StreamSocket) SetTransport(t Transport) {
	if t != nil {
		s.transport = t
	}
}

// PollEvents asks for read-interest always, plus write-interest whenever
// output is pending either in the raw buffer or up in the handler.
func (s *StreamSocket) PollEvents() int16 {
	s.wmu.Lock()
	pending := len(s.out) > 0
	s.wmu.Unlock()
	if pending || s.handler.HasQueuedWrites() {
		return netpoll.PollIn | netpoll.PollOut
	}
	return netpoll.PollIn
}

// Input exposes the buffered incoming bytes to the privileged parsers
// (HTTP/WebSocket framers). Poller goroutine only.
func (s *StreamSocket) Input() []byte {
	s.assertOwner()
	return s.in
}

// DiscardInput consumes n bytes from the front of the input buffer.
// Poller goroutine only.
func (s *StreamSocket) DiscardInput(n int) {
	s.assertOwner()
	if n >= len(s.in) {
		s.in = s.in[:0]
		return
	}
	if n > 0 {
		s.in = s.in[:copy(s.in, s.in[n:])]
	}
}

// Send appends data to the output buffer and, when flush is set, attempts an
// immediate non-blocking drain. Safe to call from any goroutine.
func (s *StreamSocket) Send(data []byte, flush bool) {
	if len(data) == 0 {
		return
	}
	s.wmu.Lock()
	s.out = append(s.out, data...)
	if flush {
		s.writeOutgoingData()
	}
	s.wmu.Unlock()
}

// SendSync switches the descriptor to blocking mode so the whole payload is
// on the wire before return, then restores non-blocking mode. Used for
// synchronous HTTP responses.
func (s *StreamSocket) SendSync(data []byte) {
	_ = unix.SetNonblock(s.fd, false)
	s.Send(data, true)
	_ = unix.SetNonblock(s.fd, true)
}

// Closed reports whether the peer is gone.
func (s *StreamSocket) Closed() bool { return s.closed.Load() }

// HandlePoll drains the descriptor into the input buffer, lets the handler
// consume complete messages, performs pending writes and fires OnDisconnect
// on the transition to closed.
func (s *StreamSocket) HandlePoll(_ time.Time, revents int16) HandleResult {
	s.assertOwner()

	closed := revents&(netpoll.PollHup|netpoll.PollErr|netpoll.PollNval) != 0

	// Always try to read.
	if !s.readIncomingData() {
		closed = true
	}

	// Let the app consume what it can; stop at the fixed point so a handler
	// that cannot parse further does not spin us.
	for prev := -1; len(s.in) > 0 && len(s.in) != prev; {
		prev = len(s.in)
		s.handler.HandleIncomingMessage()
	}

	writable := revents&netpoll.PollOut != 0

	// The handler may want to synthesize output now that there is room.
	if writable && s.outEmpty() {
		s.handler.PerformWrites()
	}

	if writable || !s.outEmpty() {
		// The buffer could be flushed by a concurrent Send while we wait, so
		// only a non-blocking acquire; a later tick picks up the remainder.
		if s.wmu.TryLock() {
			if len(s.out) > 0 {
				s.writeOutgoingData()
			}
			if s.pipeBroken {
				closed = true
			}
			s.wmu.Unlock()
		}
	}

	if closed {
		s.markClosed()
	}
	if s.closed.Load() {
		return SocketClosed
	}
	return Continue
}

func (s *StreamSocket) outEmpty() bool {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return len(s.out) == 0
}

func (s *StreamSocket) markClosed() {
	if s.closed.CompareAndSwap(false, true) {
		s.disconnect.Do(s.handler.OnDisconnect)
	}
}

// readIncomingData reads in 16KiB chunks into the input buffer until the
// kernel would block, retrying on EINTR. Returns false when the peer has
// performed an orderly close.
func (s *StreamSocket) readIncomingData() bool {
	var buf [readChunkSize]byte
	for {
		n, err := s.transport.Read(s.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if n > 0 {
			s.in = append(s.in, buf[:n]...)
		}
		if n == len(buf) {
			// A full chunk; the kernel may hold more.
			continue
		}
		// Zero is eof / clean socket close; negative lets poll surface the
		// error next tick.
		return n != 0
	}
}

// writeOutgoingData writes from the front of the output buffer, erasing the
// bytes proven written. Must be called with wmu held.
func (s *StreamSocket) writeOutgoingData() {
	for len(s.out) > 0 {
		n, err := s.transport.Write(s.fd, s.out)
		if err == unix.EINTR {
			continue
		}
		if n > 0 {
			s.out = s.out[:copy(s.out, s.out[n:])]
			continue
		}
		if err == unix.EPIPE {
			s.pipeBroken = true
		}
		// Poll will handle other errors.
		return
	}
}

// Close tears the socket down: the disconnect fires if it has not yet, then
// the descriptor is released.
func (s *StreamSocket) Close() error {
	s.markClosed()
	return s.sockFD.Close()
}

// DumpState logs the socket's buffer occupancy for diagnostics.
func (s *StreamSocket) DumpState() {
	s.wmu.Lock()
	out := len(s.out)
	s.wmu.Unlock()
	logging.Debugf("stream socket #%d: in %d bytes, out %d bytes, closed %v",
		s.fd, len(s.in), out, s.closed.Load())
}
