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
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// HandleResult is what a socket reports back to its poller after handling
// the events of one tick.
type HandleResult int

const (
	// Continue keeps the socket in the poller's active set.
	Continue HandleResult = iota
	// SocketClosed removes the socket from the active set within the same tick.
	SocketClosed
)

// Socket is a non-blocking descriptor multiplexed by a SocketPoll. Each
// socket belongs to exactly one poller goroutine; PollEvents and HandlePoll
// are only ever invoked there.
type Socket interface {
	// FD returns the OS descriptor.
	FD() int
	// PollEvents returns the poll mask the socket currently wants.
	PollEvents() int16
	// UpdateTimeout lets the socket contract the next tick's deadline.
	UpdateTimeout(deadline time.Time) time.Time
	// HandlePoll handles the revents of one tick.
	HandlePoll(now time.Time, revents int16) HandleResult
	// Shutdown shuts the descriptor down for reading and writing.
	Shutdown()
	// Close releases the descriptor. Idempotent.
	Close() error
}

// sockFD is the embeddable descriptor base shared by the socket variants.
// It owns its fd for the socket's lifetime and applies the non-blocking +
// TCP_NODELAY discipline at construction.
type sockFD struct {
	fd       int
	fdClosed uint32
	owner    uint64
}

func newSockFD(fd int) sockFD {
	_ = unix.SetNonblock(fd, true)
	unix.CloseOnExec(fd)
	s := sockFD{fd: fd}
	s.SetNoDelay(true)
	return s
}

// FD returns the OS native socket fd.
func (s *sockFD) FD() int { return s.fd }

// SetNoDelay manages latency issues around packet aggregation.
// Returns true on success only.
func (s *sockFD) SetNoDelay(noDelay bool) bool {
	val := 0
	if noDelay {
		val = 1
	}
	return unix.SetsockoptInt(s.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, val) == nil
}

// SetSendBufferSize sets the send buffer in size bytes. Must be called
// before accept or connect. The kernel may round the value up and enforces
// a lower bound. Returns true on success only.
func (s *sockFD) SetSendBufferSize(size int) bool {
	return unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_SNDBUF, size) == nil
}

// SendBufferSize gets the actual send buffer size in bytes, -1 for failure.
func (s *sockFD) SendBufferSize() int {
	size, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_SNDBUF)
	if err != nil {
		return -1
	}
	return size
}

// SetReceiveBufferSize sets the receive buffer in size bytes. Must be called
// before accept or connect. Returns true on success only.
func (s *sockFD) SetReceiveBufferSize(size int) bool {
	return unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_RCVBUF, size) == nil
}

// ReceiveBufferSize gets the actual receive buffer size in bytes, -1 on error.
func (s *sockFD) ReceiveBufferSize() int {
	size, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_RCVBUF)
	if err != nil {
		return -1
	}
	return size
}

// SockError returns the pending socket-level error code (SO_ERROR),
// or -1 when it cannot be fetched.
func (s *sockFD) SockError() int {
	code, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return -1
	}
	return code
}

// UpdateTimeout keeps the tick deadline unchanged.
func (s *sockFD) UpdateTimeout(deadline time.Time) time.Time { return deadline }

// Shutdown shuts the socket down for reading and writing.
func (s *sockFD) Shutdown() {
	_ = unix.Shutdown(s.fd, unix.SHUT_RDWR)
}

// Close releases the descriptor. Idempotent.
func (s *sockFD) Close() error {
	if !atomic.CompareAndSwapUint32(&s.fdClosed, 0, 1) {
		return nil
	}
	return os.NewSyscallError("close", unix.Close(s.fd))
}

// ownerMarker is implemented by sockets that track which poller goroutine
// owns them; the check only bites under the sockdebug build tag.
type ownerMarker interface {
	markOwner(id uint64)
}
