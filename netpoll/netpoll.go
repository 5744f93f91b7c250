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

// Package netpoll wraps the level-triggered poll(2) primitive.
//
// poll(2) has very good performance compared to epoll up to a few hundred
// sockets and doesn't suffer select(2)'s poor API. Pollers are per-document,
// so we never multiplex enough descriptors to hit its scalability limit,
// while epoll's overhead for adding/removing descriptors buys us nothing.
package netpoll

import (
	"time"

	"golang.org/x/sys/unix"
)

// PollFd is the alias of unix.PollFd.
type PollFd = unix.PollFd

// Event masks for PollFd.Events and PollFd.Revents.
const (
	PollIn   = int16(unix.POLLIN)
	PollOut  = int16(unix.POLLOUT)
	PollHup  = int16(unix.POLLHUP)
	PollErr  = int16(unix.POLLERR)
	PollNval = int16(unix.POLLNVAL)
)

// Poll waits for events on fds for at most timeout, retrying on EINTR.
// A non-positive timeout polls without blocking.
func Poll(fds []PollFd, timeout time.Duration) (int, error) {
	ms := int(timeout / time.Millisecond)
	if ms < 0 {
		ms = 0
	}
	for {
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// Drain empties a non-blocking descriptor, typically the read end of a
// wake-up pipe that may have accumulated bytes from several producers.
func Drain(fd int) {
	var buf [64]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if n == len(buf) && err == nil {
			continue
		}
		return
	}
}
