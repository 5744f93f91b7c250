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
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/docpoll/docpoll/netpoll"
)

// HandlerFactory builds the handler for one accepted connection.
type HandlerFactory func() SocketHandler

// ServerSocket accepts incoming connections and inserts the resulting
// stream sockets into a target poller.
type ServerSocket struct {
	sockFD
	target  *SocketPoll
	factory HandlerFactory
}

// Listen binds a non-blocking listener on a tcp/tcp4/tcp6 address. Accepted
// connections get a handler from factory and land in the target poller.
func Listen(network, address string, target *SocketPoll, factory HandlerFactory) (*ServerSocket, error) {
	family, sa, err := tcpSockaddr(network, address)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("setsockopt", err)
	}
	if err = unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}
	if err = unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}
	return &ServerSocket{
		sockFD:  newSockFD(fd),
		target:  target,
		factory: factory,
	}, nil
}

// LocalAddr returns the bound address, useful when listening on port 0.
func (s *ServerSocket) LocalAddr() net.Addr {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return nil
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append([]byte(nil), a.Addr[:]...), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append([]byte(nil), a.Addr[:]...), Port: a.Port}
	}
	return nil
}

// PollEvents asks only for readability; a readable listener has pending
// connections.
func (s *ServerSocket) PollEvents() int16 { return netpoll.PollIn }

// HandlePoll accepts every pending connection and hands each to the target
// poller wrapped in a StreamSocket.
func (s *ServerSocket) HandlePoll(_ time.Time, revents int16) HandleResult {
	if revents&(netpoll.PollErr|netpoll.PollNval) != 0 {
		return SocketClosed
	}
	if revents&netpoll.PollIn == 0 {
		return Continue
	}
	for {
		nfd, err := acceptConn(s.fd)
		switch err {
		case nil:
		case unix.EINTR, unix.ECONNABORTED:
			continue
		default:
			// EAGAIN: drained the backlog.
			return Continue
		}
		conn, err := NewStreamSocket(nfd, s.factory())
		if err != nil {
			_ = unix.Close(nfd)
			continue
		}
		if err = s.target.InsertNewSocket(conn); err != nil {
			_ = conn.Close()
			return SocketClosed
		}
	}
}

// Connect starts a non-blocking connect to a tcp/tcp4/tcp6 address and wraps
// the descriptor in a StreamSocket; the poller observes the writable edge
// once the handshake completes.
func Connect(network, address string, handler SocketHandler) (*StreamSocket, error) {
	family, sa, err := tcpSockaddr(network, address)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("fcntl", err)
	}
	if err = unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("connect", err)
	}
	return NewStreamSocket(fd, handler)
}
