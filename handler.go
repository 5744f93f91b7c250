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

package docpoll

// SocketHandler parses the bytes a StreamSocket buffers and produces its
// output. A handler is uniquely owned by its socket and keeps only the
// reference handed to OnConnect. The other calls happen on the poller
// goroutine, except that OnDisconnect fires on the goroutine calling Close
// when the socket is closed outside a poll tick (e.g. by SocketPoll.Close).
type SocketHandler interface {
	// OnConnect fires exactly once, immediately after the socket exists.
	OnConnect(s *StreamSocket)

	// HandleIncomingMessage is called after successful socket reads. It is
	// expected to consume a prefix of the input buffer when able and leave
	// the remainder; the socket detects progress by buffer-size change.
	HandleIncomingMessage()

	// HasQueuedWrites reports whether the handler holds output of its own,
	// e.g. pending frames in a WebSocket framer. It makes the socket ask
	// for a writable edge without touching the raw output buffer.
	HasQueuedWrites() bool

	// PerformWrites lets the handler synthesize fresh output once the
	// descriptor is writable and the raw output buffer has drained.
	PerformWrites()

	// OnDisconnect fires exactly once when the socket is being torn down,
	// and never before OnConnect.
	OnDisconnect()
}
