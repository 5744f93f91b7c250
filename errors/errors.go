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

// Package errors defines common errors for docpoll.
package errors

import "errors"

var (
	// ErrNilHandler occurs when constructing a stream socket without a handler.
	ErrNilHandler = errors.New("docpoll: stream socket requires a valid handler")
	// ErrPollerStopped occurs when inserting sockets or callbacks into a poller that was stopped.
	ErrPollerStopped = errors.New("docpoll: socket poll is stopped")
	// ErrNilSocket occurs when passing a nil socket to the poller.
	ErrNilSocket = errors.New("docpoll: nil socket")
	// ErrNilCallback occurs when queuing a nil callback on the poller.
	ErrNilCallback = errors.New("docpoll: nil callback")
	// ErrUnsupportedProtocol occurs when trying to listen or connect on anything but tcp/tcp4/tcp6.
	ErrUnsupportedProtocol = errors.New("docpoll: only tcp/tcp4/tcp6 are supported")
	// ErrInvalidTileMsg occurs when a tile message cannot be parsed into a descriptor.
	ErrInvalidTileMsg = errors.New("docpoll: malformed tile message")
	// ErrNilRenderer occurs when starting a render broker without a renderer.
	ErrNilRenderer = errors.New("docpoll: render broker requires a renderer")
	// ErrNilSink occurs when starting a render broker without a poller and sink to deliver to.
	ErrNilSink = errors.New("docpoll: render broker requires a poller and a sink")
	// ErrBrokerStopped occurs when submitting work to a render broker that was stopped.
	ErrBrokerStopped = errors.New("docpoll: render broker is stopped")
)
