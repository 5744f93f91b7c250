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

/*
Package docpoll is the I/O and message-dispatch core of a collaborative
document server.

A SocketPoll multiplexes a dynamic set of non-blocking stream sockets on a
single dedicated goroutine, integrating a wake-up pipe for cross-goroutine
producers and deferred insert/release queues to keep iteration stable.
StreamSocket buffers bytes in both directions and hands parsed progress to a
SocketHandler owned by the socket. The queue subpackage carries the
per-document tile queues that deduplicate and reprioritize pending render
requests around the client's cursor; the render subpackage drains them on a
worker pool and delivers finished tiles back on the poller goroutine.
*/
package docpoll
