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

//go:build sockdebug

package docpoll

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
)

// Under the sockdebug tag every socket remembers its poller goroutine and
// panics when a poller-only operation runs anywhere else.

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// The header reads "goroutine 123 [...".
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(string(fields[1]), 10, 64)
	return id
}

func (s *sockFD) markOwner(id uint64) {
	atomic.StoreUint64(&s.owner, id)
}

func (s *sockFD) assertOwner() {
	if id := atomic.LoadUint64(&s.owner); id != 0 && id != goroutineID() {
		panic(fmt.Sprintf("docpoll: socket #%d touched off its poller goroutine", s.fd))
	}
}

func (p *SocketPoll) assertOwner() {
	if p.stop.Load() {
		// Shutdown may touch the poller from the closing goroutine.
		return
	}
	if id := atomic.LoadUint64(&p.pollerGoros); id != 0 && id != goroutineID() {
		panic(fmt.Sprintf("docpoll: poll [%s] driven off its goroutine", p.name))
	}
}
