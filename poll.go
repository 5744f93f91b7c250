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

	equeue "github.com/eapache/queue"
	"golang.org/x/sys/unix"

	derrors "github.com/docpoll/docpoll/errors"
	"github.com/docpoll/docpoll/netpoll"
)

// CallbackFn is a zero-argument function run on the poller goroutine at the
// next wake-up.
type CallbackFn func()

// SocketPoll multiplexes a dynamic set of sockets on one dedicated
// goroutine. The active set and all per-socket buffers are touched only
// there; producers on other goroutines serialize through one mutex guarding
// the pending insert/release/callback queues plus a wake-up pipe.
type SocketPoll struct {
	name string
	opts *Options

	// main-loop wakeup pipe
	wakeupR int
	wakeupW int

	// The sockets we're controlling; poller goroutine only.
	sockets []Socket
	pollFds []netpoll.PollFd
	count   int32

	mu          sync.Mutex
	newSockets  []Socket
	relSockets  []Socket
	callbacks   *equeue.Queue
	stop        atomic.Bool
	done        chan struct{}
	pollerGoros uint64
}

// All live pollers, so WakeupWorld can reach every loop in the process.
var allPolls struct {
	sync.Mutex
	wfds map[*SocketPoll]int
}

// NewSocketPoll creates a socket poll and starts its polling goroutine;
// called rather infrequently.
func NewSocketPoll(name string, options ...Option) (*SocketPoll, error) {
	r, w, err := netpoll.Pipe()
	if err != nil {
		return nil, err
	}
	p := &SocketPoll{
		name:      name,
		opts:      initOptions(options...),
		wakeupR:   r,
		wakeupW:   w,
		callbacks: equeue.New(),
		done:      make(chan struct{}),
	}

	allPolls.Lock()
	if allPolls.wfds == nil {
		allPolls.wfds = make(map[*SocketPoll]int)
	}
	allPolls.wfds[p] = w
	allPolls.Unlock()

	go p.pollingThread()
	return p, nil
}

// Name returns the poller's debug name.
func (p *SocketPoll) Name() string { return p.name }

// SocketCount reports how many sockets the poller currently multiplexes.
func (p *SocketPoll) SocketCount() int { return int(atomic.LoadInt32(&p.count)) }

// Stop flags the polling goroutine to exit and wakes it.
func (p *SocketPoll) Stop() {
	p.stop.Store(true)
	p.Wakeup()
}

// ContinuePolling checks if we should keep polling.
func (p *SocketPoll) ContinuePolling() bool {
	return !p.stop.Load()
}

// pollingThread is the default polling loop; stop is observed within the
// poll ceiling.
func (p *SocketPoll) pollingThread() {
	defer close(p.done)
	atomic.StoreUint64(&p.pollerGoros, goroutineID())
	p.opts.Logger.Infof("starting polling thread [%s]", p.name)
	for p.ContinuePolling() {
		p.Poll(p.opts.PollCeiling)
	}
	p.opts.Logger.Infof("finished polling thread [%s]", p.name)
}

// Close stops the poller, waits for the goroutine to exit, tears down every
// remaining socket and releases the wake-up pipe.
func (p *SocketPoll) Close() error {
	p.Stop()
	<-p.done

	allPolls.Lock()
	delete(allPolls.wfds, p)
	allPolls.Unlock()

	for _, s := range p.sockets {
		_ = s.Close()
	}
	p.sockets = nil
	atomic.StoreInt32(&p.count, 0)

	p.mu.Lock()
	pending := p.newSockets
	p.newSockets = nil
	p.relSockets = nil
	p.mu.Unlock()
	for _, s := range pending {
		_ = s.Close()
	}

	_ = unix.Close(p.wakeupR)
	return unix.Close(p.wakeupW)
}

// Poll runs one tick: rebuild the scratch descriptor array from the active
// set, wait on poll(2) for at most timeoutMax, dispatch revents and process
// the wake-up pipe.
func (p *SocketPoll) Poll(timeoutMax time.Duration) {
	p.assertOwner()

	now := time.Now()
	deadline := now.Add(timeoutMax)

	// Drain the pending releases before rebuilding the descriptor array.
	p.mu.Lock()
	for _, r := range p.relSockets {
		p.removeSocket(r)
	}
	p.relSockets = p.relSockets[:0]
	p.mu.Unlock()

	// The events to poll on change each spin of the loop.
	size := len(p.sockets)
	if cap(p.pollFds) < size+1 {
		p.pollFds = make([]netpoll.PollFd, size+1)
	}
	p.pollFds = p.pollFds[:size+1]
	for i, s := range p.sockets {
		p.pollFds[i] = netpoll.PollFd{Fd: int32(s.FD()), Events: s.PollEvents()}
		if t := s.UpdateTimeout(deadline); t.Before(deadline) {
			deadline = t
		}
	}
	// The read-end of the wake pipe is always the last entry.
	p.pollFds[size] = netpoll.PollFd{Fd: int32(p.wakeupR), Events: netpoll.PollIn}

	if _, err := netpoll.Poll(p.pollFds, time.Until(deadline)); err != nil {
		p.opts.Logger.Errorf("poll error in [%s]: %v", p.name, err)
	}

	// Fire the handlers and remove dead sockets. Reverse index order so
	// removals don't invalidate the remaining indices.
	now = time.Now()
	for i := size - 1; i >= 0; i-- {
		s := p.sockets[i]
		// A producer may have queued the release while we were waiting;
		// polling a released socket is fine, invoking its handler is not.
		if p.unqueueRelease(s) {
			p.opts.Logger.Debugf("releasing socket #%d (of %d) from [%s]", s.FD(), len(p.sockets), p.name)
			p.removeAt(i)
			continue
		}
		if p.pollFds[i].Revents == 0 {
			continue
		}
		if p.dispatch(s, now, p.pollFds[i].Revents) == SocketClosed {
			p.opts.Logger.Debugf("removing socket #%d (of %d) from [%s]", s.FD(), len(p.sockets), p.name)
			p.removeAt(i)
			_ = s.Close()
		}
	}

	// Process the wakeup pipe.
	if p.pollFds[size].Revents != 0 {
		var invoke []CallbackFn
		p.mu.Lock()
		netpoll.Drain(p.wakeupR)
		for _, s := range p.newSockets {
			if m, ok := s.(ownerMarker); ok {
				m.markOwner(atomic.LoadUint64(&p.pollerGoros))
			}
			p.sockets = append(p.sockets, s)
		}
		p.newSockets = p.newSockets[:0]
		for p.callbacks.Length() > 0 {
			invoke = append(invoke, p.callbacks.Remove().(CallbackFn))
		}
		p.mu.Unlock()
		atomic.StoreInt32(&p.count, int32(len(p.sockets)))

		for _, fn := range invoke {
			fn()
		}
		if p.opts.WakeupHook != nil {
			p.opts.WakeupHook()
		}
	}
}

// dispatch invokes HandlePoll, turning a handler panic into SOCKET_CLOSED
// so it never propagates across the tick boundary.
func (p *SocketPoll) dispatch(s Socket, now time.Time, revents int16) (res HandleResult) {
	res = SocketClosed
	defer func() {
		if r := recover(); r != nil {
			p.opts.Logger.Errorf("error while handling poll for socket #%d in [%s]: %v", s.FD(), p.name, r)
		}
	}()
	return s.HandlePoll(now, revents)
}

// removeAt drops the socket at index i from the active set.
func (p *SocketPoll) removeAt(i int) {
	p.sockets = append(p.sockets[:i], p.sockets[i+1:]...)
	atomic.StoreInt32(&p.count, int32(len(p.sockets)))
}

// removeSocket drops s from the active set if present. Poller goroutine only.
func (p *SocketPoll) removeSocket(s Socket) {
	for i, cur := range p.sockets {
		if cur == s {
			p.removeAt(i)
			return
		}
	}
}

// unqueueRelease takes s out of the pending-release queue, reporting
// whether it was there.
func (p *SocketPoll) unqueueRelease(s Socket) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, r := range p.relSockets {
		if r == s {
			p.relSockets = append(p.relSockets[:i], p.relSockets[i+1:]...)
			return true
		}
	}
	return false
}

// wakeupFD writes one byte to a wakeup descriptor, retrying on EINTR.
// EAGAIN means the pipe is already non-empty, so the loop wakes anyway.
func wakeupFD(fd int) {
	for {
		_, err := unix.Write(fd, []byte("w"))
		if err == unix.EINTR {
			continue
		}
		return
	}
}

// Wakeup interrupts the poll wait from another goroutine.
func (p *SocketPoll) Wakeup() {
	wakeupFD(p.wakeupW)
}

// WakeupWorld wakes every socket poll in the process.
func WakeupWorld() {
	allPolls.Lock()
	defer allPolls.Unlock()
	for _, wfd := range allPolls.wfds {
		wakeupFD(wfd)
	}
}

// InsertNewSocket queues a socket for insertion; it joins the active set at
// the next wake-up. Sockets are removed only when their handler reports
// SOCKET_CLOSED or through ReleaseSocket.
func (p *SocketPoll) InsertNewSocket(s Socket) error {
	if s == nil {
		return derrors.ErrNilSocket
	}
	if !p.ContinuePolling() {
		return derrors.ErrPollerStopped
	}
	p.mu.Lock()
	p.opts.Logger.Debugf("inserting socket #%d into [%s]", s.FD(), p.name)
	p.newSockets = append(p.newSockets, s)
	p.mu.Unlock()
	p.Wakeup()
	return nil
}

// AddCallback queues fn to be invoked on the polling goroutine at the next
// wake-up; the way to move work off producer goroutines without locking the
// active set.
func (p *SocketPoll) AddCallback(fn CallbackFn) error {
	if fn == nil {
		return derrors.ErrNilCallback
	}
	if !p.ContinuePolling() {
		return derrors.ErrPollerStopped
	}
	p.mu.Lock()
	p.callbacks.Add(fn)
	p.mu.Unlock()
	p.Wakeup()
	return nil
}

// ReleaseSocket removes a socket from this poller without closing it, e.g.
// to transfer it to another poller. Release is two-phase so a socket whose
// index is still in the current dispatch pass is not dropped mid-tick.
func (p *SocketPoll) ReleaseSocket(s Socket) {
	if s == nil {
		return
	}
	p.mu.Lock()
	p.opts.Logger.Debugf("queuing to release socket #%d from [%s]", s.FD(), p.name)
	p.relSockets = append(p.relSockets, s)
	p.mu.Unlock()
	p.Wakeup()
}

// DumpState logs a snapshot of the poller for diagnostics.
func (p *SocketPoll) DumpState() {
	p.opts.Logger.Infof("socket poll [%s]: %d socket(s)", p.name, p.SocketCount())
}
