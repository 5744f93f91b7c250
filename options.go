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

import (
	"time"

	"github.com/docpoll/docpoll/logging"
)

// Option is a function that will set up option.
type Option func(opts *Options)

// Options configure a SocketPoll.
type Options struct {
	// PollCeiling bounds the time one tick may spend blocked in poll(2), so
	// Stop is observed promptly. Individual sockets may contract it further
	// via UpdateTimeout. Defaults to 5 seconds.
	PollCeiling time.Duration

	// WakeupHook runs on the poller goroutine at the end of every wake-up,
	// after the queued callbacks.
	WakeupHook func()

	// Logger is the customized logger for the poller, defaults to the
	// logging package's default logger.
	Logger logging.Logger
}

func initOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	if opts.PollCeiling <= 0 {
		opts.PollCeiling = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetDefaultLogger()
	}
	return opts
}

// WithPollCeiling sets up the maximum time one tick blocks in poll(2).
func WithPollCeiling(d time.Duration) Option {
	return func(opts *Options) {
		opts.PollCeiling = d
	}
}

// WithWakeupHook sets up the hook executed inside the poll in case of a
// wakeup.
func WithWakeupHook(fn func()) Option {
	return func(opts *Options) {
		opts.WakeupHook = fn
	}
}

// WithLogger sets up a customized logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}
