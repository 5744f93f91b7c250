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

// Package goroutine wires the ants worker pool used to run tile renders off
// the poller goroutine.
package goroutine

import (
	"time"

	"github.com/panjf2000/ants/v2"
)

const (
	// DefaultWorkerPoolSize caps the number of concurrent render workers.
	DefaultWorkerPoolSize = 1 << 8

	// ExpiryDuration is the interval to clean up expired workers.
	ExpiryDuration = 10 * time.Second

	// Nonblocking makes Submit return ants.ErrPoolOverload instead of waiting
	// when all workers are busy; callers fall back to running inline.
	Nonblocking = true
)

func init() {
	// Release the default pool ants spins up on its own.
	ants.Release()
}

// Pool is the alias of ants.Pool.
type Pool = ants.Pool

// Default instantiates a non-blocking *Pool with the capacity of DefaultWorkerPoolSize.
func Default() *Pool {
	options := ants.Options{ExpiryDuration: ExpiryDuration, Nonblocking: Nonblocking}
	pool, _ := ants.NewPool(DefaultWorkerPoolSize, ants.WithOptions(options))
	return pool
}

// New instantiates a non-blocking *Pool with the given capacity.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultWorkerPoolSize
	}
	options := ants.Options{ExpiryDuration: ExpiryDuration, Nonblocking: Nonblocking}
	pool, _ := ants.NewPool(size, ants.WithOptions(options))
	return pool
}
