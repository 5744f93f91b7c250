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

//go:build !sockdebug

package docpoll

// Goroutine-ownership checks compile away unless the sockdebug tag is set.

func goroutineID() uint64 { return 0 }

func (s *sockFD) markOwner(uint64) {}

func (s *sockFD) assertOwner() {}

func (p *SocketPoll) assertOwner() {}
