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

	"golang.org/x/sys/unix"

	derrors "github.com/docpoll/docpoll/errors"
)

// tcpSockaddr resolves a tcp/tcp4/tcp6 address into the socket family and
// the sockaddr to bind or connect to.
func tcpSockaddr(network, address string) (int, unix.Sockaddr, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
	default:
		return 0, nil, derrors.ErrUnsupportedProtocol
	}

	addr, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		return 0, nil, err
	}

	if ip4 := addr.IP.To4(); ip4 != nil || network == "tcp4" || addr.IP == nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		if ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return unix.AF_INET, sa, nil
	}

	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	if addr.Zone != "" {
		if iface, err := net.InterfaceByName(addr.Zone); err == nil {
			sa.ZoneId = uint32(iface.Index)
		}
	}
	return unix.AF_INET6, sa, nil
}
