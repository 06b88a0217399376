// File: transport/netip.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import "net/netip"

func netipAddrPort4(ip [4]byte, port int) netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4(ip), uint16(port))
}

func netipAddrPort6(ip [16]byte, port int) netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom16(ip), uint16(port))
}
