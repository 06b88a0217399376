// File: transport/address.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Address is an immutable IPv4/IPv6 socket address value.

package transport

import (
	"net"
	"net/netip"
	"strconv"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-tcp/api"
)

// Family is the address family of an Address.
type Family int

const (
	FamilyUnspec Family = iota
	FamilyV4
	FamilyV6
)

func (f Family) String() string {
	switch f {
	case FamilyV4:
		return "ipv4"
	case FamilyV6:
		return "ipv6"
	default:
		return "unspec"
	}
}

// Address wraps an ip:port pair. The zero value is invalid.
type Address struct {
	ap netip.AddrPort
}

// ParseAddress parses "ip:port", "[ipv6]:port" or ":port".
// An empty host binds to all IPv4 interfaces.
func ParseAddress(s string) (Address, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, errors.Wrapf(api.ErrInvalidAddress, "%q: %v", s, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Address{}, errors.Wrapf(api.ErrInvalidAddress, "%q: bad port", s)
	}
	if host == "" {
		return AnyAddress(uint16(port), false), nil
	}
	return NewAddress(host, uint16(port))
}

// NewAddress builds an Address from a literal IP and a port.
func NewAddress(ip string, port uint16) (Address, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return Address{}, errors.Wrapf(api.ErrInvalidAddress, "%q: %v", ip, err)
	}
	return Address{ap: netip.AddrPortFrom(addr, port)}, nil
}

// AnyAddress returns the wildcard address of the requested family.
func AnyAddress(port uint16, v6 bool) Address {
	if v6 {
		return Address{ap: netip.AddrPortFrom(netip.IPv6Unspecified(), port)}
	}
	return Address{ap: netip.AddrPortFrom(netip.IPv4Unspecified(), port)}
}

// AddressFrom wraps an existing netip.AddrPort.
func AddressFrom(ap netip.AddrPort) Address {
	return Address{ap: ap}
}

func (a Address) IsValid() bool { return a.ap.IsValid() }

// Family reports v4 for IPv4 and IPv4-mapped addresses.
func (a Address) Family() Family {
	switch {
	case !a.ap.IsValid():
		return FamilyUnspec
	case a.ap.Addr().Unmap().Is4():
		return FamilyV4
	default:
		return FamilyV6
	}
}

func (a Address) IP() netip.Addr           { return a.ap.Addr() }
func (a Address) Port() uint16             { return a.ap.Port() }
func (a Address) AddrPort() netip.AddrPort { return a.ap }

// String formats the address as "ip:port", bracketing IPv6 hosts.
func (a Address) String() string {
	if !a.ap.IsValid() {
		return "invalid"
	}
	return a.ap.String()
}
