package transport

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-tcp/api"
)

func TestParseAddress(t *testing.T) {
	cases := []struct {
		in     string
		family Family
		port   uint16
		str    string
	}{
		{"127.0.0.1:5085", FamilyV4, 5085, "127.0.0.1:5085"},
		{"0.0.0.0:0", FamilyV4, 0, "0.0.0.0:0"},
		{":8080", FamilyV4, 8080, "0.0.0.0:8080"},
		{"[::1]:9000", FamilyV6, 9000, "[::1]:9000"},
		{"[::ffff:10.0.0.1]:1", FamilyV4, 1, "[::ffff:10.0.0.1]:1"},
	}
	for _, tc := range cases {
		a, err := ParseAddress(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, a.IsValid())
		assert.Equal(t, tc.family, a.Family(), tc.in)
		assert.Equal(t, tc.port, a.Port(), tc.in)
		assert.Equal(t, tc.str, a.String(), tc.in)
	}
}

func TestParseAddressRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "localhost", "1.2.3.4", "1.2.3.4:99999", "host.example:80", "[::1]:x"} {
		_, err := ParseAddress(in)
		assert.ErrorIs(t, err, api.ErrInvalidAddress, in)
	}
}

func TestAddressValues(t *testing.T) {
	var zero Address
	assert.False(t, zero.IsValid())
	assert.Equal(t, FamilyUnspec, zero.Family())
	assert.Equal(t, "invalid", zero.String())

	any6 := AnyAddress(80, true)
	assert.Equal(t, FamilyV6, any6.Family())
	assert.True(t, any6.IP().IsUnspecified())

	ap := netip.MustParseAddrPort("192.0.2.7:443")
	a := AddressFrom(ap)
	assert.Equal(t, ap, a.AddrPort())
	assert.Equal(t, "ipv4", a.Family().String())

	b, err := NewAddress("192.0.2.7", 443)
	require.NoError(t, err)
	assert.Equal(t, a, b, "addresses compare by value")
}
