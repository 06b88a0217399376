// File: core/buffer/framer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Framing strategies. A Framer is chosen once per connection and drives both
// message extraction on read and message encoding on write.

package buffer

import (
	"bytes"
	"encoding/binary"

	"github.com/momentics/hioload-tcp/api"
)

// HeaderSize is the length prefix size in FramingLengthPrefixed mode.
const HeaderSize = 4

// Framer splits a byte stream into messages and encodes outgoing ones.
type Framer interface {
	// Next inspects buffered bytes and reports the first complete message
	// and how many bytes it occupies, or ok=false when none is complete.
	// The returned slice aliases data.
	Next(data []byte) (msg []byte, consumed int, ok bool)
	// Encode appends the wire form of payload to dst.
	Encode(dst, payload []byte) []byte
	// Oversized reports whether the first message in data already has, or
	// must end up with, a payload longer than max bytes.
	Oversized(data []byte, max int) bool
	Mode() api.FramingMode
}

// NewFramer returns the strategy for mode. delim is only used by
// FramingDelimiter.
func NewFramer(mode api.FramingMode, delim [4]byte) Framer {
	switch mode {
	case api.FramingLengthPrefixed:
		return lengthFramer{}
	case api.FramingDelimiter:
		return delimiterFramer{delim: delim}
	default:
		return rawFramer{}
	}
}

type rawFramer struct{}

func (rawFramer) Next(data []byte) ([]byte, int, bool) {
	if len(data) == 0 {
		return nil, 0, false
	}
	return data, len(data), true
}

func (rawFramer) Encode(dst, payload []byte) []byte   { return append(dst, payload...) }
func (rawFramer) Oversized(data []byte, max int) bool { return len(data) > max }
func (rawFramer) Mode() api.FramingMode               { return api.FramingRaw }

// lengthFramer uses a uint32 length in host byte order. Peers must share
// endianness.
type lengthFramer struct{}

func (lengthFramer) Next(data []byte) ([]byte, int, bool) {
	if len(data) < HeaderSize {
		return nil, 0, false
	}
	n := int(binary.NativeEndian.Uint32(data[:HeaderSize]))
	if len(data)-HeaderSize < n {
		return nil, 0, false
	}
	return data[HeaderSize : HeaderSize+n], HeaderSize + n, true
}

func (lengthFramer) Encode(dst, payload []byte) []byte {
	dst = binary.NativeEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// Oversized trusts the declared length, so a hostile header is caught
// before its payload is buffered.
func (lengthFramer) Oversized(data []byte, max int) bool {
	if len(data) < HeaderSize {
		return false
	}
	return uint64(binary.NativeEndian.Uint32(data[:HeaderSize])) > uint64(max)
}

func (lengthFramer) Mode() api.FramingMode { return api.FramingLengthPrefixed }

// delimiterFramer yields frames that include their trailing delimiter.
type delimiterFramer struct {
	delim [4]byte
}

func (f delimiterFramer) Next(data []byte) ([]byte, int, bool) {
	i := bytes.Index(data, f.delim[:])
	if i < 0 {
		return nil, 0, false
	}
	end := i + len(f.delim)
	return data[:end], end, true
}

func (f delimiterFramer) Encode(dst, payload []byte) []byte {
	dst = append(dst, payload...)
	return append(dst, f.delim[:]...)
}

// Oversized allows for a delimiter split across reads: up to three of its
// bytes may sit unmatched at the tail.
func (f delimiterFramer) Oversized(data []byte, max int) bool {
	if i := bytes.Index(data, f.delim[:]); i >= 0 {
		return i > max
	}
	return len(data) > max+len(f.delim)-1
}

func (delimiterFramer) Mode() api.FramingMode { return api.FramingDelimiter }
