// File: api/framing.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "fmt"

// FramingMode selects how a byte stream is split into application messages.
type FramingMode int

const (
	// FramingRaw treats everything currently buffered as one message.
	FramingRaw FramingMode = iota
	// FramingLengthPrefixed prefixes each payload with a 4-byte length in host byte order.
	FramingLengthPrefixed
	// FramingDelimiter terminates each payload with a fixed 4-byte delimiter.
	FramingDelimiter
)

// DefaultDelimiter terminates messages in FramingDelimiter mode.
var DefaultDelimiter = [4]byte{'\r', '\n', '\r', '\n'}

func (m FramingMode) String() string {
	switch m {
	case FramingRaw:
		return "raw"
	case FramingLengthPrefixed:
		return "length-prefixed"
	case FramingDelimiter:
		return "delimiter"
	default:
		return fmt.Sprintf("framing(%d)", int(m))
	}
}

// ParseFramingMode maps a configuration string onto a FramingMode.
func ParseFramingMode(s string) (FramingMode, error) {
	switch s {
	case "raw", "none":
		return FramingRaw, nil
	case "length-prefixed", "length", "header":
		return FramingLengthPrefixed, nil
	case "delimiter", "sep":
		return FramingDelimiter, nil
	}
	return 0, fmt.Errorf("%w: unknown framing mode %q", ErrInvalidConfig, s)
}
