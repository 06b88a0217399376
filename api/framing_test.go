package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFramingMode(t *testing.T) {
	for in, want := range map[string]FramingMode{
		"raw":             FramingRaw,
		"none":            FramingRaw,
		"length-prefixed": FramingLengthPrefixed,
		"header":          FramingLengthPrefixed,
		"delimiter":       FramingDelimiter,
		"sep":             FramingDelimiter,
	} {
		got, err := ParseFramingMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFramingMode("xml")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFramingModeStringRoundTrips(t *testing.T) {
	for _, m := range []FramingMode{FramingRaw, FramingLengthPrefixed, FramingDelimiter} {
		back, err := ParseFramingMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, back)
	}
	assert.Equal(t, "framing(9)", FramingMode(9).String())
}
