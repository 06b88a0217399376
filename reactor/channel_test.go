package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelHandleEventPriority(t *testing.T) {
	var got []string
	ch := NewChannel(nil, 3)
	ch.SetReadCallback(func() { got = append(got, "read") })
	ch.SetWriteCallback(func() { got = append(got, "write") })
	ch.SetCloseCallback(func() { got = append(got, "close") })
	ch.SetErrorCallback(func() { got = append(got, "error") })

	cases := []struct {
		ev   Events
		want string
	}{
		{EventPeerClosed | EventRead | EventWrite, "close"},
		{EventRead | EventWrite | EventError, "read"},
		{EventWrite, "write"},
		{EventError, "error"},
		{EventNone, "error"},
	}
	for _, c := range cases {
		got = got[:0]
		ch.HandleEvent(c.ev)
		assert.Equal(t, []string{c.want}, got, "events %s", c.ev)
	}
}

func TestChannelMissingCallbackIsSkipped(t *testing.T) {
	ch := NewChannel(nil, 3)
	assert.NotPanics(t, func() { ch.HandleEvent(EventRead) })
}

func TestEventsString(t *testing.T) {
	assert.Equal(t, "none", EventNone.String())
	assert.Equal(t, "read|edge", (EventRead | EventEdge).String())
}
