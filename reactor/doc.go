// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the edge-triggered event loop used by the TCP
// server core: an epoll backed Poller, Channels binding a descriptor to its
// callbacks, and EventLoop which owns both plus a cross-thread task queue.
//
// Channels and the descriptors behind them are touched only by the goroutine
// running their EventLoop. Other goroutines hand work over with PushTask.
package reactor
