// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for hioload-tcp components.

package benchmarks

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/client"
	"github.com/momentics/hioload-tcp/core/buffer"
	"github.com/momentics/hioload-tcp/core/concurrency"
	"github.com/momentics/hioload-tcp/internal/logging"
	"github.com/momentics/hioload-tcp/server"
)

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// BenchmarkBufferPoolRecycle measures Get/Put on the connection buffer pool.
func BenchmarkBufferPoolRecycle(b *testing.B) {
	p := buffer.NewPool(buffer.NewFramer(api.FramingLengthPrefixed, api.DefaultDelimiter))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := p.Get()
			buf.AppendMessage([]byte("x"))
			p.Put(buf)
		}
	})
}

// BenchmarkLengthFraming appends and picks one 1 KiB message per iteration.
func BenchmarkLengthFraming(b *testing.B) {
	buf := buffer.New(buffer.NewFramer(api.FramingLengthPrefixed, api.DefaultDelimiter))
	payload := make([]byte, 1024)
	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.AppendMessage(payload)
		if _, ok := buf.PickMessage(); !ok {
			b.Fatal("message lost")
		}
	}
}

// BenchmarkDelimiterFraming is the delimiter-mode counterpart.
func BenchmarkDelimiterFraming(b *testing.B) {
	buf := buffer.New(buffer.NewFramer(api.FramingDelimiter, api.DefaultDelimiter))
	payload := make([]byte, 1024)
	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.AppendMessage(payload)
		if _, ok := buf.PickMessage(); !ok {
			b.Fatal("message lost")
		}
	}
}

// BenchmarkLockFreeQueueThroughput tests the MPMC queue under contention.
func BenchmarkLockFreeQueueThroughput(b *testing.B) {
	q := concurrency.NewLockFreeQueue[int](1024)
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if !q.Enqueue(i) {
				q.Dequeue()
				q.Enqueue(i)
			}
			i++
		}
	})
}

// BenchmarkWorkerPoolDispatch measures AddTask to completion.
func BenchmarkWorkerPoolDispatch(b *testing.B) {
	pool, err := concurrency.NewWorkerPool(4, concurrency.DefaultQueueSize, logging.Wrap(quiet()))
	if err != nil {
		b.Fatal(err)
	}
	defer pool.Stop()

	var wg sync.WaitGroup
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wg.Add(1)
		for !pool.AddTask(wg.Done) {
		}
	}
	wg.Wait()
}

// BenchmarkEchoRoundTrip sends one framed request and waits for its echo.
func BenchmarkEchoRoundTrip(b *testing.B) {
	cfg := server.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.WorkerLoops = 2
	cfg.MessageWorkers = 0
	cfg.PollTimeout = 100 * time.Millisecond
	cfg.AcceptPollTimeout = 100 * time.Millisecond
	cfg.Logger = quiet()

	srv, err := server.New(cfg, server.WithOnMessage(func(c *server.Connection, m []byte) { _ = c.Send(m) }))
	if err != nil {
		b.Skip("server unavailable: ", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	defer func() {
		srv.Stop()
		<-done
	}()

	c, err := client.Dial(context.Background(), client.DefaultConfig(srv.Addr().String()))
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()

	payload := make([]byte, 512)
	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Request(payload); err != nil {
			b.Fatal(err)
		}
	}
}
