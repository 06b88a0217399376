// Package api
// Author: momentics
//
// ThreadPool contract for executing business callbacks and event loops off the caller.

package api

// ThreadPool is an opaque FIFO executor. Implementations provide their own
// synchronization; the reactor core never depends on pool internals.
type ThreadPool interface {
	// AddTask schedules task for execution. It returns false when the task is
	// rejected, e.g. the queue is full or the pool has been stopped.
	AddTask(task func()) bool

	// Stop rejects new tasks and waits for running workers to exit.
	Stop()

	// WorkerCount returns the number of worker routines.
	WorkerCount() int
}
