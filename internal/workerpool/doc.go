// Package workerpool implements a bounded, multi-queue worker pool.
//
// The pool owns a fixed number of FIFO queues, each with a fixed capacity and a fixed
// number of worker goroutines. Submit never blocks: it tries a random queue first and
// probes the others linearly, and records a rejection when all of them are full.
// Workers park on their own queue's condition variable and are woken one at a time by
// enqueues and all at once by Shutdown.
//
// Stats is shared between the pool and its caller and collects submission counters,
// wait and execution samples, and the time each queue spent at capacity.
//
// NOTE that the pool does not recover panics raised by payloads.
package workerpool
