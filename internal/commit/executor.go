// Package commit applies text mutations to files under a single-writer
// discipline: every write runs exclusively on one executor goroutine and is
// applied all-or-nothing.
package commit

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned when work is submitted to a closed executor.
var ErrClosed = errors.New("commit: executor closed")

// Executor grants exclusive mutation rights.
// fn must not call RunExclusive on the same executor.
type Executor interface {
	RunExclusive(ctx context.Context, fn func() error) error
}

type job struct {
	ctx    context.Context
	fn     func() error
	result chan error
}

// Serial is an Executor backed by one goroutine draining a job queue.
type Serial struct {
	jobs      chan job
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSerial starts a serial executor. Call Close to stop it.
func NewSerial() *Serial {
	s := &Serial{
		jobs: make(chan job),
		done: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *Serial) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case j := <-s.jobs:
			j.result <- s.run(j)
		}
	}
}

func (s *Serial) run(j job) (err error) {
	if err := j.ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("commit: exclusive function panicked: %v", r)
		}
	}()
	return j.fn()
}

// RunExclusive runs fn on the executor goroutine and returns its error.
// Once fn has been accepted the call waits for it to finish, so the caller
// never resumes while its mutation is still pending. A context cancelled
// before fn starts makes fn not run at all.
func (s *Serial) RunExclusive(ctx context.Context, fn func() error) error {
	j := job{ctx: ctx, fn: fn, result: make(chan error, 1)}

	select {
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.jobs <- j:
	}
	return <-j.result
}

// Close stops the executor and waits for the running job to finish.
func (s *Serial) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}
