package scheduler

import (
	"sync"
	"time"

	"github.com/wendizhou99-cell/Radar/pkg/radar"
)

//Future is a single-assignment result slot.
//It resolves exactly once; later resolutions are ignored. Get never
//returns before resolution and every waiter observes the same outcome.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

//Resolve fulfills the future with a value.
func (f *Future[T]) Resolve(value T) {
	f.once.Do(func() {
		f.value = value
		close(f.done)
	})
}

//Fail fulfills the future with an error.
func (f *Future[T]) Fail(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

//Done returns a channel closed on resolution.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

//Resolved reports whether the future has been fulfilled.
func (f *Future[T]) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

//Get blocks until the future resolves and returns its outcome.
//timeout 0 waits indefinitely; an elapsed timeout returns ErrTimeout
//without consuming the eventual resolution.
func (f *Future[T]) Get(timeout time.Duration) (T, error) {
	var zero T
	if timeout <= 0 {
		<-f.done
		return f.value, f.err
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-time.After(timeout):
		return zero, radar.ErrTimeout
	}
}
