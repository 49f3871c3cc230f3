package internal

import (
	"context"
	"errors"
	"fmt"
)

// Future is the single execution contract of synthesized handlers: every
// target method call is turned into a Future and awaited.
type Future interface {
	// Await blocks until the value is available or ctx is done.
	Await(ctx context.Context) (any, error)
}

type future struct {
	val  any
	err  error
	done chan struct{}
}

func (f *future) resolve(val any, err error) {
	f.val, f.err = val, err
	close(f.done)
}

// Await prefers a completed value over a cancelled ctx.
func (f *future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
	}
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the value is set.
func (f *future) Done() <-chan struct{} {
	return f.done
}

// awaitJoined awaits f and, when ctx ends first, keeps waiting for work
// started by Async so nothing outlives the scope that is about to close.
// The ctx error is still what the caller gets.
func awaitJoined(ctx context.Context, f Future) (any, error) {
	val, err := f.Await(ctx)
	if err == nil || ctx.Err() == nil || !errors.Is(err, ctx.Err()) {
		return val, err
	}
	if j, ok := f.(interface{ Done() <-chan struct{} }); ok {
		<-j.Done()
	}
	return val, err
}

// Resolved returns a Future that is already complete.
func Resolved(val any, err error) Future {
	f := &future{done: make(chan struct{})}
	f.resolve(val, err)
	return f
}

// Async runs fn in its own goroutine. A panic in fn becomes the future's error.
//
// Example:
//
//	func (c *Reports) Build(ctx context.Context) forgeioc.Future {
//	    return forgeioc.Async(func() (any, error) {
//	        return c.svc.Render(ctx)
//	    })
//	}
func Async(fn func() (any, error)) Future {
	f := &future{done: make(chan struct{})}
	go func() {
		var (
			val any
			err error
		)
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("forgeioc: async handler panicked: %v", p)
			}
			f.resolve(val, err)
		}()
		val, err = fn()
	}()
	return f
}
