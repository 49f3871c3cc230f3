package di

import "context"

// Closer releases resources held by a resolved instance.
type Closer interface {
	Close(ctx context.Context) error
}

type closerCtxNoErr interface{ Close(ctx context.Context) }

type closerErr interface{ Close() error }

type closerNoErr interface{ Close() }

type closeFunc func(context.Context) error

func (f closeFunc) Close(ctx context.Context) error { return f(ctx) }

// closerFor adapts any supported Close signature to Closer.
// Returns nil when the value has no Close method.
func closerFor(val any) Closer {
	switch c := val.(type) {
	case Closer:
		return c
	case closerCtxNoErr:
		return closeFunc(func(ctx context.Context) error {
			c.Close(ctx)
			return nil
		})
	case closerErr:
		return closeFunc(func(context.Context) error { return c.Close() })
	case closerNoErr:
		return closeFunc(func(context.Context) error {
			c.Close()
			return nil
		})
	default:
		return nil
	}
}
