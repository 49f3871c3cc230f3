// Package di provides a small dependency injection container with named scopes.
//
// Services are registered with constructor functions and a lifetime. Besides the
// process-wide Singleton and the per-resolution Transient lifetimes, any other
// lifetime name is treated as a named scope ("request", "session", "websocket").
// Instances of scoped services live in the scope identified by the (name, id) pair
// carried on the context passed to Resolve.
//
// # Registration
//
//	c := di.New()
//	_ = c.Provide(NewGreeter)                        // singleton
//	_ = c.Provide(NewCart, di.WithLifetime(di.Session))
//	_ = c.Supply(cfg)                                // existing value
//
// Constructors take their dependencies as parameters and return T or (T, error).
// context.Context and *di.Container parameters are injected directly.
//
// # Scopes
//
//	ctx, err := c.OpenScope(ctx, di.Request, uuid.NewString())
//	defer c.CloseScope(ctx, di.Request, id)
//	cart, err := di.Resolve[*Cart](ctx, c)
//
// At most one instance per type is created within a scope. CloseScope releases a
// scope exactly once and closes its instances in reverse creation order. Instances
// are closed when they implement one of:
//
//	Close(context.Context) error
//	Close(context.Context)
//	Close() error
//	Close()
//
// # Shutdown
//
// DrainAndShutdown closes every live scope concurrently and then releases the
// singletons. After it returns, OpenScope and Resolve fail with ErrShutdown.
package di
