// Package forgeioc serves controllers registered in a dependency injection
// container over HTTP and websockets.
//
// The container (package pkg/di) owns every service and controller. forgeioc
// turns it into an http.Handler: it opens a container scope per request,
// session and websocket connection, orders the configurers that build the
// middleware stack, synthesizes one route per controller method and drains
// the container when the server stops.
//
// # Quick Start
//
//	type Greeter struct{ clock *Clock }
//
//	func NewGreeter(clock *Clock) *Greeter { return &Greeter{clock: clock} }
//
//	func (g *Greeter) Hello(name string) map[string]string {
//	    return map[string]string{"message": "hello " + name, "at": g.clock.Now()}
//	}
//
//	c := di.New()
//	_ = c.Provide(NewClock)
//
//	app, err := forgeioc.New(c,
//	    forgeioc.WithController(NewGreeter, forgeioc.ControllerDescriptor{Prefix: "/greet"},
//	        forgeioc.Route(forgeioc.GET, "/{name}", "Hello"),
//	    ),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := app.Run(forgeioc.Address(":8080")); err != nil {
//	    log.Fatal(err)
//	}
//
// # Configurers
//
// A Configurer receives the Pipeline at boot and adds middleware, routes or
// shutdown hooks. Configurers come from WithConfigurers and from the
// container (any registered type implementing Configurer). A negative
// Priority puts a configurer in the outer group, which runs before the
// scope binder: it cannot see request or session scoped services. The inner
// group runs inside the scopes.
//
//	forgeioc.WithConfigurers(
//	    forgeioc.Middleware(-150, middlewares.RequestID()),
//	    forgeioc.ConfigurerFunc(10, func(p *forgeioc.Pipeline) {
//	        p.Use(auditMiddleware(p.Container()))
//	    }),
//	)
//
// # Controllers
//
// A controller is a constructor plus route descriptors. The constructor is
// registered with the controller's Scope as container lifetime ("request"
// by default). Methods receive arguments by type and return a value, an
// error, a status and headers, or a Future; see RouteDescriptor and Route.
//
// # Sessions
//
// WithSessions stores sessions server-side and joins every request of a
// session into one "session" container scope. Session scoped controllers
// keep state across requests of the same client:
//
//	forgeioc.WithSessions(session.NewCacheStore(cache.NewMemory[session.Session]()))
//
// # Shutdown
//
// Run handles SIGINT/SIGTERM. The HTTP server stops first, then the shutdown
// hooks run, then open websockets are closed and the container is drained,
// then closers such as the Redis client run. When the app is served by
// another server, call App.Shutdown after stopping it.
//
// # Settings
//
// Bootstrap and FromSettings build the options from a YAML file:
//
//	app, err := forgeioc.Bootstrap(ctx, c, "config.yaml", forgeioc.WithController(...))
package forgeioc
