// Package internal provides the core types and implementation for forgeioc.
//
// This package is internal and should not be used directly. Import
// "github.com/dmitrymomot/forgeioc" instead, which re-exports the public API.
//
// # Core Types
//
//   - App: builds the pipeline from a di.Container and serves it
//   - Pipeline: the middleware stack and route table configurers mutate
//   - Configurer / Prioritizer: boot hooks ordered by priority
//   - Registry: the controller table; each controller is a container provider
//   - RouteDescriptor / ControllerDescriptor: route and controller metadata
//   - Future: the single execution contract for controller methods
//   - SessionManager: cookie-backed sessions on top of session.Store
//
// # Pipeline Order
//
// Configurers with a negative priority are applied first, in ascending order.
// They form the outer group: they see every request before any container
// scope exists. Then the scope binder is installed, then the remaining
// configurers in ascending order. Equal priorities keep discovery order:
// options first, then container registration order. Routes are mounted
// behind the whole stack.
//
// For chi, the first Use is the outermost layer, so a request passes the
// outer group, the scope binder and the inner group, in that order.
//
// # Scopes
//
// Every HTTP request gets a "request" scope with a fresh id. Websocket
// upgrades get a "websocket" scope that lives as long as the connection.
// When sessions are enabled the request also joins the "session" scope whose
// id is stored in the session; that scope is closed when the session is
// destroyed, stays idle past the TTL, or the app shuts down.
//
// Scopes are always released, also when the handler fails or panics. Errors
// are rendered after the pipeline unwinds, so cleanup happens first.
//
// # Handler Methods
//
// Controller methods receive arguments by type: context.Context,
// *http.Request, http.ResponseWriter, *session.Session, *websocket.Conn,
// scalars from the path or query, one JSON body, and container services.
// They may return nothing, a value, (value, error), (value, status) or
// (value, status, headers), or a Future:
//
//	func (c *Greeter) Hello(ctx context.Context, name string) (Greeting, error)
//	func (c *Reports) Build(ctx context.Context, id int) forgeioc.Future
//
// Values are written as JSON unless they implement Responder or
// http.Handler.
package internal
