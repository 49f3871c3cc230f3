package di

// Built-in lifetimes and scope names.
const (
	// Singleton services are created once per container.
	Singleton = "singleton"

	// Transient services are created on every resolution and are never cached or closed.
	Transient = "transient"

	// Request scope lives for a single HTTP request.
	Request = "request"

	// Session scope lives for a logical user session across requests.
	Session = "session"

	// WebSocket scope lives for the duration of a websocket connection.
	WebSocket = "websocket"
)

// isScoped reports whether the lifetime name refers to a named scope.
func isScoped(lifetime string) bool {
	return lifetime != Singleton && lifetime != Transient && lifetime != ""
}

// outlives reports whether a service with lifetime a may hold a reference to a
// service with lifetime b without capturing a shorter-lived instance.
func outlives(a, b string) bool {
	if !isScoped(b) {
		return false
	}
	switch a {
	case Singleton:
		return true
	case Session:
		return b != Session
	default:
		return false
	}
}
