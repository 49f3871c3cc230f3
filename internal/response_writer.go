package internal

import (
	"bufio"
	"net"
	"net/http"
	"sync"
)

type writerState uint8

const (
	statePending writerState = iota
	stateStarted
	stateHijacked
)

// ResponseWriter is the writer every request sees inside an App. It tells
// the error renderer and Timeout whether a response already went out, and
// lets session middleware set cookies at the last moment.
type ResponseWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	state   writerState
	status  int
	size    int64
	pending []func()
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

// OnBeforeWrite queues fn to run just before the status line is sent, while
// headers are still mutable. Queued hooks run in order, at most once.
func (w *ResponseWriter) OnBeforeWrite(fn func()) {
	w.mu.Lock()
	w.pending = append(w.pending, fn)
	w.mu.Unlock()
}

// commit moves a pending writer to started and sends the status line.
// It is a no-op once the response started or the conn was hijacked.
func (w *ResponseWriter) commit(code int) {
	w.mu.Lock()
	if w.state != statePending {
		w.mu.Unlock()
		return
	}
	w.state, w.status = stateStarted, code
	hooks := w.pending
	w.pending = nil
	w.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *ResponseWriter) WriteHeader(code int) {
	w.commit(code)
}

func (w *ResponseWriter) Write(b []byte) (int, error) {
	w.commit(http.StatusOK)
	n, err := w.ResponseWriter.Write(b)
	w.mu.Lock()
	w.size += int64(n)
	w.mu.Unlock()
	return n, err
}

func (w *ResponseWriter) is(s writerState) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == s
}

// Status is the status sent so far; 200 before anything was written.
func (w *ResponseWriter) Status() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Size counts body bytes passed to the underlying writer.
func (w *ResponseWriter) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *ResponseWriter) Written() bool  { return w.is(stateStarted) }
func (w *ResponseWriter) Hijacked() bool { return w.is(stateHijacked) }

func (w *ResponseWriter) Flush() {
	w.commit(http.StatusOK)
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack hands the conn to a websocket upgrader. Queued hooks are dropped.
func (w *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	conn, buf, err := h.Hijack()
	if err != nil {
		return nil, nil, err
	}
	w.mu.Lock()
	w.state, w.pending = stateHijacked, nil
	w.mu.Unlock()
	return conn, buf, nil
}

// Unwrap supports http.ResponseController.
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// ResponseWriterFrom digs the App writer out of middleware wrappers that
// implement Unwrap.
func ResponseWriterFrom(w http.ResponseWriter) (*ResponseWriter, bool) {
	for w != nil {
		switch v := w.(type) {
		case *ResponseWriter:
			return v, true
		case interface{ Unwrap() http.ResponseWriter }:
			w = v.Unwrap()
		default:
			return nil, false
		}
	}
	return nil, false
}
