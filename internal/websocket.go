package internal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/forgeioc/pkg/di"
)

const wsCloseTimeout = time.Second

type wsConnKey struct{}

// WebSocketConn returns the connection of the websocket route being served.
// Methods that do not declare a *websocket.Conn parameter use it.
func WebSocketConn(ctx context.Context) (*websocket.Conn, bool) {
	conn, ok := ctx.Value(wsConnKey{}).(*websocket.Conn)
	return conn, ok && conn != nil
}

// websocketHandler serves a WEBSOCKET route. The controller is resolved per
// connection; the target method owns the read/write loop and the connection
// is closed when it returns.
func (a *App) websocketHandler(ctrl *controller, br boundRoute) http.HandlerFunc {
	scope := ctrl.desc.Scope
	if scope == di.Request {
		scope = di.WebSocket
	}

	return func(w http.ResponseWriter, r *http.Request) {
		release, ok := a.shutdown.track()
		if !ok {
			recordError(w, r, ErrServiceUnavailable("server is shutting down").WithCause(ErrAppStopping))
			return
		}
		defer release()

		ctx := r.Context()
		inst, err := a.container.Resolve(ctx, ctrl.typ, scope)
		if err != nil {
			recordError(w, r, err)
			return
		}

		conn, err := a.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already answered the client.
			a.logger.WarnContext(ctx, "websocket upgrade failed", slog.Any("error", err))
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.WithValue(ctx, wsConnKey{}, conn))
		defer cancel()
		go a.closeOnShutdown(ctx, conn)

		args, err := br.plan.bind(ctx, a.container, w, r.WithContext(ctx), conn)
		if err == nil {
			in := append([]reflect.Value{reflect.ValueOf(inst)}, args...)
			_, err = awaitJoined(ctx, br.outputs.toFuture(br.method.Func.Call(in)))
		}
		if err != nil && !isNormalClose(err) {
			a.logger.ErrorContext(ctx, "websocket handler failed",
				slog.String("route", br.pattern),
				slog.Any("error", err),
			)
			writeClose(conn, websocket.CloseInternalServerErr, "internal error")
		}
	}
}

// closeOnShutdown closes the connection when the app starts stopping, which
// unblocks the handler's read loop.
func (a *App) closeOnShutdown(ctx context.Context, conn *websocket.Conn) {
	select {
	case <-ctx.Done():
	case <-a.shutdown.stopping():
		writeClose(conn, websocket.CloseGoingAway, "server shutting down")
		_ = conn.Close()
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsCloseTimeout))
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, context.Canceled)
}
