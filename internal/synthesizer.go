package internal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/go-chi/chi/v5"
)

// ParamInfo describes one exposed handler parameter.
type ParamInfo struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Source string `json:"source"`
}

// RouteInfo describes a synthesized endpoint.
type RouteInfo struct {
	Options    map[string]any `json:"options,omitempty"`
	Responses  map[int]string `json:"responses,omitempty"`
	Verb       Verb           `json:"verb"`
	Pattern    string         `json:"pattern"`
	Name       string         `json:"name"`
	Controller string         `json:"controller"`
	Tags       []string       `json:"tags,omitempty"`
	Params     []ParamInfo    `json:"params"`
}

// synthesize turns the registered controllers into routes. It fails with
// ErrNoControllers when nothing is registered.
func (a *App) synthesize(ctx context.Context) (func(chi.Router), []RouteInfo, error) {
	ctrls := a.registry.discover()
	if len(ctrls) == 0 {
		return nil, nil, ErrNoControllers
	}

	var infos []RouteInfo
	for _, ctrl := range ctrls {
		for _, br := range ctrl.routes {
			if err := br.plan.finalize(a.container); err != nil {
				return nil, nil, fmt.Errorf("%s.%s: %w", ctrl.typ, br.method.Name, err)
			}
			ws := br.desc.Verb == WEBSOCKET
			if ws && !br.plan.hasWS {
				a.logger.DebugContext(ctx, "websocket method declares no *websocket.Conn parameter, exposing it as \"websocket\"",
					slog.String("controller", ctrl.typ.String()),
					slog.String("method", br.method.Name),
				)
			}
			infos = append(infos, RouteInfo{
				Verb:       br.desc.Verb,
				Pattern:    br.pattern,
				Name:       routeName(ctrl, br),
				Controller: ctrl.typ.String(),
				Tags:       ctrl.desc.Tags,
				Responses:  ctrl.desc.Responses,
				Options:    br.desc.Options,
				Params:     br.plan.infos(ws),
			})
		}
	}

	mount := func(r chi.Router) {
		for _, ctrl := range ctrls {
			r.Group(func(g chi.Router) {
				g.Use(ctrl.desc.Dependencies...)
				for _, br := range ctrl.routes {
					if br.desc.Verb == WEBSOCKET {
						g.Get(br.pattern, a.websocketHandler(ctrl, br))
						continue
					}
					g.Method(string(br.desc.Verb), br.pattern, a.httpHandler(ctrl, br))
				}
			})
		}
	}
	return mount, infos, nil
}

// httpHandler resolves the controller, calls the method through a Future and
// normalizes the awaited value. Errors go to the request's error slot.
func (a *App) httpHandler(ctrl *controller, br boundRoute) http.HandlerFunc {
	status := defaultStatus(br.desc.Options)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		inst, err := a.container.Resolve(ctx, ctrl.typ, ctrl.desc.Scope)
		if err != nil {
			recordError(w, r, fmt.Errorf("resolve %s: %w", ctrl.typ, err))
			return
		}
		args, err := br.plan.bind(ctx, a.container, w, r, nil)
		if err != nil {
			recordError(w, r, err)
			return
		}

		in := append([]reflect.Value{reflect.ValueOf(inst)}, args...)
		val, err := awaitJoined(ctx, br.outputs.toFuture(br.method.Func.Call(in)))
		if err == nil && !(val == nil && wroteResponse(w)) {
			err = render(w, r, val, status)
		}
		if err != nil {
			recordError(w, r, err)
		}
	}
}

// wroteResponse reports whether a handler that took the ResponseWriter
// already answered.
func wroteResponse(w http.ResponseWriter) bool {
	rw, ok := ResponseWriterFrom(w)
	return ok && (rw.Written() || rw.Hijacked())
}

func defaultStatus(opts map[string]any) int {
	if code, ok := opts["status_code"].(int); ok && code >= 100 && code <= 599 {
		return code
	}
	return http.StatusOK
}

func routeName(ctrl *controller, br boundRoute) string {
	if name, ok := br.desc.Options["name"].(string); ok && name != "" {
		return name
	}
	return ctrl.typ.String() + "." + br.method.Name
}
