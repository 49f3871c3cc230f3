package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/forgeioc/pkg/di"
	"github.com/dmitrymomot/forgeioc/pkg/session"
)

// Parameter sources, as reported by RouteInfo.
const (
	SourceContext   = "context"
	SourceRequest   = "request"
	SourceResponse  = "response"
	SourceWebSocket = "websocket"
	SourceSession   = "session"
	SourcePath      = "path"
	SourceQuery     = "query"
	SourceBody      = "body"
	SourceContainer = "container"

	sourceAuto = "" // body or container, decided at synthesis
)

var (
	contextType  = reflect.TypeFor[context.Context]()
	requestType  = reflect.TypeFor[*http.Request]()
	responseType = reflect.TypeFor[http.ResponseWriter]()
	connType     = reflect.TypeFor[*websocket.Conn]()
	sessionType  = reflect.TypeFor[*session.Session]()
)

type param struct {
	typ    reflect.Type
	name   string
	source string
}

// paramPlan describes how to build a method's arguments (receiver excluded).
type paramPlan struct {
	params []param
	hasWS  bool
}

// planParams maps every parameter of m to a source. Scalars are named by
// rd.Params or, when empty, by the placeholders of pattern in order.
func planParams(m reflect.Method, rd RouteDescriptor, pattern string) (*paramPlan, error) {
	mt := m.Type
	if mt.IsVariadic() {
		return nil, fmt.Errorf("%w: %s is variadic", ErrInvalidParams, m.Name)
	}

	placeholders := pathParams(pattern)
	names := rd.Params
	if len(names) == 0 {
		names = placeholders
	}

	plan := &paramPlan{}
	scalars := 0
	for i := 1; i < mt.NumIn(); i++ {
		t := mt.In(i)
		p := param{typ: t}

		switch {
		case t == contextType:
			p.name, p.source = "ctx", SourceContext
		case t == requestType:
			p.name, p.source = "request", SourceRequest
		case t == responseType:
			p.name, p.source = "response", SourceResponse
		case t == sessionType:
			p.name, p.source = "session", SourceSession
		case t == connType:
			if rd.Verb != WEBSOCKET {
				return nil, fmt.Errorf("%w: %s takes *websocket.Conn on a %s route", ErrInvalidParams, m.Name, rd.Verb)
			}
			if plan.hasWS {
				return nil, fmt.Errorf("%w: %s takes more than one *websocket.Conn", ErrInvalidParams, m.Name)
			}
			p.name, p.source = "websocket", SourceWebSocket
			plan.hasWS = true
		case isScalar(t):
			if scalars >= len(names) {
				return nil, fmt.Errorf("%w: %s has more scalar parameters than names (%v)", ErrInvalidParams, m.Name, names)
			}
			p.name = names[scalars]
			p.source = SourceQuery
			if slices.Contains(placeholders, p.name) {
				p.source = SourcePath
			}
			scalars++
		default:
			p.name, p.source = t.String(), sourceAuto
		}
		plan.params = append(plan.params, p)
	}
	return plan, nil
}

// finalize decides body versus container injection for the remaining
// parameters once every provider is registered.
func (p *paramPlan) finalize(c *di.Container) error {
	bodies := 0
	for i := range p.params {
		prm := &p.params[i]
		if prm.source != sourceAuto {
			continue
		}
		switch {
		case c.Has(prm.typ):
			prm.source = SourceContainer
		case isStructLike(prm.typ):
			prm.name, prm.source = "body", SourceBody
			bodies++
		default:
			return fmt.Errorf("%w: %s is neither registered in the container nor a request body", ErrInvalidParams, prm.typ)
		}
	}
	if bodies > 1 {
		return fmt.Errorf("%w: more than one request body parameter", ErrInvalidParams)
	}
	return nil
}

// bind builds the argument list for one invocation.
func (p *paramPlan) bind(ctx context.Context, c *di.Container, w http.ResponseWriter, r *http.Request, conn *websocket.Conn) ([]reflect.Value, error) {
	args := make([]reflect.Value, len(p.params))
	for i, prm := range p.params {
		var (
			val any
			err error
		)
		switch prm.source {
		case SourceContext:
			val = ctx
		case SourceRequest:
			val = r
		case SourceResponse:
			val = w
		case SourceWebSocket:
			val = conn
		case SourceSession:
			sess, _ := session.FromContext(ctx)
			val = sess
		case SourcePath:
			val, err = parseScalar(prm, chi.URLParam(r, prm.name), true)
		case SourceQuery:
			raw, present := lookupQuery(r, prm.name)
			val, err = parseScalar(prm, raw, present)
		case SourceBody:
			val, err = decodeBody(r, prm.typ)
		case SourceContainer:
			val, err = c.Resolve(ctx, prm.typ, "")
		}
		if err != nil {
			return nil, err
		}
		args[i] = valueOf(val, prm.typ)
	}
	return args, nil
}

// infos returns RouteInfo parameters; the websocket connection is reported
// first under the name "websocket".
func (p *paramPlan) infos(ws bool) []ParamInfo {
	out := make([]ParamInfo, 0, len(p.params)+1)
	if ws {
		out = append(out, ParamInfo{Name: "websocket", Type: connType.String(), Source: SourceWebSocket})
	}
	for _, prm := range p.params {
		if prm.source == SourceWebSocket {
			continue
		}
		out = append(out, ParamInfo{Name: prm.name, Type: prm.typ.String(), Source: prm.source})
	}
	return out
}

// pathParams lists the {name} placeholders of a chi pattern in order.
func pathParams(pattern string) []string {
	var names []string
	for {
		start := strings.IndexByte(pattern, '{')
		if start < 0 {
			return names
		}
		end := strings.IndexByte(pattern[start:], '}')
		if end < 0 {
			return names
		}
		name := pattern[start+1 : start+end]
		if colon := strings.IndexByte(name, ':'); colon >= 0 {
			name = name[:colon]
		}
		names = append(names, name)
		pattern = pattern[start+end+1:]
	}
}

func lookupQuery(r *http.Request, name string) (string, bool) {
	q := r.URL.Query()
	if !q.Has(name) {
		return "", false
	}
	return q.Get(name), true
}

func isScalar(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isStructLike(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice:
		return true
	}
	return false
}

// parseScalar converts raw into the parameter type. Pointer parameters are
// optional and stay nil when the value is absent.
func parseScalar(p param, raw string, present bool) (any, error) {
	t := p.typ
	optional := t.Kind() == reflect.Pointer
	if optional {
		t = t.Elem()
	}
	if !present {
		if optional {
			return nil, nil
		}
		return nil, ErrBadRequest(fmt.Sprintf("missing %s parameter %q", p.source, p.name))
	}

	v := reflect.New(t).Elem()
	var err error
	switch t.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		var b bool
		if b, err = strconv.ParseBool(raw); err == nil {
			v.SetBool(b)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		if n, err = strconv.ParseInt(raw, 10, t.Bits()); err == nil {
			v.SetInt(n)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		if n, err = strconv.ParseUint(raw, 10, t.Bits()); err == nil {
			v.SetUint(n)
		}
	case reflect.Float32, reflect.Float64:
		var f float64
		if f, err = strconv.ParseFloat(raw, t.Bits()); err == nil {
			v.SetFloat(f)
		}
	}
	if err != nil {
		return nil, ErrBadRequest(fmt.Sprintf("invalid %s parameter %q", p.source, p.name)).WithCause(err)
	}

	if optional {
		ptr := reflect.New(t)
		ptr.Elem().Set(v)
		return ptr.Interface(), nil
	}
	return v.Interface(), nil
}

// decodeBody reads a JSON body into t. An empty body yields the zero value.
func decodeBody(r *http.Request, t reflect.Type) (any, error) {
	isPtr := t.Kind() == reflect.Pointer
	target := t
	if isPtr {
		target = t.Elem()
	}
	dst := reflect.New(target)

	if r.Body != nil && r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(dst.Interface()); err != nil && !errors.Is(err, io.EOF) {
			return nil, ErrBadRequest("malformed request body").WithCause(err)
		}
	}
	if isPtr {
		return dst.Interface(), nil
	}
	return dst.Elem().Interface(), nil
}

// valueOf converts val to a reflect.Value assignable to t, using the zero
// value for nil.
func valueOf(val any, t reflect.Type) reflect.Value {
	if val == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(val)
}
