package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
)

// Responder writes its own response and bypasses JSON normalization.
type Responder interface {
	WriteResponse(w http.ResponseWriter, r *http.Request) error
}

// Dumper converts a domain value into its serializable form.
type Dumper interface {
	Dump() any
}

// Result is an explicit body/status/headers triple. Handlers may return it
// directly or as (body, status[, headers]).
type Result struct {
	Body    any
	Headers http.Header
	Status  int
}

// Response is a raw response that is written as is.
type Response struct {
	Header      http.Header
	ContentType string
	Body        []byte
	Status      int
}

// NewResponse creates a raw response.
func NewResponse(status int, contentType string, body []byte) *Response {
	return &Response{Status: status, ContentType: contentType, Body: body}
}

// NoContent returns an empty 204 response.
func NoContent() *Response {
	return &Response{Status: http.StatusNoContent}
}

// Redirect returns a redirect response.
func Redirect(status int, url string) *Response {
	return &Response{Status: status, Header: http.Header{"Location": {url}}}
}

func (resp *Response) WriteResponse(w http.ResponseWriter, _ *http.Request) error {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		_, err := w.Write(resp.Body)
		return err
	}
	return nil
}

var _ Responder = (*Response)(nil)

var (
	errorType     = reflect.TypeFor[error]()
	headerType    = reflect.TypeFor[http.Header]()
	stringMapType = reflect.TypeFor[map[string]string]()
	errBadOutputs = errors.New("unsupported return values")
)

// outputShape describes a method's return values.
type outputShape struct {
	values int  // non-error results, 0 to 3
	hasErr bool // last result is error
}

func shapeOf(mt reflect.Type) (outputShape, error) {
	var s outputShape
	n := mt.NumOut()
	if n > 0 && mt.Out(n-1) == errorType {
		s.hasErr = true
		n--
	}
	s.values = n

	switch n {
	case 0, 1:
	case 2, 3:
		if k := mt.Out(1).Kind(); k != reflect.Int {
			return s, fmt.Errorf("%w: second result must be an int status, got %s", errBadOutputs, mt.Out(1))
		}
		if n == 3 && mt.Out(2) != headerType && mt.Out(2) != stringMapType {
			return s, fmt.Errorf("%w: third result must be http.Header or map[string]string, got %s", errBadOutputs, mt.Out(2))
		}
	default:
		return s, fmt.Errorf("%w: %d results", errBadOutputs, mt.NumOut())
	}
	return s, nil
}

// toFuture turns a method's return values into the Future every handler awaits.
func (s outputShape) toFuture(outs []reflect.Value) Future {
	if s.hasErr {
		if errVal := outs[len(outs)-1]; !errVal.IsNil() {
			return Resolved(nil, errVal.Interface().(error))
		}
	}

	switch s.values {
	case 0:
		return Resolved(nil, nil)
	case 1:
		v := interfaceOf(outs[0])
		if f, ok := v.(Future); ok && f != nil {
			return f
		}
		return Resolved(v, nil)
	default:
		res := Result{Body: interfaceOf(outs[0]), Status: int(outs[1].Int())}
		if s.values == 3 {
			res.Headers = toHeader(interfaceOf(outs[2]))
		}
		return Resolved(res, nil)
	}
}

// render writes an awaited handler value. defaultStatus applies to plain values.
func render(w http.ResponseWriter, r *http.Request, val any, defaultStatus int) error {
	switch v := val.(type) {
	case Responder:
		return v.WriteResponse(w, r)
	case http.Handler:
		v.ServeHTTP(w, r)
		return nil
	case Result:
		return writeResult(w, v, defaultStatus)
	case *Result:
		if v == nil {
			return writeJSON(w, defaultStatus, nil, nil)
		}
		return writeResult(w, *v, defaultStatus)
	default:
		return writeJSON(w, defaultStatus, nil, dump(val))
	}
}

func writeResult(w http.ResponseWriter, res Result, defaultStatus int) error {
	status := res.Status
	if status == 0 {
		status = defaultStatus
	}
	return writeJSON(w, status, res.Headers, dump(res.Body))
}

func writeJSON(w http.ResponseWriter, status int, headers http.Header, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(data, '\n'))
	return err
}

func dump(v any) any {
	if d, ok := v.(Dumper); ok && !isNil(v) {
		return d.Dump()
	}
	return v
}

func toHeader(v any) http.Header {
	switch h := v.(type) {
	case http.Header:
		return h
	case map[string]string:
		out := make(http.Header, len(h))
		for k, val := range h {
			out.Set(k, val)
		}
		return out
	}
	return nil
}

// interfaceOf unwraps a reflect.Value, mapping nil interfaces to nil.
func interfaceOf(v reflect.Value) any {
	if v.Kind() == reflect.Interface && v.IsNil() {
		return nil
	}
	return v.Interface()
}
