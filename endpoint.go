// Copyright 2017 Tamás Demeter-Haludka
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package restless

import (
	"io"
	"net/http"
	"net/url"
	"sort"
)

const (
	rawDataKey   = "restlessrawdata"
	principalKey = "restlessprincipal"
)

// Handler is an endpoint handler for a single HTTP verb.
//
// The return value decides the response: a *Response is used verbatim, any
// other non-nil value is rendered as a 200 JSON body, and nil renders 204.
// A returned taxonomy error (*Error, *SerializationDepthError) renders the
// matching JSON error document; any other error escalates to the recovery
// middleware as an internal error.
type Handler func(r *http.Request) (interface{}, error)

// Response is an explicit response for handlers that want a non-default
// status code or extra headers.
type Response struct {
	Code   int
	Data   interface{}
	Header http.Header
}

// Authenticator resolves the principal behind a request.
//
// A nil principal with a nil error means the request is anonymous.
type Authenticator interface {
	Authenticate(r *http.Request) (interface{}, error)
}

// Endpoint maps HTTP verbs to handlers through an explicit dispatch table.
//
// The table is fixed at construction time with Handle() and the verb
// helpers; there is no reflection-based method lookup. An Endpoint must be
// served inside the middleware stack (see Setup), because it renders
// through the request's Renderer.
type Endpoint struct {
	handlers map[string]Handler
	authn    Authenticator
}

func NewEndpoint() *Endpoint {
	return &Endpoint{
		handlers: make(map[string]Handler),
	}
}

// Registers a handler for an HTTP verb. Registering a verb twice panics.
func (e *Endpoint) Handle(verb string, h Handler) *Endpoint {
	if _, exists := e.handlers[verb]; exists {
		panic("handler for " + verb + " is already registered")
	}
	e.handlers[verb] = h
	return e
}

func (e *Endpoint) Get(h Handler) *Endpoint    { return e.Handle(http.MethodGet, h) }
func (e *Endpoint) Post(h Handler) *Endpoint   { return e.Handle(http.MethodPost, h) }
func (e *Endpoint) Put(h Handler) *Endpoint    { return e.Handle(http.MethodPut, h) }
func (e *Endpoint) Patch(h Handler) *Endpoint  { return e.Handle(http.MethodPatch, h) }
func (e *Endpoint) Delete(h Handler) *Endpoint { return e.Handle(http.MethodDelete, h) }

// Attaches an authenticator that runs before every handler of this
// endpoint. The resolved principal is available via Principal().
func (e *Endpoint) Authenticate(a Authenticator) *Endpoint {
	e.authn = a
	return e
}

// The verbs the endpoint has handlers for, sorted.
func (e *Endpoint) Allowed() []string {
	allowed := make([]string, 0, len(e.handlers))
	for verb := range e.handlers {
		allowed = append(allowed, verb)
	}
	sort.Strings(allowed)
	return allowed
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler, ok := e.handlers[r.Method]
	if !ok {
		RenderError(r, MethodNotAllowed(e.Allowed()...))
		return
	}

	r = bufferBody(r)

	if e.authn != nil {
		principal, err := e.authn.Authenticate(r)
		if err != nil {
			RenderError(r, err)
			return
		}
		if principal != nil {
			r = WithPrincipal(r, principal)
		}
	}

	v, err := handler(r)
	if err != nil {
		RenderError(r, err)
		return
	}

	switch resp := v.(type) {
	case nil:
		// the Renderer defaults to 204 when no body is set
	case *Response:
		rd := Render(r)
		for name, values := range resp.Header {
			for _, value := range values {
				rd.AddHeader(name, value)
			}
		}
		if resp.Code > 0 {
			rd.SetCode(resp.Code)
		}
		if resp.Data != nil {
			rd.JSON(resp.Data)
		}
	default:
		Render(r).JSON(v)
	}
}

// Buffers the request body for verbs that carry one, so handlers can
// decode it more than once (e.g. Data() followed by a typed MustDecode).
func bufferBody(r *http.Request) *http.Request {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return r
	}

	if r.Body == nil {
		return r
	}

	raw, err := io.ReadAll(r.Body)
	r.Body.Close()
	MaybeFail(r, http.StatusBadRequest, err)

	return SetContext(r, rawDataKey, raw)
}

// The raw request body buffered by the endpoint dispatch, or nil.
func RawData(r *http.Request) []byte {
	raw, _ := r.Context().Value(rawDataKey).([]byte)
	return raw
}

// The request body decoded into a generic mapping.
//
// Returns nil when the request has no body. Invalid payloads stop the
// request with a 400.
func Data(r *http.Request) map[string]interface{} {
	if RawData(r) == nil {
		return nil
	}

	data := map[string]interface{}{}
	MustDecode(r, &data)
	return data
}

// The query parameters of the request.
func Params(r *http.Request) url.Values {
	return r.URL.Query()
}

// Returns a request with the principal attached.
func WithPrincipal(r *http.Request, principal interface{}) *http.Request {
	return SetContext(r, principalKey, principal)
}

// The principal resolved by the endpoint's authenticator, or nil for an
// anonymous request.
func Principal(r *http.Request) interface{} {
	return r.Context().Value(principalKey)
}
