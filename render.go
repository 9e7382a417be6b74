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
	"encoding/json"
	"net/http"
)

const renderKey = "restlessrender"

// Middleware for the Render API.
//
// This changes the behavior of the ResponseWriter in the following
// middlewares and the page handler. The ResponseWriter's WriteHeader()
// method will not write the headers, just sets the Code attribute of the
// Renderer struct in the page context. This hack is necessary, because else
// a middleware could write the headers before the Renderer. With the
// default stack the session middleware comes after this one, so it still
// has a chance to set its cookie.
func RendererMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		renderer := NewRenderer()
		r = SetContext(r, renderKey, renderer)
		next.ServeHTTP(&rendererResponseWriter{
			ResponseWriter: w,
			Renderer:       renderer,
		}, r)
		renderer.Render(w)
	})
}

// Gets the Renderer struct from the request context.
func Render(r *http.Request) *Renderer {
	return r.Context().Value(renderKey).(*Renderer)
}

// A per-request struct that collects the response body, status code and
// extra headers, and writes them out once at the end of the middleware
// chain. The body is always JSON ("application/json; charset=utf-8").
//
//	func pageHandler(w http.ResponseWriter, r *http.Request) {
//	    ...
//	    restless.Render(r).SetCode(http.StatusCreated).JSON(data)
//	}
//
// A Renderer with no body renders http.StatusNoContent.
type Renderer struct {
	data     interface{}
	hasData  bool
	header   http.Header
	rendered bool
	Code     int // HTTP status code.
}

// Creates a new Renderer.
func NewRenderer() *Renderer {
	return &Renderer{
		header: make(http.Header),
	}
}

// Sets the HTTP status code.
func (r *Renderer) SetCode(code int) *Renderer {
	r.Code = code
	return r
}

// Adds an extra header to the response.
//
// Not named Header, so rendererResponseWriter can promote the
// ResponseWriter's Header method unambiguously.
func (r *Renderer) AddHeader(name, value string) *Renderer {
	r.header.Set(name, value)
	return r
}

// Sets the JSON body of the response.
func (r *Renderer) JSON(v interface{}) *Renderer {
	r.data = v
	r.hasData = true
	return r
}

// Writes the collected response to the ResponseWriter.
func (rr *Renderer) Render(w http.ResponseWriter) {
	if rr.rendered {
		return
	}

	defer func() {
		rr.rendered = true
	}()

	for name, values := range rr.header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}

	if !rr.hasData {
		if rr.Code == 0 || rr.Code == http.StatusOK {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(rr.Code)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if rr.Code > 0 {
		w.WriteHeader(rr.Code)
	}

	json.NewEncoder(w).Encode(rr.data)
}

var _ http.ResponseWriter = &rendererResponseWriter{}

type rendererResponseWriter struct {
	http.ResponseWriter
	*Renderer
}

func (r *rendererResponseWriter) Write(b []byte) (int, error) {
	if !r.Renderer.rendered {
		code := r.Renderer.Code
		if code == 0 {
			code = http.StatusOK
		}
		r.ResponseWriter.WriteHeader(code)
		r.Renderer.rendered = true
	}
	return r.ResponseWriter.Write(b)
}

// Overwrite of the WriteHeader function of the http.ResponseWriter
// interface.
//
// The headers are not written here, so the Renderer middleware can output
// the status code together with the HTTP headers after the whole chain ran.
// The Renderer's status code is only overwritten if it is not set yet or
// the new code is not 200 or 0.
func (r *rendererResponseWriter) WriteHeader(code int) {
	if r.Renderer.Code == 0 || (code != http.StatusOK && code != 0) {
		r.Renderer.SetCode(code)
	}
}
