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
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRenderer(t *testing.T) {
	Convey("Given a Renderer", t, func() {
		w := httptest.NewRecorder()

		Convey("No body renders no content", func() {
			NewRenderer().Render(w)
			So(w.Code, ShouldEqual, http.StatusNoContent)
		})

		Convey("A code without a body keeps the code", func() {
			NewRenderer().SetCode(http.StatusAccepted).Render(w)
			So(w.Code, ShouldEqual, http.StatusAccepted)
		})

		Convey("A JSON body renders with the content type", func() {
			NewRenderer().JSON(map[string]string{"a": "b"}).Render(w)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			So(w.Body.String(), ShouldEqual, "{\"a\":\"b\"}\n")
		})

		Convey("Extra headers end up on the response", func() {
			NewRenderer().AddHeader("X-Request-Id", "42").JSON("ok").Render(w)
			So(w.Header().Get("X-Request-Id"), ShouldEqual, "42")
		})

		Convey("Rendering twice writes once", func() {
			rd := NewRenderer().JSON("ok")
			rd.Render(w)
			rd.Render(w)
			So(w.Body.String(), ShouldEqual, "\"ok\"\n")
		})
	})
}

func TestRendererMiddleware(t *testing.T) {
	Convey("Given a handler inside the renderer middleware", t, func() {
		w := httptest.NewRecorder()

		Convey("The Renderer collects the handler's output", func() {
			h := RendererMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Render(r).SetCode(http.StatusCreated).JSON("made")
			}))
			h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

			So(w.Code, ShouldEqual, http.StatusCreated)
			So(w.Body.String(), ShouldEqual, "\"made\"\n")
		})

		Convey("WriteHeader is deferred until the chain returns", func() {
			h := RendererMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTeapot)
				Render(r).JSON("tea")
			}))
			h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

			So(w.Code, ShouldEqual, http.StatusTeapot)
			So(w.Body.String(), ShouldEqual, "\"tea\"\n")
		})

		Convey("A direct write bypasses the deferred renderer", func() {
			h := RendererMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				w.Write([]byte("raw"))
			}))
			h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldEqual, "raw")
			So(w.Header().Get("Content-Type"), ShouldEqual, "text/plain")
		})
	})
}
