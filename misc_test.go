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

func TestPager(t *testing.T) {
	Convey("Given a listing request", t, func() {
		Convey("No page parameter starts from the beginning", func() {
			r := httptest.NewRequest("GET", "/api/items", nil)
			So(Pager(r, 10), ShouldEqual, 0)
		})

		Convey("The page parameter sets the offset", func() {
			r := httptest.NewRequest("GET", "/api/items?page=3", nil)
			So(Pager(r, 10), ShouldEqual, 20)
		})
	})
}

func TestRestrictAddressMiddleware(t *testing.T) {
	Convey("Given a handler restricted to private addresses", t, func() {
		h := RestrictPrivateAddressMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		request := func(remoteAddr string) int {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = remoteAddr
			h.ServeHTTP(w, r)
			return w.Code
		}

		Convey("A private address passes", func() {
			So(request("192.168.1.4:39100"), ShouldEqual, http.StatusOK)
		})

		Convey("A public address is rejected", func() {
			So(request("8.8.8.8:39100"), ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestHTTPSRedirect(t *testing.T) {
	Convey("Given the HTTPS redirect handler", t, func() {
		h := httpsRedirectHandler("example.com:8443")

		Convey("A plain request is redirected to the HTTPS address", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest("GET", "/api/items?page=2", nil))

			So(w.Code, ShouldEqual, http.StatusMovedPermanently)
			So(w.Result().Header.Get("Location"), ShouldEqual, "https://example.com:8443/api/items?page=2")
		})
	})
}
