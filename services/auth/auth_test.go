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

package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/restlesskit/restless"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

var testSrv = &restless.TestServer{}

func TestMain(m *testing.M) {
	testSrv.StartAndCleanUp(m, func(cfg *viper.Viper, s *restless.Server) error {
		users := newUserList()
		if err := users.add("1", "admin", "s3cretpw"); err != nil {
			return err
		}

		if err := s.RegisterService(NewService(users, nil)); err != nil {
			return err
		}

		guard := Any(
			&BasicAuthenticator{Delegate: users},
			&SessionAuthenticator{Delegate: users},
		)
		s.RegisterEndpoint("/api/secret", restless.NewEndpoint().
			Get(LoginRequired(guard, func(r *http.Request) (interface{}, error) {
				return "classified", nil
			})))

		return nil
	})
}

type testAccount struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type userList struct {
	byName map[string]*testAccount
	byID   map[string]*testAccount
	hashes map[string]string
}

func newUserList() *userList {
	return &userList{
		byName: map[string]*testAccount{},
		byID:   map[string]*testAccount{},
		hashes: map[string]string{},
	}
}

func (ul *userList) add(id, name, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	account := &testAccount{ID: id, Name: name}
	ul.byName[name] = account
	ul.byID[id] = account
	ul.hashes[name] = hash

	return nil
}

func (ul *userList) Credentials(identifier string) (interface{}, string, error) {
	if account, ok := ul.byName[identifier]; ok {
		return account, ul.hashes[identifier], nil
	}

	return nil, "", nil
}

func (ul *userList) PrincipalByID(id string) (interface{}, error) {
	if account, ok := ul.byID[id]; ok {
		return account, nil
	}

	return nil, nil
}

func (ul *userList) PrincipalID(principal interface{}) string {
	return principal.(*testAccount).ID
}

func TestPasswordHashing(t *testing.T) {
	Convey("Given a hashed password", t, func() {
		hash, err := HashPassword("hunter2")
		So(err, ShouldBeNil)
		So(hash, ShouldStartWith, "scrypt$")

		Convey("The password verifies against it", func() {
			ok, err := VerifyPassword("hunter2", hash)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})

		Convey("A wrong password does not", func() {
			ok, err := VerifyPassword("hunter3", hash)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("Two hashes of the same password differ", func() {
			other, err := HashPassword("hunter2")
			So(err, ShouldBeNil)
			So(other, ShouldNotEqual, hash)
		})
	})

	Convey("Given a broken hash", t, func() {
		Convey("A missing separator is an error", func() {
			_, err := VerifyPassword("pw", "nodollarsign")
			So(err, ShouldNotBeNil)
		})

		Convey("An unknown algorithm is an error", func() {
			_, err := VerifyPassword("pw", "md5$deadbeef")
			So(err, ShouldNotBeNil)
		})

		Convey("A truncated scrypt hash is an error", func() {
			_, err := VerifyPassword("pw", "scrypt$aabb$16384")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestLoginRequired(t *testing.T) {
	Convey("Given a guarded handler", t, func() {
		called := false
		h := LoginRequired(nil, func(r *http.Request) (interface{}, error) {
			called = true
			return "ok", nil
		})

		Convey("An anonymous request is rejected without running it", func() {
			_, err := h(httptest.NewRequest("GET", "/", nil))
			So(err, ShouldNotBeNil)
			So(err.(*restless.Error).Code, ShouldEqual, http.StatusForbidden)
			So(called, ShouldBeFalse)
		})

		Convey("An established principal passes through", func() {
			r := restless.WithPrincipal(httptest.NewRequest("GET", "/", nil), "somebody")
			v, err := h(r)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "ok")
			So(called, ShouldBeTrue)
		})
	})
}

func TestBasicAuth(t *testing.T) {
	Convey("Given an endpoint guarded by basic auth", t, func() {
		tc := restless.NewTestClient(testSrv.URL())

		Convey("An anonymous request gets a challenge", func() {
			tc.Request("GET", "/api/secret", nil, nil, func(resp *http.Response) {
				So(resp.Header.Get("WWW-Authenticate"), ShouldEqual, `Basic realm="api"`)
			}, http.StatusUnauthorized)
		})

		Convey("Bad credentials are rejected", func() {
			tc.Request("GET", "/api/secret", nil, func(req *http.Request) {
				req.SetBasicAuth("admin", "wrong")
			}, nil, http.StatusUnauthorized)
		})

		Convey("An unknown user is rejected", func() {
			tc.Request("GET", "/api/secret", nil, func(req *http.Request) {
				req.SetBasicAuth("nobody", "s3cretpw")
			}, nil, http.StatusUnauthorized)
		})

		Convey("Good credentials pass", func() {
			tc.Request("GET", "/api/secret", nil, func(req *http.Request) {
				req.SetBasicAuth("admin", "s3cretpw")
			}, func(resp *http.Response) {
				secret := ""
				So(json.NewDecoder(resp.Body).Decode(&secret), ShouldBeNil)
				So(secret, ShouldEqual, "classified")
			}, http.StatusOK)
		})
	})
}

func TestLoginFlow(t *testing.T) {
	Convey("Given the login endpoints", t, func() {
		tc := restless.NewTestClient(testSrv.URL())

		Convey("A missing credential is a validation error", func() {
			tc.Request("POST", "/api/auth/login", tc.JSONBuffer(map[string]string{
				"username": "admin",
			}), nil, nil, http.StatusBadRequest)
		})

		Convey("Bad credentials are rejected", func() {
			tc.Request("POST", "/api/auth/login", tc.JSONBuffer(map[string]string{
				"username": "admin",
				"password": "wrong",
			}), nil, nil, http.StatusUnauthorized)
		})

		Convey("The me endpoint requires a login", func() {
			tc.Request("GET", "/api/auth/me", nil, nil, nil, http.StatusForbidden)
		})

		Convey("A successful login establishes a session", func() {
			admin := &testAccount{ID: "1", Name: "admin"}

			tc.Request("POST", "/api/auth/login", tc.JSONBuffer(map[string]string{
				"username": "admin",
				"password": "s3cretpw",
			}), nil, func(resp *http.Response) {
				tc.AssertJSON(resp, &testAccount{}, admin)
			}, http.StatusOK)

			Convey("The me endpoint returns the principal", func() {
				tc.Request("GET", "/api/auth/me", nil, nil, func(resp *http.Response) {
					tc.AssertJSON(resp, &testAccount{}, admin)
				}, http.StatusOK)
			})

			Convey("The session authenticator guards other endpoints too", func() {
				tc.Request("GET", "/api/secret", nil, nil, func(resp *http.Response) {
					secret := ""
					So(json.NewDecoder(resp.Body).Decode(&secret), ShouldBeNil)
					So(secret, ShouldEqual, "classified")
				}, http.StatusOK)
			})

			Convey("Logout drops the session", func() {
				tc.Request("POST", "/api/auth/logout", nil, nil, nil, http.StatusNoContent)
				tc.Request("GET", "/api/auth/me", nil, nil, nil, http.StatusForbidden)
			})
		})
	})
}
