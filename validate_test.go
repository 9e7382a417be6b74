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
	"errors"
	"net/http"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type registration struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Homepage string `json:"homepage" validate:"omitempty,url"`
	Age      int    `json:"age" validate:"max=150"`
}

type guardedAccount struct {
	Name    string `json:"name" validate:"required"`
	Blocked bool   `json:"blocked"`
}

func (g *guardedAccount) Validate() error {
	if g.Blocked {
		return errors.New("account is blocked")
	}
	return nil
}

func TestValidate(t *testing.T) {
	Convey("Given a model with validation tags", t, func() {
		Convey("A valid value passes", func() {
			err := Validate(&registration{
				Username: "alice",
				Email:    "alice@example.com",
				Age:      30,
			})
			So(err, ShouldBeNil)
		})

		Convey("Every failing field is reported at once", func() {
			err := Validate(&registration{
				Username: "ab",
				Homepage: "not a url",
				Age:      200,
			})
			So(err, ShouldNotBeNil)

			verr, ok := err.(*Error)
			So(ok, ShouldBeTrue)
			So(verr.Code, ShouldEqual, http.StatusBadRequest)

			fields, ok := verr.Details.(map[string][]string)
			So(ok, ShouldBeTrue)
			So(fields, ShouldContainKey, "username")
			So(fields, ShouldContainKey, "email")
			So(fields, ShouldContainKey, "homepage")
			So(fields, ShouldContainKey, "age")
			So(fields["email"], ShouldResemble, []string{"this field is required"})
			So(fields["username"], ShouldResemble, []string{"too short or too small (minimum: 3)"})
		})

		Convey("Fields are reported under their wire names", func() {
			err := Validate(&registration{})
			verr := err.(*Error)
			fields := verr.Details.(map[string][]string)
			So(fields, ShouldContainKey, "username")
			So(fields, ShouldNotContainKey, "Username")
		})
	})

	Convey("Given a model with a Validate method", t, func() {
		Convey("Tag checks run first", func() {
			err := Validate(&guardedAccount{Blocked: true})
			verr, ok := err.(*Error)
			So(ok, ShouldBeTrue)
			So(verr.Details.(map[string][]string), ShouldContainKey, "name")
		})

		Convey("The hook runs after the tags pass", func() {
			err := Validate(&guardedAccount{Name: "bob", Blocked: true})
			So(err, ShouldNotBeNil)
			So(err.(VerboseError).VerboseError(), ShouldEqual, "invalid data")
		})

		Convey("A clean value passes both stages", func() {
			So(Validate(&guardedAccount{Name: "bob"}), ShouldBeNil)
		})
	})
}
