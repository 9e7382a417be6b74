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

package util

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGeneratePlaceholders(t *testing.T) {
	Convey("Given the placeholder generator", t, func() {
		Convey("An empty range generates nothing", func() {
			So(GeneratePlaceholders(1, 1), ShouldEqual, "")
		})

		Convey("A single placeholder has no separator", func() {
			So(GeneratePlaceholders(1, 2), ShouldEqual, "$1")
		})

		Convey("The range is inclusive-exclusive", func() {
			So(GeneratePlaceholders(1, 4), ShouldEqual, "$1, $2, $3")
			So(GeneratePlaceholders(3, 5), ShouldEqual, "$3, $4")
		})
	})
}

func TestStringSliceToInterfaceSlice(t *testing.T) {
	Convey("Given a string slice", t, func() {
		So(StringSliceToInterfaceSlice([]string{"a", "b"}), ShouldResemble, []interface{}{"a", "b"})
		So(StringSliceToInterfaceSlice(nil), ShouldResemble, []interface{}{})
	})
}

func TestEncryption(t *testing.T) {
	Convey("Given an encryption key", t, func() {
		So(SetKey([]byte("0123456789abcdef0123456789abcdef")), ShouldBeNil)

		Convey("A message round trips", func() {
			msg := "something private"
			So(DecryptString(EncryptString(msg)), ShouldEqual, msg)
		})

		Convey("The ciphertext differs from the message", func() {
			So(EncryptString("hello"), ShouldNotEqual, "hello")
		})

		Convey("An empty string passes through", func() {
			So(EncryptString(""), ShouldEqual, "")
			So(DecryptString(""), ShouldEqual, "")
		})

		Convey("A short key is rejected", func() {
			So(SetKey([]byte("tooshort")), ShouldNotBeNil)
		})
	})
}

func TestStripTerminalColorCodes(t *testing.T) {
	Convey("Given a colored terminal string", t, func() {
		So(StripTerminalColorCodes("\x1b[31mred\x1b[0m plain"), ShouldEqual, "\x1bred\x1b plain")
		So(StripTerminalColorCodes("no colors"), ShouldEqual, "no colors")
	})
}
