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
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type schemaAuthor struct {
	Name string `json:"name"`
}

type schemaBook struct {
	ID        int           `json:"id"`
	Title     string        `json:"title"`
	Secret    string        `json:"-"`
	Published time.Time     `json:"published"`
	Cover     []byte        `json:"cover"`
	Tags      []string      `json:"tags"`
	Author    *schemaAuthor `json:"author"`
	Reviews   []schemaAuthor `json:"reviews"`
	internal  int
}

func TestStructSchema(t *testing.T) {
	Convey("Given a struct schema", t, func() {
		ss := NewStructSchemas()
		schema, ok := ss.SchemaOf(&schemaBook{})
		So(ok, ShouldBeTrue)

		Convey("The field names follow the json tags and skip hidden fields", func() {
			So(schema.FieldNames(), ShouldResemble, []string{"id", "title", "published", "cover", "tags", "author", "reviews"})
		})

		Convey("The relation kinds are classified by the field types", func() {
			So(schema.RelationKind("id"), ShouldEqual, RelationNone)
			So(schema.RelationKind("published"), ShouldEqual, RelationNone)
			So(schema.RelationKind("cover"), ShouldEqual, RelationNone)
			So(schema.RelationKind("tags"), ShouldEqual, RelationNone)
			So(schema.RelationKind("author"), ShouldEqual, RelationSingle)
			So(schema.RelationKind("reviews"), ShouldEqual, RelationMulti)
		})

		Convey("Get resolves values on both pointers and values", func() {
			b := &schemaBook{ID: 3, Title: "t"}
			So(schema.Get(b, "id"), ShouldEqual, 3)
			So(schema.Get(*b, "title"), ShouldEqual, "t")
		})

		Convey("Get on a nil pointer field is nil", func() {
			So(schema.Get(&schemaBook{}, "author"), ShouldBeNil)
		})

		Convey("Non-structs and time.Time have no schema", func() {
			_, ok := ss.SchemaOf("hello")
			So(ok, ShouldBeFalse)
			_, ok = ss.SchemaOf(42)
			So(ok, ShouldBeFalse)
			_, ok = ss.SchemaOf(time.Now())
			So(ok, ShouldBeFalse)
		})

		Convey("The schema is cached per type", func() {
			again, ok := ss.SchemaOf(schemaBook{})
			So(ok, ShouldBeTrue)
			So(again, ShouldEqual, schema)
		})
	})
}
