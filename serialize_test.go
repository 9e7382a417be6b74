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
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type serAuthor struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

type serBook struct {
	ID     int         `json:"id"`
	Title  string      `json:"title"`
	ISBN   string      `json:"isbn"`
	Author *serAuthor  `json:"author"`
	Extras []serAuthor `json:"extras"`
}

type serNode struct {
	Name   string   `json:"name"`
	Parent *serNode `json:"parent"`
}

func sampleBook() *serBook {
	return &serBook{
		ID:     1,
		Title:  "Dune",
		ISBN:   "0441013597",
		Author: &serAuthor{ID: 7, Name: "Frank Herbert", Bio: "..."},
	}
}

func TestSerializeBase(t *testing.T) {
	Convey("Given a model value", t, func() {
		book := sampleBook()

		Convey("The default document has every scalar field and no relations", func() {
			doc, err := Serialize(book, nil)
			So(err, ShouldBeNil)
			So(doc, ShouldResemble, map[string]interface{}{
				"id":    1,
				"title": "Dune",
				"isbn":  "0441013597",
			})
		})

		Convey("Exclude removes fields from the default set", func() {
			doc, err := Serialize(book, &Options{Exclude: []string{"isbn"}})
			So(err, ShouldBeNil)
			So(doc, ShouldResemble, map[string]interface{}{
				"id":    1,
				"title": "Dune",
			})
		})

		Convey("Fields is a whitelist and wins over Exclude", func() {
			doc, err := Serialize(book, &Options{
				Fields:  []string{"title"},
				Exclude: []string{"title"},
			})
			So(err, ShouldBeNil)
			So(doc, ShouldResemble, map[string]interface{}{
				"title": "Dune",
			})
		})

		Convey("A relation named in Fields serializes with default options", func() {
			doc, err := Serialize(book, &Options{Fields: []string{"id", "author"}})
			So(err, ShouldBeNil)
			So(doc, ShouldResemble, map[string]interface{}{
				"id": 1,
				"author": map[string]interface{}{
					"id":   7,
					"name": "Frank Herbert",
					"bio":  "...",
				},
			})
		})

		Convey("A value without a schema passes through unchanged", func() {
			doc, err := Serialize("plain", nil)
			So(err, ShouldBeNil)
			So(doc, ShouldEqual, "plain")
		})

		Convey("The source value is not modified", func() {
			_, err := Serialize(book, &Options{Exclude: []string{"isbn"}})
			So(err, ShouldBeNil)
			So(book.ISBN, ShouldEqual, "0441013597")
		})
	})

	Convey("Given a slice of model values", t, func() {
		books := []*serBook{sampleBook(), sampleBook()}
		books[1].ID = 2

		Convey("Every element is serialized independently, order preserved", func() {
			doc, err := Serialize(books, &Options{Fields: []string{"id"}})
			So(err, ShouldBeNil)
			So(doc, ShouldResemble, []interface{}{
				map[string]interface{}{"id": 1},
				map[string]interface{}{"id": 2},
			})
		})
	})
}

func TestSerializeInclude(t *testing.T) {
	Convey("Given a model with relations", t, func() {
		book := sampleBook()

		Convey("A nil include spec serializes the relation with defaults", func() {
			doc, err := Serialize(book, &Options{
				Fields:  []string{"id"},
				Include: []Include{{Name: "author"}},
			})
			So(err, ShouldBeNil)
			So(doc.(map[string]interface{})["author"], ShouldResemble, map[string]interface{}{
				"id":   7,
				"name": "Frank Herbert",
				"bio":  "...",
			})
		})

		Convey("A FieldList spec restricts the nested document", func() {
			doc, err := Serialize(book, &Options{
				Fields:  []string{"id"},
				Include: []Include{{Name: "author", Spec: FieldList{"name"}}},
			})
			So(err, ShouldBeNil)
			So(doc.(map[string]interface{})["author"], ShouldResemble, map[string]interface{}{
				"name": "Frank Herbert",
			})
		})

		Convey("A flattened nested include merges into the parent", func() {
			doc, err := Serialize(book, &Options{
				Fields: []string{"id"},
				Include: []Include{{
					Name: "author",
					Spec: Nested{Opts: &Options{Fields: []string{"name"}}, Flatten: true},
				}},
			})
			So(err, ShouldBeNil)
			So(doc, ShouldResemble, map[string]interface{}{
				"id":   1,
				"name": "Frank Herbert",
			})
		})

		Convey("A derived include calls the function", func() {
			doc, err := Serialize(book, &Options{
				Fields: []string{"id"},
				Include: []Include{{
					Name: "slug",
					Spec: Derived(func(obj interface{}) interface{} {
						return strings.ToLower(obj.(*serBook).Title)
					}),
				}},
			})
			So(err, ShouldBeNil)
			So(doc.(map[string]interface{})["slug"], ShouldEqual, "dune")
		})

		Convey("A derived model value is serialized recursively", func() {
			doc, err := Serialize(book, &Options{
				Fields: []string{"id"},
				Include: []Include{{
					Name: "writer",
					Spec: Derived(func(obj interface{}) interface{} {
						return obj.(*serBook).Author
					}),
				}},
			})
			So(err, ShouldBeNil)
			So(doc.(map[string]interface{})["writer"], ShouldResemble, map[string]interface{}{
				"id":   7,
				"name": "Frank Herbert",
				"bio":  "...",
			})
		})

		Convey("A nil single relation renders null", func() {
			book.Author = nil
			doc, err := Serialize(book, &Options{
				Fields:  []string{"id"},
				Include: []Include{{Name: "author"}},
			})
			So(err, ShouldBeNil)
			m := doc.(map[string]interface{})
			val, present := m["author"]
			So(present, ShouldBeTrue)
			So(val, ShouldBeNil)
		})

		Convey("An empty multi relation renders an empty list", func() {
			doc, err := Serialize(book, &Options{
				Fields:  []string{"id"},
				Include: []Include{{Name: "extras"}},
			})
			So(err, ShouldBeNil)
			So(doc.(map[string]interface{})["extras"], ShouldResemble, []interface{}{})
		})
	})
}

func TestSerializeDepth(t *testing.T) {
	Convey("Given a self-referential serialization spec", t, func() {
		node := &serNode{Name: "leaf"}
		node.Parent = node

		opts := &Options{Fields: []string{"name"}}
		opts.Include = []Include{{Name: "parent", Spec: Nested{Opts: opts}}}

		Convey("The recursion stops with a depth error", func() {
			_, err := Serialize(node, opts)
			So(err, ShouldNotBeNil)
			_, ok := err.(*SerializationDepthError)
			So(ok, ShouldBeTrue)
		})

		Convey("A custom MaxDepth changes the limit", func() {
			opts.MaxDepth = 2
			_, err := Serialize(node, opts)
			depthErr, ok := err.(*SerializationDepthError)
			So(ok, ShouldBeTrue)
			So(depthErr.Depth, ShouldEqual, 3)
		})
	})

	Convey("Given a chain shorter than the limit", t, func() {
		leaf := &serNode{Name: "leaf"}
		mid := &serNode{Name: "mid", Parent: leaf}
		root := &serNode{Name: "root", Parent: mid}

		Convey("Nested includes resolve as deep as the data goes", func() {
			doc, err := Serialize(root, &Options{
				Fields: []string{"name"},
				Include: []Include{{
					Name: "parent",
					Spec: Nested{Opts: &Options{
						Fields:  []string{"name"},
						Include: []Include{{Name: "parent", Spec: FieldList{"name"}}},
					}},
				}},
			})
			So(err, ShouldBeNil)
			So(doc, ShouldResemble, map[string]interface{}{
				"name": "root",
				"parent": map[string]interface{}{
					"name": "mid",
					"parent": map[string]interface{}{
						"name": "leaf",
					},
				},
			})
		})
	})
}
