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
	"reflect"
)

// The recursion limit used when neither the Options nor the Serializer
// sets one.
const DefaultMaxDepth = 10

// Options is a serialization spec.
//
// Fields is a whitelist: when set, exactly the named fields are emitted.
// Exclude removes names from the default scalar field set; when Fields is
// also set, Fields wins and Exclude is ignored. Include appends related,
// nested or computed entries after the base fields. MaxDepth caps the
// nesting of Include specs; zero means the serializer's default.
type Options struct {
	Fields   []string
	Exclude  []string
	Include  []Include
	MaxDepth int
}

// Include is a named entry of a serialization spec.
//
// A nil Spec serializes the relation with default options.
type Include struct {
	Name string
	Spec IncludeSpec
}

// IncludeSpec is the tagged variant behind an Include entry: FieldList,
// Nested or Derived.
type IncludeSpec interface {
	isIncludeSpec()
}

// FieldList restricts a related object to the named fields. Shorthand for
// Nested{Opts: &Options{Fields: ...}}.
type FieldList []string

func (FieldList) isIncludeSpec() {}

// Nested applies a full nested spec to the relation. When Flatten is set
// and the relation is single-valued, the nested document's keys are merged
// into the parent document instead of nesting under the include name.
type Nested struct {
	Opts    *Options
	Flatten bool
}

func (Nested) isIncludeSpec() {}

// Derived computes a value from the source object. If the result is a
// model known to the schema source, it is serialized recursively;
// otherwise it is emitted as-is.
type Derived func(obj interface{}) interface{}

func (Derived) isIncludeSpec() {}

// Serializer renders model values to JSON-compatible documents through a
// SchemaSource.
type Serializer struct {
	Schemas  SchemaSource
	MaxDepth int
}

// The Serializer used by the package-level Serialize function.
var DefaultSerializer = &Serializer{Schemas: DefaultSchemas}

// Serialize renders obj with the default serializer. See
// Serializer.Serialize.
func Serialize(obj interface{}, opts *Options) (interface{}, error) {
	return DefaultSerializer.Serialize(obj, opts)
}

// Serialize renders a model value, or a sequence of model values, to a
// JSON-compatible document.
//
// A sequence input produces a sequence of independently serialized
// documents, order preserved. A value without a schema passes through
// unchanged. The source is never mutated. When an Include spec recurses
// past the maximum depth, a *SerializationDepthError is returned.
func (s *Serializer) Serialize(obj interface{}, opts *Options) (interface{}, error) {
	return s.serialize(obj, opts, 0)
}

func (s *Serializer) maxDepth(opts *Options) int {
	if opts != nil && opts.MaxDepth > 0 {
		return opts.MaxDepth
	}
	if s.MaxDepth > 0 {
		return s.MaxDepth
	}
	return DefaultMaxDepth
}

func (s *Serializer) serialize(obj interface{}, opts *Options, depth int) (interface{}, error) {
	if depth > s.maxDepth(opts) {
		return nil, &SerializationDepthError{Depth: depth}
	}

	if obj == nil {
		return nil, nil
	}

	if seq, ok := sequenceOf(obj); ok {
		out := make([]interface{}, 0, len(seq))
		for _, item := range seq {
			doc, err := s.serialize(item, opts, depth)
			if err != nil {
				return nil, err
			}
			out = append(out, doc)
		}
		return out, nil
	}

	schema, ok := s.Schemas.SchemaOf(obj)
	if !ok {
		// plain data that sneaked in; leave it to the JSON encoder
		return obj, nil
	}

	doc := make(map[string]interface{})

	for _, name := range s.baseFields(schema, opts) {
		value, err := s.fieldValue(schema, obj, name, nil, depth)
		if err != nil {
			return nil, err
		}
		doc[name] = value
	}

	if opts == nil {
		return doc, nil
	}

	for _, inc := range opts.Include {
		if err := s.include(schema, obj, inc, doc, depth); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// The base field set: the whitelist when given, otherwise every scalar
// field minus the excluded ones. Fields wins over Exclude.
func (s *Serializer) baseFields(schema Schema, opts *Options) []string {
	if opts != nil && opts.Fields != nil {
		return opts.Fields
	}

	var excluded map[string]bool
	if opts != nil && len(opts.Exclude) > 0 {
		excluded = make(map[string]bool, len(opts.Exclude))
		for _, name := range opts.Exclude {
			excluded[name] = true
		}
	}

	names := []string{}
	for _, name := range schema.FieldNames() {
		if schema.RelationKind(name) != RelationNone {
			continue
		}
		if excluded[name] {
			continue
		}
		names = append(names, name)
	}

	return names
}

func (s *Serializer) include(schema Schema, obj interface{}, inc Include, doc map[string]interface{}, depth int) error {
	switch spec := inc.Spec.(type) {
	case Derived:
		value := spec(obj)
		if value != nil {
			if _, ok := s.Schemas.SchemaOf(value); ok {
				derived, err := s.serialize(value, nil, depth+1)
				if err != nil {
					return err
				}
				value = derived
			}
		}
		doc[inc.Name] = value
		return nil

	case FieldList:
		return s.includeRelation(schema, obj, inc.Name, &Options{Fields: spec}, false, doc, depth)

	case Nested:
		return s.includeRelation(schema, obj, inc.Name, spec.Opts, spec.Flatten, doc, depth)

	case nil:
		return s.includeRelation(schema, obj, inc.Name, nil, false, doc, depth)

	default:
		panic("unknown include spec type")
	}
}

func (s *Serializer) includeRelation(schema Schema, obj interface{}, name string, opts *Options, flatten bool, doc map[string]interface{}, depth int) error {
	value, err := s.fieldValue(schema, obj, name, opts, depth)
	if err != nil {
		return err
	}

	if flatten {
		if sub, ok := value.(map[string]interface{}); ok {
			delete(doc, name)
			for k, v := range sub {
				doc[k] = v
			}
			return nil
		}
	}

	doc[name] = value
	return nil
}

// Resolves and renders one field. Relations recurse with the given nested
// options; a nil single relation renders null and an empty multi relation
// renders an empty sequence.
func (s *Serializer) fieldValue(schema Schema, obj interface{}, name string, opts *Options, depth int) (interface{}, error) {
	value := schema.Get(obj, name)

	switch schema.RelationKind(name) {
	case RelationSingle:
		if value == nil {
			return nil, nil
		}
		return s.serialize(value, opts, depth+1)

	case RelationMulti:
		seq, _ := sequenceOf(value)
		out := make([]interface{}, 0, len(seq))
		for _, item := range seq {
			doc, err := s.serialize(item, opts, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, doc)
		}
		return out, nil

	default:
		return value, nil
	}
}

// Unpacks slices and arrays (except []byte) into []interface{}.
func sequenceOf(obj interface{}) ([]interface{}, bool) {
	if obj == nil {
		return nil, false
	}

	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, false
	}
	if v.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}

	out := make([]interface{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = v.Index(i).Interface()
	}

	return out, true
}
