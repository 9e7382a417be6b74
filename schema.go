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
	"strings"
	"sync"
	"time"
)

// RelationKind classifies a schema field.
type RelationKind int

const (
	// A scalar field (string, number, bool, timestamp, ...).
	RelationNone RelationKind = iota
	// A single-valued relation to another model.
	RelationSingle
	// A multi-valued relation to a collection of models.
	RelationMulti
)

// Schema describes a model type to the serializer.
//
// The serializer depends only on this interface, not on a concrete model
// layer. StructSchemas is the built-in adapter for plain structs; a host
// ORM can provide its own.
type Schema interface {
	// The declared field names, in declaration order. Includes relation
	// fields; the serializer filters by RelationKind.
	FieldNames() []string
	// The value of the named field on obj. Unknown names return nil.
	Get(obj interface{}, name string) interface{}
	// The kind of the named field. Unknown names return RelationNone.
	RelationKind(name string) RelationKind
}

// SchemaSource resolves the Schema for a model value.
type SchemaSource interface {
	// Returns the schema for obj, or false if the type is not a model.
	SchemaOf(obj interface{}) (Schema, bool)
}

// StructSchemas is a reflection-based SchemaSource for structs and
// pointers to structs.
//
// Field names come from the json tag when present, otherwise the
// lowercased Go field name. Fields tagged `json:"-"` and unexported
// fields are skipped. Struct or pointer-to-struct fields are single
// relations, slices of them are multi relations; everything else is a
// scalar (time.Time included).
type StructSchemas struct {
	mu    sync.RWMutex
	types map[reflect.Type]*structSchema
}

func NewStructSchemas() *StructSchemas {
	return &StructSchemas{
		types: make(map[reflect.Type]*structSchema),
	}
}

// The SchemaSource used by the package-level Serialize function.
var DefaultSchemas = NewStructSchemas()

func (ss *StructSchemas) SchemaOf(obj interface{}) (Schema, bool) {
	if obj == nil {
		return nil, false
	}

	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == timeType {
		return nil, false
	}

	ss.mu.RLock()
	s, ok := ss.types[t]
	ss.mu.RUnlock()
	if ok {
		return s, true
	}

	s = buildStructSchema(t)

	ss.mu.Lock()
	ss.types[t] = s
	ss.mu.Unlock()

	return s, true
}

var timeType = reflect.TypeOf(time.Time{})

type structField struct {
	name  string
	index int
	kind  RelationKind
}

type structSchema struct {
	names  []string
	fields map[string]structField
}

func buildStructSchema(t reflect.Type) *structSchema {
	s := &structSchema{
		fields: make(map[string]structField),
	}

	numField := t.NumField()
	for i := 0; i < numField; i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}

		name := strings.ToLower(field.Name)
		if tag := field.Tag.Get("json"); tag != "" {
			tagName := strings.Split(tag, ",")[0]
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}

		s.names = append(s.names, name)
		s.fields[name] = structField{
			name:  name,
			index: i,
			kind:  fieldKind(field.Type),
		}
	}

	return s
}

func fieldKind(t reflect.Type) RelationKind {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		if t == timeType {
			return RelationNone
		}
		return RelationSingle
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			// []byte marshals as a base64 string
			return RelationNone
		}
		return fieldKindMulti(t.Elem())
	default:
		return RelationNone
	}
}

func fieldKindMulti(elem reflect.Type) RelationKind {
	for elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if elem.Kind() == reflect.Struct && elem != timeType {
		return RelationMulti
	}
	return RelationNone
}

func (s *structSchema) FieldNames() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

func (s *structSchema) Get(obj interface{}, name string) interface{} {
	field, ok := s.fields[name]
	if !ok {
		return nil
	}

	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	fv := v.Field(field.index)
	if fv.Kind() == reflect.Ptr && fv.IsNil() {
		return nil
	}

	return fv.Interface()
}

func (s *structSchema) RelationKind(name string) RelationKind {
	if field, ok := s.fields[name]; ok {
		return field.kind
	}
	return RelationNone
}
