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

	"github.com/lib/pq"
)

var ErrNoEndpoints = errors.New("no endpoints are enabled for this resource")

// ListDelegate supplies a page of objects for the collection URL.
type ListDelegate interface {
	List(r *http.Request, start, limit int) (interface{}, error)
	PageLength() int
}

// CreateDelegate handles POST on the collection URL.
type CreateDelegate interface {
	Empty() interface{}
	Insert(obj interface{}, r *http.Request) error
}

// LoadDelegate resolves the route parameter to an object. Returning
// (nil, nil) means the object does not exist.
type LoadDelegate interface {
	Load(key string, r *http.Request) (interface{}, error)
}

// UpdateDelegate persists an object that has been loaded and overwritten
// with the request body.
type UpdateDelegate interface {
	Update(obj interface{}, r *http.Request) error
}

// DeleteDelegate removes a loaded object.
type DeleteDelegate interface {
	Delete(obj interface{}, r *http.Request) error
}

// Keyed is implemented by objects that know their own route key.
type Keyed interface {
	GetID() string
}

// ListEndpoint serves the collection URL of a resource: GET lists a page
// of objects, POST creates one.
type ListEndpoint struct {
	List      ListDelegate
	Create    CreateDelegate
	Serialize *Options
	Authn     Authenticator

	ErrorConverter func(*pq.Error) VerboseError
}

func (le *ListEndpoint) convertError(err error) error {
	if le.ErrorConverter == nil {
		return err
	}
	return ConvertDBError(err, le.ErrorConverter)
}

func (le *ListEndpoint) listHandler(r *http.Request) (interface{}, error) {
	limit := le.List.PageLength()
	start := Pager(r, limit)

	list, err := le.List.List(r, start, limit)
	if err != nil {
		return nil, le.convertError(err)
	}

	doc, err := Serialize(list, le.Serialize)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		// an empty page is a JSON array, not null
		doc = []interface{}{}
	}

	return doc, nil
}

func (le *ListEndpoint) createHandler(r *http.Request) (interface{}, error) {
	obj := le.Create.Empty()
	MustDecode(r, obj)

	if err := Validate(obj); err != nil {
		return nil, err
	}

	if err := le.Create.Insert(obj, r); err != nil {
		return nil, le.convertError(err)
	}

	doc, err := Serialize(obj, le.Serialize)
	if err != nil {
		return nil, err
	}

	return &Response{Code: http.StatusCreated, Data: doc}, nil
}

// Endpoint builds the dispatching endpoint. Only the verbs that have a
// delegate are mounted.
func (le *ListEndpoint) Endpoint() *Endpoint {
	e := NewEndpoint().Authenticate(le.Authn)
	if le.List != nil {
		e.Get(le.listHandler)
	}
	if le.Create != nil {
		e.Post(le.createHandler)
	}

	return e
}

// DetailEndpoint serves the object URL of a resource: GET fetches, PUT
// and PATCH overwrite, DELETE removes. The route parameter name defaults
// to "id".
type DetailEndpoint struct {
	Param     string
	Load      LoadDelegate
	Update    UpdateDelegate
	Delete    DeleteDelegate
	Serialize *Options
	Authn     Authenticator

	ErrorConverter func(*pq.Error) VerboseError
}

func (de *DetailEndpoint) param() string {
	if de.Param == "" {
		return "id"
	}
	return de.Param
}

func (de *DetailEndpoint) convertError(err error) error {
	if de.ErrorConverter == nil {
		return err
	}
	return ConvertDBError(err, de.ErrorConverter)
}

func (de *DetailEndpoint) load(r *http.Request) (interface{}, error) {
	key := GetParams(r).ByName(de.param())

	obj, err := de.Load.Load(key, r)
	if err != nil {
		return nil, de.convertError(err)
	}
	if obj == nil {
		return nil, NotFound()
	}

	return obj, nil
}

func (de *DetailEndpoint) getHandler(r *http.Request) (interface{}, error) {
	obj, err := de.load(r)
	if err != nil {
		return nil, err
	}

	return Serialize(obj, de.Serialize)
}

func (de *DetailEndpoint) updateHandler(r *http.Request) (interface{}, error) {
	obj, err := de.load(r)
	if err != nil {
		return nil, err
	}

	MustDecode(r, obj)

	if keyed, ok := obj.(Keyed); ok {
		if key := GetParams(r).ByName(de.param()); keyed.GetID() != key {
			return nil, BadRequest("the object key does not match the URL")
		}
	}

	if err := Validate(obj); err != nil {
		return nil, err
	}

	if err := de.Update.Update(obj, r); err != nil {
		return nil, de.convertError(err)
	}

	return Serialize(obj, de.Serialize)
}

func (de *DetailEndpoint) deleteHandler(r *http.Request) (interface{}, error) {
	obj, err := de.load(r)
	if err != nil {
		return nil, err
	}

	if err := de.Delete.Delete(obj, r); err != nil {
		return nil, de.convertError(err)
	}

	return nil, nil
}

// Endpoint builds the dispatching endpoint. Only the verbs that have a
// delegate are mounted; PUT and PATCH share the update handler.
func (de *DetailEndpoint) Endpoint() *Endpoint {
	e := NewEndpoint().Authenticate(de.Authn)
	if de.Load != nil {
		e.Get(de.getHandler)
	}
	if de.Update != nil {
		e.Put(de.updateHandler)
		e.Patch(de.updateHandler)
	}
	if de.Delete != nil {
		e.Delete(de.deleteHandler)
	}

	return e
}

// ActionEndpoint mounts a non-CRUD operation under the resource. When a
// Load delegate is set, the route parameter is resolved first and the
// loaded object is passed to the action.
type ActionEndpoint struct {
	Name      string
	Verb      string
	Param     string
	Load      LoadDelegate
	Action    func(obj interface{}, r *http.Request) (interface{}, error)
	Serialize *Options
	Authn     Authenticator
}

func (ae *ActionEndpoint) verb() string {
	if ae.Verb == "" {
		return "POST"
	}
	return ae.Verb
}

func (ae *ActionEndpoint) param() string {
	if ae.Param == "" {
		return "id"
	}
	return ae.Param
}

func (ae *ActionEndpoint) handler(r *http.Request) (interface{}, error) {
	var obj interface{}

	if ae.Load != nil {
		key := GetParams(r).ByName(ae.param())
		loaded, err := ae.Load.Load(key, r)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			return nil, NotFound()
		}
		obj = loaded
	}

	result, err := ae.Action(obj, r)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	return Serialize(result, ae.Serialize)
}

func (ae *ActionEndpoint) Endpoint() *Endpoint {
	e := NewEndpoint().Authenticate(ae.Authn)
	e.Handle(ae.verb(), ae.handler)

	return e
}

// Resource is a Service that mounts the CRUD endpoints of one resource
// under /api/<name>, in the usual layout: the collection URL for listing
// and creating, the object URL for everything else.
type Resource struct {
	name    string
	list    *ListEndpoint
	detail  *DetailEndpoint
	actions []*ActionEndpoint

	listMiddlewares   []func(http.Handler) http.Handler
	detailMiddlewares []func(http.Handler) http.Handler

	schemaInstalled func(DB) bool
	schemaSQL       func() string

	ExtraEndpoints func(s *Server) error
}

var _ SchemaService = &Resource{}

func NewResource(name string) *Resource {
	return &Resource{
		name: name,
		listMiddlewares: []func(http.Handler) http.Handler{
			TransactionMiddleware,
		},
		detailMiddlewares: []func(http.Handler) http.Handler{
			TransactionMiddleware,
		},
	}
}

func (res *Resource) GetName() string {
	return res.name
}

func (res *Resource) List(le *ListEndpoint, middlewares ...func(http.Handler) http.Handler) *Resource {
	res.list = le
	if len(middlewares) > 0 {
		res.listMiddlewares = middlewares
	}

	return res
}

func (res *Resource) Detail(de *DetailEndpoint, middlewares ...func(http.Handler) http.Handler) *Resource {
	res.detail = de
	if len(middlewares) > 0 {
		res.detailMiddlewares = middlewares
	}

	return res
}

func (res *Resource) Action(ae *ActionEndpoint) *Resource {
	res.actions = append(res.actions, ae)

	return res
}

// Schema attaches database objects to the resource, so they get installed
// when the resource is registered.
func (res *Resource) Schema(installed func(DB) bool, schemaSQL func() string) *Resource {
	res.schemaInstalled = installed
	res.schemaSQL = schemaSQL

	return res
}

func (res *Resource) Register(srv *Server) error {
	if res.list == nil && res.detail == nil && len(res.actions) == 0 && res.ExtraEndpoints == nil {
		return ErrNoEndpoints
	}

	base := "/api/" + res.name

	if res.list != nil {
		srv.RegisterEndpoint(base, res.list.Endpoint(), res.listMiddlewares...)
	}

	if res.detail != nil {
		srv.RegisterEndpoint(base+"/:"+res.detail.param(), res.detail.Endpoint(), res.detailMiddlewares...)
	}

	for _, ae := range res.actions {
		path := base + "/" + ae.Name
		if ae.Load != nil {
			path = base + "/:" + ae.param() + "/" + ae.Name
		}
		srv.RegisterEndpoint(path, ae.Endpoint(), res.detailMiddlewares...)
	}

	if res.ExtraEndpoints != nil {
		return res.ExtraEndpoints(srv)
	}
	return nil
}

func (res *Resource) SchemaInstalled(db DB) bool {
	if res.schemaInstalled == nil {
		return true
	}

	return res.schemaInstalled(db)
}

func (res *Resource) SchemaSQL() string {
	if res.schemaSQL == nil {
		return ""
	}

	return res.schemaSQL()
}
