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

/*
Restless is a small kit for building JSON APIs on top of net/http.

The kit does not replace the standard library's HTTP stack, the router or
the database layer; it removes the boilerplate between them. An Endpoint
maps HTTP verbs to handler functions through an explicit dispatch table and
turns handler return values into JSON responses. The serializer walks a
model value through a Schema and produces a nested JSON document, with
field selection, related object expansion and computed fields. The resource
endpoints (list, detail, action) combine the two with a set of small
delegate interfaces for loading and storing models, and the auth service
plugs session or HTTP basic authentication in front of any handler.

Handlers run inside a middleware stack (see Setup). The stack provides a
per-request Renderer, a leveled logger, panic recovery that turns failures
into JSON error documents, signed cookie sessions and an optional database
connection with per-request transactions.
*/
package restless
