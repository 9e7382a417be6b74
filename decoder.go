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
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
)

var NoDecoderErr = errors.New("no decoder found for the request content type")

// Request body decoders. The key is the content type, the value is a
// decoder that decodes the contents of the Reader into v.
var Decoders = map[string]func(body io.Reader, v interface{}) error{
	"application/json":                  JSONDecoder,
	"application/x-www-form-urlencoded": FormDecoder,
}

// Decodes the request body using the built-in JSON decoder into v.
func JSONDecoder(body io.Reader, v interface{}) error {
	return json.NewDecoder(body).Decode(v)
}

// Decodes a form-urlencoded request body into v.
//
// v must be *map[string]interface{}. Repeated keys keep the first value,
// matching how form submissions map onto a JSON object.
func FormDecoder(body io.Reader, v interface{}) error {
	m, ok := v.(*map[string]interface{})
	if !ok {
		return errors.New("invalid data type for form data")
	}

	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	values, err := url.ParseQuery(string(b))
	if err != nil {
		return err
	}

	*m = make(map[string]interface{}, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			(*m)[k] = vs[0]
		}
	}

	return nil
}

// Decodes a request body into v.
//
// If the Endpoint dispatch already buffered the body (see RawData), the
// buffered bytes are decoded, so the body can be decoded more than once
// per request. This function considers only the Content-Type header, and
// requires its presence. See the Decoders variable for more information.
func Decode(r *http.Request, v interface{}) error {
	ct := strings.Split(r.Header.Get("Content-Type"), ";")[0]
	ct = strings.TrimSpace(ct)

	dec, ok := Decoders[ct]
	if !ok {
		return NoDecoderErr
	}

	if raw := RawData(r); raw != nil {
		return dec(bytes.NewReader(raw), v)
	}

	defer r.Body.Close()
	return dec(r.Body, v)
}

// Same as Decode(), but it panics instead of returning an error.
//
// When using the kit with the recommended settings, this method is
// recommended instead of Decode(), because the panic will get caught by
// the error handler middleware.
func MustDecode(r *http.Request, v interface{}) {
	err := Decode(r, v)
	if err == NoDecoderErr {
		Fail(r, http.StatusUnsupportedMediaType, err)
	}
	if err != nil {
		Fail(r, http.StatusBadRequest, err)
	}
}
