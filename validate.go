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
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator is implemented by models that carry validation rules beyond
// their struct tags.
type Validator interface {
	Validate() error
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report errors under the wire names, not the Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})

	return v
}

// Validate checks a model before it is written to storage.
//
// Struct tags ("validate") are checked first; every failing field is
// collected, so the client gets the full list of problems in one
// round. If the model implements Validator, that runs afterwards.
// Returns a *Error with code 400 on failure.
func Validate(obj interface{}) error {
	if err := structValidator.Struct(obj); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := map[string][]string{}
			for _, ferr := range verrs {
				name := ferr.Field()
				fields[name] = append(fields[name], validationMessage(ferr))
			}
			return Validation(fields)
		}

		return WrapError(err, "invalid data")
	}

	if v, ok := obj.(Validator); ok {
		if err := v.Validate(); err != nil {
			var verr *Error
			if errors.As(err, &verr) {
				return verr
			}
			return WrapError(err, "invalid data")
		}
	}

	return nil
}

func validationMessage(ferr validator.FieldError) string {
	switch ferr.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "too short or too small (minimum: " + ferr.Param() + ")"
	case "max":
		return "too long or too large (maximum: " + ferr.Param() + ")"
	case "url":
		return "must be a valid URL"
	default:
		return "failed the '" + ferr.Tag() + "' constraint"
	}
}
