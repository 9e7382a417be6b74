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

package auth

import (
	"net/http"

	"github.com/restlesskit/restless"
)

var _ restless.Authenticator = &BasicAuthenticator{}
var _ Challenger = &BasicAuthenticator{}

// BasicAuthenticator authenticates requests with HTTP Basic credentials.
//
// A request without an Authorization header stays anonymous; a header
// with bad credentials is an error.
type BasicAuthenticator struct {
	Delegate UserDelegate
	Realm    string
}

func (ba *BasicAuthenticator) realm() string {
	if ba.Realm == "" {
		return "api"
	}
	return ba.Realm
}

func (ba *BasicAuthenticator) Challenge() string {
	return `Basic realm="` + ba.realm() + `"`
}

func (ba *BasicAuthenticator) Authenticate(r *http.Request) (interface{}, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, nil
	}

	return verifyCredentials(ba.Delegate, username, password, ba.Challenge())
}

var _ restless.Authenticator = &CredentialsAuthenticator{}

// CredentialsAuthenticator reads the login credentials from the decoded
// request body. The field names default to "username" and "password".
type CredentialsAuthenticator struct {
	Delegate      UserDelegate
	UsernameField string
	PasswordField string
}

func (ca *CredentialsAuthenticator) fields() (string, string) {
	username := ca.UsernameField
	if username == "" {
		username = "username"
	}
	password := ca.PasswordField
	if password == "" {
		password = "password"
	}

	return username, password
}

func (ca *CredentialsAuthenticator) Authenticate(r *http.Request) (interface{}, error) {
	if restless.RawData(r) == nil {
		return nil, nil
	}

	usernameField, passwordField := ca.fields()

	data := restless.Data(r)
	username, _ := data[usernameField].(string)
	password, _ := data[passwordField].(string)
	if username == "" || password == "" {
		return nil, nil
	}

	return verifyCredentials(ca.Delegate, username, password, "")
}

var _ restless.Authenticator = &SessionAuthenticator{}

// SessionAuthenticator loads the principal from the cookie session
// established by the login endpoint.
type SessionAuthenticator struct {
	Delegate UserDelegate
}

func (sa *SessionAuthenticator) Authenticate(r *http.Request) (interface{}, error) {
	uid := restless.GetSession(r)["uid"]
	if uid == "" {
		return nil, nil
	}

	return sa.Delegate.PrincipalByID(uid)
}

func verifyCredentials(user UserDelegate, username, password, challenge string) (interface{}, error) {
	principal, hash, err := user.Credentials(username)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, restless.Unauthorized(challenge)
	}

	ok, err := VerifyPassword(password, hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, restless.Unauthorized(challenge)
	}

	return principal, nil
}
