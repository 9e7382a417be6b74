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
Authentication service.

This service is a generic service for authentication. The application
supplies a UserDelegate that maps identifiers to principals; the service
provides the login endpoints and the authenticators that guard the other
endpoints.
*/
package auth

import (
	"net/http"
	"time"

	"github.com/restlesskit/restless"
)

// UserDelegate connects the service to the application's user storage.
type UserDelegate interface {
	// Resolves a login identifier to the principal and its password
	// hash. An unknown identifier is (nil, "", nil).
	Credentials(identifier string) (principal interface{}, hash string, err error)
	// Loads a principal by its stable id.
	PrincipalByID(id string) (interface{}, error)
	// The stable id of a principal, as stored in the session.
	PrincipalID(principal interface{}) string
}

// Challenger is implemented by authenticators that can challenge the
// client, e.g. with a WWW-Authenticate header.
type Challenger interface {
	Challenge() string
}

// Any combines authenticators. The first one that yields a principal or
// an error wins.
func Any(authenticators ...restless.Authenticator) restless.Authenticator {
	return anyAuthenticator(authenticators)
}

type anyAuthenticator []restless.Authenticator

func (aa anyAuthenticator) Authenticate(r *http.Request) (interface{}, error) {
	for _, a := range aa {
		principal, err := a.Authenticate(r)
		if err != nil {
			return nil, err
		}
		if principal != nil {
			return principal, nil
		}
	}

	return nil, nil
}

func (aa anyAuthenticator) Challenge() string {
	for _, a := range aa {
		if c, ok := a.(Challenger); ok {
			return c.Challenge()
		}
	}

	return ""
}

// LoginRequired wraps a handler so that it only runs for authenticated
// requests.
//
// When the endpoint's own authenticator has already established a
// principal, that is used. Otherwise a is consulted. An anonymous
// request gets 401 when the authenticator can challenge the client, 403
// otherwise. The wrapped handler is never invoked for anonymous
// requests.
func LoginRequired(a restless.Authenticator, h restless.Handler) restless.Handler {
	return func(r *http.Request) (interface{}, error) {
		principal := restless.Principal(r)

		if principal == nil && a != nil {
			p, err := a.Authenticate(r)
			if err != nil {
				return nil, err
			}
			if p != nil {
				principal = p
				r = restless.WithPrincipal(r, p)
			}
		}

		if principal == nil {
			if c, ok := a.(Challenger); ok && c.Challenge() != "" {
				return nil, restless.Unauthorized(c.Challenge())
			}
			return nil, restless.Forbidden("login required")
		}

		return h(r)
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

var _ restless.SchemaService = &Service{}

// Auth service settings.
type Service struct {
	user        UserDelegate
	conn        restless.DB
	stopCleanup chan struct{}

	// Serialization spec of the principal in login and me responses.
	Serialize *restless.Options
}

// Creates a new auth service. The conn parameter can be nil; then the
// token table is not installed and the token cleanup is disabled.
func NewService(user UserDelegate, conn restless.DB) *Service {
	return &Service{
		user:        user,
		conn:        conn,
		stopCleanup: make(chan struct{}),
	}
}

func (s *Service) SchemaInstalled(db restless.DB) bool {
	return restless.TableExists(db, "token")
}

func (s *Service) SchemaSQL() string {
	return `
	CREATE TABLE token (
		uuid uuid NOT NULL,
		category character varying NOT NULL,
		token character(128) NOT NULL,
		expires timestamp with time zone,
		CONSTRAINT token_pkey PRIMARY KEY (uuid, category),
		CONSTRAINT token_token_key UNIQUE (token)
	);
	`
}

func (s *Service) loginHandler(r *http.Request) (interface{}, error) {
	creds := &loginRequest{}
	restless.MustDecode(r, creds)

	if err := restless.Validate(creds); err != nil {
		return nil, err
	}

	principal, hash, err := s.user.Credentials(creds.Username)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, restless.Unauthorized("")
	}

	ok, err := VerifyPassword(creds.Password, hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, restless.Unauthorized("")
	}

	sess := restless.GetSession(r)
	sess["uid"] = s.user.PrincipalID(principal)

	return restless.Serialize(principal, s.Serialize)
}

func (s *Service) logoutHandler(r *http.Request) (interface{}, error) {
	sess := restless.GetSession(r)
	for k := range sess {
		delete(sess, k)
	}

	return nil, nil
}

func (s *Service) meHandler(r *http.Request) (interface{}, error) {
	return restless.Serialize(restless.Principal(r), s.Serialize)
}

func (s *Service) Register(srv *restless.Server) error {
	sessionAuthn := &SessionAuthenticator{Delegate: s.user}

	srv.RegisterEndpoint("/api/auth/login", restless.NewEndpoint().Post(s.loginHandler))
	srv.RegisterEndpoint("/api/auth/logout", restless.NewEndpoint().Post(s.logoutHandler))
	srv.RegisterEndpoint("/api/auth/me", restless.NewEndpoint().
		Get(LoginRequired(sessionAuthn, s.meHandler)))

	if s.conn != nil {
		go func() {
			for {
				RemoveExpiredTokens(s.conn, nil)
				select {
				case <-time.After(time.Hour):
				case <-s.stopCleanup:
					return
				}
			}
		}()
	}

	return nil
}

// Stops the token cleanup goroutine.
func (s *Service) StopCleanup() {
	close(s.stopCleanup)
}
