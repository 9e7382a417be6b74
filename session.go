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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

const sessionKey = "restlesssession"

var errMalformedCookie = errors.New("malformed session cookie")

// SecretKey signs the session cookie. It should be at least 32 random
// bytes.
type SecretKey []byte

func (k SecretKey) sign(data []byte) []byte {
	mac := hmac.New(sha256.New, k)
	mac.Write(data)
	return mac.Sum(nil)
}

func (k SecretKey) verify(data, signature []byte) bool {
	return hmac.Equal(k.sign(data), signature)
}

// Session is the per-request session data. Mutations are written back to
// the cookie when the request ends.
type Session map[string]string

// Gets the session from the request context.
//
// Returns an empty session when the session middleware is not installed.
func GetSession(r *http.Request) Session {
	if sess, ok := r.Context().Value(sessionKey).(Session); ok {
		return sess
	}

	return Session{}
}

func (s Session) encode(expires int64) []byte {
	values := url.Values{}
	for k, v := range s {
		values.Set(k, v)
	}

	return []byte(strconv.FormatInt(expires, 10) + ":" + values.Encode())
}

func decodeSession(payload []byte) (Session, int64, error) {
	parts := strings.SplitN(string(payload), ":", 2)
	if len(parts) != 2 {
		return nil, 0, errMalformedCookie
	}

	expires, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, 0, errMalformedCookie
	}

	values, err := url.ParseQuery(parts[1])
	if err != nil {
		return nil, 0, errMalformedCookie
	}

	sess := Session{}
	for k := range values {
		sess[k] = values.Get(k)
	}

	return sess, expires, nil
}

// Parses and verifies a session cookie value. The value is the hex
// encoded signature followed by the hex encoded payload.
func readCookie(cookieValue string, key SecretKey) (Session, int64, error) {
	siglen := hex.EncodedLen(sha256.Size)
	if len(cookieValue) < siglen {
		return nil, 0, errMalformedCookie
	}

	signature, err := hex.DecodeString(cookieValue[:siglen])
	if err != nil {
		return nil, 0, errMalformedCookie
	}

	payload, err := hex.DecodeString(cookieValue[siglen:])
	if err != nil {
		return nil, 0, errMalformedCookie
	}

	if !key.verify(payload, signature) {
		return nil, 0, errMalformedCookie
	}

	return decodeSession(payload)
}

func writeCookie(sess Session, key SecretKey, expires int64) string {
	payload := sess.encode(expires)
	signature := key.sign(payload)

	return hex.EncodeToString(signature) + hex.EncodeToString(payload)
}

// SessionMiddleware maintains a signed cookie session for every request.
//
// The session is loaded from the cookie before the request handler runs,
// and written back afterwards if it changed. Tampered or expired cookies
// are treated as an empty session. A nil clock means the wall clock;
// tests inject a fake one.
func SessionMiddleware(cookiePrefix string, key SecretKey, cookieURL *url.URL, expiration time.Duration, clock clockwork.Clock) func(http.Handler) http.Handler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	cookieName := cookiePrefix + "_SESSION"
	cookiePath := "/"
	cookieDomain := ""
	secure := false
	if cookieURL != nil {
		if cookieURL.Path != "" {
			cookiePath = cookieURL.Path
		}
		cookieDomain = cookieURL.Hostname()
		secure = cookieURL.Scheme == "https"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := Session{}
			if cookie, err := r.Cookie(cookieName); err == nil {
				if loaded, expires, err := readCookie(cookie.Value, key); err == nil && expires > clock.Now().Unix() {
					sess = loaded
				}
			}

			before := writeCookie(sess, key, 0)

			r = SetContext(r, sessionKey, sess)

			next.ServeHTTP(w, r)

			// write-back relies on the renderer buffering the response,
			// so the header is still open here
			if after := writeCookie(sess, key, 0); after != before {
				expires := clock.Now().Add(expiration)
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    writeCookie(sess, key, expires.Unix()),
					Path:     cookiePath,
					Domain:   cookieDomain,
					Expires:  expires,
					Secure:   secure,
					HttpOnly: true,
				})
			}
		})
	}
}
