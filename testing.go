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
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/restlesskit/restless/lib/log"
	"github.com/restlesskit/restless/util"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

// TestServer runs a fully wired server on an ephemeral port for tests.
type TestServer struct {
	ConfigName string

	Server *Server
	cfg    *viper.Viper
	ts     *httptest.Server
}

func (s *TestServer) StartAndCleanUp(m *testing.M, setup func(cfg *viper.Viper, s *Server) error) {
	util.SetKey([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 1, 2})

	s.Start(setup)

	res := m.Run()

	s.Close()

	connStr := s.cfg.GetString("PGConnectString")
	if connStr != "" {
		conn, _ := sql.Open("postgres", connStr)
		conn.Exec(`
			DROP SCHEMA public CASCADE;
			CREATE SCHEMA public;
			GRANT ALL ON SCHEMA public TO postgres;
			GRANT ALL ON SCHEMA public TO public;
			COMMENT ON SCHEMA public IS 'standard public schema';
		`)

		conn.Close()
	}

	os.Exit(res)
}

// Start builds the server and starts listening. The base URL is
// returned.
func (s *TestServer) Start(setup func(cfg *viper.Viper, s *Server) error) string {
	if s.ConfigName == "" {
		s.ConfigName = "test"
	}

	cfg := viper.New()
	cfg.SetConfigName(s.ConfigName)
	cfg.AddConfigPath(".")
	cfg.AutomaticEnv()
	cfg.ReadInConfig()
	cfg.Set("CookieSecret", genSecret())

	srv, err := Setup(cfg, log.DefaultLogger(ioutil.Discard))
	if err != nil {
		panic(err)
	}

	if setup != nil {
		if err := setup(cfg, srv); err != nil {
			panic(err)
		}
	}

	s.Server = srv
	s.cfg = cfg
	s.ts = httptest.NewServer(srv.Handler())

	return s.ts.URL
}

// URL returns the base URL of the running server.
func (s *TestServer) URL() string {
	return s.ts.URL
}

func (s *TestServer) Close() {
	if s.ts != nil {
		s.ts.Close()
	}
}

func genSecret() string {
	buf := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, buf)
	if err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// TestClient is a cookie-aware HTTP client with goconvey assertions
// built in.
type TestClient struct {
	Client *http.Client
	base   string
}

func NewTestClient(base string) *TestClient {
	c := &http.Client{}
	c.Jar, _ = cookiejar.New(nil)

	return &TestClient{
		Client: c,
		base:   base,
	}
}

func (tc *TestClient) Request(method, endpoint string, body io.Reader, processReq func(*http.Request), processResp func(*http.Response), statusCode int) {
	req, _ := http.NewRequest(method, tc.base+endpoint, body)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if processReq != nil {
		processReq(req)
	}

	resp, err := tc.Client.Do(req)
	So(err, ShouldBeNil)
	defer resp.Body.Close()
	So(resp.StatusCode, ShouldEqual, statusCode)
	if processResp != nil {
		processResp(resp)
	}
}

func (tc *TestClient) JSONBuffer(v interface{}) io.Reader {
	buf := bytes.NewBuffer(nil)
	So(json.NewEncoder(buf).Encode(v), ShouldBeNil)
	return buf
}

func (tc *TestClient) AssertJSON(resp *http.Response, v, d interface{}) {
	So(json.NewDecoder(resp.Body).Decode(v), ShouldBeNil)
	So(v, ShouldResemble, d)
}

func (tc *TestClient) ReadBody(r *http.Response) string {
	b, err := ioutil.ReadAll(r.Body)
	So(err, ShouldBeNil)

	return string(b)
}
