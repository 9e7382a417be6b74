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
	"crypto/tls"
	"database/sql"
	"encoding/hex"
	"errors"
	"io/ioutil"
	stdlog "log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/julienschmidt/httprouter"
	"github.com/restlesskit/restless/lib/log"
	"github.com/restlesskit/restless/util"
	"github.com/spf13/viper"
)

const paramKey = "restlessparam"

// A service is an unit of functionality, usually one API resource and its
// endpoints.
type Service interface {
	// Register the Service endpoints
	Register(*Server) error
}

// SchemaService is a Service with database objects. They are checked and
// installed when the service is registered.
type SchemaService interface {
	Service
	// Checks if the schema is installed
	SchemaInstalled(db DB) bool
	// Construct SQL string to install the schema
	SchemaSQL() string
}

// Sets up and starts a server.
//
// This function is a wrapper around Setup().
//
// Extra viper values:
//
// - secret: sets util.SetKey(). Must be hex.
//
// - redirectaddr: when serving TLS, a plain HTTP listener on this address
// redirects everything to the HTTPS address.
func Run(configure func(cfg *viper.Viper, s *Server) error, topMiddlewares ...func(http.Handler) http.Handler) {
	logger := log.DefaultOSLogger()
	cfg := viper.New()
	cfg.SetConfigName("config")
	cfg.AddConfigPath(".")
	cfg.AutomaticEnv()

	if err := cfg.ReadInConfig(); err != nil {
		logger.Verbose().Println(err)
	}

	if cfg.IsSet("secret") {
		secret, err := hex.DecodeString(cfg.GetString("secret"))
		if err != nil {
			logger.Fatalln(err)
		}
		if err := util.SetKey(secret); err != nil {
			logger.Fatalln(err)
		}
	}

	s, err := Setup(cfg, logger, topMiddlewares...)

	if err != nil {
		logger.Fatalln(err)
	}

	if err := configure(cfg, s); err != nil {
		logger.Fatalln(err)
	}

	cfg.SetDefault("host", "localhost")
	cfg.SetDefault("port", "8080")

	addr := cfg.GetString("host") + ":" + cfg.GetString("port")
	certFile := cfg.GetString("certfile")
	keyFile := cfg.GetString("keyfile")

	if certFile != "" && keyFile != "" && cfg.IsSet("redirectaddr") {
		go func() {
			if err := HTTPSRedirectServer(addr, cfg.GetString("redirectaddr")); err != nil {
				logger.User().Println(err)
			}
		}()
	}

	if err := s.StartHTTPS(addr, certFile, keyFile); err != nil {
		logger.Fatalln(err)
	}
}

// Sets up a Server with the recommended middlewares.
//
// The logger parameter can be nil, the default is log.DefaultOSLogger().
//
// topMiddlewares are middlewares that get applied right after the logger
// middlewares, but before anything else.
//
// Viper has to be set up, and the server understands these values:
//
// - CookieSecret string: hex representation of the session key bytes. Must be set.
//
// - PGConnectString string: connection string to Postgres. When empty, the
// server runs without a database.
//
// - DBMaxIdleConn int: max idle connections. Defaults to 0 (no open connections are retained).
//
// - DBMaxOpenConn int: max open connections. Defaults to 0 (unlimited).
//
// - LogLevel int: log level for the logger. Use the numeric values of the log.LOG_* constants.
//
// - DisplayErrors bool: include stack traces and request logs in error
// responses. Defaults to true when LogLevel is above user level.
//
// - hsts (hsts.maxage float, hsts.includesubdomains bool, hsts.hostblacklist []string): configuration values for the HSTS middleware. See HSTSConfig structure
//
// - gzip bool: enables the gzip middleware. Default is true.
//
// - CookiePrefix string: prefix for the session cookie.
//
// - CookieURL string: domain and path configuration for the cookies.
//
// - CookieExpiration duration: session cookie lifetime. Default is a year.
func Setup(cfg *viper.Viper, logger *log.Log, topMiddlewares ...func(http.Handler) http.Handler) (*Server, error) {
	cookieSecret := cfg.GetString("CookieSecret")
	if cookieSecret == "" {
		return nil, errors.New("secret key must not be empty")
	}
	cookieSecretBytes, err := hex.DecodeString(cookieSecret)
	if err != nil {
		return nil, err
	}

	var dbMiddleware func(http.Handler) http.Handler
	var conn *sql.DB
	if cfg.GetString("PGConnectString") != "" {
		dbMiddleware, conn = DBMiddleware(cfg.GetString("PGConnectString"), cfg.GetInt("DBMaxIdleConn"), cfg.GetInt("DBMaxOpenConn"))
	}

	s := NewServer(conn)

	if logger != nil {
		s.Logger = logger
	}

	s.Logger.Level = log.LogLevel(cfg.GetInt("LogLevel"))

	if len(topMiddlewares) > 0 {
		s.Use(topMiddlewares...)
	}

	requestLoggerOut := ioutil.Discard
	if s.Logger.Level > log.LOG_USER {
		requestLoggerOut = os.Stdout
	}

	s.Use(RequestLoggerMiddleware(requestLoggerOut))

	s.Use(DefaultLoggerMiddleware(s.Logger.Level))

	if cfg.IsSet("hsts") {
		hsts := &HSTSConfig{}
		cfg.UnmarshalKey("hsts", hsts)
		s.Use(HSTSMiddleware(*hsts))
	}

	cfg.SetDefault("gzip", true)
	if cfg.GetBool("gzip") {
		s.Use(gziphandler.GzipHandler)
	}

	cfg.SetDefault("DisplayErrors", s.Logger.Level > log.LOG_USER)
	s.Use(ErrorHandlerMiddleware(cfg.GetBool("DisplayErrors")))

	s.Use(RendererMiddleware)

	cookiePrefix := cfg.GetString("CookiePrefix")
	var cookieURL *url.URL = nil
	if cfg.IsSet("CookieURL") {
		cookieURL, err = url.Parse(cfg.GetString("CookieURL"))
		if err != nil {
			return nil, err
		}
	}

	cfg.SetDefault("CookieExpiration", time.Hour*24*365)
	s.Use(SessionMiddleware(cookiePrefix, SecretKey(cookieSecretBytes), cookieURL, cfg.GetDuration("CookieExpiration"), nil))

	if dbMiddleware != nil {
		s.Use(dbMiddleware)
	}

	return s, nil
}

// The main server struct.
type Server struct {
	*httprouter.Router
	conn        *sql.DB
	middlewares []func(http.Handler) http.Handler
	Logger      *log.Log
	TLSConfig   *tls.Config
}

// Creates a new server. The conn parameter can be nil for a database-less
// server.
func NewServer(conn *sql.DB) *Server {
	router := httprouter.New()
	router.HandleMethodNotAllowed = false
	s := &Server{
		Router: router,
		conn:   conn,
		Logger: log.DefaultOSLogger(),
	}

	return s
}

func (s *Server) Use(middleware ...func(http.Handler) http.Handler) {
	s.middlewares = append(s.middlewares, middleware...)
}

func (s *Server) UseHandler(h http.Handler) {
	s.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.ServeHTTP(w, r)
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) Handler() http.Handler {
	return wrapHandler(s.Router, s.middlewares...)
}

func wrapHandler(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	return handler
}

func (s *Server) Handle(method, path string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) {
	handler = wrapHandler(handler, middlewares...)
	s.Router.Handle(method, path, httprouter.Handle(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		r = SetContext(r, paramKey, p)
		handler.ServeHTTP(w, r)
	}))
}

func (s *Server) Head(path string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) {
	s.Handle("HEAD", path, handler, middlewares...)
}

func (s *Server) Get(path string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) {
	s.Handle("GET", path, handler, middlewares...)
}

func (s *Server) Post(path string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) {
	s.Handle("POST", path, handler, middlewares...)
}

func (s *Server) Put(path string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) {
	s.Handle("PUT", path, handler, middlewares...)
}

func (s *Server) Delete(path string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) {
	s.Handle("DELETE", path, handler, middlewares...)
}

func (s *Server) Patch(path string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) {
	s.Handle("PATCH", path, handler, middlewares...)
}

func (s *Server) Options(path string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) {
	s.Handle("OPTIONS", path, handler, middlewares...)
}

var endpointVerbs = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// RegisterEndpoint mounts an Endpoint on every standard verb. The endpoint
// dispatches on the verb itself, so a verb without a handler gets a 405
// with an Allow header instead of the router's 404.
func (s *Server) RegisterEndpoint(path string, e *Endpoint, middlewares ...func(http.Handler) http.Handler) {
	for _, verb := range endpointVerbs {
		s.Handle(verb, path, e, middlewares...)
	}
}

func GetParams(r *http.Request) httprouter.Params {
	if p, ok := r.Context().Value(paramKey).(httprouter.Params); ok {
		return p
	}

	return nil
}

// Returns the server's DB connection if there's any.
func (s *Server) GetDBConnection() DB {
	if s.conn == nil {
		return nil
	}

	return s.conn
}

// Adds a local directory to the router.
func (s *Server) AddLocalDir(prefix, path string) *Server {
	s.ServeFiles(prefix+"/*filepath", http.Dir(path))

	return s
}

// Adds a local file to the router.
func (s *Server) AddFile(path, file string) *Server {
	s.Get(path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, file)
	}))

	return s
}

// Registers a service on the server.
//
// If the service is a SchemaService and the server has a database
// connection, the schema is installed when missing.
func (s *Server) RegisterService(svc Service) error {
	if err := svc.Register(s); err != nil {
		return err
	}

	if ss, ok := svc.(SchemaService); ok && s.conn != nil && !ss.SchemaInstalled(s.conn) {
		sql := ss.SchemaSQL()
		if _, err := s.conn.Exec(sql); err != nil {
			return errors.New(err.Error() + "\n" + sql)
		}
	}

	return nil
}

// Starts an HTTPS server.
func (s *Server) StartHTTPS(addr, certFile, keyFile string) error {
	srv := &http.Server{
		Addr:      addr,
		Handler:   s.Handler(),
		TLSConfig: s.TLSConfig,
	}

	s.Logger.User().Printf("Starting server on %s\n", addr)

	if stdlogger, ok := s.Logger.User().(*stdlog.Logger); ok {
		srv.ErrorLog = stdlogger
	}

	var err error
	if certFile != "" && keyFile != "" {
		err = srv.ListenAndServeTLS(certFile, keyFile)
	} else {
		err = srv.ListenAndServe()
	}

	return err
}

// Starts an HTTP server.
func (s *Server) StartHTTP(addr string) error {
	return s.StartHTTPS(addr, "", "")
}

// Redirects HTTP requests to HTTPS.
//
// httpsAddr and httpAddr must be host:port format, where the port can be omitted.
func HTTPSRedirectServer(httpsAddr, httpAddr string) error {
	srv := &http.Server{
		Addr:    httpAddr,
		Handler: httpsRedirectHandler(httpsAddr),
	}

	return srv.ListenAndServe()
}

func httpsRedirectHandler(httpsAddr string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		newUrl := "https://" + httpsAddr + r.RequestURI
		LogTrace(r).Printf("Redirecting %s to %s via HTTPSRedirectServer\n", r.URL.String(), newUrl)
		http.Redirect(w, r, newUrl, http.StatusMovedPermanently)
	})
}
