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
	"io"
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/restlesskit/restless/lib/log"
)

const logKey = "restlesslog"
const logBufKey = "restlesslogbuf"

func DefaultLoggerMiddleware(level log.LogLevel) func(http.Handler) http.Handler {
	return LoggerMiddleware(
		level,
		log.UserLogFactory,
		log.VerboseLogFactory,
		log.TraceLogFactory,
		os.Stdout,
	)
}

// LoggerMiddleware attaches a per-request leveled logger to the request
// context. Everything logged during the request is also collected into a
// buffer, so error handlers can attach the request's log trail to the
// error output.
func LoggerMiddleware(level log.LogLevel, userLogFactory, verboseLogFactory, traceLogFactory func(w io.Writer) log.Logger, lw io.Writer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buf := bytes.NewBuffer(nil)
			mw := io.MultiWriter(buf, lw)
			l := log.NewLogger(
				userLogFactory(mw),
				verboseLogFactory(mw),
				traceLogFactory(mw),
			)
			l.Level = level

			r = SetContext(r, logKey, l)
			r = SetContext(r, logBufKey, buf)

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogs returns everything that has been logged during the current
// request.
func RequestLogs(r *http.Request) string {
	if buf, ok := r.Context().Value(logBufKey).(*bytes.Buffer); ok {
		return buf.String()
	}

	return ""
}

func logFromContext(r *http.Request) *log.Log {
	if l, ok := r.Context().Value(logKey).(*log.Log); ok {
		return l
	}

	return log.NullLogger()
}

func LogUser(r *http.Request) log.Logger {
	return logFromContext(r).User()
}

func LogVerbose(r *http.Request) log.Logger {
	return logFromContext(r).Verbose()
}

func LogTrace(r *http.Request) log.Logger {
	return logFromContext(r).Trace()
}

type statusResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestLoggerMiddleware writes an access log line for every request.
func RequestLoggerMiddleware(out io.Writer) func(http.Handler) http.Handler {
	l := stdlog.New(out, "", stdlog.LstdFlags)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			l.Printf("%s %s %d %s\n", r.Method, r.URL.RequestURI(), sw.status, time.Since(start))
		})
	}
}
