// Package httplog is a logging middleware for net/http servers with basic
// request correlation. Completed requests are logged to a logrus entry.
package httplog

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type requestObserver struct {
	http.ResponseWriter

	bytes int
	code  int
}

func (s *requestObserver) WriteHeader(code int) {
	s.ResponseWriter.WriteHeader(code)
	if s.code == 0 {
		s.code = code
	}
}

func (s *requestObserver) Write(b []byte) (int, error) {
	if s.code == 0 {
		s.code = http.StatusOK
	}

	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// HTTPLog logs every completed request with its correlation ID, status, size
// and duration.
type HTTPLog struct {
	Logger *logrus.Entry

	// CorrelationHeader is read from the request and echoed in the response.
	// A new UUID is generated when the request does not carry one.
	CorrelationHeader string

	// SkipInfo logs successful requests at debug level instead of info
	SkipInfo bool
}

type httpLogContextKey int

const (
	contextCorrelationID httpLogContextKey = 1
	contextKeeper        httpLogContextKey = 2

	maxCorrelationID = 40
)

// GetMiddleware returns a function that wraps a handler with the logger.
// For example: mux.Use(httpLog.GetMiddleware())
func (l *HTTPLog) GetMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return l.GetHandler(next)
	}
}

// GetHandler wraps next with the logger.
func (l *HTTPLog) GetHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin := time.Now()

		id := ""
		if len(l.CorrelationHeader) > 0 {
			id = r.Header.Get(l.CorrelationHeader)
		}
		if len(id) == 0 {
			id = uuid.New().String()
		} else if len(id) > maxCorrelationID {
			id = id[0:maxCorrelationID]
		}
		if len(l.CorrelationHeader) > 0 {
			w.Header().Set(l.CorrelationHeader, id)
		}

		keeper := &requestLogKeeper{
			corrID:  id,
			httpLog: l,
		}

		extendedCtx := context.WithValue(context.WithValue(r.Context(),
			contextCorrelationID, id),
			contextKeeper, keeper)

		ro := requestObserver{
			ResponseWriter: w,
		}

		next.ServeHTTP(&ro, r.WithContext(extendedCtx))
		if ro.code == 0 {
			ro.code = http.StatusOK
		}

		keeper.Lock()
		keeper.done = true
		extraLog := keeper.output
		keeper.output = nil
		keeper.Unlock()

		if l.Logger == nil {
			return
		}

		entry := l.Logger.WithFields(logrus.Fields{
			"id":       id,
			"remote":   r.RemoteAddr,
			"status":   ro.code,
			"bytes":    ro.bytes,
			"duration": time.Since(begin).String(),
		})
		if len(extraLog) > 0 {
			entry = entry.WithField("notes", strings.Join(extraLog, ", "))
		}

		msg := fmt.Sprintf("%s %s: %s", r.Method, r.URL.RequestURI(), http.StatusText(ro.code))
		switch {
		case ro.code >= 500:
			entry.Warn(msg)
		case l.SkipInfo:
			entry.Debug(msg)
		default:
			entry.Info(msg)
		}
	})
}

type requestLogKeeper struct {
	sync.Mutex

	httpLog *HTTPLog
	corrID  string
	output  []string
	done    bool
}

// CorrelationIDFromRequest returns the correlation ID associated with a http.Request
func CorrelationIDFromRequest(r *http.Request) string {
	v, ok := r.Context().Value(contextCorrelationID).(string)
	if !ok {
		return "None"
	}
	return v
}

// LogfFromRequest returns a function with fmt.Printf signature that attaches
// a note to the log line of the request. Notes added after the request
// completed are logged separately. Requests not passing through the
// middleware get a function that discards its input.
func LogfFromRequest(r *http.Request) func(format string, param ...interface{}) {
	keeper, ok := r.Context().Value(contextKeeper).(*requestLogKeeper)
	if !ok {
		return func(format string, param ...interface{}) {}
	}

	return func(format string, param ...interface{}) {
		note := fmt.Sprintf("\""+format+"\"", param...)

		keeper.Lock()
		defer keeper.Unlock()

		if keeper.done {
			if keeper.httpLog.Logger != nil {
				keeper.httpLog.Logger.WithField("id", keeper.corrID).Info(note)
			}
			return
		}

		keeper.output = append(keeper.output, note)
	}
}
