package timer

import (
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Record describes one handled request.
type Record struct {
	Method   string
	Path     string
	Remote   string
	Status   int
	Bytes    int64
	Duration time.Duration
}

// MakeRequestTimeTracker measures how long next takes to handle a request
// and passes the result to saver once the handler returns.
func MakeRequestTimeTracker(next http.Handler, saver func(Record)) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		start := time.Now()
		w := &statusWriter{ResponseWriter: rw}

		next.ServeHTTP(w, req)

		status := w.status
		if status == 0 {
			status = http.StatusOK
		}
		saver(Record{
			Method:   req.Method,
			Path:     req.URL.Path,
			Remote:   req.RemoteAddr,
			Status:   status,
			Bytes:    w.written,
			Duration: time.Since(start),
		})
	})
}

// LogRecord returns a saver that writes an access line per request.
// Server errors are logged at error level, dropped requests (503) at warn,
// the rest at info.
func LogRecord(logger *log.Logger) func(Record) {
	return func(r Record) {
		keyvals := []interface{}{
			"method", r.Method,
			"path", r.Path,
			"status", r.Status,
			"bytes", r.Bytes,
			"duration", r.Duration,
			"remote", r.Remote,
		}
		switch {
		case r.Status == http.StatusNotImplemented:
			logger.Info("request", keyvals...)
		case r.Status == http.StatusServiceUnavailable:
			logger.Warn("request", keyvals...)
		case r.Status >= http.StatusInternalServerError:
			logger.Error("request", keyvals...)
		default:
			logger.Info("request", keyvals...)
		}
	}
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 && code >= 200 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// ReadFrom keeps the sendfile path of the underlying writer.
func (w *statusWriter) ReadFrom(r io.Reader) (int64, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	var n int64
	var err error
	if rf, ok := w.ResponseWriter.(io.ReaderFrom); ok {
		n, err = rf.ReadFrom(r)
	} else {
		n, err = io.Copy(w.ResponseWriter, r)
	}
	w.written += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
