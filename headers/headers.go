// Package headers decorates responses with the CORS and cross-origin
// isolation headers that browsers require before they expose
// SharedArrayBuffer.
package headers

import (
	"io"
	"net/http"
)

// Header is a single name/value pair.
type Header struct {
	Name  string
	Value string
}

// Isolation is the fixed set added to every response.
var Isolation = []Header{
	{"Cross-Origin-Embedder-Policy", "require-corp"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Access-Control-Allow-Origin", "*"},
	{"Access-Control-Allow-Methods", "GET, POST, OPTIONS"},
	{"Access-Control-Allow-Headers", "*"},
}

// Apply sets every header of set on h, replacing earlier values.
func Apply(h http.Header, set []Header) {
	for _, hdr := range set {
		h.Set(hdr.Name, hdr.Value)
	}
}

// Inject wraps next so that the Isolation headers are written right
// before the header block of each response is sent.
func Inject(next http.Handler) http.Handler {
	return InjectSet(next, Isolation)
}

// InjectSet is Inject with a custom header set.
func InjectSet(next http.Handler, set []Header) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		w := &injectingWriter{ResponseWriter: rw, set: set}
		next.ServeHTTP(w, req)

		// the handler wrote nothing, net/http will send an implicit 200
		w.finalize()
	})
}

type injectingWriter struct {
	http.ResponseWriter
	set     []Header
	written bool
}

func (w *injectingWriter) finalize() {
	if w.written {
		return
	}
	w.written = true
	Apply(w.ResponseWriter.Header(), w.set)
}

func (w *injectingWriter) WriteHeader(code int) {
	// 1xx responses are interim, the final header block comes later
	if code >= 100 && code < 200 {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	w.finalize()
	w.ResponseWriter.WriteHeader(code)
}

func (w *injectingWriter) Write(b []byte) (int, error) {
	w.finalize()
	return w.ResponseWriter.Write(b)
}

// ReadFrom finalizes the headers and hands the copy to the underlying
// writer, so http.FileServer keeps its sendfile path.
func (w *injectingWriter) ReadFrom(r io.Reader) (int64, error) {
	w.finalize()
	if rf, ok := w.ResponseWriter.(io.ReaderFrom); ok {
		return rf.ReadFrom(r)
	}
	return io.Copy(w.ResponseWriter, r)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *injectingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
