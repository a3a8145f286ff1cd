// Package fileserver serves a directory tree over HTTP.
package fileserver

import (
	"net/http"
)

// New returns a handler serving files under root.
// Only GET and HEAD are supported, everything else gets 501.
func New(root string) http.Handler {
	fs := http.FileServer(http.Dir(root))

	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet, http.MethodHead:
			fs.ServeHTTP(rw, req)
		default:
			http.Error(rw, "Unsupported method ("+req.Method+")", http.StatusNotImplemented)
		}
	})
}
