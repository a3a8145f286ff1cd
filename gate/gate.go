// Package gate limits how many requests are handled at the same time.
//
// A gate with capacity 1 turns the concurrent net/http server into a
// one-request-at-a-time server: a slow transfer holds the slot until it
// completes and every other request waits behind it.
package gate

import (
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
)

// ErrBadCapacity is returned when the capacity is less than one.
var ErrBadCapacity = errors.New("gate capacity must be at least 1")

// Gate is a counting semaphore in front of a handler.
type Gate struct {
	slots  chan struct{}
	logger *log.Logger
}

// New creates a gate that lets at most capacity requests through.
func New(capacity int, logger *log.Logger) (*Gate, error) {
	if capacity < 1 {
		return nil, ErrBadCapacity
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Gate{
		slots:  make(chan struct{}, capacity),
		logger: logger,
	}, nil
}

// Capacity returns the number of slots.
func (g *Gate) Capacity() int {
	return cap(g.slots)
}

// InFlight returns the number of occupied slots.
func (g *Gate) InFlight() int {
	return len(g.slots)
}

// Wrap returns a handler that waits for a free slot before calling next.
// A request whose context ends while it waits is answered with 503.
func (g *Gate) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		select {
		case g.slots <- struct{}{}:
		default:
			g.logger.Debug("waiting for a free slot", "path", req.URL.Path, "busy", g.InFlight())
			select {
			case g.slots <- struct{}{}:
			case <-req.Context().Done():
				g.logger.Debug("client went away while waiting", "path", req.URL.Path, "err", req.Context().Err())
				http.Error(rw, "request dropped while waiting for a free slot", http.StatusServiceUnavailable)
				return
			}
		}
		defer func() { <-g.slots }()

		next.ServeHTTP(rw, req)
	})
}
