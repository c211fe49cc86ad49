// Package ingress implements the ingestion service: the inbound side of the
// wire protocol.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/relaymesh/spipe/config"
	"github.com/relaymesh/spipe/persistence"
)

// Server is the ingestion service.
//
// It accepts envelopes over HTTPS (HTTP/2 where the client supports it),
// validates them against the accepted-topic list, enforces the hop limit and
// buffers accepted envelopes on the per-topic queue.
type Server struct {
	// Config is the validated receiver configuration.
	Config config.Receiver

	// Queues provides the per-topic queues. Queues are opened lazily on
	// first reference to their topic.
	Queues *persistence.StoreSet

	// Logger is the target for log messages about inbound requests.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger
}

// Run serves inbound requests until ctx is canceled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Addr:    listenAddress(s.Config.Port),
		Handler: s,
	}

	// Stop the server when ctx is canceled from the outside.
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	logging.Log(
		s.Logger,
		"listening on %s",
		srv.Addr,
	)

	err := srv.ListenAndServeTLS(
		s.Config.CertLocation,
		s.Config.KeyLocation,
	)

	// If the server exits cleanly it is because Close() was called, which
	// only happens when the context is canceled.
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		<-ctx.Done()
		err = ctx.Err()
	}

	return err
}

// ServeHTTP routes an inbound request.
//
// Anything other than the status probe and the ingestion path is rejected
// with a "not supported" status.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet:
		s.serveStatus(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/":
		s.servePost(w, r)
	default:
		logging.Log(
			s.Logger,
			"rejecting unsupported request: %s %#v",
			r.Method,
			r.URL.Path,
		)

		respond(w, http.StatusServiceUnavailable, "request not supported")
	}
}

// serveStatus handles the health probe.
//
// The path guard is part of the probe's observable contract: a GET against
// any path other than /status is answered with 401 rather than 503.
func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/status" {
		logging.Log(
			s.Logger,
			"rejecting GET of non-existing path %#v",
			r.URL.Path,
		)

		respond(w, http.StatusUnauthorized, "attempt to access non-existing path")
		return
	}

	logging.Debug(s.Logger, "GET /status")

	respond(w, http.StatusOK, "receiver running, all dependencies ok")
}

func listenAddress(port int) string {
	return fmt.Sprintf(":%d", port)
}
