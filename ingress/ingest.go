package ingress

import (
	"io"
	"net"
	"net/http"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/relaymesh/spipe/config"
	"github.com/relaymesh/spipe/envelope"
	"github.com/relaymesh/spipe/persistence"
)

// servePost handles the main ingestion path.
//
// The request body is an envelope without an ID; the ID is derived here so
// that re-delivery of the same envelope lands on the same queue row.
func (s *Server) servePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body := io.Reader(r.Body)
	if s.Config.MaxDocumentSizeBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.Config.MaxDocumentSizeBytes)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		logging.Log(s.Logger, "cannot read request body: %s", err)
		respond(w, http.StatusServiceUnavailable, "error reading data: "+err.Error())
		return
	}

	env, err := envelope.Parse(data)
	if err != nil {
		logging.Log(s.Logger, "rejecting envelope: %s", err)
		respond(w, http.StatusServiceUnavailable, "error parsing data: "+err.Error())
		return
	}

	topic, ok := s.acceptedTopic(env.Topic)
	if !ok {
		logging.Log(s.Logger, "rejecting envelope for unregistered topic %#v", env.Topic)
		respond(w, http.StatusServiceUnavailable, "topic not accepted")
		return
	}

	if !allowedHost(topic, sourceHost(r)) {
		logging.Log(
			s.Logger,
			"rejecting envelope on %#v from disallowed host %#v",
			env.Topic,
			sourceHost(r),
		)
		respond(w, http.StatusServiceUnavailable, "host not allowed for topic")
		return
	}

	env.NewID()
	env.Hops++

	if env.Hops > s.Config.MaxHops {
		// Dropped, not persisted. Unlike the behavior this was modeled on,
		// the drop is reported with a status distinct from both acceptance
		// and storage failure so that callers can observe it.
		logging.Log(
			s.Logger,
			"dropping envelope %#v: hop count %d exceeds limit %d",
			env.ID,
			env.Hops,
			s.Config.MaxHops,
		)
		respond(w, http.StatusForbidden, "hop limit exceeded")
		return
	}

	queue, err := s.Queues.Get(ctx, env.Topic)
	if err != nil {
		logging.Log(s.Logger, "cannot open queue for topic %#v: %s", env.Topic, err)
		respond(w, http.StatusServiceUnavailable, "error storing data: "+err.Error())
		return
	}

	if _, err := queue.Put(
		ctx,
		persistence.Record{
			ID:   env.ID,
			Body: envelope.Marshal(env),
		},
	); err != nil {
		if persistence.IsConflict(err) {
			// The same envelope has been ingested before; re-delivery is
			// idempotent, so report success and let the sender stop
			// retrying.
			logging.Debug(s.Logger, "envelope %#v already stored", env.ID)
			respond(w, http.StatusOK, "already stored")
			return
		}

		logging.Log(s.Logger, "cannot store envelope %#v: %s", env.ID, err)
		respond(w, http.StatusServiceUnavailable, "error storing data: "+err.Error())
		return
	}

	logging.Debug(s.Logger, "stored envelope %#v", env.ID)

	respond(w, http.StatusOK, "stored successfully")
}

// acceptedTopic returns the configuration of an accepted topic.
func (s *Server) acceptedTopic(name string) (config.Topic, bool) {
	for _, t := range s.Config.AcceptedTopics {
		if t.Name == name {
			return t, true
		}
	}

	return config.Topic{}, false
}

// allowedHost returns true if envelopes on the topic are accepted from the
// given host.
func allowedHost(t config.Topic, host string) bool {
	for _, h := range t.Hosts {
		if h == host {
			return true
		}
	}

	return false
}

// sourceHost returns the host the request was received from.
func sourceHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
