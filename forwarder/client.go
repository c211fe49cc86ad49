// Package forwarder implements the relay side of the pipeline: draining the
// local queue by delivering envelopes to the next hop.
package forwarder

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/relaymesh/spipe/config"
	"github.com/relaymesh/spipe/envelope"
)

// Client delivers envelopes to a single remote ingestion endpoint.
type Client struct {
	// BaseURL is the root URL of the peer's ingestion service.
	BaseURL string

	// HTTPClient is the client used to make requests. If it is nil,
	// http.DefaultClient is used.
	HTTPClient *http.Client
}

// NewClient returns a client that delivers to the given peer, authenticating
// it against its pinned certificate.
func NewClient(peer config.Peer, timeout time.Duration) (*Client, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(peer.Certificate)) {
		return nil, fmt.Errorf(
			"cannot parse certificate for peer %#v",
			peer.Host,
		)
	}

	return &Client{
		BaseURL: fmt.Sprintf("https://%s:%d/", peer.Host, peer.Port),
		HTTPClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				ForceAttemptHTTP2: true,
				TLSClientConfig: &tls.Config{
					RootCAs: pool,
				},
			},
		},
	}, nil
}

// Deliver posts an envelope to the peer.
//
// The envelope's ID is stripped from the wire representation; the receiving
// node derives it again, so a given envelope maps to the same ID on every
// hop.
func (c *Client) Deliver(ctx context.Context, env envelope.Envelope) error {
	env.ID = ""

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.BaseURL,
		strings.NewReader(string(envelope.Marshal(env))),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	res, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	// Drain the body so the connection can be reused.
	io.Copy(io.Discard, res.Body) // nolint:errcheck

	if res.StatusCode != http.StatusOK {
		return errors.New(res.Status)
	}

	return nil
}
