package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/relaymesh/spipe/envelope"
)

const (
	// minInterval is the shortest permitted polling interval.
	minInterval = 10 * time.Millisecond

	// maxPort is the largest permitted TCP port.
	maxPort = 65000

	// maxLimit is the largest permitted batch limit.
	maxLimit = 65000
)

// Validate returns an error if the node configuration is invalid.
func (c Node) Validate() error {
	if c.Receiver == nil && c.Forwarder == nil && c.Exporter == nil && c.Sender == nil {
		return errors.New("configuration enables no role")
	}

	for _, v := range []interface {
		Validate() error
	}{
		c.Receiver,
		c.Forwarder,
		c.Exporter,
		c.Sender,
	} {
		// The nil-ness of the typed pointers is lost in the interface
		// conversion, so each Validate() must tolerate a nil receiver.
		if err := v.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Validate returns an error if the receiver configuration is invalid.
func (c *Receiver) Validate() error {
	if c == nil {
		return nil
	}

	if !envelope.IsIdentity(c.Name) {
		return fmt.Errorf("receiver: invalid name: %#v", c.Name)
	}

	if c.Port < 1 || c.Port > maxPort {
		return fmt.Errorf("receiver: invalid port: %d", c.Port)
	}

	if c.KeyLocation == "" || c.CertLocation == "" {
		return errors.New("receiver: key-location and cert-location are required")
	}

	if c.DatabaseURL == "" {
		return errors.New("receiver: database-url is required")
	}

	if len(c.AcceptedTopics) == 0 {
		return errors.New("receiver: at least one accepted topic is required")
	}

	seen := map[string]struct{}{}

	for _, t := range c.AcceptedTopics {
		if t.Name == "" {
			return errors.New("receiver: topic name must not be empty")
		}

		if _, ok := seen[t.Name]; ok {
			return fmt.Errorf("receiver: duplicate topic %#v", t.Name)
		}
		seen[t.Name] = struct{}{}

		if len(t.Hosts) == 0 {
			return fmt.Errorf("receiver: topic %#v allows no hosts", t.Name)
		}

		for _, h := range t.Hosts {
			if !envelope.IsIdentity(h) {
				return fmt.Errorf("receiver: topic %#v: invalid host %#v", t.Name, h)
			}
		}
	}

	if c.MaxHops == 0 {
		return errors.New("receiver: max-hops must be positive")
	}

	if c.MaxDocumentSizeBytes < 0 {
		return fmt.Errorf("receiver: invalid max-document-size-bytes: %d", c.MaxDocumentSizeBytes)
	}

	return nil
}

// Validate returns an error if the forwarder configuration is invalid.
func (c *Forwarder) Validate() error {
	if c == nil {
		return nil
	}

	if !envelope.IsIdentity(c.Name) {
		return fmt.Errorf("forwarder: invalid name: %#v", c.Name)
	}

	if c.Topic == "" {
		return errors.New("forwarder: topic is required")
	}

	if err := c.Host.Validate(); err != nil {
		return fmt.Errorf("forwarder: %w", err)
	}

	if c.DatabaseURL == "" {
		return errors.New("forwarder: database-url is required")
	}

	if err := validateLimit(c.Limit); err != nil {
		return fmt.Errorf("forwarder: %w", err)
	}

	if err := validateInterval(c.Interval); err != nil {
		return fmt.Errorf("forwarder: %w", err)
	}

	if c.Breaker.Timeout < 0 || c.Breaker.ResetTimeout < 0 {
		return errors.New("forwarder: breaker timeouts must be positive")
	}

	return nil
}

// Validate returns an error if the exporter configuration is invalid.
func (c *Exporter) Validate() error {
	if c == nil {
		return nil
	}

	if !envelope.IsIdentity(c.Name) {
		return fmt.Errorf("exporter: invalid name: %#v", c.Name)
	}

	if c.ID == "" {
		return errors.New("exporter: id is required")
	}

	if c.Topic == "" {
		return errors.New("exporter: topic is required")
	}

	if len(c.Originators) == 0 {
		return errors.New("exporter: at least one originator is required")
	}

	for _, o := range c.Originators {
		if !envelope.IsIdentity(o) {
			return fmt.Errorf("exporter: invalid originator: %#v", o)
		}
	}

	if c.DatabaseURL == "" {
		return errors.New("exporter: database-url is required")
	}

	if c.ExportDir == "" {
		return errors.New("exporter: export-dir is required")
	}

	if err := validateInterval(c.Interval); err != nil {
		return fmt.Errorf("exporter: %w", err)
	}

	return nil
}

// Validate returns an error if the sender configuration is invalid.
func (c *Sender) Validate() error {
	if c == nil {
		return nil
	}

	if !envelope.IsIdentity(c.Originator) {
		return fmt.Errorf("sender: invalid originator: %#v", c.Originator)
	}

	if !envelope.IsIdentity(c.Destination) {
		return fmt.Errorf("sender: invalid destination: %#v", c.Destination)
	}

	if c.Topic == "" {
		return errors.New("sender: topic is required")
	}

	if c.DatabaseURL == "" {
		return errors.New("sender: database-url is required")
	}

	return nil
}

// Validate returns an error if the peer configuration is invalid.
func (p Peer) Validate() error {
	if !envelope.IsIdentity(p.Host) {
		return fmt.Errorf("invalid peer host: %#v", p.Host)
	}

	if p.Port < 1 || p.Port > maxPort {
		return fmt.Errorf("invalid peer port: %d", p.Port)
	}

	if p.Certificate == "" {
		return errors.New("peer certificate is required")
	}

	return nil
}

func validateLimit(n int) error {
	if n < 1 || n > maxLimit {
		return fmt.Errorf("invalid limit: %d", n)
	}

	return nil
}

func validateInterval(d Duration) error {
	if d.AsDuration() < minInterval {
		return fmt.Errorf("interval must be at least %s", minInterval)
	}

	return nil
}
