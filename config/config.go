// Package config defines the configuration surface of a pipeline node.
//
// Each role (receiver, forwarder, exporter, sender) has its own section.
// Every section is validated against a fixed schema before the owning
// component is constructed; invalid configuration prevents construction
// entirely.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// A Duration is a time.Duration that unmarshals from TOML duration strings
// such as "500ms".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(v)

	return nil
}

// AsDuration returns d as a time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// Topic describes one accepted topic and the hosts that are allowed to
// publish envelopes on it.
type Topic struct {
	// Name is the topic name.
	Name string `toml:"name"`

	// Hosts is the set of hosts envelopes on this topic are accepted from.
	Hosts []string `toml:"hosts"`
}

// Peer identifies a remote ingestion endpoint.
type Peer struct {
	// Host is the peer's host name.
	Host string `toml:"host"`

	// Port is the peer's TCP port.
	Port int `toml:"port"`

	// Certificate is the PEM-encoded certificate used to authenticate the
	// peer.
	Certificate string `toml:"certificate"`
}

// Breaker configures the circuit breaker protecting outbound deliveries.
type Breaker struct {
	// MaxFailures is the consecutive failure count at which the breaker
	// opens.
	MaxFailures uint `toml:"max-failures"`

	// Timeout is the duration after which a delivery attempt qualifies as a
	// failure.
	Timeout Duration `toml:"timeout"`

	// ResetTimeout is the cooldown before an open breaker permits a trial.
	ResetTimeout Duration `toml:"reset-timeout"`
}

// Receiver configures the ingestion service.
type Receiver struct {
	// Name is the identity of this node.
	Name string `toml:"name"`

	// Port is the TCP port the service listens on.
	Port int `toml:"port"`

	// KeyLocation and CertLocation are the paths of the TLS key pair.
	KeyLocation  string `toml:"key-location"`
	CertLocation string `toml:"cert-location"`

	// AcceptedTopics is the set of topics this node buffers, each with its
	// allowed publisher hosts.
	AcceptedTopics []Topic `toml:"accepted-topics"`

	// DatabaseURL is the storage location of the per-topic queues.
	DatabaseURL string `toml:"database-url"`

	// MaxHops is the largest hop count an envelope may reach and still be
	// accepted.
	MaxHops uint64 `toml:"max-hops"`

	// MaxDocumentSizeBytes caps the size of an inbound request body.
	MaxDocumentSizeBytes int64 `toml:"max-document-size-bytes"`
}

// Forwarder configures the forwarding worker.
type Forwarder struct {
	// Name is the identity of this node.
	Name string `toml:"name"`

	// Topic is the topic whose queue is forwarded.
	Topic string `toml:"topic"`

	// Host is the remote peer deliveries are made to.
	Host Peer `toml:"host"`

	// DatabaseURL is the storage location of the local queue.
	DatabaseURL string `toml:"database-url"`

	// ForwardedStore is the name of the archive store that receives
	// delivered envelopes. If it is empty, "forwarded" is used.
	ForwardedStore string `toml:"forwarded-store"`

	// Limit is the largest number of queue entries drained per cycle.
	Limit int `toml:"limit"`

	// Interval is the delay between cycles.
	Interval Duration `toml:"interval"`

	// Breaker configures the delivery circuit breaker.
	Breaker Breaker `toml:"breaker"`
}

// Exporter configures the export worker.
type Exporter struct {
	// Name is the identity of this node.
	Name string `toml:"name"`

	// ID distinguishes this exporter's bookkeeping namespace from other
	// exporters of the same topic.
	ID string `toml:"id"`

	// Topic is the topic whose queue is exported.
	Topic string `toml:"topic"`

	// Originators is the set of originators whose streams are exported.
	Originators []string `toml:"originators"`

	// DatabaseURL is the storage location of the local queue.
	DatabaseURL string `toml:"database-url"`

	// ExportDir is the directory exported envelopes are written to.
	ExportDir string `toml:"export-dir"`

	// ExportedStore is the name of the archive store that receives exported
	// envelopes. If it is empty, "exported" is used.
	ExportedStore string `toml:"exported-store"`

	// Interval is the delay between export attempts for an originator whose
	// next envelope has not arrived yet.
	Interval Duration `toml:"interval"`
}

// Sender configures the originating side of the pipeline.
type Sender struct {
	// Originator is the identity envelopes are sent under.
	Originator string `toml:"originator"`

	// Destination is the identity of the node envelopes are addressed to.
	Destination string `toml:"destination"`

	// Topic is the topic envelopes are sent on.
	Topic string `toml:"topic"`

	// DatabaseURL is the storage location of the local outbound queue.
	DatabaseURL string `toml:"database-url"`
}

// Node is the complete configuration of one pipeline process.
//
// A section that is present enables the corresponding role; absent sections
// are not started.
type Node struct {
	Receiver  *Receiver  `toml:"receiver"`
	Forwarder *Forwarder `toml:"forwarder"`
	Exporter  *Exporter  `toml:"exporter"`
	Sender    *Sender    `toml:"sender"`
}

// Load reads and validates a node configuration file.
func Load(path string) (Node, error) {
	var cfg Node

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Node{}, fmt.Errorf("cannot load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Node{}, err
	}

	return cfg, nil
}
