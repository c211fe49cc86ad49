package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/relaymesh/spipe/config"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("func Load()", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "config")
		Expect(err).ShouldNot(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	write := func(content string) string {
		path := filepath.Join(dir, "node.toml")

		err := os.WriteFile(path, []byte(content), 0600)
		Expect(err).ShouldNot(HaveOccurred())

		return path
	}

	It("loads a complete node configuration", func() {
		cfg, err := Load(write(`
[receiver]
name = "node2.example.org"
port = 8443
key-location = "/etc/spipe/key.pem"
cert-location = "/etc/spipe/cert.pem"
database-url = "/var/lib/spipe/node2.boltdb"
max-hops = 3
max-document-size-bytes = 1048576

[[receiver.accepted-topics]]
name = "documents"
hosts = ["node1.example.org"]

[forwarder]
name = "node2.example.org"
topic = "documents"
database-url = "/var/lib/spipe/node2.boltdb"
limit = 25
interval = "500ms"

[forwarder.host]
host = "node3.example.org"
port = 8443
certificate = "<pem>"

[forwarder.breaker]
max-failures = 5
timeout = "30s"
reset-timeout = "5m"

[exporter]
name = "node2.example.org"
id = "export-1"
topic = "documents"
originators = ["node1.example.org"]
database-url = "/var/lib/spipe/node2.boltdb"
export-dir = "/var/lib/spipe/export"
interval = "1s"

[sender]
originator = "node2.example.org"
destination = "node3.example.org"
topic = "documents"
database-url = "/var/lib/spipe/node2.boltdb"
`))

		Expect(err).ShouldNot(HaveOccurred())

		Expect(cfg.Receiver.Port).To(Equal(8443))
		Expect(cfg.Receiver.MaxHops).To(BeNumerically("==", 3))
		Expect(cfg.Receiver.AcceptedTopics).To(HaveLen(1))
		Expect(cfg.Receiver.AcceptedTopics[0].Hosts).To(ConsistOf("node1.example.org"))

		Expect(cfg.Forwarder.Interval.AsDuration()).To(Equal(500 * time.Millisecond))
		Expect(cfg.Forwarder.Breaker.ResetTimeout.AsDuration()).To(Equal(5 * time.Minute))

		Expect(cfg.Exporter.ID).To(Equal("export-1"))
		Expect(cfg.Sender.Originator).To(Equal("node2.example.org"))
	})

	It("permits a node with a single role", func() {
		_, err := Load(write(`
[sender]
originator = "node1.example.org"
destination = "node2.example.org"
topic = "documents"
database-url = "/var/lib/spipe/node1.boltdb"
`))

		Expect(err).ShouldNot(HaveOccurred())
	})

	It("rejects a configuration that enables no role", func() {
		_, err := Load(write(``))
		Expect(err).Should(HaveOccurred())
	})

	It("rejects an unreadable file", func() {
		_, err := Load(filepath.Join(dir, "missing.toml"))
		Expect(err).Should(HaveOccurred())
	})

	It("rejects a malformed duration", func() {
		_, err := Load(write(`
[exporter]
name = "node2.example.org"
id = "export-1"
topic = "documents"
originators = ["node1.example.org"]
database-url = "/var/lib/spipe/node2.boltdb"
export-dir = "/var/lib/spipe/export"
interval = "soon"
`))

		Expect(err).Should(HaveOccurred())
	})
})
