package envelope_test

import (
	. "github.com/relaymesh/spipe/envelope"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("func IsIdentity()", func() {
	DescribeTable(
		"it accepts host-shaped identities",
		func(s string) {
			Expect(IsIdentity(s)).To(BeTrue())
		},
		Entry("qualified host name", "node1.example.org"),
		Entry("bare host name", "node1"),
		Entry("IPv4 address", "192.168.0.1"),
		Entry("IPv6 address", "::1"),
	)

	DescribeTable(
		"it rejects malformed identities",
		func(s string) {
			Expect(IsIdentity(s)).To(BeFalse())
		},
		Entry("empty string", ""),
		Entry("leading hyphen", "-node1"),
		Entry("trailing slash", "node1.example.org/"),
		Entry("embedded space", "node 1"),
	)
})

var _ = Describe("type Envelope", func() {
	Describe("func Validate()", func() {
		var env Envelope

		BeforeEach(func() {
			env = Envelope{
				Originator:  "node1.example.org",
				Destination: "node2.example.org",
				Topic:       "documents",
				SequenceNo:  3,
			}
		})

		It("accepts a well-formed envelope", func() {
			Expect(env.Validate()).ShouldNot(HaveOccurred())
		})

		It("rejects an invalid originator", func() {
			env.Originator = "not a host"
			Expect(env.Validate()).Should(HaveOccurred())
		})

		It("rejects an invalid destination", func() {
			env.Destination = ""
			Expect(env.Validate()).Should(HaveOccurred())
		})

		It("rejects an empty topic", func() {
			env.Topic = ""
			Expect(env.Validate()).Should(HaveOccurred())
		})
	})
})
