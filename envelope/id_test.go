package envelope_test

import (
	. "github.com/relaymesh/spipe/envelope"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("func ID()", func() {
	It("derives the same ID for the same inputs", func() {
		Expect(
			ID("documents", "node1.example.org", 5),
		).To(Equal(
			ID("documents", "node1.example.org", 5),
		))
	})

	It("includes the topic, originator and sequence number", func() {
		Expect(
			ID("documents", "node1.example.org", 5),
		).To(Equal("documents-node1.example.org-5"))
	})
})

var _ = Describe("func Envelope.NewID()", func() {
	It("assigns the derived ID to the envelope", func() {
		env := Envelope{
			Originator: "node1.example.org",
			Topic:      "documents",
			SequenceNo: 2,
		}

		id := env.NewID()

		Expect(id).To(Equal("documents-node1.example.org-2"))
		Expect(env.ID).To(Equal(id))
	})
})
