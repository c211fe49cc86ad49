package exporter_test

import (
	"os"
	"path/filepath"

	. "github.com/relaymesh/spipe/exporter"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("type DirectorySink", func() {
	var (
		dir  string
		sink *DirectorySink
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "sink")
		Expect(err).ShouldNot(HaveOccurred())

		sink = &DirectorySink{
			Dir: filepath.Join(dir, "export"),
		}
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	Describe("func Write()", func() {
		It("creates the directory on first use", func() {
			err := sink.Write("<id>", "<data>")
			Expect(err).ShouldNot(HaveOccurred())

			data, err := os.ReadFile(filepath.Join(sink.Dir, "<id>"))

			Expect(err).ShouldNot(HaveOccurred())
			Expect(data).To(Equal([]byte("<data>")))
		})

		It("overwrites an existing file", func() {
			err := sink.Write("<id>", "<data>")
			Expect(err).ShouldNot(HaveOccurred())

			err = sink.Write("<id>", "<replaced>")
			Expect(err).ShouldNot(HaveOccurred())

			data, err := os.ReadFile(filepath.Join(sink.Dir, "<id>"))

			Expect(err).ShouldNot(HaveOccurred())
			Expect(data).To(Equal([]byte("<replaced>")))
		})

		It("rejects an empty ID", func() {
			err := sink.Write("", "<data>")
			Expect(err).Should(HaveOccurred())
		})
	})
})
