package memorypersistence_test

import (
	"context"
	"time"

	. "github.com/relaymesh/spipe/persistence/memorypersistence"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/relaymesh/spipe/persistence"
)

var _ = Describe("type Provider", func() {
	var (
		ctx      context.Context
		cancel   context.CancelFunc
		provider *Provider
		store    persistence.Store
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 1*time.Second)

		provider = &Provider{}

		var err error
		store, err = provider.Open(ctx, "<store>")
		Expect(err).ShouldNot(HaveOccurred())
	})

	AfterEach(func() {
		cancel()
	})

	Describe("func Open()", func() {
		It("shares records between handles with the same name", func() {
			other, err := provider.Open(ctx, "<store>")
			Expect(err).ShouldNot(HaveOccurred())

			_, err = store.Put(ctx, persistence.Record{
				ID:   "<id>",
				Body: []byte("<body>"),
			})
			Expect(err).ShouldNot(HaveOccurred())

			rec, err := other.Get(ctx, "<id>")

			Expect(err).ShouldNot(HaveOccurred())
			Expect(rec.Body).To(Equal([]byte("<body>")))
		})

		It("keeps stores with different names independent", func() {
			other, err := provider.Open(ctx, "<other>")
			Expect(err).ShouldNot(HaveOccurred())

			_, err = store.Put(ctx, persistence.Record{ID: "<id>"})
			Expect(err).ShouldNot(HaveOccurred())

			_, err = other.Get(ctx, "<id>")
			Expect(persistence.IsUnknownRecord(err)).To(BeTrue())
		})
	})

	Describe("func Put()", func() {
		It("assigns revision one to a new record", func() {
			rec, err := store.Put(ctx, persistence.Record{
				ID:   "<id>",
				Body: []byte("<body>"),
			})

			Expect(err).ShouldNot(HaveOccurred())
			Expect(rec.Revision).To(BeNumerically("==", 1))
		})

		It("increments the revision on update", func() {
			rec, err := store.Put(ctx, persistence.Record{ID: "<id>"})
			Expect(err).ShouldNot(HaveOccurred())

			rec.Body = []byte("<updated>")
			rec, err = store.Put(ctx, rec)

			Expect(err).ShouldNot(HaveOccurred())
			Expect(rec.Revision).To(BeNumerically("==", 2))
		})

		It("rejects a create against an existing record", func() {
			_, err := store.Put(ctx, persistence.Record{ID: "<id>"})
			Expect(err).ShouldNot(HaveOccurred())

			_, err = store.Put(ctx, persistence.Record{ID: "<id>"})
			Expect(persistence.IsConflict(err)).To(BeTrue())
		})

		It("rejects an update with a stale revision", func() {
			rec, err := store.Put(ctx, persistence.Record{ID: "<id>"})
			Expect(err).ShouldNot(HaveOccurred())

			_, err = store.Put(ctx, rec)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = store.Put(ctx, rec)
			Expect(persistence.IsConflict(err)).To(BeTrue())
		})

		It("does not alias the caller's body slice", func() {
			body := []byte("<body>")

			_, err := store.Put(ctx, persistence.Record{
				ID:   "<id>",
				Body: body,
			})
			Expect(err).ShouldNot(HaveOccurred())

			body[1] = 'X'

			rec, err := store.Get(ctx, "<id>")

			Expect(err).ShouldNot(HaveOccurred())
			Expect(rec.Body).To(Equal([]byte("<body>")))
		})
	})

	Describe("func Get()", func() {
		It("returns an unknown-record error for a missing record", func() {
			_, err := store.Get(ctx, "<missing>")
			Expect(persistence.IsUnknownRecord(err)).To(BeTrue())
		})
	})

	Describe("func List()", func() {
		BeforeEach(func() {
			for _, id := range []string{"<a>", "<b>", "<c>"} {
				_, err := store.Put(ctx, persistence.Record{
					ID:   id,
					Body: []byte(id),
				})
				Expect(err).ShouldNot(HaveOccurred())
			}
		})

		It("returns all records when n is non-positive", func() {
			records, err := store.List(ctx, 0, true)

			Expect(err).ShouldNot(HaveOccurred())
			Expect(records).To(HaveLen(3))
		})

		It("limits the result to n records", func() {
			records, err := store.List(ctx, 2, true)

			Expect(err).ShouldNot(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})

		It("omits bodies when bodies is false", func() {
			records, err := store.List(ctx, 0, false)

			Expect(err).ShouldNot(HaveOccurred())

			for _, rec := range records {
				Expect(rec.Body).To(BeNil())
				Expect(rec.ID).NotTo(BeEmpty())
				Expect(rec.Revision).To(BeNumerically(">", 0))
			}
		})
	})

	Describe("func Remove()", func() {
		It("removes a record at its current revision", func() {
			rec, err := store.Put(ctx, persistence.Record{ID: "<id>"})
			Expect(err).ShouldNot(HaveOccurred())

			err = store.Remove(ctx, rec)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = store.Get(ctx, "<id>")
			Expect(persistence.IsUnknownRecord(err)).To(BeTrue())
		})

		It("rejects a removal with a stale revision", func() {
			rec, err := store.Put(ctx, persistence.Record{ID: "<id>"})
			Expect(err).ShouldNot(HaveOccurred())

			_, err = store.Put(ctx, rec)
			Expect(err).ShouldNot(HaveOccurred())

			err = store.Remove(ctx, rec)
			Expect(persistence.IsConflict(err)).To(BeTrue())
		})

		It("rejects a removal of a missing record", func() {
			err := store.Remove(ctx, persistence.Record{ID: "<missing>"})
			Expect(persistence.IsConflict(err)).To(BeTrue())
		})
	})

	Describe("func Close()", func() {
		It("prevents further use of the handle", func() {
			err := store.Close()
			Expect(err).ShouldNot(HaveOccurred())

			_, err = store.Get(ctx, "<id>")
			Expect(err).To(Equal(persistence.ErrStoreClosed))
		})

		It("reports a second close", func() {
			err := store.Close()
			Expect(err).ShouldNot(HaveOccurred())

			err = store.Close()
			Expect(err).To(Equal(persistence.ErrStoreClosed))
		})

		It("does not close other handles onto the same store", func() {
			other, err := provider.Open(ctx, "<store>")
			Expect(err).ShouldNot(HaveOccurred())

			err = store.Close()
			Expect(err).ShouldNot(HaveOccurred())

			_, err = other.Put(ctx, persistence.Record{ID: "<id>"})
			Expect(err).ShouldNot(HaveOccurred())
		})
	})
})
