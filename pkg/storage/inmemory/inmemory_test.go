package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chrysalislabs/chrysalis/pkg/memory"
	"github.com/chrysalislabs/chrysalis/pkg/storage"
	"github.com/chrysalislabs/chrysalis/pkg/storage/inmemory"
)

func newTestDoc(id, content string, typ memory.Type) *memory.Document {
	doc, err := memory.NewDocument(id, content, typ, "replica-1")
	Expect(err).NotTo(HaveOccurred())
	return doc
}

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
	})

	AfterEach(func() {
		driver.Close()
	})

	Describe("Put and Get", func() {
		It("round-trips a document", func() {
			doc := newTestDoc("mem-1", "remember this", memory.TypeEpisodic)

			stored, err := driver.Put(ctx, doc)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ID).To(Equal("mem-1"))

			got, err := driver.Get(ctx, "mem-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content.Value).To(Equal("remember this"))
		})

		It("returns NotFoundError for a missing id", func() {
			_, err := driver.Get(ctx, "nope")

			var nfe storage.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(nfe))
		})

		It("merges concurrent tag additions instead of overwriting", func() {
			doc := newTestDoc("mem-1", "shared", memory.TypeSemantic)
			doc.AddTag("alpha")
			_, err := driver.Put(ctx, doc)
			Expect(err).NotTo(HaveOccurred())

			// A stale copy diverges and is written back.
			stale := doc.Clone()
			stale.AddTag("beta")
			_, err = driver.Put(ctx, stale)
			Expect(err).NotTo(HaveOccurred())

			got, err := driver.Get(ctx, "mem-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Tags.Elements()).To(Equal([]string{"alpha", "beta"}))
		})

		It("does not let the caller mutate stored state through the returned copy", func() {
			doc := newTestDoc("mem-1", "original", memory.TypeEpisodic)
			_, err := driver.Put(ctx, doc)
			Expect(err).NotTo(HaveOccurred())

			got, err := driver.Get(ctx, "mem-1")
			Expect(err).NotTo(HaveOccurred())
			got.AddTag("sneaky")

			again, err := driver.Get(ctx, "mem-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Tags.Len()).To(BeZero())
		})
	})

	Describe("queries", func() {
		BeforeEach(func() {
			a := newTestDoc("mem-a", "episode", memory.TypeEpisodic)
			a.AddTag("travel")
			a.SetImportance(0.9, "replica-1")

			b := newTestDoc("mem-b", "fact", memory.TypeSemantic)
			b.AddTag("travel")
			b.AddTag("food")
			b.SetImportance(0.3, "replica-1")

			c := newTestDoc("mem-c", "how-to", memory.TypeProcedural)

			for _, doc := range []*memory.Document{a, b, c} {
				_, err := driver.Put(ctx, doc)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("counts documents", func() {
			Expect(driver.Count(ctx)).To(Equal(3))
		})

		It("filters by type", func() {
			docs, err := driver.QueryByType(ctx, memory.TypeSemantic)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].ID).To(Equal("mem-b"))
		})

		It("filters by tag", func() {
			docs, err := driver.QueryByTag(ctx, "travel")
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
		})

		It("filters by importance, most important first", func() {
			docs, err := driver.QueryByImportance(ctx, 0.5)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
			Expect(docs[0].ID).To(Equal("mem-a"))
		})

		It("limits recent results", func() {
			docs, err := driver.Recent(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
		})
	})

	Describe("sync bookkeeping", func() {
		It("returns pending documents oldest first and marks them idempotently", func() {
			first := newTestDoc("mem-old", "first", memory.TypeEpisodic)
			_, err := driver.Put(ctx, first)
			Expect(err).NotTo(HaveOccurred())

			second := newTestDoc("mem-new", "second", memory.TypeEpisodic)
			second.UpdatedAt = first.UpdatedAt + 1
			_, err = driver.Put(ctx, second)
			Expect(err).NotTo(HaveOccurred())

			pending, err := driver.PendingSync(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(2))
			Expect(pending[0].ID).To(Equal("mem-old"))

			refs := []storage.PushedRef{
				{ID: pending[0].ID, UpdatedAt: pending[0].UpdatedAt},
				{ID: pending[1].ID, UpdatedAt: pending[1].UpdatedAt},
				{ID: "unknown", UpdatedAt: 1},
			}
			flipped, err := driver.MarkSynced(ctx, refs)
			Expect(err).NotTo(HaveOccurred())
			Expect(flipped).To(Equal(2))

			// Retrying the same refs changes nothing.
			flipped, err = driver.MarkSynced(ctx, refs[:2])
			Expect(err).NotTo(HaveOccurred())
			Expect(flipped).To(BeZero())

			pending, err = driver.PendingSync(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())
		})

		It("leaves a document pending when it changed after the pushed snapshot", func() {
			doc := newTestDoc("mem-1", "original content", memory.TypeEpisodic)
			stored, err := driver.Put(ctx, doc)
			Expect(err).NotTo(HaveOccurred())
			snapshot := storage.PushedRef{ID: stored.ID, UpdatedAt: stored.UpdatedAt}

			// A local write lands between the push and the mark.
			edited, err := driver.Get(ctx, "mem-1")
			Expect(err).NotTo(HaveOccurred())
			edited.SetContent("edit made during push", "replica-1")
			_, err = driver.Put(ctx, edited)
			Expect(err).NotTo(HaveOccurred())

			flipped, err := driver.MarkSynced(ctx, []storage.PushedRef{snapshot})
			Expect(err).NotTo(HaveOccurred())
			Expect(flipped).To(BeZero())

			got, err := driver.Get(ctx, "mem-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.SyncStatus).To(Equal(memory.StatusPending))
		})

		It("marks a document pending again after a local write", func() {
			doc := newTestDoc("mem-1", "content", memory.TypeEpisodic)
			stored, err := driver.Put(ctx, doc)
			Expect(err).NotTo(HaveOccurred())

			_, err = driver.MarkSynced(ctx, []storage.PushedRef{{ID: "mem-1", UpdatedAt: stored.UpdatedAt}})
			Expect(err).NotTo(HaveOccurred())

			got, err := driver.Get(ctx, "mem-1")
			Expect(err).NotTo(HaveOccurred())
			got.SetImportance(0.8, "replica-1")
			_, err = driver.Put(ctx, got)
			Expect(err).NotTo(HaveOccurred())

			pending, err := driver.PendingSync(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
		})
	})

	Describe("embeddings", func() {
		It("stores one record per text hash", func() {
			e1 := memory.NewEmbeddingDocument("same text", []float32{1, 2, 3}, "test-model")
			e2 := memory.NewEmbeddingDocument("same text", []float32{9, 9, 9}, "test-model")

			Expect(driver.PutEmbedding(ctx, e1)).To(Succeed())
			Expect(driver.PutEmbedding(ctx, e2)).To(Succeed())

			got, err := driver.GetEmbeddingByHash(ctx, e1.TextHash)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Vector).To(Equal([]float32{1, 2, 3}))
		})

		It("returns NotFoundError for an unknown hash", func() {
			_, err := driver.GetEmbeddingByHash(ctx, "deadbeef")

			var nfe storage.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(nfe))
		})
	})
})
