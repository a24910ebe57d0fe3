package agent_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/agent"
	"github.com/chrysalislabs/chrysalis/pkg/memory"
	"github.com/chrysalislabs/chrysalis/pkg/storage/inmemory"
	"github.com/chrysalislabs/chrysalis/pkg/vector"
)

var _ = Describe("Recall", func() {
	var (
		ctx   context.Context
		store *inmemory.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
	})

	Describe("token overlap fallback", func() {
		var mem *agent.AgentMemory

		BeforeEach(func() {
			var err error
			mem, err = agent.NewAgentMemory(&agent.Config{
				Storage:    store,
				InstanceID: "replica-1",
				Logger:     zap.NewNop(),
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = mem.Learn(ctx, "user prefers window seats on flights",
				agent.WithType(memory.TypeSemantic),
				agent.WithTags("travel"))
			Expect(err).NotTo(HaveOccurred())
			_, err = mem.Learn(ctx, "database migration completed on staging",
				agent.WithType(memory.TypeEpisodic))
			Expect(err).NotTo(HaveOccurred())
		})

		It("ranks the overlapping memory first", func() {
			results, err := mem.Recall(ctx, "window seats", 10, agent.RecallFilters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).NotTo(BeEmpty())
			Expect(results[0].Document.Content.Value).To(ContainSubstring("window seats"))
		})

		It("drops memories with no overlap", func() {
			results, err := mem.Recall(ctx, "window seats", 10, agent.RecallFilters{})
			Expect(err).NotTo(HaveOccurred())
			for _, r := range results {
				Expect(r.Document.Content.Value).NotTo(ContainSubstring("migration"))
			}
		})

		It("applies filters before ranking", func() {
			results, err := mem.Recall(ctx, "window seats on staging", 10, agent.RecallFilters{
				Type: memory.TypeEpisodic,
			})
			Expect(err).NotTo(HaveOccurred())
			for _, r := range results {
				Expect(r.Document.Type).To(Equal(memory.TypeEpisodic))
			}
		})

		It("caps results at k", func() {
			for _, content := range []string{"seats A", "seats B", "seats C"} {
				_, err := mem.Learn(ctx, content)
				Expect(err).NotTo(HaveOccurred())
			}

			results, err := mem.Recall(ctx, "seats", 2, agent.RecallFilters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})
	})

	Describe("cosine scoring over stored embeddings", func() {
		It("prefers the vector-similar memory over lexical noise", func() {
			embedder := &stubEmbedder{vectors: map[string][]float32{
				"preferred seating":                  {1, 0, 0},
				"user prefers window seats":          {0.9, 0.1, 0},
				"unrelated note about window frames": {0, 0, 1},
			}}

			mem, err := agent.NewAgentMemory(&agent.Config{
				Storage:    store,
				InstanceID: "replica-1",
				Embedder:   embedder,
				Logger:     zap.NewNop(),
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = mem.Learn(ctx, "user prefers window seats")
			Expect(err).NotTo(HaveOccurred())
			_, err = mem.Learn(ctx, "unrelated note about window frames")
			Expect(err).NotTo(HaveOccurred())

			results, err := mem.Recall(ctx, "preferred seating", 10, agent.RecallFilters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).NotTo(BeEmpty())
			Expect(results[0].Document.Content.Value).To(Equal("user prefers window seats"))
		})
	})

	Describe("KNN index scoring", func() {
		It("uses index hits as the primary signal", func() {
			embedder := &stubEmbedder{}
			index := &stubVector{}

			mem, err := agent.NewAgentMemory(&agent.Config{
				Storage:    store,
				InstanceID: "replica-1",
				Embedder:   embedder,
				Vector:     index,
				Logger:     zap.NewNop(),
			})
			Expect(err).NotTo(HaveOccurred())

			low, err := mem.Learn(ctx, "first memory")
			Expect(err).NotTo(HaveOccurred())
			high, err := mem.Learn(ctx, "second memory")
			Expect(err).NotTo(HaveOccurred())

			index.hits = []vector.QueryResult{
				{Entry: vector.Entry{MemoryID: high.ID}, Score: 0.95},
				{Entry: vector.Entry{MemoryID: low.ID}, Score: 0.40},
			}

			results, err := mem.Recall(ctx, "memory", 10, agent.RecallFilters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].Document.ID).To(Equal(high.ID))
			Expect(results[1].Document.ID).To(Equal(low.ID))
		})
	})
})
