package sync_test

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/memory"
	"github.com/chrysalislabs/chrysalis/pkg/storage/inmemory"
	"github.com/chrysalislabs/chrysalis/pkg/sync"
	"github.com/chrysalislabs/chrysalis/pkg/sync/nop"
)

// fakeGateway records pushes and serves canned pulls. failures makes the
// next N pushes fail; onPush runs while a push is in flight.
type fakeGateway struct {
	mu       gosync.Mutex
	pushes   [][]*memory.Document
	pullDocs []*memory.Document
	failures int
	onPush   func()
}

func (g *fakeGateway) Push(_ context.Context, docs []*memory.Document) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failures > 0 {
		g.failures--
		return sync.TransportError{Op: "push", Err: errors.New("gateway unreachable")}
	}
	g.pushes = append(g.pushes, docs)
	if g.onPush != nil {
		g.onPush()
	}
	return nil
}

func (g *fakeGateway) Pull(_ context.Context, _ string, _ int) ([]*memory.Document, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pullDocs, nil
}

func (g *fakeGateway) pushCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pushes)
}

func syncTestDoc(id, content string) *memory.Document {
	doc, err := memory.NewDocument(id, content, memory.TypeEpisodic, "replica-1")
	Expect(err).NotTo(HaveOccurred())
	return doc
}

var _ = Describe("Manager", func() {
	var (
		ctx     context.Context
		store   *inmemory.Driver
		gateway *fakeGateway
		manager *sync.Manager
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
		gateway = &fakeGateway{}

		var err error
		manager, err = sync.NewManager(&sync.Config{
			Storage:    store,
			Gateway:    gateway,
			InstanceID: "replica-1",
			Logger:     zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewManager", func() {
		It("requires storage and gateway", func() {
			_, err := sync.NewManager(&sync.Config{Gateway: gateway, Logger: zap.NewNop()})
			Expect(err).To(HaveOccurred())

			_, err = sync.NewManager(&sync.Config{Storage: store, Logger: zap.NewNop()})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Sync", func() {
		It("pushes pending documents and marks them synced", func() {
			_, err := store.Put(ctx, syncTestDoc("mem-1", "one"))
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Put(ctx, syncTestDoc("mem-2", "two"))
			Expect(err).NotTo(HaveOccurred())

			pushed, err := manager.Sync(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pushed).To(Equal(2))

			pending, err := store.PendingSync(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())
		})

		It("pushes nothing on a second cycle with no new writes", func() {
			_, err := store.Put(ctx, syncTestDoc("mem-1", "one"))
			Expect(err).NotTo(HaveOccurred())

			_, err = manager.Sync(ctx)
			Expect(err).NotTo(HaveOccurred())

			pushed, err := manager.Sync(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pushed).To(BeZero())
			Expect(gateway.pushCount()).To(Equal(1))
		})

		It("keeps a document pending when it is edited while its push is in flight", func() {
			_, err := store.Put(ctx, syncTestDoc("mem-1", "original content"))
			Expect(err).NotTo(HaveOccurred())

			gateway.onPush = func() {
				edited, err := store.Get(ctx, "mem-1")
				Expect(err).NotTo(HaveOccurred())
				edited.SetContent("edit made during push", "replica-1")
				_, err = store.Put(ctx, edited)
				Expect(err).NotTo(HaveOccurred())
			}

			pushed, err := manager.Sync(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pushed).To(Equal(1))
			Expect(gateway.pushes[0][0].Content.Value).To(Equal("original content"))

			// The mid-push edit was never confirmed, so it stays pending.
			got, err := store.Get(ctx, "mem-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.SyncStatus).To(Equal(memory.StatusPending))

			gateway.onPush = nil
			pushed, err = manager.Sync(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pushed).To(Equal(1))
			Expect(gateway.pushes[1][0].Content.Value).To(Equal("edit made during push"))

			got, err = store.Get(ctx, "mem-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.SyncStatus).To(Equal(memory.StatusSynced))
		})

		It("drains the queue against a no-op gateway", func() {
			discarding, err := sync.NewManager(&sync.Config{
				Storage:    store,
				Gateway:    nop.NewGateway(),
				InstanceID: "replica-1",
				Logger:     zap.NewNop(),
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = store.Put(ctx, syncTestDoc("mem-1", "one"))
			Expect(err).NotTo(HaveOccurred())

			pushed, err := discarding.Sync(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pushed).To(Equal(1))

			applied, err := discarding.Pull(ctx, "", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(BeZero())
		})

		It("leaves documents pending when the push fails", func() {
			gateway.failures = 1
			_, err := store.Put(ctx, syncTestDoc("mem-1", "one"))
			Expect(err).NotTo(HaveOccurred())

			_, err = manager.Sync(ctx)
			Expect(err).To(HaveOccurred())

			var terr sync.TransportError
			Expect(errors.As(err, &terr)).To(BeTrue())

			pending, err := store.PendingSync(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))

			// The next cycle heals.
			pushed, err := manager.Sync(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pushed).To(Equal(1))
		})
	})

	Describe("Pull", func() {
		It("inserts unknown documents without re-queueing them for push", func() {
			remote := syncTestDoc("mem-remote", "from the hub")
			gateway.pullDocs = []*memory.Document{remote}

			applied, err := manager.Pull(ctx, "", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(Equal(1))

			got, err := store.Get(ctx, "mem-remote")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content.Value).To(Equal("from the hub"))
			Expect(got.SyncStatus).To(Equal(memory.StatusSynced))

			pending, err := store.PendingSync(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())
		})

		It("merges a remote copy into diverged local state", func() {
			local := syncTestDoc("mem-1", "shared")
			local.AddTag("local")
			_, err := store.Put(ctx, local)
			Expect(err).NotTo(HaveOccurred())

			remote := local.Clone()
			remote.AddTag("remote")
			gateway.pullDocs = []*memory.Document{remote}

			_, err = manager.Pull(ctx, "", 10)
			Expect(err).NotTo(HaveOccurred())

			got, err := store.Get(ctx, "mem-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Tags.Elements()).To(Equal([]string{"local", "remote"}))
		})

		It("converges two replicas through push and pull", func() {
			// Replica 2 with its own store and the same gateway view.
			store2 := inmemory.NewDriver()
			manager2, err := sync.NewManager(&sync.Config{
				Storage:    store2,
				Gateway:    gateway,
				InstanceID: "replica-2",
				Logger:     zap.NewNop(),
			})
			Expect(err).NotTo(HaveOccurred())

			doc := syncTestDoc("mem-1", "origin")
			doc.AddTag("from-r1")
			_, err = store.Put(ctx, doc)
			Expect(err).NotTo(HaveOccurred())

			_, err = manager.Sync(ctx)
			Expect(err).NotTo(HaveOccurred())

			// The hub hands replica 2 what replica 1 pushed.
			gateway.mu.Lock()
			gateway.pullDocs = gateway.pushes[0]
			gateway.mu.Unlock()

			_, err = manager2.Pull(ctx, "", 10)
			Expect(err).NotTo(HaveOccurred())

			got, err := store2.Get(ctx, "mem-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content.Value).To(Equal("origin"))
			Expect(got.Tags.Elements()).To(Equal([]string{"from-r1"}))
		})
	})

	Describe("Start and Stop", func() {
		It("runs cycles in the background until stopped", func() {
			_, err := store.Put(ctx, syncTestDoc("mem-1", "one"))
			Expect(err).NotTo(HaveOccurred())

			manager.Start(10 * time.Millisecond)
			defer manager.Stop()

			Eventually(gateway.pushCount).Should(BeNumerically(">=", 1))
			Eventually(func() int {
				pending, err := store.PendingSync(ctx, 10)
				Expect(err).NotTo(HaveOccurred())
				return len(pending)
			}).Should(BeZero())
		})

		It("keeps looping after a failed cycle", func() {
			gateway.failures = 2
			_, err := store.Put(ctx, syncTestDoc("mem-1", "one"))
			Expect(err).NotTo(HaveOccurred())

			manager.Start(10 * time.Millisecond)
			defer manager.Stop()

			Eventually(gateway.pushCount).Should(Equal(1))
		})

		It("is safe to stop twice and start while running", func() {
			manager.Start(time.Hour)
			manager.Start(time.Hour)
			manager.Stop()
			manager.Stop()
		})
	})
})
