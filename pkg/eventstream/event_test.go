package eventstream_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chrysalislabs/chrysalis/pkg/eventstream"
	"github.com/chrysalislabs/chrysalis/pkg/memory"
)

var _ = Describe("Event", func() {
	var doc *memory.Document

	BeforeEach(func() {
		var err error
		doc, err = memory.NewDocument("mem-1", "user prefers window seats", memory.TypeSemantic, "replica-1")
		Expect(err).NotTo(HaveOccurred())
		doc.AddTag("travel")
		doc.SetImportance(0.8, "replica-1")
	})

	It("captures the queryable surface of the document", func() {
		event := eventstream.NewMemoryPersistedEvent("replica-1", doc)

		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal(eventstream.EventTypeMemoryPersisted))
		Expect(event.EventID).NotTo(BeEmpty())
		Expect(event.Source.Instance).To(Equal("replica-1"))
		Expect(event.Memory.ID).To(Equal("mem-1"))
		Expect(event.Memory.Type).To(Equal("semantic"))
		Expect(event.Memory.ContentHash).To(Equal(doc.ContentHash))
		Expect(event.Memory.Importance).To(Equal(0.8))
		Expect(event.Memory.Tags).To(Equal([]string{"travel"}))
	})

	It("mints a distinct ULID per event", func() {
		first := eventstream.NewMemoryPersistedEvent("replica-1", doc)
		second := eventstream.NewMemoryPersistedEvent("replica-1", doc)

		Expect(first.EventID).NotTo(Equal(second.EventID))
	})

	It("marshals with the expected top-level keys", func() {
		event := eventstream.NewMemoryPersistedEvent("replica-1", doc)

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]json.RawMessage
		Expect(json.Unmarshal(payload, &decoded)).To(Succeed())
		Expect(decoded).To(HaveKey("schema_version"))
		Expect(decoded).To(HaveKey("event_type"))
		Expect(decoded).To(HaveKey("event_id"))
		Expect(decoded).To(HaveKey("emitted_at"))
		Expect(decoded).To(HaveKey("source"))
		Expect(decoded).To(HaveKey("memory"))
	})
})
