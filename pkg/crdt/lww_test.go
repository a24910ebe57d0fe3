package crdt_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chrysalislabs/chrysalis/pkg/crdt"
)

var _ = Describe("LWWRegister", func() {
	Describe("Set", func() {
		It("applies a write with a later timestamp", func() {
			r := crdt.NewLWWRegister("old", 10, "w1")

			Expect(r.Set("new", 20, "w2")).To(BeTrue())
			Expect(r.Value).To(Equal("new"))
		})

		It("rejects a write with an earlier timestamp", func() {
			r := crdt.NewLWWRegister("current", 20, "w1")

			Expect(r.Set("stale", 10, "w2")).To(BeFalse())
			Expect(r.Value).To(Equal("current"))
		})

		It("breaks timestamp ties by writer id", func() {
			r := crdt.NewLWWRegister("from-a", 10, "writer-a")

			Expect(r.Set("from-b", 10, "writer-b")).To(BeTrue())
			Expect(r.Set("from-a-again", 10, "writer-a")).To(BeFalse())
			Expect(r.Value).To(Equal("from-b"))
		})
	})

	Describe("Merge", func() {
		It("picks the later write", func() {
			a := crdt.NewLWWRegister("first", 10, "w1")
			b := crdt.NewLWWRegister("second", 12, "w2")

			Expect(a.Merge(b).Value).To(Equal("second"))
			Expect(b.Merge(a).Value).To(Equal("second"))
		})

		It("resolves equal timestamps identically in both directions", func() {
			a := crdt.NewLWWRegister("from-a", 10, "writer-a")
			b := crdt.NewLWWRegister("from-b", 10, "writer-b")

			ab := a.Merge(b)
			ba := b.Merge(a)

			Expect(ab).To(Equal(ba))
			Expect(ab.Value).To(Equal("from-b"))
		})

		It("is idempotent", func() {
			a := crdt.NewLWWRegister("value", 10, "w1")

			Expect(a.Merge(a)).To(Equal(a))
		})

		It("is associative", func() {
			a := crdt.NewLWWRegister("a", 10, "w1")
			b := crdt.NewLWWRegister("b", 12, "w2")
			c := crdt.NewLWWRegister("c", 11, "w3")

			Expect(a.Merge(b).Merge(c)).To(Equal(a.Merge(b.Merge(c))))
		})
	})

	Describe("LWWNumericRegister", func() {
		It("converges on the later write even when the value is lower", func() {
			// Importance lowered at a later timestamp must stick.
			r1 := crdt.NewLWWNumericRegister(0.9, 10, "replica-1")
			r2 := crdt.NewLWWNumericRegister(0.7, 12, "replica-2")

			Expect(r1.Merge(r2).Value).To(Equal(0.7))
			Expect(r2.Merge(r1).Value).To(Equal(0.7))
		})
	})
})
