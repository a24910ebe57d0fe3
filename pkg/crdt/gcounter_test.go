package crdt_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chrysalislabs/chrysalis/pkg/crdt"
)

var _ = Describe("GCounter", func() {
	Describe("Increment", func() {
		It("scopes counts to the replica", func() {
			c := crdt.NewGCounter()
			c.Increment("replica-1", 2)
			c.Increment("replica-2", 1)

			Expect(c.Count("replica-1")).To(Equal(uint64(2)))
			Expect(c.Count("replica-2")).To(Equal(uint64(1)))
			Expect(c.Value()).To(Equal(uint64(3)))
		})

		It("works on the zero value", func() {
			var c crdt.GCounter
			c.Increment("replica-1", 1)

			Expect(c.Value()).To(Equal(uint64(1)))
		})
	})

	Describe("Merge", func() {
		It("takes the pointwise max per replica, then sums", func() {
			a := crdt.NewGCounter()
			a.Increment("replica-1", 3)
			a.Increment("replica-2", 1)

			b := crdt.NewGCounter()
			b.Increment("replica-1", 2)
			b.Increment("replica-3", 5)

			merged := a.Merge(b)

			Expect(merged.Count("replica-1")).To(Equal(uint64(3)))
			Expect(merged.Value()).To(Equal(uint64(9)))
		})

		It("is commutative and idempotent", func() {
			a := crdt.NewGCounter()
			a.Increment("replica-1", 3)
			b := crdt.NewGCounter()
			b.Increment("replica-2", 4)

			Expect(a.Merge(b)).To(Equal(b.Merge(a)))
			Expect(a.Merge(a)).To(Equal(a))
		})

		It("never double-counts on repeated delivery", func() {
			a := crdt.NewGCounter()
			a.Increment("replica-1", 3)
			b := crdt.NewGCounter()
			b.Increment("replica-2", 4)

			once := a.Merge(b)
			twice := once.Merge(b)

			Expect(twice.Value()).To(Equal(once.Value()))
		})
	})
})
