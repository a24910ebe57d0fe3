package crdt_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chrysalislabs/chrysalis/pkg/crdt"
)

var _ = Describe("VectorClock", func() {
	Describe("Tick", func() {
		It("strictly dominates the prior clock", func() {
			vc := crdt.NewVectorClock()
			vc.Tick("replica-1")
			before := vc.Clone()

			vc.Tick("replica-1")

			Expect(before.Compare(vc)).To(Equal(crdt.OrderingBefore))
			Expect(vc.Compare(before)).To(Equal(crdt.OrderingAfter))
		})

		It("works on the zero value", func() {
			var vc crdt.VectorClock

			Expect(vc.Tick("replica-1")).To(Equal(uint64(1)))
			Expect(vc.Get("replica-1")).To(Equal(uint64(1)))
		})
	})

	Describe("Compare", func() {
		It("reports equal for identical clocks", func() {
			a := crdt.VectorClock{"r1": 1, "r2": 2}
			b := crdt.VectorClock{"r1": 1, "r2": 2}

			Expect(a.Compare(b)).To(Equal(crdt.OrderingEqual))
		})

		It("detects happened-before", func() {
			a := crdt.VectorClock{"r1": 1, "r2": 2}
			b := crdt.VectorClock{"r1": 2, "r2": 3}

			Expect(a.Compare(b)).To(Equal(crdt.OrderingBefore))
			Expect(b.Compare(a)).To(Equal(crdt.OrderingAfter))
		})

		It("detects concurrency", func() {
			a := crdt.VectorClock{"r1": 2, "r2": 1}
			b := crdt.VectorClock{"r1": 1, "r2": 2}

			Expect(a.Compare(b)).To(Equal(crdt.OrderingConcurrent))
		})

		It("treats a missing entry as zero", func() {
			a := crdt.VectorClock{"r1": 1}
			b := crdt.VectorClock{"r1": 1, "r2": 1}

			Expect(a.Compare(b)).To(Equal(crdt.OrderingBefore))
		})
	})

	Describe("Merge", func() {
		It("dominates or equals both inputs", func() {
			a := crdt.VectorClock{"r1": 2, "r2": 1}
			b := crdt.VectorClock{"r1": 1, "r2": 3, "r3": 1}

			merged := a.Merge(b)

			Expect(a.Compare(merged)).NotTo(Equal(crdt.OrderingAfter))
			Expect(b.Compare(merged)).NotTo(Equal(crdt.OrderingAfter))
			Expect(merged.Get("r1")).To(Equal(uint64(2)))
			Expect(merged.Get("r2")).To(Equal(uint64(3)))
			Expect(merged.Get("r3")).To(Equal(uint64(1)))
		})

		It("is commutative and idempotent", func() {
			a := crdt.VectorClock{"r1": 2}
			b := crdt.VectorClock{"r2": 3}

			Expect(a.Merge(b)).To(Equal(b.Merge(a)))
			Expect(a.Merge(a)).To(Equal(a))
		})
	})
})
