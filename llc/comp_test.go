package llc

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/llcsim/llc/internal/tagging"
)

// 512 B, 64 B lines, 2-way: 4 sets, 6 offset bits, 2 index bits.
func smallGeometry() Geometry {
	g, err := MakeGeometry(512, 64, 2, 32)
	if err != nil {
		panic(err)
	}
	return g
}

func lineAddr(tag uint64, index int) uint64 {
	return tag<<8 | uint64(index)<<6
}

var _ = Describe("Comp", func() {
	var (
		mockCtrl *gomock.Controller
		busConn  *MockBusConnector
		snoop    *MockSnoopResponder
		l1       *MockL1Messenger
		comp     *Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		busConn = NewMockBusConnector(mockCtrl)
		snoop = NewMockSnoopResponder(mockCtrl)
		l1 = NewMockL1Messenger(mockCtrl)

		comp = MakeBuilder().
			WithGeometry(smallGeometry()).
			WithBus(busConn).
			WithSnoopResponder(snoop).
			WithL1(l1).
			Build("LLC")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	expectReadMiss := func(addr uint64, result SnoopResult) {
		busConn.EXPECT().BusOperation(BusRead, addr)
		snoop.EXPECT().GetSnoopResult(addr).Return(result)
		l1.EXPECT().MessageToCache(MsgSendLine, addr)
	}

	expectWriteMiss := func(addr uint64) {
		busConn.EXPECT().BusOperation(BusRWIM, addr)
		snoop.EXPECT().GetSnoopResult(addr).Return(SnoopNoHit)
		l1.EXPECT().MessageToCache(MsgSendLine, addr)
	}

	stateAt := func(addr uint64) tagging.State {
		tag, index, _ := comp.geometry.Decode(addr)
		way, ok := comp.tags.Set(index).Lookup(tag)
		if !ok {
			return tagging.StateInvalid
		}
		return comp.tags.Set(index).Way(way).State
	}

	It("should install Exclusive on a read miss with NOHIT", func() {
		expectReadMiss(0x1002, SnoopNoHit)

		Expect(comp.Execute(CmdDataRead, 0x1002)).To(Succeed())

		Expect(stateAt(0x1002)).To(Equal(tagging.StateExclusive))
		Expect(comp.Stats()).To(Equal(Stats{Reads: 1, Misses: 1}))
	})

	It("should install Shared on a read miss with HIT", func() {
		expectReadMiss(0x1000, SnoopHit)

		Expect(comp.Execute(CmdDataRead, 0x1000)).To(Succeed())

		Expect(stateAt(0x1000)).To(Equal(tagging.StateShared))
	})

	It("should install Exclusive on a read miss with HITM", func() {
		expectReadMiss(0x1001, SnoopHitM)

		Expect(comp.Execute(CmdDataRead, 0x1001)).To(Succeed())

		Expect(stateAt(0x1001)).To(Equal(tagging.StateExclusive))
	})

	It("should hit on the second read to the same address", func() {
		expectReadMiss(0x1002, SnoopNoHit)
		Expect(comp.Execute(CmdDataRead, 0x1002)).To(Succeed())

		l1.EXPECT().MessageToCache(MsgSendLine, uint64(0x1002))
		Expect(comp.Execute(CmdDataRead, 0x1002)).To(Succeed())

		Expect(comp.Stats()).To(Equal(Stats{Reads: 2, Hits: 1, Misses: 1}))
	})

	It("should treat instruction reads like data reads", func() {
		expectReadMiss(0x1002, SnoopNoHit)

		Expect(comp.Execute(CmdInstRead, 0x1002)).To(Succeed())

		Expect(comp.Stats()).To(Equal(Stats{Reads: 1, Misses: 1}))
	})

	It("should install Modified on a write miss", func() {
		expectWriteMiss(0x1002)

		Expect(comp.Execute(CmdDataWrite, 0x1002)).To(Succeed())

		Expect(stateAt(0x1002)).To(Equal(tagging.StateModified))
		Expect(comp.Stats()).To(Equal(Stats{Writes: 1, Misses: 1}))
	})

	It("should promote Exclusive to Modified on a write hit without bus traffic", func() {
		expectReadMiss(0x1002, SnoopNoHit)
		Expect(comp.Execute(CmdDataRead, 0x1002)).To(Succeed())

		l1.EXPECT().MessageToCache(MsgSendLine, uint64(0x1002))
		Expect(comp.Execute(CmdDataWrite, 0x1002)).To(Succeed())

		Expect(stateAt(0x1002)).To(Equal(tagging.StateModified))
	})

	It("should announce an invalidate when writing a Shared line", func() {
		expectReadMiss(0x1000, SnoopHit)
		Expect(comp.Execute(CmdDataRead, 0x1000)).To(Succeed())

		gomock.InOrder(
			busConn.EXPECT().BusOperation(BusInvalidate, uint64(0x1000)),
			l1.EXPECT().MessageToCache(MsgSendLine, uint64(0x1000)),
		)
		Expect(comp.Execute(CmdDataWrite, 0x1000)).To(Succeed())

		Expect(stateAt(0x1000)).To(Equal(tagging.StateModified))
	})

	It("should keep a Modified line Modified on a write hit", func() {
		expectWriteMiss(0x1002)
		Expect(comp.Execute(CmdDataWrite, 0x1002)).To(Succeed())

		l1.EXPECT().MessageToCache(MsgSendLine, uint64(0x1002))
		Expect(comp.Execute(CmdDataWrite, 0x1002)).To(Succeed())

		Expect(stateAt(0x1002)).To(Equal(tagging.StateModified))
		Expect(comp.Stats()).To(Equal(Stats{Writes: 2, Hits: 1, Misses: 1}))
	})

	It("should evict cleanly without a write-back", func() {
		a1 := lineAddr(1, 1) + 2
		a2 := lineAddr(2, 1) + 2
		a3 := lineAddr(3, 1) + 2

		expectReadMiss(a1, SnoopNoHit)
		expectReadMiss(a2, SnoopNoHit)
		Expect(comp.Execute(CmdDataRead, a1)).To(Succeed())
		Expect(comp.Execute(CmdDataRead, a2)).To(Succeed())

		gomock.InOrder(
			busConn.EXPECT().BusOperation(BusRead, a3),
			l1.EXPECT().MessageToCache(MsgEvictLine, lineAddr(1, 1)),
			l1.EXPECT().MessageToCache(MsgSendLine, a3),
		)
		snoop.EXPECT().GetSnoopResult(a3).Return(SnoopNoHit)
		Expect(comp.Execute(CmdDataRead, a3)).To(Succeed())

		Expect(stateAt(a1)).To(Equal(tagging.StateInvalid))
	})

	It("should write back a Modified victim before handing the line to L1", func() {
		a1 := lineAddr(1, 1) + 2
		a2 := lineAddr(2, 1) + 2
		a3 := lineAddr(3, 1) + 2

		expectWriteMiss(a1)
		expectReadMiss(a2, SnoopNoHit)
		Expect(comp.Execute(CmdDataWrite, a1)).To(Succeed())
		Expect(comp.Execute(CmdDataRead, a2)).To(Succeed())

		gomock.InOrder(
			busConn.EXPECT().BusOperation(BusRead, a3),
			l1.EXPECT().MessageToCache(MsgEvictLine, lineAddr(1, 1)),
			busConn.EXPECT().BusOperation(BusWrite, lineAddr(1, 1)),
			l1.EXPECT().MessageToCache(MsgSendLine, a3),
		)
		snoop.EXPECT().GetSnoopResult(a3).Return(SnoopNoHit)
		Expect(comp.Execute(CmdDataRead, a3)).To(Succeed())
	})

	It("should answer NOHIT to a snooped read that misses", func() {
		busConn.EXPECT().PutSnoopResult(uint64(0x1000), SnoopNoHit)

		Expect(comp.Execute(CmdSnoopRead, 0x1000)).To(Succeed())
		Expect(comp.Stats()).To(Equal(Stats{}))
	})

	It("should write back and share a Modified line on a snooped read", func() {
		expectWriteMiss(0x1002)
		Expect(comp.Execute(CmdDataWrite, 0x1002)).To(Succeed())

		gomock.InOrder(
			busConn.EXPECT().PutSnoopResult(uint64(0x1002), SnoopHitM),
			l1.EXPECT().MessageToCache(MsgGetLine, uint64(0x1002)),
			busConn.EXPECT().BusOperation(BusWrite, uint64(0x1002)),
		)
		Expect(comp.Execute(CmdSnoopRead, 0x1002)).To(Succeed())

		Expect(stateAt(0x1002)).To(Equal(tagging.StateShared))
	})

	It("should downgrade Exclusive to Shared on a snooped read", func() {
		expectReadMiss(0x1002, SnoopNoHit)
		Expect(comp.Execute(CmdDataRead, 0x1002)).To(Succeed())

		busConn.EXPECT().PutSnoopResult(uint64(0x1002), SnoopHit)
		Expect(comp.Execute(CmdSnoopRead, 0x1002)).To(Succeed())

		Expect(stateAt(0x1002)).To(Equal(tagging.StateShared))
	})

	It("should leave a Shared line Shared on a snooped read", func() {
		expectReadMiss(0x1000, SnoopHit)
		Expect(comp.Execute(CmdDataRead, 0x1000)).To(Succeed())

		busConn.EXPECT().PutSnoopResult(uint64(0x1000), SnoopHit)
		Expect(comp.Execute(CmdSnoopRead, 0x1000)).To(Succeed())

		Expect(stateAt(0x1000)).To(Equal(tagging.StateShared))
	})

	It("should not move the PLRU bits on a snoop", func() {
		expectReadMiss(0x1002, SnoopNoHit)
		Expect(comp.Execute(CmdDataRead, 0x1002)).To(Succeed())

		_, index, _ := comp.geometry.Decode(0x1002)
		bits := comp.tags.Set(index).PLRUBits()

		busConn.EXPECT().PutSnoopResult(uint64(0x1002), SnoopHit)
		Expect(comp.Execute(CmdSnoopRead, 0x1002)).To(Succeed())

		Expect(comp.tags.Set(index).PLRUBits()).To(Equal(bits))
	})

	It("should ignore a snooped write", func() {
		Expect(comp.Execute(CmdSnoopWrite, 0x1000)).To(Succeed())
	})

	It("should write back and invalidate a Modified line on a snooped RWIM", func() {
		expectWriteMiss(0x1002)
		Expect(comp.Execute(CmdDataWrite, 0x1002)).To(Succeed())

		gomock.InOrder(
			l1.EXPECT().MessageToCache(MsgGetLine, uint64(0x1002)),
			busConn.EXPECT().BusOperation(BusWrite, uint64(0x1002)),
			l1.EXPECT().MessageToCache(MsgInvalidateLine, uint64(0x1002)),
		)
		Expect(comp.Execute(CmdSnoopRWIM, 0x1002)).To(Succeed())

		Expect(stateAt(0x1002)).To(Equal(tagging.StateInvalid))
	})

	It("should invalidate a clean line on a snooped RWIM without bus traffic", func() {
		expectReadMiss(0x1002, SnoopNoHit)
		Expect(comp.Execute(CmdDataRead, 0x1002)).To(Succeed())

		l1.EXPECT().MessageToCache(MsgInvalidateLine, uint64(0x1002))
		Expect(comp.Execute(CmdSnoopRWIM, 0x1002)).To(Succeed())

		Expect(stateAt(0x1002)).To(Equal(tagging.StateInvalid))
	})

	It("should ignore a snooped RWIM that misses", func() {
		Expect(comp.Execute(CmdSnoopRWIM, 0x1000)).To(Succeed())
	})

	It("should invalidate a Shared line on a snooped invalidate", func() {
		expectReadMiss(0x1000, SnoopHit)
		Expect(comp.Execute(CmdDataRead, 0x1000)).To(Succeed())

		l1.EXPECT().MessageToCache(MsgInvalidateLine, uint64(0x1000))
		Expect(comp.Execute(CmdSnoopInvalidate, 0x1000)).To(Succeed())

		Expect(stateAt(0x1000)).To(Equal(tagging.StateInvalid))
	})

	It("should keep a Modified line on a snooped invalidate by default", func() {
		expectWriteMiss(0x1002)
		Expect(comp.Execute(CmdDataWrite, 0x1002)).To(Succeed())

		Expect(comp.Execute(CmdSnoopInvalidate, 0x1002)).To(Succeed())

		Expect(stateAt(0x1002)).To(Equal(tagging.StateModified))
	})

	It("should keep an Exclusive line on a snooped invalidate by default", func() {
		expectReadMiss(0x1002, SnoopNoHit)
		Expect(comp.Execute(CmdDataRead, 0x1002)).To(Succeed())

		Expect(comp.Execute(CmdSnoopInvalidate, 0x1002)).To(Succeed())

		Expect(stateAt(0x1002)).To(Equal(tagging.StateExclusive))
	})

	It("should ignore a snooped invalidate that misses", func() {
		Expect(comp.Execute(CmdSnoopInvalidate, 0x1000)).To(Succeed())
	})

	It("should clear lines, PLRU bits, and counters on reset", func() {
		expectReadMiss(0x1002, SnoopNoHit)
		Expect(comp.Execute(CmdDataRead, 0x1002)).To(Succeed())

		Expect(comp.Execute(CmdReset, 0)).To(Succeed())

		Expect(comp.Stats()).To(Equal(Stats{}))
		count := 0
		comp.tags.VisitValid(func(int, int, tagging.Line, uint32) { count++ })
		Expect(count).To(Equal(0))
	})

	It("should reject unknown command codes", func() {
		err := comp.Execute(7, 0x1000)

		var unknownErr *UnknownCommandError
		Expect(err).To(HaveOccurred())
		Expect(errors.As(err, &unknownErr)).To(BeTrue())
	})

	It("should keep hits+misses equal to reads+writes", func() {
		expectReadMiss(0x1002, SnoopNoHit)
		Expect(comp.Execute(CmdDataRead, 0x1002)).To(Succeed())
		l1.EXPECT().MessageToCache(MsgSendLine, uint64(0x1002))
		Expect(comp.Execute(CmdDataWrite, 0x1002)).To(Succeed())
		expectWriteMiss(0x2042)
		Expect(comp.Execute(CmdDataWrite, 0x2042)).To(Succeed())

		s := comp.Stats()
		Expect(s.Hits + s.Misses).To(Equal(s.Reads + s.Writes))
	})
})

var _ = Describe("Comp with drop-on-invalidate policy", func() {
	var (
		mockCtrl *gomock.Controller
		busConn  *MockBusConnector
		snoop    *MockSnoopResponder
		l1       *MockL1Messenger
		comp     *Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		busConn = NewMockBusConnector(mockCtrl)
		snoop = NewMockSnoopResponder(mockCtrl)
		l1 = NewMockL1Messenger(mockCtrl)

		comp = MakeBuilder().
			WithGeometry(smallGeometry()).
			WithInvalidatePolicy(DropOnRemoteInvalidate).
			WithBus(busConn).
			WithSnoopResponder(snoop).
			WithL1(l1).
			Build("LLC")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should write back and drop a Modified line on a snooped invalidate", func() {
		busConn.EXPECT().BusOperation(BusRWIM, uint64(0x1002))
		snoop.EXPECT().GetSnoopResult(uint64(0x1002)).Return(SnoopNoHit)
		l1.EXPECT().MessageToCache(MsgSendLine, uint64(0x1002))
		Expect(comp.Execute(CmdDataWrite, 0x1002)).To(Succeed())

		gomock.InOrder(
			l1.EXPECT().MessageToCache(MsgGetLine, uint64(0x1002)),
			busConn.EXPECT().BusOperation(BusWrite, uint64(0x1002)),
			l1.EXPECT().MessageToCache(MsgInvalidateLine, uint64(0x1002)),
		)
		Expect(comp.Execute(CmdSnoopInvalidate, 0x1002)).To(Succeed())

		tag, index, _ := comp.geometry.Decode(0x1002)
		_, ok := comp.tags.Set(index).Lookup(tag)
		Expect(ok).To(BeFalse())
	})

	It("should drop an Exclusive line on a snooped invalidate without a write-back", func() {
		busConn.EXPECT().BusOperation(BusRead, uint64(0x1002))
		snoop.EXPECT().GetSnoopResult(uint64(0x1002)).Return(SnoopNoHit)
		l1.EXPECT().MessageToCache(MsgSendLine, uint64(0x1002))
		Expect(comp.Execute(CmdDataRead, 0x1002)).To(Succeed())

		l1.EXPECT().MessageToCache(MsgInvalidateLine, uint64(0x1002))
		Expect(comp.Execute(CmdSnoopInvalidate, 0x1002)).To(Succeed())
	})
})
