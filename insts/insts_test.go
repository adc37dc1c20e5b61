package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rsim/insts"
)

var _ = Describe("opcode classification", func() {
	It("classifies loads", func() {
		Expect(insts.ClassOf(insts.OpLD)).To(Equal(insts.ClassLoad))
		Expect(insts.ClassOf(insts.OpLDD)).To(Equal(insts.ClassLoad))
	})

	It("classifies stores", func() {
		Expect(insts.ClassOf(insts.OpST)).To(Equal(insts.ClassStore))
	})

	It("classifies RMWs", func() {
		Expect(insts.ClassOf(insts.OpSWAP)).To(Equal(insts.ClassRMW))
		Expect(insts.ClassOf(insts.OpCAS)).To(Equal(insts.ClassRMW))
	})

	It("classifies UMULcc/SMULcc/MULScc as serializing", func() {
		Expect(insts.ClassOf(insts.OpUMULcc)).To(Equal(insts.ClassSerializing))
		Expect(insts.ClassOf(insts.OpSMULcc)).To(Equal(insts.ClassSerializing))
		Expect(insts.ClassOf(insts.OpMULScc)).To(Equal(insts.ClassSerializing))
	})

	It("classifies register-window ops as serializing", func() {
		Expect(insts.ClassOf(insts.OpSAVE)).To(Equal(insts.ClassSerializing))
		Expect(insts.ClassOf(insts.OpRESTORE)).To(Equal(insts.ClassSerializing))
		Expect(insts.ClassOf(insts.OpFLUSHW)).To(Equal(insts.ClassSerializing))
	})

	It("treats an always-not-taken branch as bypassing the predictor", func() {
		Expect(insts.IsAnnulAlways(insts.OpBN)).To(BeTrue())
		Expect(insts.IsAnnulAlways(insts.OpBcc)).To(BeFalse())
	})

	It("defaults unknown opcodes to ordinary", func() {
		Expect(insts.ClassOf(insts.OpADD)).To(Equal(insts.ClassOrdinary))
	})
})

var _ = Describe("REQ pool invariant", func() {
	It("panics when a still-in-use REQ is reset", func() {
		r := &insts.REQ{}
		r.MarkInUse()
		Expect(func() { r.Reset() }).To(Panic())
	})

	It("resets cleanly once marked free", func() {
		r := &insts.REQ{}
		r.MarkInUse()
		r.MarkFree()
		Expect(func() { r.Reset() }).NotTo(Panic())
		Expect(r.InUse).To(BeFalse())
	})

	It("panics on double MarkInUse", func() {
		r := &insts.REQ{}
		r.MarkInUse()
		Expect(func() { r.MarkInUse() }).To(Panic())
	})
})

var _ = Describe("Instance staleness", func() {
	It("detects a reused instance slot by tag mismatch", func() {
		in := &insts.Instance{Tag: 5}
		Expect(in.StaleAgainst(5)).To(BeFalse())
		in.Reset()
		in.Tag = 6
		Expect(in.StaleAgainst(5)).To(BeTrue())
	})
})
