package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rsim/emu"
	"github.com/sarchlab/rsim/insts"
	"github.com/sarchlab/rsim/rsimerr"
)

var _ = Describe("FunctionalExecutor", func() {
	var (
		reg *emu.RegFile
		mem *emu.Memory
		fe  *emu.FunctionalExecutor
	)

	BeforeEach(func() {
		reg = emu.NewRegFile(emu.DefaultNumWindows)
		mem = emu.NewMemory(0x40000000, 0x7FFF0000)
		fe = emu.NewFunctionalExecutor(reg, mem)
	})

	// S3: SDIVcc with rs1=1, rs2=0 raises Div0; destination and ICC are
	// not written.
	It("raises Div0 on SDIVcc by zero and leaves state untouched", func() {
		reg.Y = 0
		in := &insts.Instance{
			Static:  &insts.StaticInstr{Op: insts.OpSDIVcc},
			SrcVal1: 1,
			SrcVal2: 0,
		}
		iccBefore := reg.ICC
		err := fe.Retire(in)
		Expect(err).To(HaveOccurred())
		exc, ok := err.(*rsimerr.Exception)
		Expect(ok).To(BeTrue())
		Expect(exc.Code).To(Equal(rsimerr.Div0))
		Expect(in.IntResult).To(Equal(uint64(0)))
		Expect(reg.ICC).To(Equal(iccBefore))
	})

	// S4: UMULcc with rs1=0xFFFFFFFF, rs2=2 (immediate form).
	// Expected: destination = 0xFFFFFFFE, Y = 0x00000001,
	// N=1, Z=0, V=0, C=0.
	It("computes UMULcc exactly as spec.md's S4 boundary scenario", func() {
		in := &insts.Instance{
			Static:  &insts.StaticInstr{Op: insts.OpUMULcc},
			SrcVal1: 0xFFFFFFFF,
			SrcVal2: 2,
		}
		err := fe.Retire(in)
		Expect(err).NotTo(HaveOccurred())
		Expect(in.IntResult).To(Equal(uint64(0xFFFFFFFE)))
		Expect(reg.Y).To(Equal(uint64(0x00000001)))
		Expect(reg.ICC.N).To(BeTrue())
		Expect(reg.ICC.Z).To(BeFalse())
		Expect(reg.ICC.V).To(BeFalse())
		Expect(reg.ICC.C).To(BeFalse())
	})

	// S2: a load to an unmapped address outside the stack region raises
	// SegV.
	It("raises SegV on a load to an unmapped, non-stack address", func() {
		in := &insts.Instance{
			Static:        &insts.StaticInstr{Op: insts.OpLD},
			EffectiveAddr: 0x2000,
		}
		err := fe.Retire(in)
		Expect(err).To(HaveOccurred())
		exc, ok := err.(*rsimerr.Exception)
		Expect(ok).To(BeTrue())
		Expect(exc.Code).To(Equal(rsimerr.SegV))
	})

	It("lets a stack-region SegV be retried after GrowStack", func() {
		addr := uint64(0x7FFE0000) // just below initial SP, within stack region
		in := &insts.Instance{Static: &insts.StaticInstr{Op: insts.OpLD}, EffectiveAddr: addr}
		err := fe.Retire(in)
		Expect(err).To(HaveOccurred())

		mem.GrowStack(addr)
		err = fe.Retire(in)
		Expect(err).NotTo(HaveOccurred())
	})

	It("performs SWAP atomically, returning the old value", func() {
		mem.MapSegment(0x10000, []byte{0, 0, 0, 5})
		in := &insts.Instance{
			Static:        &insts.StaticInstr{Op: insts.OpSWAP},
			EffectiveAddr: 0x10000,
			SrcVal2:       42,
		}
		Expect(fe.Retire(in)).To(Succeed())
		Expect(in.IntResult).To(Equal(uint64(5)))
		v, err := mem.Read(0x10000, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(uint64(42)))
	})

	It("raises WindowOverflow when SAVE has no free window", func() {
		for i := 0; i < emu.DefaultNumWindows-1; i++ {
			Expect(reg.Save()).To(Succeed())
		}
		err := reg.Save()
		Expect(err).To(HaveOccurred())
		exc, ok := err.(*rsimerr.Exception)
		Expect(ok).To(BeTrue())
		Expect(exc.Code).To(Equal(rsimerr.WindowOverflow))
	})

	It("round-trips a store then a load to the same address (R2)", func() {
		in1 := &insts.Instance{Static: &insts.StaticInstr{Op: insts.OpST}, EffectiveAddr: 0x20000, SrcVal2: 99}
		mem.MapSegment(0x20000, make([]byte, 4))
		Expect(fe.Retire(in1)).To(Succeed())

		in2 := &insts.Instance{Static: &insts.StaticInstr{Op: insts.OpLD}, EffectiveAddr: 0x20000}
		Expect(fe.Retire(in2)).To(Succeed())
		Expect(in2.IntResult).To(Equal(uint64(99)))
	})
})

var _ = Describe("RegFile", func() {
	It("always reads zero from %g0 and discards writes", func() {
		reg := emu.NewRegFile(emu.DefaultNumWindows)
		reg.WriteInt(0, 0xDEADBEEF)
		Expect(reg.ReadInt(0)).To(Equal(uint64(0)))
	})

	It("restores after save returns to the prior window's values", func() {
		reg := emu.NewRegFile(emu.DefaultNumWindows)
		reg.WriteInt(16, 111) // a local in window 0
		Expect(reg.Save()).To(Succeed())
		reg.WriteInt(16, 222) // same logical register, window 1
		Expect(reg.ReadInt(16)).To(Equal(uint64(222)))
		Expect(reg.Restore()).To(Succeed())
		Expect(reg.ReadInt(16)).To(Equal(uint64(111)))
	})
})
