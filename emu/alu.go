package emu

// addWithCC computes a+b and the ICC flags ADDcc would set, the way the
// teacher's alu.go computed N/Z/C/V for ARM64 ADDS; the carry/overflow
// tests are SPARC's (32-bit, since the predecoded core models the
// 32-bit-visible integer ops spec.md's boundary scenarios exercise).
func addWithCC(a, b uint32) (result uint32, icc ICC) {
	sum := uint64(a) + uint64(b)
	result = uint32(sum)
	icc.N = result&0x80000000 != 0
	icc.Z = result == 0
	icc.C = sum > 0xFFFFFFFF
	signA := a&0x80000000 != 0
	signB := b&0x80000000 != 0
	signR := result&0x80000000 != 0
	icc.V = signA == signB && signR != signA
	return
}

// subWithCC computes a-b and the ICC flags SUBcc would set.
func subWithCC(a, b uint32) (result uint32, icc ICC) {
	diff := uint64(a) - uint64(b)
	result = uint32(diff)
	icc.N = result&0x80000000 != 0
	icc.Z = result == 0
	icc.C = a < b
	signA := a&0x80000000 != 0
	signB := b&0x80000000 != 0
	signR := result&0x80000000 != 0
	icc.V = signA != signB && signR != signA
	return
}

// logicalCC computes the N/Z flags a logical op (AND/OR/XOR) sets; logical
// ops always clear C and V.
func logicalCC(result uint32) ICC {
	return ICC{N: result&0x80000000 != 0, Z: result == 0}
}

// umulccResult computes the 64-bit unsigned product of a and b, returning
// the low 32 bits as the destination value, the high 32 bits for the Y
// register, and the ICC spec.md's boundary scenario S4 pins down exactly:
// N/Z reflect the low-32 result, V and C are always cleared.
//
// spec.md's design notes flag that the reference implementation never
// produces a condition-code value mid-pipeline for UMULcc/SMULcc/MULScc;
// in RSIM only FunctionalExecutor.Retire calls this, and the execute stage
// computes nothing for these opcodes, so no product or ICC value exists
// before retire (see SPEC_FULL.md §D, decision 2).
func umulccResult(a, b uint32) (lo, hi uint32, icc ICC) {
	product := uint64(a) * uint64(b)
	lo = uint32(product)
	hi = uint32(product >> 32)
	icc.N = lo&0x80000000 != 0
	icc.Z = lo == 0
	return
}

// smulccResult is umulccResult's signed-multiply counterpart.
func smulccResult(a, b int32) (lo, hi uint32, icc ICC) {
	product := int64(a) * int64(b)
	lo = uint32(product)
	hi = uint32(product >> 32)
	icc.N = lo&0x80000000 != 0
	icc.Z = lo == 0
	return
}
