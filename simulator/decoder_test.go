package simulator

import "testing"

// Every format round-trips through encode and decode
func TestDecodeFormats(t *testing.T) {
	d := NewDecoder()
	var out [2]InstrData

	cases := []struct {
		word uint32
		name string
	}{
		{EncodeALUi(PredSel(2), ALU_SUB, 3, 4, -7), "subi"},
		{EncodeALUr(0, ALU_XOR, 3, 4, 5), "xor"},
		{EncodeALUu(0, ALUU_SEXT8, 3, 4), "sext8"},
		{EncodeALUm(0, ALUM_MULU, 4, 5), "mulu"},
		{EncodeALUc(0, CMP_ULE, 2, 4, 5), "cmpule"},
		{EncodeALUci(0, CMP_BTEST, 2, 4, 3), "btesti"},
		{EncodeALUp(0, PCMP_XOR, 2, PredSel(1), PredSel(2)), "pxor"},
		{EncodeNop(0, 5), "nop"},
		{EncodeWaitM(0), "waitm"},
		{EncodeMts(0, SPR_ST, 4), "mts"},
		{EncodeMfs(0, 4, SPR_SM), "mfs"},
		{EncodeLoad(0, LDT_LWC, 3, 4, -2), "lwc"},
		{EncodeLoad(0, LDT_DLBUM, 0, 4, 1), "dlbum"},
		{EncodeStore(0, STT_SHS, 4, 5, 6), "shs"},
		{EncodeStackControl(0, STC_ENS, 12), "sens"},
		{EncodeCall(0, 0x100), "call"},
		{EncodeBr(0, -4), "br"},
		{EncodeRet(0, REG_RFB, REG_RFO), "ret"},
		{EncodeCallr(0, 7), "callr"},
		{EncodeBrr(0, 7), "brr"},
	}

	for _, c := range cases {
		size := d.Decode([2]uint32{c.word, 0}, &out)
		if size != 1 {
			t.Fatalf("%s: expected size 1, got %d", c.name, size)
		}
		if out[0].I == nil || out[0].I.Name != c.name {
			t.Fatalf("expected %s, decoded %v", c.name, out[0].I)
		}
		if out[1].I != nil {
			t.Fatalf("%s: second slot not a bubble", c.name)
		}
	}
}

// Immediates keep their sign through encoding
func TestDecodeImmediates(t *testing.T) {
	assert := func(v bool) {
		t.Helper()
		if !v {
			t.Error("assert failed")
		}
	}

	d := NewDecoder()
	var out [2]InstrData

	d.Decode([2]uint32{EncodeALUi(0, ALU_ADD, 3, 0, -7), 0}, &out)
	assert(int32(out[0].Ops.Imm) == -7)

	d.Decode([2]uint32{EncodeLoad(0, LDT_LWM, 3, 4, -2), 0}, &out)
	assert(int32(out[0].Ops.Imm) == -2)

	d.Decode([2]uint32{EncodeBr(0, -4), 0}, &out)
	assert(int32(out[0].Ops.Imm) == -4)

	d.Decode([2]uint32{EncodeStackControl(0, STC_RES, 100), 0}, &out)
	assert(out[0].Ops.Imm == 100)
}

// A dual-issue bundle decodes into both slots
func TestDecodeBundle(t *testing.T) {
	d := NewDecoder()
	var out [2]InstrData

	iw := [2]uint32{
		Bundle(EncodeALUi(0, ALU_ADD, 3, 0, 1)),
		EncodeALUi(0, ALU_SUB, 4, 0, 2),
	}
	size := d.Decode(iw, &out)
	if size != 2 {
		t.Fatalf("expected size 2, got %d", size)
	}
	if out[0].I.Name != "addi" || out[1].I.Name != "subi" {
		t.Fatalf("wrong bundle decode: %v, %v", out[0].I, out[1].I)
	}
}

// A long immediate consumes both words as one instruction
func TestDecodeLongImmediate(t *testing.T) {
	d := NewDecoder()
	var out [2]InstrData

	w0, w1 := EncodeALUl(0, ALU_AND, 3, 4, 0xdeadbeef)
	size := d.Decode([2]uint32{w0, w1}, &out)
	if size != 2 {
		t.Fatalf("expected size 2, got %d", size)
	}
	if out[0].I.Name != "andl" {
		t.Fatalf("expected andl, got %v", out[0].I)
	}
	if out[0].Ops.Imm != 0xdeadbeef {
		t.Fatalf("wrong immediate %08x", out[0].Ops.Imm)
	}
	if out[1].I != nil {
		t.Fatalf("second slot of a long instruction must be a bubble")
	}
}

// Unknown encodings decode to zero length
func TestDecodeIllegal(t *testing.T) {
	d := NewDecoder()
	var out [2]InstrData

	if size := d.Decode([2]uint32{0x7fffffff, 0}, &out); size != 0 {
		t.Fatalf("expected 0 for an unknown class, got %d", size)
	}

	// a bundle whose second word has the bundle flag set is invalid
	iw := [2]uint32{
		Bundle(EncodeALUi(0, ALU_ADD, 3, 0, 1)),
		Bundle(EncodeALUi(0, ALU_ADD, 4, 0, 1)),
	}
	if size := d.Decode(iw, &out); size != 0 {
		t.Fatalf("expected 0 for a nested bundle, got %d", size)
	}

	// an out of range ALU function is invalid
	bad := uint32(clsALUi)<<27 | 15<<19
	if size := d.Decode([2]uint32{bad, 0}, &out); size != 0 {
		t.Fatalf("expected 0 for a bad function, got %d", size)
	}
}

// The predicate selector travels with the instruction
func TestDecodePredicate(t *testing.T) {
	d := NewDecoder()
	var out [2]InstrData

	d.Decode([2]uint32{EncodeALUi(PredSel(3)|PRED_NEGATE, ALU_ADD, 3, 0, 1), 0}, &out)
	if out[0].Pred.Index() != 3 || !out[0].Pred.Negated() {
		t.Fatalf("wrong predicate selector %v", out[0].Pred)
	}
}

// Opcode IDs are unique and the statistics tables can be sized off the
// table
func TestOpcodeTable(t *testing.T) {
	seen := make(map[int]bool)
	for i, op := range Opcodes {
		if op.ID != i {
			t.Fatalf("opcode %s has ID %d at index %d", op.Name, op.ID, i)
		}
		if seen[op.ID] {
			t.Fatalf("duplicate opcode ID %d", op.ID)
		}
		seen[op.ID] = true
	}
	if NewDecoder().NumOpcodes() != len(Opcodes) {
		t.Fatalf("decoder opcode count mismatch")
	}
}
