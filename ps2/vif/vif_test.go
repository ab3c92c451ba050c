package vif

import "testing"

var unpackSizeTests = []struct {
	cmd   uint8
	num   uint8
	size  uint32
	comps uint32
	width uint32
}{
	{0x60, 1, 4, 1, 32},    // S-32
	{0x61, 3, 8, 1, 16},    // S-16, padded to word
	{0x62, 5, 8, 1, 8},     // S-8
	{0x64, 2, 16, 2, 32},   // V2-32
	{0x69, 3, 20, 3, 16},   // V3-16
	{0x6c, 0, 4096, 4, 32}, // V4-32, NUM 0 is 256
	{0x6f, 3, 8, 4, 5},     // V4-5, 16 bits per element
	{0x7e, 1, 4, 4, 8},     // masked V4-8
}

func TestUnpackSize(t *testing.T) {
	for _, test := range unpackSizeTests {
		u := NewUnpack(MakeCode(test.cmd, test.num, 0))
		if u.Size() != test.size || u.Components != test.comps || u.Width != test.width {
			t.Errorf("%v: size %d comps %d width %d; expected %d %d %d",
				u, u.Size(), u.Components, u.Width, test.size, test.comps, test.width)
		}
	}
}

func TestUnpackFlags(t *testing.T) {
	u := NewUnpack(MakeCode(0x7c, 1, 0xc3ff))
	if !u.UseTops || u.Signed || !u.Masked || u.Target != 0x3ff {
		t.Errorf("flags decoded as %v", u)
	}
	u = NewUnpack(MakeCode(0x6c, 1, 0x0012))
	if u.UseTops || !u.Signed || u.Masked || u.Target != 0x12 {
		t.Errorf("flags decoded as %v", u)
	}
}

func TestCodeFields(t *testing.T) {
	c := NewCode(0xd0123456)
	if c.Cmd() != VIF_CMD_DIRECT || c.Num() != 0x12 || c.Imm() != 0x3456 || !c.IsIRQ() || !c.IsDirect() {
		t.Errorf("decoded %v", c)
	}
	if c.Name() != "DIRECT" || MakeCode(0x75, 0, 0).Name() != "UNPACK" || MakeCode(0x4b, 0, 0).Name() != "UNKNOWN_4b" {
		t.Errorf("names %s %s %s", c.Name(), MakeCode(0x75, 0, 0).Name(), MakeCode(0x4b, 0, 0).Name())
	}
}

func TestStatBits(t *testing.T) {
	var s Stat
	s.SetVPS(VPS_WAITDATA)
	s.SetDBF(true)
	s.SetFQC(40)
	if s.VPS() != VPS_WAITDATA || !s.DBF() || s.FQC() != 16 || s.VEW() {
		t.Errorf("stat %v", s)
	}
	s.SetVPS(VPS_IDLE)
	s.SetDBF(false)
	s.SetFQC(3)
	if uint32(s) != 3<<24 {
		t.Errorf("stat 0x%x", uint32(s))
	}
}
