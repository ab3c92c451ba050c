package vif

import "fmt"

var unpackWidths = []uint32{32, 16, 8, 5}

// Unpack describes geometry of UNPACK (0x60-0x7f) command
type Unpack struct {
	Components uint32 // vn + 1
	Width      uint32 // bits per component
	Elements   uint32 // NUM, 0 means 256
	Target     uint32 // destination in quadwords, before TOPS relocation
	Signed     bool
	UseTops    bool
	Masked     bool
}

func NewUnpack(code VifCode) Unpack {
	elements := uint32(code.Num())
	if elements == 0 {
		elements = 256
	}
	return Unpack{
		Components: uint32((code.Cmd()>>2)&0x3) + 1,
		Width:      unpackWidths[code.Cmd()&0x3],
		Elements:   elements,
		Target:     uint32(code.Imm() & 0x3ff),
		Signed:     (code.Imm()>>14)&1 == 0,
		UseTops:    (code.Imm()>>15)&1 != 0,
		Masked:     (code.Cmd()>>4)&1 != 0,
	}
}

// Size of packed data following the code, padded to word boundary
func (u Unpack) Size() uint32 {
	bits := u.Components * u.Width * u.Elements
	if u.Components == 4 && u.Width == 5 {
		// V4-5 is packed RGBA5551
		bits = 16 * u.Elements
	}
	bytes := (bits + 7) / 8
	return ((bytes + 3) / 4) * 4
}

func (u Unpack) String() string {
	return fmt.Sprintf("Unpack{V%d-%d; Elements:%d; Target:0x%.3x; Signed:%t; Tops:%t; Mask:%t; Size:0x%x}",
		u.Components, u.Width, u.Elements, u.Target, u.Signed, u.UseTops, u.Masked, u.Size())
}
