package gif

import (
	"fmt"
)

const (
	GIF_FLG_PACKED  = 0x0
	GIF_FLG_REGLIST = 0x1
	GIF_FLG_IMAGE   = 0x2
	GIF_FLG_IMAGE2  = 0x3 // disabled, acts as IMAGE

	PATH1 = 1
	PATH2 = 2
	PATH3 = 3
)

var gifFlgToString = []string{"packed", "reglist", "image", "image"}

// GifTag is lower 64 bits of GIF tag quadword, REGS are in upper half
type GifTag uint64

func (t GifTag) NLoop() uint16 {
	return uint16(t & 0x7fff)
}

func (t GifTag) EOP() bool {
	return (t>>15)&1 != 0
}

func (t GifTag) Flg() uint8 {
	return uint8((t >> 58) & 0x3)
}

func (t GifTag) NReg() uint8 {
	nreg := uint8((t >> 60) & 0xf)
	if nreg == 0 {
		nreg = 16
	}
	return nreg
}

// Quadwords of data following tag
func (t GifTag) DataQuadwords() uint32 {
	nloop := uint32(t.NLoop())
	switch t.Flg() {
	case GIF_FLG_PACKED:
		return nloop * uint32(t.NReg())
	case GIF_FLG_REGLIST:
		return (nloop*uint32(t.NReg()) + 1) / 2
	default:
		return nloop
	}
}

func (t GifTag) String() string {
	return fmt.Sprintf("GifTag{NLoop:%d; EOP:%t; Flg:%s; NReg:%d}",
		t.NLoop(), t.EOP(), gifFlgToString[t.Flg()], t.NReg())
}

func NewTag(raw uint64) GifTag {
	return GifTag(raw)
}

func MakeTag(nloop uint16, eop bool, flg uint8, nreg uint8) GifTag {
	raw := uint64(nloop&0x7fff) | uint64(flg&0x3)<<58 | uint64(nreg&0xf)<<60
	if eop {
		raw |= 1 << 15
	}
	return GifTag(raw)
}

type PacketMetadata struct {
	Path int
}
