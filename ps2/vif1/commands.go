package vif1

import (
	"github.com/mogaika/vif1emu/ps2/vif"
)

// ExecuteCommand handles VIF1 specific commands, rest goes to base logic
func (v *Vif1) ExecuteCommand(s *vif.Stream, code vif.VifCode) error {
	switch code.Cmd() {
	case vif.VIF_CMD_OFFSET:
		v.ofst = uint32(code.Imm())
		v.core.Stat.SetDBF(false)
		v.tops = v.base
	case vif.VIF_CMD_BASE:
		v.base = uint32(code.Imm())
	case vif.VIF_CMD_MSKPATH3:
		v.gif.SetPath3Masked(code.Imm()&0x8000 != 0)
	case vif.VIF_CMD_FLUSH, vif.VIF_CMD_FLUSHA:
		v.core.Stat.SetVEW(v.vu.IsRunning())
		if v.core.ResumeDelayedMicroProgram() {
			v.core.Stat.SetVEW(true)
			return nil
		}
	case vif.VIF_CMD_DIRECT, vif.VIF_CMD_DIRECTHL:
		return v.cmdDirect(s)
	default:
		return v.core.ExecuteBase(s, code)
	}
	return nil
}

// UnpackAddress relocates unpack target into current double buffer when FLG bit is set
func (v *Vif1) UnpackAddress(code vif.VifCode, addr uint32) uint32 {
	if vif.NewUnpack(code).UseTops {
		addr += v.tops
	}
	return addr
}

// PrepareMicroProgram publishes prepared buffer in TOP and swaps to other one
func (v *Vif1) PrepareMicroProgram(p *vif.MicroProgram) {
	v.top = v.tops
	if v.core.Stat.DBF() {
		v.tops = v.base
	} else {
		v.tops = v.base + v.ofst
	}
	v.core.Stat.SetDBF(!v.core.Stat.DBF())

	p.Top = v.top
	v.stats.MicroPrograms++
}
