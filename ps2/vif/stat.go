package vif

import "fmt"

// Stat is VIFn_STAT register
type Stat uint32

const (
	STAT_VPS = 0x3 << 0   // Waiting for data / decoding / transferring
	STAT_VEW = 1 << 2     // Waiting for end of microprogram
	STAT_VGW = 1 << 3     // Waiting for end of GIF transfer (VIF1)
	STAT_MRK = 1 << 6     // MARK detected
	STAT_DBF = 1 << 7     // Double buffer flag (VIF1)
	STAT_INT = 1 << 11    // Interrupt bit detected
	STAT_FQC = 0x1f << 24 // Quadwords in fifo
)

const statFqcShift = 24

const (
	VPS_IDLE     = 0
	VPS_WAITDATA = 1
)

func (s Stat) VPS() uint32 { return uint32(s & STAT_VPS) }
func (s Stat) VEW() bool   { return s&STAT_VEW != 0 }
func (s Stat) MRK() bool   { return s&STAT_MRK != 0 }
func (s Stat) DBF() bool   { return s&STAT_DBF != 0 }
func (s Stat) INT() bool   { return s&STAT_INT != 0 }
func (s Stat) FQC() uint32 { return uint32(s&STAT_FQC) >> statFqcShift }

func (s *Stat) set(mask Stat, v bool) {
	if v {
		*s |= mask
	} else {
		*s &^= mask
	}
}

func (s *Stat) SetVPS(v uint32) { *s = (*s &^ STAT_VPS) | Stat(v&0x3) }
func (s *Stat) SetVEW(v bool)   { s.set(STAT_VEW, v) }
func (s *Stat) SetMRK(v bool)   { s.set(STAT_MRK, v) }
func (s *Stat) SetDBF(v bool)   { s.set(STAT_DBF, v) }
func (s *Stat) SetINT(v bool)   { s.set(STAT_INT, v) }

// SetFQC stores fifo fill, hardware counter saturates at 16 quadwords
func (s *Stat) SetFQC(qwc uint32) {
	if qwc > 0x10 {
		qwc = 0x10
	}
	*s = (*s &^ STAT_FQC) | Stat(qwc<<statFqcShift)
}

func (s Stat) String() string {
	return fmt.Sprintf("Stat{VPS:%d; VEW:%t; MRK:%t; DBF:%t; INT:%t; FQC:%d}",
		s.VPS(), s.VEW(), s.MRK(), s.DBF(), s.INT(), s.FQC())
}
